// Copyright 2025 Proven Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/provenlabs/sigil/database"
	"github.com/provenlabs/sigil/event"
	"github.com/provenlabs/sigil/fee"
	"github.com/provenlabs/sigil/ledger"
	"github.com/provenlabs/sigil/metadata"
	"github.com/provenlabs/sigil/storage"
)

const (
	DefaultSubBatchSize  = 10
	DefaultBatchCooldown = 2 * time.Second
)

// ConflictError is returned when a product already has an active
// certificate
type ConflictError struct {
	ProductID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf(
		"product %s already has an active certificate",
		e.ProductID,
	)
}

// Request carries the caller-supplied parameters for a single mint
type Request struct {
	// Memo is attached to the ledger transaction
	Memo string
	// MaxFee caps the acceptable ledger cost; 0 means derive from the
	// fee estimate
	MaxFee float64
}

// Result is the outcome of one mint attempt
type Result struct {
	RecordID        string
	ProductID       string
	TokenID         string
	Serial          uint64
	TransactionID   string
	Cost            float64
	StorageCID      string
	StorageDegraded bool
	Success         bool
	Err             error
}

// BatchRequest carries the parameters for a batch mint
type BatchRequest struct {
	ProductIDs []string
	Memo       string
	MaxFee     float64
}

// BatchResult aggregates the per-item outcomes of a batch mint, along with
// the estimator's bulk pricing for comparison against the actual cost
type BatchResult struct {
	Successful int
	Failed     int
	Results    []*Result
	TotalCost  float64
	Pricing    fee.BatchPricing
}

// Config holds the orchestrator's collaborators and tuning
type Config struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	Validator    *metadata.Validator
	Store        *database.Store
	Gateway      *storage.Gateway
	Estimator    *fee.Estimator
	Ledger       ledger.Client
	EventBus     *event.Bus
	// TokenClassID is the ledger token class certificates are minted
	// under
	TokenClassID string
	// SubBatchSize bounds how many items of a batch run concurrently
	SubBatchSize int
	// BatchCooldown is the delay inserted between sub-batches
	BatchCooldown time.Duration
	// StorageRetry queues metadata payloads for deferred re-attempts
	// when all providers fail during a mint
	StorageRetry bool
}

type orchestratorMetrics struct {
	mints *prometheus.CounterVec
}

func newOrchestratorMetrics(
	registry prometheus.Registerer,
) *orchestratorMetrics {
	m := &orchestratorMetrics{
		mints: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigil_mints_total",
				Help: "Mint attempts by outcome",
			},
			[]string{"outcome"},
		),
	}
	registry.MustRegister(m.mints)
	return m
}

// Orchestrator drives certificate issuance end to end: metadata
// validation, duplicate guarding, storage persistence, fee estimation,
// ledger submission and record finalization. It holds no durable state of
// its own; the record store is the source of truth.
type Orchestrator struct {
	logger        *slog.Logger
	metrics       *orchestratorMetrics
	validator     *metadata.Validator
	store         *database.Store
	gateway       *storage.Gateway
	estimator     *fee.Estimator
	ledger        ledger.Client
	eventBus      *event.Bus
	tokenClassID  string
	subBatchSize  int
	batchCooldown time.Duration
	storageRetry  bool
}

// NewOrchestrator creates a minting orchestrator. All collaborators are
// required except the event bus and metrics registry.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Validator == nil {
		return nil, errors.New("metadata validator is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("record store is required")
	}
	if cfg.Gateway == nil {
		return nil, errors.New("storage gateway is required")
	}
	if cfg.Estimator == nil {
		return nil, errors.New("fee estimator is required")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("ledger client is required")
	}
	if cfg.TokenClassID == "" {
		return nil, errors.New("token class id is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.SubBatchSize <= 0 {
		cfg.SubBatchSize = DefaultSubBatchSize
	}
	if cfg.BatchCooldown <= 0 {
		cfg.BatchCooldown = DefaultBatchCooldown
	}
	o := &Orchestrator{
		logger:        cfg.Logger,
		validator:     cfg.Validator,
		store:         cfg.Store,
		gateway:       cfg.Gateway,
		estimator:     cfg.Estimator,
		ledger:        cfg.Ledger,
		eventBus:      cfg.EventBus,
		tokenClassID:  cfg.TokenClassID,
		subBatchSize:  cfg.SubBatchSize,
		batchCooldown: cfg.BatchCooldown,
		storageRetry:  cfg.StorageRetry,
	}
	if cfg.PromRegistry != nil {
		o.metrics = newOrchestratorMetrics(cfg.PromRegistry)
	}
	return o, nil
}

// MintSingle issues one certificate. Steps run strictly in order:
// validate, duplicate-check, create pending record, estimate fee, persist
// metadata (best-effort), submit to the ledger, finalize. Validation and
// conflict failures return before any state is created; ledger failures
// mark the record failed and are surfaced verbatim.
func (o *Orchestrator) MintSingle(
	ctx context.Context,
	ownerID string,
	productID string,
	req Request,
	md *metadata.CertificateMetadata,
) (*Result, error) {
	result := &Result{ProductID: productID}
	// Validate before touching any state
	validation := o.validator.Validate(md)
	if !validation.Valid {
		err := &metadata.ValidationError{Errors: validation.Errors}
		result.Err = err
		o.countMint("validation_rejected")
		return result, err
	}
	metadataHash, err := metadata.CanonicalHash(md)
	if err != nil {
		result.Err = err
		return result, err
	}
	// Duplicate guard: the store's uniqueness constraint backs this up
	// under concurrency
	record, err := o.store.CreatePending(ctx, productID, ownerID, metadataHash)
	if err != nil {
		if errors.Is(err, database.ErrDuplicateActive) {
			conflictErr := &ConflictError{ProductID: productID}
			result.Err = conflictErr
			o.countMint("conflict")
			return result, conflictErr
		}
		result.Err = err
		return result, err
	}
	result.RecordID = record.ID
	o.publish(event.MintStartedEventType, event.MintEvent{
		OwnerID:   ownerID,
		ProductID: productID,
	})
	// Fee estimation bounds the ledger transaction cost. It never fails;
	// worst case it degrades to a conservative fallback.
	payload, err := metadata.CanonicalBytes(md)
	if err != nil {
		return o.failMint(ctx, result, ownerID, err)
	}
	estimate := o.estimator.Estimate(fee.OperationMint, len(payload))
	maxFee := req.MaxFee
	if maxFee <= 0 {
		maxFee = estimate.Total
	}
	// Storage persistence is best-effort augmentation of the
	// ledger-anchored certificate; failure degrades the result but never
	// aborts the mint
	storageResult, err := o.gateway.Store(ctx, md, storage.StoreOptions{
		Name:           fmt.Sprintf("certificate-%s", productID),
		UseBackups:     true,
		RetryOnFailure: o.storageRetry,
	})
	if err != nil {
		result.StorageDegraded = true
		o.logger.Warn(
			"metadata storage degraded, continuing with mint",
			"product_id", productID,
			"error", err,
		)
	} else {
		result.StorageCID = storageResult.CID
		if err := o.store.SetStorageCID(ctx, record.ID, storageResult.CID); err != nil {
			o.logger.Warn(
				"failed to record storage cid",
				"record_id", record.ID,
				"error", err,
			)
		}
	}
	// Ledger submission
	mintResult, err := o.ledger.SubmitMint(
		ctx,
		o.tokenClassID,
		payload,
		req.Memo,
		maxFee,
	)
	if err != nil {
		return o.failMint(ctx, result, ownerID, err)
	}
	var serial uint64
	if len(mintResult.Serials) > 0 {
		serial = mintResult.Serials[0]
	}
	if err := o.store.MarkConfirmed(
		ctx,
		record.ID,
		o.tokenClassID,
		serial,
		mintResult.FeeCharged,
	); err != nil {
		return o.failMint(ctx, result, ownerID, err)
	}
	o.appendTransaction(ctx, record.ID, &database.TransactionRecord{
		RecordID:      record.ID,
		TransactionID: mintResult.TransactionID,
		Operation:     string(fee.OperationMint),
		Status:        string(ledger.StatusSuccess),
		Fee:           mintResult.FeeCharged,
	})
	o.estimator.RecordActual(
		fee.OperationMint,
		estimate.Total,
		mintResult.FeeCharged,
	)
	result.TokenID = o.tokenClassID
	result.Serial = serial
	result.TransactionID = mintResult.TransactionID
	result.Cost = mintResult.FeeCharged
	result.Success = true
	o.countMint("success")
	o.publish(event.MintCompletedEventType, event.MintEvent{
		OwnerID:       ownerID,
		ProductID:     productID,
		TokenID:       result.TokenID,
		Serial:        serial,
		TransactionID: mintResult.TransactionID,
	})
	return result, nil
}

// failMint finalizes a mint that died after its pending record was
// created: the record is marked failed (releasing the product), a failed
// transaction entry is appended and the error is propagated verbatim.
func (o *Orchestrator) failMint(
	ctx context.Context,
	result *Result,
	ownerID string,
	cause error,
) (*Result, error) {
	result.Err = cause
	if err := o.store.MarkFailed(ctx, result.RecordID); err != nil {
		o.logger.Error(
			"failed to mark record failed",
			"record_id", result.RecordID,
			"error", err,
		)
	}
	o.appendTransaction(ctx, result.RecordID, &database.TransactionRecord{
		RecordID:     result.RecordID,
		Operation:    string(fee.OperationMint),
		Status:       string(ledger.StatusFailed),
		ErrorMessage: cause.Error(),
	})
	o.countMint("failure")
	o.publish(event.MintFailedEventType, event.MintEvent{
		OwnerID:   ownerID,
		ProductID: result.ProductID,
		Error:     cause.Error(),
	})
	return result, cause
}

func (o *Orchestrator) appendTransaction(
	ctx context.Context,
	recordID string,
	txRecord *database.TransactionRecord,
) {
	if err := o.store.AppendTransaction(ctx, txRecord); err != nil {
		o.logger.Error(
			"failed to append transaction record",
			"record_id", recordID,
			"error", err,
		)
	}
}

func (o *Orchestrator) publish(eventType event.Type, data any) {
	if o.eventBus != nil {
		o.eventBus.Publish(eventType, data)
	}
}

func (o *Orchestrator) countMint(outcome string) {
	if o.metrics != nil {
		o.metrics.mints.WithLabelValues(outcome).Inc()
	}
}
