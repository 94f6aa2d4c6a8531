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

package fee

import (
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation is a ledger operation kind with a distinct base fee
type Operation string

const (
	OperationMint      Operation = "mint"
	OperationTransfer  Operation = "transfer"
	OperationAssociate Operation = "associate"
)

// Confidence expresses how much an estimate should be trusted
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

const (
	DefaultMintBaseFee      = 0.05
	DefaultTransferBaseFee  = 0.001
	DefaultAssociateBaseFee = 0.05
	DefaultSurchargePerKB   = 0.0005
	DefaultPeakMultiplier   = 1.5
	DefaultBufferPercent    = 10.0
	DefaultFallbackFee      = 0.25
	DefaultMaxBatchDiscount = 0.30
	DefaultMinBatchSize     = 5
	DefaultMaxBatchSize     = 25
	// discount curve half-saturation point, in items
	discountSaturationCount = 20.0
	// accuracy sample log bound
	maxAccuracySamples = 1000
)

// Config holds the estimator's pricing model parameters
type Config struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	BaseFees     map[Operation]float64
	// Size surcharge applied per kilobyte of payload
	SurchargePerKB float64
	// Peak congestion window, as hours of day in Location.
	// The window is [PeakStartHour, PeakEndHour).
	PeakStartHour  int
	PeakEndHour    int
	PeakMultiplier float64
	Location       *time.Location
	// Percentage buffer applied to the subtotal
	BufferPercent float64
	// Conservative estimate returned when computation fails
	FallbackFee      float64
	MaxBatchDiscount float64
	MinBatchSize     int
	MaxBatchSize     int
	// Now allows tests to pin the clock
	Now func() time.Time
}

// Estimation is a single-operation fee estimate
type Estimation struct {
	Operation           Operation
	BaseFee             float64
	SizeSurcharge       float64
	CongestionSurcharge float64
	Buffer              float64
	Total               float64
	Confidence          Confidence
	EstimatedAt         time.Time
}

// BatchPricing is the bulk-pricing breakdown for a batch of identical
// operations
type BatchPricing struct {
	ItemCount            int
	SingleCost           float64
	NaiveTotal           float64
	BatchTotal           float64
	Savings              float64
	DiscountRate         float64
	RecommendedBatchSize int
}

type accuracySample struct {
	operation Operation
	estimated float64
	actual    float64
}

// AccuracyReport summarizes estimation accuracy over the recorded samples.
// SuggestedBufferPercent is advisory; nothing changes until ApplyBuffer is
// called.
type AccuracyReport struct {
	Samples                int
	OverestimateRate       float64
	UnderestimateRate      float64
	MeanRelativeError      float64
	CurrentBufferPercent   float64
	SuggestedBufferPercent float64
}

type estimatorMetrics struct {
	estimates *prometheus.CounterVec
	fallbacks prometheus.Counter
}

func newEstimatorMetrics(registry prometheus.Registerer) *estimatorMetrics {
	m := &estimatorMetrics{
		estimates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigil_fee_estimates_total",
				Help: "Fee estimates produced, by operation",
			},
			[]string{"operation"},
		),
		fallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sigil_fee_estimate_fallbacks_total",
				Help: "Estimates that degraded to the conservative fallback",
			},
		),
	}
	registry.MustRegister(m.estimates, m.fallbacks)
	return m
}

// Estimator computes ledger fee estimates. Estimation never returns an
// error: any internal failure degrades to the conservative fallback so that
// fee estimation can never block a mint.
type Estimator struct {
	cfg     Config
	logger  *slog.Logger
	metrics *estimatorMetrics
	mu      sync.Mutex
	// live buffer percentage, mutated only via ApplyBuffer
	bufferPercent float64
	samples       []accuracySample
}

// NewEstimator creates an Estimator, filling config defaults
func NewEstimator(cfg Config) *Estimator {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.BaseFees == nil {
		cfg.BaseFees = map[Operation]float64{
			OperationMint:      DefaultMintBaseFee,
			OperationTransfer:  DefaultTransferBaseFee,
			OperationAssociate: DefaultAssociateBaseFee,
		}
	}
	if cfg.SurchargePerKB <= 0 {
		cfg.SurchargePerKB = DefaultSurchargePerKB
	}
	if cfg.PeakMultiplier < 1 {
		cfg.PeakMultiplier = DefaultPeakMultiplier
	}
	if cfg.BufferPercent <= 0 {
		cfg.BufferPercent = DefaultBufferPercent
	}
	if cfg.FallbackFee <= 0 {
		cfg.FallbackFee = DefaultFallbackFee
	}
	if cfg.MaxBatchDiscount <= 0 {
		cfg.MaxBatchDiscount = DefaultMaxBatchDiscount
	}
	if cfg.MinBatchSize <= 0 {
		cfg.MinBatchSize = DefaultMinBatchSize
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	e := &Estimator{
		cfg:           cfg,
		logger:        cfg.Logger,
		bufferPercent: cfg.BufferPercent,
	}
	if cfg.PromRegistry != nil {
		e.metrics = newEstimatorMetrics(cfg.PromRegistry)
	}
	return e
}

// Estimate computes the fee for a single operation. payloadSize is a byte
// count hint; pass 0 when unknown. Unknown operations degrade to the
// fallback estimate with low confidence.
func (e *Estimator) Estimate(op Operation, payloadSize int) Estimation {
	now := e.cfg.Now().In(e.cfg.Location)
	base, ok := e.cfg.BaseFees[op]
	if !ok || base <= 0 || payloadSize < 0 {
		return e.fallback(op, now)
	}
	var sizeSurcharge float64
	if payloadSize > 0 {
		sizeSurcharge = float64(payloadSize) / 1024.0 * e.cfg.SurchargePerKB
	}
	subtotal := base + sizeSurcharge
	var congestion float64
	if e.inPeakWindow(now) {
		congestion = subtotal * (e.cfg.PeakMultiplier - 1)
	}
	e.mu.Lock()
	bufferPct := e.bufferPercent
	e.mu.Unlock()
	buffer := (subtotal + congestion) * bufferPct / 100.0
	total := subtotal + congestion + buffer
	if math.IsNaN(total) || math.IsInf(total, 0) {
		return e.fallback(op, now)
	}
	confidence := ConfidenceMedium
	if payloadSize > 0 {
		confidence = ConfidenceHigh
	}
	if e.metrics != nil {
		e.metrics.estimates.WithLabelValues(string(op)).Inc()
	}
	return Estimation{
		Operation:           op,
		BaseFee:             base,
		SizeSurcharge:       sizeSurcharge,
		CongestionSurcharge: congestion,
		Buffer:              buffer,
		Total:               total,
		Confidence:          confidence,
		EstimatedAt:         now,
	}
}

// EstimateBatch computes bulk pricing for a batch of mint operations. The
// efficiency discount grows with item count and saturates at the configured
// maximum.
func (e *Estimator) EstimateBatch(itemCount int) BatchPricing {
	if itemCount <= 0 {
		return BatchPricing{
			RecommendedBatchSize: e.cfg.MinBatchSize,
		}
	}
	single := e.Estimate(OperationMint, 0).Total
	naive := single * float64(itemCount)
	discount := e.cfg.MaxBatchDiscount * float64(itemCount) /
		(float64(itemCount) + discountSaturationCount)
	batchTotal := naive * (1 - discount)
	return BatchPricing{
		ItemCount:            itemCount,
		SingleCost:           single,
		NaiveTotal:           naive,
		BatchTotal:           batchTotal,
		Savings:              naive - batchTotal,
		DiscountRate:         discount,
		RecommendedBatchSize: e.recommendedBatchSize(itemCount),
	}
}

// recommendedBatchSize balances per-call overhead (larger batches amortize
// it) against risk exposure (a failed batch wastes more work), bounded to
// the configured window.
func (e *Estimator) recommendedBatchSize(itemCount int) int {
	rec := int(math.Round(math.Sqrt(float64(itemCount) * 10)))
	if rec < e.cfg.MinBatchSize {
		rec = e.cfg.MinBatchSize
	}
	if rec > e.cfg.MaxBatchSize {
		rec = e.cfg.MaxBatchSize
	}
	return rec
}

func (e *Estimator) inPeakWindow(now time.Time) bool {
	if e.cfg.PeakStartHour == e.cfg.PeakEndHour {
		return false
	}
	hour := now.Hour()
	if e.cfg.PeakStartHour < e.cfg.PeakEndHour {
		return hour >= e.cfg.PeakStartHour && hour < e.cfg.PeakEndHour
	}
	// Window wraps midnight
	return hour >= e.cfg.PeakStartHour || hour < e.cfg.PeakEndHour
}

func (e *Estimator) fallback(op Operation, now time.Time) Estimation {
	if e.metrics != nil {
		e.metrics.fallbacks.Inc()
	}
	e.logger.Warn(
		"fee estimation degraded to fallback",
		"operation", op,
	)
	return Estimation{
		Operation:   op,
		BaseFee:     e.cfg.FallbackFee,
		Total:       e.cfg.FallbackFee,
		Confidence:  ConfidenceLow,
		EstimatedAt: now,
	}
}

// RecordActual feeds the accuracy log with a completed operation's
// estimated and actual fee
func (e *Estimator) RecordActual(op Operation, estimated, actual float64) {
	if estimated <= 0 || actual <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.samples = append(e.samples, accuracySample{
		operation: op,
		estimated: estimated,
		actual:    actual,
	})
	if len(e.samples) > maxAccuracySamples {
		e.samples = e.samples[len(e.samples)-maxAccuracySamples:]
	}
}

// AnalyzeAccuracy computes over/under-estimation rates over the recorded
// samples and suggests a buffer adjustment. The suggestion is advisory
// only; live configuration is unchanged until ApplyBuffer is called.
func (e *Estimator) AnalyzeAccuracy() AccuracyReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	report := AccuracyReport{
		Samples:                len(e.samples),
		CurrentBufferPercent:   e.bufferPercent,
		SuggestedBufferPercent: e.bufferPercent,
	}
	if len(e.samples) == 0 {
		return report
	}
	var over, under int
	var relErrSum float64
	for _, s := range e.samples {
		if s.estimated > s.actual {
			over++
		} else if s.estimated < s.actual {
			under++
		}
		relErrSum += (s.estimated - s.actual) / s.actual
	}
	n := float64(len(e.samples))
	report.OverestimateRate = float64(over) / n
	report.UnderestimateRate = float64(under) / n
	report.MeanRelativeError = relErrSum / n
	// Suggest shrinking the buffer when estimates run consistently high,
	// growing it when they run low
	suggested := e.bufferPercent - report.MeanRelativeError*100
	if suggested < 0 {
		suggested = 0
	}
	report.SuggestedBufferPercent = suggested
	return report
}

// ApplyBuffer sets the live buffer percentage. This is the only way
// accuracy feedback reaches the pricing model.
func (e *Estimator) ApplyBuffer(percent float64) {
	if percent < 0 {
		percent = 0
	}
	e.mu.Lock()
	old := e.bufferPercent
	e.bufferPercent = percent
	e.mu.Unlock()
	e.logger.Info(
		"fee buffer updated",
		"old_percent", old,
		"new_percent", percent,
	)
}
