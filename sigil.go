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

package sigil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/provenlabs/sigil/database"
	"github.com/provenlabs/sigil/event"
	"github.com/provenlabs/sigil/fee"
	"github.com/provenlabs/sigil/ledger"
	"github.com/provenlabs/sigil/metadata"
	"github.com/provenlabs/sigil/mint"
	"github.com/provenlabs/sigil/storage"
)

const defaultRetryInterval = 1 * time.Minute

// Service wires the certificate issuance pipeline together: metadata
// validation, content-addressed storage, fee estimation, ledger
// submission and the durable record store.
type Service struct {
	config        Config
	eventBus      *event.Bus
	store         *database.Store
	gateway       *storage.Gateway
	gcsArchive    *storage.GCSArchiveProvider
	estimator     *fee.Estimator
	ledgerClient  ledger.Client
	orchestrator  *mint.Orchestrator
	shutdownFuncs []func(context.Context) error
	done          chan struct{}
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Service, error) {
	s := &Service{
		config:   cfg,
		eventBus: event.NewBus(cfg.logger, cfg.promRegistry),
		done:     make(chan struct{}),
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return s, nil
}

// Run starts the service and blocks until Stop is called or ctx is
// cancelled. The background retry drain keeps re-attempting metadata
// payloads that failed to persist during minting.
func (s *Service) Run(ctx context.Context) error {
	// Configure tracing
	if s.config.tracing {
		if err := s.setupTracing(); err != nil {
			return err
		}
	}
	// Open record store
	store, err := database.New(database.Config{
		Logger:  s.config.logger,
		DataDir: s.config.dataDir,
		Tracing: s.config.tracing,
	})
	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}
	s.store = store
	// Configure storage providers
	primary := storage.NewIPFSProvider(
		s.config.ipfsAPIURL,
		s.config.storageTimeout,
	)
	var backups []storage.Provider
	for _, pin := range s.config.pinEndpoints {
		backups = append(backups, storage.NewHTTPPinProvider(
			pin.Name,
			pin.Endpoint,
			pin.AuthToken,
			s.config.storageTimeout,
		))
	}
	if s.config.gcsBucket != "" {
		archive, err := storage.NewGCSArchiveProvider(ctx, s.config.gcsBucket)
		if err != nil {
			return fmt.Errorf("failed to create GCS archive: %w", err)
		}
		s.gcsArchive = archive
		backups = append(backups, archive)
	}
	cache, err := storage.NewContentCache(s.config.dataDir, s.config.logger)
	if err != nil {
		return fmt.Errorf("failed to open content cache: %w", err)
	}
	gateway, err := storage.NewGateway(storage.Config{
		Logger:         s.config.logger,
		PromRegistry:   s.config.promRegistry,
		Primary:        primary,
		Backups:        backups,
		GatewayBaseURL: s.config.gatewayBaseURL,
		PublicGateways: s.config.publicGateways,
		Cache:          cache,
		RequestTimeout: s.config.storageTimeout,
		RetryQueueSize: s.config.retryQueueSize,
		MaxRetries:     s.config.maxRetries,
		RetryDelay:     s.config.retryDelay,
	})
	if err != nil {
		return fmt.Errorf("failed to create storage gateway: %w", err)
	}
	s.gateway = gateway
	// Configure fee estimator
	s.estimator = fee.NewEstimator(fee.Config{
		Logger:       s.config.logger,
		PromRegistry: s.config.promRegistry,
	})
	// Configure ledger client
	ledgerClient, err := ledger.NewClient(ledger.Config{
		Logger:          s.config.logger,
		GatewayURL:      s.config.ledgerGatewayURL,
		OperatorAccount: s.config.operatorAccount,
		OperatorKeyFile: s.config.operatorKeyFile,
		Timeout:         s.config.ledgerTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create ledger client: %w", err)
	}
	s.ledgerClient = ledgerClient
	// Configure validator
	rules := metadata.DefaultRules()
	if s.config.validationRules != nil {
		rules = *s.config.validationRules
	}
	validator := metadata.NewValidator(rules)
	// Configure orchestrator
	orchestrator, err := mint.NewOrchestrator(mint.Config{
		Logger:        s.config.logger,
		PromRegistry:  s.config.promRegistry,
		Validator:     validator,
		Store:         s.store,
		Gateway:       s.gateway,
		Estimator:     s.estimator,
		Ledger:        s.ledgerClient,
		EventBus:      s.eventBus,
		TokenClassID:  s.config.tokenClassID,
		SubBatchSize:  s.config.subBatchSize,
		BatchCooldown: s.config.batchCooldown,
		StorageRetry:  true,
	})
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}
	s.orchestrator = orchestrator
	// Start background retry drain
	drainCtx, drainCancel := context.WithCancel(context.Background())
	drainDone := make(chan struct{})
	go s.runRetryDrain(drainCtx, drainDone)
	s.shutdownFuncs = append(
		s.shutdownFuncs,
		func(ctx context.Context) error {
			drainCancel()
			select {
			case <-drainDone:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	)

	// Wait for shutdown signal or caller cancellation
	select {
	case <-ctx.Done():
		return s.Stop()
	case <-s.done:
		return nil
	}
}

// runRetryDrain periodically re-attempts queued metadata payloads that
// failed to persist during minting
func (s *Service) runRetryDrain(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	interval := s.config.retryInterval
	if interval <= 0 {
		interval = defaultRetryInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.gateway.RetryQueueLen() == 0 {
				continue
			}
			stats, err := s.gateway.ProcessRetryQueue(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.config.logger.Warn(
					"storage retry drain failed",
					"error", err,
				)
			}
			if stats.Attempted > 0 {
				s.config.logger.Info(
					"storage retry drain complete",
					"attempted", stats.Attempted,
					"succeeded", stats.Succeeded,
					"requeued", stats.Requeued,
					"dropped", stats.Dropped,
				)
			}
		}
	}
}

// Orchestrator returns the minting orchestrator. Only valid after Run
// has started.
func (s *Service) Orchestrator() *mint.Orchestrator {
	return s.orchestrator
}

// Store returns the certificate record store. Only valid after Run has
// started.
func (s *Service) Store() *database.Store {
	return s.store
}

// StorageGateway returns the metadata storage gateway. Only valid after
// Run has started.
func (s *Service) StorageGateway() *storage.Gateway {
	return s.gateway
}

// Estimator returns the fee estimator. Only valid after Run has started.
func (s *Service) Estimator() *fee.Estimator {
	return s.estimator
}

// EventBus returns the lifecycle event bus
func (s *Service) EventBus() *event.Bus {
	return s.eventBus
}

func (s *Service) Stop() error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.shutdown()
	})
	return err
}

func (s *Service) shutdown() error {
	// Create shutdown context with timeout (default 30s if not configured)
	shutdownTimeout := 30 * time.Second
	if s.config.shutdownTimeout > 0 {
		shutdownTimeout = s.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error

	s.config.logger.Debug("starting graceful shutdown")

	// Phase 1: Stop accepting new work
	s.config.logger.Debug("shutdown phase 1: stopping new work")

	// Call registered shutdown functions
	for _, fn := range s.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	s.shutdownFuncs = nil

	// Phase 2: Flush a final retry drain so queued payloads are not lost
	s.config.logger.Debug("shutdown phase 2: draining retry queue")

	if s.gateway != nil && s.gateway.RetryQueueLen() > 0 {
		if _, drainErr := s.gateway.ProcessRetryQueue(ctx); drainErr != nil {
			err = errors.Join(
				err,
				fmt.Errorf("retry queue drain: %w", drainErr),
			)
		}
	}

	// Phase 3: Close external clients
	s.config.logger.Debug("shutdown phase 3: closing clients")

	if s.ledgerClient != nil {
		if closeErr := s.ledgerClient.Close(); closeErr != nil {
			err = errors.Join(
				err,
				fmt.Errorf("ledger client close: %w", closeErr),
			)
		}
	}

	if s.gcsArchive != nil {
		if closeErr := s.gcsArchive.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("GCS archive close: %w", closeErr))
		}
	}

	// Phase 4: Flush state and close storage
	s.config.logger.Debug("shutdown phase 4: flushing state")

	if s.gateway != nil {
		if closeErr := s.gateway.Close(); closeErr != nil {
			err = errors.Join(
				err,
				fmt.Errorf("storage gateway close: %w", closeErr),
			)
		}
	}

	if s.store != nil {
		if closeErr := s.store.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("record store close: %w", closeErr))
		}
	}

	if s.eventBus != nil {
		s.eventBus.Stop()
	}

	s.config.logger.Debug("graceful shutdown complete")
	close(s.done)
	return err
}
