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

package node

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // #nosec G108
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/provenlabs/sigil"
	"github.com/provenlabs/sigil/internal/config"
)

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")

	shutdownTimeout := config.Duration(cfg.ShutdownTimeout, 30*time.Second)

	opts := []sigil.ConfigOptionFunc{
		sigil.WithLogger(logger),
		sigil.WithDataDir(cfg.DataDir),
		sigil.WithIPFSAPIURL(cfg.IpfsApiUrl),
		sigil.WithGatewayBaseURL(cfg.GatewayBaseUrl),
		sigil.WithPublicGateways(cfg.PublicGateways),
		sigil.WithGCSArchiveBucket(cfg.GcsBucket),
		sigil.WithStorageTimeout(
			config.Duration(cfg.StorageTimeout, 30*time.Second),
		),
		sigil.WithRetryQueueSize(cfg.RetryQueueSize),
		sigil.WithMaxRetries(cfg.MaxRetries),
		sigil.WithRetryDelay(config.Duration(cfg.RetryDelay, 5*time.Second)),
		sigil.WithRetryInterval(
			config.Duration(cfg.RetryInterval, time.Minute),
		),
		sigil.WithLedgerGatewayURL(cfg.LedgerUrl),
		sigil.WithOperatorAccount(cfg.OperatorAccount),
		sigil.WithOperatorKeyFile(cfg.OperatorKeyFile),
		sigil.WithLedgerTimeout(
			config.Duration(cfg.LedgerTimeout, 30*time.Second),
		),
		sigil.WithTokenClassID(cfg.TokenClassId),
		sigil.WithSubBatchSize(cfg.SubBatchSize),
		sigil.WithBatchCooldown(
			config.Duration(cfg.BatchCooldown, 2*time.Second),
		),
		sigil.WithShutdownTimeout(shutdownTimeout),
		sigil.WithTracing(cfg.Tracing),
		sigil.WithTracingStdout(cfg.TracingStdout),
		// Enable metrics with default prometheus registry
		sigil.WithPrometheusRegistry(prometheus.DefaultRegisterer),
	}
	for _, pin := range cfg.PinEndpoints {
		opts = append(opts, sigil.WithPinEndpoints(sigil.PinEndpointConfig{
			Name:      pin.Name,
			Endpoint:  pin.Endpoint,
			AuthToken: pin.AuthToken,
		}))
	}
	svc, err := sigil.New(sigil.NewConfig(opts...))
	if err != nil {
		return err
	}
	// Metrics and debug listener
	http.Handle("/metrics", promhttp.Handler())
	logger.Info(
		"serving prometheus metrics on "+fmt.Sprintf(
			"%s:%d",
			cfg.BindAddr,
			cfg.MetricsPort,
		),
		"component",
		"node",
	)
	metricsServer := &http.Server{
		Addr: fmt.Sprintf(
			"%s:%d",
			cfg.BindAddr,
			cfg.MetricsPort,
		),
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			logger.Error(
				fmt.Sprintf("failed to start metrics listener: %s", err),
				"component", "node",
			)
			os.Exit(1)
		}
	}()
	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	// Run service in goroutine
	errChan := make(chan error, 1)
	go func() {
		//nolint:contextcheck
		err := svc.Run(signalCtx)
		select {
		case errChan <- err:
		case <-signalCtx.Done():
		}
	}()

	// Wait for signal or error
	select {
	case <-signalCtx.Done():
		logger.Info("signal received, initiating graceful shutdown")

		// Shutdown metrics server
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}

		// Shutdown service
		if err := svc.Stop(); err != nil {
			logger.Error("shutdown errors occurred", "error", err)
			return err
		}
		logger.Info("shutdown complete")
		return nil

	case err := <-errChan:
		if err == nil {
			logger.Info("service stopped")
			// Graceful cleanup
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				shutdownTimeout,
			)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown error", "error", err)
			}
			if err := svc.Stop(); err != nil {
				logger.Error("shutdown errors occurred", "error", err)
				return err
			}
			return nil
		}
		logger.Error("service error", "error", err)
		signalCtxStop()

		// Shutdown service resources
		if stopErr := svc.Stop(); stopErr != nil {
			logger.Error(
				"shutdown errors occurred during error cleanup",
				"error",
				stopErr,
			)
		}

		// Cleanup on error
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		if shutdownErr := metricsServer.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Error("metrics server shutdown error", "error", shutdownErr)
		}

		return err
	}
}
