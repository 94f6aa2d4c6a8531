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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/provenlabs/sigil/metadata"
)

// PinEndpointConfig describes one remote pinning service used as a
// backup behind the primary IPFS node.
type PinEndpointConfig struct {
	Name      string
	Endpoint  string
	AuthToken string
}

type Config struct {
	promRegistry prometheus.Registerer
	logger       *slog.Logger
	dataDir      string
	// Storage
	ipfsAPIURL     string
	gatewayBaseURL string
	publicGateways []string
	pinEndpoints   []PinEndpointConfig
	gcsBucket      string
	storageTimeout time.Duration
	retryQueueSize int
	maxRetries     int
	retryDelay     time.Duration
	retryInterval  time.Duration
	// Ledger
	ledgerGatewayURL string
	operatorAccount  string
	operatorKeyFile  string
	ledgerTimeout    time.Duration
	// Minting
	tokenClassID  string
	subBatchSize  int
	batchCooldown time.Duration
	// Validation
	validationRules *metadata.Rules
	tracing         bool
	tracingStdout   bool
	shutdownTimeout time.Duration
}

func (c *Config) validate() error {
	if c.tokenClassID == "" {
		return errors.New("no token class id defined")
	}
	if c.ipfsAPIURL == "" {
		return errors.New("no IPFS API URL defined")
	}
	if c.ledgerGatewayURL == "" {
		return errors.New("no ledger gateway URL defined")
	}
	if _, err := url.Parse(c.ledgerGatewayURL); err != nil {
		return fmt.Errorf(
			"invalid ledger gateway URL: %s: %w",
			c.ledgerGatewayURL,
			err,
		)
	}
	if c.operatorAccount == "" {
		return errors.New("no operator account defined")
	}
	for _, pin := range c.pinEndpoints {
		if pin.Name == "" || pin.Endpoint == "" {
			return errors.New(
				"pin endpoint must provide both name and endpoint values",
			)
		}
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the service config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new sigil config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to. In most cases, prometheus.DefaultRegistry would be
// a good choice to get metrics working
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithDataDir specifies the persistent data directory to use. The default is to store everything in memory
func WithDataDir(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithIPFSAPIURL specifies the API endpoint of the primary IPFS node used
// for pinning certificate metadata
func WithIPFSAPIURL(apiURL string) ConfigOptionFunc {
	return func(c *Config) {
		c.ipfsAPIURL = apiURL
	}
}

// WithGatewayBaseURL specifies the preferred HTTP gateway for metadata
// retrieval. Public gateways are used as fallbacks
func WithGatewayBaseURL(baseURL string) ConfigOptionFunc {
	return func(c *Config) {
		c.gatewayBaseURL = baseURL
	}
}

// WithPublicGateways overrides the default public gateway fallback list
// used for metadata retrieval
func WithPublicGateways(gateways []string) ConfigOptionFunc {
	return func(c *Config) {
		c.publicGateways = gateways
	}
}

// WithPinEndpoints specifies remote pinning services to use as backups
// when the primary IPFS node is unavailable
func WithPinEndpoints(endpoints ...PinEndpointConfig) ConfigOptionFunc {
	return func(c *Config) {
		c.pinEndpoints = append(c.pinEndpoints, endpoints...)
	}
}

// WithGCSArchiveBucket specifies a Google Cloud Storage bucket for
// offline metadata archival. An empty string disables archival. The
// default is empty (disabled)
func WithGCSArchiveBucket(bucket string) ConfigOptionFunc {
	return func(c *Config) {
		c.gcsBucket = bucket
	}
}

// WithStorageTimeout specifies the per-attempt timeout for storage
// provider and gateway requests. The default is 30 seconds
func WithStorageTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.storageTimeout = timeout
	}
}

// WithRetryQueueSize bounds the deferred storage retry queue. The default is 256 items
func WithRetryQueueSize(size int) ConfigOptionFunc {
	return func(c *Config) {
		c.retryQueueSize = size
	}
}

// WithMaxRetries bounds how many times a failed metadata payload is
// re-attempted before being dropped. The default is 3
func WithMaxRetries(maxRetries int) ConfigOptionFunc {
	return func(c *Config) {
		c.maxRetries = maxRetries
	}
}

// WithRetryDelay specifies the pacing delay between successive attempts
// while draining the storage retry queue. The default is 5 seconds
func WithRetryDelay(delay time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.retryDelay = delay
	}
}

// WithRetryInterval specifies how often the background drain of the
// storage retry queue runs. The default is 1 minute
func WithRetryInterval(interval time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.retryInterval = interval
	}
}

// WithLedgerGatewayURL specifies the base URL of the ledger gateway API
func WithLedgerGatewayURL(gatewayURL string) ConfigOptionFunc {
	return func(c *Config) {
		c.ledgerGatewayURL = gatewayURL
	}
}

// WithOperatorAccount specifies the ledger account submitting mint and
// transfer transactions
func WithOperatorAccount(account string) ConfigOptionFunc {
	return func(c *Config) {
		c.operatorAccount = account
	}
}

// WithOperatorKeyFile specifies the path to the operator signing key
// file. The file may be sops-encrypted
func WithOperatorKeyFile(path string) ConfigOptionFunc {
	return func(c *Config) {
		c.operatorKeyFile = path
	}
}

// WithLedgerTimeout specifies the per-request timeout for ledger gateway
// calls. The default is 30 seconds
func WithLedgerTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.ledgerTimeout = timeout
	}
}

// WithTokenClassID specifies the ledger token class certificates are
// minted under
func WithTokenClassID(tokenClassID string) ConfigOptionFunc {
	return func(c *Config) {
		c.tokenClassID = tokenClassID
	}
}

// WithSubBatchSize bounds how many items of a batch mint run
// concurrently. The default is 10
func WithSubBatchSize(size int) ConfigOptionFunc {
	return func(c *Config) {
		c.subBatchSize = size
	}
}

// WithBatchCooldown specifies the delay inserted between sub-batches of
// a batch mint. The default is 2 seconds
func WithBatchCooldown(cooldown time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.batchCooldown = cooldown
	}
}

// WithValidationRules overrides the default metadata validation rules
func WithValidationRules(rules *metadata.Rules) ConfigOptionFunc {
	return func(c *Config) {
		c.validationRules = rules
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint using OTLP. This can be configured
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. The default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
