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

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/provenlabs/sigil/metadata"
)

var (
	// ErrStoreFailed is returned when every configured provider failed
	ErrStoreFailed = errors.New("all storage providers failed")
	// ErrRetrieveFailed is returned when every gateway failed
	ErrRetrieveFailed = errors.New("all storage gateways failed")
)

// DefaultPublicGateways are the public retrieval endpoints tried after the
// primary gateway
func DefaultPublicGateways() []string {
	return []string{
		"https://ipfs.io",
		"https://cloudflare-ipfs.com",
		"https://dweb.link",
	}
}

const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultRetryDelay     = 2 * time.Second
)

// StorageResult describes a successful metadata persistence
type StorageResult struct {
	CID        string
	GatewayURL string
	Provider   string
	Size       int
	Success    bool
	Timestamp  time.Time
}

// RetrievalResult carries content fetched back from the storage network.
// Valid is false when an expected hash was supplied and did not match; the
// content is still returned and disposition is the caller's decision.
type RetrievalResult struct {
	Metadata *metadata.CertificateMetadata
	Raw      []byte
	CID      string
	Source   string
	Valid    bool
}

// StoreOptions controls a single store call
type StoreOptions struct {
	// Name labels the pinned content
	Name string
	// UseBackups enables the ordered backup provider chain
	UseBackups bool
	// RetryOnFailure queues the payload for deferred re-attempts when
	// every provider fails
	RetryOnFailure bool
}

// RetryStats summarizes one drain of the retry queue
type RetryStats struct {
	Attempted int
	Succeeded int
	Requeued  int
	Dropped   int
}

// Config holds the gateway configuration
type Config struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	// Primary is tried first on every store
	Primary Provider
	// Backups are tried in order after the primary fails
	Backups []Provider
	// GatewayBaseURL is the primary retrieval endpoint
	GatewayBaseURL string
	// PublicGateways are retrieval fallbacks, tried in order
	PublicGateways []string
	// Cache is the optional local payload cache
	Cache          *ContentCache
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	RetryQueueSize int
	// MaxRetries bounds per-item re-attempts from the retry queue
	MaxRetries int
	// RetryDelay paces successive attempts while draining the queue
	RetryDelay time.Duration
}

type gatewayMetrics struct {
	storeAttempts *prometheus.CounterVec
	queueDepth    prometheus.GaugeFunc
	queueDropped  prometheus.CounterFunc
}

// Gateway persists certificate metadata to a content-addressed storage
// network through a primary provider with ordered backups, and retrieves
// it back through a gateway chain. It owns its retry queue and health map
// for its lifetime.
type Gateway struct {
	logger     *slog.Logger
	primary    Provider
	backups    []Provider
	gatewayURL string
	publicGWs  []string
	cache      *ContentCache
	httpClient *http.Client
	timeout    time.Duration
	retryDelay time.Duration
	queue      *RetryQueue
	health     *healthTracker
	metrics    *gatewayMetrics
}

// NewGateway creates a storage gateway
func NewGateway(cfg Config) (*Gateway, error) {
	if cfg.Primary == nil {
		return nil, errors.New("a primary storage provider is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if len(cfg.PublicGateways) == 0 {
		cfg.PublicGateways = DefaultPublicGateways()
	}
	g := &Gateway{
		logger:     cfg.Logger,
		primary:    cfg.Primary,
		backups:    cfg.Backups,
		gatewayURL: strings.TrimRight(cfg.GatewayBaseURL, "/"),
		publicGWs:  cfg.PublicGateways,
		cache:      cfg.Cache,
		httpClient: cfg.HTTPClient,
		timeout:    cfg.RequestTimeout,
		retryDelay: cfg.RetryDelay,
		queue:      NewRetryQueue(cfg.RetryQueueSize, cfg.MaxRetries),
		health:     newHealthTracker(),
	}
	if cfg.PromRegistry != nil {
		g.initMetrics(cfg.PromRegistry)
	}
	return g, nil
}

func (g *Gateway) initMetrics(registry prometheus.Registerer) {
	g.metrics = &gatewayMetrics{
		storeAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigil_storage_store_attempts_total",
				Help: "Store attempts by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		queueDepth: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "sigil_storage_retry_queue_depth",
				Help: "Current retry queue depth",
			},
			func() float64 { return float64(g.queue.Len()) },
		),
		queueDropped: prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Name: "sigil_storage_retry_dropped_total",
				Help: "Retry items dropped after exhausting attempts",
			},
			func() float64 { return float64(g.queue.Exhausted()) },
		),
	}
	registry.MustRegister(
		g.metrics.storeAttempts,
		g.metrics.queueDepth,
		g.metrics.queueDropped,
	)
}

// Store persists certificate metadata, trying the primary provider first
// and then each enabled backup in order. When every provider fails and
// opts.RetryOnFailure is set, the payload is queued for a deferred
// re-attempt before the error is returned.
func (g *Gateway) Store(
	ctx context.Context,
	md *metadata.CertificateMetadata,
	opts StoreOptions,
) (*StorageResult, error) {
	payload, err := metadata.CanonicalBytes(md)
	if err != nil {
		return nil, err
	}
	result, err := g.storePayload(ctx, opts.Name, payload, opts.UseBackups)
	if err != nil {
		if opts.RetryOnFailure {
			queued := g.queue.Enqueue(&RetryItem{
				Name:    opts.Name,
				Payload: payload,
			})
			g.logger.Warn(
				"metadata store failed, queued for retry",
				"name", opts.Name,
				"queued", queued,
				"error", err,
			)
		}
		return nil, err
	}
	return result, nil
}

func (g *Gateway) storePayload(
	ctx context.Context,
	name string,
	payload []byte,
	useBackups bool,
) (*StorageResult, error) {
	providers := []Provider{g.primary}
	if useBackups {
		providers = append(providers, g.backups...)
	}
	var errs []error
	for _, provider := range providers {
		cid, err := g.pinWith(ctx, provider, name, payload)
		if err != nil {
			errs = append(
				errs,
				fmt.Errorf("%s: %w", provider.Name(), err),
			)
			continue
		}
		if g.cache != nil {
			g.cache.Put(cid, payload)
		}
		return &StorageResult{
			CID:        cid,
			GatewayURL: g.contentURL(g.gatewayURL, cid),
			Provider:   provider.Name(),
			Size:       len(payload),
			Success:    true,
			Timestamp:  time.Now(),
		}, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrStoreFailed, errors.Join(errs...))
}

func (g *Gateway) pinWith(
	ctx context.Context,
	provider Provider,
	name string,
	payload []byte,
) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	start := time.Now()
	cid, err := provider.Pin(attemptCtx, name, payload)
	g.health.record(provider.Name(), time.Since(start), err)
	if g.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		g.metrics.storeAttempts.
			WithLabelValues(provider.Name(), outcome).
			Inc()
	}
	return cid, err
}

// Retrieve fetches content by its content id, preferring the local cache,
// then the primary gateway, then each public backup gateway in order. When
// expectedHash is non-empty the content is re-hashed canonically and
// compared; a mismatch sets Valid to false without suppressing the content.
func (g *Gateway) Retrieve(
	ctx context.Context,
	cid string,
	expectedHash string,
) (*RetrievalResult, error) {
	raw, source, err := g.fetch(ctx, cid)
	if err != nil {
		return nil, err
	}
	result := &RetrievalResult{
		Raw:    raw,
		CID:    cid,
		Source: source,
		Valid:  true,
	}
	var md metadata.CertificateMetadata
	if err := json.Unmarshal(raw, &md); err == nil {
		result.Metadata = &md
	}
	if expectedHash != "" {
		actual, err := metadata.CanonicalHashBytes(raw)
		if err != nil || actual != expectedHash {
			result.Valid = false
		}
	}
	return result, nil
}

func (g *Gateway) fetch(
	ctx context.Context,
	cid string,
) ([]byte, string, error) {
	if g.cache != nil {
		if payload, ok := g.cache.Get(cid); ok {
			return payload, "cache", nil
		}
	}
	gateways := make([]string, 0, len(g.publicGWs)+1)
	if g.gatewayURL != "" {
		gateways = append(gateways, g.gatewayURL)
	}
	gateways = append(gateways, g.publicGWs...)
	var errs []error
	for _, gw := range gateways {
		raw, err := g.fetchFrom(ctx, gw, cid)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", gw, err))
			continue
		}
		if g.cache != nil {
			g.cache.Put(cid, raw)
		}
		return raw, gw, nil
	}
	return nil, "", fmt.Errorf(
		"%w: %w",
		ErrRetrieveFailed,
		errors.Join(errs...),
	)
}

func (g *Gateway) fetchFrom(
	ctx context.Context,
	gatewayBase string,
	cid string,
) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	url := g.contentURL(gatewayBase, cid)
	req, err := http.NewRequestWithContext(
		attemptCtx,
		http.MethodGet,
		url,
		nil,
	)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.health.record(gatewayBase, time.Since(start), err)
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("gateway returned %s", resp.Status)
		g.health.record(gatewayBase, time.Since(start), err)
		return nil, err
	}
	raw, err := io.ReadAll(resp.Body)
	g.health.record(gatewayBase, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (g *Gateway) contentURL(gatewayBase, cid string) string {
	if gatewayBase == "" {
		return ""
	}
	return strings.TrimRight(gatewayBase, "/") + "/ipfs/" + cid
}

// ProcessRetryQueue drains the retry queue, re-attempting each deferred
// payload once. Failed items are re-enqueued with an incremented attempt
// counter until they exhaust the configured maximum, after which they are
// dropped and counted as permanently failed. A fixed delay is inserted
// between attempts to avoid hammering the storage network. Draining is
// pull-based: it only happens when a caller invokes this method.
func (g *Gateway) ProcessRetryQueue(ctx context.Context) (RetryStats, error) {
	var stats RetryStats
	pacer := backoff.NewConstantBackOff(g.retryDelay)
	// Bound this drain to the items currently queued so re-enqueued
	// failures wait for the next invocation
	for remaining := g.queue.Len(); remaining > 0; remaining-- {
		item := g.queue.Dequeue()
		if item == nil {
			break
		}
		if stats.Attempted > 0 {
			select {
			case <-ctx.Done():
				// Put the item back for the next drain
				g.queue.Enqueue(item)
				return stats, ctx.Err()
			case <-time.After(pacer.NextBackOff()):
			}
		}
		stats.Attempted++
		_, err := g.storePayload(ctx, item.Name, item.Payload, true)
		if err == nil {
			stats.Succeeded++
			continue
		}
		item.Attempts++
		if g.queue.Enqueue(item) {
			stats.Requeued++
		} else {
			stats.Dropped++
			g.logger.Warn(
				"retry item dropped after exhausting attempts",
				"name", item.Name,
				"attempts", item.Attempts,
			)
		}
	}
	return stats, nil
}

// RetryQueueLen returns the current retry queue depth
func (g *Gateway) RetryQueueLen() int {
	return g.queue.Len()
}

// Health returns the last-observed health of every provider and gateway
// this instance has talked to. Purely observational; health never gates
// future attempts.
func (g *Gateway) Health() []GatewayHealth {
	return g.health.snapshot()
}

// Close releases the gateway's local resources
func (g *Gateway) Close() error {
	if g.cache != nil {
		return g.cache.Close()
	}
	return nil
}
