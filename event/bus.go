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

package event

import (
	"io"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// SubscriberQueueSize is the buffer size of each subscriber channel. A
// subscriber that falls this far behind starts losing events rather than
// stalling the publisher.
const SubscriberQueueSize = 32

type SubscriberID int

type HandlerFunc func(Event)

type busMetrics struct {
	published   *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	subscribers *prometheus.GaugeVec
}

func newBusMetrics(registry prometheus.Registerer) *busMetrics {
	m := &busMetrics{
		published: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigil_events_published_total",
				Help: "Total lifecycle events published by type",
			},
			[]string{"type"},
		),
		dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigil_events_dropped_total",
				Help: "Events dropped due to slow or closed subscribers",
			},
			[]string{"type"},
		),
		subscribers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sigil_event_subscribers",
				Help: "Current subscriber count by event type",
			},
			[]string{"type"},
		),
	}
	registry.MustRegister(m.published, m.dropped, m.subscribers)
	return m
}

// Bus delivers typed lifecycle events to subscribers. Delivery is
// best-effort and fire-and-forget: a slow subscriber loses events and a
// closed subscriber is skipped, but publishing never blocks or fails.
type Bus struct {
	logger  *slog.Logger
	metrics *busMetrics
	subs    map[Type]map[SubscriberID]chan Event
	lastID  SubscriberID
	mu      sync.Mutex
	wg      sync.WaitGroup
	stopped bool
}

// NewBus creates an event bus. Metrics are registered when promRegistry is
// non-nil.
func NewBus(logger *slog.Logger, promRegistry prometheus.Registerer) *Bus {
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	b := &Bus{
		logger: logger,
		subs:   make(map[Type]map[SubscriberID]chan Event),
	}
	if promRegistry != nil {
		b.metrics = newBusMetrics(promRegistry)
	}
	return b
}

// Subscribe registers a channel subscriber for the given event type
func (b *Bus) Subscribe(eventType Type) (SubscriberID, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastID++
	subID := b.lastID
	ch := make(chan Event, SubscriberQueueSize)
	if _, ok := b.subs[eventType]; !ok {
		b.subs[eventType] = make(map[SubscriberID]chan Event)
	}
	b.subs[eventType][subID] = ch
	if b.metrics != nil {
		b.metrics.subscribers.WithLabelValues(string(eventType)).Inc()
	}
	return subID, ch
}

// SubscribeFunc registers a callback subscriber for the given event type.
// The callback runs on a dedicated goroutine; a panicking callback is
// logged and unsubscribed rather than propagated.
func (b *Bus) SubscribeFunc(
	eventType Type,
	handlerFunc HandlerFunc,
) SubscriberID {
	subID, ch := b.Subscribe(eventType)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for evt := range ch {
			b.deliver(eventType, subID, handlerFunc, evt)
		}
	}()
	return subID
}

func (b *Bus) deliver(
	eventType Type,
	subID SubscriberID,
	handlerFunc HandlerFunc,
	evt Event,
) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn(
				"event subscriber panicked, unsubscribing",
				"type", eventType,
				"panic", r,
			)
			go b.Unsubscribe(eventType, subID)
		}
	}()
	handlerFunc(evt)
}

// Unsubscribe removes a subscriber and closes its channel
func (b *Bus) Unsubscribe(eventType Type, subID SubscriberID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	typeSubs, ok := b.subs[eventType]
	if !ok {
		return
	}
	ch, ok := typeSubs[subID]
	if !ok {
		return
	}
	delete(typeSubs, subID)
	if len(typeSubs) == 0 {
		delete(b.subs, eventType)
	}
	close(ch)
	if b.metrics != nil {
		b.metrics.subscribers.WithLabelValues(string(eventType)).Dec()
	}
}

// Publish sends an event to all subscribers of its type. Sends are
// non-blocking; events to full subscriber channels are dropped and
// counted.
func (b *Bus) Publish(eventType Type, data any) {
	evt := New(eventType, data)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	for _, ch := range b.subs[eventType] {
		select {
		case ch <- evt:
		default:
			if b.metrics != nil {
				b.metrics.dropped.WithLabelValues(string(eventType)).Inc()
			}
			b.logger.Debug(
				"subscriber queue full, dropping event",
				"type", eventType,
			)
		}
	}
	if b.metrics != nil {
		b.metrics.published.WithLabelValues(string(eventType)).Inc()
	}
}

// Stop closes all subscriber channels and waits for callback goroutines to
// exit. The bus cannot be reused after Stop.
func (b *Bus) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	for _, typeSubs := range b.subs {
		for _, ch := range typeSubs {
			close(ch)
		}
	}
	b.subs = make(map[Type]map[SubscriberID]chan Event)
	if b.metrics != nil {
		b.metrics.subscribers.Reset()
	}
	b.mu.Unlock()
	b.wg.Wait()
}
