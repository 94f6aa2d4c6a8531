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
	"sync"
	"time"
)

const (
	DefaultRetryQueueSize   = 256
	DefaultRetryMaxAttempts = 3
)

// RetryItem is a metadata payload whose persistence is deferred for a
// later re-attempt
type RetryItem struct {
	Name       string
	Payload    []byte
	Attempts   int
	EnqueuedAt time.Time
}

// RetryQueue is a bounded FIFO queue of deferred storage payloads. It is
// owned by a single Gateway; draining happens only by explicit invocation.
type RetryQueue struct {
	mu          sync.Mutex
	items       []*RetryItem
	maxSize     int
	maxAttempts int
	// items rejected because the queue was full
	overflow int
	// items dropped after exhausting their attempts
	exhausted int
}

// NewRetryQueue creates a bounded retry queue
func NewRetryQueue(maxSize, maxAttempts int) *RetryQueue {
	if maxSize <= 0 {
		maxSize = DefaultRetryQueueSize
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultRetryMaxAttempts
	}
	return &RetryQueue{
		maxSize:     maxSize,
		maxAttempts: maxAttempts,
	}
}

// Enqueue adds an item to the queue. Returns false when the queue is full
// or the item has already exhausted its attempts; exhausted items are
// counted as permanently failed.
func (q *RetryQueue) Enqueue(item *RetryItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if item.Attempts >= q.maxAttempts {
		q.exhausted++
		return false
	}
	if len(q.items) >= q.maxSize {
		q.overflow++
		return false
	}
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = time.Now()
	}
	q.items = append(q.items, item)
	return true
}

// Dequeue pops the oldest item, or nil when the queue is empty
func (q *RetryQueue) Dequeue() *RetryItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item
}

// Len returns the current queue depth
func (q *RetryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// MaxAttempts returns the configured per-item attempt ceiling
func (q *RetryQueue) MaxAttempts() int {
	return q.maxAttempts
}

// Exhausted returns the count of items dropped after exceeding their
// attempt ceiling
func (q *RetryQueue) Exhausted() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.exhausted
}

// Overflow returns the count of items rejected because the queue was full
func (q *RetryQueue) Overflow() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.overflow
}
