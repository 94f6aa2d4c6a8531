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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryQueueFIFO(t *testing.T) {
	q := NewRetryQueue(10, 3)
	for i := range 3 {
		ok := q.Enqueue(&RetryItem{
			Name:    fmt.Sprintf("item-%d", i),
			Payload: []byte{byte(i)},
		})
		require.True(t, ok)
	}
	assert.Equal(t, 3, q.Len())
	for i := range 3 {
		item := q.Dequeue()
		require.NotNil(t, item)
		assert.Equal(t, fmt.Sprintf("item-%d", i), item.Name)
	}
	assert.Nil(t, q.Dequeue())
}

func TestRetryQueueBounded(t *testing.T) {
	q := NewRetryQueue(2, 3)
	assert.True(t, q.Enqueue(&RetryItem{Name: "a"}))
	assert.True(t, q.Enqueue(&RetryItem{Name: "b"}))
	assert.False(t, q.Enqueue(&RetryItem{Name: "c"}))
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 1, q.Overflow())
}

func TestRetryQueueRejectsExhaustedItems(t *testing.T) {
	q := NewRetryQueue(10, 2)
	assert.True(t, q.Enqueue(&RetryItem{Name: "a", Attempts: 1}))
	assert.False(t, q.Enqueue(&RetryItem{Name: "b", Attempts: 2}))
	assert.False(t, q.Enqueue(&RetryItem{Name: "c", Attempts: 5}))
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, 2, q.Exhausted())
}

func TestRetryQueueStampsEnqueuedAt(t *testing.T) {
	q := NewRetryQueue(10, 3)
	require.True(t, q.Enqueue(&RetryItem{Name: "a"}))
	item := q.Dequeue()
	require.NotNil(t, item)
	assert.False(t, item.EnqueuedAt.IsZero())
}

func TestRetryQueueDefaults(t *testing.T) {
	q := NewRetryQueue(0, 0)
	assert.Equal(t, DefaultRetryMaxAttempts, q.MaxAttempts())
	assert.True(t, q.Enqueue(&RetryItem{Name: "a"}))
}
