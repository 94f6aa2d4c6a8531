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
	"sort"
	"sync"
	"time"
)

// GatewayHealth is the last-observed health of a storage provider or
// retrieval gateway. It is observational only and never gates attempts.
type GatewayHealth struct {
	Provider    string
	Available   bool
	Latency     time.Duration
	LastError   string
	LastChecked time.Time
}

type healthTracker struct {
	mu      sync.Mutex
	records map[string]GatewayHealth
}

func newHealthTracker() *healthTracker {
	return &healthTracker{
		records: make(map[string]GatewayHealth),
	}
}

func (t *healthTracker) record(
	provider string,
	latency time.Duration,
	err error,
) {
	t.mu.Lock()
	defer t.mu.Unlock()
	health := GatewayHealth{
		Provider:    provider,
		Available:   err == nil,
		Latency:     latency,
		LastChecked: time.Now(),
	}
	if err != nil {
		health.LastError = err.Error()
	}
	t.records[provider] = health
}

func (t *healthTracker) snapshot() []GatewayHealth {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]GatewayHealth, 0, len(t.records))
	for _, health := range t.records {
		out = append(out, health)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Provider < out[j].Provider
	})
	return out
}
