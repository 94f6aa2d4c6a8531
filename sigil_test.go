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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testService(t *testing.T) *Service {
	t.Helper()
	svc, err := New(NewConfig(
		WithIPFSAPIURL("http://localhost:5001"),
		WithLedgerGatewayURL("https://ledger.example.com"),
		WithOperatorAccount("0.0.12345"),
		WithTokenClassID("0.0.67890"),
	))
	require.NoError(t, err)
	return svc
}

func TestRunReturnsOnContextCancel(t *testing.T) {
	svc := testService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// With the context already cancelled, Run wires the service and then
	// shuts it straight back down instead of blocking on Stop
	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Run(ctx)
	}()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	// Shutdown already ran; a later Stop is a no-op
	assert.NoError(t, svc.Stop())
}
