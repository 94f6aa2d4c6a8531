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

package ledger

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) *GatewayClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewGatewayClient(Config{
		GatewayURL:      server.URL,
		OperatorAccount: "0.0.1001",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestSubmitMint(t *testing.T) {
	metadataBytes := []byte(`{"name":"Authenticity Certificate"}`)
	client := testClient(t, http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/tokens/0.0.500/mint", r.URL.Path)
			assert.Equal(
				t,
				"application/json",
				r.Header.Get("Content-Type"),
			)
			var req mintRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "0.0.1001", req.Operator)
			assert.Equal(
				t,
				base64.StdEncoding.EncodeToString(metadataBytes),
				req.Metadata,
			)
			assert.Equal(t, "first mint", req.Memo)
			assert.InDelta(t, 0.1, req.MaxFee, 1e-9)
			_ = json.NewEncoder(w).Encode(mintResponse{
				TransactionID:      "0.0.1001@1750000000.000000001",
				Status:             "success",
				Serials:            []uint64{7},
				ConsensusTimestamp: "2025-06-15T12:00:00.000000001Z",
				FeeCharged:         0.05,
			})
		},
	))

	result, err := client.SubmitMint(
		context.Background(),
		"0.0.500",
		metadataBytes,
		"first mint",
		0.1,
	)
	require.NoError(t, err)
	assert.Equal(t, "0.0.1001@1750000000.000000001", result.TransactionID)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, []uint64{7}, result.Serials)
	assert.InDelta(t, 0.05, result.FeeCharged, 1e-9)
	assert.False(t, result.ConsensusTimestamp.IsZero())
}

func TestSubmitMintGatewayRejection(t *testing.T) {
	client := testClient(t, http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(mintResponse{
				Status: "INSUFFICIENT_PAYER_BALANCE",
				Error:  "payer account cannot afford the transaction",
			})
		},
	))

	_, err := client.SubmitMint(
		context.Background(),
		"0.0.500",
		[]byte("{}"),
		"",
		0.1,
	)
	var ledgerErr *Error
	require.ErrorAs(t, err, &ledgerErr)
	assert.Equal(t, "INSUFFICIENT_PAYER_BALANCE", ledgerErr.Status)
	assert.Contains(t, ledgerErr.Message, "cannot afford")
}

func TestSubmitMintHTTPError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		},
	))

	_, err := client.SubmitMint(
		context.Background(),
		"0.0.500",
		[]byte("{}"),
		"",
		0.1,
	)
	var ledgerErr *Error
	require.ErrorAs(t, err, &ledgerErr)
	assert.Contains(t, ledgerErr.Status, "502")
	assert.Equal(t, "upstream unavailable", ledgerErr.Message)
}

func TestSubmitMintInvalidResponse(t *testing.T) {
	client := testClient(t, http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		},
	))

	_, err := client.SubmitMint(
		context.Background(),
		"0.0.500",
		[]byte("{}"),
		"",
		0.1,
	)
	var ledgerErr *Error
	require.ErrorAs(t, err, &ledgerErr)
	assert.Contains(t, ledgerErr.Message, "invalid gateway response")
}

func TestSubmitTransfer(t *testing.T) {
	client := testClient(t, http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/tokens/0.0.500/transfer", r.URL.Path)
			var req transferRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, uint64(7), req.Serial)
			assert.Equal(t, "0.0.2002", req.FromAccount)
			assert.Equal(t, "0.0.3003", req.ToAccount)
			_ = json.NewEncoder(w).Encode(transferResponse{
				TransactionID: "0.0.1001@1750000099.000000001",
				Status:        "success",
				FeeCharged:    0.001,
			})
		},
	))

	result, err := client.SubmitTransfer(
		context.Background(),
		"0.0.500",
		7,
		"0.0.2002",
		"0.0.3003",
		0.01,
	)
	require.NoError(t, err)
	assert.Equal(t, "0.0.1001@1750000099.000000001", result.TransactionID)
	assert.InDelta(t, 0.001, result.FeeCharged, 1e-9)
}

func TestQueryOwnership(t *testing.T) {
	client := testClient(t, http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(
				t,
				"/v1/tokens/0.0.500/serials/7/owner",
				r.URL.Path,
			)
			_ = json.NewEncoder(w).Encode(ownershipResponse{
				OwnerAccount: "0.0.2002",
				IsOwned:      true,
			})
		},
	))

	ownership, err := client.QueryOwnership(context.Background(), "0.0.500", 7)
	require.NoError(t, err)
	assert.Equal(t, "0.0.2002", ownership.OwnerAccount)
	assert.True(t, ownership.IsOwned)
}

func TestAccountBalance(t *testing.T) {
	client := testClient(t, http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/accounts/0.0.1001/balance", r.URL.Path)
			_ = json.NewEncoder(w).Encode(balanceResponse{Balance: 42.5})
		},
	))

	balance, err := client.AccountBalance(context.Background(), "0.0.1001")
	require.NoError(t, err)
	assert.InDelta(t, 42.5, balance, 1e-9)
}

func TestOperatorKeyForwardedAsBearer(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "operator.key")
	require.NoError(
		t,
		os.WriteFile(keyFile, []byte("302e020100300506032b657004\n"), 0o600),
	)

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			_ = json.NewEncoder(w).Encode(balanceResponse{Balance: 1})
		},
	))
	defer server.Close()

	client, err := NewGatewayClient(Config{
		GatewayURL:      server.URL,
		OperatorAccount: "0.0.1001",
		OperatorKeyFile: keyFile,
	})
	require.NoError(t, err)
	defer client.Close()

	_, err = client.AccountBalance(context.Background(), "0.0.1001")
	require.NoError(t, err)
	assert.Equal(t, "Bearer 302e020100300506032b657004", gotAuth)
}

func TestLoadOperatorKeyPlaintext(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "operator.key")
	require.NoError(
		t,
		os.WriteFile(keyFile, []byte("  raw-key-material \n"), 0o600),
	)

	key, err := LoadOperatorKey(keyFile)
	require.NoError(t, err)
	assert.Equal(t, "raw-key-material", key)
}

func TestLoadOperatorKeyMissingFile(t *testing.T) {
	_, err := LoadOperatorKey(filepath.Join(t.TempDir(), "absent.key"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read operator key file")
}

func TestNewGatewayClientRequiresURL(t *testing.T) {
	_, err := NewGatewayClient(Config{})
	require.Error(t, err)
}

func TestNewClientBackendSelection(t *testing.T) {
	client, err := NewClient(Config{GatewayURL: "http://localhost:8080"})
	require.NoError(t, err)
	require.NotNil(t, client)
	_ = client.Close()

	_, err = NewClient(Config{
		Backend:    "mirror",
		GatewayURL: "http://localhost:8080",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown ledger backend")
}

func TestErrorString(t *testing.T) {
	withStatus := &Error{Status: "TIMEOUT", Message: "deadline exceeded"}
	assert.Equal(
		t,
		"ledger error (TIMEOUT): deadline exceeded",
		withStatus.Error(),
	)
	bare := &Error{Message: "connection refused"}
	assert.Equal(t, "ledger error: connection refused", bare.Error())
}
