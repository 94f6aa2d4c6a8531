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
	"fmt"
	"log/slog"
	"time"
)

// Status is the ledger's disposition of a submitted operation
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// MintResult is the ledger's response to a mint submission
type MintResult struct {
	TransactionID      string
	Status             Status
	Serials            []uint64
	ConsensusTimestamp time.Time
	FeeCharged         float64
}

// TransferResult is the ledger's response to a transfer submission
type TransferResult struct {
	TransactionID      string
	Status             Status
	ConsensusTimestamp time.Time
	FeeCharged         float64
}

// Ownership reports who holds a given serial of a token class
type Ownership struct {
	OwnerAccount string
	IsOwned      bool
}

// Error is returned when the ledger reports a non-success status or the
// submission itself fails
type Error struct {
	Status  string
	Message string
}

func (e *Error) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("ledger error (%s): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("ledger error: %s", e.Message)
}

// Client is the ledger collaborator interface. The ledger is consumed as
// an opaque service over its existing protocol; implementations are
// expected to apply a per-call timeout.
type Client interface {
	// SubmitMint mints new serials under the given token class
	SubmitMint(
		ctx context.Context,
		tokenClassID string,
		metadataBytes []byte,
		memo string,
		maxFee float64,
	) (*MintResult, error)

	// SubmitTransfer moves a serial between accounts
	SubmitTransfer(
		ctx context.Context,
		tokenID string,
		serial uint64,
		fromAccount string,
		toAccount string,
		maxFee float64,
	) (*TransferResult, error)

	// QueryOwnership reports the holder of a serial
	QueryOwnership(
		ctx context.Context,
		tokenID string,
		serial uint64,
	) (*Ownership, error)

	// AccountBalance returns the spendable balance of an account
	AccountBalance(ctx context.Context, accountID string) (float64, error)

	// Close releases client resources
	Close() error
}

// Backend selects the ledger client implementation
type Backend string

const (
	BackendGateway Backend = "gateway"
)

// Config holds the ledger client configuration
type Config struct {
	Logger          *slog.Logger
	Backend         Backend
	GatewayURL      string
	OperatorAccount string
	// OperatorKeyFile points at the operator signing key, optionally
	// sops-encrypted
	OperatorKeyFile string
	Timeout         time.Duration
}

// NewClient creates a ledger client for the configured backend
func NewClient(cfg Config) (Client, error) {
	switch cfg.Backend {
	case BackendGateway, "":
		return NewGatewayClient(cfg)
	default:
		return nil, fmt.Errorf("unknown ledger backend: %s", cfg.Backend)
	}
}
