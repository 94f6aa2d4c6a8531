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
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const DefaultTimeout = 30 * time.Second

// GatewayClient submits ledger operations to an HTTP JSON gateway that
// fronts the ledger network. Every call carries an explicit timeout; a
// timeout is treated as a failed submission by the caller.
type GatewayClient struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
	operator   string
	// operator signing key, forwarded to the gateway which performs the
	// actual transaction signing
	operatorKey string
	timeout     time.Duration
}

// NewGatewayClient creates a gateway-backed ledger client
func NewGatewayClient(cfg Config) (*GatewayClient, error) {
	if cfg.GatewayURL == "" {
		return nil, errors.New("ledger gateway URL is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	var operatorKey string
	if cfg.OperatorKeyFile != "" {
		key, err := LoadOperatorKey(cfg.OperatorKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load operator key: %w", err)
		}
		operatorKey = key
	}
	return &GatewayClient{
		logger:      cfg.Logger,
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(cfg.GatewayURL, "/"),
		operator:    cfg.OperatorAccount,
		operatorKey: operatorKey,
		timeout:     timeout,
	}, nil
}

type mintRequest struct {
	Operator string  `json:"operator"`
	Metadata string  `json:"metadata"`
	Memo     string  `json:"memo,omitempty"`
	MaxFee   float64 `json:"maxFee"`
}

type mintResponse struct {
	TransactionID      string   `json:"transactionId"`
	Status             string   `json:"status"`
	Serials            []uint64 `json:"serials"`
	ConsensusTimestamp string   `json:"consensusTimestamp"`
	FeeCharged         float64  `json:"feeCharged"`
	Error              string   `json:"error,omitempty"`
}

func (c *GatewayClient) SubmitMint(
	ctx context.Context,
	tokenClassID string,
	metadataBytes []byte,
	memo string,
	maxFee float64,
) (*MintResult, error) {
	req := mintRequest{
		Operator: c.operator,
		Metadata: base64.StdEncoding.EncodeToString(metadataBytes),
		Memo:     memo,
		MaxFee:   maxFee,
	}
	var resp mintResponse
	err := c.post(
		ctx,
		fmt.Sprintf("/v1/tokens/%s/mint", tokenClassID),
		req,
		&resp,
	)
	if err != nil {
		return nil, err
	}
	if Status(resp.Status) != StatusSuccess {
		return nil, &Error{Status: resp.Status, Message: resp.Error}
	}
	consensus, _ := time.Parse(time.RFC3339Nano, resp.ConsensusTimestamp)
	return &MintResult{
		TransactionID:      resp.TransactionID,
		Status:             StatusSuccess,
		Serials:            resp.Serials,
		ConsensusTimestamp: consensus,
		FeeCharged:         resp.FeeCharged,
	}, nil
}

type transferRequest struct {
	Operator    string  `json:"operator"`
	Serial      uint64  `json:"serial"`
	FromAccount string  `json:"fromAccount"`
	ToAccount   string  `json:"toAccount"`
	MaxFee      float64 `json:"maxFee"`
}

type transferResponse struct {
	TransactionID      string  `json:"transactionId"`
	Status             string  `json:"status"`
	ConsensusTimestamp string  `json:"consensusTimestamp"`
	FeeCharged         float64 `json:"feeCharged"`
	Error              string  `json:"error,omitempty"`
}

func (c *GatewayClient) SubmitTransfer(
	ctx context.Context,
	tokenID string,
	serial uint64,
	fromAccount string,
	toAccount string,
	maxFee float64,
) (*TransferResult, error) {
	req := transferRequest{
		Operator:    c.operator,
		Serial:      serial,
		FromAccount: fromAccount,
		ToAccount:   toAccount,
		MaxFee:      maxFee,
	}
	var resp transferResponse
	err := c.post(
		ctx,
		fmt.Sprintf("/v1/tokens/%s/transfer", tokenID),
		req,
		&resp,
	)
	if err != nil {
		return nil, err
	}
	if Status(resp.Status) != StatusSuccess {
		return nil, &Error{Status: resp.Status, Message: resp.Error}
	}
	consensus, _ := time.Parse(time.RFC3339Nano, resp.ConsensusTimestamp)
	return &TransferResult{
		TransactionID:      resp.TransactionID,
		Status:             StatusSuccess,
		ConsensusTimestamp: consensus,
		FeeCharged:         resp.FeeCharged,
	}, nil
}

type ownershipResponse struct {
	OwnerAccount string `json:"ownerAccount"`
	IsOwned      bool   `json:"isOwned"`
}

func (c *GatewayClient) QueryOwnership(
	ctx context.Context,
	tokenID string,
	serial uint64,
) (*Ownership, error) {
	var resp ownershipResponse
	err := c.get(
		ctx,
		fmt.Sprintf("/v1/tokens/%s/serials/%d/owner", tokenID, serial),
		&resp,
	)
	if err != nil {
		return nil, err
	}
	return &Ownership{
		OwnerAccount: resp.OwnerAccount,
		IsOwned:      resp.IsOwned,
	}, nil
}

type balanceResponse struct {
	Balance float64 `json:"balance"`
}

func (c *GatewayClient) AccountBalance(
	ctx context.Context,
	accountID string,
) (float64, error) {
	var resp balanceResponse
	err := c.get(
		ctx,
		fmt.Sprintf("/v1/accounts/%s/balance", accountID),
		&resp,
	)
	if err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

func (c *GatewayClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *GatewayClient) post(
	ctx context.Context,
	path string,
	payload any,
	out any,
) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal ledger request: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+path,
		bytes.NewReader(body),
	)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.operatorKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.operatorKey)
	}
	return c.do(httpReq, out)
}

func (c *GatewayClient) get(
	ctx context.Context,
	path string,
	out any,
) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		c.baseURL+path,
		nil,
	)
	if err != nil {
		return err
	}
	if c.operatorKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.operatorKey)
	}
	return c.do(httpReq, out)
}

func (c *GatewayClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Message: err.Error()}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Message: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{
			Status:  resp.Status,
			Message: strings.TrimSpace(string(body)),
		}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{
			Message: fmt.Sprintf("invalid gateway response: %v", err),
		}
	}
	return nil
}
