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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ipfsapi "github.com/ipfs/go-ipfs-api"
)

// Provider pins content to a storage network and returns its content
// identifier. Implementations must honor context cancellation.
type Provider interface {
	Name() string
	Pin(ctx context.Context, name string, payload []byte) (string, error)
}

// IPFSProvider pins content through a native IPFS node's HTTP API
type IPFSProvider struct {
	shell *ipfsapi.Shell
	name  string
}

// NewIPFSProvider creates a provider backed by the IPFS node at apiURL
func NewIPFSProvider(apiURL string, timeout time.Duration) *IPFSProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &IPFSProvider{
		shell: ipfsapi.NewShellWithClient(
			apiURL,
			&http.Client{Timeout: timeout},
		),
		name: "ipfs",
	}
}

func (p *IPFSProvider) Name() string {
	return p.name
}

func (p *IPFSProvider) Pin(
	ctx context.Context,
	name string,
	payload []byte,
) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cid, err := p.shell.Add(bytes.NewReader(payload), ipfsapi.Pin(true))
	if err != nil {
		return "", fmt.Errorf("ipfs add: %w", err)
	}
	return cid, nil
}

// HTTPPinProvider pins content through a remote pinning service's HTTP
// endpoint
type HTTPPinProvider struct {
	client    *http.Client
	name      string
	endpoint  string
	authToken string
}

// NewHTTPPinProvider creates a provider that POSTs content to a pinning
// service endpoint. authToken may be empty for unauthenticated services.
func NewHTTPPinProvider(
	name string,
	endpoint string,
	authToken string,
	timeout time.Duration,
) *HTTPPinProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPPinProvider{
		client:    &http.Client{Timeout: timeout},
		name:      name,
		endpoint:  endpoint,
		authToken: authToken,
	}
}

func (p *HTTPPinProvider) Name() string {
	return p.name
}

type pinServiceRequest struct {
	Name    string          `json:"name"`
	Content json.RawMessage `json:"content"`
}

type pinServiceResponse struct {
	CID   string `json:"cid"`
	Error string `json:"error,omitempty"`
}

func (p *HTTPPinProvider) Pin(
	ctx context.Context,
	name string,
	payload []byte,
) (string, error) {
	body, err := json.Marshal(pinServiceRequest{
		Name:    name,
		Content: payload,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		p.endpoint,
		bytes.NewReader(body),
	)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.authToken)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf(
			"pin service %s returned %s: %s",
			p.name,
			resp.Status,
			strings.TrimSpace(string(respBody)),
		)
	}
	var pinResp pinServiceResponse
	if err := json.Unmarshal(respBody, &pinResp); err != nil {
		return "", fmt.Errorf("invalid pin service response: %w", err)
	}
	if pinResp.CID == "" {
		return "", fmt.Errorf(
			"pin service %s returned no content id: %s",
			p.name,
			pinResp.Error,
		)
	}
	return pinResp.CID, nil
}
