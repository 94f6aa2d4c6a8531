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
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	gcs "cloud.google.com/go/storage"
)

// GCSArchiveProvider archives content to a Google Cloud Storage bucket.
// It is intended as a last backup in the provider chain: the archive is
// content-addressed by digest but not reachable through IPFS gateways.
type GCSArchiveProvider struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
	name   string
}

// NewGCSArchiveProvider creates an archive provider for the given bucket,
// using ambient Google credentials
func NewGCSArchiveProvider(
	ctx context.Context,
	bucketName string,
) (*GCSArchiveProvider, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSArchiveProvider{
		client: client,
		bucket: client.Bucket(bucketName),
		name:   "gcs-archive",
	}, nil
}

func (p *GCSArchiveProvider) Name() string {
	return p.name
}

func (p *GCSArchiveProvider) Pin(
	ctx context.Context,
	name string,
	payload []byte,
) (string, error) {
	sum := sha256.Sum256(payload)
	digest := hex.EncodeToString(sum[:])
	objectKey := "metadata/" + digest
	w := p.bucket.Object(objectKey).NewWriter(ctx)
	w.ContentType = "application/json"
	if name != "" {
		w.Metadata = map[string]string{"name": name}
	}
	if _, err := w.Write(payload); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write archive object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize archive object: %w", err)
	}
	return "sha256:" + digest, nil
}

// Close releases the underlying GCS client
func (p *GCSArchiveProvider) Close() error {
	return p.client.Close()
}
