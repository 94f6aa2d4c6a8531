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

package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// CanonicalBytes serializes metadata into its canonical JSON form. The
// document is round-tripped through a generic map so that object keys are
// emitted in sorted order at every level, making the output independent of
// field declaration or insertion order.
func CanonicalBytes(md *CertificateMetadata) ([]byte, error) {
	data, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return canonicalize(data)
}

// CanonicalHash returns the hex-encoded SHA-256 digest of the metadata's
// canonical JSON form. Hashing the same logical content always yields the
// same digest.
func CanonicalHash(md *CertificateMetadata) (string, error) {
	data, err := CanonicalBytes(md)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// CanonicalHashBytes canonicalizes a raw JSON document and returns its
// hex-encoded SHA-256 digest. Used to verify content fetched back from the
// storage network against an expected hash.
func CanonicalHashBytes(raw []byte) (string, error) {
	data, err := canonicalize(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func canonicalize(raw []byte) ([]byte, error) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("canonicalize metadata: %w", err)
	}
	// encoding/json sorts map keys on marshal, which gives us the
	// canonical ordering
	data, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("canonicalize metadata: %w", err)
	}
	return data, nil
}
