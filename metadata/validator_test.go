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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMetadata() *CertificateMetadata {
	return &CertificateMetadata{
		Name:        "Authenticity Certificate - Model X",
		Description: "Certificate of authenticity for Model X, serial 0042",
		Image:       "ipfs://QmTestImageCid",
		Properties: Properties{
			ProductID: "PROD-0042",
			Category:  "watches",
			Manufacturer: Manufacturer{
				Name:    "Horlogerie SA",
				ID:      "MFG-7",
				Country: "CH",
			},
			RegisteredAt: "2025-06-01T12:00:00Z",
			Authenticity: Authenticity{
				Verified: true,
				Method:   "physical-inspection",
			},
			Media: []MediaEntry{
				{
					Role:      MediaRolePrimary,
					URL:       "ipfs://QmTestMediaCid",
					Thumbnail: "ipfs://QmTestThumbCid",
					MimeType:  "image/png",
				},
			},
		},
		Attributes: []Attribute{
			{Trait: "serial", Value: "0042", Display: "text"},
		},
	}
}

func TestValidateAcceptsCompleteMetadata(t *testing.T) {
	v := NewValidator(DefaultRules())
	res := v.Validate(validMetadata())
	assert.True(t, res.Valid, "errors: %v", res.Errors)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
}

func TestValidateNilMetadata(t *testing.T) {
	v := NewValidator(DefaultRules())
	res := v.Validate(nil)
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "metadata is required", res.Errors[0])
}

func TestValidateRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CertificateMetadata)
		wantErr string
	}{
		{
			name:    "empty name",
			mutate:  func(md *CertificateMetadata) { md.Name = "" },
			wantErr: "name is required",
		},
		{
			name:    "empty description",
			mutate:  func(md *CertificateMetadata) { md.Description = "" },
			wantErr: "description is required",
		},
		{
			name:    "empty image",
			mutate:  func(md *CertificateMetadata) { md.Image = "" },
			wantErr: "image reference is required",
		},
		{
			name: "image on unknown host",
			mutate: func(md *CertificateMetadata) {
				md.Image = "https://example.com/image.png"
			},
			wantErr: "not an accepted storage URL",
		},
		{
			name: "missing product id",
			mutate: func(md *CertificateMetadata) {
				md.Properties.ProductID = ""
			},
			wantErr: "properties.productId is required",
		},
		{
			name: "missing category",
			mutate: func(md *CertificateMetadata) {
				md.Properties.Category = ""
			},
			wantErr: "properties.category is required",
		},
		{
			name: "missing manufacturer name",
			mutate: func(md *CertificateMetadata) {
				md.Properties.Manufacturer.Name = ""
			},
			wantErr: "properties.manufacturer.name is required",
		},
		{
			name: "missing registration timestamp",
			mutate: func(md *CertificateMetadata) {
				md.Properties.RegisteredAt = ""
			},
			wantErr: "properties.registeredAt is required",
		},
		{
			name: "malformed registration timestamp",
			mutate: func(md *CertificateMetadata) {
				md.Properties.RegisteredAt = "June 1st 2025"
			},
			wantErr: "not a valid RFC3339 timestamp",
		},
		{
			name: "missing authenticity method",
			mutate: func(md *CertificateMetadata) {
				md.Properties.Authenticity.Method = ""
			},
			wantErr: "properties.authenticity.method is required",
		},
	}
	v := NewValidator(DefaultRules())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := validMetadata()
			tt.mutate(md)
			res := v.Validate(md)
			assert.False(t, res.Valid)
			found := false
			for _, e := range res.Errors {
				if strings.Contains(e, tt.wantErr) {
					found = true
					break
				}
			}
			assert.True(
				t,
				found,
				"expected error containing %q, got: %v",
				tt.wantErr,
				res.Errors,
			)
		})
	}
}

func TestValidateContentLimits(t *testing.T) {
	v := NewValidator(Rules{
		MaxNameLength:        10,
		MaxDescriptionLength: 20,
	})

	md := validMetadata()
	md.Name = strings.Repeat("x", 11)
	md.Description = strings.Repeat("y", 21)
	res := v.Validate(md)
	assert.False(t, res.Valid)
	assert.Contains(
		t,
		res.Errors,
		"name exceeds maximum length of 10 characters",
	)
	assert.Contains(
		t,
		res.Errors,
		"description exceeds maximum length of 20 characters",
	)
}

func TestValidateAttributes(t *testing.T) {
	v := NewValidator(DefaultRules())

	md := validMetadata()
	md.Attributes = []Attribute{
		{Trait: "", Value: "something"},
		{Trait: "condition", Value: ""},
		{Trait: "rating", Value: "5", Display: "stars"},
	}
	res := v.Validate(md)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors, "attribute 0 is missing a trait name")
	assert.Contains(t, res.Errors, "attribute 1 (condition) has no value")
	// Unknown display hints only warn
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], `unknown display hint "stars"`)
}

func TestValidateRequiredTraits(t *testing.T) {
	rules := DefaultRules()
	rules.RequiredTraits = []string{"serial", "batch"}
	v := NewValidator(rules)

	res := v.Validate(validMetadata())
	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors, `required attribute "batch" is missing`)
}

func TestValidateMedia(t *testing.T) {
	v := NewValidator(DefaultRules())

	md := validMetadata()
	md.Properties.Media = []MediaEntry{
		{Role: "hologram", URL: "ipfs://QmValidCid"},
		{Role: MediaRoleAdditional, URL: ""},
		{Role: MediaRoleCertificate, URL: "https://example.com/cert.pdf"},
	}
	res := v.Validate(md)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors, `media 0 has invalid role "hologram"`)
	assert.Contains(t, res.Errors, "media 1 is missing a storage reference")
	assert.Contains(
		t,
		res.Errors,
		`media 2 reference "https://example.com/cert.pdf" is not an accepted storage URL`,
	)
	// All three lack a thumbnail
	assert.Len(t, res.Warnings, 3)
}

func TestValidateSizeCeiling(t *testing.T) {
	v := NewValidator(Rules{MaxSerializedSize: 512})

	md := validMetadata()
	md.Description = strings.Repeat("z", 600)
	res := v.Validate(md)
	assert.False(t, res.Valid)
	found := false
	for _, e := range res.Errors {
		if strings.Contains(e, "exceeds ceiling of 512 bytes") {
			found = true
		}
	}
	assert.True(t, found, "expected size ceiling error, got: %v", res.Errors)
}

func TestValidateSizeWarning(t *testing.T) {
	// Pick a ceiling the document lands between 80% and 100% of
	md := validMetadata()
	data, err := CanonicalBytes(md)
	require.NoError(t, err)
	ceiling := len(data) + len(data)/10

	v := NewValidator(Rules{MaxSerializedSize: ceiling})
	res := v.Validate(md)
	assert.True(t, res.Valid)
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "above 80% of the") {
			found = true
		}
	}
	assert.True(t, found, "expected size warning, got: %v", res.Warnings)
}

func TestMediaRoleValid(t *testing.T) {
	tests := []struct {
		role  MediaRole
		valid bool
	}{
		{MediaRolePrimary, true},
		{MediaRoleAdditional, true},
		{MediaRoleCertificate, true},
		{"", false},
		{"hologram", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, tt.role.Valid(), "role=%q", tt.role)
	}
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Errors: []string{"name is required", "description is required"}}
	assert.Equal(
		t,
		"metadata validation failed: name is required; description is required",
		err.Error(),
	)
}
