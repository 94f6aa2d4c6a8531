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
	"fmt"
	"strings"
	"time"
)

const (
	DefaultMaxNameLength        = 100
	DefaultMaxDescriptionLength = 1000
	DefaultMaxSerializedSize    = 100 * 1024
	// sizeWarnRatio is the fraction of the size ceiling at which a
	// warning is emitted
	sizeWarnRatio = 0.8
)

// DefaultAcceptedURLPrefixes covers the native content-addressed scheme
// plus the public gateways we accept as storage references
func DefaultAcceptedURLPrefixes() []string {
	return []string{
		"ipfs://",
		"https://ipfs.io/ipfs/",
		"https://gateway.pinata.cloud/ipfs/",
		"https://cloudflare-ipfs.com/ipfs/",
		"https://dweb.link/ipfs/",
	}
}

// knownDisplayHints are the display-type hints we render natively.
// Unknown hints are warnings, not errors.
var knownDisplayHints = map[string]struct{}{
	"":       {},
	"text":   {},
	"number": {},
	"date":   {},
	"badge":  {},
}

// Rules holds the configurable validation limits. All values have working
// defaults via DefaultRules; they are configuration, not constants, so
// deployments can tighten or relax them without a rebuild.
type Rules struct {
	MaxNameLength        int
	MaxDescriptionLength int
	MaxSerializedSize    int
	RequiredTraits       []string
	AcceptedURLPrefixes  []string
}

// DefaultRules returns the standard validation rules
func DefaultRules() Rules {
	return Rules{
		MaxNameLength:        DefaultMaxNameLength,
		MaxDescriptionLength: DefaultMaxDescriptionLength,
		MaxSerializedSize:    DefaultMaxSerializedSize,
		AcceptedURLPrefixes:  DefaultAcceptedURLPrefixes(),
	}
}

// Result is the outcome of validating a metadata document. Warnings never
// affect Valid.
type Result struct {
	Errors   []string
	Warnings []string
	Valid    bool
}

// ValidationError wraps the individual validation failures for callers
// that want a single error value
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf(
		"metadata validation failed: %s",
		strings.Join(e.Errors, "; "),
	)
}

// Validator checks certificate metadata against a set of Rules. It is
// stateless and safe for concurrent use.
type Validator struct {
	rules Rules
}

// NewValidator creates a Validator, filling in defaults for any zero-value
// rules
func NewValidator(rules Rules) *Validator {
	if rules.MaxNameLength <= 0 {
		rules.MaxNameLength = DefaultMaxNameLength
	}
	if rules.MaxDescriptionLength <= 0 {
		rules.MaxDescriptionLength = DefaultMaxDescriptionLength
	}
	if rules.MaxSerializedSize <= 0 {
		rules.MaxSerializedSize = DefaultMaxSerializedSize
	}
	if len(rules.AcceptedURLPrefixes) == 0 {
		rules.AcceptedURLPrefixes = DefaultAcceptedURLPrefixes()
	}
	return &Validator{rules: rules}
}

// Rules returns the rules the validator was constructed with
func (v *Validator) Rules() Rules {
	return v.rules
}

// Validate runs all structural, semantic, media and size checks against
// the given metadata. It has no side effects.
func (v *Validator) Validate(md *CertificateMetadata) Result {
	var res Result
	if md == nil {
		res.Errors = append(res.Errors, "metadata is required")
		return res
	}
	v.checkRequiredFields(md, &res)
	v.checkContent(md, &res)
	v.checkMedia(md, &res)
	v.checkSize(md, &res)
	res.Valid = len(res.Errors) == 0
	return res
}

func (v *Validator) checkRequiredFields(
	md *CertificateMetadata,
	res *Result,
) {
	if md.Name == "" {
		res.Errors = append(res.Errors, "name is required")
	}
	if md.Description == "" {
		res.Errors = append(res.Errors, "description is required")
	}
	if md.Image == "" {
		res.Errors = append(res.Errors, "image reference is required")
	} else if !v.acceptedURL(md.Image) {
		res.Errors = append(
			res.Errors,
			fmt.Sprintf("image reference %q is not an accepted storage URL", md.Image),
		)
	}
	props := md.Properties
	if props.ProductID == "" {
		res.Errors = append(res.Errors, "properties.productId is required")
	}
	if props.Category == "" {
		res.Errors = append(res.Errors, "properties.category is required")
	}
	if props.Manufacturer.Name == "" {
		res.Errors = append(
			res.Errors,
			"properties.manufacturer.name is required",
		)
	}
	if props.RegisteredAt == "" {
		res.Errors = append(
			res.Errors,
			"properties.registeredAt is required",
		)
	} else if _, err := time.Parse(time.RFC3339, props.RegisteredAt); err != nil {
		res.Errors = append(
			res.Errors,
			fmt.Sprintf(
				"properties.registeredAt %q is not a valid RFC3339 timestamp",
				props.RegisteredAt,
			),
		)
	}
	if props.Authenticity.Method == "" {
		res.Errors = append(
			res.Errors,
			"properties.authenticity.method is required",
		)
	}
}

func (v *Validator) checkContent(md *CertificateMetadata, res *Result) {
	if len(md.Name) > v.rules.MaxNameLength {
		res.Errors = append(
			res.Errors,
			fmt.Sprintf(
				"name exceeds maximum length of %d characters",
				v.rules.MaxNameLength,
			),
		)
	}
	if len(md.Description) > v.rules.MaxDescriptionLength {
		res.Errors = append(
			res.Errors,
			fmt.Sprintf(
				"description exceeds maximum length of %d characters",
				v.rules.MaxDescriptionLength,
			),
		)
	}
	seenTraits := make(map[string]struct{}, len(md.Attributes))
	for idx, attr := range md.Attributes {
		if attr.Trait == "" {
			res.Errors = append(
				res.Errors,
				fmt.Sprintf("attribute %d is missing a trait name", idx),
			)
		} else {
			seenTraits[attr.Trait] = struct{}{}
		}
		if attr.Value == "" {
			res.Errors = append(
				res.Errors,
				fmt.Sprintf("attribute %d (%s) has no value", idx, attr.Trait),
			)
		}
		if _, ok := knownDisplayHints[attr.Display]; !ok {
			res.Warnings = append(
				res.Warnings,
				fmt.Sprintf(
					"attribute %d (%s) has unknown display hint %q",
					idx,
					attr.Trait,
					attr.Display,
				),
			)
		}
	}
	for _, trait := range v.rules.RequiredTraits {
		if _, ok := seenTraits[trait]; !ok {
			res.Errors = append(
				res.Errors,
				fmt.Sprintf("required attribute %q is missing", trait),
			)
		}
	}
}

func (v *Validator) checkMedia(md *CertificateMetadata, res *Result) {
	for idx, entry := range md.Properties.Media {
		if !entry.Role.Valid() {
			res.Errors = append(
				res.Errors,
				fmt.Sprintf("media %d has invalid role %q", idx, entry.Role),
			)
		}
		if entry.URL == "" {
			res.Errors = append(
				res.Errors,
				fmt.Sprintf("media %d is missing a storage reference", idx),
			)
		} else if !v.acceptedURL(entry.URL) {
			res.Errors = append(
				res.Errors,
				fmt.Sprintf(
					"media %d reference %q is not an accepted storage URL",
					idx,
					entry.URL,
				),
			)
		}
		if entry.Thumbnail == "" {
			res.Warnings = append(
				res.Warnings,
				fmt.Sprintf("media %d has no thumbnail variant", idx),
			)
		}
	}
}

func (v *Validator) checkSize(md *CertificateMetadata, res *Result) {
	data, err := CanonicalBytes(md)
	if err != nil {
		res.Errors = append(
			res.Errors,
			fmt.Sprintf("metadata could not be serialized: %v", err),
		)
		return
	}
	if len(data) > v.rules.MaxSerializedSize {
		res.Errors = append(
			res.Errors,
			fmt.Sprintf(
				"serialized size %d exceeds ceiling of %d bytes",
				len(data),
				v.rules.MaxSerializedSize,
			),
		)
		return
	}
	warnAt := int(float64(v.rules.MaxSerializedSize) * sizeWarnRatio)
	if len(data) > warnAt {
		res.Warnings = append(
			res.Warnings,
			fmt.Sprintf(
				"serialized size %d is above %d%% of the %d byte ceiling",
				len(data),
				int(sizeWarnRatio*100),
				v.rules.MaxSerializedSize,
			),
		)
	}
}

func (v *Validator) acceptedURL(url string) bool {
	for _, prefix := range v.rules.AcceptedURLPrefixes {
		if strings.HasPrefix(url, prefix) {
			return true
		}
	}
	return false
}
