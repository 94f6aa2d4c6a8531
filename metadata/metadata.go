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

// MediaRole identifies the purpose of a media entry within a certificate
type MediaRole string

const (
	MediaRolePrimary     MediaRole = "primary"
	MediaRoleAdditional  MediaRole = "additional"
	MediaRoleCertificate MediaRole = "certificate"
)

// Valid returns true if the MediaRole is a known role
func (r MediaRole) Valid() bool {
	switch r {
	case MediaRolePrimary, MediaRoleAdditional, MediaRoleCertificate:
		return true
	default:
		return false
	}
}

// MediaEntry is a single media reference attached to a certificate
type MediaEntry struct {
	Role      MediaRole `json:"role"`
	URL       string    `json:"url"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	MimeType  string    `json:"mimeType,omitempty"`
}

// Manufacturer identifies the party that produced the physical product
type Manufacturer struct {
	Name    string `json:"name"`
	ID      string `json:"id,omitempty"`
	Country string `json:"country,omitempty"`
}

// Authenticity records how the product's authenticity claim was verified
type Authenticity struct {
	Verified bool   `json:"verified"`
	Method   string `json:"method"`
}

// Properties carries the structured product identity for a certificate
type Properties struct {
	ProductID    string       `json:"productId"`
	Category     string       `json:"category"`
	Manufacturer Manufacturer `json:"manufacturer"`
	RegisteredAt string       `json:"registeredAt"`
	Authenticity Authenticity `json:"authenticity"`
	Media        []MediaEntry `json:"media,omitempty"`
}

// Attribute is a single display attribute in the certificate's ordered
// attribute list
type Attribute struct {
	Trait   string `json:"trait_type"`
	Value   string `json:"value"`
	Display string `json:"display_type,omitempty"`
}

// CertificateMetadata is the full metadata document persisted to the
// storage network and hashed into the certificate record
type CertificateMetadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	Properties  Properties  `json:"properties"`
	Attributes  []Attribute `json:"attributes,omitempty"`
}
