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

package database

import (
	"time"
)

// MintingStatus is the lifecycle state of a certificate record
type MintingStatus string

const (
	MintingStatusPending   MintingStatus = "pending"
	MintingStatusConfirmed MintingStatus = "confirmed"
	MintingStatusFailed    MintingStatus = "failed"
)

// Terminal returns true once the status can no longer change
func (s MintingStatus) Terminal() bool {
	return s == MintingStatusConfirmed || s == MintingStatusFailed
}

// Active returns true while the record blocks further mints for its product
func (s MintingStatus) Active() bool {
	return s == MintingStatusPending || s == MintingStatusConfirmed
}

// CertificateRecord is the durable record of an issued (or in-flight)
// certificate. ActiveProductID mirrors ProductID while the record is in an
// active state and is cleared on failure; its unique index is what
// guarantees at most one active certificate per product, even under
// concurrent creation.
type CertificateRecord struct {
	ID              string  `gorm:"primarykey"`
	ProductID       string  `gorm:"index"`
	ActiveProductID *string `gorm:"uniqueIndex"`
	OwnerID         string  `gorm:"index"`
	LedgerTokenID   string
	SerialNumber    uint64
	MetadataHash    string
	StorageCID      string `gorm:"column:storage_cid"`
	MintingStatus   MintingStatus `gorm:"index"`
	MintingCost     float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (CertificateRecord) TableName() string {
	return "certificate_record"
}

// TransactionRecord is an append-only log entry for a ledger operation
// linked to a certificate record
type TransactionRecord struct {
	ID            uint   `gorm:"primarykey"`
	RecordID      string `gorm:"index"`
	TransactionID string
	Operation     string
	Status        string
	Fee           float64
	ErrorMessage  string
	CreatedAt     time.Time
}

func (TransactionRecord) TableName() string {
	return "transaction_record"
}

// MigrateModels is the list of models auto-migrated at store startup
var MigrateModels = []any{
	&CertificateRecord{},
	&TransactionRecord{},
}
