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
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreatePending creates a new certificate record in the pending state. The
// unique index on ActiveProductID makes this safe under concurrent calls
// for the same product: exactly one caller wins, the rest receive
// ErrDuplicateActive.
func (s *Store) CreatePending(
	ctx context.Context,
	productID string,
	ownerID string,
	metadataHash string,
) (*CertificateRecord, error) {
	// Fast-path duplicate check before paying for an insert attempt. The
	// unique index below is the actual guard.
	existing, err := s.FindActiveByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateActive
	}
	activeProduct := productID
	record := &CertificateRecord{
		ID:              uuid.NewString(),
		ProductID:       productID,
		ActiveProductID: &activeProduct,
		OwnerID:         ownerID,
		MetadataHash:    metadataHash,
		MintingStatus:   MintingStatusPending,
	}
	result := s.db.WithContext(ctx).Create(record)
	if result.Error != nil {
		if isDuplicateKey(result.Error) {
			return nil, ErrDuplicateActive
		}
		return nil, result.Error
	}
	return record, nil
}

// FindActiveByProduct returns the pending or confirmed record for a
// product, or nil when none exists
func (s *Store) FindActiveByProduct(
	ctx context.Context,
	productID string,
) (*CertificateRecord, error) {
	var record CertificateRecord
	result := s.db.WithContext(ctx).
		Where(
			"product_id = ? AND minting_status IN ?",
			productID,
			[]MintingStatus{MintingStatusPending, MintingStatusConfirmed},
		).
		First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &record, nil
}

// CertificateByProduct returns the most recent record for a product in any
// state, or nil when the product has never been minted
func (s *Store) CertificateByProduct(
	ctx context.Context,
	productID string,
) (*CertificateRecord, error) {
	var record CertificateRecord
	result := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &record, nil
}

// CertificateByID returns the record with the given id
func (s *Store) CertificateByID(
	ctx context.Context,
	recordID string,
) (*CertificateRecord, error) {
	var record CertificateRecord
	result := s.db.WithContext(ctx).
		Where("id = ?", recordID).
		First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, result.Error
	}
	return &record, nil
}

// MarkConfirmed transitions a pending record to confirmed, populating the
// ledger token id, serial number and actual cost. Records already in a
// terminal state are never modified.
func (s *Store) MarkConfirmed(
	ctx context.Context,
	recordID string,
	tokenID string,
	serialNumber uint64,
	cost float64,
) error {
	result := s.db.WithContext(ctx).
		Model(&CertificateRecord{}).
		Where("id = ? AND minting_status = ?", recordID, MintingStatusPending).
		Updates(map[string]any{
			"minting_status":  MintingStatusConfirmed,
			"ledger_token_id": tokenID,
			"serial_number":   serialNumber,
			"minting_cost":    cost,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return s.transitionFailure(ctx, recordID)
	}
	return nil
}

// MarkFailed transitions a pending record to failed and releases the
// product for a future mint attempt
func (s *Store) MarkFailed(ctx context.Context, recordID string) error {
	result := s.db.WithContext(ctx).
		Model(&CertificateRecord{}).
		Where("id = ? AND minting_status = ?", recordID, MintingStatusPending).
		Updates(map[string]any{
			"minting_status":    MintingStatusFailed,
			"active_product_id": nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return s.transitionFailure(ctx, recordID)
	}
	return nil
}

// SetStorageCID records the content identifier the metadata was persisted
// under. Storage persistence is best-effort, so this may arrive after
// confirmation.
func (s *Store) SetStorageCID(
	ctx context.Context,
	recordID string,
	cid string,
) error {
	result := s.db.WithContext(ctx).
		Model(&CertificateRecord{}).
		Where("id = ?", recordID).
		Update("storage_cid", cid)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// transitionFailure distinguishes a missing record from an illegal
// transition on a terminal record
func (s *Store) transitionFailure(
	ctx context.Context,
	recordID string,
) error {
	if _, err := s.CertificateByID(ctx, recordID); err != nil {
		return err
	}
	return ErrRecordTerminal
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// The sqlite driver does not always translate constraint errors
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
