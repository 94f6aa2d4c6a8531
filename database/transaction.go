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
)

// AppendTransaction appends a ledger operation log entry for a certificate
// record. The transaction log is append-only; entries are never updated.
func (s *Store) AppendTransaction(
	ctx context.Context,
	record *TransactionRecord,
) error {
	return s.db.WithContext(ctx).Create(record).Error
}

// TransactionsByRecord returns the transaction history for a certificate
// record, oldest first
func (s *Store) TransactionsByRecord(
	ctx context.Context,
	recordID string,
) ([]TransactionRecord, error) {
	var records []TransactionRecord
	result := s.db.WithContext(ctx).
		Where("record_id = ?", recordID).
		Order("id ASC").
		Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}
	return records, nil
}
