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

package mint

import (
	"context"
	"fmt"

	"github.com/provenlabs/sigil/database"
	"github.com/provenlabs/sigil/event"
	"github.com/provenlabs/sigil/fee"
	"github.com/provenlabs/sigil/ledger"
)

// TransferResult describes a completed certificate hand-off
type TransferResult struct {
	RecordID      string
	TokenID       string
	Serial        uint64
	FromAccount   string
	ToAccount     string
	TransactionID string
	Fee           float64
}

// Transfer moves a confirmed certificate from one ledger account to
// another and appends the outcome to the record's transaction log. Only
// confirmed records can move; pending and failed certificates have no
// serial to transfer.
func (o *Orchestrator) Transfer(
	ctx context.Context,
	recordID string,
	fromAccount string,
	toAccount string,
	maxFee float64,
) (*TransferResult, error) {
	record, err := o.store.CertificateByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record.MintingStatus != database.MintingStatusConfirmed {
		return nil, fmt.Errorf(
			"certificate %s is %s, only confirmed certificates can transfer",
			recordID,
			record.MintingStatus,
		)
	}
	estimate := o.estimator.Estimate(fee.OperationTransfer, 0)
	if maxFee <= 0 {
		maxFee = estimate.Total
	}
	result, err := o.ledger.SubmitTransfer(
		ctx,
		record.LedgerTokenID,
		record.SerialNumber,
		fromAccount,
		toAccount,
		maxFee,
	)
	if err != nil {
		o.appendTransaction(ctx, record.ID, &database.TransactionRecord{
			RecordID:     record.ID,
			Operation:    string(fee.OperationTransfer),
			Status:       string(ledger.StatusFailed),
			ErrorMessage: err.Error(),
		})
		return nil, fmt.Errorf("transfer submission failed: %w", err)
	}
	o.appendTransaction(ctx, record.ID, &database.TransactionRecord{
		RecordID:      record.ID,
		TransactionID: result.TransactionID,
		Operation:     string(fee.OperationTransfer),
		Status:        string(ledger.StatusSuccess),
		Fee:           result.FeeCharged,
	})
	o.estimator.RecordActual(
		fee.OperationTransfer,
		estimate.Total,
		result.FeeCharged,
	)
	o.publish(event.TransferCompletedEventType, event.TransferEvent{
		TokenID:       record.LedgerTokenID,
		Serial:        record.SerialNumber,
		FromAccount:   fromAccount,
		ToAccount:     toAccount,
		TransactionID: result.TransactionID,
	})
	o.logger.Info(
		"certificate transferred",
		"record_id", record.ID,
		"token_id", record.LedgerTokenID,
		"serial", record.SerialNumber,
		"to_account", toAccount,
		"transaction_id", result.TransactionID,
	)
	return &TransferResult{
		RecordID:      record.ID,
		TokenID:       record.LedgerTokenID,
		Serial:        record.SerialNumber,
		FromAccount:   fromAccount,
		ToAccount:     toAccount,
		TransactionID: result.TransactionID,
		Fee:           result.FeeCharged,
	}, nil
}
