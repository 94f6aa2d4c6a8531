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

package event

import (
	"time"
)

// Type identifies a certificate lifecycle event
type Type string

const (
	MintStartedEventType       Type = "mint_started"
	MintCompletedEventType     Type = "mint_completed"
	MintFailedEventType        Type = "mint_failed"
	TransferCompletedEventType Type = "transfer_completed"
)

// Event is the envelope delivered to subscribers
type Event struct {
	Timestamp time.Time
	Data      any
	Type      Type
}

// New creates an event with the current timestamp
func New(eventType Type, data any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// MintEvent is the payload for all mint lifecycle events. TokenID, Serial
// and TransactionID are only populated once the ledger has responded;
// Error is only populated on mint_failed.
type MintEvent struct {
	OwnerID       string
	ProductID     string
	TokenID       string
	Serial        uint64
	TransactionID string
	Error         string
}

// TransferEvent is the payload for transfer_completed events
type TransferEvent struct {
	TokenID       string
	Serial        uint64
	FromAccount   string
	ToAccount     string
	TransactionID string
}
