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
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/provenlabs/sigil/metadata"
)

// MintBatch issues certificates for a list of products. The input is
// partitioned into fixed-size sub-batches; items within a sub-batch mint
// concurrently and every outcome is awaited regardless of individual
// failure. A cooldown delay separates sub-batches to respect ledger-side
// rate limits. The batch never rolls back completed items: each item
// independently updates the record store and emits its own lifecycle
// events.
func (o *Orchestrator) MintBatch(
	ctx context.Context,
	ownerID string,
	req BatchRequest,
	metadataList []*metadata.CertificateMetadata,
) (*BatchResult, error) {
	if len(req.ProductIDs) != len(metadataList) {
		return nil, fmt.Errorf(
			"product id count (%d) does not match metadata count (%d)",
			len(req.ProductIDs),
			len(metadataList),
		)
	}
	batch := &BatchResult{
		Results: make([]*Result, len(req.ProductIDs)),
		Pricing: o.estimator.EstimateBatch(len(req.ProductIDs)),
	}
	itemReq := Request{Memo: req.Memo, MaxFee: req.MaxFee}
	for start := 0; start < len(req.ProductIDs); start += o.subBatchSize {
		if start > 0 {
			select {
			case <-ctx.Done():
				o.fillCancelled(batch, req.ProductIDs, start, ctx.Err())
				o.tallyBatch(batch)
				return batch, nil
			case <-time.After(o.batchCooldown):
			}
		}
		end := min(start+o.subBatchSize, len(req.ProductIDs))
		// Fan out the sub-batch; goroutines never return an error so one
		// item's failure cannot abort its siblings
		var group errgroup.Group
		for idx := start; idx < end; idx++ {
			group.Go(func() error {
				res, err := o.MintSingle(
					ctx,
					ownerID,
					req.ProductIDs[idx],
					itemReq,
					metadataList[idx],
				)
				if res == nil {
					res = &Result{
						ProductID: req.ProductIDs[idx],
						Err:       err,
					}
				}
				batch.Results[idx] = res
				return nil
			})
		}
		// Only nil errors flow through the group; Wait is just the
		// fan-in barrier
		_ = group.Wait()
	}
	o.tallyBatch(batch)
	o.logger.Info(
		"batch mint complete",
		"items", len(batch.Results),
		"successful", batch.Successful,
		"failed", batch.Failed,
		"total_cost", batch.TotalCost,
		"estimated_batch_cost", batch.Pricing.BatchTotal,
	)
	return batch, nil
}

// fillCancelled records a cancellation outcome for items that never ran
func (o *Orchestrator) fillCancelled(
	batch *BatchResult,
	productIDs []string,
	from int,
	cause error,
) {
	for idx := from; idx < len(batch.Results); idx++ {
		if batch.Results[idx] == nil {
			batch.Results[idx] = &Result{
				ProductID: productIDs[idx],
				Err:       cause,
			}
		}
	}
}

func (o *Orchestrator) tallyBatch(batch *BatchResult) {
	for _, res := range batch.Results {
		if res == nil {
			continue
		}
		if res.Success {
			batch.Successful++
			batch.TotalCost += res.Cost
		} else {
			batch.Failed++
		}
	}
}
