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

package storage

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"
)

// ContentCache is a local content-addressed cache of metadata payloads,
// keyed by content identifier. It lets retrieval skip the gateway fleet
// for content this process has already seen.
type ContentCache struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewContentCache opens the payload cache under dataDir. An in-memory
// cache is used when dataDir is empty.
func NewContentCache(
	dataDir string,
	logger *slog.Logger,
) (*ContentCache, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	var opts badger.Options
	if dataDir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(filepath.Join(dataDir, "content-cache"))
	}
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &ContentCache{
		db:     db,
		logger: logger,
	}, nil
}

// Get returns the cached payload for a content id, or false when absent
func (c *ContentCache) Get(cid string) ([]byte, bool) {
	var payload []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cid))
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			c.logger.Warn(
				"content cache read failed",
				"cid", cid,
				"error", err,
			)
		}
		return nil, false
	}
	return payload, true
}

// Put stores a payload under its content id. Cache write failures are
// logged, never surfaced; the cache is an optimization.
func (c *ContentCache) Put(cid string, payload []byte) {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(cid), payload)
	})
	if err != nil {
		c.logger.Warn(
			"content cache write failed",
			"cid", cid,
			"error", err,
		)
	}
}

// Close closes the underlying badger database
func (c *ContentCache) Close() error {
	return c.db.Close()
}
