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
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

var (
	// ErrDuplicateActive is returned when a pending record is requested
	// for a product that already has an active certificate
	ErrDuplicateActive = errors.New(
		"an active certificate already exists for this product",
	)
	// ErrRecordNotFound is returned when a record id does not exist
	ErrRecordNotFound = errors.New("certificate record not found")
	// ErrRecordTerminal is returned when attempting to transition a
	// record that is already confirmed or failed
	ErrRecordTerminal = errors.New("certificate record is in a terminal state")
)

// Config holds the record store configuration
type Config struct {
	Logger *slog.Logger
	// DataDir is the persistent data directory. An in-memory database is
	// used when empty, which is useful for testing.
	DataDir string
	// Tracing enables the gorm opentelemetry plugin
	Tracing bool
}

// Store is the durable record of issued certificates and their transaction
// history. It is the single source of truth for certificate state.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// New creates a record store, running schema migration. Uses an in-memory
// database when cfg.DataDir is empty.
func New(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	var db *gorm.DB
	var err error
	gormCfg := &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
		TranslateError:         true,
	}
	if cfg.DataDir == "" {
		// cache=shared allows multiple connections to share the same in-memory database
		db, err = gorm.Open(
			sqlite.Open("file::memory:?cache=shared"),
			gormCfg,
		)
		if err != nil {
			return nil, err
		}
	} else {
		if _, err := os.Stat(cfg.DataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(cfg.DataDir, fs.ModePerm); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		dbPath := filepath.Join(cfg.DataDir, "records.sqlite")
		// WAL journal mode and no sync-on-write, matching our durability
		// needs: the ledger is the source of truth for issued tokens
		connOpts := "_pragma=journal_mode(WAL)&_pragma=sync(OFF)"
		db, err = gorm.Open(
			sqlite.Open(fmt.Sprintf("file:%s?%s", dbPath, connOpts)),
			gormCfg,
		)
		if err != nil {
			return nil, err
		}
	}
	if cfg.Tracing {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, fmt.Errorf("failed to enable database tracing: %w", err)
		}
	}
	s := &Store{
		db:     db,
		logger: cfg.Logger,
	}
	for _, model := range MigrateModels {
		s.logger.Debug(fmt.Sprintf("creating table: %#v", model))
		if err := s.db.AutoMigrate(model); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// DB returns the underlying gorm handle
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close closes the underlying database connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
