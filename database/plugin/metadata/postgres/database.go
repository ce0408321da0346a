// Copyright 2025 Blink Labs Software
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

package postgres

import (
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/blinklabs-io/tollgate/database/plugin/metadata/internal/gormstore"
	"github.com/blinklabs-io/tollgate/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

var (
	errNotStarted = errors.New("postgres metadata store not started")
	errMissingDSN = errors.New("postgres metadata store requires a DSN")
)

// MetadataStorePostgres stores governance metadata in Postgres.
type MetadataStorePostgres struct {
	*gormstore.Store
	promRegistry prometheus.Registerer
	logger       *slog.Logger
	dsn          string // Data source name (postgres connection string)
	maxConns     int
}

// NewWithOptions creates a new database with options. The connection is
// opened by Start
func NewWithOptions(opts ...PostgresOptionFunc) (*MetadataStorePostgres, error) {
	db := &MetadataStorePostgres{}
	for _, opt := range opts {
		opt(db)
	}
	db.dsn = strings.TrimSpace(db.dsn)
	if db.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		db.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return db, nil
}

// Start implements the plugin.Plugin interface
func (d *MetadataStorePostgres) Start() error {
	if d.dsn == "" {
		return errMissingDSN
	}
	metadataDb, err := gorm.Open(
		postgres.Open(d.dsn),
		&gorm.Config{
			Logger:                 gormlogger.Discard,
			SkipDefaultTransaction: true,
			PrepareStmt:            true,
		},
	)
	if err != nil {
		return err
	}
	// Configure connection pool
	sqlDB, err := metadataDb.DB()
	if err != nil {
		return err
	}
	gormstore.ConfigurePool(sqlDB, d.maxConns)
	maxOpen, _ := gormstore.PoolLimits(d.maxConns)
	d.logger.Info(
		"connected to postgres metadata store",
		"component", "database",
		"max_connections", maxOpen,
	)
	d.Store = gormstore.New(metadataDb)
	// Configure tracing for GORM
	if err := metadataDb.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return err
	}
	if d.promRegistry != nil {
		if err := d.RegisterMetrics(d.promRegistry); err != nil {
			return err
		}
	}
	return d.Migrate(d.logger)
}

// Stop implements the plugin.Plugin interface
func (d *MetadataStorePostgres) Stop() error {
	return d.Close()
}
// Close closes the database handle
func (d *MetadataStorePostgres) Close() error {
	// Guard against a nil handle if Start() failed or was never called
	if d.Store == nil {
		return nil
	}
	db, err := d.DB().DB()
	if err != nil {
		return err
	}
	return db.Close()
}

// Transaction creates a gorm transaction
func (d *MetadataStorePostgres) Transaction() types.Txn {
	if d.Store == nil {
		return gormstore.NewFailedTxn(errNotStarted)
	}
	return d.Store.Transaction()
}
