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

package mysql

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/blinklabs-io/tollgate/database/plugin/metadata/internal/gormstore"
	"github.com/blinklabs-io/tollgate/database/types"
	"github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// MySQL error number for an unknown database
const errUnknownDatabase = 1049

var (
	errNotStarted = errors.New("mysql metadata store not started")
	errMissingDSN = errors.New("mysql metadata store requires a DSN")
)

// MetadataStoreMysql stores governance metadata in MySQL.
type MetadataStoreMysql struct {
	*gormstore.Store
	promRegistry prometheus.Registerer
	logger       *slog.Logger
	dsn          string // Data source name (MySQL connection string)
	maxConns     int
}

// NewWithOptions creates a new database with options. The connection is
// opened by Start
func NewWithOptions(opts ...MysqlOptionFunc) (*MetadataStoreMysql, error) {
	db := &MetadataStoreMysql{}
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

// parseDSN validates the configured DSN. Time columns are always scanned
// into time.Time
func (d *MetadataStoreMysql) parseDSN() (*mysql.Config, error) {
	if d.dsn == "" {
		return nil, errMissingDSN
	}
	cfg, err := mysql.ParseDSN(d.dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql DSN: %w", err)
	}
	cfg.ParseTime = true
	return cfg, nil
}

func (d *MetadataStoreMysql) open(dsn string) (*gorm.DB, error) {
	return gorm.Open(
		gormmysql.Open(dsn),
		&gorm.Config{
			Logger:                 gormlogger.Discard,
			SkipDefaultTransaction: true,
			PrepareStmt:            true,
		},
	)
}

// Start implements the plugin.Plugin interface
func (d *MetadataStoreMysql) Start() error {
	cfg, err := d.parseDSN()
	if err != nil {
		return err
	}
	dsn := cfg.FormatDSN()
	metadataDb, err := d.open(dsn)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if !errors.As(err, &mysqlErr) || mysqlErr.Number != errUnknownDatabase {
			return err
		}
		if err := d.createDatabase(cfg); err != nil {
			return fmt.Errorf("failed to create database %s: %w", cfg.DBName, err)
		}
		metadataDb, err = d.open(dsn)
		if err != nil {
			return err
		}
	}
	// Configure connection pool
	sqlDB, err := metadataDb.DB()
	if err != nil {
		return err
	}
	gormstore.ConfigurePool(sqlDB, d.maxConns)
	maxOpen, _ := gormstore.PoolLimits(d.maxConns)
	d.logger.Info(
		"connected to mysql metadata store",
		"component", "database",
		"address", cfg.Addr,
		"database", cfg.DBName,
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

// adminDSN returns cfg with no database selected
func adminDSN(cfg *mysql.Config) string {
	adminCfg := cfg.Clone()
	adminCfg.DBName = ""
	return adminCfg.FormatDSN()
}

// createDatabase connects without selecting a database and creates the one
// named by cfg
func (d *MetadataStoreMysql) createDatabase(cfg *mysql.Config) error {
	if cfg.DBName == "" {
		return errors.New("no database name in DSN")
	}
	adminDb, err := d.open(adminDSN(cfg))
	if err != nil {
		return err
	}
	sqlAdminDb, err := adminDb.DB()
	if err != nil {
		return err
	}
	defer sqlAdminDb.Close()
	result := adminDb.Exec(
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", cfg.DBName),
	)
	return result.Error
}

// Stop implements the plugin.Plugin interface
func (d *MetadataStoreMysql) Stop() error {
	return d.Close()
}

// Close closes the database handle
func (d *MetadataStoreMysql) Close() error {
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
func (d *MetadataStoreMysql) Transaction() types.Txn {
	if d.Store == nil {
		return gormstore.NewFailedTxn(errNotStarted)
	}
	return d.Store.Transaction()
}
