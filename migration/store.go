// Copyright 2026 Blink Labs Software
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

package migration

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/blinklabs-io/gouroboros/cbor"
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/tollgate/database"
	"github.com/blinklabs-io/tollgate/database/types"
)

const (
	dataKeyPrefix = "data/"
	versionKey    = "meta/version"

	// InitialVersion is the data version of a target with no recorded version
	InitialVersion uint32 = 1
)

var (
	ErrKeyNotFound     = errors.New("key not found")
	ErrVersionMismatch = errors.New("data version does not match")
	ErrNoStep          = errors.New("no migration step for version")
)

// StepFunc migrates the data of a StoreTarget by one version
type StepFunc func(ctx context.Context, data *Data) error

// CheckFunc validates the data of a StoreTarget during integrity verification
type CheckFunc func(ctx context.Context, data *Data) error

// StoreTarget is a managed target keeping its data in the database under its
// own address. It runs one registered step per upgrade.
type StoreTarget struct {
	mu       sync.Mutex
	db       *database.Database
	address  string
	logger   *slog.Logger
	steps    map[uint32]StepFunc
	fallback StepFunc
	check    CheckFunc
}

type StoreTargetOptionFunc func(*StoreTarget)

// WithStoreTargetLogger specifies the logger object to use for logging messages
func WithStoreTargetLogger(logger *slog.Logger) StoreTargetOptionFunc {
	return func(s *StoreTarget) {
		s.logger = logger
	}
}

// WithStep registers the step run by Migrate(fromVersion)
func WithStep(fromVersion uint32, step StepFunc) StoreTargetOptionFunc {
	return func(s *StoreTarget) {
		s.steps[fromVersion] = step
	}
}

// WithFallbackStep registers the step run for versions that have no step of
// their own
func WithFallbackStep(step StepFunc) StoreTargetOptionFunc {
	return func(s *StoreTarget) {
		s.fallback = step
	}
}

// KeepData is a step that leaves the data as is and only bumps the version
func KeepData(context.Context, *Data) error {
	return nil
}

// WithCheck registers a validation run by VerifyIntegrity
func WithCheck(check CheckFunc) StoreTargetOptionFunc {
	return func(s *StoreTarget) {
		s.check = check
	}
}

func NewStoreTarget(
	db *database.Database,
	address string,
	opts ...StoreTargetOptionFunc,
) *StoreTarget {
	s := &StoreTarget{
		db:      db,
		address: address,
		steps:   make(map[uint32]StepFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s.logger = s.logger.With("component", "migration", "target", address)
	return s
}

// Address returns the address of the target
func (s *StoreTarget) Address() string {
	return s.address
}

func (s *StoreTarget) CurrentVersion(ctx context.Context) (uint32, error) {
	var version uint32
	err := s.db.View(ctx, func(_ context.Context, txn *database.Txn) error {
		var err error
		version, err = s.readVersion(txn)
		return err
	})
	return version, err
}

func (s *StoreTarget) readVersion(txn *database.Txn) (uint32, error) {
	val, err := s.db.GetTargetData(s.address, versionKey, txn)
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return InitialVersion, nil
		}
		return 0, err
	}
	if len(val) != 4 {
		return 0, fmt.Errorf("invalid version record of %d bytes", len(val))
	}
	return binary.BigEndian.Uint32(val), nil
}

// Migrate runs the step registered for fromVersion and bumps the data version
// by one. It fails with ErrVersionMismatch unless the stored data version
// equals fromVersion.
//
// The data version only tracks the proxy version while the upgrade manager is
// the sole governance principal of the proxy. A rollback issued directly by
// another governance principal moves the proxy back without reverting the
// data version, and later upgrades then fail with ErrVersionMismatch.
func (s *StoreTarget) Migrate(ctx context.Context, fromVersion uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(ctx, func(ctx context.Context, txn *database.Txn) error {
		current, err := s.readVersion(txn)
		if err != nil {
			return err
		}
		if current != fromVersion {
			return fmt.Errorf(
				"%w: stored %d, migrating from %d",
				ErrVersionMismatch,
				current,
				fromVersion,
			)
		}
		step, ok := s.steps[fromVersion]
		if !ok && s.fallback != nil {
			step, ok = s.fallback, true
		}
		if !ok {
			return fmt.Errorf("%w: %d", ErrNoStep, fromVersion)
		}
		if err := step(ctx, &Data{store: s, txn: txn}); err != nil {
			return err
		}
		val := binary.BigEndian.AppendUint32(nil, fromVersion+1)
		if err := s.db.SetTargetData(s.address, versionKey, val, txn); err != nil {
			return err
		}
		s.logger.Info(
			"migrated target data",
			"from", fromVersion,
			"to", fromVersion+1,
		)
		return nil
	})
}

func (s *StoreTarget) VerifyIntegrity(ctx context.Context) (Digest, error) {
	var digest Digest
	err := s.db.View(ctx, func(ctx context.Context, txn *database.Txn) error {
		if s.check != nil {
			if err := s.check(ctx, &Data{store: s, txn: txn, readOnly: true}); err != nil {
				return err
			}
		}
		records, err := s.db.TargetData(s.address, txn)
		if err != nil {
			return err
		}
		digest, err = digestRecords(records)
		return err
	})
	return digest, err
}

// Seed writes initial data outside of any migration
func (s *StoreTarget) Seed(ctx context.Context, values map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(ctx, func(_ context.Context, txn *database.Txn) error {
		data := &Data{store: s, txn: txn}
		for k, v := range values {
			if err := data.Set(k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Snapshot returns the current data of the target
func (s *StoreTarget) Snapshot(ctx context.Context) (map[string][]byte, error) {
	ret := make(map[string][]byte)
	err := s.db.View(ctx, func(_ context.Context, txn *database.Txn) error {
		return (&Data{store: s, txn: txn, readOnly: true}).Each(
			func(key string, val []byte) error {
				ret[key] = val
				return nil
			},
		)
	})
	return ret, err
}

// digestRecords hashes the CBOR encoding of the ordered key/value pairs
func digestRecords(records []database.KeyValue) (Digest, error) {
	pairs := make([][2][]byte, 0, len(records))
	for _, record := range records {
		pairs = append(pairs, [2][]byte{record.Key, record.Value})
	}
	encoded, err := cbor.Encode(pairs)
	if err != nil {
		return Digest{}, fmt.Errorf("failed to encode target data: %w", err)
	}
	return lcommon.Blake2b256Hash(encoded), nil
}

// Data gives migration steps and checks access to the data of a target
// within the surrounding transaction
type Data struct {
	store    *StoreTarget
	txn      *database.Txn
	readOnly bool
}

var errReadOnly = errors.New("target data is read-only during verification")

func (d *Data) Get(key string) ([]byte, error) {
	val, err := d.store.db.GetTargetData(d.store.address, dataKeyPrefix+key, d.txn)
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
		}
		return nil, err
	}
	return val, nil
}

func (d *Data) Has(key string) (bool, error) {
	return d.store.db.HasTargetData(d.store.address, dataKeyPrefix+key, d.txn)
}

func (d *Data) Set(key string, val []byte) error {
	if d.readOnly {
		return errReadOnly
	}
	return d.store.db.SetTargetData(d.store.address, dataKeyPrefix+key, val, d.txn)
}

func (d *Data) Delete(key string) error {
	if d.readOnly {
		return errReadOnly
	}
	return d.store.db.DeleteTargetData(d.store.address, dataKeyPrefix+key, d.txn)
}

// Each calls fn for every key in order
func (d *Data) Each(fn func(key string, val []byte) error) error {
	records, err := d.store.db.TargetData(d.store.address, d.txn)
	if err != nil {
		return err
	}
	for _, record := range records {
		key, ok := strings.CutPrefix(string(record.Key), dataKeyPrefix)
		if !ok {
			continue
		}
		if err := fn(key, record.Value); err != nil {
			return err
		}
	}
	return nil
}
