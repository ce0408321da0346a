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

package migration_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/blinklabs-io/tollgate/internal/test/testutil"
	"github.com/blinklabs-io/tollgate/migration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// upperStep rewrites every value in upper case
func upperStep(_ context.Context, data *migration.Data) error {
	updates := map[string][]byte{}
	if err := data.Each(func(key string, val []byte) error {
		updates[key] = []byte(strings.ToUpper(string(val)))
		return nil
	}); err != nil {
		return err
	}
	for k, v := range updates {
		if err := data.Set(k, v); err != nil {
			return err
		}
	}
	return nil
}

func TestRegistry(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	reg := migration.NewRegistry()
	vault := migration.NewStoreTarget(db, "vault")
	require.NoError(t, reg.Register("vault", vault))
	require.ErrorIs(t, reg.Register("vault", vault), migration.ErrDuplicateTarget)

	target, err := reg.Lookup("vault")
	require.NoError(t, err)
	assert.Same(t, vault, target)
	_, err = reg.Lookup("bridge")
	require.ErrorIs(t, err, migration.ErrTargetNotFound)
	assert.Equal(t, []string{"vault"}, reg.Addresses())
}

func TestStoreTargetMigrate(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	ctx := context.Background()
	target := migration.NewStoreTarget(
		db,
		"vault",
		migration.WithStep(1, upperStep),
	)
	require.NoError(t, target.Seed(ctx, map[string][]byte{
		"alice": []byte("gold"),
		"bob":   []byte("silver"),
	}))
	version, err := target.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, migration.InitialVersion, version)

	require.NoError(t, target.Migrate(ctx, 1))
	version, err = target.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), version)
	snapshot, err := target.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{
		"alice": []byte("GOLD"),
		"bob":   []byte("SILVER"),
	}, snapshot)

	// No step registered for version 2
	require.ErrorIs(t, target.Migrate(ctx, 2), migration.ErrNoStep)
	// Stale from version
	require.ErrorIs(t, target.Migrate(ctx, 1), migration.ErrVersionMismatch)
}

func TestStoreTargetFailedStepLeavesDataUntouched(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	ctx := context.Background()
	errBroken := errors.New("broken step")
	target := migration.NewStoreTarget(
		db,
		"vault",
		migration.WithStep(1, func(ctx context.Context, data *migration.Data) error {
			if err := data.Set("alice", []byte("corrupt")); err != nil {
				return err
			}
			return errBroken
		}),
	)
	require.NoError(t, target.Seed(ctx, map[string][]byte{"alice": []byte("gold")}))
	require.ErrorIs(t, target.Migrate(ctx, 1), errBroken)

	snapshot, err := target.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("gold"), snapshot["alice"])
	version, err := target.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, migration.InitialVersion, version)
}

func TestVerifyIntegrity(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	ctx := context.Background()
	target := migration.NewStoreTarget(db, "vault", migration.WithStep(1, upperStep))
	require.NoError(t, target.Seed(ctx, map[string][]byte{"alice": []byte("gold")}))

	first, err := target.VerifyIntegrity(ctx)
	require.NoError(t, err)
	second, err := target.VerifyIntegrity(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second, "verification must not change state")

	// Same data under another address hashes the same
	other := migration.NewStoreTarget(db, "bridge")
	require.NoError(t, other.Seed(ctx, map[string][]byte{"alice": []byte("gold")}))
	otherDigest, err := other.VerifyIntegrity(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, otherDigest)

	require.NoError(t, target.Migrate(ctx, 1))
	migrated, err := target.VerifyIntegrity(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, migrated)
	assert.Len(t, migrated.String(), 64)
}

func TestVerifyIntegrityCheck(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	ctx := context.Background()
	errInvariant := errors.New("alice must exist")
	target := migration.NewStoreTarget(
		db,
		"vault",
		migration.WithCheck(func(_ context.Context, data *migration.Data) error {
			// Checks can't write
			if err := data.Set("x", nil); err == nil {
				return errors.New("write allowed during verification")
			}
			ok, err := data.Has("alice")
			if err != nil {
				return err
			}
			if !ok {
				return errInvariant
			}
			_, err = data.Get("alice")
			return err
		}),
	)
	_, err := target.VerifyIntegrity(ctx)
	require.ErrorIs(t, err, errInvariant)

	require.NoError(t, target.Seed(ctx, map[string][]byte{"alice": []byte("gold")}))
	_, err = target.VerifyIntegrity(ctx)
	require.NoError(t, err)
}

func TestStoreTargetFallbackStep(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	ctx := context.Background()
	target := migration.NewStoreTarget(
		db,
		"vault",
		migration.WithStep(1, upperStep),
		migration.WithFallbackStep(migration.KeepData),
	)
	require.NoError(t, target.Seed(ctx, map[string][]byte{"alice": []byte("gold")}))
	require.NoError(t, target.Migrate(ctx, 1))
	require.NoError(t, target.Migrate(ctx, 2))
	version, err := target.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), version)
	snapshot, err := target.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"alice": []byte("GOLD")}, snapshot)
}
