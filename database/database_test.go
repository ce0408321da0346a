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

package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/blinklabs-io/tollgate/database"
	"github.com/blinklabs-io/tollgate/database/models"
	"github.com/blinklabs-io/tollgate/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func TestTimelockRecords(t *testing.T) {
	db := newTestDB(t)
	cfg, err := db.GetTimelockConfig("default", nil)
	require.NoError(t, err)
	assert.Nil(t, cfg, "uninitialized timelock")

	require.NoError(t, db.SetTimelockConfig(
		"default",
		&database.TimelockConfig{Admin: "admin", Delay: 86400},
		nil,
	))
	cfg, err = db.GetTimelockConfig("default", nil)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "admin", cfg.Admin)
	assert.Equal(t, uint64(86400), cfg.Delay)

	// Named timelocks don't see each other
	other, err := db.GetTimelockConfig("other", nil)
	require.NoError(t, err)
	assert.Nil(t, other)

	for _, id := range []string{"b", "a", "c"} {
		require.NoError(t, db.SetTimelockEntry(
			"default",
			&database.TimelockEntry{ID: id, Target: "vault", Action: "upgrade", Eta: 100},
			nil,
		))
	}
	require.NoError(t, db.SetTimelockEntry(
		"other",
		&database.TimelockEntry{ID: "z", Eta: 1},
		nil,
	))
	entries, err := db.GetTimelockEntries("default", nil)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "a", entries[0].ID)
	assert.Equal(t, "c", entries[2].ID)

	has, err := db.HasTimelockEntry("default", "b", nil)
	require.NoError(t, err)
	assert.True(t, has)
	require.NoError(t, db.DeleteTimelockEntry("default", "b", nil))
	entry, err := db.GetTimelockEntry("default", "b", nil)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestProxyRecords(t *testing.T) {
	db := newTestDB(t)
	has, err := db.HasProxyState("vault", nil)
	require.NoError(t, err)
	assert.False(t, has)

	state := &database.ProxyState{
		Implementation: "vault-v1",
		Governance:     "manager",
		Version:        1,
	}
	require.NoError(t, db.SetProxyState("vault", state, nil))
	require.NoError(t, db.SetProxyState("bridge", state, nil))

	got, err := db.GetProxyState("vault", nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "vault-v1", got.Implementation)
	assert.False(t, got.HasPrevious())
	assert.Equal(t, uint32(1), got.Version)

	targets, err := db.GetProxyTargets(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"bridge", "vault"}, targets)
}

func TestManagerConfigRecord(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SetManagerConfig(
		"default",
		&database.ManagerConfig{
			Admin:          "admin",
			Validators:     []string{"v1", "v2", "v3"},
			Threshold:      2,
			NextProposalID: 5,
		},
		nil,
	))
	cfg, err := db.GetManagerConfig("default", nil)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, []string{"v1", "v2", "v3"}, cfg.Validators)
	assert.Equal(t, uint32(2), cfg.Threshold)
	assert.Equal(t, uint64(5), cfg.NextProposalID)
}

func TestProposalAccessors(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetProposal(1, nil)
	require.ErrorIs(t, err, models.ErrProposalNotFound)

	require.NoError(t, db.SetProposal(&models.Proposal{ID: 1, Target: "vault"}, nil))
	added, err := db.AddProposalApproval(1, "v1", 10, nil)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = db.AddProposalApproval(1, "v1", 11, nil)
	require.NoError(t, err)
	assert.False(t, added)
	approvals, err := db.GetProposalApprovals(1, nil)
	require.NoError(t, err)
	assert.Len(t, approvals, 1)
}

func TestTargetData(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SetTargetData("vault", "b", []byte("2"), nil))
	require.NoError(t, db.SetTargetData("vault", "a", []byte("1"), nil))
	require.NoError(t, db.SetTargetData("vaulty", "a", []byte("x"), nil))

	data, err := db.TargetData("vault", nil)
	require.NoError(t, err)
	require.Len(t, data, 2)
	assert.Equal(t, []byte("a"), data[0].Key)
	assert.Equal(t, []byte("1"), data[0].Value)

	_, err = db.GetTargetData("vault", "missing", nil)
	require.ErrorIs(t, err, types.ErrBlobKeyNotFound)
	require.NoError(t, db.DeleteTargetData("vault", "a", nil))
	has, err := db.HasTargetData("vault", "a", nil)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestTxnRollbackDiscardsBothStores(t *testing.T) {
	db := newTestDB(t)
	errBoom := errors.New("boom")
	txn := db.Transaction(true)
	err := txn.Do(func(txn *database.Txn) error {
		if err := db.SetProxyState(
			"vault",
			&database.ProxyState{Implementation: "v1", Version: 1},
			txn,
		); err != nil {
			return err
		}
		if err := db.SetProposal(&models.Proposal{ID: 1, Target: "vault"}, txn); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	state, err := db.GetProxyState("vault", nil)
	require.NoError(t, err)
	assert.Nil(t, state)
	_, err = db.GetProposal(1, nil)
	require.ErrorIs(t, err, models.ErrProposalNotFound)
}

func TestUpdateJoinsContextTxn(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	errBoom := errors.New("boom")
	err := db.Update(ctx, func(ctx context.Context, outer *database.Txn) error {
		// Nested update joins the outer transaction
		err := db.Update(ctx, func(_ context.Context, inner *database.Txn) error {
			assert.Same(t, outer, inner)
			return db.SetProxyState(
				"vault",
				&database.ProxyState{Implementation: "v1", Version: 1},
				inner,
			)
		})
		require.NoError(t, err)
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)
	state, err := db.GetProxyState("vault", nil)
	require.NoError(t, err)
	assert.Nil(t, state, "outer failure discards the nested write")

	require.NoError(t, db.Update(ctx, func(_ context.Context, txn *database.Txn) error {
		return db.SetProxyState(
			"vault",
			&database.ProxyState{Implementation: "v1", Version: 1},
			txn,
		)
	}))
	err = db.View(ctx, func(_ context.Context, txn *database.Txn) error {
		assert.False(t, txn.ReadWrite())
		state, err = db.GetProxyState("vault", txn)
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, state)
}

func TestPersistentDatabase(t *testing.T) {
	dataDir := t.TempDir()
	db, err := database.New(&database.Config{DataDir: dataDir})
	require.NoError(t, err)
	require.NoError(t, db.SetManagerConfig(
		"default",
		&database.ManagerConfig{Admin: "admin", Validators: []string{"v1"}, Threshold: 1},
		nil,
	))
	require.NoError(t, db.Close())

	db, err = database.New(&database.Config{DataDir: dataDir})
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck
	cfg, err := db.GetManagerConfig("default", nil)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "admin", cfg.Admin)
}

func TestUnknownPlugin(t *testing.T) {
	_, err := database.New(&database.Config{MetadataPlugin: "nope"})
	require.Error(t, err)
}
