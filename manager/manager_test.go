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

package manager_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/blinklabs-io/tollgate/auth"
	"github.com/blinklabs-io/tollgate/clock"
	"github.com/blinklabs-io/tollgate/database"
	"github.com/blinklabs-io/tollgate/database/models"
	"github.com/blinklabs-io/tollgate/event"
	"github.com/blinklabs-io/tollgate/internal/test/testutil"
	"github.com/blinklabs-io/tollgate/manager"
	"github.com/blinklabs-io/tollgate/migration"
	"github.com/blinklabs-io/tollgate/proxy"
	"github.com/blinklabs-io/tollgate/timelock"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const (
	testAdmin     auth.Principal = "admin"
	testPrincipal auth.Principal = "tollgate-manager"
	testDelay     uint64         = 86400
	testStart     uint64         = 10
	testTarget                   = "vault"
)

var testValidators = []auth.Principal{"v1", "v2", "v3"}

type fixture struct {
	db       *database.Database
	clk      *clock.Manual
	timelock *timelock.Timelock
	proxy    *proxy.Proxy
	proxies  *proxy.Registry
	target   *migration.StoreTarget
	mgr      *manager.Manager
}

type fixtureOptions struct {
	threshold  uint32
	targetOpts []migration.StoreTargetOptionFunc
	eventBus   *event.EventBus
	registry   prometheus.Registerer
	tracer     *sdktrace.TracerProvider
}

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

// corruptStep writes data and then fails
func corruptStep(_ context.Context, data *migration.Data) error {
	if err := data.Set("alice", []byte("lead")); err != nil {
		return err
	}
	return errors.New("unexpected data layout")
}

func newFixture(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		db:  testutil.NewTestDatabase(t),
		clk: clock.NewManual(testStart),
	}
	var err error
	f.timelock, err = timelock.New(timelock.Config{
		Database: f.db,
		Clock:    f.clk,
		EventBus: opts.eventBus,
	})
	require.NoError(t, err)
	require.NoError(t, f.timelock.Initialize(ctx, testPrincipal, testDelay))

	codes := proxy.NewCodeRegistry()
	for _, ref := range []string{"vault-v1", "vault-v2", "vault-v3"} {
		codes.Register(
			ref,
			proxy.ImplementationFunc(
				func(context.Context, string, []byte) ([]byte, error) {
					return []byte(ref), nil
				},
			),
		)
	}
	f.proxy, err = proxy.New(proxy.Config{
		Database: f.db,
		Clock:    f.clk,
		Codes:    codes,
		EventBus: opts.eventBus,
		Target:   testTarget,
	})
	require.NoError(t, err)
	require.NoError(t, f.proxy.Init(ctx, "vault-v1", testPrincipal))
	f.proxies = proxy.NewRegistry()
	require.NoError(t, f.proxies.Add(f.proxy))

	targetOpts := opts.targetOpts
	if targetOpts == nil {
		targetOpts = []migration.StoreTargetOptionFunc{
			migration.WithStep(1, upperStep),
			migration.WithStep(2, upperStep),
		}
	}
	f.target = migration.NewStoreTarget(f.db, testTarget, targetOpts...)
	require.NoError(t, f.target.Seed(ctx, map[string][]byte{
		"alice": []byte("gold"),
		"bob":   []byte("silver"),
	}))
	targets := migration.NewRegistry()
	require.NoError(t, targets.Register(testTarget, f.target))

	cfg := manager.Config{
		Database:     f.db,
		Clock:        f.clk,
		Timelock:     f.timelock,
		Proxies:      f.proxies,
		Targets:      targets,
		Principal:    testPrincipal,
		EventBus:     opts.eventBus,
		PromRegistry: opts.registry,
	}
	if opts.tracer != nil {
		cfg.TracerProvider = opts.tracer
	}
	f.mgr, err = manager.New(cfg)
	require.NoError(t, err)
	require.NoError(
		t,
		f.mgr.Initialize(ctx, testAdmin, testValidators, opts.threshold),
	)
	return f
}

func (f *fixture) propose(t *testing.T, codeRef string, version uint32) uint64 {
	t.Helper()
	id, err := f.mgr.Propose(
		testutil.As("v1"),
		"v1",
		testTarget,
		codeRef,
		version,
		"",
	)
	require.NoError(t, err)
	return id
}

func (f *fixture) approveAll(t *testing.T, id uint64) *manager.Proposal {
	t.Helper()
	var ret *manager.Proposal
	for _, v := range testValidators {
		var err error
		ret, err = f.mgr.Approve(testutil.As(v), v, id)
		require.NoError(t, err)
	}
	return ret
}

func TestInitializeValidation(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	clk := clock.NewManual(0)
	tl, err := timelock.New(timelock.Config{Database: db, Clock: clk})
	require.NoError(t, err)
	mgr, err := manager.New(manager.Config{
		Database:  db,
		Clock:     clk,
		Timelock:  tl,
		Principal: testPrincipal,
	})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = mgr.Validators(ctx)
	require.ErrorIs(t, err, manager.ErrNotInitialized)
	require.ErrorIs(
		t,
		mgr.Initialize(ctx, "", testValidators, 0),
		manager.ErrInvalidAdmin,
	)
	require.ErrorIs(
		t,
		mgr.Initialize(ctx, testAdmin, nil, 0),
		manager.ErrInvalidValidatorSet,
	)
	require.ErrorIs(
		t,
		mgr.Initialize(ctx, testAdmin, []auth.Principal{"v1", "v2", "v1"}, 0),
		manager.ErrInvalidValidatorSet,
	)
	require.ErrorIs(
		t,
		mgr.Initialize(ctx, testAdmin, []auth.Principal{"v1", ""}, 0),
		manager.ErrInvalidValidatorSet,
	)
	require.ErrorIs(
		t,
		mgr.Initialize(ctx, testAdmin, testValidators, 4),
		manager.ErrInvalidThreshold,
	)

	require.NoError(t, mgr.Initialize(ctx, testAdmin, testValidators, 0))
	require.ErrorIs(
		t,
		mgr.Initialize(ctx, testAdmin, testValidators, 0),
		manager.ErrAlreadyInitialized,
	)
	validators, err := mgr.Validators(ctx)
	require.NoError(t, err)
	assert.Equal(t, testValidators, validators)
	threshold, err := mgr.Threshold(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), threshold, "zero threshold means unanimity")
	admin, err := mgr.Admin(ctx)
	require.NoError(t, err)
	assert.Equal(t, testAdmin, admin)
}

func TestQuorumAndTimelock(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	ctx := context.Background()
	id := f.propose(t, "vault-v2", 2)
	assert.Equal(t, uint64(1), id)

	for i, v := range testValidators[:2] {
		p, err := f.mgr.Approve(testutil.As(v), v, id)
		require.NoError(t, err)
		assert.Len(t, p.Approvals, i+1)
		assert.Nil(t, p.Eta, "no eta before quorum")
		assert.Equal(t, manager.StateOpen, f.mgr.State(p, f.clk.Now()))
	}
	p, err := f.mgr.Approve(testutil.As("v3"), "v3", id)
	require.NoError(t, err)
	require.NotNil(t, p.Eta)
	assert.Equal(t, testStart+testDelay, *p.Eta)
	assert.Equal(t, manager.StateQueued, f.mgr.State(p, f.clk.Now()))

	entry, err := f.timelock.Get(ctx, database.ProposalTimelockID(id))
	require.NoError(t, err)
	assert.Equal(t, *p.Eta, entry.Eta)

	f.clk.Set(testStart + testDelay - 1)
	_, err = f.mgr.Execute(ctx, id)
	require.ErrorIs(t, err, manager.ErrNotReady)

	f.clk.Set(testStart + testDelay)
	assert.Equal(t, manager.StateExecutable, f.mgr.State(p, f.clk.Now()))
	result, err := f.mgr.Execute(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), result.Version)
	assert.Equal(t, "vault-v2", result.Implementation)

	state, err := f.proxy.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, "vault-v2", state.Implementation)
	assert.Equal(t, "vault-v1", state.PreviousImplementation)
	assert.Equal(t, uint32(2), state.Version)

	data, err := f.target.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("GOLD"), data["alice"])
	digest, err := f.target.VerifyIntegrity(ctx)
	require.NoError(t, err)
	assert.Equal(t, digest, result.Digest)

	p, err = f.mgr.GetProposal(ctx, id)
	require.NoError(t, err)
	assert.True(t, p.Executed)
	assert.False(t, p.RolledBack)
	assert.Equal(t, manager.StateExecuted, f.mgr.State(p, f.clk.Now()))

	// The timelock entry is consumed
	_, err = f.timelock.Get(ctx, database.ProposalTimelockID(id))
	require.ErrorIs(t, err, timelock.ErrNotFound)
}

func TestThreshold(t *testing.T) {
	f := newFixture(t, fixtureOptions{threshold: 2})
	id := f.propose(t, "vault-v2", 2)
	p, err := f.mgr.Approve(testutil.As("v1"), "v1", id)
	require.NoError(t, err)
	assert.Nil(t, p.Eta)
	p, err = f.mgr.Approve(testutil.As("v3"), "v3", id)
	require.NoError(t, err)
	require.NotNil(t, p.Eta)
	eta := *p.Eta

	// A late approval is recorded but does not move the eta
	f.clk.Advance(100)
	p, err = f.mgr.Approve(testutil.As("v2"), "v2", id)
	require.NoError(t, err)
	assert.Len(t, p.Approvals, 3)
	assert.Equal(t, eta, *p.Eta)
}

func TestPropose(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	tests := []struct {
		name    string
		ctx     context.Context
		caller  auth.Principal
		target  string
		codeRef string
		version uint32
		err     error
	}{
		{"not a validator", testutil.As("mallory"), "mallory", testTarget, "vault-v2", 2, auth.ErrNotAuthorized},
		{"caller mismatch", testutil.As("v2"), "v1", testTarget, "vault-v2", 2, auth.ErrNotAuthorized},
		{"no caller", context.Background(), "v1", testTarget, "vault-v2", 2, auth.ErrNotAuthorized},
		{"unknown target", testutil.As("v1"), "v1", "bridge", "bridge-v2", 2, manager.ErrNotFound},
		{"same version", testutil.As("v1"), "v1", testTarget, "vault-v2", 1, manager.ErrInvalidVersion},
		{"empty code ref", testutil.As("v1"), "v1", testTarget, "", 2, manager.ErrInvalidProposal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.mgr.Propose(tc.ctx, tc.caller, tc.target, tc.codeRef, tc.version, "")
			require.ErrorIs(t, err, tc.err)
		})
	}

	// Failed proposals do not consume IDs
	assert.Equal(t, uint64(1), f.propose(t, "vault-v2", 2))
	assert.Equal(t, uint64(2), f.propose(t, "vault-v3", 3))

	p, err := f.mgr.GetProposal(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "vault-v3", p.CodeRef)
	assert.Equal(t, uint32(3), p.TargetVersion)
	assert.Equal(t, "v1", p.Proposer)
	assert.Equal(t, testStart, p.ProposedAt)
	assert.Empty(t, p.Approvals)
}

func TestProposeUninitializedProxy(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	bridge, err := proxy.New(proxy.Config{
		Database: f.db,
		Clock:    f.clk,
		Target:   "bridge",
	})
	require.NoError(t, err)
	require.NoError(t, f.proxies.Add(bridge))
	_, err = f.mgr.Propose(testutil.As("v1"), "v1", "bridge", "bridge-v2", 2, "")
	require.ErrorIs(t, err, manager.ErrNotFound)
}

func TestApprove(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	_, err := f.mgr.Approve(testutil.As("v1"), "v1", 42)
	require.ErrorIs(t, err, manager.ErrNotFound)

	id := f.propose(t, "vault-v2", 2)
	_, err = f.mgr.Approve(testutil.As("mallory"), "mallory", id)
	require.ErrorIs(t, err, auth.ErrNotAuthorized)
	// The rejected approval leaves no trace
	p, err := f.mgr.GetProposal(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, p.Approvals)
	assert.Nil(t, p.Eta)

	// Approving twice counts once
	for range 2 {
		p, err := f.mgr.Approve(testutil.As("v1"), "v1", id)
		require.NoError(t, err)
		assert.Equal(t, []auth.Principal{"v1"}, p.Approvals)
		assert.Nil(t, p.Eta)
	}
}

func TestExecuteChecks(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	ctx := context.Background()
	_, err := f.mgr.Execute(ctx, 42)
	require.ErrorIs(t, err, manager.ErrNotFound)

	id := f.propose(t, "vault-v2", 2)
	_, err = f.mgr.Execute(ctx, id)
	require.ErrorIs(t, err, manager.ErrNotReady, "open proposals are not ready")

	f.approveAll(t, id)
	f.clk.Advance(testDelay)
	_, err = f.mgr.Execute(ctx, id)
	require.NoError(t, err)
	_, err = f.mgr.Execute(ctx, id)
	require.ErrorIs(t, err, manager.ErrAlreadyExecuted)
	_, err = f.mgr.Approve(testutil.As("v1"), "v1", id)
	require.ErrorIs(t, err, manager.ErrAlreadyExecuted)
}

func TestExecuteStaleVersion(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	ctx := context.Background()
	first := f.propose(t, "vault-v2", 2)
	second := f.propose(t, "vault-v3", 2)
	f.approveAll(t, first)
	f.approveAll(t, second)
	f.clk.Advance(testDelay)

	_, err := f.mgr.Execute(ctx, first)
	require.NoError(t, err)
	_, err = f.mgr.Execute(ctx, second)
	require.ErrorIs(t, err, manager.ErrInvalidVersion)

	state, err := f.proxy.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, "vault-v2", state.Implementation)
}

func TestExecuteRollsBackFailedMigration(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	_, rolledBackCh := eb.Subscribe(event.ProposalRolledBackEventType)
	_, executedCh := eb.Subscribe(event.ProposalExecutedEventType)
	_, proxyUpgradedCh := eb.Subscribe(event.ProxyUpgradedEventType)
	f := newFixture(t, fixtureOptions{
		eventBus: eb,
		targetOpts: []migration.StoreTargetOptionFunc{
			migration.WithStep(1, corruptStep),
		},
	})
	ctx := context.Background()
	before, err := f.target.VerifyIntegrity(ctx)
	require.NoError(t, err)

	id := f.propose(t, "vault-v2", 2)
	f.approveAll(t, id)
	f.clk.Advance(testDelay)
	_, err = f.mgr.Execute(ctx, id)
	require.ErrorIs(t, err, manager.ErrMigrationFailed)
	var migrationErr *manager.MigrationError
	require.ErrorAs(t, err, &migrationErr)
	assert.Equal(t, id, migrationErr.ProposalID)
	assert.Equal(t, testTarget, migrationErr.Target)
	assert.NotErrorIs(t, err, manager.ErrSwapFailed)

	// The proxy is back on the original implementation
	state, err := f.proxy.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, "vault-v1", state.Implementation)
	assert.False(t, state.HasPrevious())
	assert.Equal(t, uint32(1), state.Version)
	history, err := f.proxy.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, models.ProxyActionUpgrade, history[1].Action)
	assert.Equal(t, models.ProxyActionRollback, history[2].Action)
	assert.Equal(t, string(testPrincipal), history[2].Actor)

	// Writes made by the failed migration are discarded
	data, err := f.target.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("gold"), data["alice"])
	version, err := f.target.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, migration.InitialVersion, version)
	after, err := f.target.VerifyIntegrity(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	p, err := f.mgr.GetProposal(ctx, id)
	require.NoError(t, err)
	assert.True(t, p.Executed)
	assert.True(t, p.RolledBack)
	assert.Contains(t, p.FailureReason, "unexpected data layout")
	_, err = f.mgr.Execute(ctx, id)
	require.ErrorIs(t, err, manager.ErrAlreadyExecuted)

	evt := testutil.RequireReceive(t, rolledBackCh, time.Second, "rolled back event")
	data2, ok := evt.Data.(event.ProposalEvent)
	require.True(t, ok)
	assert.Equal(t, id, data2.ProposalID)
	assert.Contains(t, data2.Reason, "unexpected data layout")
	testutil.RequireNoReceive(t, executedCh, 50*time.Millisecond, "executed event")
	// Only the committed swap is published
	testutil.RequireReceive(t, proxyUpgradedCh, time.Second, "proxy upgraded event")
	testutil.RequireNoReceive(t, proxyUpgradedCh, 50*time.Millisecond, "second proxy upgraded event")
}

func TestExecuteRollsBackFailedIntegrityCheck(t *testing.T) {
	f := newFixture(t, fixtureOptions{
		targetOpts: []migration.StoreTargetOptionFunc{
			migration.WithStep(1, upperStep),
			migration.WithCheck(func(_ context.Context, data *migration.Data) error {
				val, err := data.Get("alice")
				if err != nil {
					return err
				}
				if string(val) != "gold" {
					return errors.New("alice balance changed")
				}
				return nil
			}),
		},
	})
	ctx := context.Background()
	id := f.propose(t, "vault-v2", 2)
	f.approveAll(t, id)
	f.clk.Advance(testDelay)
	_, err := f.mgr.Execute(ctx, id)
	require.ErrorIs(t, err, manager.ErrMigrationFailed)
	require.ErrorContains(t, err, "alice balance changed")

	data, err := f.target.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("gold"), data["alice"])
	state, err := f.proxy.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), state.Version)
}

func TestExecuteSwapFailure(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	ctx := context.Background()
	id := f.propose(t, "vault-v9", 2)
	f.approveAll(t, id)
	f.clk.Advance(testDelay)

	_, err := f.mgr.Execute(ctx, id)
	require.ErrorIs(t, err, manager.ErrSwapFailed)
	require.ErrorIs(t, err, proxy.ErrUnknownImplementation)
	assert.NotErrorIs(t, err, manager.ErrMigrationFailed)

	p, err := f.mgr.GetProposal(ctx, id)
	require.NoError(t, err)
	assert.False(t, p.Executed)
	assert.False(t, p.RolledBack)
	// Nothing was consumed or changed
	_, err = f.timelock.Get(ctx, database.ProposalTimelockID(id))
	require.NoError(t, err)
	history, err := f.proxy.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestConcurrentExecute(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	ctx := context.Background()
	id := f.propose(t, "vault-v2", 2)
	f.approveAll(t, id)
	f.clk.Advance(testDelay)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.mgr.Execute(ctx, id)
		}()
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, manager.ErrAlreadyExecuted)
	}
	assert.Equal(t, 1, succeeded)
	state, err := f.proxy.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), state.Version)
	version, err := f.target.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), version, "migration runs once")
}

func TestCancel(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	ctx := context.Background()
	admin := testutil.As(testAdmin)
	require.ErrorIs(t, f.mgr.Cancel(admin, 42), manager.ErrNotFound)

	id := f.propose(t, "vault-v2", 2)
	f.approveAll(t, id)
	require.ErrorIs(t, f.mgr.Cancel(testutil.As("v1"), id), auth.ErrNotAuthorized)
	require.NoError(t, f.mgr.Cancel(admin, id))
	require.ErrorIs(t, f.mgr.Cancel(admin, id), manager.ErrCancelled)

	_, err := f.timelock.Get(ctx, database.ProposalTimelockID(id))
	require.ErrorIs(t, err, timelock.ErrNotFound)
	f.clk.Advance(testDelay)
	_, err = f.mgr.Execute(ctx, id)
	require.ErrorIs(t, err, manager.ErrCancelled)
	_, err = f.mgr.Approve(testutil.As("v1"), "v1", id)
	require.ErrorIs(t, err, manager.ErrCancelled)

	p, err := f.mgr.GetProposal(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, manager.StateCancelled, f.mgr.State(p, f.clk.Now()))

	// Executed proposals cannot be cancelled
	next := f.propose(t, "vault-v2", 2)
	f.approveAll(t, next)
	f.clk.Advance(testDelay)
	_, err = f.mgr.Execute(ctx, next)
	require.NoError(t, err)
	require.ErrorIs(t, f.mgr.Cancel(admin, next), manager.ErrAlreadyExecuted)
}

func TestListProposals(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	ctx := context.Background()
	first := f.propose(t, "vault-v2", 2)
	second := f.propose(t, "vault-v3", 3)
	require.NoError(t, f.mgr.Cancel(testutil.As(testAdmin), first))

	all, err := f.mgr.ListProposals(ctx, models.ProposalFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first, all[0].ID)

	pending, err := f.mgr.ListProposals(ctx, models.ProposalFilter{PendingOnly: true})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second, pending[0].ID)
}

func TestMetricsAndTracing(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() {
		_ = tp.Shutdown(context.Background())
	}()
	f := newFixture(t, fixtureOptions{registry: reg, tracer: tp})
	id := f.propose(t, "vault-v2", 2)
	f.approveAll(t, id)
	f.clk.Advance(testDelay)
	_, err := f.mgr.Execute(context.Background(), id)
	require.NoError(t, err)

	expected := `
# HELP manager_approvals_total total distinct approvals recorded
# TYPE manager_approvals_total counter
manager_approvals_total{manager="default"} 3
`
	require.NoError(
		t,
		promtestutil.GatherAndCompare(
			reg,
			strings.NewReader(expected),
			"manager_approvals_total",
		),
	)
	count, err := promtestutil.GatherAndCount(reg, "manager_executed_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	assert.Contains(t, names, "manager.Propose")
	assert.Contains(t, names, "manager.Approve")
	assert.Contains(t, names, "manager.Execute")
}
