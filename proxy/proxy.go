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

// Package proxy implements the delegation facade in front of a managed
// target. It records the current implementation, one previous
// implementation for rollback and the governance principal allowed to
// change them.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/blinklabs-io/tollgate/auth"
	"github.com/blinklabs-io/tollgate/clock"
	"github.com/blinklabs-io/tollgate/database"
	"github.com/blinklabs-io/tollgate/database/models"
	"github.com/blinklabs-io/tollgate/event"
	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	Database     *database.Database
	Clock        clock.Clock
	Authorizer   auth.Authorizer
	Codes        *CodeRegistry
	EventBus     *event.EventBus
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	// Target is the address the proxy fronts
	Target string
}

type Proxy struct {
	mu      sync.Mutex
	config  Config
	target  string
	logger  *slog.Logger
	metrics *proxyMetrics
}

func New(cfg Config) (*Proxy, error) {
	if cfg.Target == "" {
		return nil, errors.New("proxy: target is required")
	}
	if cfg.Database == nil {
		return nil, errors.New("proxy: database is required")
	}
	if cfg.Clock == nil {
		return nil, errors.New("proxy: clock is required")
	}
	if cfg.Authorizer == nil {
		cfg.Authorizer = auth.NewCallerAuthorizer()
	}
	if cfg.Codes == nil {
		cfg.Codes = NewCodeRegistry()
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	p := &Proxy{
		config: cfg,
		target: cfg.Target,
		logger: cfg.Logger.With("component", "proxy", "target", cfg.Target),
	}
	if cfg.PromRegistry != nil {
		p.initMetrics(cfg.PromRegistry)
		state, err := cfg.Database.GetProxyState(p.target, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to load proxy state: %w", err)
		}
		if state != nil {
			p.metrics.version.Set(float64(state.Version))
		}
	}
	return p, nil
}

// Target returns the address fronted by the proxy
func (p *Proxy) Target() string {
	return p.target
}

// Init stores the initial implementation and governance principal. The
// version starts at 1.
func (p *Proxy) Init(
	ctx context.Context,
	implementation string,
	governance auth.Principal,
) error {
	if implementation == "" {
		return ErrInvalidImplementation
	}
	if governance == "" {
		return ErrInvalidGovernance
	}
	if _, err := p.config.Codes.Lookup(implementation); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	db := p.config.Database
	state := &database.ProxyState{
		Implementation: implementation,
		Governance:     string(governance),
		Version:        1,
	}
	err := db.Update(ctx, func(ctx context.Context, txn *database.Txn) error {
		exists, err := db.HasProxyState(p.target, txn)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyInitialized
		}
		if err := db.SetProxyState(p.target, state, txn); err != nil {
			return err
		}
		txn.OnCommit(func() {
			if p.metrics != nil {
				p.metrics.version.Set(1)
			}
			p.publish(event.ProxyInitializedEventType, nil, state)
		})
		return p.recordHistory(
			ctx,
			models.ProxyActionInit,
			nil,
			state,
			txn,
		)
	})
	if err != nil {
		return err
	}
	p.logger.Info(
		"proxy initialized",
		"implementation", implementation,
		"governance", governance,
	)
	return nil
}

// Upgrade switches to newImplementation, keeping the current one as the
// rollback target. Only governance may upgrade.
func (p *Proxy) Upgrade(
	ctx context.Context,
	newImplementation string,
) (*database.ProxyState, error) {
	if newImplementation == "" {
		return nil, ErrInvalidImplementation
	}
	if _, err := p.config.Codes.Lookup(newImplementation); err != nil {
		return nil, err
	}
	prev, next, err := p.mutate(
		ctx,
		models.ProxyActionUpgrade,
		func(state *database.ProxyState) (*database.ProxyState, error) {
			return &database.ProxyState{
				Implementation:         newImplementation,
				PreviousImplementation: state.Implementation,
				Governance:             state.Governance,
				Version:                state.Version + 1,
			}, nil
		},
		func(prev, next *database.ProxyState) {
			if p.metrics != nil {
				p.metrics.version.Set(float64(next.Version))
				p.metrics.upgrades.Inc()
			}
			p.publish(event.ProxyUpgradedEventType, prev, next)
		},
	)
	if err != nil {
		return nil, err
	}
	p.logger.Info(
		"proxy upgraded",
		"from", prev.Implementation,
		"to", next.Implementation,
		"version", next.Version,
	)
	return next, nil
}

// Rollback restores the previous implementation and clears it, so only one
// level of undo is possible. Only governance may roll back.
func (p *Proxy) Rollback(ctx context.Context) (*database.ProxyState, error) {
	prev, next, err := p.mutate(
		ctx,
		models.ProxyActionRollback,
		func(state *database.ProxyState) (*database.ProxyState, error) {
			if !state.HasPrevious() {
				return nil, ErrNoPreviousImplementation
			}
			return &database.ProxyState{
				Implementation: state.PreviousImplementation,
				Governance:     state.Governance,
				Version:        state.Version - 1,
			}, nil
		},
		func(prev, next *database.ProxyState) {
			if p.metrics != nil {
				p.metrics.version.Set(float64(next.Version))
				p.metrics.rollbacks.Inc()
			}
			p.publish(event.ProxyRolledBackEventType, prev, next)
		},
	)
	if err != nil {
		return nil, err
	}
	p.logger.Warn(
		"proxy rolled back",
		"from", prev.Implementation,
		"to", next.Implementation,
		"version", next.Version,
	)
	return next, nil
}

// mutate applies fn to the stored state after checking that the caller is
// the governance principal, and records the change in the history. committed
// runs once the change is durable.
func (p *Proxy) mutate(
	ctx context.Context,
	action string,
	fn func(*database.ProxyState) (*database.ProxyState, error),
	committed func(prev, next *database.ProxyState),
) (*database.ProxyState, *database.ProxyState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	db := p.config.Database
	var prev, next *database.ProxyState
	err := db.Update(ctx, func(ctx context.Context, txn *database.Txn) error {
		var err error
		prev, err = p.loadState(txn)
		if err != nil {
			return err
		}
		if err := p.config.Authorizer.RequireAuthorized(
			ctx,
			auth.Principal(prev.Governance),
		); err != nil {
			return err
		}
		next, err = fn(prev)
		if err != nil {
			return err
		}
		if err := db.SetProxyState(p.target, next, txn); err != nil {
			return err
		}
		txn.OnCommit(func() { committed(prev, next) })
		return p.recordHistory(ctx, action, prev, next, txn)
	})
	if err != nil {
		return nil, nil, err
	}
	return prev, next, nil
}

func (p *Proxy) recordHistory(
	ctx context.Context,
	action string,
	prev *database.ProxyState,
	next *database.ProxyState,
	txn *database.Txn,
) error {
	actor, _ := auth.CallerFromContext(ctx)
	entry := &models.ProxyHistory{
		Target:           p.target,
		Action:           action,
		ToImplementation: next.Implementation,
		ToVersion:        next.Version,
		Actor:            string(actor),
		At:               p.config.Clock.Now(),
	}
	if prev != nil {
		entry.FromImplementation = prev.Implementation
		entry.FromVersion = prev.Version
	}
	if err := p.config.Database.AddProxyHistory(entry, txn); err != nil {
		return fmt.Errorf("failed to record proxy history: %w", err)
	}
	return nil
}

func (p *Proxy) loadState(txn *database.Txn) (*database.ProxyState, error) {
	state, err := p.config.Database.GetProxyState(p.target, txn)
	if err != nil {
		return nil, fmt.Errorf("failed to load proxy state: %w", err)
	}
	if state == nil {
		return nil, ErrNotInitialized
	}
	return state, nil
}

// State returns the stored proxy state
func (p *Proxy) State(ctx context.Context) (*database.ProxyState, error) {
	var state *database.ProxyState
	err := p.config.Database.View(ctx, func(_ context.Context, txn *database.Txn) error {
		var err error
		state, err = p.loadState(txn)
		return err
	})
	return state, err
}

// History returns every recorded change to the proxy, oldest first
func (p *Proxy) History(ctx context.Context) ([]models.ProxyHistory, error) {
	var history []models.ProxyHistory
	err := p.config.Database.View(ctx, func(_ context.Context, txn *database.Txn) error {
		var err error
		history, err = p.config.Database.GetProxyHistory(p.target, txn)
		return err
	})
	return history, err
}

// Invoke forwards a call unmodified to the current implementation
func (p *Proxy) Invoke(
	ctx context.Context,
	method string,
	args []byte,
) ([]byte, error) {
	state, err := p.State(ctx)
	if err != nil {
		return nil, err
	}
	impl, err := p.config.Codes.Lookup(state.Implementation)
	if err != nil {
		return nil, err
	}
	if p.metrics != nil {
		p.metrics.invokes.Inc()
	}
	return impl.Invoke(ctx, method, args)
}

func (p *Proxy) publish(
	evtType event.EventType,
	prev *database.ProxyState,
	next *database.ProxyState,
) {
	if p.config.EventBus == nil {
		return
	}
	evt := event.ProxyEvent{
		Target:           p.target,
		ToImplementation: next.Implementation,
		ToVersion:        next.Version,
	}
	if prev != nil {
		evt.FromImplementation = prev.Implementation
		evt.FromVersion = prev.Version
	}
	p.config.EventBus.Publish(evtType, event.NewEvent(evtType, evt))
}
