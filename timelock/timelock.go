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

// Package timelock implements a delay gate: an action queued by the admin
// cannot be executed before its eta of now plus the configured delay.
package timelock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/blinklabs-io/tollgate/auth"
	"github.com/blinklabs-io/tollgate/clock"
	"github.com/blinklabs-io/tollgate/database"
	"github.com/blinklabs-io/tollgate/event"
	"github.com/prometheus/client_golang/prometheus"
)

const DefaultName = "default"

type Config struct {
	Database     *database.Database
	Clock        clock.Clock
	Authorizer   auth.Authorizer
	EventBus     *event.EventBus
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	// Name separates the state of timelocks sharing one database
	Name string
}

type Timelock struct {
	mu      sync.Mutex
	config  Config
	name    string
	logger  *slog.Logger
	metrics *timelockMetrics
}

func New(cfg Config) (*Timelock, error) {
	if cfg.Database == nil {
		return nil, errors.New("timelock: database is required")
	}
	if cfg.Clock == nil {
		return nil, errors.New("timelock: clock is required")
	}
	if cfg.Authorizer == nil {
		cfg.Authorizer = auth.NewCallerAuthorizer()
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	t := &Timelock{
		config: cfg,
		name:   cfg.Name,
		logger: cfg.Logger.With("component", "timelock", "timelock", cfg.Name),
	}
	if cfg.PromRegistry != nil {
		t.initMetrics(cfg.PromRegistry)
		entries, err := cfg.Database.GetTimelockEntries(t.name, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to load timelock queue: %w", err)
		}
		t.metrics.queued.Set(float64(len(entries)))
	}
	return t, nil
}

// Name returns the name the timelock state is stored under
func (t *Timelock) Name() string {
	return t.name
}

// Initialize stores the admin and delay. It can only be called once.
func (t *Timelock) Initialize(
	ctx context.Context,
	admin auth.Principal,
	delay uint64,
) error {
	if admin == "" {
		return ErrInvalidAdmin
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	db := t.config.Database
	err := db.Update(ctx, func(_ context.Context, txn *database.Txn) error {
		cfg, err := db.GetTimelockConfig(t.name, txn)
		if err != nil {
			return err
		}
		if cfg != nil {
			return ErrAlreadyInitialized
		}
		return db.SetTimelockConfig(
			t.name,
			&database.TimelockConfig{
				Admin: string(admin),
				Delay: delay,
			},
			txn,
		)
	})
	if err != nil {
		return err
	}
	t.logger.Info(
		"timelock initialized",
		"admin", admin,
		"delay", delay,
	)
	return nil
}

func (t *Timelock) loadConfig(txn *database.Txn) (*database.TimelockConfig, error) {
	cfg, err := t.config.Database.GetTimelockConfig(t.name, txn)
	if err != nil {
		return nil, fmt.Errorf("failed to load timelock config: %w", err)
	}
	if cfg == nil {
		return nil, ErrNotInitialized
	}
	return cfg, nil
}

// Queue stores an action that becomes executable after the configured delay.
// Only the admin may queue.
func (t *Timelock) Queue(
	ctx context.Context,
	id string,
	target string,
	action string,
) (*database.TimelockEntry, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	db := t.config.Database
	var entry *database.TimelockEntry
	err := db.Update(ctx, func(ctx context.Context, txn *database.Txn) error {
		cfg, err := t.loadConfig(txn)
		if err != nil {
			return err
		}
		if err := t.config.Authorizer.RequireAuthorized(
			ctx,
			auth.Principal(cfg.Admin),
		); err != nil {
			return err
		}
		exists, err := db.HasTimelockEntry(t.name, id, txn)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		now := t.config.Clock.Now()
		entry = &database.TimelockEntry{
			ID:       id,
			Target:   target,
			Action:   action,
			Eta:      etaAfter(now, cfg.Delay),
			QueuedAt: now,
		}
		if err := db.SetTimelockEntry(t.name, entry, txn); err != nil {
			return err
		}
		txn.OnCommit(func() {
			if t.metrics != nil {
				t.metrics.queued.Inc()
				t.metrics.queue.Inc()
			}
			t.publish(event.TimelockQueuedEventType, entry)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	t.logger.Debug(
		"queued timelock entry",
		"id", id,
		"target", target,
		"eta", entry.Eta,
	)
	return entry, nil
}

// etaAfter returns now+delay, saturating at math.MaxUint64 so a huge delay
// can never wrap to an eta in the past
func etaAfter(now uint64, delay uint64) uint64 {
	if delay > math.MaxUint64-now {
		return math.MaxUint64
	}
	return now + delay
}

// IsExecutable reports whether the eta of a queued entry has been reached
func (t *Timelock) IsExecutable(ctx context.Context, id string) (bool, error) {
	entry, err := t.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return t.config.Clock.Now() >= entry.Eta, nil
}

// Cancel removes a queued entry. Only the admin may cancel.
func (t *Timelock) Cancel(ctx context.Context, id string) error {
	_, err := t.remove(ctx, id, false)
	if err != nil {
		return err
	}
	t.logger.Debug("cancelled timelock entry", "id", id)
	return nil
}

// Execute consumes a queued entry whose eta has been reached and returns it.
// Only the admin may execute.
func (t *Timelock) Execute(
	ctx context.Context,
	id string,
) (*database.TimelockEntry, error) {
	entry, err := t.remove(ctx, id, true)
	if err != nil {
		return nil, err
	}
	t.logger.Debug("executed timelock entry", "id", id)
	return entry, nil
}

func (t *Timelock) remove(
	ctx context.Context,
	id string,
	execute bool,
) (*database.TimelockEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	db := t.config.Database
	var entry *database.TimelockEntry
	err := db.Update(ctx, func(ctx context.Context, txn *database.Txn) error {
		cfg, err := t.loadConfig(txn)
		if err != nil {
			return err
		}
		if err := t.config.Authorizer.RequireAuthorized(
			ctx,
			auth.Principal(cfg.Admin),
		); err != nil {
			return err
		}
		entry, err = db.GetTimelockEntry(t.name, id, txn)
		if err != nil {
			return err
		}
		if entry == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if execute && t.config.Clock.Now() < entry.Eta {
			return fmt.Errorf(
				"%w: %s executable at %d",
				ErrNotReady,
				id,
				entry.Eta,
			)
		}
		if err := db.DeleteTimelockEntry(t.name, id, txn); err != nil {
			return err
		}
		txn.OnCommit(func() {
			evtType := event.TimelockCancelledEventType
			if execute {
				evtType = event.TimelockExecutedEventType
			}
			if t.metrics != nil {
				t.metrics.queued.Dec()
				if execute {
					t.metrics.executed.Inc()
				} else {
					t.metrics.cancelled.Inc()
				}
			}
			t.publish(evtType, entry)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Get returns a queued entry
func (t *Timelock) Get(
	ctx context.Context,
	id string,
) (*database.TimelockEntry, error) {
	db := t.config.Database
	var entry *database.TimelockEntry
	err := db.View(ctx, func(_ context.Context, txn *database.Txn) error {
		var err error
		entry, err = db.GetTimelockEntry(t.name, id, txn)
		return err
	})
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return entry, nil
}

// Entries returns all queued entries ordered by ID
func (t *Timelock) Entries(ctx context.Context) ([]database.TimelockEntry, error) {
	db := t.config.Database
	var entries []database.TimelockEntry
	err := db.View(ctx, func(_ context.Context, txn *database.Txn) error {
		var err error
		entries, err = db.GetTimelockEntries(t.name, txn)
		return err
	})
	return entries, err
}

// Delay returns the configured delay in seconds
func (t *Timelock) Delay(ctx context.Context) (uint64, error) {
	cfg, err := t.viewConfig(ctx)
	if err != nil {
		return 0, err
	}
	return cfg.Delay, nil
}

// Admin returns the principal allowed to queue and cancel
func (t *Timelock) Admin(ctx context.Context) (auth.Principal, error) {
	cfg, err := t.viewConfig(ctx)
	if err != nil {
		return "", err
	}
	return auth.Principal(cfg.Admin), nil
}

func (t *Timelock) viewConfig(ctx context.Context) (*database.TimelockConfig, error) {
	var cfg *database.TimelockConfig
	err := t.config.Database.View(ctx, func(_ context.Context, txn *database.Txn) error {
		var err error
		cfg, err = t.loadConfig(txn)
		return err
	})
	return cfg, err
}

func (t *Timelock) publish(evtType event.EventType, entry *database.TimelockEntry) {
	if t.config.EventBus == nil {
		return
	}
	t.config.EventBus.Publish(
		evtType,
		event.NewEvent(
			evtType,
			event.TimelockEvent{
				Timelock: t.name,
				ID:       entry.ID,
				Target:   entry.Target,
				Action:   entry.Action,
				Eta:      entry.Eta,
			},
		),
	)
}
