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

package tollgate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blinklabs-io/tollgate/api"
	"github.com/blinklabs-io/tollgate/auth"
	"github.com/blinklabs-io/tollgate/clock"
	"github.com/blinklabs-io/tollgate/database"
	"github.com/blinklabs-io/tollgate/event"
	"github.com/blinklabs-io/tollgate/manager"
	"github.com/blinklabs-io/tollgate/migration"
	"github.com/blinklabs-io/tollgate/proxy"
	"github.com/blinklabs-io/tollgate/timelock"
	"go.opentelemetry.io/otel/trace"
)

type Node struct {
	db             *database.Database
	eventBus       *event.EventBus
	timelock       *timelock.Timelock
	manager        *manager.Manager
	proxies        *proxy.Registry
	codes          *proxy.CodeRegistry
	migrations     *migration.Registry
	api            *api.Api
	tracerProvider trace.TracerProvider
	shutdownFuncs  []func(context.Context) error
	config         Config
	ready          chan struct{}
	done           chan struct{}
	shutdownOnce   sync.Once
}

func New(cfg Config) (*Node, error) {
	eventBus := event.NewEventBus(cfg.promRegistry, cfg.logger)
	n := &Node{
		config:   cfg,
		eventBus: eventBus,
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	if err := n.configValidate(); err != nil {
		eventBus.Stop()
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if n.config.clock == nil {
		n.config.clock = clock.NewSystem()
	}
	if n.config.codes == nil {
		n.config.codes = proxy.NewCodeRegistry()
	}
	if n.config.migrations == nil {
		n.config.migrations = migration.NewRegistry()
	}
	n.codes = n.config.codes
	n.migrations = n.config.migrations
	n.proxies = proxy.NewRegistry()
	return n, nil
}

// Run opens the database, bootstraps governance state on first start and
// serves the API. It returns once the context is done or Stop is called.
func (n *Node) Run(ctx context.Context) error {
	// Configure tracing
	if n.config.tracing {
		if err := n.setupTracing(); err != nil {
			return err
		}
	}
	// Load database
	db, err := database.New(&database.Config{
		DataDir:                n.config.dataDir,
		BlobPlugin:             n.config.blobPlugin,
		MetadataPlugin:         n.config.metadataPlugin,
		MetadataDSN:            n.config.metadataDsn,
		MetadataMaxConnections: n.config.metadataMaxConns,
		MaintenanceInterval:    n.config.maintenanceInterval,
		Logger:                 n.config.logger,
		PromRegistry:           n.config.promRegistry,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	n.db = db
	authorizer := auth.NewCallerAuthorizer()
	gov := n.config.governance
	// Load timelock
	n.timelock, err = timelock.New(timelock.Config{
		Database:     n.db,
		Clock:        n.config.clock,
		Authorizer:   authorizer,
		EventBus:     n.eventBus,
		Logger:       n.config.logger,
		PromRegistry: n.config.promRegistry,
	})
	if err != nil {
		return fmt.Errorf("failed to load timelock: %w", err)
	}
	// Load managed targets and their proxies
	for _, target := range n.config.targets {
		if err := n.loadTarget(ctx, target, authorizer); err != nil {
			return err
		}
	}
	// Load upgrade manager
	n.manager, err = manager.New(manager.Config{
		Database:       n.db,
		Clock:          n.config.clock,
		Authorizer:     authorizer,
		Timelock:       n.timelock,
		Proxies:        n.proxies,
		Targets:        n.migrations,
		Principal:      gov.ManagerPrincipal,
		EventBus:       n.eventBus,
		Logger:         n.config.logger,
		PromRegistry:   n.config.promRegistry,
		TracerProvider: n.tracerProvider,
	})
	if err != nil {
		return fmt.Errorf("failed to load upgrade manager: %w", err)
	}
	if err := n.bootstrapGovernance(ctx); err != nil {
		return err
	}
	// Configure API
	if !n.config.apiDisabled {
		n.api = api.NewApi(api.ApiConfig{
			Logger:          n.config.logger,
			Manager:         n.manager,
			Proxies:         n.proxies,
			Timelock:        n.timelock,
			Tokens:          auth.NewTokenTable(n.config.apiTokens),
			Host:            n.config.bindAddr,
			Port:            n.config.apiPort,
			TlsCertFilePath: n.config.tlsCertFilePath,
			TlsKeyFilePath:  n.config.tlsKeyFilePath,
		})
		if err := n.api.Start(); err != nil {
			return err
		}
	}
	close(n.ready)

	// Wait for shutdown signal
	select {
	case <-n.done:
	case <-ctx.Done():
	}
	return nil
}

// loadTarget registers the data-backed managed target, the code references
// it can run and its proxy. A proxy seen for the first time is initialized.
func (n *Node) loadTarget(
	ctx context.Context,
	cfg TargetConfig,
	authorizer auth.Authorizer,
) error {
	target, err := n.migrations.Lookup(cfg.Address)
	if err != nil {
		if !errors.Is(err, migration.ErrTargetNotFound) {
			return err
		}
		store := migration.NewStoreTarget(
			n.db,
			cfg.Address,
			migration.WithStoreTargetLogger(n.config.logger),
			migration.WithFallbackStep(migration.KeepData),
		)
		if err := n.migrations.Register(cfg.Address, store); err != nil {
			return err
		}
		target = store
	}
	codeRefs := append([]string{cfg.Implementation}, cfg.Implementations...)
	for _, codeRef := range codeRefs {
		if _, err := n.codes.Lookup(codeRef); err == nil {
			continue
		}
		store, ok := target.(*migration.StoreTarget)
		if !ok {
			return fmt.Errorf(
				"target %s: %w: %s",
				cfg.Address,
				proxy.ErrUnknownImplementation,
				codeRef,
			)
		}
		n.codes.Register(codeRef, dataImplementation(codeRef, store))
	}
	p, err := proxy.New(proxy.Config{
		Target:       cfg.Address,
		Database:     n.db,
		Clock:        n.config.clock,
		Authorizer:   authorizer,
		Codes:        n.codes,
		EventBus:     n.eventBus,
		Logger:       n.config.logger,
		PromRegistry: n.config.promRegistry,
	})
	if err != nil {
		return fmt.Errorf("failed to load proxy for %s: %w", cfg.Address, err)
	}
	if err := n.proxies.Add(p); err != nil {
		return err
	}
	governance := cfg.Governance
	if governance == "" {
		governance = n.config.governance.ManagerPrincipal
	}
	err = p.Init(ctx, cfg.Implementation, governance)
	if err != nil && !errors.Is(err, proxy.ErrAlreadyInitialized) {
		return fmt.Errorf("failed to initialize proxy for %s: %w", cfg.Address, err)
	}
	return nil
}

// bootstrapGovernance initializes the timelock and the upgrade manager the
// first time the node runs against a database
func (n *Node) bootstrapGovernance(ctx context.Context) error {
	gov := n.config.governance
	delay := gov.TimelockDelay
	err := n.timelock.Initialize(ctx, gov.ManagerPrincipal, delay)
	switch {
	case err == nil:
	case errors.Is(err, timelock.ErrAlreadyInitialized):
		admin, err := n.timelock.Admin(ctx)
		if err != nil {
			return err
		}
		if admin != gov.ManagerPrincipal {
			n.config.logger.Warn(
				"timelock admin does not match the manager principal, proposals cannot be queued",
				"component", "node",
				"admin", admin,
				"principal", gov.ManagerPrincipal,
			)
		}
	default:
		return fmt.Errorf("failed to initialize timelock: %w", err)
	}
	if gov.Admin == "" {
		n.config.logger.Debug(
			"no governance admin configured, skipping upgrade manager bootstrap",
			"component", "node",
		)
		return nil
	}
	err = n.manager.Initialize(ctx, gov.Admin, gov.Validators, gov.Threshold)
	if err != nil && !errors.Is(err, manager.ErrAlreadyInitialized) {
		return fmt.Errorf("failed to initialize upgrade manager: %w", err)
	}
	return nil
}

// Ready is closed once Run has finished starting up
func (n *Node) Ready() <-chan struct{} {
	return n.ready
}

// Manager returns the upgrade manager. It is only valid once Ready is closed.
func (n *Node) Manager() *manager.Manager {
	return n.manager
}

// Proxies returns the proxies of the managed targets
func (n *Node) Proxies() *proxy.Registry {
	return n.proxies
}

// Timelock returns the timelock gating upgrades. It is only valid once Ready is closed.
func (n *Node) Timelock() *timelock.Timelock {
	return n.timelock
}

// EventBus returns the node event bus
func (n *Node) EventBus() *event.EventBus {
	return n.eventBus
}

// ApiAddr returns the address the API listens on, or an empty string when
// the API is not running
func (n *Node) ApiAddr() string {
	if n.api == nil {
		return ""
	}
	return n.api.Addr()
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	// Create shutdown context with timeout (default 30s if not configured)
	shutdownTimeout := 30 * time.Second
	if n.config.shutdownTimeout > 0 {
		shutdownTimeout = n.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error

	n.config.logger.Debug("starting graceful shutdown", "component", "node")

	// Phase 1: Stop accepting new work
	if n.api != nil {
		if stopErr := n.api.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("api shutdown: %w", stopErr))
		}
	}

	// Phase 2: Close database
	if n.db != nil {
		if closeErr := n.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}

	// Phase 3: Cleanup resources
	for _, fn := range n.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	n.shutdownFuncs = nil

	if n.eventBus != nil {
		n.eventBus.Stop()
	}

	n.config.logger.Debug("graceful shutdown complete", "component", "node")
	close(n.done)
	return err
}
