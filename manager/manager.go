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

// Package manager implements the upgrade state machine: validators propose
// new code for a managed target, a quorum of approvals queues the proposal
// in a timelock, and execution swaps the proxy implementation and migrates
// the target, rolling back when the migration fails.
package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/blinklabs-io/tollgate/auth"
	"github.com/blinklabs-io/tollgate/clock"
	"github.com/blinklabs-io/tollgate/database"
	"github.com/blinklabs-io/tollgate/database/models"
	"github.com/blinklabs-io/tollgate/event"
	"github.com/blinklabs-io/tollgate/migration"
	"github.com/blinklabs-io/tollgate/proxy"
	"github.com/blinklabs-io/tollgate/timelock"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultName = "default"

	tracerName = "github.com/blinklabs-io/tollgate/manager"

	// Matches the size of the failure_reason column
	maxFailureReasonLen = 512
)

type Config struct {
	Database   *database.Database
	Clock      clock.Clock
	Authorizer auth.Authorizer
	// Timelock gates execution. Its admin must be Principal.
	Timelock *timelock.Timelock
	Proxies  *proxy.Registry
	Targets  *migration.Registry
	// Principal is the identity the manager acts as towards its timelock and
	// the proxies it governs
	Principal      auth.Principal
	EventBus       *event.EventBus
	Logger         *slog.Logger
	PromRegistry   prometheus.Registerer
	TracerProvider trace.TracerProvider
	Name           string
}

// Proposal is a stored proposal together with the validators that approved
// it, in arrival order
type Proposal struct {
	models.Proposal
	Approvals []auth.Principal
}

// ExecutionResult describes a successful upgrade
type ExecutionResult struct {
	ProposalID     uint64
	Target         string
	Implementation string
	Version        uint32
	Digest         migration.Digest
}

type Manager struct {
	mu      sync.Mutex
	config  Config
	name    string
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *managerMetrics
}

func New(cfg Config) (*Manager, error) {
	if cfg.Database == nil {
		return nil, errors.New("manager: database is required")
	}
	if cfg.Clock == nil {
		return nil, errors.New("manager: clock is required")
	}
	if cfg.Timelock == nil {
		return nil, errors.New("manager: timelock is required")
	}
	if cfg.Principal == "" {
		return nil, errors.New("manager: principal is required")
	}
	if cfg.Authorizer == nil {
		cfg.Authorizer = auth.NewCallerAuthorizer()
	}
	if cfg.Proxies == nil {
		cfg.Proxies = proxy.NewRegistry()
	}
	if cfg.Targets == nil {
		cfg.Targets = migration.NewRegistry()
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	m := &Manager{
		config: cfg,
		name:   cfg.Name,
		logger: cfg.Logger.With("component", "manager", "manager", cfg.Name),
		tracer: cfg.TracerProvider.Tracer(tracerName),
	}
	if cfg.PromRegistry != nil {
		m.initMetrics(cfg.PromRegistry)
	}
	return m, nil
}

// Initialize stores the admin, the validator set and the number of approvals
// required to queue a proposal. A threshold of 0 requires every validator.
// It can only be called once.
func (m *Manager) Initialize(
	ctx context.Context,
	admin auth.Principal,
	validators []auth.Principal,
	threshold uint32,
) error {
	if admin == "" {
		return ErrInvalidAdmin
	}
	if len(validators) == 0 {
		return fmt.Errorf("%w: no validators", ErrInvalidValidatorSet)
	}
	seen := make(map[auth.Principal]struct{}, len(validators))
	tmpValidators := make([]string, 0, len(validators))
	for _, validator := range validators {
		if validator == "" {
			return fmt.Errorf("%w: empty validator", ErrInvalidValidatorSet)
		}
		if _, ok := seen[validator]; ok {
			return fmt.Errorf(
				"%w: duplicate validator %s",
				ErrInvalidValidatorSet,
				validator,
			)
		}
		seen[validator] = struct{}{}
		tmpValidators = append(tmpValidators, string(validator))
	}
	if threshold == 0 {
		threshold = uint32(len(validators)) //nolint:gosec // validator sets are small
	}
	if int(threshold) > len(validators) {
		return fmt.Errorf(
			"%w: %d exceeds %d validators",
			ErrInvalidThreshold,
			threshold,
			len(validators),
		)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	db := m.config.Database
	err := db.Update(ctx, func(_ context.Context, txn *database.Txn) error {
		cfg, err := db.GetManagerConfig(m.name, txn)
		if err != nil {
			return err
		}
		if cfg != nil {
			return ErrAlreadyInitialized
		}
		return db.SetManagerConfig(
			m.name,
			&database.ManagerConfig{
				Admin:          string(admin),
				Validators:     tmpValidators,
				Threshold:      threshold,
				NextProposalID: 1,
			},
			txn,
		)
	})
	if err != nil {
		return err
	}
	m.logger.Info(
		"upgrade manager initialized",
		"admin", admin,
		"validators", len(validators),
		"threshold", threshold,
	)
	return nil
}

// Propose records a request to replace the implementation behind target with
// codeRef. The caller must be a validator and targetVersion must be newer
// than the proxy's current version. It returns the new proposal ID.
func (m *Manager) Propose(
	ctx context.Context,
	caller auth.Principal,
	target string,
	codeRef string,
	targetVersion uint32,
	tag string,
) (uint64, error) {
	ctx, span := m.tracer.Start(
		ctx,
		"manager.Propose",
		trace.WithAttributes(
			attribute.String("target", target),
			attribute.String("caller", string(caller)),
		),
	)
	defer span.End()
	if target == "" || codeRef == "" {
		return 0, m.spanError(
			span,
			fmt.Errorf("%w: target and code ref are required", ErrInvalidProposal),
		)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	db := m.config.Database
	var proposal *models.Proposal
	err := db.Update(ctx, func(ctx context.Context, txn *database.Txn) error {
		cfg, err := m.authorizeValidator(ctx, caller, txn)
		if err != nil {
			return err
		}
		p, err := m.proxyFor(target)
		if err != nil {
			return err
		}
		state, err := p.State(ctx)
		if err != nil {
			if errors.Is(err, proxy.ErrNotInitialized) {
				return fmt.Errorf("%w: proxy %s not initialized", ErrNotFound, target)
			}
			return err
		}
		if targetVersion <= state.Version {
			return fmt.Errorf(
				"%w: %d is not newer than current version %d",
				ErrInvalidVersion,
				targetVersion,
				state.Version,
			)
		}
		proposal = &models.Proposal{
			ID:            cfg.NextProposalID,
			Target:        target,
			CodeRef:       codeRef,
			TargetVersion: targetVersion,
			Tag:           tag,
			Proposer:      string(caller),
			ProposedAt:    m.config.Clock.Now(),
		}
		cfg.NextProposalID++
		if err := db.SetManagerConfig(m.name, cfg, txn); err != nil {
			return err
		}
		if err := db.SetProposal(proposal, txn); err != nil {
			return fmt.Errorf("failed to store proposal: %w", err)
		}
		txn.OnCommit(func() {
			if m.metrics != nil {
				m.metrics.proposed.Inc()
			}
			m.publish(
				event.ProposalCreatedEventType,
				event.ProposalEvent{
					ProposalID: proposal.ID,
					Target:     proposal.Target,
					Validator:  proposal.Proposer,
					Version:    proposal.TargetVersion,
				},
			)
		})
		return nil
	})
	if err != nil {
		return 0, m.spanError(span, err)
	}
	span.SetAttributes(proposalIDAttr(proposal.ID))
	m.logger.Info(
		"proposal created",
		"id", proposal.ID,
		"target", target,
		"code_ref", codeRef,
		"target_version", targetVersion,
		"proposer", caller,
	)
	return proposal.ID, nil
}

// Approve records the caller's approval. Approving twice has no further
// effect. Once the approvals reach the threshold the proposal is queued in
// the timelock and its eta is fixed.
func (m *Manager) Approve(
	ctx context.Context,
	caller auth.Principal,
	id uint64,
) (*Proposal, error) {
	ctx, span := m.tracer.Start(
		ctx,
		"manager.Approve",
		trace.WithAttributes(
			proposalIDAttr(id),
			attribute.String("caller", string(caller)),
		),
	)
	defer span.End()
	m.mu.Lock()
	defer m.mu.Unlock()
	db := m.config.Database
	var ret *Proposal
	var added, queued bool
	err := db.Update(ctx, func(ctx context.Context, txn *database.Txn) error {
		cfg, err := m.authorizeValidator(ctx, caller, txn)
		if err != nil {
			return err
		}
		proposal, err := m.loadOpenProposal(id, txn)
		if err != nil {
			return err
		}
		added, err = db.AddProposalApproval(
			id,
			string(caller),
			m.config.Clock.Now(),
			txn,
		)
		if err != nil {
			return fmt.Errorf("failed to record approval: %w", err)
		}
		approvals, err := db.GetProposalApprovals(id, txn)
		if err != nil {
			return err
		}
		//nolint:gosec // validator sets are small
		if uint32(len(approvals)) >= cfg.Threshold && proposal.Eta == nil {
			entry, err := m.config.Timelock.Queue(
				m.asManager(ctx),
				database.ProposalTimelockID(id),
				proposal.Target,
				proposal.CodeRef,
			)
			if err != nil {
				return fmt.Errorf("failed to queue proposal: %w", err)
			}
			proposal.Eta = &entry.Eta
			proposal.QueuedAt = &entry.QueuedAt
			if err := db.SetProposal(proposal, txn); err != nil {
				return err
			}
			queued = true
		}
		ret = newProposal(proposal, approvals)
		txn.OnCommit(func() {
			if added {
				if m.metrics != nil {
					m.metrics.approvals.Inc()
				}
				m.publish(
					event.ProposalApprovedEventType,
					event.ProposalEvent{
						ProposalID: id,
						Target:     proposal.Target,
						Validator:  string(caller),
					},
				)
			}
			if queued {
				if m.metrics != nil {
					m.metrics.queued.Inc()
				}
				m.publish(
					event.ProposalQueuedEventType,
					event.ProposalEvent{
						ProposalID: id,
						Target:     proposal.Target,
						Eta:        *proposal.Eta,
					},
				)
			}
		})
		return nil
	})
	if err != nil {
		return nil, m.spanError(span, err)
	}
	if added {
		m.logger.Info(
			"proposal approved",
			"id", id,
			"validator", caller,
			"approvals", len(ret.Approvals),
		)
	}
	if queued {
		m.logger.Info(
			"proposal queued",
			"id", id,
			"eta", *ret.Eta,
		)
	}
	return ret, nil
}

// Execute applies a queued proposal whose eta has passed. The swap,
// migration and integrity check run in one transaction. When the migration
// or the check fails, none of their writes are kept: the proxy is recorded
// as upgraded and rolled back to its previous implementation, the proposal
// is marked executed and rolled back, and a *MigrationError is returned.
func (m *Manager) Execute(
	ctx context.Context,
	id uint64,
) (*ExecutionResult, error) {
	ctx, span := m.tracer.Start(
		ctx,
		"manager.Execute",
		trace.WithAttributes(proposalIDAttr(id)),
	)
	defer span.End()
	m.mu.Lock()
	defer m.mu.Unlock()
	db := m.config.Database
	var result *ExecutionResult
	var proposal *models.Proposal
	var failure error
	// Always use a fresh transaction so a failed migration can be discarded
	txn := db.Transaction(true)
	err := txn.Do(func(txn *database.Txn) error {
		ctx := database.WithTxn(ctx, txn)
		var err error
		proposal, err = m.loadOpenProposal(id, txn)
		if err != nil {
			return err
		}
		now := m.config.Clock.Now()
		if proposal.Eta == nil {
			return fmt.Errorf("%w: proposal %d is not queued", ErrNotReady, id)
		}
		if now < *proposal.Eta {
			return fmt.Errorf(
				"%w: proposal %d executable at %d",
				ErrNotReady,
				id,
				*proposal.Eta,
			)
		}
		p, err := m.proxyFor(proposal.Target)
		if err != nil {
			return err
		}
		state, err := p.State(ctx)
		if err != nil {
			return err
		}
		if proposal.TargetVersion <= state.Version {
			return fmt.Errorf(
				"%w: proxy %s already at version %d",
				ErrInvalidVersion,
				proposal.Target,
				state.Version,
			)
		}
		target, err := m.config.Targets.Lookup(proposal.Target)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		if err := m.consumeTimelock(ctx, id); err != nil {
			return err
		}
		next, err := p.Upgrade(m.asManager(ctx), proposal.CodeRef)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSwapFailed, err)
		}
		if err := target.Migrate(ctx, state.Version); err != nil {
			failure = err
			return err
		}
		digest, err := target.VerifyIntegrity(ctx)
		if err != nil {
			failure = fmt.Errorf("integrity check failed: %w", err)
			return failure
		}
		proposal.Executed = true
		proposal.ExecutedAt = &now
		if err := db.SetProposal(proposal, txn); err != nil {
			return err
		}
		result = &ExecutionResult{
			ProposalID:     id,
			Target:         proposal.Target,
			Implementation: next.Implementation,
			Version:        next.Version,
			Digest:         digest,
		}
		txn.OnCommit(func() {
			if m.metrics != nil {
				m.metrics.executed.Inc()
			}
			m.publish(
				event.ProposalExecutedEventType,
				event.ProposalEvent{
					ProposalID: id,
					Target:     result.Target,
					Version:    result.Version,
				},
			)
		})
		return nil
	})
	if err != nil {
		if failure == nil {
			return nil, m.spanError(span, err)
		}
		return nil, m.spanError(span, m.rollBack(ctx, proposal, failure))
	}
	span.SetAttributes(attribute.Int64("version", int64(result.Version)))
	m.logger.Info(
		"proposal executed",
		"id", id,
		"target", result.Target,
		"implementation", result.Implementation,
		"version", result.Version,
		"digest", result.Digest.String(),
	)
	return result, nil
}

// rollBack records a failed execution in a new transaction: the proxy swap
// followed by its rollback, and the proposal as executed and rolled back
func (m *Manager) rollBack(
	ctx context.Context,
	proposal *models.Proposal,
	failure error,
) error {
	migrationErr := &MigrationError{
		ProposalID: proposal.ID,
		Target:     proposal.Target,
		Err:        failure,
	}
	reason := failure.Error()
	if len(reason) > maxFailureReasonLen {
		reason = reason[:maxFailureReasonLen]
	}
	db := m.config.Database
	txn := db.Transaction(true)
	err := txn.Do(func(txn *database.Txn) error {
		ctx := database.WithTxn(ctx, txn)
		p, err := m.proxyFor(proposal.Target)
		if err != nil {
			return err
		}
		if err := m.consumeTimelock(ctx, proposal.ID); err != nil {
			return err
		}
		govCtx := m.asManager(ctx)
		if _, err := p.Upgrade(govCtx, proposal.CodeRef); err != nil {
			return err
		}
		if _, err := p.Rollback(govCtx); err != nil {
			return err
		}
		now := m.config.Clock.Now()
		proposal.Executed = true
		proposal.ExecutedAt = &now
		proposal.RolledBack = true
		proposal.FailureReason = reason
		if err := db.SetProposal(proposal, txn); err != nil {
			return err
		}
		txn.OnCommit(func() {
			if m.metrics != nil {
				m.metrics.rolledBack.Inc()
			}
			m.publish(
				event.ProposalRolledBackEventType,
				event.ProposalEvent{
					ProposalID: proposal.ID,
					Target:     proposal.Target,
					Version:    proposal.TargetVersion,
					Reason:     reason,
				},
			)
		})
		return nil
	})
	if err != nil {
		m.logger.Error(
			"failed to record rollback",
			"id", proposal.ID,
			"target", proposal.Target,
			"error", err,
		)
		return errors.Join(
			migrationErr,
			fmt.Errorf("failed to record rollback: %w", err),
		)
	}
	m.logger.Warn(
		"migration failed, proposal rolled back",
		"id", proposal.ID,
		"target", proposal.Target,
		"error", failure,
	)
	return migrationErr
}

// Cancel withdraws a proposal that has not been executed, removing it from
// the timelock if it was queued. Only the admin may cancel.
func (m *Manager) Cancel(ctx context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	db := m.config.Database
	var proposal *models.Proposal
	err := db.Update(ctx, func(ctx context.Context, txn *database.Txn) error {
		cfg, err := m.loadConfig(txn)
		if err != nil {
			return err
		}
		if err := m.config.Authorizer.RequireAuthorized(
			ctx,
			auth.Principal(cfg.Admin),
		); err != nil {
			return err
		}
		proposal, err = m.loadOpenProposal(id, txn)
		if err != nil {
			return err
		}
		if proposal.Eta != nil {
			err := m.config.Timelock.Cancel(
				m.asManager(ctx),
				database.ProposalTimelockID(id),
			)
			if err != nil && !errors.Is(err, timelock.ErrNotFound) {
				return fmt.Errorf("failed to cancel timelock entry: %w", err)
			}
		}
		proposal.Cancelled = true
		if err := db.SetProposal(proposal, txn); err != nil {
			return err
		}
		txn.OnCommit(func() {
			if m.metrics != nil {
				m.metrics.cancelled.Inc()
			}
			m.publish(
				event.ProposalCancelledEventType,
				event.ProposalEvent{
					ProposalID: id,
					Target:     proposal.Target,
				},
			)
		})
		return nil
	})
	if err != nil {
		return err
	}
	m.logger.Info("proposal cancelled", "id", id, "target", proposal.Target)
	return nil
}

// GetProposal returns a proposal and its approvals
func (m *Manager) GetProposal(ctx context.Context, id uint64) (*Proposal, error) {
	db := m.config.Database
	var ret *Proposal
	err := db.View(ctx, func(_ context.Context, txn *database.Txn) error {
		proposal, err := m.loadProposal(id, txn)
		if err != nil {
			return err
		}
		approvals, err := db.GetProposalApprovals(id, txn)
		if err != nil {
			return err
		}
		ret = newProposal(proposal, approvals)
		return nil
	})
	return ret, err
}

// ListProposals returns the proposals matching filter, ordered by ID
func (m *Manager) ListProposals(
	ctx context.Context,
	filter models.ProposalFilter,
) ([]Proposal, error) {
	db := m.config.Database
	var ret []Proposal
	err := db.View(ctx, func(_ context.Context, txn *database.Txn) error {
		proposals, err := db.GetProposals(filter, txn)
		if err != nil {
			return err
		}
		ret = make([]Proposal, 0, len(proposals))
		for i := range proposals {
			approvals, err := db.GetProposalApprovals(proposals[i].ID, txn)
			if err != nil {
				return err
			}
			ret = append(ret, *newProposal(&proposals[i], approvals))
		}
		return nil
	})
	return ret, err
}

// Validators returns the validator set in configured order
func (m *Manager) Validators(ctx context.Context) ([]auth.Principal, error) {
	cfg, err := m.viewConfig(ctx)
	if err != nil {
		return nil, err
	}
	ret := make([]auth.Principal, 0, len(cfg.Validators))
	for _, validator := range cfg.Validators {
		ret = append(ret, auth.Principal(validator))
	}
	return ret, nil
}

// Threshold returns the number of approvals required to queue a proposal
func (m *Manager) Threshold(ctx context.Context) (uint32, error) {
	cfg, err := m.viewConfig(ctx)
	if err != nil {
		return 0, err
	}
	return cfg.Threshold, nil
}

// Admin returns the principal allowed to cancel proposals
func (m *Manager) Admin(ctx context.Context) (auth.Principal, error) {
	cfg, err := m.viewConfig(ctx)
	if err != nil {
		return "", err
	}
	return auth.Principal(cfg.Admin), nil
}

// Principal returns the identity the manager acts as
func (m *Manager) Principal() auth.Principal {
	return m.config.Principal
}

// State derives the lifecycle state of a proposal at now
func (m *Manager) State(proposal *Proposal, now uint64) State {
	return ProposalState(&proposal.Proposal, now)
}

// Now returns the manager's current time
func (m *Manager) Now() uint64 {
	return m.config.Clock.Now()
}

func (m *Manager) loadConfig(txn *database.Txn) (*database.ManagerConfig, error) {
	cfg, err := m.config.Database.GetManagerConfig(m.name, txn)
	if err != nil {
		return nil, fmt.Errorf("failed to load manager config: %w", err)
	}
	if cfg == nil {
		return nil, ErrNotInitialized
	}
	return cfg, nil
}

func (m *Manager) viewConfig(ctx context.Context) (*database.ManagerConfig, error) {
	var cfg *database.ManagerConfig
	err := m.config.Database.View(ctx, func(_ context.Context, txn *database.Txn) error {
		var err error
		cfg, err = m.loadConfig(txn)
		return err
	})
	return cfg, err
}

// authorizeValidator confirms that the call comes from caller and that the
// caller is in the validator set
func (m *Manager) authorizeValidator(
	ctx context.Context,
	caller auth.Principal,
	txn *database.Txn,
) (*database.ManagerConfig, error) {
	cfg, err := m.loadConfig(txn)
	if err != nil {
		return nil, err
	}
	if err := m.config.Authorizer.RequireAuthorized(ctx, caller); err != nil {
		return nil, err
	}
	if !slices.Contains(cfg.Validators, string(caller)) {
		return nil, fmt.Errorf(
			"%w: %s is not a validator",
			auth.ErrNotAuthorized,
			caller,
		)
	}
	return cfg, nil
}

func (m *Manager) loadProposal(id uint64, txn *database.Txn) (*models.Proposal, error) {
	proposal, err := m.config.Database.GetProposal(id, txn)
	if err != nil {
		if errors.Is(err, models.ErrProposalNotFound) {
			return nil, fmt.Errorf("%w: proposal %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to load proposal: %w", err)
	}
	return proposal, nil
}

// loadOpenProposal loads a proposal that can still change state
func (m *Manager) loadOpenProposal(
	id uint64,
	txn *database.Txn,
) (*models.Proposal, error) {
	proposal, err := m.loadProposal(id, txn)
	if err != nil {
		return nil, err
	}
	if proposal.Executed {
		return nil, fmt.Errorf("%w: proposal %d", ErrAlreadyExecuted, id)
	}
	if proposal.Cancelled {
		return nil, fmt.Errorf("%w: proposal %d", ErrCancelled, id)
	}
	return proposal, nil
}

func (m *Manager) proxyFor(target string) (*proxy.Proxy, error) {
	p, ok := m.config.Proxies.Get(target)
	if !ok {
		return nil, fmt.Errorf("%w: proxy %s", ErrNotFound, target)
	}
	return p, nil
}

func (m *Manager) consumeTimelock(ctx context.Context, id uint64) error {
	_, err := m.config.Timelock.Execute(
		m.asManager(ctx),
		database.ProposalTimelockID(id),
	)
	if err != nil {
		if errors.Is(err, timelock.ErrNotReady) {
			return fmt.Errorf("%w: %w", ErrNotReady, err)
		}
		return fmt.Errorf("failed to execute timelock entry: %w", err)
	}
	return nil
}

func (m *Manager) asManager(ctx context.Context) context.Context {
	return auth.WithCaller(ctx, m.config.Principal)
}

func (m *Manager) publish(evtType event.EventType, data event.ProposalEvent) {
	if m.config.EventBus == nil {
		return
	}
	m.config.EventBus.Publish(evtType, event.NewEvent(evtType, data))
}

func (m *Manager) spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func proposalIDAttr(id uint64) attribute.KeyValue {
	return attribute.Int64("proposal.id", int64(id)) //nolint:gosec // IDs are sequential from 1
}

func newProposal(
	proposal *models.Proposal,
	approvals []models.ProposalApproval,
) *Proposal {
	ret := &Proposal{
		Proposal:  *proposal,
		Approvals: make([]auth.Principal, 0, len(approvals)),
	}
	for _, approval := range approvals {
		ret.Approvals = append(ret.Approvals, auth.Principal(approval.Validator))
	}
	return ret
}
