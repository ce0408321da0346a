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

package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/blinklabs-io/tollgate/auth"
	"github.com/blinklabs-io/tollgate/database"
	"github.com/blinklabs-io/tollgate/database/models"
	"github.com/blinklabs-io/tollgate/manager"
	"github.com/go-chi/chi/v5"
)

type ProposeRequest struct {
	Target        string `json:"target"`
	CodeRef       string `json:"code_ref"`
	TargetVersion uint32 `json:"target_version"`
	Tag           string `json:"tag,omitempty"`
}

type ProposalResponse struct {
	ID            uint64   `json:"id"`
	Target        string   `json:"target"`
	CodeRef       string   `json:"code_ref"`
	TargetVersion uint32   `json:"target_version"`
	Tag           string   `json:"tag,omitempty"`
	Proposer      string   `json:"proposer"`
	ProposedAt    uint64   `json:"proposed_at"`
	Approvals     []string `json:"approvals"`
	Eta           *uint64  `json:"eta,omitempty"`
	QueuedAt      *uint64  `json:"queued_at,omitempty"`
	Executed      bool     `json:"executed"`
	ExecutedAt    *uint64  `json:"executed_at,omitempty"`
	RolledBack    bool     `json:"rolled_back"`
	Cancelled     bool     `json:"cancelled"`
	FailureReason string   `json:"failure_reason,omitempty"`
	State         string   `json:"state"`
}

type ProposalListResponse struct {
	Proposals []ProposalResponse `json:"proposals"`
}

type ExecutionResponse struct {
	ProposalID     uint64 `json:"proposal_id"`
	Target         string `json:"target"`
	Implementation string `json:"implementation"`
	Version        uint32 `json:"version"`
	Digest         string `json:"digest"`
}

type ProxyResponse struct {
	Target                 string `json:"target"`
	Implementation         string `json:"implementation"`
	PreviousImplementation string `json:"previous_implementation,omitempty"`
	Governance             string `json:"governance"`
	Version                uint32 `json:"version"`
}

type ProxyHistoryEntry struct {
	Action             string `json:"action"`
	FromImplementation string `json:"from_implementation,omitempty"`
	ToImplementation   string `json:"to_implementation"`
	FromVersion        uint32 `json:"from_version,omitempty"`
	ToVersion          uint32 `json:"to_version"`
	Actor              string `json:"actor,omitempty"`
	At                 uint64 `json:"at"`
}

type ProxyHistoryResponse struct {
	History []ProxyHistoryEntry `json:"history"`
}

// InvokeRequest is forwarded to the current implementation of a proxy. Args
// travel base64 encoded.
type InvokeRequest struct {
	Method string `json:"method"`
	Args   []byte `json:"args,omitempty"`
}

type InvokeResponse struct {
	Target string `json:"target"`
	Result []byte `json:"result"`
}

type TimelockEntryResponse struct {
	ID         string `json:"id"`
	Target     string `json:"target"`
	Action     string `json:"action"`
	Eta        uint64 `json:"eta"`
	QueuedAt   uint64 `json:"queued_at"`
	Executable bool   `json:"executable"`
}

type StatusResponse struct {
	Now           uint64   `json:"now"`
	Admin         string   `json:"admin"`
	Validators    []string `json:"validators"`
	Threshold     uint32   `json:"threshold"`
	TimelockDelay uint64   `json:"timelock_delay"`
	Targets       []string `json:"targets"`
}

func (a *Api) newProposalResponse(p *manager.Proposal) ProposalResponse {
	ret := ProposalResponse{
		ID:            p.ID,
		Target:        p.Target,
		CodeRef:       p.CodeRef,
		TargetVersion: p.TargetVersion,
		Tag:           p.Tag,
		Proposer:      p.Proposer,
		ProposedAt:    p.ProposedAt,
		Approvals:     make([]string, 0, len(p.Approvals)),
		Eta:           p.Eta,
		QueuedAt:      p.QueuedAt,
		Executed:      p.Executed,
		ExecutedAt:    p.ExecutedAt,
		RolledBack:    p.RolledBack,
		Cancelled:     p.Cancelled,
		FailureReason: p.FailureReason,
		State:         a.config.Manager.State(p, a.config.Manager.Now()).String(),
	}
	for _, approval := range p.Approvals {
		ret.Approvals = append(ret.Approvals, string(approval))
	}
	return ret
}

// requireCaller returns the authenticated principal or writes a 401
func (a *Api) requireCaller(
	w http.ResponseWriter,
	r *http.Request,
) (auth.Principal, bool) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		a.writeError(w, r, errUnauthenticated)
		return "", false
	}
	return caller, true
}

func parseProposalID(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid proposal ID %q", errBadRequest, raw)
	}
	return id, nil
}

func (a *Api) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	mgr := a.config.Manager
	admin, err := mgr.Admin(ctx)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	validators, err := mgr.Validators(ctx)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	threshold, err := mgr.Threshold(ctx)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	delay, err := a.config.Timelock.Delay(ctx)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	resp := StatusResponse{
		Now:           mgr.Now(),
		Admin:         string(admin),
		Validators:    make([]string, 0, len(validators)),
		Threshold:     threshold,
		TimelockDelay: delay,
		Targets:       a.config.Proxies.Targets(),
	}
	for _, validator := range validators {
		resp.Validators = append(resp.Validators, string(validator))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *Api) handleCreateProposal(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.requireCaller(w, r)
	if !ok {
		return
	}
	var req ProposeRequest
	if err := readJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	id, err := a.config.Manager.Propose(
		r.Context(),
		caller,
		req.Target,
		req.CodeRef,
		req.TargetVersion,
		req.Tag,
	)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	proposal, err := a.config.Manager.GetProposal(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a.newProposalResponse(proposal))
}

func (a *Api) handleListProposals(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := models.ProposalFilter{
		Target: query.Get("target"),
	}
	if raw := query.Get("pending"); raw != "" {
		pending, err := strconv.ParseBool(raw)
		if err != nil {
			a.writeError(w, r, fmt.Errorf("%w: invalid pending flag", errBadRequest))
			return
		}
		filter.PendingOnly = pending
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			a.writeError(w, r, fmt.Errorf("%w: invalid limit", errBadRequest))
			return
		}
		filter.Limit = limit
	}
	proposals, err := a.config.Manager.ListProposals(r.Context(), filter)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	resp := ProposalListResponse{
		Proposals: make([]ProposalResponse, 0, len(proposals)),
	}
	for i := range proposals {
		resp.Proposals = append(resp.Proposals, a.newProposalResponse(&proposals[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *Api) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	id, err := parseProposalID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	proposal, err := a.config.Manager.GetProposal(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.newProposalResponse(proposal))
}

func (a *Api) handleApproveProposal(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.requireCaller(w, r)
	if !ok {
		return
	}
	id, err := parseProposalID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	proposal, err := a.config.Manager.Approve(r.Context(), caller, id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.newProposalResponse(proposal))
}

// handleExecuteProposal does not require authentication, anyone may trigger
// a proposal whose delay has passed
func (a *Api) handleExecuteProposal(w http.ResponseWriter, r *http.Request) {
	id, err := parseProposalID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	result, err := a.config.Manager.Execute(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(
		w,
		http.StatusOK,
		ExecutionResponse{
			ProposalID:     result.ProposalID,
			Target:         result.Target,
			Implementation: result.Implementation,
			Version:        result.Version,
			Digest:         result.Digest.String(),
		},
	)
}

func (a *Api) handleCancelProposal(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireCaller(w, r); !ok {
		return
	}
	id, err := parseProposalID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.config.Manager.Cancel(r.Context(), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	proposal, err := a.config.Manager.GetProposal(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.newProposalResponse(proposal))
}

func (a *Api) handleGetProxy(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "target")
	p, ok := a.config.Proxies.Get(target)
	if !ok {
		a.writeError(w, r, fmt.Errorf("%w: %s", errProxyNotFound, target))
		return
	}
	state, err := p.State(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(
		w,
		http.StatusOK,
		ProxyResponse{
			Target:                 target,
			Implementation:         state.Implementation,
			PreviousImplementation: state.PreviousImplementation,
			Governance:             state.Governance,
			Version:                state.Version,
		},
	)
}

func (a *Api) handleProxyHistory(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "target")
	p, ok := a.config.Proxies.Get(target)
	if !ok {
		a.writeError(w, r, fmt.Errorf("%w: %s", errProxyNotFound, target))
		return
	}
	history, err := p.History(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	resp := ProxyHistoryResponse{
		History: make([]ProxyHistoryEntry, 0, len(history)),
	}
	for _, entry := range history {
		resp.History = append(resp.History, ProxyHistoryEntry{
			Action:             entry.Action,
			FromImplementation: entry.FromImplementation,
			ToImplementation:   entry.ToImplementation,
			FromVersion:        entry.FromVersion,
			ToVersion:          entry.ToVersion,
			Actor:              entry.Actor,
			At:                 entry.At,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleInvoke forwards a call through a proxy. Anonymous callers are
// allowed; an authenticated caller reaches the implementation via the context.
func (a *Api) handleInvoke(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "target")
	p, ok := a.config.Proxies.Get(target)
	if !ok {
		a.writeError(w, r, fmt.Errorf("%w: %s", errProxyNotFound, target))
		return
	}
	var req InvokeRequest
	if err := readJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.Method == "" {
		a.writeError(w, r, fmt.Errorf("%w: method is required", errBadRequest))
		return
	}
	result, err := p.Invoke(r.Context(), req.Method, req.Args)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, InvokeResponse{Target: target, Result: result})
}

func (a *Api) handleGetTimelockEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "*")
	if id == "" {
		a.writeError(w, r, fmt.Errorf("%w: missing timelock entry ID", errBadRequest))
		return
	}
	// Bare numbers refer to the entry of that proposal
	if proposalID, err := strconv.ParseUint(id, 10, 64); err == nil {
		id = database.ProposalTimelockID(proposalID)
	}
	entry, err := a.config.Timelock.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	executable, err := a.config.Timelock.IsExecutable(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(
		w,
		http.StatusOK,
		TimelockEntryResponse{
			ID:         entry.ID,
			Target:     entry.Target,
			Action:     entry.Action,
			Eta:        entry.Eta,
			QueuedAt:   entry.QueuedAt,
			Executable: executable,
		},
	)
}
