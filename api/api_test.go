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

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/blinklabs-io/tollgate/api"
	"github.com/blinklabs-io/tollgate/auth"
	"github.com/blinklabs-io/tollgate/clock"
	"github.com/blinklabs-io/tollgate/internal/test/testutil"
	"github.com/blinklabs-io/tollgate/manager"
	"github.com/blinklabs-io/tollgate/migration"
	"github.com/blinklabs-io/tollgate/proxy"
	"github.com/blinklabs-io/tollgate/timelock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testDelay  uint64 = 3600
	testTarget        = "vault"
)

var testTokens = map[string]string{
	"tok-admin":   "admin",
	"tok-v1":      "v1",
	"tok-v2":      "v2",
	"tok-v3":      "v3",
	"tok-mallory": "mallory",
}

type testServer struct {
	*httptest.Server
	clk *clock.Manual
	api *api.Api
}

func newTestApi(t *testing.T, step migration.StepFunc) (*api.Api, *clock.Manual) {
	t.Helper()
	ctx := context.Background()
	db := testutil.NewTestDatabase(t)
	clk := clock.NewManual(100)
	const principal auth.Principal = "tollgate-manager"

	tl, err := timelock.New(timelock.Config{Database: db, Clock: clk})
	require.NoError(t, err)
	require.NoError(t, tl.Initialize(ctx, principal, testDelay))

	codes := proxy.NewCodeRegistry()
	for _, ref := range []string{"vault-v1", "vault-v2"} {
		codes.Register(ref, proxy.ImplementationFunc(
			func(ctx context.Context, method string, args []byte) ([]byte, error) {
				switch method {
				case "implementation":
					return []byte(ref), nil
				case "whoami":
					caller, _ := auth.CallerFromContext(ctx)
					return []byte(string(caller) + ":" + string(args)), nil
				}
				return nil, fmt.Errorf("%w: %s", proxy.ErrUnknownMethod, method)
			},
		))
	}
	p, err := proxy.New(proxy.Config{
		Database: db,
		Clock:    clk,
		Codes:    codes,
		Target:   testTarget,
	})
	require.NoError(t, err)
	require.NoError(t, p.Init(ctx, "vault-v1", principal))
	proxies := proxy.NewRegistry()
	require.NoError(t, proxies.Add(p))

	target := migration.NewStoreTarget(db, testTarget, migration.WithStep(1, step))
	require.NoError(t, target.Seed(ctx, map[string][]byte{"alice": []byte("gold")}))
	targets := migration.NewRegistry()
	require.NoError(t, targets.Register(testTarget, target))

	mgr, err := manager.New(manager.Config{
		Database:  db,
		Clock:     clk,
		Timelock:  tl,
		Proxies:   proxies,
		Targets:   targets,
		Principal: principal,
	})
	require.NoError(t, err)
	require.NoError(t, mgr.Initialize(
		ctx,
		"admin",
		[]auth.Principal{"v1", "v2", "v3"},
		0,
	))
	return api.NewApi(api.ApiConfig{
		Manager:  mgr,
		Proxies:  proxies,
		Timelock: tl,
		Tokens:   auth.NewTokenTable(testTokens),
		Host:     "127.0.0.1",
	}), clk
}

func newTestServer(t *testing.T, step migration.StepFunc) *testServer {
	t.Helper()
	if step == nil {
		step = func(context.Context, *migration.Data) error { return nil }
	}
	a, clk := newTestApi(t, step)
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, clk: clk, api: a}
}

// call sends a request and decodes the JSON response into out, if given
func (s *testServer) call(
	t *testing.T,
	method string,
	path string,
	token string,
	body any,
	out any,
) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(
		context.Background(),
		method,
		s.URL+path,
		reader,
	)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type proposal struct {
	ID            uint64   `json:"id"`
	CodeRef       string   `json:"code_ref"`
	Approvals     []string `json:"approvals"`
	Eta           *uint64  `json:"eta"`
	Executed      bool     `json:"executed"`
	RolledBack    bool     `json:"rolled_back"`
	FailureReason string   `json:"failure_reason"`
	State         string   `json:"state"`
}

type apiError struct {
	RequestID string `json:"request_id"`
	Error     struct {
		Code string `json:"code"`
	} `json:"error"`
}

var newProposal = map[string]any{
	"target":         testTarget,
	"code_ref":       "vault-v2",
	"target_version": 2,
}

func (s *testServer) approveAll(t *testing.T, id string) proposal {
	t.Helper()
	var p proposal
	for _, token := range []string{"tok-v1", "tok-v2", "tok-v3"} {
		status := s.call(t, http.MethodPost, "/v1/proposals/"+id+"/approve", token, nil, &p)
		require.Equal(t, http.StatusOK, status)
	}
	return p
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t, nil)
	var errResp apiError
	status := s.call(t, http.MethodPost, "/v1/proposals", "", newProposal, &errResp)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHENTICATED", errResp.Error.Code)
	assert.NotEmpty(t, errResp.RequestID)

	status = s.call(t, http.MethodPost, "/v1/proposals", "bogus", newProposal, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status = s.call(t, http.MethodPost, "/v1/proposals", "tok-mallory", newProposal, &errResp)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errResp.Error.Code)

	// Reads are anonymous
	status = s.call(t, http.MethodGet, "/v1/proposals", "", nil, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestProposalLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	var p proposal
	status := s.call(t, http.MethodPost, "/v1/proposals", "tok-v1", newProposal, &p)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, uint64(1), p.ID)
	assert.Equal(t, "open", p.State)

	p = s.approveAll(t, "1")
	assert.Len(t, p.Approvals, 3)
	require.NotNil(t, p.Eta)
	assert.Equal(t, 100+testDelay, *p.Eta)
	assert.Equal(t, "queued", p.State)

	var entry struct {
		ID         string `json:"id"`
		Eta        uint64 `json:"eta"`
		Executable bool   `json:"executable"`
	}
	status = s.call(t, http.MethodGet, "/v1/timelock/proposal/1", "", nil, &entry)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, *p.Eta, entry.Eta)
	assert.False(t, entry.Executable)

	var errResp apiError
	status = s.call(t, http.MethodPost, "/v1/proposals/1/execute", "", nil, &errResp)
	assert.Equal(t, http.StatusTooEarly, status)
	assert.Equal(t, "NOT_READY", errResp.Error.Code)

	s.clk.Advance(testDelay)
	status = s.call(t, http.MethodGet, "/v1/timelock/1", "", nil, &entry)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, entry.Executable)

	var result struct {
		Version        uint32 `json:"version"`
		Implementation string `json:"implementation"`
		Digest         string `json:"digest"`
	}
	status = s.call(t, http.MethodPost, "/v1/proposals/1/execute", "", nil, &result)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, uint32(2), result.Version)
	assert.Equal(t, "vault-v2", result.Implementation)
	assert.Len(t, result.Digest, 64)

	status = s.call(t, http.MethodPost, "/v1/proposals/1/execute", "", nil, &errResp)
	assert.Equal(t, http.StatusConflict, status)

	var state struct {
		Implementation         string `json:"implementation"`
		PreviousImplementation string `json:"previous_implementation"`
		Version                uint32 `json:"version"`
	}
	status = s.call(t, http.MethodGet, "/v1/proxies/vault", "", nil, &state)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "vault-v2", state.Implementation)
	assert.Equal(t, "vault-v1", state.PreviousImplementation)
	assert.Equal(t, uint32(2), state.Version)

	var history struct {
		History []struct {
			Action string `json:"action"`
		} `json:"history"`
	}
	status = s.call(t, http.MethodGet, "/v1/proxies/vault/history", "", nil, &history)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, history.History, 2)
	assert.Equal(t, "upgrade", history.History[1].Action)

	var list struct {
		Proposals []proposal `json:"proposals"`
	}
	status = s.call(t, http.MethodGet, "/v1/proposals?pending=true", "", nil, &list)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, list.Proposals)
	status = s.call(t, http.MethodGet, "/v1/proposals", "", nil, &list)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, list.Proposals, 1)
	assert.Equal(t, "executed", list.Proposals[0].State)
}

func TestMigrationFailure(t *testing.T) {
	s := newTestServer(t, func(context.Context, *migration.Data) error {
		return errors.New("bad layout")
	})
	require.Equal(t, http.StatusCreated, s.call(t, http.MethodPost, "/v1/proposals", "tok-v1", newProposal, nil))
	s.approveAll(t, "1")
	s.clk.Advance(testDelay)

	var errResp apiError
	status := s.call(t, http.MethodPost, "/v1/proposals/1/execute", "", nil, &errResp)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "MIGRATION_FAILED", errResp.Error.Code)

	var p proposal
	require.Equal(t, http.StatusOK, s.call(t, http.MethodGet, "/v1/proposals/1", "", nil, &p))
	assert.True(t, p.Executed)
	assert.True(t, p.RolledBack)
	assert.Contains(t, p.FailureReason, "bad layout")
}

func TestCancel(t *testing.T) {
	s := newTestServer(t, nil)
	require.Equal(t, http.StatusCreated, s.call(t, http.MethodPost, "/v1/proposals", "tok-v1", newProposal, nil))
	assert.Equal(t, http.StatusUnauthorized, s.call(t, http.MethodPost, "/v1/proposals/1/cancel", "", nil, nil))
	assert.Equal(t, http.StatusForbidden, s.call(t, http.MethodPost, "/v1/proposals/1/cancel", "tok-v1", nil, nil))

	var p proposal
	require.Equal(t, http.StatusOK, s.call(t, http.MethodPost, "/v1/proposals/1/cancel", "tok-admin", nil, &p))
	assert.Equal(t, "cancelled", p.State)
	assert.Equal(t, http.StatusConflict, s.call(t, http.MethodPost, "/v1/proposals/1/approve", "tok-v2", nil, nil))
}

func TestInvoke(t *testing.T) {
	s := newTestServer(t, nil)
	const path = "/v1/proxies/" + testTarget + "/invoke"

	var resp api.InvokeResponse
	status := s.call(t, http.MethodPost, path, "", api.InvokeRequest{Method: "implementation"}, &resp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, testTarget, resp.Target)
	assert.Equal(t, "vault-v1", string(resp.Result))

	// The authenticated caller reaches the implementation
	status = s.call(t, http.MethodPost, path, "tok-v2", api.InvokeRequest{
		Method: "whoami",
		Args:   []byte("ping"),
	}, &resp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "v2:ping", string(resp.Result))
	status = s.call(t, http.MethodPost, path, "", api.InvokeRequest{Method: "whoami"}, &resp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, ":", string(resp.Result))

	// Calls follow the proxy after an upgrade
	require.Equal(t, http.StatusCreated, s.call(t, http.MethodPost, "/v1/proposals", "tok-v1", newProposal, nil))
	s.approveAll(t, "1")
	s.clk.Advance(testDelay)
	require.Equal(t, http.StatusOK, s.call(t, http.MethodPost, "/v1/proposals/1/execute", "", nil, nil))
	status = s.call(t, http.MethodPost, path, "", api.InvokeRequest{Method: "implementation"}, &resp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "vault-v2", string(resp.Result))

	var errResp apiError
	status = s.call(t, http.MethodPost, path, "", api.InvokeRequest{Method: "transfer"}, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_REQUEST", errResp.Error.Code)
	status = s.call(t, http.MethodPost, path, "", api.InvokeRequest{}, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	status = s.call(t, http.MethodPost, "/v1/proxies/bridge/invoke", "", api.InvokeRequest{Method: "implementation"}, &errResp)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errResp.Error.Code)
}

func TestBadRequests(t *testing.T) {
	s := newTestServer(t, nil)
	tests := []struct {
		method string
		path   string
		token  string
		body   any
		status int
	}{
		{http.MethodGet, "/v1/proposals/abc", "", nil, http.StatusBadRequest},
		{http.MethodGet, "/v1/proposals/99", "", nil, http.StatusNotFound},
		{http.MethodGet, "/v1/proposals?limit=-1", "", nil, http.StatusBadRequest},
		{http.MethodGet, "/v1/proxies/bridge", "", nil, http.StatusNotFound},
		{http.MethodGet, "/v1/timelock/missing", "", nil, http.StatusNotFound},
		{http.MethodPost, "/v1/proposals", "tok-v1", map[string]any{"bogus": 1}, http.StatusBadRequest},
		{http.MethodPost, "/v1/proposals", "tok-v1", map[string]any{
			"target":         testTarget,
			"code_ref":       "vault-v2",
			"target_version": 1,
		}, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			assert.Equal(t, tc.status, s.call(t, tc.method, tc.path, tc.token, tc.body, nil))
		})
	}
}

func TestStatus(t *testing.T) {
	s := newTestServer(t, nil)
	var status struct {
		Admin         string   `json:"admin"`
		Validators    []string `json:"validators"`
		Threshold     uint32   `json:"threshold"`
		TimelockDelay uint64   `json:"timelock_delay"`
		Targets       []string `json:"targets"`
	}
	require.Equal(t, http.StatusOK, s.call(t, http.MethodGet, "/v1/status", "", nil, &status))
	assert.Equal(t, "admin", status.Admin)
	assert.Equal(t, []string{"v1", "v2", "v3"}, status.Validators)
	assert.Equal(t, uint32(3), status.Threshold)
	assert.Equal(t, testDelay, status.TimelockDelay)
	assert.Equal(t, []string{testTarget}, status.Targets)
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, nil)
	resp, err := s.Client().Post(
		s.URL+"/grpc.health.v1.Health/Check",
		"application/json",
		strings.NewReader("{}"),
	)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "SERVING")
}

func TestStartStop(t *testing.T) {
	a, _ := newTestApi(t, func(context.Context, *migration.Data) error { return nil })
	require.NoError(t, a.Start())
	require.Error(t, a.Start(), "second start must fail")
	addr := a.Addr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + "/v1/status") //nolint:noctx
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, a.Stop(context.Background()))
	assert.Empty(t, a.Addr())
	require.NoError(t, a.Stop(context.Background()))
}
