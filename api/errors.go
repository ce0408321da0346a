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
	"encoding/json"
	"errors"
	"net/http"

	"github.com/blinklabs-io/tollgate/auth"
	"github.com/blinklabs-io/tollgate/manager"
	"github.com/blinklabs-io/tollgate/migration"
	"github.com/blinklabs-io/tollgate/proxy"
	"github.com/blinklabs-io/tollgate/timelock"
)

var (
	errUnauthenticated = errors.New("missing or invalid bearer token")
	errBadRequest      = errors.New("bad request")
	errProxyNotFound   = errors.New("proxy not found")
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	RequestID string    `json:"request_id"`
	Error     ErrorBody `json:"error"`
}

// statusFor maps an error to its HTTP status and error code
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized, "UNAUTHENTICATED"
	case errors.Is(err, auth.ErrNotAuthorized):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, manager.ErrMigrationFailed):
		return http.StatusUnprocessableEntity, "MIGRATION_FAILED"
	case errors.Is(err, manager.ErrSwapFailed):
		return http.StatusInternalServerError, "SWAP_FAILED"
	case errors.Is(err, manager.ErrNotFound),
		errors.Is(err, timelock.ErrNotFound),
		errors.Is(err, proxy.ErrNotInitialized),
		errors.Is(err, proxy.ErrUnknownImplementation),
		errors.Is(err, migration.ErrKeyNotFound),
		errors.Is(err, errProxyNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, manager.ErrAlreadyExecuted),
		errors.Is(err, manager.ErrCancelled):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, manager.ErrNotReady):
		return http.StatusTooEarly, "NOT_READY"
	case errors.Is(err, manager.ErrInvalidVersion),
		errors.Is(err, manager.ErrInvalidProposal),
		errors.Is(err, proxy.ErrUnknownMethod),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, manager.ErrNotInitialized),
		errors.Is(err, timelock.ErrNotInitialized):
		return http.StatusServiceUnavailable, "NOT_INITIALIZED"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func (a *Api) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.config.Logger.Error(
			"request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
			"request_id", requestIDFromContext(r.Context()),
		)
	}
	writeJSON(
		w,
		status,
		ErrorResponse{
			RequestID: requestIDFromContext(r.Context()),
			Error: ErrorBody{
				Code:    code,
				Message: err.Error(),
			},
		},
	)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}
