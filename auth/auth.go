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

package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
)

// ErrNotAuthorized is returned when the caller does not match the required principal
var ErrNotAuthorized = errors.New("not authorized")

// Principal identifies an acting party (admin, validator, governance, etc.)
type Principal string

func (p Principal) String() string {
	return string(p)
}

type ctxKey string

const callerContextKey ctxKey = "tollgate.caller"

// WithCaller returns a context carrying the principal that initiated the call
func WithCaller(ctx context.Context, caller Principal) context.Context {
	return context.WithValue(ctx, callerContextKey, caller)
}

// CallerFromContext returns the calling principal, if any
func CallerFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return "", false
	}
	caller, ok := ctx.Value(callerContextKey).(Principal)
	if !ok || caller == "" {
		return "", false
	}
	return caller, true
}

// Authorizer confirms that a call was initiated by the given principal.
// Implementations must fail closed.
type Authorizer interface {
	RequireAuthorized(ctx context.Context, principal Principal) error
}

// CallerAuthorizer checks the principal against the caller stored in the
// context by WithCaller
type CallerAuthorizer struct{}

func NewCallerAuthorizer() *CallerAuthorizer {
	return &CallerAuthorizer{}
}

func (CallerAuthorizer) RequireAuthorized(
	ctx context.Context,
	principal Principal,
) error {
	if principal == "" {
		return fmt.Errorf("%w: empty principal", ErrNotAuthorized)
	}
	caller, ok := CallerFromContext(ctx)
	if !ok {
		return fmt.Errorf("%w: no caller in context", ErrNotAuthorized)
	}
	if caller != principal {
		return fmt.Errorf(
			"%w: caller %s is not %s",
			ErrNotAuthorized,
			caller,
			principal,
		)
	}
	return nil
}

// TokenTable maps bearer tokens to principals for the API surface
type TokenTable struct {
	tokens map[string]Principal
}

// NewTokenTable builds a TokenTable from a token -> principal map
func NewTokenTable(tokens map[string]string) *TokenTable {
	t := &TokenTable{
		tokens: make(map[string]Principal, len(tokens)),
	}
	for token, principal := range tokens {
		if token == "" || principal == "" {
			continue
		}
		t.tokens[token] = Principal(principal)
	}
	return t
}

// Lookup resolves a bearer token to its principal. The comparison is
// constant time per entry.
func (t *TokenTable) Lookup(token string) (Principal, error) {
	if t == nil || token == "" {
		return "", ErrNotAuthorized
	}
	var found Principal
	for candidate, principal := range t.tokens {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			found = principal
		}
	}
	if found == "" {
		return "", ErrNotAuthorized
	}
	return found, nil
}

// ParseBearer extracts the token from an Authorization header value
func ParseBearer(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) ||
		!strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
