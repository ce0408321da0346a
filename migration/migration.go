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

// Package migration defines the contract a managed target satisfies so the
// upgrade manager can adapt its data after an implementation swap.
package migration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
)

var (
	ErrTargetNotFound  = errors.New("managed target not found")
	ErrDuplicateTarget = errors.New("managed target already registered")
)

// Digest summarizes the critical state of a target after migration
type Digest = lcommon.Blake2b256

// Target is the capability every upgradable target exposes
type Target interface {
	// CurrentVersion returns the version of the data layout
	CurrentVersion(ctx context.Context) (uint32, error)
	// Migrate adapts the data from fromVersion to the next version. It is
	// called at most once per successful upgrade.
	Migrate(ctx context.Context, fromVersion uint32) error
	// VerifyIntegrity returns a digest of the critical state. It must not
	// modify state.
	VerifyIntegrity(ctx context.Context) (Digest, error)
}

// Registry resolves target addresses to their migration capability at call
// time
type Registry struct {
	mu      sync.RWMutex
	targets map[string]Target
}

func NewRegistry() *Registry {
	return &Registry{
		targets: make(map[string]Target),
	}
}

func (r *Registry) Register(address string, target Target) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.targets[address]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTarget, address)
	}
	r.targets[address] = target
	return nil
}

func (r *Registry) Lookup(address string) (Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	target, ok := r.targets[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, address)
	}
	return target, nil
}

// Addresses returns the registered addresses in sorted order
func (r *Registry) Addresses() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]string, 0, len(r.targets))
	for address := range r.targets {
		ret = append(ret, address)
	}
	sort.Strings(ret)
	return ret
}
