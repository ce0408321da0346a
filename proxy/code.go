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

package proxy

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Implementation is the logic a code reference resolves to
type Implementation interface {
	Invoke(ctx context.Context, method string, args []byte) ([]byte, error)
}

// ImplementationFunc adapts a function to the Implementation interface
type ImplementationFunc func(ctx context.Context, method string, args []byte) ([]byte, error)

func (f ImplementationFunc) Invoke(
	ctx context.Context,
	method string,
	args []byte,
) ([]byte, error) {
	return f(ctx, method, args)
}

// CodeRegistry maps code references to the implementations they name
type CodeRegistry struct {
	mu    sync.RWMutex
	codes map[string]Implementation
}

func NewCodeRegistry() *CodeRegistry {
	return &CodeRegistry{
		codes: make(map[string]Implementation),
	}
}

// Register makes impl available under codeRef, replacing any previous entry
func (r *CodeRegistry) Register(codeRef string, impl Implementation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[codeRef] = impl
}

// Lookup returns the implementation registered under codeRef
func (r *CodeRegistry) Lookup(codeRef string) (Implementation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	impl, ok := r.codes[codeRef]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownImplementation, codeRef)
	}
	return impl, nil
}

// Refs returns the registered code references in sorted order
func (r *CodeRegistry) Refs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]string, 0, len(r.codes))
	for ref := range r.codes {
		ret = append(ret, ref)
	}
	sort.Strings(ret)
	return ret
}
