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
	"fmt"
	"sort"
	"sync"
)

// Registry holds the proxies of a node, keyed by target address
type Registry struct {
	mu      sync.RWMutex
	proxies map[string]*Proxy
}

func NewRegistry() *Registry {
	return &Registry{
		proxies: make(map[string]*Proxy),
	}
}

func (r *Registry) Add(p *Proxy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.proxies[p.Target()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateProxy, p.Target())
	}
	r.proxies[p.Target()] = p
	return nil
}

func (r *Registry) Get(target string) (*Proxy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.proxies[target]
	return p, ok
}

// Targets returns the registered target addresses in sorted order
func (r *Registry) Targets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]string, 0, len(r.proxies))
	for target := range r.proxies {
		ret = append(ret, target)
	}
	sort.Strings(ret)
	return ret
}
