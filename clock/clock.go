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

// Package clock provides the timestamp source shared by the governance
// components. Timestamps are unix seconds and never move backwards.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current timestamp in seconds
type Clock interface {
	Now() uint64
}

// System is a Clock backed by the wall clock. It never reports a value lower
// than one it has already returned, even if the wall clock is stepped back.
type System struct {
	mu   sync.Mutex
	last uint64
}

// NewSystem returns a wall-clock backed Clock
func NewSystem() *System {
	return &System{}
}

func (s *System) Now() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := uint64(time.Now().Unix()) //nolint:gosec // unix time is positive
	if now < s.last {
		return s.last
	}
	s.last = now
	return now
}

// Manual is a Clock that only moves when told to. It is used by tests and
// the devnet run mode.
type Manual struct {
	mu  sync.Mutex
	now uint64
}

// NewManual returns a Manual clock starting at the given timestamp
func NewManual(start uint64) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to the given timestamp. Attempts to move the clock
// backwards are ignored.
func (m *Manual) Set(ts uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ts > m.now {
		m.now = ts
	}
}

// Advance moves the clock forward by the given number of seconds
func (m *Manual) Advance(seconds uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += seconds
}
