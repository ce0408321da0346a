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

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClock(t *testing.T) {
	c := NewManual(100)
	assert.Equal(t, uint64(100), c.Now())
	c.Advance(10)
	assert.Equal(t, uint64(110), c.Now())
	c.Set(200)
	assert.Equal(t, uint64(200), c.Now())
	// Never moves backwards
	c.Set(150)
	assert.Equal(t, uint64(200), c.Now())
}

func TestSystemClockMonotonic(t *testing.T) {
	c := NewSystem()
	first := c.Now()
	assert.InDelta(t, time.Now().Unix(), int64(first), 2)
	// Simulate a wall clock step backwards
	c.last = first + 1000
	assert.Equal(t, first+1000, c.Now())
}
