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

package manager

import "github.com/blinklabs-io/tollgate/database/models"

// State is the derived lifecycle stage of a proposal
type State int

const (
	StateOpen State = iota
	StateQueued
	StateExecutable
	StateExecuted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateQueued:
		return "queued"
	case StateExecutable:
		return "executable"
	case StateExecuted:
		return "executed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ProposalState derives the state of a stored proposal at the given time
func ProposalState(p *models.Proposal, now uint64) State {
	switch {
	case p.Executed:
		return StateExecuted
	case p.Cancelled:
		return StateCancelled
	case p.Eta == nil:
		return StateOpen
	case now < *p.Eta:
		return StateQueued
	default:
		return StateExecutable
	}
}
