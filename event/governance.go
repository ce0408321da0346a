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

package event

const (
	TimelockQueuedEventType    EventType = "timelock.queued"
	TimelockCancelledEventType EventType = "timelock.cancelled"
	TimelockExecutedEventType  EventType = "timelock.executed"

	ProxyInitializedEventType EventType = "proxy.initialized"
	ProxyUpgradedEventType    EventType = "proxy.upgraded"
	ProxyRolledBackEventType  EventType = "proxy.rolled_back"

	ProposalCreatedEventType    EventType = "manager.proposal_created"
	ProposalApprovedEventType   EventType = "manager.proposal_approved"
	ProposalQueuedEventType     EventType = "manager.proposal_queued"
	ProposalExecutedEventType   EventType = "manager.proposal_executed"
	ProposalRolledBackEventType EventType = "manager.proposal_rolled_back"
	ProposalCancelledEventType  EventType = "manager.proposal_cancelled"
)

// TimelockEvent is published when a timelock entry is queued, cancelled or
// executed
type TimelockEvent struct {
	Timelock string
	ID       string
	Target   string
	Action   string
	Eta      uint64
}

// ProxyEvent is published for every proxy mutation
type ProxyEvent struct {
	Target             string
	FromImplementation string
	ToImplementation   string
	FromVersion        uint32
	ToVersion          uint32
}

// ProposalEvent is published on every proposal state change. Validator is
// set for approvals, Eta once the proposal is queued and Reason when a
// migration failure forced a rollback.
type ProposalEvent struct {
	ProposalID uint64
	Target     string
	Validator  string
	Eta        uint64
	Version    uint32
	Reason     string
}
