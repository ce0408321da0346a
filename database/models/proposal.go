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

package models

import "errors"

var ErrProposalNotFound = errors.New("proposal not found")

// Proposal represents a request to replace the code behind a managed target.
// Proposals have a lifecycle: open -> queued -> executable -> executed, or
// cancelled. They are never deleted and serve as the audit record.
type Proposal struct {
	ID            uint64  `gorm:"primaryKey;autoIncrement:false"`
	Target        string  `gorm:"index;size:128;not null"`
	CodeRef       string  `gorm:"size:256;not null"`
	TargetVersion uint32  `gorm:"not null"`
	Tag           string  `gorm:"size:64"`
	Proposer      string  `gorm:"size:128;not null"`
	ProposedAt    uint64  `gorm:"not null"`
	Eta           *uint64 `gorm:"index"` // Set once quorum is reached
	QueuedAt      *uint64
	Executed      bool `gorm:"index;not null"`
	ExecutedAt    *uint64
	RolledBack    bool   `gorm:"not null"`
	Cancelled     bool   `gorm:"index;not null"`
	FailureReason string `gorm:"size:512"`
}

// TableName returns the table name
func (Proposal) TableName() string {
	return "proposal"
}

// ProposalFilter narrows the results of a proposal listing
type ProposalFilter struct {
	Target string
	// PendingOnly excludes executed and cancelled proposals
	PendingOnly bool
	Limit       int
}

// ProposalApproval records a single validator approving a proposal. A
// validator can only appear once per proposal.
type ProposalApproval struct {
	ID         uint   `gorm:"primarykey"`
	ProposalID uint64 `gorm:"uniqueIndex:idx_approval_unique,priority:1;not null"`
	Validator  string `gorm:"uniqueIndex:idx_approval_unique,priority:2;size:128;not null"`
	ApprovedAt uint64 `gorm:"not null"`
}

// TableName returns the table name
func (ProposalApproval) TableName() string {
	return "proposal_approval"
}
