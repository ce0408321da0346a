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

package database

import (
	"github.com/blinklabs-io/tollgate/database/models"
	"github.com/blinklabs-io/tollgate/database/types"
)

func (t *Txn) metadataOrNil() types.Txn {
	if t == nil {
		return nil
	}
	return t.Metadata()
}

// GetProposal returns a proposal by ID, or models.ErrProposalNotFound
func (d *Database) GetProposal(
	id uint64,
	txn *Txn,
) (*models.Proposal, error) {
	ret, err := d.metadata.GetProposal(id, txn.metadataOrNil())
	if err != nil {
		return nil, err
	}
	if ret == nil {
		return nil, models.ErrProposalNotFound
	}
	return ret, nil
}

// GetProposals returns the proposals matching filter, ordered by ID
func (d *Database) GetProposals(
	filter models.ProposalFilter,
	txn *Txn,
) ([]models.Proposal, error) {
	return d.metadata.GetProposals(filter, txn.metadataOrNil())
}

// SetProposal creates a proposal or updates its lifecycle fields
func (d *Database) SetProposal(
	proposal *models.Proposal,
	txn *Txn,
) error {
	return d.metadata.SetProposal(proposal, txn.metadataOrNil())
}

// AddProposalApproval records an approval and reports whether it was new
func (d *Database) AddProposalApproval(
	proposalID uint64,
	validator string,
	approvedAt uint64,
	txn *Txn,
) (bool, error) {
	return d.metadata.AddProposalApproval(
		&models.ProposalApproval{
			ProposalID: proposalID,
			Validator:  validator,
			ApprovedAt: approvedAt,
		},
		txn.metadataOrNil(),
	)
}

// GetProposalApprovals returns the approvals of a proposal in arrival order
func (d *Database) GetProposalApprovals(
	proposalID uint64,
	txn *Txn,
) ([]models.ProposalApproval, error) {
	return d.metadata.GetProposalApprovals(proposalID, txn.metadataOrNil())
}
