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

// Package gormstore holds the metadata queries shared by the gorm-backed
// metadata plugins
package gormstore

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/blinklabs-io/tollgate/database/models"
	"github.com/blinklabs-io/tollgate/database/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	commitTimestampRowId = 1
)

// CommitTimestamp represents the table used to track the current commit timestamp
type CommitTimestamp struct {
	ID        uint `gorm:"primarykey"`
	Timestamp int64
}

func (CommitTimestamp) TableName() string {
	return "commit_timestamp"
}

// Store implements the metadata queries on top of a gorm handle
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying GORM database handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction creates a new database transaction.
func (s *Store) Transaction() types.Txn {
	return NewTxn(s.db)
}

// Migrate creates or updates the table schemas
func (s *Store) Migrate(logger *slog.Logger) error {
	if err := s.db.AutoMigrate(&CommitTimestamp{}); err != nil {
		return err
	}
	for _, model := range models.MigrateModels {
		logger.Debug(fmt.Sprintf("creating table: %T", model))
		if err := s.db.AutoMigrate(model); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) resolveDB(txn types.Txn) (*gorm.DB, error) {
	if txn == nil {
		return s.db, nil
	}
	gormTxn, ok := txn.(*Txn)
	if !ok {
		return nil, types.ErrTxnWrongType
	}
	return gormTxn.DB()
}

func (s *Store) GetCommitTimestamp() (int64, error) {
	var tmpCommitTimestamp CommitTimestamp
	result := s.db.First(&tmpCommitTimestamp)
	if result.Error != nil {
		// It's not an error if there's no records found
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, result.Error
	}
	return tmpCommitTimestamp.Timestamp, nil
}

func (s *Store) SetCommitTimestamp(
	timestamp int64,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	tmpCommitTimestamp := CommitTimestamp{
		ID:        commitTimestampRowId,
		Timestamp: timestamp,
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"timestamp"}),
	}).Create(&tmpCommitTimestamp)
	return result.Error
}

// GetProposal retrieves a proposal by ID. Returns nil if it doesn't exist.
func (s *Store) GetProposal(
	id uint64,
	txn types.Txn,
) (*models.Proposal, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var proposal models.Proposal
	if result := db.Where("id = ?", id).First(&proposal); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &proposal, nil
}

// GetProposals retrieves proposals matching the filter, ordered by ID
func (s *Store) GetProposals(
	filter models.ProposalFilter,
	txn types.Txn,
) ([]models.Proposal, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	query := db.Model(&models.Proposal{})
	if filter.Target != "" {
		query = query.Where("target = ?", filter.Target)
	}
	if filter.PendingOnly {
		query = query.Where("executed = ? AND cancelled = ?", false, false)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	var proposals []models.Proposal
	if result := query.Order("id").Find(&proposals); result.Error != nil {
		return nil, result.Error
	}
	return proposals, nil
}

// SetProposal creates or updates a proposal
func (s *Store) SetProposal(
	proposal *models.Proposal,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	onConflict := clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		// The proposal content is immutable once created, only the
		// lifecycle columns are updated
		DoUpdates: clause.AssignmentColumns([]string{
			"eta",
			"queued_at",
			"executed",
			"executed_at",
			"rolled_back",
			"cancelled",
			"failure_reason",
		}),
	}
	if result := db.Clauses(onConflict).Create(proposal); result.Error != nil {
		return result.Error
	}
	return nil
}

// AddProposalApproval records an approval. It returns false if the validator
// had already approved the proposal.
func (s *Store) AddProposalApproval(
	approval *models.ProposalApproval,
	txn types.Txn,
) (bool, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return false, err
	}
	result := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "proposal_id"},
			{Name: "validator"},
		},
		DoNothing: true,
	}).Create(approval)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetProposalApprovals retrieves the approvals for a proposal in the order
// they were recorded
func (s *Store) GetProposalApprovals(
	proposalID uint64,
	txn types.Txn,
) ([]models.ProposalApproval, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var approvals []models.ProposalApproval
	if result := db.Where("proposal_id = ?", proposalID).
		Order("id").
		Find(&approvals); result.Error != nil {
		return nil, result.Error
	}
	return approvals, nil
}

// AddProxyHistory appends a proxy history record
func (s *Store) AddProxyHistory(
	entry *models.ProxyHistory,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Create(entry).Error
}

// GetProxyHistory retrieves the history records for a target, oldest first
func (s *Store) GetProxyHistory(
	target string,
	txn types.Txn,
) ([]models.ProxyHistory, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var history []models.ProxyHistory
	if result := db.Where("target = ?", target).
		Order("id").
		Find(&history); result.Error != nil {
		return nil, result.Error
	}
	return history, nil
}
