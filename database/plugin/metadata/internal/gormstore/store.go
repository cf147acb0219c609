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

// Package gormstore implements the metadata index queries shared by the
// gorm-backed metadata plugins
package gormstore

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/blinklabs-io/ballot/database/models"
	"github.com/blinklabs-io/ballot/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/opentelemetry/tracing"
)

type Store struct {
	db        *gorm.DB
	registry  prometheus.Registerer
	collector prometheus.Collector
}

// New configures tracing on the database handle and creates the table
// schemas
func New(db *gorm.DB, logger *slog.Logger) (*Store, error) {
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}
	for _, model := range models.MigrateModels {
		if logger != nil {
			logger.Debug(fmt.Sprintf("creating table: %#v", model))
		}
		if err := db.AutoMigrate(model); err != nil {
			return nil, err
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Transaction() types.Txn {
	return NewTxn(s.db)
}

func (s *Store) resolveDB(txn types.Txn) (*gorm.DB, error) {
	if txn == nil {
		return s.db, nil
	}
	gormTxn, ok := txn.(*Txn)
	if !ok {
		return nil, types.ErrTxnWrongType
	}
	if gormTxn.beginErr != nil {
		return nil, gormTxn.beginErr
	}
	if gormTxn.finished {
		return nil, types.ErrTxnFinished
	}
	return gormTxn.db, nil
}

// GetIndexHeight returns the last ledger height applied to the index, or 0
// for an empty index
func (s *Store) GetIndexHeight(txn types.Txn) (uint64, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return 0, err
	}
	var state models.IndexState
	if result := db.First(&state, models.IndexStateID); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, result.Error
	}
	return state.Height, nil
}

func (s *Store) SetIndexHeight(height uint64, txn types.Txn) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	state := models.IndexState{ID: models.IndexStateID, Height: height}
	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"height"}),
	}
	if result := db.Clauses(onConflict).Create(&state); result.Error != nil {
		return result.Error
	}
	return nil
}

// Reset removes all indexed data ahead of a rebuild
func (s *Store) Reset(txn types.Txn) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	for _, model := range models.MigrateModels {
		if result := db.Where("1 = 1").Delete(model); result.Error != nil {
			return result.Error
		}
	}
	return nil
}

func (s *Store) GetProposal(
	address string,
	txn types.Txn,
) (*models.Proposal, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var proposal models.Proposal
	if result := db.Where("address = ?", address).First(&proposal); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrProposalNotFound
		}
		return nil, result.Error
	}
	return &proposal, nil
}

// GetProposals returns matching proposals in creation order
func (s *Store) GetProposals(
	filter models.ProposalFilter,
	txn types.Txn,
) ([]models.Proposal, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	query := db.Model(&models.Proposal{})
	switch filter.Status {
	case "":
	case models.ProposalStatusOpen:
		query = query.Where("on_going = ?", true)
	case models.ProposalStatusClosed:
		query = query.Where("on_going = ?", false)
	default:
		return nil, fmt.Errorf("unknown proposal status filter: %s", filter.Status)
	}
	if filter.Creator != "" {
		query = query.Where("creator = ?", filter.Creator)
	}
	var proposals []models.Proposal
	if result := query.Order("sequence ASC").Find(&proposals); result.Error != nil {
		return nil, result.Error
	}
	return proposals, nil
}

// SetProposal creates or updates a proposal summary
func (s *Store) SetProposal(proposal *models.Proposal, txn types.Txn) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	onConflict := clause.OnConflict{
		Columns: []clause.Column{{Name: "address"}},
		// Identity and creation columns never change after creation
		DoUpdates: clause.AssignmentColumns([]string{
			"votes_for",
			"votes_against",
			"voter_count",
			"reward_pool",
			"on_going",
			"result",
			"for_percentage",
			"against_percentage",
			"updated_height",
		}),
	}
	if result := db.Clauses(onConflict).Create(proposal); result.Error != nil {
		return result.Error
	}
	return nil
}

// GetVotesByProposal returns the votes of a proposal in the order cast
func (s *Store) GetVotesByProposal(
	address string,
	txn types.Txn,
) ([]models.Vote, error) {
	return s.getVotes("proposal_address = ?", address, txn)
}

// GetVotesByVoter returns the votes cast by a voter in the order cast
func (s *Store) GetVotesByVoter(
	voter string,
	txn types.Txn,
) ([]models.Vote, error) {
	return s.getVotes("voter = ?", voter, txn)
}

func (s *Store) getVotes(
	query string,
	arg string,
	txn types.Txn,
) ([]models.Vote, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var votes []models.Vote
	if result := db.Where(query, arg).Order("added_height ASC, id ASC").Find(&votes); result.Error != nil {
		return nil, result.Error
	}
	return votes, nil
}

// SetVote records a vote. Recording the same voter again is a no-op.
func (s *Store) SetVote(vote *models.Vote, txn types.Txn) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	onConflict := clause.OnConflict{
		Columns: []clause.Column{
			{Name: "proposal_address"},
			{Name: "voter"},
		},
		DoNothing: true,
	}
	if result := db.Clauses(onConflict).Create(vote); result.Error != nil {
		return result.Error
	}
	return nil
}

func (s *Store) GetPayouts(
	address string,
	txn types.Txn,
) ([]models.Payout, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var payouts []models.Payout
	if result := db.Where("proposal_address = ?", address).Order("id ASC").Find(&payouts); result.Error != nil {
		return nil, result.Error
	}
	return payouts, nil
}

// SetPayouts records the payouts of a finalized proposal. Payouts that were
// already recorded are left untouched.
func (s *Store) SetPayouts(payouts []models.Payout, txn types.Txn) error {
	if len(payouts) == 0 {
		return nil
	}
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	onConflict := clause.OnConflict{
		Columns: []clause.Column{
			{Name: "proposal_address"},
			{Name: "recipient"},
			{Name: "kind"},
		},
		DoNothing: true,
	}
	if result := db.Clauses(onConflict).Create(&payouts); result.Error != nil {
		return result.Error
	}
	return nil
}
