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
	"fmt"

	"github.com/blinklabs-io/ballot/database/models"
	"github.com/blinklabs-io/ballot/database/types"
)

// GetProposal returns the indexed summary of a proposal
func (d *Database) GetProposal(
	address string,
	txn *Txn,
) (*models.Proposal, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	proposal, err := d.metadata.GetProposal(address, txn.Metadata())
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}
	return proposal, nil
}

// GetProposals returns indexed proposals matching filter in creation order
func (d *Database) GetProposals(
	filter models.ProposalFilter,
	txn *Txn,
) ([]models.Proposal, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	proposals, err := d.metadata.GetProposals(filter, txn.Metadata())
	if err != nil {
		return nil, fmt.Errorf("failed to get proposals: %w", err)
	}
	return proposals, nil
}

// GetVotesByProposal returns the votes cast on a proposal
func (d *Database) GetVotesByProposal(
	address string,
	txn *Txn,
) ([]models.Vote, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	votes, err := d.metadata.GetVotesByProposal(address, txn.Metadata())
	if err != nil {
		return nil, fmt.Errorf("failed to get votes for proposal: %w", err)
	}
	return votes, nil
}

// GetVotesByVoter returns the votes cast by a voter
func (d *Database) GetVotesByVoter(
	voter string,
	txn *Txn,
) ([]models.Vote, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	votes, err := d.metadata.GetVotesByVoter(voter, txn.Metadata())
	if err != nil {
		return nil, fmt.Errorf("failed to get votes for voter: %w", err)
	}
	return votes, nil
}

// GetPayouts returns the payouts of a finalized proposal
func (d *Database) GetPayouts(
	address string,
	txn *Txn,
) ([]models.Payout, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	payouts, err := d.metadata.GetPayouts(address, txn.Metadata())
	if err != nil {
		return nil, fmt.Errorf("failed to get payouts: %w", err)
	}
	return payouts, nil
}

// ResetIndex removes all indexed data
func (d *Database) ResetIndex(txn *Txn) error {
	owned := false
	if txn == nil {
		txn = d.MetadataTxn(true)
		owned = true
		defer func() {
			if owned {
				txn.Rollback() //nolint:errcheck
			}
		}()
	}
	if err := d.metadata.Reset(txn.Metadata()); err != nil {
		return fmt.Errorf("failed to reset index: %w", err)
	}
	if owned {
		if err := txn.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		owned = false
	}
	return nil
}

// SetProposal upserts an indexed proposal summary
func (d *Database) SetProposal(proposal *models.Proposal, txn *Txn) error {
	if txn == nil {
		return types.ErrNilTxn
	}
	if err := d.metadata.SetProposal(proposal, txn.Metadata()); err != nil {
		return fmt.Errorf("failed to set proposal: %w", err)
	}
	return nil
}

// SetVote records an indexed vote. Recording the same vote again is a no-op.
func (d *Database) SetVote(vote *models.Vote, txn *Txn) error {
	if txn == nil {
		return types.ErrNilTxn
	}
	if err := d.metadata.SetVote(vote, txn.Metadata()); err != nil {
		return fmt.Errorf("failed to set vote: %w", err)
	}
	return nil
}

// SetPayouts records the payouts of a finalized proposal
func (d *Database) SetPayouts(payouts []models.Payout, txn *Txn) error {
	if txn == nil {
		return types.ErrNilTxn
	}
	if err := d.metadata.SetPayouts(payouts, txn.Metadata()); err != nil {
		return fmt.Errorf("failed to set payouts: %w", err)
	}
	return nil
}
