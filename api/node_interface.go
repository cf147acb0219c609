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

package api

import (
	"context"

	"github.com/blinklabs-io/ballot/database"
	"github.com/blinklabs-io/ballot/database/models"
	"github.com/blinklabs-io/ballot/ledger"
	"github.com/gagliardetto/solana-go"
)

// Ledger is the state machine the API submits operations to. It is
// implemented by *ledger.Ledger.
type Ledger interface {
	CreateProposal(
		ctx context.Context,
		creator solana.PublicKey,
		description string,
		deposit uint64,
	) (*ledger.Proposal, error)
	Vote(
		ctx context.Context,
		proposal solana.PublicKey,
		voter solana.PublicKey,
		choice bool,
	) (*ledger.Proposal, error)
	Finalize(
		ctx context.Context,
		proposal solana.PublicKey,
		caller solana.PublicKey,
		recordedVoters []solana.PublicKey,
	) (*ledger.Proposal, error)
	Proposal(addr solana.PublicKey) (*ledger.Proposal, error)
	Proposals() ([]*ledger.Proposal, error)
	Balance(account solana.PublicKey) (uint64, error)
	Airdrop(
		ctx context.Context,
		account solana.PublicKey,
		amount uint64,
	) (uint64, error)
	Height() (uint64, error)
	ProgramID() solana.PublicKey
	MaxVoters() int
}

// Index answers history queries. It is implemented by *database.Database.
type Index interface {
	GetProposals(
		filter models.ProposalFilter,
		txn *database.Txn,
	) ([]models.Proposal, error)
	GetVotesByProposal(address string, txn *database.Txn) ([]models.Vote, error)
	GetVotesByVoter(voter string, txn *database.Txn) ([]models.Vote, error)
	GetPayouts(address string, txn *database.Txn) ([]models.Payout, error)
	IndexHeight(txn *database.Txn) (uint64, error)
}

var (
	_ Ledger = (*ledger.Ledger)(nil)
	_ Index  = (*database.Database)(nil)
)
