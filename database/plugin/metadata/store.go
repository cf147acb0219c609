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

package metadata

import (
	"fmt"
	"log/slog"

	"github.com/blinklabs-io/ballot/database/models"
	"github.com/blinklabs-io/ballot/database/plugin"
	"github.com/blinklabs-io/ballot/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// MetadataStore is the queryable index of ledger history. Addresses are
// base58 strings. Passing a nil txn runs the call outside a transaction.
type MetadataStore interface {
	// Database
	Close() error
	DB() *gorm.DB
	Transaction() types.Txn

	// Index bookkeeping
	GetIndexHeight(types.Txn) (uint64, error)
	SetIndexHeight(uint64, types.Txn) error
	Reset(types.Txn) error

	// Proposals
	GetProposal(string, types.Txn) (*models.Proposal, error)
	GetProposals(models.ProposalFilter, types.Txn) ([]models.Proposal, error)
	SetProposal(*models.Proposal, types.Txn) error

	// Votes
	GetVotesByProposal(string, types.Txn) ([]models.Vote, error)
	GetVotesByVoter(string, types.Txn) ([]models.Vote, error)
	SetVote(*models.Vote, types.Txn) error

	// Payouts
	GetPayouts(string, types.Txn) ([]models.Payout, error)
	SetPayouts([]models.Payout, types.Txn) error
}

// New returns the started metadata plugin selected by name
func New(
	pluginName string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (MetadataStore, error) {
	p, err := plugin.StartPlugin(
		plugin.PluginTypeMetadata,
		pluginName,
		logger,
		promRegistry,
	)
	if err != nil {
		return nil, err
	}
	metadataStore, ok := p.(MetadataStore)
	if !ok {
		return nil, fmt.Errorf(
			"plugin '%s' does not implement MetadataStore interface",
			pluginName,
		)
	}
	return metadataStore, nil
}
