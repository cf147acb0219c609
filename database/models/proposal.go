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

import (
	"errors"

	"github.com/blinklabs-io/ballot/database/types"
)

var ErrProposalNotFound = errors.New("proposal not found")

const (
	ProposalStatusOpen   = "open"
	ProposalStatusClosed = "closed"
)

// Proposal is the indexed summary of a proposal. Addresses are base58.
type Proposal struct {
	ID                uint   `gorm:"primarykey"`
	Address           string `gorm:"uniqueIndex;size:44;not null"`
	Creator           string `gorm:"index;size:44;not null"`
	Description       string `gorm:"size:256;not null"`
	Sequence          uint64 `gorm:"index;not null"`
	VotesFor          uint64
	VotesAgainst      uint64
	VoterCount        uint64
	Deposit           types.Uint64 `gorm:"type:varchar(20);not null"`
	RewardPool        types.Uint64 `gorm:"type:varchar(20);not null"`
	OnGoing           bool         `gorm:"index"`
	Result            *string      `gorm:"size:16"`
	ForPercentage     *float64
	AgainstPercentage *float64
	AddedHeight       uint64 `gorm:"not null"`
	UpdatedHeight     uint64 `gorm:"not null"`
}

func (Proposal) TableName() string {
	return "proposal"
}

// ProposalFilter narrows GetProposals. Zero values match everything.
type ProposalFilter struct {
	Status  string
	Creator string
}
