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

import "github.com/blinklabs-io/ballot/database/types"

const (
	PayoutKindReward = "reward"
	PayoutKindRefund = "refund"
)

// Payout is a transfer out of a proposal's reward pool at finalization
type Payout struct {
	ID              uint         `gorm:"primarykey"`
	ProposalAddress string       `gorm:"index:idx_payout_proposal;uniqueIndex:idx_payout_unique,priority:1;size:44;not null"`
	Recipient       string       `gorm:"index;uniqueIndex:idx_payout_unique,priority:2;size:44;not null"`
	Kind            string       `gorm:"uniqueIndex:idx_payout_unique,priority:3;size:8;not null"`
	Amount          types.Uint64 `gorm:"type:varchar(20);not null"`
	AddedHeight     uint64       `gorm:"not null"`
}

func (Payout) TableName() string {
	return "payout"
}
