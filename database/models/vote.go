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

// Vote records one ballot. A voter appears at most once per proposal.
type Vote struct {
	ID              uint   `gorm:"primarykey"`
	ProposalAddress string `gorm:"index:idx_vote_proposal;uniqueIndex:idx_vote_unique,priority:1;size:44;not null"`
	Voter           string `gorm:"index:idx_vote_voter;uniqueIndex:idx_vote_unique,priority:2;size:44;not null"`
	VoterRecord     string `gorm:"size:44;not null"`
	Vote            bool   `gorm:"not null"`
	AddedHeight     uint64 `gorm:"index;not null"`
}

func (Vote) TableName() string {
	return "vote"
}
