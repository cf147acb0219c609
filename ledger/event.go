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

package ledger

import (
	"github.com/blinklabs-io/ballot/event"
)

// ProposalEventType is published after every committed proposal transition
const ProposalEventType event.EventType = "ledger.proposal"

type ProposalAction string

const (
	ProposalActionCreated   ProposalAction = "created"
	ProposalActionVoted     ProposalAction = "voted"
	ProposalActionFinalized ProposalAction = "finalized"
)

// ProposalEvent describes one committed transition. Events are published in
// height order with no gaps, so a consumer that sees a gap has missed an
// event.
type ProposalEvent struct {
	Action ProposalAction
	Height uint64
	// Sequence is the directory position of the proposal
	Sequence uint64
	// Proposal is a snapshot taken after the transition
	Proposal    *Proposal
	VoterRecord *VoterRecord
	Payouts     []Payout
}
