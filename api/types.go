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
	"github.com/blinklabs-io/ballot/database/models"
	"github.com/blinklabs-io/ballot/ledger"
)

// RootResponse is returned by GET /.
type RootResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	ProgramID string `json:"program_id,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	IsHealthy    bool   `json:"is_healthy"`
	LedgerHeight uint64 `json:"ledger_height"`
	IndexHeight  uint64 `json:"index_height"`
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

// CreateProposalRequest is the body of POST /api/v0/proposals.
type CreateProposalRequest struct {
	Creator     string `json:"creator"`
	Description string `json:"description"`
	Deposit     uint64 `json:"deposit"`
	Signature   string `json:"signature"`
}

// VoteRequest is the body of POST /api/v0/proposals/{address}/votes.
type VoteRequest struct {
	Voter     string `json:"voter"`
	Vote      bool   `json:"vote"`
	Signature string `json:"signature"`
}

// FinalizeRequest is the body of POST
// /api/v0/proposals/{address}/finalize. Voters must match the recorded
// voters of the proposal.
type FinalizeRequest struct {
	Creator   string   `json:"creator"`
	Voters    []string `json:"voters"`
	Signature string   `json:"signature"`
}

// AirdropRequest is the body of POST /api/v0/accounts/{address}/airdrop.
type AirdropRequest struct {
	Amount uint64 `json:"amount"`
}

// ProposalResponse represents a proposal.
type ProposalResponse struct {
	Address                string   `json:"address"`
	Creator                string   `json:"creator"`
	Description            string   `json:"description"`
	Deposit                uint64   `json:"deposit"`
	RewardPool             uint64   `json:"reward_pool"`
	VotesFor               uint64   `json:"votes_for"`
	VotesAgainst           uint64   `json:"votes_against"`
	Voters                 []string `json:"voters"`
	OnGoing                bool     `json:"on_going"`
	Result                 *string  `json:"result"`
	VotesForPercentage     *float64 `json:"votes_for_percentage"`
	VotesAgainstPercentage *float64 `json:"votes_against_percentage"`
	ResultDescription      string   `json:"result_description,omitempty"`
	CreatedHeight          uint64   `json:"created_height"`
	UpdatedHeight          uint64   `json:"updated_height"`
}

// VoteResponse represents an indexed vote.
type VoteResponse struct {
	Proposal    string `json:"proposal"`
	Voter       string `json:"voter"`
	VoterRecord string `json:"voter_record"`
	Vote        bool   `json:"vote"`
	Height      uint64 `json:"height"`
}

// PayoutResponse represents a payout from a reward pool.
type PayoutResponse struct {
	Proposal  string `json:"proposal"`
	Recipient string `json:"recipient"`
	Kind      string `json:"kind"`
	Amount    uint64 `json:"amount"`
	Height    uint64 `json:"height"`
}

// BalanceResponse represents an account balance.
type BalanceResponse struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
}

// EventResponse is the data of a server-sent ledger event.
type EventResponse struct {
	Action   string           `json:"action"`
	Height   uint64           `json:"height"`
	Proposal ProposalResponse `json:"proposal"`
	Vote     *VoteResponse    `json:"vote,omitempty"`
	Payouts  []PayoutResponse `json:"payouts,omitempty"`
}

func newProposalResponse(p *ledger.Proposal) ProposalResponse {
	ret := ProposalResponse{
		Address:       p.Address.String(),
		Creator:       p.Creator.String(),
		Description:   p.Description,
		Deposit:       p.Deposit,
		RewardPool:    p.RewardPool,
		VotesFor:      p.VotesFor,
		VotesAgainst:  p.VotesAgainst,
		Voters:        make([]string, 0, len(p.Voters)),
		OnGoing:       p.OnGoing,
		CreatedHeight: p.CreatedHeight,
		UpdatedHeight: p.UpdatedHeight,
	}
	for _, voter := range p.Voters {
		ret.Voters = append(ret.Voters, voter.String())
	}
	if !p.OnGoing {
		result := p.Result.String()
		forPct := p.VotesForPercentage
		againstPct := p.VotesAgainstPercentage
		ret.Result = &result
		ret.VotesForPercentage = &forPct
		ret.VotesAgainstPercentage = &againstPct
		ret.ResultDescription = p.ResultDescription()
	}
	return ret
}

func newVoteResponse(v models.Vote) VoteResponse {
	return VoteResponse{
		Proposal:    v.ProposalAddress,
		Voter:       v.Voter,
		VoterRecord: v.VoterRecord,
		Vote:        v.Vote,
		Height:      v.AddedHeight,
	}
}

func newPayoutResponse(p models.Payout) PayoutResponse {
	return PayoutResponse{
		Proposal:  p.ProposalAddress,
		Recipient: p.Recipient,
		Kind:      p.Kind,
		Amount:    uint64(p.Amount),
		Height:    p.AddedHeight,
	}
}

func newEventResponse(evt ledger.ProposalEvent) EventResponse {
	ret := EventResponse{
		Action:   string(evt.Action),
		Height:   evt.Height,
		Proposal: newProposalResponse(evt.Proposal),
	}
	if rec := evt.VoterRecord; rec != nil {
		ret.Vote = &VoteResponse{
			Proposal:    rec.Proposal.String(),
			Voter:       rec.Voter.String(),
			VoterRecord: rec.Address.String(),
			Vote:        rec.Vote,
			Height:      rec.Height,
		}
	}
	for _, payout := range evt.Payouts {
		ret.Payouts = append(ret.Payouts, PayoutResponse{
			Proposal:  evt.Proposal.Address.String(),
			Recipient: payout.Recipient.String(),
			Kind:      string(payout.Kind),
			Amount:    payout.Amount,
			Height:    evt.Height,
		})
	}
	return ret
}
