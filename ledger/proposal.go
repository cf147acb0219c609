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
	"fmt"
	"slices"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/gagliardetto/solana-go"
)

// MaxDescriptionLength is the maximum description size in bytes
const MaxDescriptionLength = 256

const (
	proposalRecordVersion    = 1
	voterRecordRecordVersion = 1
)

// Result is the outcome of a finalized proposal
type Result uint8

const (
	ResultNone Result = iota
	ResultFor
	ResultAgainst
	ResultTie
)

func (r Result) String() string {
	switch r {
	case ResultFor:
		return "For"
	case ResultAgainst:
		return "Against"
	case ResultTie:
		return "Tie"
	default:
		return ""
	}
}

// ParseResult is the inverse of Result.String
func ParseResult(s string) (Result, error) {
	switch s {
	case "":
		return ResultNone, nil
	case "For":
		return ResultFor, nil
	case "Against":
		return ResultAgainst, nil
	case "Tie":
		return ResultTie, nil
	}
	return ResultNone, fmt.Errorf("unknown result: %q", s)
}

// Proposal is the state of a voteable proposal
type Proposal struct {
	Address      solana.PublicKey
	Creator      solana.PublicKey
	Description  string
	Deposit      uint64
	RewardPool   uint64
	VotesFor     uint64
	VotesAgainst uint64
	Voters       []solana.PublicKey
	OnGoing      bool
	Result       Result
	// Percentages are derived from the final counts and are 0 while ongoing
	VotesForPercentage     float64
	VotesAgainstPercentage float64
	CreatedHeight          uint64
	UpdatedHeight          uint64
	Version                uint
}

// ResultDescription returns a human-readable outcome, or an empty string
// while the proposal is ongoing
func (p *Proposal) ResultDescription() string {
	if p.OnGoing {
		return ""
	}
	switch p.Result {
	case ResultFor:
		return fmt.Sprintf("Passed with %.2f%% in favor", p.VotesForPercentage)
	case ResultAgainst:
		return fmt.Sprintf(
			"Failed with %.2f%% against",
			p.VotesAgainstPercentage,
		)
	case ResultTie:
		return "Resulted in a tie"
	default:
		return ""
	}
}

// HasVoter reports whether voter appears in the recorded voters
func (p *Proposal) HasVoter(voter solana.PublicKey) bool {
	return slices.Contains(p.Voters, voter)
}

// Clone returns a deep copy
func (p *Proposal) Clone() *Proposal {
	ret := *p
	ret.Voters = slices.Clone(p.Voters)
	return &ret
}

// VoterRecord marks that a voter has voted on a proposal
type VoterRecord struct {
	Address  solana.PublicKey
	Proposal solana.PublicKey
	Voter    solana.PublicKey
	Vote     bool
	Height   uint64
	Version  uint
}

type proposalRecord struct {
	cbor.StructAsArray
	Version       uint
	Creator       []byte
	Description   string
	Deposit       uint64
	RewardPool    uint64
	VotesFor      uint64
	VotesAgainst  uint64
	Voters        [][]byte
	OnGoing       bool
	Result        uint8
	CreatedHeight uint64
	UpdatedHeight uint64
}

type voterRecordRecord struct {
	cbor.StructAsArray
	Version  uint
	Proposal []byte
	Voter    []byte
	Vote     bool
	Height   uint64
}

// recordVersion reads the layout version leading a stored record
func recordVersion(data []byte) (uint, error) {
	var fields []cbor.RawMessage
	if _, err := cbor.Decode(data, &fields); err != nil {
		return 0, fmt.Errorf("decode record: %w", err)
	}
	if len(fields) == 0 {
		return 0, fmt.Errorf("decode record: %w", ErrUnsupportedRecordVersion)
	}
	var version uint
	if _, err := cbor.Decode(fields[0], &version); err != nil {
		return 0, fmt.Errorf("decode record version: %w", err)
	}
	return version, nil
}

func encodeProposal(p *Proposal) ([]byte, error) {
	rec := proposalRecord{
		Version:       proposalRecordVersion,
		Creator:       p.Creator.Bytes(),
		Description:   p.Description,
		Deposit:       p.Deposit,
		RewardPool:    p.RewardPool,
		VotesFor:      p.VotesFor,
		VotesAgainst:  p.VotesAgainst,
		Voters:        make([][]byte, 0, len(p.Voters)),
		OnGoing:       p.OnGoing,
		Result:        uint8(p.Result),
		CreatedHeight: p.CreatedHeight,
		UpdatedHeight: p.UpdatedHeight,
	}
	for _, voter := range p.Voters {
		rec.Voters = append(rec.Voters, voter.Bytes())
	}
	data, err := cbor.Encode(&rec)
	if err != nil {
		return nil, fmt.Errorf("encode proposal: %w", err)
	}
	return data, nil
}

func decodeProposal(addr solana.PublicKey, data []byte) (*Proposal, error) {
	version, err := recordVersion(data)
	if err != nil {
		return nil, err
	}
	if version != proposalRecordVersion {
		return nil, fmt.Errorf(
			"%w: proposal version %d",
			ErrUnsupportedRecordVersion,
			version,
		)
	}
	var rec proposalRecord
	if _, err := cbor.Decode(data, &rec); err != nil {
		return nil, fmt.Errorf("decode proposal: %w", err)
	}
	p := &Proposal{
		Address:       addr,
		Creator:       solana.PublicKeyFromBytes(rec.Creator),
		Description:   rec.Description,
		Deposit:       rec.Deposit,
		RewardPool:    rec.RewardPool,
		VotesFor:      rec.VotesFor,
		VotesAgainst:  rec.VotesAgainst,
		Voters:        make([]solana.PublicKey, 0, len(rec.Voters)),
		OnGoing:       rec.OnGoing,
		Result:        Result(rec.Result),
		CreatedHeight: rec.CreatedHeight,
		UpdatedHeight: rec.UpdatedHeight,
		Version:       rec.Version,
	}
	for _, voter := range rec.Voters {
		p.Voters = append(p.Voters, solana.PublicKeyFromBytes(voter))
	}
	if !p.OnGoing {
		_, p.VotesForPercentage, p.VotesAgainstPercentage = Tally(
			p.VotesFor,
			p.VotesAgainst,
		)
	}
	return p, nil
}

func encodeVoterRecord(r *VoterRecord) ([]byte, error) {
	rec := voterRecordRecord{
		Version:  voterRecordRecordVersion,
		Proposal: r.Proposal.Bytes(),
		Voter:    r.Voter.Bytes(),
		Vote:     r.Vote,
		Height:   r.Height,
	}
	data, err := cbor.Encode(&rec)
	if err != nil {
		return nil, fmt.Errorf("encode voter record: %w", err)
	}
	return data, nil
}

func decodeVoterRecord(
	addr solana.PublicKey,
	data []byte,
) (*VoterRecord, error) {
	version, err := recordVersion(data)
	if err != nil {
		return nil, err
	}
	if version != voterRecordRecordVersion {
		return nil, fmt.Errorf(
			"%w: voter record version %d",
			ErrUnsupportedRecordVersion,
			version,
		)
	}
	var rec voterRecordRecord
	if _, err := cbor.Decode(data, &rec); err != nil {
		return nil, fmt.Errorf("decode voter record: %w", err)
	}
	return &VoterRecord{
		Address:  addr,
		Proposal: solana.PublicKeyFromBytes(rec.Proposal),
		Voter:    solana.PublicKeyFromBytes(rec.Voter),
		Vote:     rec.Vote,
		Height:   rec.Height,
		Version:  rec.Version,
	}, nil
}

func validateDescription(description string) error {
	if description == "" {
		return ErrDescriptionRequired
	}
	if len(description) > MaxDescriptionLength {
		return fmt.Errorf(
			"%w: %d bytes, max %d",
			ErrDescriptionTooLong,
			len(description),
			MaxDescriptionLength,
		)
	}
	return nil
}
