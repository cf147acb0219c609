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

// Package address derives the storage addresses of proposals and voter
// records. Addresses are program-derived addresses, so they match the ones
// computed by on-chain deployments of the same program ID.
package address

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ProposalSeed is the namespace tag of proposal addresses
const ProposalSeed = "proposal"

// DefaultProgramID is the program ID addresses are derived under unless
// configured otherwise
var DefaultProgramID = solana.MustPublicKeyFromBase58(
	"9gvLmeAkDQzGjoLoJCCbEizicBYATkJSfD6pmVJzGKWS",
)

var ErrInvalidAddress = errors.New("invalid address")

// Parse decodes a base58 identity or address
func Parse(s string) (solana.PublicKey, error) {
	if s == "" {
		return solana.PublicKey{}, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return pk, nil
}

// ProposalAddress returns the address of the proposal owned by creator
func ProposalAddress(
	programID solana.PublicKey,
	creator solana.PublicKey,
) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte(ProposalSeed), creator.Bytes()},
		programID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive proposal address: %w", err)
	}
	return addr, nil
}

// VoterRecordAddress returns the address of the record marking that voter
// has voted on proposal
func VoterRecordAddress(
	programID solana.PublicKey,
	proposal solana.PublicKey,
	voter solana.PublicKey,
) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{proposal.Bytes(), voter.Bytes()},
		programID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf(
			"derive voter record address: %w",
			err,
		)
	}
	return addr, nil
}
