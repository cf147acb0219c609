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
	"errors"
	"fmt"
)

var (
	ErrAlreadyExists     = errors.New("proposal already exists")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("proposal not found")
	ErrProposalClosed    = errors.New("proposal is closed")
	ErrAlreadyVoted      = errors.New("voter has already voted")
	ErrUnauthorized      = errors.New("only the creator can finalize")
	// ErrAlreadyFinalized is a more specific ErrProposalClosed
	ErrAlreadyFinalized = fmt.Errorf(
		"%w: already finalized",
		ErrProposalClosed,
	)
	ErrVoterListMismatch        = errors.New("voter list does not match recorded voters")
	ErrDescriptionRequired      = errors.New("description is required")
	ErrDescriptionTooLong       = errors.New("description is too long")
	ErrTooManyVoters            = errors.New("too many voters")
	ErrOverflow                 = errors.New("arithmetic overflow")
	ErrUnsupportedRecordVersion = errors.New("unsupported record version")
	ErrAirdropDisabled          = errors.New("airdrop is only available in dev mode")
	ErrInvalidAmount            = errors.New("invalid amount")
)
