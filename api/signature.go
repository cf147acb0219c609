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
	"crypto/ed25519"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// payloadDomain prefixes every signed payload, so signatures cannot be
// reused for other messages. The program ID follows it, binding each
// signature to one deployment.
const payloadDomain = "ballot/v1"

var ErrInvalidSignature = errors.New("invalid signature")

// CreateProposalPayload returns the message a creator signs to create a
// proposal. The description goes last since it may contain newlines.
func CreateProposalPayload(
	programID solana.PublicKey,
	creator solana.PublicKey,
	description string,
	deposit uint64,
) []byte {
	return payload(
		programID,
		"create",
		creator.String(),
		strconv.FormatUint(deposit, 10),
		description,
	)
}

// VotePayload returns the message a voter signs to vote on a proposal
func VotePayload(
	programID solana.PublicKey,
	proposal solana.PublicKey,
	voter solana.PublicKey,
	vote bool,
) []byte {
	return payload(
		programID,
		"vote",
		proposal.String(),
		voter.String(),
		strconv.FormatBool(vote),
	)
}

// FinalizePayload returns the message a creator signs to finalize a
// proposal with the given voter list
func FinalizePayload(
	programID solana.PublicKey,
	proposal solana.PublicKey,
	creator solana.PublicKey,
	voters []solana.PublicKey,
) []byte {
	tmpVoters := make([]string, 0, len(voters))
	for _, voter := range voters {
		tmpVoters = append(tmpVoters, voter.String())
	}
	return payload(
		programID,
		"finalize",
		proposal.String(),
		creator.String(),
		strings.Join(tmpVoters, ","),
	)
}

func payload(programID solana.PublicKey, op string, fields ...string) []byte {
	return []byte(
		payloadDomain + "\n" + programID.String() + "\n" + op + "\n" +
			strings.Join(fields, "\n"),
	)
}

// verifySignature checks a base58 Ed25519 signature by signer over message
func verifySignature(
	signer solana.PublicKey,
	message []byte,
	signatureBase58 string,
) error {
	if signatureBase58 == "" {
		return fmt.Errorf("%w: missing", ErrInvalidSignature)
	}
	signatureBytes, err := base58.Decode(signatureBase58)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if len(signatureBytes) != ed25519.SignatureSize {
		return fmt.Errorf(
			"%w: expected %d bytes, got %d",
			ErrInvalidSignature,
			ed25519.SignatureSize,
			len(signatureBytes),
		)
	}
	if !ed25519.Verify(signer.Bytes(), message, signatureBytes) {
		return fmt.Errorf("%w: verification failed", ErrInvalidSignature)
	}
	return nil
}
