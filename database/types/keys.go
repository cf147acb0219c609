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

package types

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// KeySpace is the one-byte prefix that partitions the blob store. Every
// ledger record lives under exactly one space.
type KeySpace byte

const (
	KeySpaceProposal      KeySpace = 'p'
	KeySpaceVoterRecord   KeySpace = 'v'
	KeySpaceBalance       KeySpace = 'b'
	KeySpaceProposalIndex KeySpace = 'i'
	KeySpaceState         KeySpace = 's'
)

// Singleton ledger counters
var (
	ProposalSequenceBlobKey = KeySpaceState.Key([]byte("proposal"))
	LedgerHeightBlobKey     = KeySpaceState.Key([]byte("height"))
)

func (k KeySpace) String() string {
	switch k {
	case KeySpaceProposal:
		return "proposal"
	case KeySpaceVoterRecord:
		return "voter-record"
	case KeySpaceBalance:
		return "balance"
	case KeySpaceProposalIndex:
		return "proposal-index"
	case KeySpaceState:
		return "state"
	default:
		return fmt.Sprintf("unknown(%#x)", byte(k))
	}
}

// Prefix returns the iterator prefix covering the whole space
func (k KeySpace) Prefix() []byte {
	return []byte{byte(k)}
}

// Key places suffix in the space
func (k KeySpace) Key(suffix []byte) []byte {
	ret := make([]byte, 0, 1+len(suffix))
	ret = append(ret, byte(k))
	return append(ret, suffix...)
}

// Suffix strips the space prefix from key. It reports false when key belongs
// to another space.
func (k KeySpace) Suffix(key []byte) ([]byte, bool) {
	return bytes.CutPrefix(key, k.Prefix())
}

func ProposalBlobKey(address []byte) []byte {
	return KeySpaceProposal.Key(address)
}

func VoterRecordBlobKey(address []byte) []byte {
	return KeySpaceVoterRecord.Key(address)
}

func BalanceBlobKey(address []byte) []byte {
	return KeySpaceBalance.Key(address)
}

// ProposalIndexBlobKey orders the proposal directory by creation sequence.
// Big-endian keeps byte order equal to numeric order.
func ProposalIndexBlobKey(seq uint64) []byte {
	return KeySpaceProposalIndex.Key(EncodeUint64(seq))
}

// ProposalIndexSeq recovers the sequence from a proposal directory key
func ProposalIndexSeq(key []byte) (uint64, error) {
	suffix, ok := KeySpaceProposalIndex.Suffix(key)
	if !ok || len(suffix) != 8 {
		return 0, fmt.Errorf("not a proposal index key: %x", key)
	}
	return binary.BigEndian.Uint64(suffix), nil
}

// EncodeUint64 is the fixed-width encoding of ledger counters and balances
func EncodeUint64(v uint64) []byte {
	return binary.BigEndian.AppendUint64(make([]byte, 0, 8), v)
}

// DecodeUint64 reverses EncodeUint64. Absent records decode as zero; any
// other length is corrupt.
func DecodeUint64(data []byte) (uint64, error) {
	switch len(data) {
	case 0:
		return 0, nil
	case 8:
		return binary.BigEndian.Uint64(data), nil
	default:
		return 0, fmt.Errorf("invalid counter encoding: %d bytes", len(data))
	}
}
