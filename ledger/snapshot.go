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
)

// Snapshot is a consistent view of all proposals and voter records at one
// ledger height
type Snapshot struct {
	Height uint64
	// Proposals are in creation order, so the index is the directory
	// sequence
	Proposals []*Proposal
	// VoterRecords maps a proposal address to its voter records in voting
	// order
	VoterRecords map[string][]*VoterRecord
}

// Snapshot reads the whole ledger in a single read transaction
func (l *Ledger) Snapshot() (*Snapshot, error) {
	txn := l.db.BlobTxn(false)
	defer txn.Release()
	height, err := l.db.LedgerHeight(txn)
	if err != nil {
		return nil, fmt.Errorf("get ledger height: %w", err)
	}
	proposals, err := l.proposals(txn)
	if err != nil {
		return nil, err
	}
	ret := &Snapshot{
		Height:       height,
		Proposals:    proposals,
		VoterRecords: make(map[string][]*VoterRecord, len(proposals)),
	}
	for _, p := range proposals {
		records := make([]*VoterRecord, 0, len(p.Voters))
		for _, voter := range p.Voters {
			recordAddr, err := l.VoterRecordAddress(p.Address, voter)
			if err != nil {
				return nil, err
			}
			rec, err := l.getVoterRecord(recordAddr, txn)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
		ret.VoterRecords[p.Address.String()] = records
	}
	return ret, nil
}
