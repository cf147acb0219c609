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

package database

import (
	"errors"
	"fmt"

	"github.com/blinklabs-io/ballot/database/types"
)

// Ledger records are stored as opaque bytes in the blob store. The ledger
// package owns their encoding.

func (d *Database) blobTxn(txn *Txn) (types.Txn, error) {
	if txn == nil {
		return nil, types.ErrNilTxn
	}
	if txn.Blob() == nil {
		return nil, types.ErrBlobStoreUnavailable
	}
	return txn.Blob(), nil
}

func (d *Database) getRecord(key []byte, txn *Txn) ([]byte, error) {
	blobTxn, err := d.blobTxn(txn)
	if err != nil {
		return nil, err
	}
	return d.blob.Get(blobTxn, key)
}

func (d *Database) setRecord(key []byte, data []byte, txn *Txn) error {
	blobTxn, err := d.blobTxn(txn)
	if err != nil {
		return err
	}
	return d.blob.Set(blobTxn, key, data)
}

// createRecord stores data at key only if the key is absent. The read of the
// key is part of the transaction, so a concurrent create of the same key
// fails one of the commits with a conflict.
func (d *Database) createRecord(key []byte, data []byte, txn *Txn) error {
	blobTxn, err := d.blobTxn(txn)
	if err != nil {
		return err
	}
	_, err = d.blob.Get(blobTxn, key)
	if err == nil {
		return ErrRecordExists
	}
	if !errors.Is(err, types.ErrBlobKeyNotFound) {
		return err
	}
	return d.blob.Set(blobTxn, key, data)
}

// ProposalRecord returns the stored proposal at addr, or
// types.ErrBlobKeyNotFound
func (d *Database) ProposalRecord(addr []byte, txn *Txn) ([]byte, error) {
	return d.getRecord(types.ProposalBlobKey(addr), txn)
}

// SetProposalRecord overwrites an existing proposal
func (d *Database) SetProposalRecord(addr []byte, data []byte, txn *Txn) error {
	return d.setRecord(types.ProposalBlobKey(addr), data, txn)
}

// CreateProposalRecord stores a new proposal and appends its address to the
// proposal directory. It returns the directory sequence of the proposal.
func (d *Database) CreateProposalRecord(
	addr []byte,
	data []byte,
	txn *Txn,
) (uint64, error) {
	if err := d.createRecord(types.ProposalBlobKey(addr), data, txn); err != nil {
		return 0, err
	}
	seqData, err := d.getRecord(types.ProposalSequenceBlobKey, txn)
	if err != nil && !errors.Is(err, types.ErrBlobKeyNotFound) {
		return 0, err
	}
	seq, err := types.DecodeUint64(seqData)
	if err != nil {
		return 0, fmt.Errorf("proposal sequence: %w", err)
	}
	if err := d.setRecord(types.ProposalIndexBlobKey(seq), addr, txn); err != nil {
		return 0, err
	}
	if err := d.setRecord(
		types.ProposalSequenceBlobKey,
		types.EncodeUint64(seq+1),
		txn,
	); err != nil {
		return 0, err
	}
	return seq, nil
}

// ProposalAddresses returns the addresses of all proposals in creation
// order
func (d *Database) ProposalAddresses(txn *Txn) ([][]byte, error) {
	blobTxn, err := d.blobTxn(txn)
	if err != nil {
		return nil, err
	}
	prefix := types.KeySpaceProposalIndex.Prefix()
	iter := d.blob.NewIterator(
		blobTxn,
		types.BlobIteratorOptions{Prefix: prefix},
	)
	defer iter.Close()
	var ret [][]byte
	for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
		// The directory is append-only, so sequences must be dense
		seq, err := types.ProposalIndexSeq(iter.Item().Key())
		if err != nil {
			return nil, err
		}
		if seq != uint64(len(ret)) {
			return nil, fmt.Errorf(
				"proposal directory gap: expected sequence %d, found %d",
				len(ret),
				seq,
			)
		}
		val, err := iter.Item().ValueCopy(nil)
		if err != nil {
			return nil, fmt.Errorf("read proposal directory: %w", err)
		}
		ret = append(ret, val)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// VoterRecord returns the stored voter record at addr, or
// types.ErrBlobKeyNotFound
func (d *Database) VoterRecord(addr []byte, txn *Txn) ([]byte, error) {
	return d.getRecord(types.VoterRecordBlobKey(addr), txn)
}

// CreateVoterRecord stores a voter record, failing with ErrRecordExists when
// one is already present
func (d *Database) CreateVoterRecord(addr []byte, data []byte, txn *Txn) error {
	return d.createRecord(types.VoterRecordBlobKey(addr), data, txn)
}

// LedgerHeight returns the number of committed ledger transitions
func (d *Database) LedgerHeight(txn *Txn) (uint64, error) {
	data, err := d.getRecord(types.LedgerHeightBlobKey, txn)
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	height, err := types.DecodeUint64(data)
	if err != nil {
		return 0, fmt.Errorf("ledger height: %w", err)
	}
	return height, nil
}

// IncrementLedgerHeight bumps the ledger height and returns the new value.
// Every ledger transition calls this once, which also makes concurrent
// transitions conflict on commit.
func (d *Database) IncrementLedgerHeight(txn *Txn) (uint64, error) {
	height, err := d.LedgerHeight(txn)
	if err != nil {
		return 0, err
	}
	height++
	if err := d.setRecord(
		types.LedgerHeightBlobKey,
		types.EncodeUint64(height),
		txn,
	); err != nil {
		return 0, err
	}
	return height, nil
}
