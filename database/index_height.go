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
	"fmt"
)

// IndexHeightError reports a query index that does not match the ledger,
// such as after a crash between a ledger commit and its indexing. The index
// must be rebuilt.
type IndexHeightError struct {
	IndexHeight  uint64
	LedgerHeight uint64
}

func (e IndexHeightError) Error() string {
	return fmt.Sprintf(
		"index height mismatch: %d (metadata) != %d (blob)",
		e.IndexHeight,
		e.LedgerHeight,
	)
}

func (d *Database) checkIndexHeight() error {
	indexHeight, err := d.IndexHeight(nil)
	if err != nil {
		return fmt.Errorf(
			"failed to get index height from metadata plugin: %w",
			err,
		)
	}
	txn := d.BlobTxn(false)
	defer txn.Release()
	ledgerHeight, err := d.LedgerHeight(txn)
	if err != nil {
		return fmt.Errorf(
			"failed to get ledger height from blob plugin: %w",
			err,
		)
	}
	if indexHeight != ledgerHeight {
		return IndexHeightError{
			IndexHeight:  indexHeight,
			LedgerHeight: ledgerHeight,
		}
	}
	return nil
}

// IndexHeight returns the last ledger height applied to the query index
func (d *Database) IndexHeight(txn *Txn) (uint64, error) {
	if txn == nil {
		return d.metadata.GetIndexHeight(nil)
	}
	return d.metadata.GetIndexHeight(txn.Metadata())
}

// SetIndexHeight records the last ledger height applied to the query index
func (d *Database) SetIndexHeight(height uint64, txn *Txn) error {
	if txn == nil {
		return d.metadata.SetIndexHeight(height, nil)
	}
	return d.metadata.SetIndexHeight(height, txn.Metadata())
}
