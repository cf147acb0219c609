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
	"sync"

	"github.com/blinklabs-io/ballot/database/types"
)

type txnStore string

const (
	txnStoreBlob     txnStore = "blob"
	txnStoreMetadata txnStore = "metadata"
)

// Txn is a transaction on one store. Ledger transitions run in blob
// transactions and the indexer writes in metadata transactions, so a ledger
// commit never waits on the index.
type Txn struct {
	db        *Database
	store     txnStore
	txn       types.Txn
	lock      sync.Mutex
	finished  bool
	readWrite bool
}

func newBlobTxn(db *Database, readWrite bool) *Txn {
	t := &Txn{db: db, store: txnStoreBlob, readWrite: readWrite}
	if bs := db.Blob(); bs != nil {
		t.txn = bs.NewTransaction(readWrite)
	}
	return t
}

func newMetadataTxn(db *Database, readWrite bool) *Txn {
	t := &Txn{db: db, store: txnStoreMetadata, readWrite: readWrite}
	if ms := db.Metadata(); ms != nil {
		t.txn = ms.Transaction()
	}
	return t
}

func (t *Txn) DB() *Database {
	return t.db
}

// Blob returns the blob transaction handle, or nil for a metadata
// transaction
func (t *Txn) Blob() types.Txn {
	if t.store != txnStoreBlob {
		return nil
	}
	return t.txn
}

// Metadata returns the metadata transaction handle, or nil for a blob
// transaction
func (t *Txn) Metadata() types.Txn {
	if t.store != txnStoreMetadata {
		return nil
	}
	return t.txn
}

// Do runs fn inside the transaction and commits it. An error from fn rolls
// the transaction back. A commit that lost a race wraps types.ErrTxnConflict.
func (t *Txn) Do(fn func(*Txn) error) error {
	if err := fn(t); err != nil {
		if rollbackErr := t.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w (rollback: %w)", err, rollbackErr)
		}
		return err
	}
	return t.Commit()
}

// Commit commits a read-write transaction and releases a read-only one.
// Finished transactions ignore further calls.
func (t *Txn) Commit() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.finished {
		return nil
	}
	if !t.readWrite {
		return t.rollback()
	}
	t.finished = true
	if t.txn == nil {
		return fmt.Errorf("%s commit: %w", t.store, types.ErrNoStoreAvailable)
	}
	if err := t.txn.Commit(); err != nil {
		// The store discards its side on a failed commit
		return fmt.Errorf("%s commit: %w", t.store, err)
	}
	return nil
}

func (t *Txn) Rollback() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.rollback()
}

func (t *Txn) rollback() error {
	if t.finished {
		return nil
	}
	t.finished = true
	if t.txn == nil {
		return nil
	}
	if err := t.txn.Rollback(); err != nil {
		return fmt.Errorf("%s rollback: %w", t.store, err)
	}
	return nil
}

// Release rolls back the transaction, logging rather than returning any
// error, for use in defer statements
func (t *Txn) Release() {
	if err := t.Rollback(); err != nil {
		t.db.logger.Debug(
			"transaction release failed",
			"component", "database",
			"store", string(t.store),
			"error", err,
			"read_write", t.readWrite,
		)
	}
}
