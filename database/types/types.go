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
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
)

// Uint64 stores a full-range uint64 as a decimal string. Balances and
// reward pools can exceed math.MaxInt64, which not every SQL backend holds.
//
//nolint:recvcheck
type Uint64 uint64

func (u Uint64) String() string {
	return strconv.FormatUint(uint64(u), 10)
}

func (u Uint64) Value() (driver.Value, error) {
	return u.String(), nil
}

func (u *Uint64) Scan(val any) error {
	switch v := val.(type) {
	case string:
		return u.parse(v)
	case []byte:
		return u.parse(string(v))
	case int64:
		if v < 0 {
			return fmt.Errorf("negative value for Uint64: %d", v)
		}
		*u = Uint64(v)
		return nil
	case uint64:
		*u = Uint64(v)
		return nil
	}
	return fmt.Errorf("cannot scan %T into Uint64", val)
}

func (u *Uint64) parse(s string) error {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parse Uint64: %w", err)
	}
	*u = Uint64(v)
	return nil
}

var (
	// ErrBlobKeyNotFound is returned by blob reads of a missing key
	ErrBlobKeyNotFound = errors.New("blob key not found")
	// ErrBlobStoreUnavailable is returned by ledger reads and writes on a
	// transaction without a blob side
	ErrBlobStoreUnavailable = errors.New("blob store unavailable")
	// ErrNoStoreAvailable is returned on commit of a transaction whose store
	// is not configured
	ErrNoStoreAvailable = errors.New("no store available")
	// ErrNilTxn is returned when an operation that must run inside a
	// transaction receives none
	ErrNilTxn = errors.New("nil transaction")
	// ErrTxnWrongType is returned when a store receives another store's
	// transaction handle
	ErrTxnWrongType = errors.New("invalid transaction type")
	// ErrTxnConflict is returned on commit when another transaction modified
	// data that this transaction read. The whole transaction may be retried.
	ErrTxnConflict = errors.New("transaction conflict")
	// ErrTxnFinished is returned when a transaction is used after commit or
	// rollback
	ErrTxnFinished = errors.New("transaction already finished")
)

// BlobItem represents a value returned by an iterator
type BlobItem interface {
	Key() []byte
	ValueCopy(dst []byte) ([]byte, error)
}

// BlobIterator provides key iteration over the blob store.
//
// Items returned by Item() must only be accessed while the transaction used
// to create the iterator is still active.
type BlobIterator interface {
	Rewind()
	Seek(prefix []byte)
	Valid() bool
	ValidForPrefix(prefix []byte) bool
	Next()
	Item() BlobItem
	Close()
	Err() error
}

// BlobIteratorOptions configures blob iterator creation
type BlobIteratorOptions struct {
	Prefix  []byte
	Reverse bool
}

// Txn is the store-level transaction handle wrapped by database.Txn
type Txn interface {
	Commit() error
	Rollback() error
}
