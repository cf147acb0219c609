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

package badger

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/blinklabs-io/ballot/database/types"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/prometheus/client_golang/prometheus"
)

// badgerTxn wraps a badger transaction and implements types.Txn
type badgerTxn struct {
	store    *BlobStoreBadger
	tx       *badger.Txn
	update   bool
	finished bool
}

func newBadgerTxn(store *BlobStoreBadger, tx *badger.Txn, update bool) *badgerTxn {
	return &badgerTxn{store: store, tx: tx, update: update}
}

// validateTxn validates a types.Txn for this BlobStore and returns the
// underlying *badgerTxn if valid.
func (d *BlobStoreBadger) validateTxn(txn types.Txn) (*badgerTxn, error) {
	if txn == nil {
		return nil, types.ErrNilTxn
	}
	badgerTxn, ok := txn.(*badgerTxn)
	if !ok {
		return nil, types.ErrTxnWrongType
	}
	if badgerTxn.store != d {
		return nil, errors.New("transaction from different store")
	}
	if badgerTxn.finished {
		return nil, types.ErrTxnFinished
	}
	if badgerTxn.tx == nil {
		return nil, types.ErrBlobStoreUnavailable
	}
	return badgerTxn, nil
}

// Commit applies the transaction. A commit that lost a race with another
// writer fails with types.ErrTxnConflict and leaves no changes behind.
func (t *badgerTxn) Commit() error {
	if t.finished {
		return nil
	}
	t.finished = true
	if t.tx == nil {
		return nil
	}
	if err := t.tx.Commit(); err != nil {
		t.tx.Discard()
		if errors.Is(err, badger.ErrConflict) {
			if t.store.metrics != nil {
				t.store.metrics.conflictsTotal.Inc()
			}
			return fmt.Errorf("%w: %w", types.ErrTxnConflict, err)
		}
		return err
	}
	if t.update && t.store.metrics != nil {
		t.store.metrics.commitsTotal.Inc()
	}
	return nil
}

func (t *badgerTxn) Rollback() error {
	if t.finished {
		return nil
	}
	if t.tx != nil {
		t.tx.Discard()
	}
	t.finished = true
	return nil
}

type badgerIterator struct {
	iter *badger.Iterator
}

func (it *badgerIterator) Rewind()            { it.iter.Rewind() }
func (it *badgerIterator) Seek(prefix []byte) { it.iter.Seek(prefix) }
func (it *badgerIterator) Valid() bool        { return it.iter.Valid() }
func (it *badgerIterator) Next()              { it.iter.Next() }
func (it *badgerIterator) Close()             { it.iter.Close() }
func (it *badgerIterator) Err() error         { return nil }

func (it *badgerIterator) ValidForPrefix(p []byte) bool {
	return it.iter.ValidForPrefix(p)
}

func (it *badgerIterator) Item() types.BlobItem {
	return &badgerItem{item: it.iter.Item()}
}

type errorIterator struct {
	err error
}

func (it *errorIterator) Rewind()                      {}
func (it *errorIterator) Seek(prefix []byte)           {}
func (it *errorIterator) Valid() bool                  { return false }
func (it *errorIterator) ValidForPrefix(p []byte) bool { return false }
func (it *errorIterator) Next()                        {}
func (it *errorIterator) Item() types.BlobItem         { return nil }
func (it *errorIterator) Close()                       {}
func (it *errorIterator) Err() error                   { return it.err }

type badgerItem struct {
	item *badger.Item
}

func (i *badgerItem) Key() []byte {
	return i.item.KeyCopy(nil)
}

func (i *badgerItem) ValueCopy(dst []byte) ([]byte, error) {
	return i.item.ValueCopy(dst)
}

// BlobStoreBadger stores all ledger state in badger. Data is not persisted
// when no data directory is configured.
type BlobStoreBadger struct {
	promRegistry   prometheus.Registerer
	db             *badger.DB
	logger         *slog.Logger
	metrics        *blobMetrics
	gcTicker       *time.Ticker
	gcStopCh       chan struct{}
	dataDir        string
	gcWg           sync.WaitGroup
	gcInterval     time.Duration
	blockCacheSize uint64
	indexCacheSize uint64
	gcEnabled      bool
	syncWrites     bool
}

// New creates a new database. The store is opened by Start().
func New(opts ...BlobStoreBadgerOptionFunc) *BlobStoreBadger {
	db := &BlobStoreBadger{
		gcEnabled:      true,
		gcInterval:     DefaultGcInterval,
		blockCacheSize: DefaultBlockCacheSize,
		indexCacheSize: DefaultIndexCacheSize,
		syncWrites:     true,
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// NewStarted is New followed by Start
func NewStarted(opts ...BlobStoreBadgerOptionFunc) (*BlobStoreBadger, error) {
	db := New(opts...)
	if err := db.Start(); err != nil {
		return nil, err
	}
	return db, nil
}

func (d *BlobStoreBadger) init() error {
	if d.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	var badgerOpts badger.Options
	if d.dataDir == "" {
		// No dataDir, use in-memory config
		badgerOpts = badger.DefaultOptions("").
			WithInMemory(true)
		// There is no value log to collect
		d.gcEnabled = false
	} else {
		// Make sure that we can read data dir, and create if it doesn't exist
		if _, err := os.Stat(d.dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(d.dataDir, 0o755); err != nil {
				return fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		blobDir := filepath.Join(d.dataDir, "blob")
		badgerOpts = badger.DefaultOptions(blobDir).
			WithBlockCacheSize(int64(d.blockCacheSize)). //nolint:gosec // blockCacheSize is controlled and reasonable
			WithIndexCacheSize(int64(d.indexCacheSize)). //nolint:gosec // indexCacheSize is controlled and reasonable
			WithCompression(options.Snappy).
			WithSyncWrites(d.syncWrites)
	}
	badgerOpts = badgerOpts.
		WithLogger(NewBadgerLogger(d.logger)).
		// The default INFO logging is a bit verbose
		WithLoggingLevel(badger.WARNING).
		WithDetectConflicts(true)
	blobDb, err := badger.Open(badgerOpts)
	if err != nil {
		return err
	}
	d.db = blobDb
	// Configure metrics
	if d.promRegistry != nil {
		d.registerBlobMetrics()
	}
	// Configure GC
	if d.gcEnabled {
		d.gcTicker = time.NewTicker(d.gcInterval)
		d.gcStopCh = make(chan struct{})
		d.gcWg.Add(1)
		go d.blobGc(d.gcTicker, d.gcStopCh)
	}
	return nil
}

func (d *BlobStoreBadger) blobGc(t *time.Ticker, stop <-chan struct{}) {
	defer d.gcWg.Done()
	for {
		select {
		case <-t.C:
			// Keep collecting while each pass rewrites a file
			for {
				err := d.DB().RunValueLogGC(0.5)
				if err == nil {
					continue
				}
				if !errors.Is(err, badger.ErrNoRewrite) {
					d.logger.Warn(
						fmt.Sprintf("blob DB: GC failure: %s", err),
						"component", "database",
					)
				}
				break
			}
		case <-stop:
			return
		}
	}
}

// Start implements the plugin.Plugin interface
func (d *BlobStoreBadger) Start() error {
	if d.db != nil {
		return nil
	}
	return d.init()
}

// SetLogger implements the plugin.Instrumentable interface
func (d *BlobStoreBadger) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

// SetPromRegistry implements the plugin.Instrumentable interface
func (d *BlobStoreBadger) SetPromRegistry(registry prometheus.Registerer) {
	d.promRegistry = registry
}

// Stop implements the plugin.Plugin interface
func (d *BlobStoreBadger) Stop() error {
	return d.Close()
}

// Close stops background GC and closes the database handle
func (d *BlobStoreBadger) Close() error {
	if d.gcTicker != nil {
		d.gcTicker.Stop()
		if d.gcStopCh != nil {
			close(d.gcStopCh)
			d.gcStopCh = nil
		}
		d.gcWg.Wait()
		d.gcTicker = nil
	}
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// DB returns the database handle
func (d *BlobStoreBadger) DB() *badger.DB {
	return d.db
}

// DataDir returns the configured data directory, empty for in-memory
func (d *BlobStoreBadger) DataDir() string {
	return d.dataDir
}

// NewTransaction creates a new badger transaction. Read-write transactions
// track their reads for conflict detection on commit.
func (d *BlobStoreBadger) NewTransaction(update bool) types.Txn {
	return newBadgerTxn(d, d.DB().NewTransaction(update), update)
}

// Get retrieves a value from badger within a transaction
func (d *BlobStoreBadger) Get(
	txn types.Txn,
	key []byte,
) ([]byte, error) {
	badgerTxn, err := d.validateTxn(txn)
	if err != nil {
		return nil, err
	}
	item, err := badgerTxn.tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, types.ErrBlobKeyNotFound
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

// Set stores a key-value pair in badger within a transaction
func (d *BlobStoreBadger) Set(txn types.Txn, key, val []byte) error {
	badgerTxn, err := d.validateTxn(txn)
	if err != nil {
		return err
	}
	return badgerTxn.tx.Set(key, val)
}

// Delete removes a key from badger within a transaction
func (d *BlobStoreBadger) Delete(txn types.Txn, key []byte) error {
	badgerTxn, err := d.validateTxn(txn)
	if err != nil {
		return err
	}
	return badgerTxn.tx.Delete(key)
}

// NewIterator creates an iterator for badger within a transaction. Items
// must only be accessed while the transaction is still active.
func (d *BlobStoreBadger) NewIterator(
	txn types.Txn,
	opts types.BlobIteratorOptions,
) types.BlobIterator {
	badgerTxn, err := d.validateTxn(txn)
	if err != nil {
		return &errorIterator{err: err}
	}
	iterOpts := badger.DefaultIteratorOptions
	iterOpts.Prefix = opts.Prefix
	iterOpts.Reverse = opts.Reverse
	return &badgerIterator{iter: badgerTxn.tx.NewIterator(iterOpts)}
}
