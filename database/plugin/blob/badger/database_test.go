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

package badger_test

import (
	"testing"
	"time"

	"github.com/blinklabs-io/ballot/database/plugin"
	"github.com/blinklabs-io/ballot/database/plugin/blob/badger"
	"github.com/blinklabs-io/ballot/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(
	t *testing.T,
	opts ...badger.BlobStoreBadgerOptionFunc,
) *badger.BlobStoreBadger {
	t.Helper()
	store, err := badger.NewStarted(opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close() //nolint:errcheck
	})
	return store
}

func TestGetSetDelete(t *testing.T) {
	store := setupTestStore(t)

	txn := store.NewTransaction(true)
	_, err := store.Get(txn, []byte("missing"))
	require.ErrorIs(t, err, types.ErrBlobKeyNotFound)
	require.NoError(t, store.Set(txn, []byte("key"), []byte("value")))
	require.NoError(t, txn.Commit())

	// Using a finished transaction fails
	require.ErrorIs(t, store.Set(txn, []byte("key"), []byte("x")), types.ErrTxnFinished)

	txn = store.NewTransaction(false)
	val, err := store.Get(txn, []byte("key"))
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), val)
	require.NoError(t, txn.Rollback())

	txn = store.NewTransaction(true)
	require.NoError(t, store.Delete(txn, []byte("key")))
	require.NoError(t, txn.Commit())

	txn = store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	_, err = store.Get(txn, []byte("key"))
	require.ErrorIs(t, err, types.ErrBlobKeyNotFound)
}

func TestNilAndForeignTxn(t *testing.T) {
	store := setupTestStore(t)
	other := setupTestStore(t)

	_, err := store.Get(nil, []byte("key"))
	require.ErrorIs(t, err, types.ErrNilTxn)

	txn := other.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	_, err = store.Get(txn, []byte("key"))
	require.Error(t, err)

	iter := store.NewIterator(nil, types.BlobIteratorOptions{})
	assert.False(t, iter.Valid())
	require.ErrorIs(t, iter.Err(), types.ErrNilTxn)
}

func TestConflictDetection(t *testing.T) {
	registry := prometheus.NewRegistry()
	store := setupTestStore(t, badger.WithPromRegistry(registry))

	// Two writers read the same key, then both write it
	txn1 := store.NewTransaction(true)
	txn2 := store.NewTransaction(true)
	_, err := store.Get(txn1, []byte("counter"))
	require.ErrorIs(t, err, types.ErrBlobKeyNotFound)
	_, err = store.Get(txn2, []byte("counter"))
	require.ErrorIs(t, err, types.ErrBlobKeyNotFound)
	require.NoError(t, store.Set(txn1, []byte("counter"), []byte{1}))
	require.NoError(t, store.Set(txn2, []byte("counter"), []byte{2}))

	require.NoError(t, txn1.Commit())
	err = txn2.Commit()
	require.ErrorIs(t, err, types.ErrTxnConflict)

	// The losing write left nothing behind
	txn := store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	val, err := store.Get(txn, []byte("counter"))
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, val)

	assert.InDelta(t, 1.0, counterValue(t, registry, "database_blob_conflicts_total"), 0)
	assert.InDelta(t, 1.0, counterValue(t, registry, "database_blob_commits_total"), 0)
}

func counterValue(t *testing.T, registry *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := registry.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestDisjointWritersDoNotConflict(t *testing.T) {
	store := setupTestStore(t)
	txn1 := store.NewTransaction(true)
	txn2 := store.NewTransaction(true)
	_, _ = store.Get(txn1, []byte("a"))
	_, _ = store.Get(txn2, []byte("b"))
	require.NoError(t, store.Set(txn1, []byte("a"), []byte{1}))
	require.NoError(t, store.Set(txn2, []byte("b"), []byte{2}))
	require.NoError(t, txn1.Commit())
	require.NoError(t, txn2.Commit())
}

func TestIteratorPrefix(t *testing.T) {
	store := setupTestStore(t)
	txn := store.NewTransaction(true)
	for _, key := range []string{"i3", "i1", "x1", "i2"} {
		require.NoError(t, store.Set(txn, []byte(key), []byte(key)))
	}
	require.NoError(t, txn.Commit())

	txn = store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	prefix := []byte("i")
	iter := store.NewIterator(txn, types.BlobIteratorOptions{Prefix: prefix})
	defer iter.Close()
	var keys []string
	for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
		item := iter.Item()
		val, err := item.ValueCopy(nil)
		require.NoError(t, err)
		assert.Equal(t, item.Key(), val)
		keys = append(keys, string(item.Key()))
	}
	require.NoError(t, iter.Err())
	assert.Equal(t, []string{"i1", "i2", "i3"}, keys)
}

func TestPersistentDataDir(t *testing.T) {
	dataDir := t.TempDir()
	store, err := badger.NewStarted(
		badger.WithDataDir(dataDir),
		badger.WithGc(false),
	)
	require.NoError(t, err)
	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("key"), []byte("value")))
	require.NoError(t, txn.Commit())
	require.NoError(t, store.Close())

	store = setupTestStore(t, badger.WithDataDir(dataDir), badger.WithGc(false))
	assert.Equal(t, dataDir, store.DataDir())
	txn = store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	val, err := store.Get(txn, []byte("key"))
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), val)
}

func TestUnsyncedWritesWithGcInterval(t *testing.T) {
	dataDir := t.TempDir()
	store := setupTestStore(
		t,
		badger.WithDataDir(dataDir),
		badger.WithSyncWrites(false),
		badger.WithGcInterval(50*time.Millisecond),
	)
	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("height"), []byte{0x01}))
	require.NoError(t, txn.Commit())
	// Let at least one GC pass run against the live store
	time.Sleep(120 * time.Millisecond)
	txn = store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	val, err := store.Get(txn, []byte("height"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, val)
}

func TestRegisteredOptions(t *testing.T) {
	var names []string
	for _, entry := range plugin.GetPlugins(plugin.PluginTypeBlob) {
		if entry.Name != "badger" {
			continue
		}
		for _, opt := range entry.Options {
			names = append(names, opt.Name)
		}
	}
	assert.Subset(
		t,
		names,
		[]string{"data-dir", "gc", "gc-interval", "sync-writes"},
	)
}
