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
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/ballot/database/plugin"
	"github.com/prometheus/client_golang/prometheus"
)

// Defaults sized for ledger account state rather than bulk data
const (
	DefaultDataDir        = ".ballot"
	DefaultBlockCacheSize = 67108864 // 64MB
	DefaultIndexCacheSize = 33554432 // 32MB
	DefaultGcInterval     = 5 * time.Minute
)

var (
	cmdlineOptions struct {
		dataDir           string
		blockCacheSize    uint64
		indexCacheSize    uint64
		gcEnabled         bool
		gcIntervalSeconds uint64
		syncWrites        bool
	}
	cmdlineOptionsMutex sync.RWMutex
)

// initCmdlineOptions sets default values for cmdlineOptions
func initCmdlineOptions() {
	cmdlineOptionsMutex.Lock()
	defer cmdlineOptionsMutex.Unlock()
	cmdlineOptions.dataDir = DefaultDataDir
	cmdlineOptions.blockCacheSize = DefaultBlockCacheSize
	cmdlineOptions.indexCacheSize = DefaultIndexCacheSize
	cmdlineOptions.gcEnabled = true
	cmdlineOptions.gcIntervalSeconds = uint64(DefaultGcInterval / time.Second)
	cmdlineOptions.syncWrites = true
}

// Register plugin
func init() {
	initCmdlineOptions()
	plugin.Register(
		plugin.PluginEntry{
			Type:               plugin.PluginTypeBlob,
			Name:               "badger",
			Description:        "BadgerDB local key-value store",
			NewFromOptionsFunc: NewFromCmdlineOptions,
			Options: []plugin.PluginOption{
				{
					Name:         "data-dir",
					Type:         plugin.PluginOptionTypeString,
					Description:  "Data directory for badger storage (empty for in-memory)",
					DefaultValue: DefaultDataDir,
					Dest:         &(cmdlineOptions.dataDir),
				},
				{
					Name:         "block-cache-size",
					Type:         plugin.PluginOptionTypeUint,
					Description:  "Badger block cache size",
					DefaultValue: uint64(DefaultBlockCacheSize),
					Dest:         &(cmdlineOptions.blockCacheSize),
				},
				{
					Name:         "index-cache-size",
					Type:         plugin.PluginOptionTypeUint,
					Description:  "Badger index cache size",
					DefaultValue: uint64(DefaultIndexCacheSize),
					Dest:         &(cmdlineOptions.indexCacheSize),
				},
				{
					Name:         "gc",
					Type:         plugin.PluginOptionTypeBool,
					Description:  "Enable value log garbage collection",
					DefaultValue: true,
					Dest:         &(cmdlineOptions.gcEnabled),
				},
				{
					Name:         "gc-interval",
					Type:         plugin.PluginOptionTypeUint,
					Description:  "Seconds between value log garbage collection runs",
					DefaultValue: uint64(DefaultGcInterval / time.Second),
					Dest:         &(cmdlineOptions.gcIntervalSeconds),
				},
				{
					Name:         "sync-writes",
					Type:         plugin.PluginOptionTypeBool,
					Description:  "Sync every ledger commit to disk before acknowledging it",
					DefaultValue: true,
					Dest:         &(cmdlineOptions.syncWrites),
				},
			},
		},
	)
}

func NewFromCmdlineOptions() plugin.Plugin {
	cmdlineOptionsMutex.RLock()
	opts := []BlobStoreBadgerOptionFunc{
		WithDataDir(cmdlineOptions.dataDir),
		WithBlockCacheSize(cmdlineOptions.blockCacheSize),
		WithIndexCacheSize(cmdlineOptions.indexCacheSize),
		WithGc(cmdlineOptions.gcEnabled),
		WithGcInterval(
			time.Duration(cmdlineOptions.gcIntervalSeconds) * time.Second, // #nosec G115
		),
		WithSyncWrites(cmdlineOptions.syncWrites),
	}
	cmdlineOptionsMutex.RUnlock()
	return New(opts...)
}

type BlobStoreBadgerOptionFunc func(*BlobStoreBadger)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) BlobStoreBadgerOptionFunc {
	return func(b *BlobStoreBadger) {
		b.logger = logger
	}
}

// WithPromRegistry specifies the prometheus registry to use for metrics
func WithPromRegistry(registry prometheus.Registerer) BlobStoreBadgerOptionFunc {
	return func(b *BlobStoreBadger) {
		b.promRegistry = registry
	}
}

// WithDataDir specifies the data directory to use for storage. An empty
// value selects an in-memory store.
func WithDataDir(dataDir string) BlobStoreBadgerOptionFunc {
	return func(b *BlobStoreBadger) {
		b.dataDir = dataDir
	}
}

// WithBlockCacheSize specifies the block cache size in bytes
func WithBlockCacheSize(size uint64) BlobStoreBadgerOptionFunc {
	return func(b *BlobStoreBadger) {
		b.blockCacheSize = size
	}
}

// WithIndexCacheSize specifies the index cache size in bytes
func WithIndexCacheSize(size uint64) BlobStoreBadgerOptionFunc {
	return func(b *BlobStoreBadger) {
		b.indexCacheSize = size
	}
}

// WithGc specifies whether value log garbage collection is enabled
func WithGc(enabled bool) BlobStoreBadgerOptionFunc {
	return func(b *BlobStoreBadger) {
		b.gcEnabled = enabled
	}
}

// WithGcInterval specifies how often value log garbage collection runs. Zero
// keeps DefaultGcInterval.
func WithGcInterval(interval time.Duration) BlobStoreBadgerOptionFunc {
	return func(b *BlobStoreBadger) {
		if interval > 0 {
			b.gcInterval = interval
		}
	}
}

// WithSyncWrites specifies whether commits are synced to disk before they
// return. In-memory stores ignore it.
func WithSyncWrites(enabled bool) BlobStoreBadgerOptionFunc {
	return func(b *BlobStoreBadger) {
		b.syncWrites = enabled
	}
}
