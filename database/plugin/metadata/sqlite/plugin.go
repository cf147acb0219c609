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

package sqlite

import (
	"log/slog"
	"sync"

	"github.com/blinklabs-io/ballot/database/plugin"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultDataDir     = ".ballot"
	DefaultCacheSizeMB = 50
)

var (
	cmdlineOptions struct {
		dataDir     string
		cacheSizeMB uint64
	}
	cmdlineOptionsMutex sync.RWMutex
)

// initCmdlineOptions sets default values for cmdlineOptions
func initCmdlineOptions() {
	cmdlineOptionsMutex.Lock()
	defer cmdlineOptionsMutex.Unlock()
	cmdlineOptions.dataDir = DefaultDataDir
	cmdlineOptions.cacheSizeMB = DefaultCacheSizeMB
}

// Register plugin
func init() {
	initCmdlineOptions()
	plugin.Register(
		plugin.PluginEntry{
			Type:               plugin.PluginTypeMetadata,
			Name:               "sqlite",
			Description:        "SQLite relational database",
			NewFromOptionsFunc: NewFromCmdlineOptions,
			Options: []plugin.PluginOption{
				{
					Name:         "data-dir",
					Type:         plugin.PluginOptionTypeString,
					Description:  "Data directory for sqlite storage (empty for in-memory)",
					DefaultValue: DefaultDataDir,
					Dest:         &(cmdlineOptions.dataDir),
				},
				{
					Name:         "cache-size",
					Type:         plugin.PluginOptionTypeUint,
					Description:  "Page cache size in MB per connection",
					DefaultValue: uint64(DefaultCacheSizeMB),
					Dest:         &(cmdlineOptions.cacheSizeMB),
				},
			},
		},
	)
}

func NewFromCmdlineOptions() plugin.Plugin {
	cmdlineOptionsMutex.RLock()
	dataDir := cmdlineOptions.dataDir
	cacheSizeMB := cmdlineOptions.cacheSizeMB
	cmdlineOptionsMutex.RUnlock()
	return New(
		WithDataDir(dataDir),
		WithCacheSizeMB(cacheSizeMB),
	)
}

type SqliteOptionFunc func(*MetadataStoreSqlite)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) SqliteOptionFunc {
	return func(m *MetadataStoreSqlite) {
		m.logger = logger
	}
}

// WithPromRegistry specifies the registry for connection pool metrics
func WithPromRegistry(registry prometheus.Registerer) SqliteOptionFunc {
	return func(m *MetadataStoreSqlite) {
		m.promRegistry = registry
	}
}

// WithDataDir specifies the data directory to use for storage. An empty
// value selects an in-memory database.
func WithDataDir(dataDir string) SqliteOptionFunc {
	return func(m *MetadataStoreSqlite) {
		m.dataDir = dataDir
	}
}

// WithCacheSizeMB sets the page cache size of on-disk databases. Zero keeps
// the SQLite default.
func WithCacheSizeMB(sizeMB uint64) SqliteOptionFunc {
	return func(m *MetadataStoreSqlite) {
		m.cacheSizeMB = sizeMB
	}
}
