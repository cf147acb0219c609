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
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blinklabs-io/ballot/database/plugin/metadata/internal/gormstore"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// MetadataStoreSqlite is a SQLite-based implementation of the metadata
// store. Data is kept in memory when no data directory is configured.
type MetadataStoreSqlite struct {
	*gormstore.Store
	promRegistry prometheus.Registerer
	logger       *slog.Logger
	timerVacuum  *time.Timer
	timerMutex   sync.Mutex
	dataDir      string
	cacheSizeMB  uint64
	closed       bool
	vacuumWG     sync.WaitGroup
}

// New creates a SQLite metadata store. The database is opened by Start().
func New(opts ...SqliteOptionFunc) *MetadataStoreSqlite {
	db := &MetadataStoreSqlite{}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// NewStarted is New followed by Start
func NewStarted(opts ...SqliteOptionFunc) (*MetadataStoreSqlite, error) {
	db := New(opts...)
	if err := db.Start(); err != nil {
		return nil, err
	}
	return db, nil
}

// dsn returns the connection string and pool settings for the configured
// storage
func (d *MetadataStoreSqlite) dsn() (string, gormstore.PoolConfig, error) {
	pool := gormstore.PoolConfig{Engine: "sqlite"}
	if d.dataDir == "" {
		// Each store gets its own named in-memory database. Shared-cache
		// connections lock whole tables, so the pool holds one connection.
		pool.MaxOpenConns = 1
		return fmt.Sprintf(
			"file:%s?mode=memory&cache=shared",
			uuid.NewString(),
		), pool, nil
	}
	// Make sure that we can read data dir, and create if it doesn't exist
	if _, err := os.Stat(d.dataDir); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return "", pool, fmt.Errorf("failed to read data dir: %w", err)
		}
		if err := os.MkdirAll(d.dataDir, fs.ModePerm); err != nil {
			return "", pool, fmt.Errorf("failed to create data dir: %w", err)
		}
	}
	// WAL journal mode and wait on locks held by readers
	pragmas := []string{
		"_pragma=journal_mode(WAL)",
		"_pragma=busy_timeout(5000)",
	}
	if d.cacheSizeMB > 0 {
		// Negative cache_size is in KiB
		pragmas = append(
			pragmas,
			fmt.Sprintf("_pragma=cache_size(-%d)", d.cacheSizeMB*1000),
		)
	}
	return fmt.Sprintf(
		"file:%s?%s",
		filepath.Join(d.dataDir, "metadata.sqlite"),
		strings.Join(pragmas, "&"),
	), pool, nil
}

// Start implements the plugin.Plugin interface
func (d *MetadataStoreSqlite) Start() error {
	if d.Store != nil {
		return nil
	}
	if d.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	dsn, pool, err := d.dsn()
	if err != nil {
		return err
	}
	store, err := gormstore.Open(
		sqlite.Open(dsn),
		pool,
		d.logger,
		d.promRegistry,
	)
	if err != nil {
		return err
	}
	d.Store = store
	d.scheduleDailyVacuum()
	return nil
}

// SetLogger implements the plugin.Instrumentable interface
func (d *MetadataStoreSqlite) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

// SetPromRegistry implements the plugin.Instrumentable interface
func (d *MetadataStoreSqlite) SetPromRegistry(registry prometheus.Registerer) {
	d.promRegistry = registry
}

// Stop implements the plugin.Plugin interface
func (d *MetadataStoreSqlite) Stop() error {
	return d.Close()
}

// DataDir returns the configured data directory, empty for in-memory
func (d *MetadataStoreSqlite) DataDir() string {
	return d.dataDir
}

func (d *MetadataStoreSqlite) runVacuum() error {
	d.timerMutex.Lock()
	if d.dataDir == "" || d.closed {
		d.timerMutex.Unlock()
		return nil
	}
	// Track this vacuum operation while we know the store is open
	d.vacuumWG.Add(1)
	d.timerMutex.Unlock()
	defer d.vacuumWG.Done()

	if result := d.DB().Exec("VACUUM"); result.Error != nil {
		return result.Error
	}
	return nil
}

// scheduleDailyVacuum schedules a daily vacuum operation
func (d *MetadataStoreSqlite) scheduleDailyVacuum() {
	d.timerMutex.Lock()
	defer d.timerMutex.Unlock()
	if d.closed || d.dataDir == "" {
		return
	}
	if d.timerVacuum != nil {
		d.timerVacuum.Stop()
	}
	f := func() {
		d.logger.Debug(
			"running vacuum on sqlite metadata database",
			"component", "database",
		)
		// schedule next run
		defer d.scheduleDailyVacuum()
		if err := d.runVacuum(); err != nil {
			d.logger.Error(
				"failed to free unused space in metadata store",
				"component", "database",
				"error", err,
			)
		}
	}
	d.timerVacuum = time.AfterFunc(24*time.Hour, f)
}

// Close shuts down the database connection and stops background processes
func (d *MetadataStoreSqlite) Close() error {
	d.timerMutex.Lock()
	d.closed = true
	if d.timerVacuum != nil {
		d.timerVacuum.Stop()
		d.timerVacuum = nil
	}
	d.timerMutex.Unlock()

	// Wait for any in-flight vacuum operations to complete
	d.vacuumWG.Wait()

	if d.Store == nil {
		return nil
	}
	return d.Store.Close()
}
