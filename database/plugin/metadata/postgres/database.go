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

package postgres

import (
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/blinklabs-io/ballot/database/plugin/metadata/internal/gormstore"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/postgres"
)

// MetadataStorePostgres stores the query index in Postgres
type MetadataStorePostgres struct {
	*gormstore.Store
	promRegistry prometheus.Registerer
	logger       *slog.Logger
	config       gormstore.ServerConfig
}

// New creates a Postgres metadata store. Unset connection settings come from
// DefaultConfig. The connection is opened by Start().
func New(cfg gormstore.ServerConfig) *MetadataStorePostgres {
	return &MetadataStorePostgres{
		config: cfg.WithDefaults(DefaultConfig),
	}
}

// dsn returns the configured DSN, or one assembled from the individual
// connection settings
func (d *MetadataStorePostgres) dsn() string {
	if dsn := strings.TrimSpace(d.config.DSN); dsn != "" {
		return dsn
	}
	parts := []string{
		"host=" + d.config.Host,
		"port=" + strconv.FormatUint(d.config.Port, 10),
		"user=" + d.config.User,
		"dbname=" + d.config.Database,
		"sslmode=" + d.config.SSLMode,
	}
	if d.config.Password != "" {
		parts = append(parts, "password="+quoteDSNValue(d.config.Password))
	}
	if d.config.TimeZone != "" {
		parts = append(parts, "TimeZone="+d.config.TimeZone)
	}
	return strings.Join(parts, " ")
}

// quoteDSNValue quotes a keyword/value connection string value that
// contains spaces or quotes
func quoteDSNValue(value string) string {
	if !strings.ContainsAny(value, ` '\`) {
		return value
	}
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `'`, `\'`)
	return "'" + value + "'"
}

// Start implements the plugin.Plugin interface
func (d *MetadataStorePostgres) Start() error {
	if d.Store != nil {
		return nil
	}
	if d.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	store, err := gormstore.Open(
		postgres.Open(d.dsn()),
		d.config.Pool("postgres"),
		d.logger,
		d.promRegistry,
	)
	if err != nil {
		return err
	}
	d.logger.Info(
		"connected to postgres metadata store",
		"component", "database",
		"host", d.config.Host,
		"port", d.config.Port,
		"database", d.config.Database,
	)
	d.Store = store
	return nil
}

// SetLogger implements the plugin.Instrumentable interface
func (d *MetadataStorePostgres) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

// SetPromRegistry implements the plugin.Instrumentable interface
func (d *MetadataStorePostgres) SetPromRegistry(registry prometheus.Registerer) {
	d.promRegistry = registry
}

// Stop implements the plugin.Plugin interface
func (d *MetadataStorePostgres) Stop() error {
	return d.Close()
}

// Close closes the database handle. Closing a store that was never started
// is a no-op.
func (d *MetadataStorePostgres) Close() error {
	if d.Store == nil {
		return nil
	}
	return d.Store.Close()
}
