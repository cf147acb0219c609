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

package mysql

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/blinklabs-io/ballot/database/plugin/metadata/internal/gormstore"
	"github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// mysqlErrUnknownDatabase is the server error for a missing database
const mysqlErrUnknownDatabase = 1049

// MetadataStoreMysql stores the query index in MySQL
type MetadataStoreMysql struct {
	*gormstore.Store
	promRegistry prometheus.Registerer
	logger       *slog.Logger
	config       gormstore.ServerConfig
}

// New creates a MySQL metadata store. Unset connection settings come from
// DefaultConfig. The connection is opened by Start().
func New(cfg gormstore.ServerConfig) *MetadataStoreMysql {
	return &MetadataStoreMysql{
		config: cfg.WithDefaults(DefaultConfig),
	}
}

// driverConfig returns the driver config parsed from the DSN, or built from
// the individual connection settings when no DSN is set
func (d *MetadataStoreMysql) driverConfig() (*mysql.Config, error) {
	if dsn := strings.TrimSpace(d.config.DSN); dsn != "" {
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		return cfg, nil
	}
	cfg := mysql.NewConfig()
	cfg.User = d.config.User
	cfg.Passwd = d.config.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(
		d.config.Host,
		strconv.FormatUint(d.config.Port, 10),
	)
	cfg.DBName = d.config.Database
	cfg.ParseTime = true
	if d.config.TimeZone != "" {
		loc, err := time.LoadLocation(d.config.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("load time zone %s: %w", d.config.TimeZone, err)
		}
		cfg.Loc = loc
	}
	if d.config.SSLMode != "" {
		cfg.TLSConfig = d.config.SSLMode
	}
	return cfg, nil
}

func (d *MetadataStoreMysql) open(cfg *mysql.Config) (*gormstore.Store, error) {
	return gormstore.Open(
		gormmysql.Open(cfg.FormatDSN()),
		d.config.Pool("mysql"),
		d.logger,
		d.promRegistry,
	)
}

// Start implements the plugin.Plugin interface. A missing database is
// created on first start.
func (d *MetadataStoreMysql) Start() error {
	if d.Store != nil {
		return nil
	}
	if d.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	cfg, err := d.driverConfig()
	if err != nil {
		return err
	}
	store, err := d.open(cfg)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if !errors.As(err, &mysqlErr) ||
			mysqlErr.Number != mysqlErrUnknownDatabase {
			return err
		}
		if err := d.createDatabase(cfg); err != nil {
			return err
		}
		if store, err = d.open(cfg); err != nil {
			return err
		}
	}
	d.logger.Info(
		"connected to mysql metadata store",
		"component", "database",
		"addr", cfg.Addr,
		"database", cfg.DBName,
	)
	d.Store = store
	return nil
}

// createDatabase creates the configured database through a connection
// without a default database
func (d *MetadataStoreMysql) createDatabase(cfg *mysql.Config) error {
	if cfg.DBName == "" {
		return errors.New("no mysql database name configured")
	}
	adminCfg := cfg.Clone()
	adminCfg.DBName = ""
	admin, err := gorm.Open(
		gormmysql.Open(adminCfg.FormatDSN()),
		&gorm.Config{Logger: gormlogger.Discard},
	)
	if err != nil {
		return err
	}
	sqlAdmin, err := admin.DB()
	if err != nil {
		return err
	}
	defer sqlAdmin.Close()
	d.logger.Info(
		"creating mysql database",
		"component", "database",
		"database", cfg.DBName,
	)
	dbName := strings.ReplaceAll(cfg.DBName, "`", "``")
	return admin.Exec("CREATE DATABASE IF NOT EXISTS `" + dbName + "`").Error
}

// SetLogger implements the plugin.Instrumentable interface
func (d *MetadataStoreMysql) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

// SetPromRegistry implements the plugin.Instrumentable interface
func (d *MetadataStoreMysql) SetPromRegistry(registry prometheus.Registerer) {
	d.promRegistry = registry
}

// Stop implements the plugin.Plugin interface
func (d *MetadataStoreMysql) Stop() error {
	return d.Close()
}

// Close closes the database handle. Closing a store that was never started
// is a no-op.
func (d *MetadataStoreMysql) Close() error {
	if d.Store == nil {
		return nil
	}
	return d.Store.Close()
}
