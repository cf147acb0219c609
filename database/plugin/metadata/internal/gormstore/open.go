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

package gormstore

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// PoolConfig sizes the connection pool of an opened store. Zero values keep
// the database/sql defaults.
type PoolConfig struct {
	// Engine names the backend in logs and the db_name metrics label
	Engine          string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// PrepareStmt caches prepared statements per connection
	PrepareStmt bool
}

// Open connects with dialector, applies the pool settings and creates the
// store. A non-nil registry receives the pool statistics until Close.
func Open(
	dialector gorm.Dialector,
	pool PoolConfig,
	logger *slog.Logger,
	registry prometheus.Registerer,
) (*Store, error) {
	db, err := gorm.Open(
		dialector,
		&gorm.Config{
			Logger:                 gormlogger.Discard,
			SkipDefaultTransaction: true,
			PrepareStmt:            pool.PrepareStmt,
		},
	)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	store, err := New(db, logger)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	if registry != nil {
		if err := store.registerPoolMetrics(sqlDB, pool.Engine, registry); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}
	return store, nil
}

func (s *Store) registerPoolMetrics(
	sqlDB *sql.DB,
	engine string,
	registry prometheus.Registerer,
) error {
	collector := collectors.NewDBStatsCollector(sqlDB, engine)
	if err := registry.Register(collector); err != nil {
		var alreadyErr prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyErr) {
			// A previous store of this engine still owns the metrics
			return nil
		}
		return fmt.Errorf("register %s pool metrics: %w", engine, err)
	}
	s.registry = registry
	s.collector = collector
	return nil
}

// Close unregisters the pool metrics and closes the connection pool
func (s *Store) Close() error {
	if s.registry != nil {
		s.registry.Unregister(s.collector)
		s.registry = nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	return sqlDB.Close()
}
