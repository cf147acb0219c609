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

// Package ballot wires the ledger, query index and REST API into a single
// server process.
package ballot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blinklabs-io/ballot/api"
	"github.com/blinklabs-io/ballot/database"
	"github.com/blinklabs-io/ballot/event"
	"github.com/blinklabs-io/ballot/indexer"
	"github.com/blinklabs-io/ballot/ledger"
)

type Node struct {
	eventBus      *event.EventBus
	db            *database.Database
	ledger        *ledger.Ledger
	indexer       *indexer.Indexer
	api           *api.API
	shutdownFuncs []func(context.Context) error
	config        Config
	done          chan struct{}
	ready         chan struct{}
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Node, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	n := &Node{
		config:   cfg,
		eventBus: event.NewEventBus(cfg.promRegistry, cfg.logger),
		done:     make(chan struct{}),
		ready:    make(chan struct{}),
	}
	return n, nil
}

// Ready is closed once Run has started all components
func (n *Node) Ready() <-chan struct{} {
	return n.ready
}

// Ledger returns the ledger once Run has loaded it
func (n *Node) Ledger() *ledger.Ledger {
	return n.ledger
}

// API returns the API server, or nil when it is disabled or not started
func (n *Node) API() *api.API {
	return n.api
}

// load opens the database and builds the ledger and indexer. It reports
// whether the index must be rebuilt before use.
func (n *Node) load() (bool, error) {
	db, err := database.New(&database.Config{
		DataDir:        n.config.dataDir,
		BlobPlugin:     n.config.blobPlugin,
		MetadataPlugin: n.config.metadataPlugin,
		Logger:         n.config.logger,
		PromRegistry:   n.config.promRegistry,
	})
	needsReindex := false
	if err != nil {
		var heightErr database.IndexHeightError
		if db == nil || !errors.As(err, &heightErr) {
			return false, fmt.Errorf("failed to open database: %w", err)
		}
		n.config.logger.Warn(
			"query index is out of date, rebuilding",
			"error", err,
		)
		needsReindex = true
	}
	n.db = db
	n.shutdownFuncs = append(n.shutdownFuncs, func(context.Context) error {
		return n.db.Close()
	})
	l, err := ledger.New(ledger.LedgerConfig{
		Database:      n.db,
		EventBus:      n.eventBus,
		Logger:        n.config.logger,
		PromRegistry:  n.config.promRegistry,
		ProgramID:     n.config.programID,
		MaxVoters:     n.config.maxVoters,
		MaxTxnRetries: n.config.maxTxnRetries,
		DevMode:       n.config.isDevMode(),
	})
	if err != nil {
		return false, fmt.Errorf("failed to load ledger: %w", err)
	}
	n.ledger = l
	idx, err := indexer.New(indexer.IndexerConfig{
		Database:     n.db,
		Ledger:       n.ledger,
		EventBus:     n.eventBus,
		Logger:       n.config.logger,
		PromRegistry: n.config.promRegistry,
		Clock:        n.config.clock,
	})
	if err != nil {
		return false, fmt.Errorf("failed to load indexer: %w", err)
	}
	n.indexer = idx
	return needsReindex, nil
}

// Run starts all components and blocks until ctx is cancelled or Stop is
// called
func (n *Node) Run(ctx context.Context) error {
	// Configure tracing
	if n.config.tracing {
		if err := n.setupTracing(ctx); err != nil {
			return err
		}
	}
	needsReindex, err := n.load()
	if err != nil {
		return err
	}
	if needsReindex {
		if err := n.indexer.Reindex(); err != nil {
			return fmt.Errorf("failed to rebuild index: %w", err)
		}
	}
	// The index follows ledger events from here on
	if err := n.indexer.Start(); err != nil {
		return fmt.Errorf("failed to start indexer: %w", err)
	}
	if n.config.apiListenAddress != "" {
		n.api = api.New(
			api.APIConfig{
				PromRegistry:   n.config.promRegistry,
				Clock:          n.config.clock,
				ListenAddress:  n.config.apiListenAddress,
				RateLimit:      n.config.rateLimit,
				RateLimitBurst: n.config.rateLimitBurst,
			},
			n.ledger,
			n.db,
			n.eventBus,
			n.config.logger,
		)
		if err := n.api.Start(ctx); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
	}
	n.config.logger.Info(
		"ballot started",
		"program_id", n.ledger.ProgramID().String(),
		"dev_mode", n.config.isDevMode(),
	)
	close(n.ready)

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
	case <-n.done:
	}
	return nil
}

// Reindex rebuilds the query index from the ledger without serving
func (n *Node) Reindex() error {
	defer n.Stop() //nolint:errcheck
	if _, err := n.load(); err != nil {
		return err
	}
	return n.indexer.Reindex()
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	// Create shutdown context with timeout (default 30s if not configured)
	shutdownTimeout := 30 * time.Second
	if n.config.shutdownTimeout > 0 {
		shutdownTimeout = n.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error

	n.config.logger.Debug("starting graceful shutdown")

	// Phase 1: Stop accepting new work
	n.config.logger.Debug("shutdown phase 1: stopping API server")
	if n.api != nil {
		if stopErr := n.api.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("api shutdown: %w", stopErr))
		}
	}

	// Phase 2: Drain pending events into the index
	n.config.logger.Debug("shutdown phase 2: draining events")
	if n.eventBus != nil {
		n.eventBus.Stop()
	}
	if n.indexer != nil {
		n.indexer.Stop()
	}

	// Phase 3: Cleanup resources
	n.config.logger.Debug("shutdown phase 3: cleanup resources")
	// Run in reverse order of registration
	for i := len(n.shutdownFuncs) - 1; i >= 0; i-- {
		if fnErr := n.shutdownFuncs[i](ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	n.shutdownFuncs = nil

	n.config.logger.Debug("graceful shutdown complete")
	close(n.done)
	return err
}
