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

package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	_ "net/http/pprof" // #nosec G108
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/blinklabs-io/ballot"
	"github.com/blinklabs-io/ballot/address"
	"github.com/blinklabs-io/ballot/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// NodeConfig converts the loaded config into node options
func NodeConfig(
	cfg *config.Config,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (ballot.Config, error) {
	programID, err := address.Parse(cfg.ProgramID)
	if err != nil {
		return ballot.Config{}, fmt.Errorf("invalid program ID: %w", err)
	}
	shutdownTimeout, err := cfg.ShutdownTimeoutDuration()
	if err != nil {
		return ballot.Config{}, err
	}
	var apiListenAddress string
	if cfg.ApiPort > 0 {
		apiListenAddress = net.JoinHostPort(
			cfg.BindAddr,
			strconv.FormatUint(uint64(cfg.ApiPort), 10),
		)
	}
	return ballot.NewConfig(
		ballot.WithLogger(logger),
		ballot.WithDatabasePath(cfg.DatabasePath),
		ballot.WithBlobPlugin(cfg.BlobPlugin),
		ballot.WithMetadataPlugin(cfg.MetadataPlugin),
		ballot.WithProgramID(programID),
		ballot.WithRunMode(string(cfg.RunMode)),
		ballot.WithAPIListenAddress(apiListenAddress),
		ballot.WithRateLimit(cfg.RateLimit, cfg.RateLimitBurst),
		ballot.WithMaxVoters(cfg.MaxVoters),
		ballot.WithMaxTxnRetries(cfg.MaxTxnRetries),
		ballot.WithShutdownTimeout(shutdownTimeout),
		ballot.WithPrometheusRegistry(promRegistry),
		ballot.WithTracing(cfg.Tracing),
		ballot.WithTracingStdout(cfg.TracingStdout),
	), nil
}

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	nodeCfg, err := NodeConfig(cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	shutdownTimeout, err := cfg.ShutdownTimeoutDuration()
	if err != nil {
		return err
	}
	n, err := ballot.New(nodeCfg)
	if err != nil {
		return err
	}
	if cfg.RunMode.IsDevMode() {
		logger.Warn(
			"running in dev mode, airdrops are enabled",
			"component", "node",
		)
	}

	// Metrics and debug listener
	http.Handle("/metrics", promhttp.Handler())
	metricsAddr := net.JoinHostPort(
		cfg.BindAddr,
		strconv.FormatUint(uint64(cfg.MetricsPort), 10),
	)
	metricsServer := &http.Server{
		Addr:              metricsAddr,
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	g, ctx := errgroup.WithContext(signalCtx)
	if cfg.MetricsPort > 0 {
		g.Go(func() error {
			logger.Info(
				"serving prometheus metrics on "+metricsAddr,
				"component", "node",
			)
			if err := metricsServer.ListenAndServe(); err != nil &&
				!errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed to start metrics listener: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		return n.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		if signalCtx.Err() != nil {
			logger.Info("signal received, initiating graceful shutdown")
		}
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		//nolint:contextcheck
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
		return nil
	})

	runErr := g.Wait()
	if runErr != nil {
		logger.Error("node error", "error", runErr)
	}
	if stopErr := n.Stop(); stopErr != nil {
		logger.Error("shutdown errors occurred", "error", stopErr)
		return errors.Join(runErr, stopErr)
	}
	if runErr == nil {
		logger.Info("shutdown complete")
	}
	return runErr
}

// Reindex rebuilds the query index from the ledger
func Reindex(cfg *config.Config, logger *slog.Logger) error {
	nodeCfg, err := NodeConfig(cfg, logger, nil)
	if err != nil {
		return err
	}
	n, err := ballot.New(nodeCfg)
	if err != nil {
		return err
	}
	logger.Info("rebuilding query index", "component", "node")
	if err := n.Reindex(); err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}
	logger.Info("query index rebuilt", "component", "node")
	return nil
}
