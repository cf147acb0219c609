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

package ballot

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

// runMode constants for operational mode configuration
const (
	runModeServe = "serve"
	runModeDev   = "dev"
)

type Config struct {
	promRegistry   prometheus.Registerer
	logger         *slog.Logger
	clock          clockwork.Clock
	dataDir        string
	blobPlugin     string
	metadataPlugin string
	programID      solana.PublicKey
	runMode        string
	tracing        bool
	tracingStdout  bool
	// API listen address (empty = disabled)
	apiListenAddress string
	// Per-client API rate limit (0 = use default, negative = disabled)
	rateLimit       float64
	rateLimitBurst  int
	maxVoters       int
	maxTxnRetries   int
	shutdownTimeout time.Duration
}

// isDevMode returns true if running in development mode
func (c *Config) isDevMode() bool {
	return c.runMode == runModeDev
}

func (c *Config) validate() error {
	switch c.runMode {
	case "", runModeServe, runModeDev:
	default:
		return fmt.Errorf("invalid run mode: %q", c.runMode)
	}
	if c.maxVoters < 0 {
		return fmt.Errorf("invalid max voters: %d", c.maxVoters)
	}
	if c.maxTxnRetries < 0 {
		return fmt.Errorf("invalid max txn retries: %d", c.maxTxnRetries)
	}
	if c.tracingStdout && !c.tracing {
		return errors.New("stdout tracing requires tracing to be enabled")
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the node config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new ballot config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithDatabasePath specifies the persistent data directory to use. The default is to store everything in memory
func WithDatabasePath(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithBlobPlugin specifies the blob storage plugin to use.
func WithBlobPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.blobPlugin = plugin
	}
}

// WithMetadataPlugin specifies the metadata storage plugin to use.
func WithMetadataPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataPlugin = plugin
	}
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithClock specifies the clock used by the API rate limiter and the index
// catch-up check. The default is the real clock
func WithClock(clock clockwork.Clock) ConfigOptionFunc {
	return func(c *Config) {
		c.clock = clock
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to. In most cases, prometheus.DefaultRegistry would be
// a good choice to get metrics working
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithProgramID specifies the program ID that proposal and voter record addresses are derived under
func WithProgramID(programID solana.PublicKey) ConfigOptionFunc {
	return func(c *Config) {
		c.programID = programID
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint using OTLP. This can be configured
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. The default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}

// WithRunMode sets the operational mode ("serve" or "dev").
// "dev" mode enables airdrops.
func WithRunMode(mode string) ConfigOptionFunc {
	return func(c *Config) {
		c.runMode = mode
	}
}

// WithAPIListenAddress specifies the listen address for the REST API
// server. An empty string disables the server. The default is empty
// (disabled).
func WithAPIListenAddress(addr string) ConfigOptionFunc {
	return func(c *Config) {
		c.apiListenAddress = addr
	}
}

// WithRateLimit specifies the per-client API request rate and burst.
// Use 0 for the defaults or a negative rate to disable rate limiting.
func WithRateLimit(rate float64, burst int) ConfigOptionFunc {
	return func(c *Config) {
		c.rateLimit = rate
		c.rateLimitBurst = burst
	}
}

// WithMaxVoters specifies the maximum number of voters per proposal. Default is 256
func WithMaxVoters(maxVoters int) ConfigOptionFunc {
	return func(c *Config) {
		c.maxVoters = maxVoters
	}
}

// WithMaxTxnRetries specifies how many times a ledger operation is retried
// after losing a commit race. Default is 16
func WithMaxTxnRetries(retries int) ConfigOptionFunc {
	return func(c *Config) {
		c.maxTxnRetries = retries
	}
}
