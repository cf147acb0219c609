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

// Package api serves the ledger over REST. Mutating requests carry an
// Ed25519 signature by the acting identity over a canonical payload.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/blinklabs-io/ballot/event"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

const DefaultListenAddress = ":8080"

// APIConfig holds the API server configuration
type APIConfig struct {
	PromRegistry  prometheus.Registerer
	Clock         clockwork.Clock
	ListenAddress string
	// RateLimit is requests per second per client IP. 0 uses the default
	// and a negative value disables rate limiting.
	RateLimit      float64
	RateLimitBurst int
}

// API is the REST API server.
type API struct {
	config APIConfig
	logger *slog.Logger
	// maxBodySize grows with the ledger's voter cap
	maxBodySize int64
	ledger      Ledger
	index       Index
	eventBus    *event.EventBus
	limiter     *RateLimiter
	metrics     *httpMetrics
	handler     http.Handler
	httpServer  *http.Server
	cancel      context.CancelFunc
	// streamsDone is closed on shutdown to end event streams
	streamsDone chan struct{}
	mu          sync.Mutex
}

// New creates a new API server instance. The index and event bus may be
// nil, which disables the endpoints that need them.
func New(
	cfg APIConfig,
	ledger Ledger,
	index Index,
	eventBus *event.EventBus,
	logger *slog.Logger,
) *API {
	if logger == nil {
		logger = slog.New(
			slog.NewJSONHandler(io.Discard, nil),
		)
	}
	logger = logger.With("component", "api")
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = DefaultRateLimitBurst
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	a := &API{
		config:      cfg,
		logger:      logger,
		ledger:      ledger,
		index:       index,
		eventBus:    eventBus,
		maxBodySize: requestBodyLimit(ledger.MaxVoters()),
	}
	if cfg.RateLimit > 0 {
		a.limiter = NewRateLimiter(
			rate.Limit(cfg.RateLimit),
			cfg.RateLimitBurst,
			DefaultRateLimitIdle,
			cfg.Clock,
		)
	}
	if cfg.PromRegistry != nil {
		a.metrics = newHTTPMetrics(cfg.PromRegistry)
	}
	a.handler = a.router()
	return a
}

func (a *API) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if a.metrics != nil {
		r.Use(a.metrics.middleware)
	}
	r.Get("/", a.handleRoot)
	r.Get("/health", a.handleHealth)
	r.Route("/api/v0", func(r chi.Router) {
		// The event stream is long-lived and not rate limited
		r.Get("/events", a.handleEvents)
		r.Group(func(r chi.Router) {
			if a.limiter != nil {
				r.Use(rateLimitMiddleware(a.limiter))
			}
			r.Route("/proposals", func(r chi.Router) {
				r.Get("/", a.handleListProposals)
				r.Post("/", a.handleCreateProposal)
				r.Route("/{address}", func(r chi.Router) {
					r.Get("/", a.handleGetProposal)
					r.Get("/votes", a.handleProposalVotes)
					r.Post("/votes", a.handleVote)
					r.Post("/finalize", a.handleFinalize)
					r.Get("/payouts", a.handlePayouts)
				})
			})
			r.Route("/accounts/{address}", func(r chi.Router) {
				r.Get("/", a.handleBalance)
				r.Get("/votes", a.handleAccountVotes)
				r.Post("/airdrop", a.handleAirdrop)
			})
		})
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(
			w,
			http.StatusNotFound,
			http.StatusText(http.StatusNotFound),
			"The requested component has not been found.",
		)
	})
	return r
}

// Handler returns the HTTP handler serving the API
func (a *API) Handler() http.Handler {
	return a.handler
}

// Start starts the HTTP server in a background goroutine.
func (a *API) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.httpServer != nil {
		a.mu.Unlock()
		return errors.New("server already started")
	}
	server := &http.Server{
		Addr:              a.config.ListenAddress,
		Handler:           a.handler,
		ReadHeaderTimeout: 60 * time.Second,
	}
	streamsDone := make(chan struct{})
	server.RegisterOnShutdown(func() {
		close(streamsDone)
	})
	a.httpServer = server
	a.streamsDone = streamsDone
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.mu.Unlock()

	// Start the server with deterministic error detection
	if err := a.startServer(server); err != nil {
		cancel()
		a.mu.Lock()
		a.httpServer = nil
		a.cancel = nil
		a.mu.Unlock()
		return err
	}
	if a.limiter != nil {
		go a.limiter.run(runCtx)
	}

	a.logger.Info(
		"API listener started on " + a.config.ListenAddress,
	)

	// Monitor context for cancellation
	go func() {
		<-runCtx.Done()
		a.mu.Lock()
		srv := a.httpServer
		a.httpServer = nil
		a.mu.Unlock()

		if srv != nil {
			a.logger.Debug(
				"context cancelled, shutting down API server",
			)
			//nolint:contextcheck
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				30*time.Second,
			)
			defer cancel()
			//nolint:contextcheck
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Error(
					"failed to shutdown API server on context cancellation",
					"error", err,
				)
			}
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (a *API) Stop(ctx context.Context) error {
	a.mu.Lock()
	srv := a.httpServer
	a.httpServer = nil
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()

	if cancel != nil {
		defer cancel()
	}
	if srv != nil {
		a.logger.Debug("shutting down API server")
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown API server: %w", err)
		}
	}
	return nil
}

// startServer binds the listening socket first so port conflicts are
// detected immediately, then serves in a background goroutine.
func (a *API) startServer(server *http.Server) error {
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen for API server: %w", err)
	}
	go func() {
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			a.logger.Error(
				"API server error",
				"error", err,
			)
		}
	}()
	return nil
}
