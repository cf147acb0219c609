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

package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	DefaultRateLimit       = 20
	DefaultRateLimitBurst  = 40
	DefaultRateLimitIdle   = 5 * time.Minute
	rateLimitFallbackDelay = time.Minute
)

// RateLimiter limits requests per client IP
type RateLimiter struct {
	mu          sync.Mutex
	limiters    map[string]*rateLimiterEntry
	clock       clockwork.Clock
	rate        rate.Limit
	burst       int
	idleTimeout time.Duration
}

type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter allowing r requests per second with
// the given burst for each client. Clients idle for idleTimeout are
// forgotten by Evict.
func NewRateLimiter(
	r rate.Limit,
	burst int,
	idleTimeout time.Duration,
	clock clockwork.Clock,
) *RateLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RateLimiter{
		limiters:    make(map[string]*rateLimiterEntry),
		clock:       clock,
		rate:        r,
		burst:       burst,
		idleTimeout: idleTimeout,
	}
}

// AllowWithRetry reports whether a request from ip is allowed, and if not
// how long until it would be
func (rl *RateLimiter) AllowWithRetry(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.clock.Now()
	entry, ok := rl.limiters[ip]
	if !ok {
		entry = &rateLimiterEntry{
			limiter: rate.NewLimiter(rl.rate, rl.burst),
		}
		rl.limiters[ip] = entry
	}
	entry.lastSeen = now
	reservation := entry.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, rateLimitFallbackDelay
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Evict forgets clients idle longer than the idle timeout and returns how
// many were removed
func (rl *RateLimiter) Evict() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.clock.Now().Add(-rl.idleTimeout)
	var count int
	for ip, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, ip)
			count++
		}
	}
	return count
}

// Len returns the number of tracked clients
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// run evicts idle clients until ctx is done
func (rl *RateLimiter) run(ctx context.Context) {
	ticker := rl.clock.NewTicker(rl.idleTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			rl.Evict()
		}
	}
}

// rateLimitMiddleware rejects requests over the client's rate
func rateLimitMiddleware(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, retryAfter := limiter.AllowWithRetry(clientIP(r))
			if !allowed {
				retrySeconds := max(int(retryAfter.Seconds()), 1)
				w.Header().Set("Retry-After", strconv.Itoa(retrySeconds))
				writeError(
					w,
					http.StatusTooManyRequests,
					"Too Many Requests",
					"Too many requests. Please slow down.",
				)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the request's client address without the port.
// middleware.RealIP has already applied any proxy headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
