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

// Package retry runs operations with exponential backoff
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"time"
)

// Config holds retry configuration
type Config struct {
	// Retryable reports whether an error should be retried. IsTransient is
	// used when nil.
	Retryable   func(error) bool
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultConfig returns the default retry configuration for remote calls
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseBackoff: 500 * time.Millisecond,
		MaxBackoff:  5 * time.Second,
	}
}

// Do runs fn until it succeeds, returns an error that is not retryable, or
// runs out of attempts. The last error is returned wrapped.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = IsTransient
	}
	maxAttempts := max(cfg.MaxAttempts, 1)
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := calculateBackoff(cfg.BaseBackoff, cfg.MaxBackoff, attempt-1)
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", maxAttempts, lastErr)
}

// StatusCoder is implemented by errors carrying an HTTP status code
type StatusCoder interface {
	StatusCode() int
}

// IsTransient reports whether err is a network failure or an HTTP status
// that may succeed when repeated
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	// Context cancellation is not retryable
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		switch sc.StatusCode() {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// calculateBackoff returns base * 2^attempt capped at maxBackoff, scaled by
// a random factor between 0.5 and 1.0
func calculateBackoff(base, maxBackoff time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	backoff := maxBackoff
	if attempt < 31 {
		backoff = min(base*time.Duration(1<<uint(attempt)), maxBackoff) //nolint:gosec
	}
	jitter := 0.5 + rand.Float64()*0.5 //nolint:gosec
	return time.Duration(float64(backoff) * jitter)
}
