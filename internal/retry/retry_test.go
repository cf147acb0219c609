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

package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusError int

func (e statusError) Error() string   { return fmt.Sprintf("status %d", int(e)) }
func (e statusError) StatusCode() int { return int(e) }

var errTransient = errors.New("transient")

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts: attempts,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
		Retryable: func(err error) bool {
			return errors.Is(err, errTransient)
		},
	}
}

func TestDoSuccessAfterRetries(t *testing.T) {
	t.Parallel()
	attempts := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		attempts++
		if attempts < 3 {
			return errTransient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoExhaustsAttempts(t *testing.T) {
	t.Parallel()
	attempts := 0
	err := Do(context.Background(), fastConfig(4), func() error {
		attempts++
		return errTransient
	})
	require.ErrorIs(t, err, errTransient)
	assert.Contains(t, err.Error(), "failed after 4 attempts")
	assert.Equal(t, 4, attempts)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	t.Parallel()
	errPermanent := errors.New("permanent")
	attempts := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		attempts++
		return errPermanent
	})
	require.Equal(t, errPermanent, err)
	assert.Equal(t, 1, attempts)
}

func TestDoContextCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(5)
	cfg.BaseBackoff = time.Hour
	cfg.MaxBackoff = time.Hour
	attempts := 0
	err := Do(ctx, cfg, func() error {
		attempts++
		cancel()
		return errTransient
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	t.Parallel()
	attempts := 0
	err := Do(context.Background(), Config{}, func() error {
		attempts++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestIsTransient(t *testing.T) {
	t.Parallel()
	testDefs := []struct {
		err      error
		expected bool
	}{
		{err: nil, expected: false},
		{err: errors.New("boom"), expected: false},
		{err: context.Canceled, expected: false},
		{err: fmt.Errorf("wrapped: %w", context.DeadlineExceeded), expected: false},
		{err: statusError(http.StatusTooManyRequests), expected: true},
		{err: statusError(http.StatusServiceUnavailable), expected: true},
		{err: statusError(http.StatusConflict), expected: false},
		{err: statusError(http.StatusBadRequest), expected: false},
		{err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}, expected: true},
	}
	for _, testDef := range testDefs {
		assert.Equal(t, testDef.expected, IsTransient(testDef.err), "%v", testDef.err)
	}
}

func TestCalculateBackoff(t *testing.T) {
	t.Parallel()
	for attempt := 1; attempt < 40; attempt++ {
		backoff := calculateBackoff(10*time.Millisecond, time.Second, attempt)
		assert.LessOrEqual(t, backoff, time.Second)
		assert.Positive(t, backoff)
	}
	assert.Equal(t, time.Duration(0), calculateBackoff(0, time.Second, 3))
}
