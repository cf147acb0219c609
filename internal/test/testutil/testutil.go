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

// Package testutil provides synchronization helpers for tests that wait on
// asynchronous ledger indexing and event delivery.
package testutil

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	DefaultTimeout      = 5 * time.Second
	defaultPollInterval = 10 * time.Millisecond
)

// WaitForCondition polls the given condition function until it returns true
// or the timeout expires
func WaitForCondition(
	t *testing.T,
	condition func() bool,
	timeout time.Duration,
	msg string,
) {
	t.Helper()
	require.Eventually(
		t,
		condition,
		timeout,
		defaultPollInterval,
		msg,
	)
}

// WaitForHeight polls current until it reports target. Errors from current
// are treated as not yet caught up.
func WaitForHeight(
	t *testing.T,
	target uint64,
	current func() (uint64, error),
) {
	t.Helper()
	WaitForCondition(
		t,
		func() bool {
			height, err := current()
			return err == nil && height == target
		},
		DefaultTimeout,
		"waiting for height",
	)
}

// RequireReceive waits for a value on the given channel or fails the test
// if the timeout expires
func RequireReceive[T any](
	t *testing.T,
	ch <-chan T,
	timeout time.Duration,
	msg string,
) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed: %s", msg)
		}
		return v
	case <-time.After(timeout):
		t.Fatalf("timeout waiting for channel receive: %s", msg)
	}
	var zero T
	return zero // unreachable
}

// NewLogger returns a logger that writes to the test output at debug level
func NewLogger(t *testing.T) *slog.Logger {
	t.Helper()
	var w io.Writer = t.Output()
	if !testing.Verbose() {
		w = io.Discard
	}
	return slog.New(
		slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
}
