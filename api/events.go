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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/blinklabs-io/ballot/event"
	"github.com/blinklabs-io/ballot/ledger"
)

const (
	sseQueueSize         = 64
	sseKeepaliveInterval = 15 * time.Second
)

var errStreamClosed = errors.New("event stream closed")

// sseSubscriber queues events for one event stream client. A slow client
// misses events rather than blocking the bus.
type sseSubscriber struct {
	ch        chan event.Event
	done      chan struct{}
	closeOnce sync.Once
}

func newSSESubscriber() *sseSubscriber {
	return &sseSubscriber{
		ch:   make(chan event.Event, sseQueueSize),
		done: make(chan struct{}),
	}
}

func (s *sseSubscriber) Deliver(evt event.Event) error {
	select {
	case <-s.done:
		return errStreamClosed
	default:
	}
	select {
	case s.ch <- evt:
		return nil
	default:
		return event.ErrEventDropped
	}
}

func (s *sseSubscriber) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// handleEvents handles GET /api/v0/events and streams ledger events as
// server-sent events until the client disconnects
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	if a.eventBus == nil {
		writeError(
			w,
			http.StatusServiceUnavailable,
			http.StatusText(http.StatusServiceUnavailable),
			"event stream is not available",
		)
		return
	}
	rc := http.NewResponseController(w)
	sub := newSSESubscriber()
	subId := a.eventBus.RegisterSubscriber(ledger.ProposalEventType, sub)
	if subId == 0 {
		writeError(
			w,
			http.StatusServiceUnavailable,
			http.StatusText(http.StatusServiceUnavailable),
			"shutting down",
		)
		return
	}
	defer a.eventBus.Unsubscribe(ledger.ProposalEventType, subId)
	if a.metrics != nil {
		a.metrics.eventStreams.Inc()
		defer a.metrics.eventStreams.Dec()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		a.logger.Debug("event stream flush failed", "error", err)
		return
	}

	a.mu.Lock()
	streamsDone := a.streamsDone
	a.mu.Unlock()
	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-sub.done:
			return
		case <-streamsDone:
			return
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
		case evt := <-sub.ch:
			proposalEvt, ok := evt.Data.(ledger.ProposalEvent)
			if !ok {
				continue
			}
			data, err := json.Marshal(newEventResponse(proposalEvt))
			if err != nil {
				a.logger.Error("failed to encode event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(
				w,
				"id: %d\nevent: proposal\ndata: %s\n\n",
				proposalEvt.Height,
				data,
			); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
