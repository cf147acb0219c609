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

package event

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EventQueueSize is the buffer size of channel subscribers
const EventQueueSize = 256

// ErrEventDropped is returned by Deliver when a subscriber cannot keep up.
// The subscriber stays registered.
var ErrEventDropped = errors.New("event dropped")

type EventType string

type EventSubscriberId int

type EventHandlerFunc func(Event)

type Event struct {
	Timestamp time.Time
	Data      any
	Type      EventType
}

func NewEvent(eventType EventType, eventData any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      eventData,
	}
}

// Subscriber is a delivery abstraction that allows the EventBus to deliver
// events to in-memory channels and to network-backed subscribers via the
// same interface. Deliver must not block. Close must be idempotent.
type Subscriber interface {
	Deliver(Event) error
	Close()
}

// channelSubscriber delivers events to a buffered channel. Close closes the
// channel so SubscribeFunc goroutines exit.
type channelSubscriber struct {
	ch     chan Event
	logger *slog.Logger
	mu     sync.RWMutex
	closed bool
}

func newChannelSubscriber(buffer int, logger *slog.Logger) *channelSubscriber {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &channelSubscriber{
		ch:     make(chan Event, buffer),
		logger: logger,
	}
}

func (c *channelSubscriber) Deliver(evt Event) error {
	// The read lock keeps Close from closing the channel mid-send
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil
	}
	select {
	case c.ch <- evt:
		return nil
	default:
		c.logger.Warn(
			"subscriber queue full, dropping event",
			"component", "event",
			"type", evt.Type,
		)
		return ErrEventDropped
	}
}

func (c *channelSubscriber) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

type EventBus struct {
	subscribers  map[EventType]map[EventSubscriberId]Subscriber
	metrics      *eventMetrics
	logger       *slog.Logger
	lastSubId    EventSubscriberId
	mu           sync.RWMutex
	subscriberWg sync.WaitGroup
	stopMu       sync.RWMutex
	stopped      bool
}

// NewEventBus creates a new EventBus
func NewEventBus(
	promRegistry prometheus.Registerer,
	logger *slog.Logger,
) *EventBus {
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	e := &EventBus{
		subscribers: make(map[EventType]map[EventSubscriberId]Subscriber),
		logger:      logger,
	}
	if promRegistry != nil {
		e.metrics = newEventMetrics(promRegistry)
	}
	return e
}

func subscriberKind(sub Subscriber) string {
	if _, ok := sub.(*channelSubscriber); ok {
		return "in-memory"
	}
	return "remote"
}

// addSubscriber registers sub and returns its id. The caller must hold
// stopMu for reading and have checked that the bus is not stopped.
func (e *EventBus) addSubscriber(
	eventType EventType,
	sub Subscriber,
) EventSubscriberId {
	e.mu.Lock()
	defer e.mu.Unlock()
	subId := e.lastSubId + 1
	e.lastSubId = subId
	if _, ok := e.subscribers[eventType]; !ok {
		e.subscribers[eventType] = make(map[EventSubscriberId]Subscriber)
	}
	e.subscribers[eventType][subId] = sub
	if e.metrics != nil {
		e.metrics.subscribers.WithLabelValues(
			string(eventType),
			subscriberKind(sub),
		).Inc()
	}
	return subId
}

// Subscribe allows a consumer to receive events of a particular type via a
// channel. A stopped bus returns id 0 and a closed channel.
func (e *EventBus) Subscribe(
	eventType EventType,
) (EventSubscriberId, <-chan Event) {
	chSub := newChannelSubscriber(EventQueueSize, e.logger)
	e.stopMu.RLock()
	defer e.stopMu.RUnlock()
	if e.stopped {
		chSub.Close()
		return 0, chSub.ch
	}
	return e.addSubscriber(eventType, chSub), chSub.ch
}

// SubscribeFunc allows a consumer to receive events of a particular type via
// a callback function. Events are handled one at a time in publish order. A
// panic in the handler is logged and the next event is still delivered.
func (e *EventBus) SubscribeFunc(
	eventType EventType,
	handlerFunc EventHandlerFunc,
) EventSubscriberId {
	chSub := newChannelSubscriber(EventQueueSize, e.logger)
	// Holding stopMu through Add keeps Stop from waiting before we register
	e.stopMu.RLock()
	if e.stopped {
		e.stopMu.RUnlock()
		return 0
	}
	subId := e.addSubscriber(eventType, chSub)
	e.subscriberWg.Add(1)
	e.stopMu.RUnlock()
	go func() {
		defer e.subscriberWg.Done()
		for evt := range chSub.ch {
			e.handleEvent(handlerFunc, evt)
		}
	}()
	return subId
}

func (e *EventBus) handleEvent(handlerFunc EventHandlerFunc, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error(
				fmt.Sprintf("event handler panic: %v", r),
				"component", "event",
				"type", evt.Type,
			)
		}
	}()
	handlerFunc(evt)
}

// RegisterSubscriber allows external adapters (e.g., network-backed
// subscribers) to register with the EventBus. A stopped bus closes sub and
// returns 0.
func (e *EventBus) RegisterSubscriber(
	eventType EventType,
	sub Subscriber,
) EventSubscriberId {
	e.stopMu.RLock()
	defer e.stopMu.RUnlock()
	if e.stopped {
		sub.Close()
		return 0
	}
	return e.addSubscriber(eventType, sub)
}

// Unsubscribe stops delivery of events for a particular type for an existing subscriber
func (e *EventBus) Unsubscribe(eventType EventType, subId EventSubscriberId) {
	e.mu.Lock()
	var subToClose Subscriber
	if evtTypeSubs, ok := e.subscribers[eventType]; ok {
		if sub, ok2 := evtTypeSubs[subId]; ok2 {
			subToClose = sub
			delete(evtTypeSubs, subId)
			if len(evtTypeSubs) == 0 {
				delete(e.subscribers, eventType)
			}
			if e.metrics != nil {
				e.metrics.subscribers.WithLabelValues(
					string(eventType),
					subscriberKind(sub),
				).Dec()
			}
		}
	}
	e.mu.Unlock()

	if subToClose != nil {
		subToClose.Close()
	}
}

// Publish sends an event to all subscribers of its type without blocking.
// Subscribers that fail delivery are unregistered, except for dropped events.
func (e *EventBus) Publish(eventType EventType, evt Event) {
	// Build list of subscribers inside read lock to avoid map race condition
	e.mu.RLock()
	type subItem struct {
		sub Subscriber
		id  EventSubscriberId
	}
	subs := e.subscribers[eventType]
	subList := make([]subItem, 0, len(subs))
	for id, sub := range subs {
		subList = append(subList, subItem{id: id, sub: sub})
	}
	e.mu.RUnlock()
	for _, item := range subList {
		deliverErr := e.deliver(item.sub, evt)
		if deliverErr == nil {
			continue
		}
		kind := subscriberKind(item.sub)
		if errors.Is(deliverErr, ErrEventDropped) {
			if e.metrics != nil {
				e.metrics.droppedEvents.WithLabelValues(string(eventType), kind).
					Inc()
			}
			continue
		}
		// Unregister the failing subscriber
		e.Unsubscribe(eventType, item.id)
		if e.metrics != nil {
			e.metrics.deliveryErrors.WithLabelValues(string(eventType), kind).
				Inc()
		}
		e.logger.Debug(
			"event delivery error",
			"component", "event",
			"type", eventType,
			"error", deliverErr,
		)
	}
	if e.metrics != nil {
		e.metrics.eventsTotal.WithLabelValues(string(eventType)).Inc()
	}
}

// deliver protects against panics inside subscriber Deliver implementations
func (e *EventBus) deliver(sub Subscriber, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber deliver panic: %v", r)
		}
	}()
	return sub.Deliver(evt)
}

// Stop closes all subscribers and waits for SubscribeFunc handlers to
// finish the events already queued. The bus accepts no subscribers
// afterward. Calling Stop more than once is safe.
func (e *EventBus) Stop() {
	e.stopMu.Lock()
	e.stopped = true
	e.stopMu.Unlock()

	e.mu.Lock()
	// Copy and clear subscribers
	subsCopy := e.subscribers
	e.subscribers = make(map[EventType]map[EventSubscriberId]Subscriber)
	e.mu.Unlock()

	// Close subscribers outside of lock
	for _, evtTypeSubs := range subsCopy {
		for _, sub := range evtTypeSubs {
			sub.Close()
		}
	}
	if e.metrics != nil {
		e.metrics.subscribers.Reset()
	}
	e.subscriberWg.Wait()
}
