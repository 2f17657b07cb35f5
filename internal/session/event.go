// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sync"

	"github.com/jeranaias/pursuer/internal/cloud"
)

// =============================================================================
// EVENTS
// =============================================================================

// Event is posted by the request worker. Every request produces zero or more
// Fragments followed by exactly one Done or Failed.
type Event interface {
	// ID returns the request the event belongs to.
	ID() string
	isEvent()
}

// Fragment carries streamed content.
type Fragment struct {
	RequestID string
	Text      string
}

// Done reports a completed stream.
type Done struct {
	RequestID string
	Stats     *cloud.StreamStats
}

// Failed reports a request that ended with an error. Message is the text
// shown to the user.
type Failed struct {
	RequestID string
	Message   string
	Err       error
	Stats     *cloud.StreamStats
}

func (e Fragment) ID() string { return e.RequestID }
func (e Done) ID() string     { return e.RequestID }
func (e Failed) ID() string   { return e.RequestID }

func (Fragment) isEvent() {}
func (Done) isEvent()     {}
func (Failed) isEvent()   {}

// IsTerminal reports whether ev ends its request.
func IsTerminal(ev Event) bool {
	switch ev.(type) {
	case Done, Failed, *Done, *Failed:
		return true
	}
	return false
}

// =============================================================================
// SINKS
// =============================================================================

// Sink receives events. Post must not block on the consumer and must
// preserve call order.
type Sink interface {
	Post(Event)
}

// Queue is an unbounded FIFO Sink with a single consumer.
type Queue struct {
	mu     sync.Mutex
	items  []Event
	notify chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Post appends ev. It never blocks.
func (q *Queue) Post(ev Event) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Next returns the oldest event, waiting until one is posted or ctx ends.
func (q *Queue) Next(ctx context.Context) (Event, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			ev := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return ev, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notify:
		}
	}
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
