// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/pursuer/internal/session"
)

// Sender is the part of *tea.Program used by ProgramSink.
type Sender interface {
	Send(msg tea.Msg)
}

// ProgramSink delivers session events to a Bubble Tea program as messages.
// Post never blocks: events are queued and forwarded in order by a single
// goroutine started with Start.
type ProgramSink struct {
	queue *session.Queue

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewProgramSink creates a sink. Events posted before Start are kept.
func NewProgramSink() *ProgramSink {
	return &ProgramSink{queue: session.NewQueue()}
}

// Post queues ev for the program.
func (s *ProgramSink) Post(ev session.Event) {
	s.queue.Post(ev)
}

// Start forwards queued events to program until Stop.
func (s *ProgramSink) Start(program Sender) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		for {
			ev, err := s.queue.Next(ctx)
			if err != nil {
				return
			}
			program.Send(ev)
		}
	}()
}

// Stop ends forwarding and waits for the forwarding goroutine.
func (s *ProgramSink) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
