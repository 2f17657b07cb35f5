// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/jeranaias/pursuer/internal/markdown"
	"github.com/jeranaias/pursuer/internal/session"
	"github.com/jeranaias/pursuer/internal/ui/render"
)

// =============================================================================
// LINE-MODE SURFACE
// =============================================================================

// lineSurface prints render ops as they arrive and keeps the plain text of
// everything appended. While muted it records without printing, which is how
// the saved history and the echo of a typed line stay off the screen.
type lineSurface struct {
	painter *render.Painter
	text    strings.Builder
	muted   bool
}

func newLineSurface(painter *render.Painter) *lineSurface {
	return &lineSurface{painter: painter}
}

func (s *lineSurface) Append(ops []markdown.RenderOp) {
	for _, op := range ops {
		s.text.WriteString(op.Text)
	}
	if s.muted || s.painter == nil {
		return
	}
	_ = s.painter.Write(ops)
}

func (s *lineSurface) Text() string {
	return s.text.String()
}

func (s *lineSurface) Clear() {
	s.text.Reset()
}

// quietly runs fn with printing suspended.
func (s *lineSurface) quietly(fn func()) {
	prev := s.muted
	s.muted = true
	defer func() { s.muted = prev }()
	fn()
}

// =============================================================================
// REQUEST LIFECYCLE
// =============================================================================

// awaitResponse applies the events of request id until its terminal event,
// then releases the request slot. A failed response is returned as a
// ResponseError.
func awaitResponse(ctx context.Context, q *session.Queue, conv *session.Conversation, mgr *session.Manager, id string) error {
	defer mgr.Release(id)

	for {
		ev, err := q.Next(ctx)
		if err != nil {
			mgr.Cancel(id)
			return err
		}
		done, saveErr := conv.Apply(ev)
		if !done {
			continue
		}
		if saveErr != nil {
			return &CommandError{Command: "history", Action: "save", Err: saveErr}
		}
		if failed, ok := ev.(session.Failed); ok {
			return &ResponseError{Message: failed.Message, Err: failed.Err}
		}
		return nil
	}
}

// cancelOnInterrupt cancels request id on SIGINT until the returned stop
// function is called.
func cancelOnInterrupt(mgr *session.Manager, id string) (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	done := make(chan struct{})

	go func() {
		select {
		case <-sigCh:
			mgr.Cancel(id)
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
