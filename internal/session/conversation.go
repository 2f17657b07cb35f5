// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"fmt"
	"strings"

	"github.com/jeranaias/pursuer/internal/logging"
	"github.com/jeranaias/pursuer/internal/markdown"
	"github.com/jeranaias/pursuer/internal/transcript"
)

// Surface is the append-only display a Conversation renders into. Text
// returns the concatenated plain text of everything appended.
type Surface interface {
	Append(ops []markdown.RenderOp)
	Text() string
	Clear()
}

// Conversation is the UI-side half of a chat. It must only be used from the
// goroutine that owns the Surface.
type Conversation struct {
	renderer *markdown.Renderer
	surface  Surface
	store    *transcript.Store
	prefix   string
	logger   *logging.Logger

	current string
}

// NewConversation creates a Conversation. store may be nil, in which case
// nothing is persisted.
func NewConversation(surface Surface, store *transcript.Store, userPrefix string, logger *logging.Logger) *Conversation {
	if userPrefix == "" {
		userPrefix = transcript.DefaultUserPrefix
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Conversation{
		renderer: markdown.NewRenderer(),
		surface:  surface,
		store:    store,
		prefix:   userPrefix,
		logger:   logger,
	}
}

// Renderer returns the markdown renderer, which owns the link table.
func (c *Conversation) Renderer() *markdown.Renderer {
	return c.renderer
}

// Surface returns the display surface.
func (c *Conversation) Surface() Surface {
	return c.surface
}

// Current returns the request being rendered, or "".
func (c *Conversation) Current() string {
	return c.current
}

// Load replaces the surface content with the saved transcript, verbatim.
// A load failure is shown as a single line and returned.
func (c *Conversation) Load() error {
	c.surface.Clear()
	c.renderer.Reset()
	if c.store == nil {
		return nil
	}

	text, latin1, err := c.store.Load()
	if err != nil {
		c.logger.Error("Failed to load chat history from %s: %v", c.store.Path(), err)
		c.surface.Append([]markdown.RenderOp{{Text: fmt.Sprintf("Error loading chat history: %v", err)}, markdown.LineBreak})
		return err
	}
	if latin1 {
		c.logger.Warn("Chat history %s is not valid UTF-8; decoded as ISO-8859-1", c.store.Path())
	}
	if text != "" {
		c.surface.Append([]markdown.RenderOp{{Text: text}})
	}
	return nil
}

// Reload re-reads the transcript when it no longer matches the surface,
// e.g. after another process edited the file. It reports whether the surface
// changed. Reload is a no-op while a request is being rendered.
func (c *Conversation) Reload() (bool, error) {
	if c.store == nil || c.current != "" {
		return false, nil
	}
	text, _, err := c.store.Load()
	if err != nil {
		return false, err
	}
	if text == c.surface.Text() {
		return false, nil
	}
	c.logger.Info("Chat history changed on disk; reloading")
	return true, c.Load()
}

// Echo appends the user's message the way it is saved in the transcript.
// Blank lines inside the message are dropped so it reads back as one turn.
func (c *Conversation) Echo(message string) {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(message), "\n") {
		if line = strings.TrimRight(line, " \t\r"); strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	c.surface.Append([]markdown.RenderOp{
		{Text: c.prefix + strings.Join(lines, "\n")},
		markdown.LineBreak,
		markdown.LineBreak,
	})
}

// Send echoes message and submits it to m with the resulting transcript.
// Nothing is echoed when m cannot accept the request.
func (c *Conversation) Send(m *Manager, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyMessage
	}
	if m.Busy() {
		return "", ErrBusy
	}

	c.Echo(message)
	id, err := m.Submit(message, c.surface.Text())
	if err != nil {
		return "", err
	}
	c.current = id
	return id, nil
}

// Apply renders ev. It returns true for the terminal event of the current
// request, after the transcript has been saved; the error reports a failed
// save. Events of other requests are ignored.
func (c *Conversation) Apply(ev Event) (bool, error) {
	if ev == nil || ev.ID() != c.current {
		return false, nil
	}

	switch e := ev.(type) {
	case Fragment:
		c.surface.Append(c.renderer.Feed(e.Text))
		return false, nil
	case Done:
		c.surface.Append(c.renderer.Finish())
	case Failed:
		c.surface.Append(c.renderer.Interrupt(e.Message))
	default:
		return false, nil
	}

	c.current = ""
	return true, c.Save()
}

// Save writes the surface text to the transcript file.
func (c *Conversation) Save() error {
	if c.store == nil {
		return nil
	}
	if err := c.store.Save(c.surface.Text()); err != nil {
		c.logger.Error("Failed to save chat history to %s: %v", c.store.Path(), err)
		return err
	}
	return nil
}

// ClearScreen empties the display without touching the file.
func (c *Conversation) ClearScreen() {
	c.surface.Clear()
	c.renderer.Reset()
	c.renderer.Links().Clear()
}

// ClearHistory truncates the transcript file and empties the display.
func (c *Conversation) ClearHistory() error {
	c.ClearScreen()
	if c.store == nil {
		return nil
	}
	if err := c.store.Clear(); err != nil {
		c.logger.Error("Failed to clear chat history %s: %v", c.store.Path(), err)
		return err
	}
	c.logger.Info("Chat history cleared")
	return nil
}
