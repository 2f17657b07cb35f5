// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/pursuer/internal/logging"
	"github.com/jeranaias/pursuer/internal/session"
	"github.com/jeranaias/pursuer/internal/transcript"
	"github.com/jeranaias/pursuer/internal/ui/render"
	"github.com/jeranaias/pursuer/internal/ui/styles"
)

// HistoryChangedMsg reports that the history file changed on disk.
type HistoryChangedMsg struct{}

// Options configures the chat view.
type Options struct {
	Theme      *styles.Theme
	Manager    *session.Manager
	Store      *transcript.Store
	Logger     *logging.Logger
	Models     []string
	UserPrefix string
	Highlight  bool
	WordWrap   bool
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	theme  *styles.Theme
	keys   KeyMap
	doc    *render.Document
	conv   *session.Conversation
	mgr    *session.Manager
	logger *logging.Logger
	models []string

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	width  int
	height int

	// panel is rendered markdown shown in place of the transcript.
	panel     string
	status    string
	statusErr bool

	requestID    string
	started      time.Time
	response     *strings.Builder
	lastResponse string
	quitting     bool
}

// New creates the chat view and loads the saved history.
func New(opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme(styles.ModeAuto)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a message or /help"
	ti.CharLimit = 8192
	ti.PromptStyle = theme.InputPrompt
	ti.PlaceholderStyle = theme.InputPlaceholder
	ti.Focus()

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	doc := render.NewDocument(theme, render.Options{Highlight: opts.Highlight, WordWrap: opts.WordWrap})
	conv := session.NewConversation(doc, opts.Store, opts.UserPrefix, logger)

	m := Model{
		theme:    theme,
		keys:     DefaultKeyMap(),
		doc:      doc,
		conv:     conv,
		mgr:      opts.Manager,
		logger:   logger,
		models:   opts.Models,
		viewport: vp,
		input:    ti,
		spinner:  sp,
		width:    80,
		height:   24,
		response: &strings.Builder{},
	}

	if err := conv.Load(); err != nil {
		m.setStatus("Failed to load history", true)
	}
	m.refresh()
	return m
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case session.Fragment:
		if msg.RequestID == m.requestID {
			m.response.WriteString(msg.Text)
		}
		m.conv.Apply(msg)
		m.refresh()
		return m, nil

	case session.Done, session.Failed:
		return m.handleTerminal(msg.(session.Event))

	case spinner.TickMsg:
		if m.requestID == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case HistoryChangedMsg:
		changed, err := m.conv.Reload()
		if err != nil {
			m.setStatus("Failed to reload history: "+err.Error(), true)
		} else if changed {
			m.refresh()
			m.setStatus("History reloaded", false)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the chat view.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderChat()
}

// =============================================================================
// MESSAGE HANDLERS
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)

	// Layout: header + viewport + separator + input + status bar.
	const reserved = 4
	vpHeight := m.height - reserved
	if vpHeight < 1 {
		vpHeight = 1
	}
	vpWidth := m.width
	if vpWidth < 1 {
		vpWidth = 1
	}
	m.viewport.Width = vpWidth
	m.viewport.Height = vpHeight

	inputWidth := m.width - len(m.input.Prompt) - 1
	if inputWidth < 10 {
		inputWidth = 10
	}
	m.input.Width = inputWidth

	if m.panel != "" {
		m.closePanel()
	}
	m.refresh()
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.panel != "" {
			m.closePanel()
			return m, nil
		}
		if m.requestID != "" {
			if m.mgr.Cancel(m.requestID) {
				m.setStatus("Stopping...", false)
			}
			return m, nil
		}
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.ClearScreen):
		if m.requestID != "" {
			m.setStatus("Wait for the current response to finish", true)
			return m, nil
		}
		m.conv.ClearScreen()
		m.closePanel()
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())
	if value == "" {
		return m, nil
	}

	if cmd, ok := ParseCommand(value); ok {
		m.input.Reset()
		if m.panel != "" {
			m.closePanel()
		}
		return m.runCommand(cmd)
	}

	id, err := m.conv.Send(m.mgr, value)
	switch {
	case errors.Is(err, session.ErrBusy):
		m.setStatus("Please wait for the current response", true)
		return m, nil
	case err != nil:
		m.setStatus(err.Error(), true)
		return m, nil
	}

	m.input.Reset()
	m.requestID = id
	m.started = time.Now()
	m.response.Reset()
	m.status = ""
	m.closePanel()
	return m, m.spinner.Tick
}

func (m Model) handleTerminal(ev session.Event) (tea.Model, tea.Cmd) {
	done, saveErr := m.conv.Apply(ev)
	m.refresh()
	if !done {
		return m, nil
	}

	m.mgr.Release(ev.ID())
	m.requestID = ""
	m.lastResponse = m.response.String()

	switch e := ev.(type) {
	case session.Done:
		chars := 0
		if e.Stats != nil {
			chars = e.Stats.Chars
		}
		m.setStatus(fmt.Sprintf("%d chars in %.1fs", chars, time.Since(m.started).Seconds()), false)
	case session.Failed:
		first, _, _ := strings.Cut(e.Message, "\n")
		m.setStatus(first, true)
	}

	if saveErr != nil {
		m.setStatus("Failed to save history: "+saveErr.Error(), true)
	}
	return m, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// refresh re-renders the transcript and scrolls to the end.
func (m *Model) refresh() {
	if m.panel != "" {
		return
	}
	m.viewport.SetContent(m.doc.View(m.viewport.Width))
	m.viewport.GotoBottom()
}

func (m *Model) showPanel(md string) {
	m.panel = renderMarkdown(md, m.viewport.Width, m.theme)
	m.viewport.SetContent(m.panel)
	m.viewport.GotoTop()
}

func (m *Model) closePanel() {
	m.panel = ""
	m.refresh()
}

func (m *Model) setStatus(status string, isErr bool) {
	m.status = status
	m.statusErr = isErr
}

// Busy reports whether a response is being received.
func (m Model) Busy() bool {
	return m.requestID != ""
}

// Status returns the status bar message.
func (m Model) Status() string {
	return m.status
}

// Transcript returns the plain text of the display.
func (m Model) Transcript() string {
	return m.doc.Text()
}
