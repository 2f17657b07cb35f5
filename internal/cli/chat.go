// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/muesli/termenv"
	"github.com/peterh/liner"

	"github.com/jeranaias/pursuer/internal/cloud"
	"github.com/jeranaias/pursuer/internal/config"
	"github.com/jeranaias/pursuer/internal/markdown"
	"github.com/jeranaias/pursuer/internal/session"
	"github.com/jeranaias/pursuer/internal/ui/chat"
	"github.com/jeranaias/pursuer/internal/ui/render"
)

// inputHistoryFile keeps the line editor's history in the config directory.
const inputHistoryFile = "input_history"

var copyToClipboard = clipboard.WriteAll

// =============================================================================
// CHAT REPL
// =============================================================================

// ChatREPL is the line-mode chat: responses stream straight to the terminal
// and each exchange is saved to the history file like the full-screen view.
type ChatREPL struct {
	app     *App
	out     io.Writer
	surface *lineSurface
	conv    *session.Conversation
	mgr     *session.Manager
	queue   *session.Queue

	lastResponse string
}

// NewChatREPL creates a REPL writing to app.Out.
func NewChatREPL(app *App) *ChatREPL {
	queue := session.NewQueue()
	surface := newLineSurface(render.NewPainterWithProfile(app.Out, app.colorProfile()))
	return &ChatREPL{
		app:     app,
		out:     app.Out,
		surface: surface,
		conv:    session.NewConversation(surface, app.History, app.Config.History.UserPrefix, app.Logger),
		mgr:     app.NewManager(queue),
		queue:   queue,
	}
}

// Close stops any request still running.
func (r *ChatREPL) Close() {
	r.mgr.Close()
}

// LoadHistory reads the history file without printing it.
func (r *ChatREPL) LoadHistory() error {
	var err error
	r.surface.quietly(func() { err = r.conv.Load() })
	if err != nil {
		fmt.Fprintf(r.app.Err, "Error loading chat history: %v\n", err)
		return err
	}
	if turns := r.app.Parser.Turns(r.surface.Text()); len(turns) > 0 {
		r.app.infof("Continuing conversation: %d messages in %s\n", len(turns), r.app.History.Path())
	}
	return nil
}

// HandleLine runs one line of input: a slash command or a message. quit is
// true after /quit.
func (r *ChatREPL) HandleLine(ctx context.Context, input string) (quit bool, err error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return false, nil
	}
	if cmd, ok := chat.ParseCommand(input); ok {
		return r.runCommand(cmd)
	}
	return false, r.send(ctx, input)
}

func (r *ChatREPL) send(ctx context.Context, message string) error {
	var id string
	var err error
	r.surface.quietly(func() { id, err = r.conv.Send(r.mgr, message) })
	if err != nil {
		return err
	}
	start := len(r.surface.Text())

	// The prompt line already shows the message; finish its blank line.
	fmt.Fprintln(r.out)

	stop := cancelOnInterrupt(r.mgr, id)
	err = awaitResponse(ctx, r.queue, r.conv, r.mgr, id)
	stop()

	r.lastResponse = strings.TrimSpace(r.surface.Text()[start:])

	var respErr *ResponseError
	if errors.As(err, &respErr) {
		return nil
	}
	return err
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

func (r *ChatREPL) runCommand(cmd chat.Command) (bool, error) {
	switch cmd.Name {
	case "help":
		fmt.Fprintln(r.out, "Commands:")
		for _, c := range chat.Commands {
			fmt.Fprintf(r.out, "  %-16s %s\n", c.Usage, c.Description)
		}
		fmt.Fprintln(r.out, "Ctrl+C stops a response; Ctrl+D exits.")

	case "clear":
		r.conv.ClearScreen()
		out := termenv.NewOutput(r.out)
		out.ClearScreen()

	case "clear-history":
		if err := r.conv.ClearHistory(); err != nil {
			return false, &CommandError{Command: "clear-history", Err: err}
		}
		fmt.Fprintln(r.out, "Chat history cleared.")

	case "links":
		links := r.conv.Renderer().Links().All()
		if len(links) == 0 {
			fmt.Fprintln(r.out, "No links in this conversation.")
			break
		}
		for _, l := range links {
			fmt.Fprintf(r.out, "  [%d] %s  %s\n", int(l.ID), l.Text, l.URL)
		}

	case "open":
		r.openLink(cmd.Args)

	case "copy":
		if r.lastResponse == "" {
			fmt.Fprintln(r.out, "No response to copy.")
			break
		}
		if err := copyToClipboard(r.lastResponse); err != nil {
			r.app.Logger.Warn("Clipboard write failed: %v", err)
			fmt.Fprintf(r.out, "Failed to copy: %v\n", err)
			break
		}
		fmt.Fprintf(r.out, "Copied response (%d chars).\n", len([]rune(r.lastResponse)))

	case "model":
		r.switchModel(cmd.Args)

	case "quit", "exit":
		return true, nil

	default:
		fmt.Fprintf(r.out, "Unknown command: /%s (try /help)\n", cmd.Name)
	}
	return false, nil
}

func (r *ChatREPL) openLink(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(r.out, "Usage: /open <n>")
		return
	}
	n, err := strconv.Atoi(strings.Trim(args[0], "[]#"))
	if err != nil || n <= 0 {
		fmt.Fprintf(r.out, "Invalid link number: %s\n", args[0])
		return
	}
	url, ok := r.conv.Renderer().Links().Resolve(markdown.LinkID(n))
	if !ok {
		fmt.Fprintf(r.out, "No link %d\n", n)
		return
	}
	if err := copyToClipboard(url); err != nil {
		r.app.Logger.Warn("Clipboard write failed: %v", err)
		fmt.Fprintf(r.out, "Link %d: %s\n", n, url)
		return
	}
	fmt.Fprintf(r.out, "Copied link %d: %s\n", n, url)
}

func (r *ChatREPL) switchModel(args []string) {
	if len(args) == 0 {
		for _, name := range r.app.Config.API.Models {
			marker := " "
			if name == r.mgr.Model() {
				marker = "*"
			}
			fmt.Fprintf(r.out, " %s %s\n", marker, name)
		}
		return
	}
	if !r.app.Config.API.HasModel(args[0]) {
		fmt.Fprintf(r.out, "Unknown model: %s\n", args[0])
		return
	}
	r.mgr.SetModel(args[0])
	r.app.Logger.Info("Model switched to %s", args[0])
	fmt.Fprintf(r.out, "Model: %s\n", args[0])
}

// =============================================================================
// ENTRY POINT
// =============================================================================

// RunChat runs the line-mode chat until /quit, Ctrl+D or Ctrl+C at the
// prompt.
func RunChat(app *App) error {
	repl := NewChatREPL(app)
	defer repl.Close()

	if !app.Client.IsConfigured() {
		fmt.Fprintln(app.Err, session.FailureMessage(cloud.ErrNotConfigured))
	}
	_ = repl.LoadHistory()
	app.infof("Model: %s. Type /help for commands, /quit to exit.\n\n", repl.mgr.Model())

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetMultiLineMode(true)

	historyPath := ""
	if dir, err := config.Dir(); err == nil {
		historyPath = filepath.Join(dir, inputHistoryFile)
		if f, err := os.Open(historyPath); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
	}
	defer func() {
		if historyPath == "" {
			return
		}
		if f, err := os.OpenFile(historyPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		}
	}()

	ctx := context.Background()
	for {
		input, err := line.Prompt(app.Config.History.UserPrefix)
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D or a closed stdin.
			fmt.Fprintln(app.Out)
			return nil
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}

		quit, err := repl.HandleLine(ctx, input)
		switch {
		case errors.Is(err, session.ErrBusy):
			fmt.Fprintln(app.Err, "Please wait for the current response.")
		case err != nil:
			DisplayError(app.Err, err)
		}
		if quit {
			return nil
		}
	}
}
