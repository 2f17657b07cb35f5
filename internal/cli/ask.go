// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/pursuer/internal/markdown"
	"github.com/jeranaias/pursuer/internal/session"
	"github.com/jeranaias/pursuer/internal/ui/render"
)

// maxStdinQuestion bounds a question read from stdin.
const maxStdinQuestion = 1 << 20

// RunAsk answers one question, streaming the response to app.Out. The saved
// history is sent as context; with --save the exchange is appended to it.
func RunAsk(ctx context.Context, app *App) error {
	question, err := askQuestion(app)
	if err != nil {
		return err
	}

	queue := session.NewQueue()
	mgr := app.NewManager(queue)
	defer mgr.Close()

	surface := newLineSurface(render.NewPainterWithProfile(app.Out, app.colorProfile()))
	var conv *session.Conversation
	if app.Args.Save {
		conv = session.NewConversation(surface, app.History, app.Config.History.UserPrefix, app.Logger)
		surface.quietly(func() { err = conv.Load() })
		if err != nil {
			return &CommandError{Command: "ask", Action: "load history", Err: err}
		}
	} else {
		// Context only: the conversation has no store, so nothing is saved.
		conv = session.NewConversation(surface, nil, app.Config.History.UserPrefix, app.Logger)
		text, _, err := app.History.Load()
		if err != nil {
			app.Logger.Warn("Asking without history: %v", err)
		}
		if text != "" {
			surface.quietly(func() { surface.Append([]markdown.RenderOp{{Text: text}}) })
		}
	}

	var id string
	surface.quietly(func() { id, err = conv.Send(mgr, question) })
	if err != nil {
		return err
	}
	app.Logger.Debug("ask: request %s (%d chars, save=%v)", id, len(question), app.Args.Save)

	stop := cancelOnInterrupt(mgr, id)
	defer stop()
	return awaitResponse(ctx, queue, conv, mgr, id)
}

// askQuestion returns the question from the arguments, or from stdin when
// the question is "-" or absent and stdin is not a terminal.
func askQuestion(app *App) (string, error) {
	question := app.Args.Query
	if question == "-" || (question == "" && app.In != nil && !inIsTTY(app.In)) {
		data, err := io.ReadAll(io.LimitReader(app.In, maxStdinQuestion))
		if err != nil {
			return "", fmt.Errorf("failed to read question from stdin: %w", err)
		}
		question = string(data)
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return "", NewUsageError(`Example: pursuer ask "What is a goroutine?"`, "ask requires a question")
	}
	return question, nil
}
