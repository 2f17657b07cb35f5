// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/pursuer/internal/export"
	"github.com/jeranaias/pursuer/internal/transcript"
)

// RunHistory handles "pursuer history".
func RunHistory(app *App) error {
	store := app.History

	switch app.Args.Subcommand {
	case "path":
		fmt.Fprintln(app.Out, store.Path())
		return nil

	case "clear":
		ok, err := confirm(app, fmt.Sprintf("Delete the chat history in %s?", store.Path()), app.Args.Yes)
		if err != nil || !ok {
			return err
		}
		if err := store.Clear(); err != nil {
			return &CommandError{Command: "history", Action: "clear", Err: err}
		}
		app.Logger.Info("Chat history cleared from the command line")
		app.infof("Chat history cleared.\n")
		return nil
	}

	text, latin1, err := store.Load()
	if err != nil {
		return &CommandError{Command: "history", Action: app.Args.Subcommand, Err: err}
	}
	if latin1 {
		app.Logger.Warn("Chat history %s is not valid UTF-8; decoded as ISO-8859-1", store.Path())
	}

	if app.Args.Subcommand == "export" {
		return exportHistory(app, text)
	}

	if app.Args.Subcommand == "turns" {
		turns := app.Parser.Turns(text)
		if app.Args.JSON {
			return NewJSONResponse("history turns", turns).Print(app.Out)
		}
		if turns == nil {
			turns = []transcript.Turn{}
		}
		encoder := json.NewEncoder(app.Out)
		encoder.SetIndent("", "  ")
		encoder.SetEscapeHTML(false)
		return encoder.Encode(turns)
	}

	if text == "" {
		app.infof("No chat history in %s.\n", store.Path())
		return nil
	}
	_, err = io.WriteString(app.Out, text)
	return err
}

// confirm asks a yes/no question on app.In. yes skips the prompt; without
// it a non-interactive stdin is refused.
func confirm(app *App, question string, yes bool) (bool, error) {
	if yes {
		return true, nil
	}
	if app.Args.JSON || !inIsTTY(app.In) {
		return false, NewUsageError("Pass --yes to confirm.", "confirmation required")
	}

	fmt.Fprintf(app.Err, "%s [y/N]: ", question)
	answer, err := bufio.NewReader(app.In).ReadString('\n')
	if err != nil && answer == "" {
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	fmt.Fprintln(app.Err, "Cancelled.")
	return false, nil
}

// exportHistory writes the history in the requested format to --output, or
// to app.Out when no output path is given.
func exportHistory(app *App, text string) error {
	format, err := export.ParseFormat(app.Args.Format)
	if err != nil {
		return NewUsageError("Formats: md, html, json.", "%v", err)
	}
	exporter, err := export.New(format, &export.Options{IncludeMetadata: true, Theme: app.Args.Theme})
	if err != nil {
		return err
	}

	doc := export.NewDocument(text, app.Parser, app.Config.API.Model, app.History.Path())
	if len(doc.Turns) == 0 {
		app.infof("No chat history in %s.\n", app.History.Path())
		return nil
	}

	if app.Args.Output == "" || app.Args.Output == "-" {
		content, err := exporter.Export(doc)
		if err != nil {
			return &CommandError{Command: "history", Action: "export", Err: err}
		}
		_, err = app.Out.Write(content)
		return err
	}

	path, err := export.ExportToFile(doc, exporter, app.Args.Output)
	if err != nil {
		return &CommandError{Command: "history", Action: "export", Err: err}
	}
	app.Logger.Info("Exported %d messages to %s", len(doc.Turns), path)
	if app.Args.JSON {
		return NewJSONResponse("history export", map[string]any{
			"path":     path,
			"format":   string(format),
			"messages": len(doc.Turns),
		}).Print(app.Out)
	}
	app.infof("Exported %d messages to %s\n", len(doc.Turns), path)
	return nil
}
