// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/pursuer/internal/transcript"
	"github.com/jeranaias/pursuer/internal/ui/chat"
	"github.com/jeranaias/pursuer/internal/ui/styles"
)

// RunTUI runs the full-screen chat until the user quits.
func RunTUI(app *App) error {
	cfg := app.Config

	if !IsTTY() || !IsStdoutTTY() {
		return NewUsageError("Use 'pursuer chat' or 'pursuer ask' when piping.", "the full-screen chat needs a terminal")
	}

	mode, err := styles.ParseMode(cfg.UI.Theme)
	if err != nil {
		app.Logger.Warn("%v; using auto", err)
		mode = styles.ModeAuto
	}
	if app.Args.NoColor || !ColorsEnabled() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	theme := styles.NewTheme(mode)

	sink := chat.NewProgramSink()
	mgr := app.NewManager(sink)

	model := chat.New(chat.Options{
		Theme:      theme,
		Manager:    mgr,
		Store:      app.History,
		Logger:     app.Logger,
		Models:     cfg.API.Models,
		UserPrefix: cfg.History.UserPrefix,
		Highlight:  cfg.UI.HighlightCode,
		WordWrap:   cfg.UI.WordWrap,
	})

	opts := []tea.ProgramOption{tea.WithMouseCellMotion()}
	if cfg.UI.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	program := tea.NewProgram(model, opts...)
	sink.Start(program)
	defer sink.Stop()

	if watcher := watchHistory(app, program); watcher != nil {
		defer watcher.Close()
	}

	app.Logger.Info("Starting chat view (model=%s)", mgr.Model())
	_, err = program.Run()
	mgr.Close()
	if err != nil {
		return fmt.Errorf("chat view failed: %w", err)
	}
	return nil
}

// watchHistory reloads the view when another process changes the history
// file. Failing to watch only costs that.
func watchHistory(app *App, program *tea.Program) *transcript.Watcher {
	path := app.History.Path()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		app.Logger.Warn("Not watching %s: %v", path, err)
		return nil
	}

	watcher, err := transcript.NewWatcher(path, transcript.DefaultDebounce, func() {
		program.Send(chat.HistoryChangedMsg{})
	})
	if err != nil {
		app.Logger.Warn("Not watching %s: %v", path, err)
		return nil
	}
	watcher.OnError(func(err error) {
		app.Logger.Warn("History watcher: %v", err)
	})
	if err := watcher.Start(); err != nil {
		app.Logger.Warn("Not watching %s: %v", path, err)
		watcher.Close()
		return nil
	}
	return watcher
}
