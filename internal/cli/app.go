// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/muesli/termenv"

	"github.com/jeranaias/pursuer/internal/cloud"
	"github.com/jeranaias/pursuer/internal/config"
	"github.com/jeranaias/pursuer/internal/logging"
	"github.com/jeranaias/pursuer/internal/session"
	"github.com/jeranaias/pursuer/internal/telemetry"
	"github.com/jeranaias/pursuer/internal/transcript"
	"github.com/jeranaias/pursuer/internal/util"
)

// App holds what every command needs: configuration, logging, the API
// client, the history store and, when enabled, the telemetry store.
type App struct {
	Args      Args
	Config    *config.Config
	Logger    *logging.Logger
	Client    *cloud.Client
	History   *transcript.Store
	Parser    *transcript.Parser
	Telemetry *telemetry.Store

	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// AppOptions overrides the process streams, mainly for tests.
type AppOptions struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	// MirrorLog copies warnings and errors to Err. The full-screen view
	// turns it off because stderr shares the screen.
	MirrorLog bool
}

// NewApp loads configuration and opens the logger and stores. A config file
// that fails to parse is reported and the defaults are used.
func NewApp(args Args, opts AppOptions) (*App, error) {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}

	cfg, err := loadConfig(args)
	if cfg == nil {
		return nil, err
	}
	if err != nil && !args.Quiet {
		fmt.Fprintf(opts.Err, "Warning: %v (using defaults)\n", err)
	}

	if args.Model != "" {
		if !cfg.API.HasModel(args.Model) {
			return nil, NewUsageError("Available models: "+strings.Join(cfg.API.Models, ", "), "unknown model: %s", args.Model)
		}
		cfg.API.Model = args.Model
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logging.LevelWarn
	}
	if args.Verbose {
		level = logging.LevelDebug
	}
	var mirror io.Writer
	if opts.MirrorLog && !args.Quiet {
		mirror = opts.Err
	}
	logger, err := logging.Open(cfg.Log.File, level, mirror)
	if err != nil {
		fmt.Fprintf(opts.Err, "Warning: %v (logging disabled)\n", err)
		logger = logging.Nop()
	}

	client := cloud.NewClient(cfg.API.APIKey).
		WithBaseURL(cfg.API.BaseURL).
		WithConnectTimeout(cfg.API.ConnectTimeout()).
		WithReadTimeout(cfg.API.ReadTimeout()).
		WithMaxRetries(cfg.API.MaxRetries).
		WithLogger(logger)

	parser := transcript.NewParser(cfg.History.MaxChars)
	parser.UserPrefix = cfg.History.UserPrefix

	app := &App{
		Args:    args,
		Config:  cfg,
		Logger:  logger,
		Client:  client,
		History: transcript.NewStore(cfg.History.File),
		Parser:  parser,
		In:      opts.In,
		Out:     opts.Out,
		Err:     opts.Err,
	}

	if cfg.Telemetry.Enabled {
		store, err := telemetry.Open(cfg.Telemetry.Path)
		if err != nil {
			logger.Warn("telemetry disabled: %v", err)
		} else {
			app.Telemetry = store
		}
	}

	logger.Debug("pursuer %s: model=%s base=%s history=%s", Version, cfg.API.Model, cfg.API.BaseURL, cfg.History.File)
	return app, nil
}

// NewManager creates a session manager posting to sink.
func (a *App) NewManager(sink session.Sink) *session.Manager {
	opts := session.Options{
		Client:     a.Client,
		Sink:       sink,
		Parser:     a.Parser,
		Logger:     a.Logger,
		Model:      a.Config.API.Model,
		Generation: a.Config.Generation,
	}
	if a.Telemetry != nil {
		opts.Recorder = a.Telemetry
	}
	return session.NewManager(opts)
}

// Close releases the stores and the log file.
func (a *App) Close() error {
	var firstErr error
	if a.Telemetry != nil {
		if err := a.Telemetry.Close(); err != nil {
			firstErr = err
		}
	}
	if err := a.Logger.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// colorProfile is the profile for line-mode output: colors only when
// writing to a color-capable stdout.
func (a *App) colorProfile() termenv.Profile {
	if a.Args.NoColor || a.Out != io.Writer(os.Stdout) {
		return termenv.Ascii
	}
	return GetColorProfile()
}

// infof prints an informational line unless --quiet.
func (a *App) infof(format string, args ...any) {
	if a.Args.Quiet {
		return
	}
	fmt.Fprintf(a.Err, format, args...)
}

// loadConfig reads --config when given; a broken explicit file is an error.
// Otherwise the default locations are used and a parse error only warns.
func loadConfig(args Args) (*config.Config, error) {
	if args.Config == "" {
		return config.Load()
	}
	cfg, err := config.LoadFromPath(util.ExpandHome(args.Config))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
