// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/jeranaias/pursuer/internal/export"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdChat
	CmdAsk
	CmdHistory
	CmdConfig
	CmdStats
	CmdVersion
	CmdHelp
)

var commandNames = [...]string{
	CmdTUI:     "tui",
	CmdChat:    "chat",
	CmdAsk:     "ask",
	CmdHistory: "history",
	CmdConfig:  "config",
	CmdStats:   "stats",
	CmdVersion: "version",
	CmdHelp:    "help",
}

func (c Command) String() string {
	if c < 0 || int(c) >= len(commandNames) {
		return "unknown"
	}
	return commandNames[c]
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet   bool
	Verbose bool
	NoColor bool
	JSON    bool
	Model   string
	Config  string

	// Command-specific
	Query      string
	Save       bool
	Subcommand string
	ConfigKey  string
	ConfigVal  string
	Limit      int
	Days       int
	Force      bool
	Yes        bool
	Format     string
	Output     string
	Theme      string

	// Raw args (remaining after the command name)
	Raw []string
}

const usageText = `pursuer - streaming chat for the terminal

Usage:
  pursuer [global flags] [command] [args]

Commands:
  (none), tui                     Full-screen chat
  chat                            Line-mode chat in the current terminal
  ask <question>                  Answer one question and exit
    -s, --save                    Append the exchange to the history file
    -                             Read the question from stdin
  history [show]                  Print the history file
  history turns                   Print the parsed conversation turns
  history clear [--yes]           Empty the history file
  history path                    Print the history file path
  history export                  Export the history (stdout by default)
    -f, --format md|html|json     Output format (default md)
    -o, --output PATH             Write to PATH; a directory gets a generated name
        --theme dark|light        HTML color theme
  config [show]                   Show the configuration (API key masked)
  config path                     Print the config file path
  config init [--force]           Write a default config file
  config get <key>                Print one setting
  config set <key> <value>        Change one setting
  stats [--limit N]               Show recent request statistics
  stats purge --days N            Delete statistics older than N days
  version                         Show version information
  help                            Show this help

Global flags:
  -m, --model NAME                Model for this run
      --config PATH               Use this config file (.toml or .json)
  -q, --quiet                     Suppress informational output
  -v, --verbose                   Debug logging
      --json                      JSON output (history turns, stats, config)
      --no-color                  Disable colors

Chat commands:
  /help  /clear  /clear-history  /links  /open N  /copy  /model [NAME]  /quit

Environment:
  PURSUER_API_KEY                 API key (also api_key in config.toml)
  PURSUER_MODEL                   Model override
  PURSUER_BASE_URL                API base URL override
  PURSUER_HISTORY_FILE            History file override
  PURSUER_LOG_LEVEL               Log level override
  PURSUER_HOME                    Config directory (default ~/.pursuer)
  NO_COLOR                        Disable colors

Version: %s
`

// PrintUsage writes the usage text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion writes version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "pursuer version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	fmt.Fprintf(w, "  Go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// =============================================================================
// PARSING
// =============================================================================

// Parse parses command-line arguments (without the program name) and
// returns the command and its args.
func Parse(argv []string) (Command, Args, error) {
	remaining, args := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdTUI, args, nil
	}

	name := remaining[0]
	cmd := strings.ToLower(name)
	remaining = remaining[1:]
	args.Raw = remaining

	switch cmd {
	case "tui":
		return CmdTUI, args, nil

	case "chat", "c":
		return CmdChat, args, parseChatArgs(&args, remaining)

	case "ask", "a":
		return CmdAsk, args, parseAskArgs(&args, remaining)

	case "history", "h":
		return CmdHistory, args, parseHistoryArgs(&args, remaining)

	case "config":
		return CmdConfig, args, parseConfigArgs(&args, remaining)

	case "stats":
		return CmdStats, args, parseStatsArgs(&args, remaining)

	case "version", "--version", "-V":
		return CmdVersion, args, nil

	case "help", "--help", "-h":
		return CmdHelp, args, nil
	}

	if strings.HasPrefix(name, "-") {
		return CmdHelp, args, NewUsageError("Run 'pursuer help' for usage.", "unknown flag: %s", name)
	}
	return CmdHelp, args, NewUsageError("Run 'pursuer help' for usage.", "unknown command: %s", name)
}

// parseGlobalFlags extracts global flags. They are accepted anywhere on the
// command line except after "--".
func parseGlobalFlags(argv []string) ([]string, Args) {
	var remaining []string
	var args Args

	for i := 0; i < len(argv); i++ {
		arg := argv[i]

		switch arg {
		case "--":
			return append(remaining, argv[i:]...), args
		case "-q", "--quiet":
			args.Quiet = true
		case "-v", "--verbose":
			args.Verbose = true
		case "--no-color":
			args.NoColor = true
		case "--json":
			args.JSON = true
		case "-m", "--model":
			if i+1 < len(argv) {
				i++
				args.Model = argv[i]
			}
		case "--config":
			if i+1 < len(argv) {
				i++
				args.Config = argv[i]
			}
		default:
			if strings.HasPrefix(arg, "--model=") {
				args.Model = strings.TrimPrefix(arg, "--model=")
			} else if strings.HasPrefix(arg, "--config=") {
				args.Config = strings.TrimPrefix(arg, "--config=")
			} else {
				remaining = append(remaining, arg)
			}
		}
	}
	return remaining, args
}

func parseChatArgs(args *Args, remaining []string) error {
	p := NewArgParser(remaining)
	if p.PositionalCount() > 0 {
		return NewUsageError("Use 'pursuer ask' for a one-shot question.", "chat takes no arguments, got %q", p.Positional(0))
	}
	return nil
}

func parseAskArgs(args *Args, remaining []string) error {
	p := NewArgParser(remaining, "save", "s")
	args.Save = p.BoolFlag("save", "s")
	args.Query = strings.TrimSpace(p.JoinPositionalArgs(0))
	return nil
}

func parseHistoryArgs(args *Args, remaining []string) error {
	p := NewArgParser(remaining, "yes", "y")
	args.Subcommand = strings.ToLower(p.Subcommand())
	args.Yes = p.BoolFlag("yes", "y")

	switch args.Subcommand {
	case "":
		args.Subcommand = "show"
	case "show", "turns", "clear", "path":
	case "export":
		args.Format = p.Flag("format", "f")
		args.Output = p.Flag("output", "o")
		args.Theme = strings.ToLower(p.FlagOrDefault("theme", "dark"))
		if _, err := export.ParseFormat(args.Format); err != nil {
			return NewUsageError("Formats: md, html, json.", "%v", err)
		}
		if args.Theme != "dark" && args.Theme != "light" {
			return NewUsageError("Themes: dark, light.", "unknown theme: %s", args.Theme)
		}
	default:
		return NewUsageError("Subcommands: show, turns, export, clear, path.", "unknown history subcommand: %s", args.Subcommand)
	}
	return nil
}

func parseConfigArgs(args *Args, remaining []string) error {
	p := NewArgParser(remaining, "force", "f")
	args.Subcommand = strings.ToLower(p.Subcommand())
	args.Force = p.BoolFlag("force", "f")

	switch args.Subcommand {
	case "":
		args.Subcommand = "show"
	case "show", "path", "init":
	case "get":
		args.ConfigKey = p.Positional(1)
		if args.ConfigKey == "" {
			return NewUsageError("Example: pursuer config get api.model", "config get requires a key")
		}
	case "set":
		args.ConfigKey = p.Positional(1)
		args.ConfigVal = p.JoinPositionalArgs(2)
		if args.ConfigKey == "" || p.PositionalCount() < 3 {
			return NewUsageError("Example: pursuer config set ui.theme dark", "config set requires a key and a value")
		}
	default:
		return NewUsageError("Subcommands: show, path, init, get, set.", "unknown config subcommand: %s", args.Subcommand)
	}
	return nil
}

func parseStatsArgs(args *Args, remaining []string) error {
	p := NewArgParser(remaining)
	args.Subcommand = strings.ToLower(p.Subcommand())

	var err error
	if args.Limit, err = p.FlagIntOrDefault("limit", 20); err != nil {
		return NewUsageError("", "%v", err)
	}
	if args.Limit <= 0 {
		return NewUsageError("", "--limit must be positive, got %d", args.Limit)
	}

	switch args.Subcommand {
	case "":
		args.Subcommand = "show"
	case "show":
	case "purge":
		days, ok, err := p.FlagInt("days")
		if err != nil {
			return NewUsageError("", "%v", err)
		}
		if !ok || days < 0 {
			return NewUsageError("Example: pursuer stats purge --days 30", "stats purge requires --days N")
		}
		args.Days = days
	default:
		return NewUsageError("Subcommands: show, purge.", "unknown stats subcommand: %s", args.Subcommand)
	}
	return nil
}
