// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/pursuer/internal/cloud"
	"github.com/jeranaias/pursuer/internal/config"
)

// =============================================================================
// ARG PARSER TESTS
// =============================================================================

func TestArgParser_Formats(t *testing.T) {
	p := NewArgParser([]string{"show", "--lines", "50", "--since=2024-01-01", "--json", "-n", "3", "extra"})

	assert.Equal(t, "show", p.Subcommand())
	assert.Equal(t, "50", p.Flag("lines"))
	assert.Equal(t, "2024-01-01", p.Flag("--since"))
	assert.Equal(t, "3", p.Flag("n"))
	assert.True(t, p.BoolFlag("json"))
	assert.Equal(t, []string{"show", "extra"}, p.PositionalFrom(0))
	assert.Equal(t, 2, p.PositionalCount())
	assert.Equal(t, "", p.Positional(5))
}

func TestArgParser_DeclaredBoolDoesNotConsume(t *testing.T) {
	p := NewArgParser([]string{"--save", "what", "is", "go"}, "save")
	assert.True(t, p.BoolFlag("save"))
	assert.Equal(t, "what is go", p.JoinPositionalArgs(0))

	// Undeclared, the flag takes the next word as its value.
	p = NewArgParser([]string{"--save", "what"})
	assert.False(t, p.BoolFlag("save"))
	assert.Equal(t, "what", p.Flag("save"))
}

func TestArgParser_ExplicitBool(t *testing.T) {
	p := NewArgParser([]string{"--json=false", "--yes=true"})
	assert.False(t, p.BoolFlag("json"))
	assert.True(t, p.BoolFlag("yes"))
	assert.True(t, p.HasFlag("json"))
}

func TestArgParser_DoubleDashEndsFlags(t *testing.T) {
	p := NewArgParser([]string{"--limit", "2", "--", "--not-a-flag", "-x"})
	assert.Equal(t, "2", p.Flag("limit"))
	assert.Equal(t, []string{"--not-a-flag", "-x"}, p.PositionalFrom(0))
}

func TestArgParser_FlagInt(t *testing.T) {
	p := NewArgParser([]string{"--limit", "7", "--days", "x"})

	n, err := p.FlagIntOrDefault("limit", 20)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	n, err = p.FlagIntOrDefault("missing", 20)
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	_, ok, err := p.FlagInt("days")
	assert.True(t, ok)
	assert.Error(t, err)
}

// =============================================================================
// PARSE TESTS
// =============================================================================

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		argv  []string
		cmd   Command
		check func(t *testing.T, a Args)
	}{
		{"no args", nil, CmdTUI, nil},
		{"tui", []string{"tui"}, CmdTUI, nil},
		{"chat", []string{"chat"}, CmdChat, nil},
		{"ask", []string{"ask", "what", "is", "Go?"}, CmdAsk, func(t *testing.T, a Args) {
			assert.Equal(t, "what is Go?", a.Query)
			assert.False(t, a.Save)
		}},
		{"ask save", []string{"ask", "--save", "hello", "there"}, CmdAsk, func(t *testing.T, a Args) {
			assert.Equal(t, "hello there", a.Query)
			assert.True(t, a.Save)
		}},
		{"ask stdin", []string{"a", "-s", "-"}, CmdAsk, func(t *testing.T, a Args) {
			assert.Equal(t, "-", a.Query)
			assert.True(t, a.Save)
		}},
		{"global model", []string{"-m", "Mistral", "ask", "hi"}, CmdAsk, func(t *testing.T, a Args) {
			assert.Equal(t, "Mistral", a.Model)
			assert.Equal(t, "hi", a.Query)
		}},
		{"model after command", []string{"chat", "--model=X", "-q"}, CmdChat, func(t *testing.T, a Args) {
			assert.Equal(t, "X", a.Model)
			assert.True(t, a.Quiet)
		}},
		{"global config", []string{"--config", "~/alt.toml", "history"}, CmdHistory, func(t *testing.T, a Args) {
			assert.Equal(t, "~/alt.toml", a.Config)
		}},
		{"config equals", []string{"ask", "--config=alt.json", "hi"}, CmdAsk, func(t *testing.T, a Args) {
			assert.Equal(t, "alt.json", a.Config)
			assert.Equal(t, "hi", a.Query)
		}},
		{"history default", []string{"history"}, CmdHistory, func(t *testing.T, a Args) {
			assert.Equal(t, "show", a.Subcommand)
		}},
		{"history clear", []string{"history", "clear", "-y"}, CmdHistory, func(t *testing.T, a Args) {
			assert.Equal(t, "clear", a.Subcommand)
			assert.True(t, a.Yes)
		}},
		{"history export", []string{"history", "export", "-f", "html", "-o", "out.html"}, CmdHistory, func(t *testing.T, a Args) {
			assert.Equal(t, "export", a.Subcommand)
			assert.Equal(t, "html", a.Format)
			assert.Equal(t, "out.html", a.Output)
			assert.Equal(t, "dark", a.Theme)
		}},
		{"config set", []string{"config", "set", "api.models", "a,", "b"}, CmdConfig, func(t *testing.T, a Args) {
			assert.Equal(t, "set", a.Subcommand)
			assert.Equal(t, "api.models", a.ConfigKey)
			assert.Equal(t, "a, b", a.ConfigVal)
		}},
		{"config get", []string{"config", "get", "ui.theme", "--json"}, CmdConfig, func(t *testing.T, a Args) {
			assert.Equal(t, "ui.theme", a.ConfigKey)
			assert.True(t, a.JSON)
		}},
		{"stats", []string{"stats", "--limit", "5"}, CmdStats, func(t *testing.T, a Args) {
			assert.Equal(t, "show", a.Subcommand)
			assert.Equal(t, 5, a.Limit)
		}},
		{"stats purge", []string{"stats", "purge", "--days", "30"}, CmdStats, func(t *testing.T, a Args) {
			assert.Equal(t, "purge", a.Subcommand)
			assert.Equal(t, 30, a.Days)
		}},
		{"version", []string{"--version"}, CmdVersion, nil},
		{"help", []string{"-h"}, CmdHelp, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args, err := Parse(tt.argv)
			require.NoError(t, err)
			assert.Equal(t, tt.cmd, cmd)
			if tt.check != nil {
				tt.check(t, args)
			}
		})
	}
}

func TestParse_UsageErrors(t *testing.T) {
	for _, argv := range [][]string{
		{"frobnicate"},
		{"--bogus"},
		{"chat", "hello"},
		{"history", "delete"},
		{"history", "export", "--format", "pdf"},
		{"history", "export", "--theme", "neon"},
		{"config", "get"},
		{"config", "set", "ui.theme"},
		{"config", "wipe"},
		{"stats", "--limit", "0"},
		{"stats", "--limit", "ten"},
		{"stats", "purge"},
		{"stats", "rebuild"},
	} {
		t.Run(fmt.Sprint(argv), func(t *testing.T) {
			_, _, err := Parse(argv)
			var usageErr *UsageError
			require.ErrorAs(t, err, &usageErr)
			assert.Equal(t, ExitUsageError, GetExitCode(err))
		})
	}
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, "ask", CmdAsk.String())
	assert.Equal(t, "unknown", Command(99).String())
}

// =============================================================================
// ERROR TESTS
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", NewUsageError("", "bad"), ExitUsageError},
		{"config", fmt.Errorf("invalid config: %w", config.ValidateErrors{{Field: "ui.theme", Message: "bad"}}), ExitConfigError},
		{"canceled", &ResponseError{Message: "Request canceled.", Err: context.Canceled}, ExitCanceled},
		{"no key", &ResponseError{Err: cloud.ErrNotConfigured}, ExitAuthError},
		{"unauthorized", &ResponseError{Err: &cloud.APIError{Status: 401}}, ExitAuthError},
		{"server error", &ResponseError{Err: &cloud.APIError{Status: 500}}, ExitGeneralError},
		{"network", &ResponseError{Err: cloud.ErrReadTimeout}, ExitNetworkError},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestDisplayError(t *testing.T) {
	var sb bytesWriter
	DisplayError(&sb, NewUsageError("Try this.", "bad %s", "input"))
	assert.Equal(t, "Error: bad input\n  Try this.\n", sb.String())

	sb = bytesWriter{}
	DisplayError(&sb, &ResponseError{Message: "already shown"})
	assert.Empty(t, sb.String())

	DisplayError(&sb, nil)
	assert.Empty(t, sb.String())
}

type bytesWriter struct{ buf []byte }

func (w *bytesWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *bytesWriter) String() string { return string(w.buf) }

// =============================================================================
// HELP TESTS
// =============================================================================

func TestRunHelp_Plain(t *testing.T) {
	var sb bytesWriter
	RunHelp(&sb, false)
	assert.Contains(t, sb.String(), "pursuer ask")
	assert.Contains(t, sb.String(), "Version: "+Version)
}

func TestHelpMarkdown_ListsChatCommands(t *testing.T) {
	md := helpMarkdown()
	assert.Contains(t, md, "`/open <n>`")
	assert.Contains(t, md, "PURSUER_API_KEY")
}

func TestPrintVersion(t *testing.T) {
	var sb bytesWriter
	PrintVersion(&sb)
	assert.Contains(t, sb.String(), "pursuer version "+Version)
}
