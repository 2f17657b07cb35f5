// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"
	"os"
	"sync"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// =============================================================================
// TTY DETECTION
// =============================================================================

// IsTTY returns true if stdin is a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// IsStdoutTTY returns true if stdout is a terminal.
func IsStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// inIsTTY reports whether r is a terminal. Readers that are not files never
// are.
func inIsTTY(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// =============================================================================
// TERMINAL SIZE
// =============================================================================

const (
	// DefaultTerminalWidth is the fallback width when detection fails
	DefaultTerminalWidth = 80

	// MinTerminalWidth is the minimum width used for wrapping
	MinTerminalWidth = 40
)

// GetTerminalWidth returns the stdout terminal width, at least
// MinTerminalWidth, or DefaultTerminalWidth when it cannot be determined.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return DefaultTerminalWidth
	}
	if width < MinTerminalWidth {
		return MinTerminalWidth
	}
	return width
}

// =============================================================================
// COLOR CONTROL
// =============================================================================

var (
	colorsOnce    sync.Once
	colorsEnabled bool
	colorsForced  bool
)

// DisableColors turns color output off for the rest of the process.
func DisableColors() {
	colorsOnce.Do(func() {})
	colorsEnabled = false
	colorsForced = false
}

// ColorsEnabled reports whether stdout should get ANSI colors. NO_COLOR
// disables them, FORCE_COLOR enables them even when piped.
func ColorsEnabled() bool {
	colorsOnce.Do(func() {
		if _, ok := os.LookupEnv("NO_COLOR"); ok {
			return
		}
		if v := os.Getenv("FORCE_COLOR"); v != "" && v != "0" {
			colorsEnabled = true
			colorsForced = true
			return
		}
		colorsEnabled = IsStdoutTTY() && os.Getenv("TERM") != "dumb"
	})
	return colorsEnabled
}

// GetColorProfile returns the termenv profile for stdout.
func GetColorProfile() termenv.Profile {
	if !ColorsEnabled() {
		return termenv.Ascii
	}
	profile := termenv.NewOutput(os.Stdout).EnvColorProfile()
	if colorsForced && profile == termenv.Ascii {
		return termenv.ANSI256
	}
	return profile
}
