// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// UNICODE: widths come from go-runewidth so CJK and emoji take two cells.

// TruncateWidth shortens s to at most width terminal cells, ending in "…"
// when anything was cut.
func TruncateWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

// PadWidth right-pads s with spaces to width cells.
func PadWidth(s string, width int) string {
	return runewidth.FillRight(s, width)
}

// StringWidth returns the number of terminal cells s occupies.
func StringWidth(s string) int {
	return runewidth.StringWidth(s)
}

// SECURITY: model output must not drive the terminal.
//
// SanitizeTerminal replaces C0 control characters and DEL with '?' so streamed
// text cannot inject escape sequences. Newlines and tabs are kept.
func SanitizeTerminal(s string) string {
	clean := true
	for _, r := range s {
		if needsSanitizing(r) {
			clean = false
			break
		}
	}
	if clean {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if needsSanitizing(r) {
			b.WriteByte('?')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func needsSanitizing(r rune) bool {
	if r == '\n' || r == '\t' {
		return false
	}
	return r < 0x20 || r == 0x7f || (r >= 0x80 && r < 0xa0)
}
