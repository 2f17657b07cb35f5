// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package markdown

import "strings"

// LineBuffer accumulates fragments and yields complete lines.
// The pending partial line never contains a newline.
type LineBuffer struct {
	pending string
}

// Feed appends fragment and returns every line it completes, in order and
// without their trailing newline. A fragment without a newline only grows the
// pending line.
func (b *LineBuffer) Feed(fragment string) []string {
	if fragment == "" {
		return nil
	}
	if !strings.Contains(fragment, "\n") {
		b.pending += fragment
		return nil
	}

	parts := strings.Split(b.pending+fragment, "\n")
	b.pending = parts[len(parts)-1]
	return parts[:len(parts)-1]
}

// Pending returns the partial line waiting for its newline.
func (b *LineBuffer) Pending() string {
	return b.pending
}

// Flush returns the pending partial line and clears it.
// The caller decides whether it is rendered at all.
func (b *LineBuffer) Flush() string {
	p := b.pending
	b.pending = ""
	return p
}

// Reset discards the pending partial line.
func (b *LineBuffer) Reset() {
	b.pending = ""
}
