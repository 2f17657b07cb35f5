// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package markdown

import (
	"fmt"
	"strings"
)

// =============================================================================
// STYLES
// =============================================================================

// Style is the named tag attached to a RenderOp. The zero value is plain text.
type Style int

const (
	StylePlain Style = iota
	StyleBold
	StyleItalic
	StyleCode
	StyleStrikethrough
	StyleLink
	StyleH1
	StyleH2
	StyleH3
	StyleH4
	StyleH5
	StyleH6
)

var styleNames = [...]string{
	StylePlain:         "plain",
	StyleBold:          "bold",
	StyleItalic:        "italic",
	StyleCode:          "code",
	StyleStrikethrough: "strikethrough",
	StyleLink:          "link",
	StyleH1:            "h1",
	StyleH2:            "h2",
	StyleH3:            "h3",
	StyleH4:            "h4",
	StyleH5:            "h5",
	StyleH6:            "h6",
}

// String returns the tag name ("bold", "h3", ...).
func (s Style) String() string {
	if s < 0 || int(s) >= len(styleNames) {
		return fmt.Sprintf("style(%d)", int(s))
	}
	return styleNames[s]
}

// HeaderStyle returns the style for a header level in 1..6.
// Levels outside that range map to StylePlain.
func HeaderStyle(level int) Style {
	if level < 1 || level > 6 {
		return StylePlain
	}
	return StyleH1 + Style(level-1)
}

// HeaderLevel returns 1..6 for header styles and 0 otherwise.
func (s Style) HeaderLevel() int {
	if s >= StyleH1 && s <= StyleH6 {
		return int(s-StyleH1) + 1
	}
	return 0
}

// =============================================================================
// RENDER OPERATIONS
// =============================================================================

// LinkID identifies a rendered link. IDs start at 1; zero means "no link".
type LinkID int

// Tag returns the surface tag name for the link, e.g. "link-3".
func (id LinkID) Tag() string {
	return fmt.Sprintf("link-%d", int(id))
}

// RenderOp is one styled run of text destined for the display surface.
// Text is never empty. A line break is an op whose Text is "\n".
type RenderOp struct {
	Text  string
	Style Style

	// Link is set for StyleLink ops and resolves through the renderer's LinkTable.
	Link LinkID

	// Fenced marks a StyleCode op that is a whole line of a fenced block.
	// Lang is the fence language, possibly empty.
	Fenced bool
	Lang   string
}

// LineBreak is the op that terminates every rendered line.
var LineBreak = RenderOp{Text: "\n"}

// IsLineBreak reports whether op is a bare line break.
func (op RenderOp) IsLineBreak() bool {
	return op.Text == "\n" && op.Style == StylePlain
}

// String is a debugging representation like `bold("world")`.
func (op RenderOp) String() string {
	if op.Style == StyleLink {
		return fmt.Sprintf("%s#%d(%q)", op.Style, int(op.Link), op.Text)
	}
	return fmt.Sprintf("%s(%q)", op.Style, op.Text)
}

// PlainText concatenates the text of ops, ignoring styles.
func PlainText(ops []RenderOp) string {
	var sb strings.Builder
	for _, op := range ops {
		sb.WriteString(op.Text)
	}
	return sb.String()
}
