// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the pursuer TUI.

# Color System (colors.go)

All colors are Lip Gloss AdaptiveColor values, so they follow the terminal's
light or dark background:

	Purple, Cyan, Emerald - accents (headers, links, status)
	Amber, Rose           - warnings and errors
	Surface*, Overlay     - backgrounds and borders
	Text*                 - body, secondary and muted text
	Syntax*               - code colors

# Theme (theme.go)

Theme holds the Lip Gloss styles used by the chat view. Each markdown style
produced by the renderer maps to one Theme style:

	theme := styles.NewTheme(styles.ModeAuto)
	out := theme.OpStyle(markdown.StyleBold).Render("world")

ChromaStyle and ChromaFormatter select the syntax highlighting palette and
terminal formatter for fenced code blocks.
*/
package styles
