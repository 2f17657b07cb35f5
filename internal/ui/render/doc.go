// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns markdown render ops into terminal output.
//
// Document is the append-only display surface of the chat view. It keeps the
// plain text of everything appended (what is saved to the transcript) next to
// the styled lines, and renders incrementally: only lines touched since the
// last View are re-rendered.
//
// Painter writes ops as ANSI text for the line-mode REPL, where output is
// printed as it arrives instead of being laid out in a viewport.
package render
