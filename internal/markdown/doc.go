// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package markdown implements an incremental, line-oriented markdown renderer
// for streamed LLM output.
//
// Model responses arrive as arbitrarily chunked fragments. The renderer buffers
// the trailing partial line, classifies each completed line (code fence, header,
// bullet, numbered item, plain) and turns it into an ordered list of styled
// RenderOps that a display surface appends verbatim.
//
// The dialect is deliberately small: headers "#" through "######", fenced code
// blocks, "*"/"-" bullets, numbered items and the inline spans bold, italic,
// strikethrough, inline code, links and images. Anything else is plain text.
//
// # Key Types
//
//   - LineBuffer: splits fragments into complete lines, holding the partial tail
//   - Format: pure inline tokenizer for a single line
//   - Classifier: line-level rules plus the code fence state machine
//   - Renderer: the stateful entry point (Feed/Finish/Interrupt)
//   - LinkTable: link id to URL bindings captured while rendering
//
// # Usage
//
//	r := markdown.NewRenderer()
//	for fragment := range fragments {
//	    surface.Append(r.Feed(fragment)...)
//	}
//	surface.Append(r.Finish()...)
//
// # Chunk Boundaries
//
// Output depends only on the concatenated input, never on how it was split:
// feeding "ab\n" in one call yields the same ops as feeding "a" then "b\n".
// A Renderer is not safe for concurrent use; callers marshal every Feed onto a
// single goroutine.
package markdown
