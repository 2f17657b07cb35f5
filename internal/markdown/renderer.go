// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package markdown

// =============================================================================
// STREAM RENDERER
// =============================================================================

// ResponseTerminator is fed by Finish. It completes a pending partial line and
// leaves a blank gap before the next turn.
const ResponseTerminator = "\n\n\n"

// Renderer turns a stream of fragments into render ops. It owns the pending
// partial line, the code fence state and the link ID counter, and must only
// be driven from one goroutine.
type Renderer struct {
	buf   LineBuffer
	cls   Classifier
	next  LinkID
	links *LinkTable
}

// NewRenderer creates a renderer with an empty link table.
func NewRenderer() *Renderer {
	return &Renderer{
		next:  1,
		links: NewLinkTable(),
	}
}

// Feed consumes one fragment and returns the ops for every line it completed.
// The partial tail is held until a later fragment completes it.
func (r *Renderer) Feed(fragment string) []RenderOp {
	var ops []RenderOp
	for _, line := range r.buf.Feed(fragment) {
		lineOps, links, next := r.cls.Classify(line, r.next)
		r.next = next
		r.links.Add(links...)
		ops = append(ops, lineOps...)
	}
	return ops
}

// Finish marks the end of a response. It feeds ResponseTerminator, so a
// pending partial line is rendered as a normal line, and closes any code
// block left open.
func (r *Renderer) Finish() []RenderOp {
	ops := r.Feed(ResponseTerminator)
	r.cls.Reset()
	return ops
}

// FlushRaw returns the pending partial line as unstyled text, without
// classifying it, and clears it. It returns nil when nothing is pending.
func (r *Renderer) FlushRaw() []RenderOp {
	p := r.buf.Flush()
	if p == "" {
		return nil
	}
	return []RenderOp{{Text: p}}
}

// Interrupt ends a response that failed midway. The pending partial line is
// kept as raw text on its own line, the code block is closed and message is
// rendered as ordinary assistant text followed by a blank line.
func (r *Renderer) Interrupt(message string) []RenderOp {
	ops := r.FlushRaw()
	if ops != nil {
		ops = append(ops, LineBreak)
	}
	r.cls.Reset()
	if message != "" {
		ops = append(ops, r.Feed(message+"\n\n")...)
	}
	r.buf.Reset()
	r.cls.Reset()
	return ops
}

// Pending returns the partial line not yet rendered.
func (r *Renderer) Pending() string {
	return r.buf.Pending()
}

// InCodeBlock reports whether a fenced block is open.
func (r *Renderer) InCodeBlock() bool {
	return r.cls.InCodeBlock()
}

// Links returns the renderer's link table.
func (r *Renderer) Links() *LinkTable {
	return r.links
}

// NextLinkID returns the ID the next link will receive.
func (r *Renderer) NextLinkID() LinkID {
	return r.next
}

// Reset drops the partial line and block state. Link bindings and the ID
// counter survive so previously rendered links stay resolvable.
func (r *Renderer) Reset() {
	r.buf.Reset()
	r.cls.Reset()
}
