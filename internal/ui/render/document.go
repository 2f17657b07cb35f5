// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"fmt"
	"strings"

	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"

	"github.com/jeranaias/pursuer/internal/markdown"
	"github.com/jeranaias/pursuer/internal/ui/styles"
	"github.com/jeranaias/pursuer/internal/util"
)

// codeGutter prefixes every line of a fenced code block.
const (
	codeGutter      = "│ "
	codeGutterWidth = 2
)

// Options controls how a Document renders.
type Options struct {
	Highlight bool // chroma highlighting of fenced code
	WordWrap  bool // wrap prose at the view width
}

// line is one logical line: the ops between two line breaks.
type line struct {
	ops    []markdown.RenderOp
	closed bool
}

func (l *line) fenced() bool {
	return len(l.ops) > 0 && l.ops[0].Fenced
}

func (l *line) blank() bool {
	return len(l.ops) == 0
}

// Document is an append-only styled text surface. It is not safe for
// concurrent use; the chat view owns it.
type Document struct {
	theme *styles.Theme
	opts  Options

	plain strings.Builder
	lines []*line

	width     int
	cache     []string // rendered output per logical line
	dirtyFrom int
}

// NewDocument creates an empty Document.
func NewDocument(theme *styles.Theme, opts Options) *Document {
	if theme == nil {
		theme = styles.NewTheme(styles.ModeAuto)
	}
	return &Document{theme: theme, opts: opts}
}

// Append adds ops in order.
func (d *Document) Append(ops []markdown.RenderOp) {
	for _, op := range ops {
		d.appendOp(op)
	}
}

func (d *Document) appendOp(op markdown.RenderOp) {
	if op.Text == "" {
		return
	}
	d.plain.WriteString(op.Text)

	parts := strings.Split(op.Text, "\n")
	for i, part := range parts {
		if part != "" {
			seg := op
			seg.Text = part
			cur := d.current()
			cur.ops = append(cur.ops, seg)
			d.markDirty(len(d.lines) - 1)
		}
		if i < len(parts)-1 {
			d.current().closed = true
			d.markDirty(len(d.lines) - 1)
		}
	}
}

// current returns the open last line, starting a new one if needed.
func (d *Document) current() *line {
	if n := len(d.lines); n > 0 && !d.lines[n-1].closed {
		return d.lines[n-1]
	}
	d.lines = append(d.lines, &line{})
	return d.lines[len(d.lines)-1]
}

func (d *Document) markDirty(i int) {
	if i < d.dirtyFrom {
		d.dirtyFrom = i
	}
}

// Text returns the plain text of everything appended.
func (d *Document) Text() string {
	return d.plain.String()
}

// Len returns the number of logical lines.
func (d *Document) Len() int {
	return len(d.lines)
}

// Clear empties the document.
func (d *Document) Clear() {
	d.plain.Reset()
	d.lines = nil
	d.cache = nil
	d.dirtyFrom = 0
}

// SetOptions changes rendering options and re-renders on the next View.
func (d *Document) SetOptions(opts Options) {
	d.opts = opts
	d.cache = nil
	d.dirtyFrom = 0
}

// View renders the document for the given width. A width of zero or less
// disables wrapping.
func (d *Document) View(width int) string {
	if width != d.width {
		d.width = width
		d.cache = nil
		d.dirtyFrom = 0
	}

	start := d.dirtyFrom
	if start > len(d.cache) {
		start = len(d.cache)
	}
	// A code block is highlighted as a whole.
	for start > 0 && start < len(d.lines) && (d.lines[start].fenced() || d.lines[start].blank()) &&
		(d.lines[start-1].fenced() || d.lines[start-1].blank()) {
		start--
	}
	d.cache = d.cache[:start]

	for i := start; i < len(d.lines); {
		if d.lines[i].fenced() {
			end := i
			for end < len(d.lines) && (d.lines[end].fenced() || d.lines[end].blank()) {
				end++
			}
			for d.lines[end-1].blank() {
				end--
			}
			d.cache = append(d.cache, d.renderCode(d.lines[i:end])...)
			i = end
			continue
		}
		d.cache = append(d.cache, d.renderLine(d.lines[i]))
		i++
	}
	d.dirtyFrom = len(d.lines)

	return strings.Join(d.cache, "\n")
}

// renderLine styles one line of prose.
func (d *Document) renderLine(l *line) string {
	var sb strings.Builder
	for _, op := range l.ops {
		text := util.SanitizeTerminal(op.Text)
		sb.WriteString(d.theme.OpStyle(op.Style).Render(text))
		if op.Style == markdown.StyleLink && op.Link > 0 {
			sb.WriteString(d.theme.LinkTag.Render(fmt.Sprintf("[%d]", int(op.Link))))
		}
	}

	out := sb.String()
	if d.opts.WordWrap && d.width > 0 {
		out = wrap.String(wordwrap.String(out, d.width), d.width)
	}
	return out
}

// renderCode renders a run of fenced and blank lines, one output entry per
// logical line.
func (d *Document) renderCode(lines []*line) []string {
	texts := make([]string, len(lines))
	lang := ""
	for i, l := range lines {
		if l.fenced() {
			texts[i] = util.SanitizeTerminal(markdown.PlainText(l.ops))
			if lang == "" {
				lang = l.ops[0].Lang
			}
		}
	}

	var highlighted []string
	ok := false
	if d.opts.Highlight {
		highlighted, ok = Highlight(strings.Join(texts, "\n"), lang, d.theme.ChromaStyle(), d.theme.ChromaFormatter())
	}

	gutter := d.theme.CodeGutter.Render(codeGutter)
	out := make([]string, len(lines))
	for i := range lines {
		text := texts[i]
		if ok {
			text = highlighted[i]
		} else {
			text = d.theme.CodeBlock.Render(text)
		}
		if d.width > codeGutterWidth {
			text = truncate.StringWithTail(text, uint(d.width-codeGutterWidth), "…")
		}
		out[i] = gutter + text
	}
	return out
}
