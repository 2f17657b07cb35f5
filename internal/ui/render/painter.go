// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"

	"github.com/jeranaias/pursuer/internal/markdown"
	"github.com/jeranaias/pursuer/internal/util"
)

// Painter colors for line mode; dark-background Catppuccin tones that
// degrade through the output's profile.
const (
	paintCode   = "#F38BA8"
	paintLink   = "#60A5FA"
	paintMuted  = "#6C7086"
	paintHeader = "#A78BFA"
)

// Painter writes render ops as ANSI text. A fenced code line is prefixed
// with the gutter when it starts a line.
type Painter struct {
	out       *termenv.Output
	lineStart bool
}

// NewPainter creates a Painter writing to w with the profile detected for w.
func NewPainter(w io.Writer) *Painter {
	return &Painter{out: termenv.NewOutput(w), lineStart: true}
}

// NewPainterWithProfile creates a Painter with a fixed color profile.
func NewPainterWithProfile(w io.Writer, profile termenv.Profile) *Painter {
	return &Painter{out: termenv.NewOutput(w, termenv.WithProfile(profile)), lineStart: true}
}

// Paint returns ops as styled text.
func (p *Painter) Paint(ops []markdown.RenderOp) string {
	var sb strings.Builder
	for _, op := range ops {
		if op.Text == "" {
			continue
		}
		if op.IsLineBreak() {
			sb.WriteString("\n")
			p.lineStart = true
			continue
		}
		if op.Fenced && p.lineStart {
			sb.WriteString(p.out.String(codeGutter).Foreground(p.out.Color(paintMuted)).String())
		}
		sb.WriteString(p.style(op).String())
		if op.Style == markdown.StyleLink && op.Link > 0 {
			sb.WriteString(p.out.String(fmt.Sprintf("[%d]", int(op.Link))).Foreground(p.out.Color(paintMuted)).String())
		}
		p.lineStart = strings.HasSuffix(op.Text, "\n")
	}
	return sb.String()
}

// Write paints ops to the output.
func (p *Painter) Write(ops []markdown.RenderOp) error {
	_, err := io.WriteString(p.out, p.Paint(ops))
	return err
}

func (p *Painter) style(op markdown.RenderOp) termenv.Style {
	s := p.out.String(util.SanitizeTerminal(op.Text))
	switch op.Style {
	case markdown.StyleBold:
		return s.Bold()
	case markdown.StyleItalic:
		return s.Italic()
	case markdown.StyleCode:
		return s.Foreground(p.out.Color(paintCode))
	case markdown.StyleStrikethrough:
		return s.CrossOut()
	case markdown.StyleLink:
		return s.Underline().Foreground(p.out.Color(paintLink))
	}
	if level := op.Style.HeaderLevel(); level > 0 {
		s = s.Foreground(p.out.Color(paintHeader))
		if level <= 3 {
			s = s.Bold()
		}
		return s
	}
	return s
}
