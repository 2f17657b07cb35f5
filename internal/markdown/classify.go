// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package markdown

import (
	"regexp"
	"strings"
)

// =============================================================================
// LINE CLASSIFIER
// =============================================================================

const (
	fenceMarker = "```"

	// BulletGlyph replaces "* " and "- " list markers.
	BulletGlyph = "  • "
)

var (
	// numberedPrefix matches "12. " style list markers.
	numberedPrefix = regexp.MustCompile(`^\d+\.\s`)

	// headerExample matches list content like "H2: ## Title", a header shown
	// as an example inside a list item.
	headerExample = regexp.MustCompile(`^(H[1-6]: )(#{1,6} .+)$`)
)

// Classifier applies the line-level rules to complete lines and tracks whether
// the current line is inside a fenced code block.
type Classifier struct {
	inCodeBlock bool
	lang        string
}

// InCodeBlock reports whether the next line is inside a fenced block.
func (c *Classifier) InCodeBlock() bool {
	return c.inCodeBlock
}

// Lang returns the language tag of the open fence, if any.
func (c *Classifier) Lang() string {
	return c.lang
}

// Reset leaves any open code block.
func (c *Classifier) Reset() {
	c.inCodeBlock = false
	c.lang = ""
}

// Classify renders one complete line. Rules, first match wins:
//
//  1. a trimmed line starting with ``` toggles the code block; closing emits
//     a line break, opening emits nothing and records the language tag
//  2. inside a code block the line is emitted verbatim as code
//  3. "# " through "###### " headers, most hashes checked first
//  4. "* " and "- " bullets
//  5. "1. " numbered items
//  6. anything else is inline formatted
//
// No rule fails; unknown constructs fall through to rule 6.
func (c *Classifier) Classify(line string, next LinkID) ([]RenderOp, []Link, LinkID) {
	trimmed := strings.TrimSpace(line)

	if strings.HasPrefix(trimmed, fenceMarker) {
		if c.inCodeBlock {
			c.Reset()
			return []RenderOp{LineBreak}, nil, next
		}
		c.inCodeBlock = true
		c.lang = strings.TrimSpace(strings.TrimLeft(trimmed, "`"))
		return nil, nil, next
	}

	if c.inCodeBlock {
		if line == "" {
			return []RenderOp{LineBreak}, nil, next
		}
		return []RenderOp{{Text: line, Style: StyleCode, Fenced: true, Lang: c.lang}, LineBreak}, nil, next
	}

	if ops, ok := classifyHeader(line); ok {
		return ops, nil, next
	}

	if strings.HasPrefix(trimmed, "* ") || strings.HasPrefix(trimmed, "- ") {
		return c.listItem(BulletGlyph, trimmed[2:], next)
	}

	if m := numberedPrefix.FindString(trimmed); m != "" {
		return c.listItem(m, trimmed[len(m):], next)
	}

	ops, links, next := Format(line, next)
	return append(ops, LineBreak), links, next
}

// classifyHeader matches "###### " down to "# " on the raw line.
func classifyHeader(line string) ([]RenderOp, bool) {
	for level := 6; level >= 1; level-- {
		marker := strings.Repeat("#", level) + " "
		if !strings.HasPrefix(line, marker) {
			continue
		}
		text := line[len(marker):]
		if text == "" {
			return []RenderOp{LineBreak}, true
		}
		return []RenderOp{{Text: text, Style: HeaderStyle(level)}, LineBreak}, true
	}
	return nil, false
}

// listItem emits the marker then the content. Content of the form "H2: ## x"
// keeps its label plain and classifies the remainder as its own line; the
// item's own line break follows the one that line ends with.
func (c *Classifier) listItem(marker, content string, next LinkID) ([]RenderOp, []Link, LinkID) {
	ops := []RenderOp{{Text: marker}}

	if m := headerExample.FindStringSubmatch(content); m != nil {
		ops = append(ops, RenderOp{Text: m[1]})
		rest, links, next := c.Classify(m[2], next)
		ops = append(ops, rest...)
		return append(ops, LineBreak), links, next
	}

	inline, links, next := Format(content, next)
	ops = append(ops, inline...)
	return append(ops, LineBreak), links, next
}
