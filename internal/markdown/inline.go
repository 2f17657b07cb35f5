// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package markdown

import "strings"

// =============================================================================
// INLINE FORMATTER
// =============================================================================

// Inline spans are matched by an explicit lexer. At every byte offset, from
// left to right, the span kinds below are tried in order and the first match
// wins. Delimited spans use the nearest closing delimiter (lazy match), and
// emphasis, strikethrough and code need at least one byte of content so a
// stray "**" or "``" stays literal. Bytes that start no span are plain text.
//
//	![alt](url)   image, rendered as "[Image: alt]"
//	[text](url)   link
//	`code`        inline code
//	**bold**
//	*italic*
//	~~strike~~
type spanKind int

const (
	spanImage spanKind = iota
	spanLink
	spanCode
	spanBold
	spanItalic
	spanStrike
)

// span is a matched inline construct covering line[start:end].
type span struct {
	kind  spanKind
	end   int
	text  string
	url   string
	style Style
}

// Format splits one line (no newline) into styled ops. next is the first link
// ID available to this call; the returned ID is the first one still unused.
// Format is pure: the returned links must be registered by the caller.
//
// Concatenating the returned op texts gives the line with markup removed;
// characters are never dropped. Empty spans produce no op.
func Format(line string, next LinkID) ([]RenderOp, []Link, LinkID) {
	if line == "" {
		return nil, nil, next
	}

	var (
		ops   []RenderOp
		links []Link
		plain strings.Builder
	)

	flushPlain := func() {
		if plain.Len() > 0 {
			ops = append(ops, RenderOp{Text: plain.String()})
			plain.Reset()
		}
	}

	for i := 0; i < len(line); {
		sp, ok := matchSpan(line, i)
		if !ok {
			plain.WriteByte(line[i])
			i++
			continue
		}

		switch sp.kind {
		case spanImage:
			plain.WriteString("[Image: " + sp.text + "]")
		case spanLink:
			flushPlain()
			// An empty label still binds an ID but shows nothing; the URL
			// is never displayed.
			if sp.text != "" {
				ops = append(ops, RenderOp{Text: sp.text, Style: StyleLink, Link: next})
			}
			links = append(links, Link{ID: next, Text: sp.text, URL: sp.url})
			next++
		default:
			flushPlain()
			ops = append(ops, RenderOp{Text: sp.text, Style: sp.style})
		}
		i = sp.end
	}
	flushPlain()

	return ops, links, next
}

// matchSpan tries every span kind at offset i in precedence order.
func matchSpan(line string, i int) (span, bool) {
	switch line[i] {
	case '!':
		if strings.HasPrefix(line[i:], "![") {
			if text, url, end, ok := matchBracketed(line, i+1); ok {
				return span{kind: spanImage, end: end, text: text, url: url}, true
			}
		}
	case '[':
		if text, url, end, ok := matchBracketed(line, i); ok {
			return span{kind: spanLink, end: end, text: text, url: url}, true
		}
	case '`':
		if text, end, ok := matchDelimited(line, i, "`"); ok {
			return span{kind: spanCode, end: end, text: text, style: StyleCode}, true
		}
	case '*':
		if text, end, ok := matchDelimited(line, i, "**"); ok {
			return span{kind: spanBold, end: end, text: text, style: StyleBold}, true
		}
		if text, end, ok := matchDelimited(line, i, "*"); ok {
			return span{kind: spanItalic, end: end, text: text, style: StyleItalic}, true
		}
	case '~':
		if text, end, ok := matchDelimited(line, i, "~~"); ok {
			return span{kind: spanStrike, end: end, text: text, style: StyleStrikethrough}, true
		}
	}
	return span{}, false
}

// matchDelimited matches delim + content + delim at offset i with non-empty,
// shortest content. end is the offset just past the closing delimiter.
func matchDelimited(line string, i int, delim string) (text string, end int, ok bool) {
	if !strings.HasPrefix(line[i:], delim) {
		return "", 0, false
	}
	contentStart := i + len(delim)
	if contentStart >= len(line) {
		return "", 0, false
	}
	// Content holds at least one byte, so the search for the closer starts
	// one past contentStart.
	rel := strings.Index(line[contentStart+1:], delim)
	if rel < 0 {
		return "", 0, false
	}
	closeAt := contentStart + 1 + rel
	return line[contentStart:closeAt], closeAt + len(delim), true
}

// matchBracketed matches "[text](url)" with line[i] == '['. The text runs to
// the first "](" and the URL to the first ")" after it; either may be empty.
func matchBracketed(line string, i int) (text, url string, end int, ok bool) {
	if i >= len(line) || line[i] != '[' {
		return "", "", 0, false
	}
	mid := strings.Index(line[i+1:], "](")
	if mid < 0 {
		return "", "", 0, false
	}
	textEnd := i + 1 + mid
	urlStart := textEnd + 2
	closeRel := strings.IndexByte(line[urlStart:], ')')
	if closeRel < 0 {
		return "", "", 0, false
	}
	urlEnd := urlStart + closeRel
	return line[i+1 : textEnd], line[urlStart:urlEnd], urlEnd + 1, true
}
