// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
)

// Highlight applies syntax highlighting to code and returns one output line
// per input line. ok is false when highlighting was not possible, in which
// case the caller renders the lines unstyled.
func Highlight(code, lang, styleName, formatterName string) (lines []string, ok bool) {
	if formatterName == "" {
		return nil, false
	}

	lexer := lexers.Get(lang)
	if lexer == nil && lang == "" {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get(styleName)
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := formatters.Get(formatterName)
	if formatter == nil {
		return nil, false
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return nil, false
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return nil, false
	}

	// Lexers may add a final newline; whatever follows it is reset codes.
	want := strings.Count(code, "\n") + 1
	out := strings.Split(buf.String(), "\n")
	if len(out) < want {
		return nil, false
	}
	if len(out) > want {
		out[want-1] += strings.Join(out[want:], "")
		out = out[:want]
	}
	return out, true
}
