// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import "strings"

// DefaultUserPrefix marks user lines in the flat transcript.
const DefaultUserPrefix = "You: "

// Parser turns flat transcript text into turns.
type Parser struct {
	// UserPrefix marks a user line. Empty means DefaultUserPrefix.
	UserPrefix string

	// MaxChars is the history budget in runes of serialized turns.
	// Zero or negative disables trimming.
	MaxChars int
}

// NewParser creates a parser with the default user prefix.
func NewParser(maxChars int) *Parser {
	return &Parser{UserPrefix: DefaultUserPrefix, MaxChars: maxChars}
}

// Parse rebuilds the turn history from text. outgoing is the message about to
// be sent: when the last parsed turn is that same user message (already echoed
// on screen) it is dropped once. The oldest turns are then trimmed to fit
// MaxChars. Unrecognizable input yields an empty history.
func (p *Parser) Parse(text, outgoing string) []Turn {
	turns := p.Turns(text)

	if n := len(turns); n > 0 && turns[n-1].Role == RoleUser && sameText(turns[n-1].Content, outgoing) {
		turns = turns[:n-1]
	}

	return Truncate(turns, p.MaxChars)
}

// Turns splits text into turns without dedup or trimming.
func (p *Parser) Turns(text string) []Turn {
	prefix := p.UserPrefix
	if prefix == "" {
		prefix = DefaultUserPrefix
	}

	var (
		turns   []Turn
		role    string
		content []string
	)

	flush := func() {
		if role != "" && len(content) > 0 {
			turns = append(turns, Turn{Role: role, Content: strings.Join(content, " ")})
		}
		role = ""
		content = nil
	}

	add := func(r, s string) {
		if role != r {
			flush()
			role = r
		}
		if s = strings.TrimSpace(s); s != "" {
			content = append(content, s)
		}
	}

	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.TrimSpace(line) == "":
			flush()
		case strings.HasPrefix(line, prefix):
			// Every marker starts a new user turn.
			flush()
			add(RoleUser, line[len(prefix):])
		case role == RoleUser:
			add(RoleUser, line)
		default:
			add(RoleAssistant, line)
		}
	}
	flush()

	return turns
}

// sameText compares two messages the way turns are built: lines are trimmed
// and joined by single spaces, so a multi-line outgoing message matches its
// echo.
func sameText(content, message string) bool {
	return strings.Join(strings.Fields(content), " ") == strings.Join(strings.Fields(message), " ")
}
