// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"bytes"
	"encoding/json"
	"unicode/utf8"
)

// Role names used in request payloads.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one speaker-attributed message. Content is never empty.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SerializedSize is the history size measured against the character budget:
// the number of runes in the JSON encoding of turns.
func SerializedSize(turns []Turn) int {
	if len(turns) == 0 {
		return 0
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(turns); err != nil {
		return 0
	}
	// Encode appends a newline that is not part of the payload.
	return utf8.RuneCount(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
}

// Truncate removes turns from the front until the remainder fits maxChars.
// maxChars <= 0 disables the budget. The input slice is not modified.
func Truncate(turns []Turn, maxChars int) []Turn {
	if maxChars <= 0 {
		return turns
	}
	for len(turns) > 0 && SerializedSize(turns) > maxChars {
		turns = turns[1:]
	}
	return turns
}
