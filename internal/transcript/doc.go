// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transcript rebuilds chat turns from the flat conversation text and
// persists that text between sessions.
//
// The flat transcript (what the chat window shows) is the only stored form of
// a conversation. Before every request it is parsed back into role-tagged
// turns, the echo of the message being sent is dropped and the oldest turns
// are trimmed until the history fits the character budget.
//
// # Key Types
//
//   - Turn: one role-tagged message
//   - Parser: flat text to turns, with dedup and trimming
//   - Store: load/save/clear of the transcript file
//   - Watcher: fsnotify-based notification of external edits
//
// # Format
//
// User lines start with "You: ". Any other non-blank line belongs to the
// assistant. A blank line ends the current turn; continuation lines are
// joined to their turn with a single space.
package transcript
