// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the full-screen chat view.
//
// The Model owns the display Document and the session Conversation; request
// events reach it as Bubble Tea messages through a ProgramSink, so all
// rendering happens on the program's update goroutine in the order the
// fragments were produced.
//
// # Keys
//
//	Enter       send the message or run a /command
//	Ctrl+L      clear the screen (the history file is kept)
//	PgUp/PgDn   scroll
//	Esc         stop the current response, or quit when idle
//	Ctrl+C      quit
//
// # Commands
//
//	/help, /clear, /clear-history, /links, /open <n>, /copy, /model [name], /quit
package chat
