// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the pursuer command line: argument parsing, the
// full-screen chat, the line-mode chat REPL and the one-shot, history,
// config and stats commands.
package cli
