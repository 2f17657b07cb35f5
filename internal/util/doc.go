// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small file and text helpers shared by pursuer's
// packages: crash-safe file replacement, display-width aware truncation and
// terminal-safe text.
package util
