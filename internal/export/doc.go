// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes the chat history in shareable formats.
//
// # Key Types
//
//   - Document: the history being exported, as text and as turns
//   - Exporter: converts a Document to bytes
//   - Format: md, html or json
//
// # Supported Formats
//
//   - Markdown: one section per turn with a YAML header
//   - HTML: a standalone page rendered with the same markdown rules as the chat view
//   - JSON: the turns with metadata
package export
