// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/pursuer/internal/ui/chat"
)

// helpMarkdown is the help screen for color terminals.
func helpMarkdown() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# pursuer %s\n\nStreaming chat for the terminal.\n\n", Version)
	sb.WriteString("## Commands\n\n")
	sb.WriteString("| Command | Description |\n|---|---|\n")
	for _, row := range [][2]string{
		{"`pursuer`", "Full-screen chat"},
		{"`pursuer chat`", "Line-mode chat in the current terminal"},
		{"`pursuer ask <question> [--save]`", "Answer one question; `-` reads stdin"},
		{"`pursuer history [show|turns|clear|path]`", "Inspect or clear the chat history"},
		{"`pursuer history export [-f md|html|json] [-o PATH]`", "Export the chat history"},
		{"`pursuer config [show|path|init|get|set]`", "Inspect or change settings"},
		{"`pursuer stats [--limit N]`", "Recent request statistics"},
		{"`pursuer stats purge --days N`", "Delete old statistics"},
		{"`pursuer version`", "Version information"},
	} {
		fmt.Fprintf(&sb, "| %s | %s |\n", row[0], row[1])
	}

	sb.WriteString("\n## Global flags\n\n")
	sb.WriteString("- `-m, --model NAME` model for this run\n")
	sb.WriteString("- `--config PATH` use this config file\n")
	sb.WriteString("- `-q, --quiet` suppress informational output\n")
	sb.WriteString("- `-v, --verbose` debug logging\n")
	sb.WriteString("- `--json` JSON output\n")
	sb.WriteString("- `--no-color` disable colors\n")

	sb.WriteString("\n## Chat commands\n\n")
	for _, c := range chat.Commands {
		fmt.Fprintf(&sb, "- `%s` %s\n", c.Usage, c.Description)
	}

	sb.WriteString("\n## Environment\n\n")
	sb.WriteString("`PURSUER_API_KEY`, `PURSUER_MODEL`, `PURSUER_BASE_URL`, `PURSUER_HISTORY_FILE`, ")
	sb.WriteString("`PURSUER_LOG_LEVEL` and `PURSUER_HOME` (default `~/.pursuer`) override the config file.\n")
	return sb.String()
}

// RunHelp writes the help screen: rendered markdown on a color terminal,
// the plain usage text otherwise.
func RunHelp(w io.Writer, color bool) {
	if !color {
		PrintUsage(w)
		return
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(GetTerminalWidth()-2),
	)
	if err != nil {
		PrintUsage(w)
		return
	}
	out, err := renderer.Render(helpMarkdown())
	if err != nil {
		PrintUsage(w)
		return
	}
	fmt.Fprint(w, out)
}
