// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/pursuer/internal/markdown"
	"github.com/jeranaias/pursuer/internal/util"
)

// =============================================================================
// COMMAND PARSING
// =============================================================================

// Command is a parsed slash command.
type Command struct {
	Name string   // lower case, without the slash
	Args []string // whitespace separated
}

// ParseCommand parses input starting with "/". ok is false for anything
// else, including a lone "/".
func ParseCommand(input string) (Command, bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return Command{}, false
	}
	fields := strings.Fields(input[1:])
	if len(fields) == 0 {
		return Command{}, false
	}
	return Command{Name: strings.ToLower(fields[0]), Args: fields[1:]}, true
}

// CommandInfo describes a command for /help.
type CommandInfo struct {
	Usage       string
	Description string
}

// Commands lists the slash commands in help order.
var Commands = []CommandInfo{
	{"/help", "Show keys and commands"},
	{"/clear", "Clear the screen; the history file is kept"},
	{"/clear-history", "Delete the saved chat history"},
	{"/links", "List links in the conversation"},
	{"/open <n>", "Copy link n to the clipboard"},
	{"/copy", "Copy the last response to the clipboard"},
	{"/model [name]", "Show or change the model"},
	{"/quit", "Exit"},
}

// =============================================================================
// COMMAND HANDLERS
// =============================================================================

func (m Model) runCommand(cmd Command) (tea.Model, tea.Cmd) {
	switch cmd.Name {
	case "help":
		m.showPanel(m.helpMarkdown())
		return m, nil

	case "clear":
		if m.mgr.Busy() {
			m.setStatus("Wait for the current response to finish", true)
			return m, nil
		}
		m.conv.ClearScreen()
		m.refresh()
		m.setStatus("Screen cleared", false)
		return m, nil

	case "clear-history":
		if m.mgr.Busy() {
			m.setStatus("Wait for the current response to finish", true)
			return m, nil
		}
		if err := m.conv.ClearHistory(); err != nil {
			m.setStatus("Failed to clear history: "+err.Error(), true)
			return m, nil
		}
		m.refresh()
		m.setStatus("History cleared", false)
		return m, nil

	case "links":
		links := m.conv.Renderer().Links().All()
		if len(links) == 0 {
			m.setStatus("No links in this conversation", false)
			return m, nil
		}
		m.showPanel(linksMarkdown(links))
		return m, nil

	case "open":
		return m.openLink(cmd.Args)

	case "copy":
		if m.lastResponse == "" {
			m.setStatus("No response to copy", true)
			return m, nil
		}
		if err := copyToClipboard(m.lastResponse); err != nil {
			m.logger.Warn("Clipboard write failed: %v", err)
			m.setStatus("Failed to copy: "+err.Error(), true)
			return m, nil
		}
		m.setStatus(fmt.Sprintf("Copied response (%d chars)", len([]rune(m.lastResponse))), false)
		return m, nil

	case "model":
		return m.switchModel(cmd.Args)

	case "quit", "exit":
		m.quitting = true
		return m, tea.Quit
	}

	m.setStatus(fmt.Sprintf("Unknown command: /%s (try /help)", cmd.Name), true)
	return m, nil
}

func (m Model) openLink(args []string) (tea.Model, tea.Cmd) {
	if len(args) != 1 {
		m.setStatus("Usage: /open <n>", true)
		return m, nil
	}
	n, err := strconv.Atoi(strings.Trim(args[0], "[]#"))
	if err != nil || n <= 0 {
		m.setStatus("Invalid link number: "+args[0], true)
		return m, nil
	}

	url, ok := m.conv.Renderer().Links().Resolve(markdown.LinkID(n))
	if !ok {
		m.setStatus(fmt.Sprintf("No link %d", n), true)
		return m, nil
	}
	if err := copyToClipboard(url); err != nil {
		m.logger.Warn("Clipboard write failed: %v", err)
		m.setStatus(fmt.Sprintf("Link %d: %s", n, url), false)
		return m, nil
	}
	m.logger.Debug("Link %d activated: %s", n, url)
	m.setStatus(fmt.Sprintf("Copied link %d: %s", n, url), false)
	return m, nil
}

func (m Model) switchModel(args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		var sb strings.Builder
		sb.WriteString("# Models\n\n")
		for _, name := range m.models {
			if name == m.mgr.Model() {
				fmt.Fprintf(&sb, "- **%s** (current)\n", name)
			} else {
				fmt.Fprintf(&sb, "- %s\n", name)
			}
		}
		sb.WriteString("\nSwitch with `/model <name>`.\n")
		m.showPanel(sb.String())
		return m, nil
	}

	name := args[0]
	if len(m.models) > 0 && !contains(m.models, name) {
		m.setStatus("Unknown model: "+name, true)
		return m, nil
	}
	m.mgr.SetModel(name)
	m.logger.Info("Model switched to %s", name)
	m.setStatus("Model: "+name, false)
	return m, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// =============================================================================
// PANELS
// =============================================================================

func (m Model) helpMarkdown() string {
	var sb strings.Builder
	sb.WriteString("# Help\n\n## Keys\n\n")
	for _, b := range m.keys.FullHelp() {
		h := b.Help()
		fmt.Fprintf(&sb, "- `%s` %s\n", h.Key, h.Desc)
	}
	sb.WriteString("\n## Commands\n\n")
	for _, c := range Commands {
		fmt.Fprintf(&sb, "- `%s` %s\n", c.Usage, c.Description)
	}
	sb.WriteString("\nPress Esc to close this panel.\n")
	return sb.String()
}

func linksMarkdown(links []markdown.Link) string {
	var sb strings.Builder
	sb.WriteString("# Links\n\n")
	for _, l := range links {
		text := util.TruncateWidth(l.Text, 40)
		fmt.Fprintf(&sb, "- **[%d]** %s `%s`\n", int(l.ID), text, l.URL)
	}
	sb.WriteString("\nCopy one with `/open <n>`. Press Esc to close.\n")
	return sb.String()
}
