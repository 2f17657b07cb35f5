// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/pursuer/internal/ui/styles"
	"github.com/jeranaias/pursuer/internal/util"
)

func (m Model) renderChat() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.theme.CodeGutter.Render(strings.Repeat("─", max(m.width, 1))),
		m.input.View(),
		m.renderStatusBar(),
	)
}

func (m Model) renderHeader() string {
	width := max(m.width, 1)
	title := m.theme.HeaderTitle.Render("pursuer")
	model := m.theme.HeaderSubtitle.Render(util.TruncateWidth(m.mgr.Model(), max(width-12, 1)))
	return m.theme.Header.Width(width).MaxWidth(width).MaxHeight(1).Render(title + "  " + model)
}

func (m Model) renderStatusBar() string {
	width := max(m.width, 1)
	text := util.TruncateWidth(util.SanitizeTerminal(m.status), max(width-2, 1))

	var content string
	switch {
	case m.requestID != "":
		elapsed := time.Since(m.started).Truncate(100 * time.Millisecond)
		content = m.spinner.View() + m.theme.StatusBusy.Render(fmt.Sprintf(" Receiving... %v", elapsed))
	case m.status != "" && m.statusErr:
		content = m.theme.StatusError.Render(text)
	case m.status != "":
		content = m.theme.StatusInfo.Render(text)
	default:
		var parts []string
		for _, b := range m.keys.ShortHelp() {
			h := b.Help()
			parts = append(parts, m.theme.ShortcutKey.Render(h.Key)+" "+m.theme.ShortcutDesc.Render(h.Desc))
		}
		content = strings.Join(parts, "  ")
	}

	return m.theme.StatusBar.Width(width).MaxWidth(width).MaxHeight(1).Render(content)
}

// renderMarkdown renders panel text with glamour, falling back to the raw
// markdown when rendering fails.
func renderMarkdown(md string, width int, theme *styles.Theme) string {
	style := "light"
	switch {
	case theme.ColorProfile == termenv.Ascii:
		style = "notty"
	case theme.IsDark:
		style = "dark"
	}

	wrap := width - 4
	if wrap < 20 {
		wrap = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
