// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/pursuer/internal/markdown"
)

// Theme modes accepted by NewTheme (config ui.theme).
const (
	ModeAuto  = "auto"
	ModeDark  = "dark"
	ModeLight = "light"
)

// ParseMode validates a theme mode. "" means ModeAuto.
func ParseMode(s string) (string, error) {
	switch m := strings.ToLower(strings.TrimSpace(s)); m {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeDark, ModeLight:
		return m, nil
	default:
		return "", fmt.Errorf("unknown theme %q (want auto, dark or light)", s)
	}
}

// Theme holds the styles of the chat view. It detects the terminal's color
// capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// MARKDOWN STYLES
	// ==========================================================================

	Plain         lipgloss.Style
	Bold          lipgloss.Style
	Italic        lipgloss.Style
	Code          lipgloss.Style
	Strikethrough lipgloss.Style
	Link          lipgloss.Style
	LinkTag       lipgloss.Style
	Headers       [6]lipgloss.Style

	CodeBlock  lipgloss.Style
	CodeGutter lipgloss.Style

	// ==========================================================================
	// CHROME STYLES
	// ==========================================================================

	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	HeaderSubtitle lipgloss.Style

	InputPrompt      lipgloss.Style
	InputPlaceholder lipgloss.Style

	StatusBar    lipgloss.Style
	StatusInfo   lipgloss.Style
	StatusError  lipgloss.Style
	StatusBusy   lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	Spinner lipgloss.Style
}

// NewTheme creates a theme for mode (ModeAuto, ModeDark or ModeLight).
func NewTheme(mode string) *Theme {
	profile := lipgloss.ColorProfile()

	var isDark bool
	switch mode {
	case ModeDark:
		isDark = true
		lipgloss.SetHasDarkBackground(true)
	case ModeLight:
		isDark = false
		lipgloss.SetHasDarkBackground(false)
	default:
		isDark = lipgloss.HasDarkBackground()
	}

	t := &Theme{
		IsDark:       isDark,
		ColorProfile: profile,
	}
	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	// Markdown
	t.Plain = lipgloss.NewStyle()
	t.Bold = lipgloss.NewStyle().Bold(true)
	t.Italic = lipgloss.NewStyle().Italic(true)
	t.Code = lipgloss.NewStyle().
		Foreground(SyntaxCode).
		Background(SurfaceBright)
	t.Strikethrough = lipgloss.NewStyle().
		Strikethrough(true).
		Foreground(TextMuted)

	// ACCESSIBILITY: underline gives links a non-color cue.
	t.Link = lipgloss.NewStyle().
		Foreground(LinkColor).
		Underline(true)
	t.LinkTag = lipgloss.NewStyle().
		Foreground(TextMuted)

	for i := range t.Headers {
		s := lipgloss.NewStyle().Foreground(HeaderColors[i])
		if i < 3 {
			s = s.Bold(true)
		}
		if i == 0 {
			s = s.Underline(true)
		}
		t.Headers[i] = s
	}

	t.CodeBlock = lipgloss.NewStyle().Foreground(SyntaxBlock)
	t.CodeGutter = lipgloss.NewStyle().Foreground(Overlay)

	// Header bar
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)
	t.HeaderSubtitle = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	// Input
	t.InputPrompt = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.InputPlaceholder = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)
	t.StatusInfo = lipgloss.NewStyle().Foreground(Emerald)
	t.StatusError = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)
	t.StatusBusy = lipgloss.NewStyle().Foreground(Amber)
	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)
	t.ShortcutDesc = lipgloss.NewStyle().Foreground(TextMuted)

	t.Spinner = lipgloss.NewStyle().Foreground(Purple)
}

// OpStyle returns the style for a markdown style.
func (t *Theme) OpStyle(s markdown.Style) lipgloss.Style {
	switch s {
	case markdown.StyleBold:
		return t.Bold
	case markdown.StyleItalic:
		return t.Italic
	case markdown.StyleCode:
		return t.Code
	case markdown.StyleStrikethrough:
		return t.Strikethrough
	case markdown.StyleLink:
		return t.Link
	}
	if level := s.HeaderLevel(); level > 0 {
		return t.Headers[level-1]
	}
	return t.Plain
}

// ChromaStyle is the chroma style name for fenced code.
func (t *Theme) ChromaStyle() string {
	if t.IsDark {
		return "catppuccin-mocha"
	}
	return "catppuccin-latte"
}

// ChromaFormatter is the chroma terminal formatter matching the color
// profile, or "" when the terminal has no color.
func (t *Theme) ChromaFormatter() string {
	switch t.ColorProfile {
	case termenv.TrueColor:
		return "terminal16m"
	case termenv.ANSI256:
		return "terminal256"
	case termenv.ANSI:
		return "terminal16"
	default:
		return ""
	}
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // >= 100 columns
)
