// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// ACCENT COLORS
// =============================================================================

// Purple - Primary accent, headers
var Purple = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}

// Cyan - Brand color, prompt, secondary headers
var Cyan = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}

// Emerald - Success states
var Emerald = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}

// Amber - Warnings, in-flight indicator
var Amber = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}

// Rose - Errors
var Rose = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}

// =============================================================================
// SURFACE COLORS
// =============================================================================

// SurfaceDim - Header and status bar background
var SurfaceDim = lipgloss.AdaptiveColor{Light: "#F5F5F5", Dark: "#181825"}

// SurfaceBright - Inline code background
var SurfaceBright = lipgloss.AdaptiveColor{Light: "#EDEDED", Dark: "#313244"}

// Overlay - Borders, separators, code gutter
var Overlay = lipgloss.AdaptiveColor{Light: "#D4D4D4", Dark: "#45475A"}

// =============================================================================
// TEXT COLORS
// =============================================================================

// TextPrimary - Main body text
var TextPrimary = lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#CDD6F4"}

// TextSecondary - Labels
var TextSecondary = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A6ADC8"}

// TextMuted - Hints, link tags, strikethrough
var TextMuted = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}

// LinkColor - Link text; links are also underlined.
var LinkColor = lipgloss.AdaptiveColor{Light: "#2563EB", Dark: "#60A5FA"}

// =============================================================================
// CODE COLORS (Catppuccin Latte/Mocha)
// =============================================================================

var SyntaxCode = lipgloss.AdaptiveColor{Light: "#D20F39", Dark: "#F38BA8"} // Red
var SyntaxBlock = lipgloss.AdaptiveColor{Light: "#4C4F69", Dark: "#CDD6F4"} // Text

// =============================================================================
// HEADER COLORS
// =============================================================================

// HeaderColors are indexed by header level minus one.
var HeaderColors = [6]lipgloss.AdaptiveColor{
	Purple,
	Cyan,
	Emerald,
	Amber,
	TextPrimary,
	TextSecondary,
}
