// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/quickr1/internal/model"
)

// =============================================================================
// PALETTES
// =============================================================================

// Palette is the set of colors one theme draws with.
type Palette struct {
	// Accents
	Purple  lipgloss.Color
	Cyan    lipgloss.Color
	Emerald lipgloss.Color
	Rose    lipgloss.Color
	Amber   lipgloss.Color
	Link    lipgloss.Color

	// Surfaces
	Surface       lipgloss.Color
	SurfaceDim    lipgloss.Color
	SurfaceBright lipgloss.Color
	Overlay       lipgloss.Color

	// Text
	TextPrimary   lipgloss.Color
	TextSecondary lipgloss.Color
	TextMuted     lipgloss.Color
	TextInverse   lipgloss.Color

	// Speakers
	UserFg      lipgloss.Color
	UserBorder  lipgloss.Color
	AssistantFg lipgloss.Color
	AssistantBg lipgloss.Color
}

// LightPalette is used on light terminal backgrounds.
var LightPalette = Palette{
	Purple:  "#7C3AED",
	Cyan:    "#0891B2",
	Emerald: "#059669",
	Rose:    "#E11D48",
	Amber:   "#D97706",
	Link:    "#2563EB",

	Surface:       "#FFFFFF",
	SurfaceDim:    "#F5F5F5",
	SurfaceBright: "#FAFAFA",
	Overlay:       "#E5E5E5",

	TextPrimary:   "#1F2937",
	TextSecondary: "#6B7280",
	TextMuted:     "#9CA3AF",
	TextInverse:   "#FFFFFF",

	UserFg:      "#1E40AF",
	UserBorder:  "#3B82F6",
	AssistantFg: "#5B4B8A",
	AssistantBg: "#F5F3FF",
}

// DarkPalette is used on dark terminal backgrounds.
var DarkPalette = Palette{
	Purple:  "#A78BFA",
	Cyan:    "#22D3EE",
	Emerald: "#34D399",
	Rose:    "#FB7185",
	Amber:   "#FBBF24",
	Link:    "#60A5FA",

	Surface:       "#1E1E2E",
	SurfaceDim:    "#181825",
	SurfaceBright: "#313244",
	Overlay:       "#313244",

	TextPrimary:   "#CDD6F4",
	TextSecondary: "#A6ADC8",
	TextMuted:     "#6C7086",
	TextInverse:   "#1E1E2E",

	UserFg:      "#E0F2FE",
	UserBorder:  "#3B82F6",
	AssistantFg: "#E9E4F5",
	AssistantBg: "#3B3655",
}

// PaletteFor returns the palette of a theme. Unknown themes get the dark one.
func PaletteFor(theme model.Theme) Palette {
	if theme == model.ThemeLight {
		return LightPalette
	}
	return DarkPalette
}

// =============================================================================
// STATUS INDICATORS
// =============================================================================

// StatusIndicatorSet holds shape-based markers so status never depends on
// color alone.
type StatusIndicatorSet struct {
	Success string
	Error   string
	Warning string
	Info    string
	Pinned  string
	Unread  string
}

// StatusIndicators are ASCII-safe markers.
var StatusIndicators = StatusIndicatorSet{
	Success: "[OK]",
	Error:   "[X]",
	Warning: "[!]",
	Info:    "[i]",
	Pinned:  "[*]",
	Unread:  "(%d)",
}
