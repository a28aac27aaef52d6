// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/quickr1/internal/model"
)

// Theme holds all the styled components for one color scheme.
type Theme struct {
	Name    model.Theme
	Palette Palette

	// Layout width, 0 when unknown
	Width int

	// ==========================================================================
	// HEADER STYLES
	// ==========================================================================

	Title    lipgloss.Style
	Subtitle lipgloss.Style

	// ==========================================================================
	// MESSAGE STYLES
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	UserText       lipgloss.Style
	AssistantText  lipgloss.Style
	MetricsFooter  lipgloss.Style
	Prompt         lipgloss.Style
	Thinking       lipgloss.Style

	// ==========================================================================
	// CONVERSATION LIST STYLES
	// ==========================================================================

	ListTitle        lipgloss.Style
	ListItem         lipgloss.Style
	ListItemSelected lipgloss.Style
	ListMeta         lipgloss.Style
	ListPreview      lipgloss.Style
	Unread           lipgloss.Style
	Pinned           lipgloss.Style

	// ==========================================================================
	// STATUS STYLES
	// ==========================================================================

	SuccessStyle lipgloss.Style
	ErrorStyle   lipgloss.Style
	WarningStyle lipgloss.Style
	InfoStyle    lipgloss.Style
	Muted        lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
}

// NewTheme creates a theme with all styles configured. Unknown names fall
// back to dark.
func NewTheme(name model.Theme) *Theme {
	if !name.Valid() {
		name = model.ThemeDark
	}
	t := &Theme{Name: name, Palette: PaletteFor(name)}
	t.initStyles()
	return t
}

// Detect reports the terminal background as a theme.
func Detect() model.Theme {
	if termenv.HasDarkBackground() {
		return model.ThemeDark
	}
	return model.ThemeLight
}

// Resolve picks the theme to start with: a saved preference wins, then the
// configured one, then the terminal background.
func Resolve(saved model.Theme, hasSaved bool, configured string) model.Theme {
	if hasSaved && saved.Valid() {
		return saved
	}
	if t := model.Theme(configured); t.Valid() {
		return t
	}
	return Detect()
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	p := t.Palette

	t.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.Purple)

	t.Subtitle = lipgloss.NewStyle().
		Foreground(p.TextSecondary).
		Italic(true)

	// Messages
	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.UserBorder)

	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.Purple)

	t.UserText = lipgloss.NewStyle().
		Foreground(p.TextPrimary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(p.UserBorder).
		PaddingLeft(1)

	t.AssistantText = lipgloss.NewStyle().
		Foreground(p.AssistantFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(p.Purple).
		PaddingLeft(1)

	t.MetricsFooter = lipgloss.NewStyle().
		Foreground(p.TextMuted).
		Italic(true)

	t.Prompt = lipgloss.NewStyle().
		Foreground(p.Cyan).
		Bold(true)

	t.Thinking = lipgloss.NewStyle().
		Foreground(p.TextSecondary).
		Italic(true)

	// Conversation list
	t.ListTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.TextInverse).
		Background(p.Purple).
		Padding(0, 1)

	t.ListItem = lipgloss.NewStyle().
		Foreground(p.TextPrimary).
		PaddingLeft(2)

	t.ListItemSelected = lipgloss.NewStyle().
		Foreground(p.Purple).
		Bold(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(p.Purple).
		PaddingLeft(1)

	t.ListMeta = lipgloss.NewStyle().
		Foreground(p.TextMuted)

	t.ListPreview = lipgloss.NewStyle().
		Foreground(p.TextSecondary)

	t.Unread = lipgloss.NewStyle().
		Foreground(p.TextInverse).
		Background(p.Cyan).
		Bold(true)

	t.Pinned = lipgloss.NewStyle().
		Foreground(p.Amber)

	// Status
	t.SuccessStyle = lipgloss.NewStyle().
		Foreground(p.Emerald).
		Bold(true)

	t.ErrorStyle = lipgloss.NewStyle().
		Foreground(p.Rose).
		Bold(true)

	t.WarningStyle = lipgloss.NewStyle().
		Foreground(p.Amber).
		Bold(true)

	t.InfoStyle = lipgloss.NewStyle().
		Foreground(p.Link)

	t.Muted = lipgloss.NewStyle().
		Foreground(p.TextMuted)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(p.Cyan).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(p.TextMuted)
}

// SetSize updates the layout width.
func (t *Theme) SetSize(width int) {
	t.Width = width
}

// =============================================================================
// RENDER HELPERS
// =============================================================================

// RenderSuccess renders a success message with its shape indicator.
func (t *Theme) RenderSuccess(message string) string {
	return t.SuccessStyle.Render(StatusIndicators.Success + " " + message)
}

// RenderError renders an error message with its shape indicator.
func (t *Theme) RenderError(message string) string {
	return t.ErrorStyle.Render(StatusIndicators.Error + " " + message)
}

// RenderWarning renders a warning message with its shape indicator.
func (t *Theme) RenderWarning(message string) string {
	return t.WarningStyle.Render(StatusIndicators.Warning + " " + message)
}

// RenderInfo renders an info message with its shape indicator.
func (t *Theme) RenderInfo(message string) string {
	return t.InfoStyle.Render(StatusIndicators.Info + " " + message)
}

// RenderUnread renders an unread badge, or "" for zero.
func (t *Theme) RenderUnread(count int) string {
	if count <= 0 {
		return ""
	}
	return t.Unread.Render(fmt.Sprintf(StatusIndicators.Unread, count))
}

// RenderFooter renders the metrics line under an assistant message.
func (t *Theme) RenderFooter(m *model.Metrics) string {
	return t.MetricsFooter.Render(m.Footer())
}
