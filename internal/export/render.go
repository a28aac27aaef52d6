// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/quickr1/internal/model"
)

// DefaultWrapWidth is the word-wrap column for terminal rendering.
const DefaultWrapWidth = 80

// Renderer renders Markdown for terminal display.
type Renderer struct {
	term *glamour.TermRenderer
}

// NewRenderer creates a renderer styled for theme. An empty theme picks a
// style from the terminal background. width <= 0 uses DefaultWrapWidth.
func NewRenderer(theme model.Theme, width int) (*Renderer, error) {
	if width <= 0 {
		width = DefaultWrapWidth
	}

	style := glamour.WithAutoStyle()
	switch theme {
	case model.ThemeLight:
		style = glamour.WithStandardStyle("light")
	case model.ThemeDark:
		style = glamour.WithStandardStyle("dark")
	}

	term, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return nil, err
	}
	return &Renderer{term: term}, nil
}

// Render returns the rendered form of markdown, or markdown unchanged if
// rendering fails.
func (r *Renderer) Render(markdown string) string {
	if r == nil || r.term == nil {
		return markdown
	}
	out, err := r.term.Render(markdown)
	if err != nil {
		return markdown
	}
	return out
}

// RenderConversation exports conv as Markdown without metadata and renders it.
func (r *Renderer) RenderConversation(conv *model.Conversation) (string, error) {
	md, err := NewMarkdownExporter(&Options{IncludeTimestamps: true}).Export(conv)
	if err != nil {
		return "", err
	}
	return r.Render(string(md)), nil
}
