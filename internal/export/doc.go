// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes conversations to files and renders them for the
// terminal.
//
// # Key Types
//
//   - Exporter: Format interface implemented by MarkdownExporter and JSONExporter
//   - Options: Output directory, metadata and timestamp switches
//   - Renderer: glamour-backed Markdown rendering for light and dark themes
//
// # Usage
//
// Export a conversation:
//
//	exporter, err := export.New("markdown", export.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	path, err := export.ExportToFile(conv, exporter, nil)
//
// Render it to the terminal:
//
//	r, _ := export.NewRenderer(model.ThemeDark, 100)
//	out, err := r.RenderConversation(conv)
package export
