// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the light and dark lipgloss themes.
//
// A Theme is built for an explicit model.Theme; nothing here reads global
// state except Detect, which asks termenv about the terminal background.
//
//	theme := styles.NewTheme(styles.Resolve(saved, ok, cfg.UI.Theme))
//	fmt.Println(theme.UserLabel.Render("You"))
package styles
