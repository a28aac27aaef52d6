// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"sort"
)

// =============================================================================
// THEME
// =============================================================================

// Theme is the color scheme preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

// Toggle returns the opposite theme.
func (t Theme) Toggle() Theme {
	if t == ThemeLight {
		return ThemeDark
	}
	return ThemeLight
}

// =============================================================================
// SIDEBAR STATE
// =============================================================================

// UIState is the sidebar expansion and selection state.
type UIState struct {
	Expanded map[string]bool
	Selected string
}

// NewUIState returns an empty state.
func NewUIState() *UIState {
	return &UIState{Expanded: make(map[string]bool)}
}

// Toggle flips the expansion of id.
func (s *UIState) Toggle(id string) {
	if s.Expanded[id] {
		delete(s.Expanded, id)
		return
	}
	s.Expanded[id] = true
}

// Expand marks id as expanded.
func (s *UIState) Expand(id string) {
	s.Expanded[id] = true
}

// Collapse removes id from the expanded set.
func (s *UIState) Collapse(id string) {
	delete(s.Expanded, id)
}

// Select records the selected conversation.
func (s *UIState) Select(id string) {
	s.Selected = id
}

// uiStateJSON is the wire shape: {"expanded": [...], "selected": id|null}.
type uiStateJSON struct {
	Expanded []string `json:"expanded"`
	Selected *string  `json:"selected"`
}

// MarshalJSON serializes the expanded set as a sorted list.
func (s UIState) MarshalJSON() ([]byte, error) {
	out := uiStateJSON{Expanded: make([]string, 0, len(s.Expanded))}
	for id := range s.Expanded {
		out.Expanded = append(out.Expanded, id)
	}
	sort.Strings(out.Expanded)
	if s.Selected != "" {
		sel := s.Selected
		out.Selected = &sel
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores the expanded set from a list.
func (s *UIState) UnmarshalJSON(data []byte) error {
	var in uiStateJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	s.Expanded = make(map[string]bool, len(in.Expanded))
	for _, id := range in.Expanded {
		s.Expanded[id] = true
	}
	s.Selected = ""
	if in.Selected != nil {
		s.Selected = *in.Selected
	}
	return nil
}
