// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/jeranaias/quickr1/internal/model"
)

// Store persists conversations and UI state on top of a KV backend.
//
// Every operation is best effort: read failures yield empty results and
// write failures are logged, never returned. Callers can always proceed
// with in-memory state.
type Store struct {
	kv     KV
	logger *slog.Logger
}

// NewStore wraps kv. A nil logger uses slog.Default().
func NewStore(kv KV, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: kv, logger: logger}
}

// KV returns the underlying backend.
func (s *Store) KV() KV {
	return s.kv
}

// Close closes the underlying backend.
func (s *Store) Close() error {
	return s.kv.Close()
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// LoadConversations returns the saved conversation list. A missing key or an
// unreadable document yields an empty list. Individual malformed entries are
// skipped so one bad record does not discard the rest.
func (s *Store) LoadConversations() []*model.Conversation {
	data, ok := s.get(KeyConversations)
	if !ok {
		return []*model.Conversation{}
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("discarding unreadable conversations", "key", KeyConversations, "error", err)
		return []*model.Conversation{}
	}

	convs := make([]*model.Conversation, 0, len(raw))
	for i, item := range raw {
		var conv model.Conversation
		if err := json.Unmarshal(item, &conv); err != nil {
			s.logger.Warn("skipping malformed conversation", "index", i, "error", err)
			continue
		}
		if conv.ID == "" {
			s.logger.Warn("skipping conversation without id", "index", i)
			continue
		}
		conv.Normalize()
		convs = append(convs, &conv)
	}
	return convs
}

// SaveConversations writes the full list as one snapshot.
func (s *Store) SaveConversations(convs []*model.Conversation) {
	if convs == nil {
		convs = []*model.Conversation{}
	}
	s.set(KeyConversations, convs)
}

// =============================================================================
// UI STATE
// =============================================================================

// LoadUIState returns the saved sidebar state, or an empty state.
func (s *Store) LoadUIState() *model.UIState {
	state := model.NewUIState()
	data, ok := s.get(KeySidebarState)
	if !ok {
		return state
	}
	if err := json.Unmarshal(data, state); err != nil {
		s.logger.Warn("discarding unreadable sidebar state", "key", KeySidebarState, "error", err)
		return model.NewUIState()
	}
	return state
}

// SaveUIState writes the sidebar state.
func (s *Store) SaveUIState(state *model.UIState) {
	if state == nil {
		state = model.NewUIState()
	}
	s.set(KeySidebarState, state)
}

// LoadTheme returns the saved theme. ok is false when nothing valid was saved,
// in which case callers fall back to the terminal's preference.
func (s *Store) LoadTheme() (theme model.Theme, ok bool) {
	data, found := s.get(KeyTheme)
	if !found {
		return "", false
	}
	if err := json.Unmarshal(data, &theme); err != nil || !theme.Valid() {
		s.logger.Warn("discarding unreadable theme", "key", KeyTheme, "value", string(data))
		return "", false
	}
	return theme, true
}

// SaveTheme writes the theme preference.
func (s *Store) SaveTheme(theme model.Theme) {
	if !theme.Valid() {
		s.logger.Warn("refusing to save unknown theme", "theme", string(theme))
		return
	}
	s.set(KeyTheme, theme)
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) get(key string) ([]byte, bool) {
	data, err := s.kv.Get(key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("failed to load", "key", key, "error", err)
		}
		return nil, false
	}
	return data, true
}

func (s *Store) set(key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("failed to encode", "key", key, "error", err)
		return
	}
	if err := s.kv.Set(key, data); err != nil {
		s.logger.Warn("failed to save", "key", key, "error", err)
	}
}
