// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// # Key Types
//
//   - Message: One utterance with role, content and optional Metrics
//   - Metrics: Generation statistics from the backend's terminal record
//   - Conversation: A persisted thread of messages with participants
//   - UIState: Sidebar expansion and selection state
//   - Theme: light or dark color scheme
//
// # Usage
//
//	conv := model.NewConversation()
//	conv.Append(model.NewUserMessage("Hello"))
//	fmt.Println(conv.Title())
//
// The JSON form of these types matches the layout written by the original web
// client, so existing history files load unchanged.
package model
