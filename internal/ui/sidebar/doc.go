// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sidebar implements the interactive conversation picker.
//
// Conversations are listed pinned first, then by most recent activity. Each
// row can be expanded to preview its last two messages; expansion and the
// selected conversation live in a model.UIState that the caller persists.
package sidebar
