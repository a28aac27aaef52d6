// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides local persistence for conversations and UI state.
//
// # Key Types
//
//   - KV: Byte store with FileKV, BoltKV, SQLiteKV and MemoryKV backends
//   - Store: JSON documents under the conversations, sidebarState and
//     theme keys, with best-effort load and save
//   - Saver: Background writer that coalesces conversation snapshots
//
// # Usage
//
//	kv, err := storage.Open("bolt", "~/.quickr1/quickr1.bolt")
//	if err != nil {
//	    return err
//	}
//	store := storage.NewStore(kv, logger)
//	convs := store.LoadConversations()
//
//	saver := storage.NewSaver(store, 4)
//	defer saver.Close()
//	saver.Enqueue(snapshot)
package storage
