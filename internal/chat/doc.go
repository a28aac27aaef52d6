// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat keeps the in-memory conversation list and applies chat turns
// to it.
//
// A turn is driven in order:
//
//	r.AppendUserMessage(text)
//	id := r.BeginAssistantMessage()
//	r.AppendFragment(id, "Hel")
//	r.AppendFragment(id, "lo")
//	r.FinalizeMetrics(id, metrics)
//	r.CommitTurn()
//
// Subscribers registered with Subscribe receive a snapshot of the list after
// each committed change; the storage package's Saver is the usual subscriber.
package chat
