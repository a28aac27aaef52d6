// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session runs one chat turn at a time.
//
// A turn moves through Idle, AwaitingResponse, Streaming and back to Idle,
// or through Failed when the backend cannot be reached or the body breaks
// off. Failed turns still commit: the user message is kept alongside an
// apology reply.
//
// # Key Types
//
//   - Session: Turn state machine over a Transport and a chat.Reconciler
//   - Transport: Anything that can start a streamed generation
//   - Hooks: Presentation callbacks for state, fragments and completion
//
// # Usage
//
//	rec := chat.New(store.LoadConversations(), logger)
//	sess := session.New(ollamaClient, rec, session.ConfigFrom(cfg), session.Hooks{
//	    OnFragment: func(_, text string) { fmt.Print(text) },
//	}, logger)
//
//	res, err := sess.Submit(ctx, "Why is the sky blue?")
//	if errors.Is(err, session.ErrTurnInFlight) {
//	    // Another turn is still running
//	}
package session
