// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the quickr1 command tree.
//
// Commands:
//
//	quickr1 [chat]              Interactive chat (default)
//	quickr1 ask "question"      One turn, streamed to stdout
//	quickr1 history list        List saved conversations
//	quickr1 history show <ref>  Render a conversation
//	quickr1 history export      Write Markdown or JSON
//	quickr1 history search <q>  Search participants and content
//	quickr1 history delete <ref>
//	quickr1 status              Backend health and installed models
//	quickr1 config show|path|init
//
// A conversation reference is either its 1-based position in
// "history list" or an id prefix.
package cli
