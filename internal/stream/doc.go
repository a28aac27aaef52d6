// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes the newline-delimited JSON body of a streaming
// generate response into fragment and terminal events.
//
// # Usage
//
// Push bytes as they arrive:
//
//	dec := stream.NewDecoder(nil)
//	for chunk := range chunks {
//	    for _, ev := range dec.Feed(chunk) {
//	        apply(ev)
//	    }
//	}
//	for _, ev := range dec.Finish() {
//	    apply(ev)
//	}
//
// Or let the decoder pull from a reader:
//
//	err := dec.Process(ctx, body, apply)
package stream
