// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with the Ollama API.
//
// Only the endpoints quickr1 needs are covered: streaming /api/generate,
// the root health check and /api/tags. Decoding of the streamed body is
// left to package stream; GenerateStream hands back the raw body.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - GenerateRequest: Request body for /api/generate
//   - ClientError: Typed error with an ErrorType for handling
//
// # Usage
//
//	client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: url})
//	req := ollama.NewGenerateRequest("deepseek-r1:1.5b", history, "Hello")
//	body, err := client.GenerateStream(ctx, req)
//	if err != nil {
//	    return err
//	}
//	defer body.Close()
package ollama
