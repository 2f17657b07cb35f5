// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides the streaming chat completions client.
//
// The client speaks the OpenAI-compatible chat completions protocol used by
// ArliAI and similar providers: a JSON POST with "stream": true answered by
// server-sent event lines of the form "data: {json}" and a final
// "data: [DONE]".
//
// # Key Types
//
//   - Client: HTTP client with connect/read timeouts and retry before first byte
//   - ChatRequest, ChatMessage: request payload
//   - LineEvent: classification of one stream line (see DecodeLine)
//   - APIError, StreamError: failure details
//
// # Usage
//
//	client := cloud.NewClient(apiKey).WithBaseURL(cfg.API.BaseURL)
//	stats, err := client.Stream(ctx, cloud.ChatRequest{
//	    Model:    "Meta-Llama-3.1-8B-Instruct",
//	    Messages: []cloud.ChatMessage{{Role: "user", Content: "Hello"}},
//	}, func(fragment string) {
//	    fmt.Print(fragment)
//	})
//
// # Security
//
// API keys are never logged; only a SHA-256 fingerprint is ever shown.
package cloud
