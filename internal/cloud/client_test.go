// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func contentLine(s string) string {
	data, _ := json.Marshal(map[string]any{
		"id":    "chatcmpl-1",
		"model": "test-model",
		"choices": []map[string]any{
			{"delta": map[string]string{"content": s}, "finish_reason": nil},
		},
	})
	return "data: " + string(data) + "\n\n"
}

// sseServer writes lines one by one, flushing after each.
func sseServer(t *testing.T, lines ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		for _, l := range lines {
			io.WriteString(w, l)
			flusher.Flush()
		}
	}))
}

func testRequest() ChatRequest {
	return ChatRequest{
		Model: "test-model",
		Messages: []ChatMessage{
			{Role: "system", Content: "You are a helpful AI assistant."},
			{Role: "user", Content: "hi"},
		},
		RepetitionPenalty: 1.0,
		Temperature:       0,
		TopP:              0.9,
		TopK:              40,
		MaxTokens:         1024,
	}
}

// =============================================================================
// LINE DECODING
// =============================================================================

func TestDecodeLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		kind    LineKind
		content string
	}{
		{"blank", "", LineIgnore, ""},
		{"crlf blank", "\r\n", LineIgnore, ""},
		{"comment keep-alive", ": OPENROUTER PROCESSING", LineIgnore, ""},
		{"event field", "event: message", LineIgnore, ""},
		{"done", "data: [DONE]", LineDone, ""},
		{"done no space", "data:[DONE]\r\n", LineDone, ""},
		{"content", strings.TrimSpace(contentLine("Hel")), LineContent, "Hel"},
		{"content with newline", strings.TrimSpace(contentLine("a\nb")), LineContent, "a\nb"},
		{"empty delta", `data: {"choices":[{"delta":{"role":"assistant"}}]}`, LineIgnore, ""},
		{"no choices", `data: {"choices":[]}`, LineIgnore, ""},
		{"malformed", "data: {not json", LineMalformed, ""},
		{"provider error", `data: {"error":{"message":"overloaded","code":"503"}}`, LineError, ""},
		{"garbage", "HTTP/1.1 hmm", LineIgnore, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := DecodeLine(tt.line)
			assert.Equal(t, tt.kind, ev.Kind)
			assert.Equal(t, tt.content, ev.Content)
			if tt.kind == LineMalformed || tt.kind == LineError {
				assert.Error(t, ev.Err)
			}
		})
	}
}

func TestDecodeLine_FinishReason(t *testing.T) {
	ev := DecodeLine(`data: {"model":"m","choices":[{"delta":{"content":"."},"finish_reason":"stop"}]}`)
	assert.Equal(t, LineContent, ev.Kind)
	assert.Equal(t, "stop", ev.FinishReason)
	assert.Equal(t, "m", ev.Model)
}

// =============================================================================
// STREAMING
// =============================================================================

func TestStream_DeliversFragmentsInOrder(t *testing.T) {
	var gotBody map[string]any
	var gotAuth, gotAccept string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		json.NewDecoder(r.Body).Decode(&gotBody)

		flusher := w.(http.Flusher)
		for _, l := range []string{
			": keep-alive\n\n",
			contentLine("Hello"),
			"data: {broken\n\n",
			contentLine(" **world**"),
			"data: [DONE]\n\n",
			contentLine("never delivered"),
		} {
			io.WriteString(w, l)
			flusher.Flush()
		}
	}))
	defer server.Close()

	client := NewClient("sk-test").WithBaseURL(server.URL + "/v1/")

	var fragments []string
	stats, err := client.Stream(context.Background(), testRequest(), func(s string) {
		fragments = append(fragments, s)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Hello", " **world**"}, fragments)
	assert.Equal(t, 2, stats.Fragments)
	assert.Equal(t, 1, stats.Malformed)
	assert.Equal(t, len("Hello **world**"), stats.Chars)
	assert.True(t, stats.SawDone)
	assert.Equal(t, 1, stats.Attempts)
	assert.Equal(t, "test-model", stats.Model)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "text/event-stream", gotAccept)
	assert.Equal(t, true, gotBody["stream"])
	assert.Equal(t, float64(40), gotBody["top_k"])
	assert.Equal(t, float64(0), gotBody["temperature"], "zero temperature is sent")
	assert.Equal(t, float64(1), gotBody["repetition_penalty"])
	assert.Len(t, gotBody["messages"], 2)
}

func TestStream_EOFWithoutDone(t *testing.T) {
	server := sseServer(t, contentLine("partial"))
	defer server.Close()

	var got strings.Builder
	stats, err := NewClient("k").WithBaseURL(server.URL).Stream(context.Background(), testRequest(), func(s string) {
		got.WriteString(s)
	})
	require.NoError(t, err)
	assert.Equal(t, "partial", got.String())
	assert.False(t, stats.SawDone)
}

func TestStream_ProviderErrorEndsStream(t *testing.T) {
	server := sseServer(t, contentLine("Hi"), `data: {"error":{"message":"model overloaded"}}`+"\n\n", contentLine("late"))
	defer server.Close()

	_, err := NewClient("k").WithBaseURL(server.URL).Stream(context.Background(), testRequest(), func(string) {})
	require.Error(t, err)

	var streamErr *StreamError
	require.True(t, errors.As(err, &streamErr))
	assert.Equal(t, "Hi", streamErr.Partial)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestStream_NotConfigured(t *testing.T) {
	_, err := NewClient("  ").Stream(context.Background(), testRequest(), nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestStream_AuthErrorIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"invalid api key","code":"invalid_key"}}`)
	}))
	defer server.Close()

	_, err := NewClient("bad").WithBaseURL(server.URL).WithMaxRetries(3).Stream(context.Background(), testRequest(), nil)
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.Contains(t, err.Error(), "invalid api key")
	assert.Equal(t, int32(1), hits.Load())
}

func TestStream_RetriesServerErrorBeforeContent(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			io.WriteString(w, "busy")
			return
		}
		io.WriteString(w, contentLine("ok")+"data: [DONE]\n\n")
	}))
	defer server.Close()

	var got string
	stats, err := NewClient("k").WithBaseURL(server.URL).WithMaxRetries(1).Stream(context.Background(), testRequest(), func(s string) {
		got += s
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, stats.Attempts)
	assert.Equal(t, int32(2), hits.Load())
}

func TestStream_StatusCodeWhenRetriesExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClient("k").WithBaseURL(server.URL).WithMaxRetries(0).Stream(context.Background(), testRequest(), nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, StatusCode(err))
}

func TestStream_IdleTimeoutKeepsPartial(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, contentLine("Hello"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient("k").WithBaseURL(server.URL).WithReadTimeout(150 * time.Millisecond)
	_, err := client.Stream(context.Background(), testRequest(), func(string) {})
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrReadTimeout)
	var streamErr *StreamError
	require.True(t, errors.As(err, &streamErr))
	assert.Equal(t, "Hello", streamErr.Partial)
}

func TestStream_ContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, contentLine("first"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	_, err := NewClient("k").WithBaseURL(server.URL).Stream(ctx, testRequest(), func(string) {
		cancel()
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStream_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewClient("k").WithBaseURL(url).WithMaxRetries(0).Stream(context.Background(), testRequest(), nil)
	require.Error(t, err)
	assert.True(t, isRetryable(err), "network errors are retryable: %v", err)
	assert.Equal(t, 0, StatusCode(err))
}

// =============================================================================
// HELPERS
// =============================================================================

func TestAPIError_Sentinels(t *testing.T) {
	tests := []struct {
		status int
		target error
	}{
		{401, ErrAuthFailed},
		{402, ErrInsufficientCredits},
		{404, ErrModelNotFound},
		{429, ErrRateLimited},
	}
	for _, tt := range tests {
		err := fmt.Errorf("wrapped: %w", &APIError{Status: tt.status})
		if !errors.Is(err, tt.target) {
			t.Errorf("status %d should match %v", tt.status, tt.target)
		}
	}
	if errors.Is(&APIError{Status: 500}, ErrRateLimited) {
		t.Error("500 must not match ErrRateLimited")
	}
}

func TestCalculateBackoff(t *testing.T) {
	if d := calculateBackoff(1, nil); d != 500*time.Millisecond {
		t.Errorf("attempt 1 = %v", d)
	}
	if d := calculateBackoff(3, nil); d != 2*time.Second {
		t.Errorf("attempt 3 = %v", d)
	}
	if d := calculateBackoff(10, nil); d != retryMaxDelay {
		t.Errorf("attempt 10 = %v, want cap", d)
	}
	if d := calculateBackoff(1, &APIError{Status: 429, RetryAfter: 3 * time.Second}); d != 3*time.Second {
		t.Errorf("Retry-After ignored: %v", d)
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&APIError{Status: 429}))
	assert.True(t, isRetryable(&APIError{Status: 503}))
	assert.False(t, isRetryable(&APIError{Status: 400}))
	assert.False(t, isRetryable(context.Canceled))
	assert.False(t, isRetryable(errors.New("plain")))
}

func TestAPIKeyMasked(t *testing.T) {
	c := NewClient("sk-abcdef123456")
	masked := c.APIKeyMasked()
	assert.NotContains(t, masked, "abcdef")
	assert.Contains(t, masked, "fingerprint=")
	assert.Equal(t, "[not set]", NewClient("").APIKeyMasked())
}
