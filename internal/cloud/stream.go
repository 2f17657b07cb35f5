// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// STREAMING: one bad event never ends an otherwise healthy stream.

// =============================================================================
// LINE DECODING
// =============================================================================

// LineKind classifies one line of the event stream.
type LineKind int

const (
	// LineIgnore is a keep-alive, comment, blank line or non-data field.
	LineIgnore LineKind = iota
	// LineContent carries a content fragment.
	LineContent
	// LineDone is the "[DONE]" sentinel.
	LineDone
	// LineMalformed is a data line whose payload could not be decoded.
	LineMalformed
	// LineError is an error object sent by the provider mid-stream.
	LineError
)

func (k LineKind) String() string {
	switch k {
	case LineIgnore:
		return "ignore"
	case LineContent:
		return "content"
	case LineDone:
		return "done"
	case LineMalformed:
		return "malformed"
	case LineError:
		return "error"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// LineEvent is the decoded form of one stream line.
type LineEvent struct {
	Kind         LineKind
	Content      string
	FinishReason string
	Model        string
	Err          error
}

// streamChunk is the JSON payload of a data line.
type streamChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
			Role    string `json:"role,omitempty"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

// DecodeLine classifies one raw line of the response:
//
//	""  / ": comment" / "event: x"   LineIgnore
//	"data: [DONE]"                   LineDone
//	"data: {...delta.content...}"    LineContent (empty content is LineIgnore)
//	"data: {\"error\": {...}}"       LineError
//	"data: not json"                 LineMalformed
func DecodeLine(raw string) LineEvent {
	line := strings.TrimRight(raw, "\r\n")
	if line == "" || strings.HasPrefix(line, ":") {
		return LineEvent{Kind: LineIgnore}
	}
	if !strings.HasPrefix(line, "data:") {
		return LineEvent{Kind: LineIgnore}
	}

	payload := strings.TrimSpace(line[len("data:"):])
	if payload == "[DONE]" {
		return LineEvent{Kind: LineDone}
	}
	if payload == "" {
		return LineEvent{Kind: LineIgnore}
	}

	var chunk streamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return LineEvent{Kind: LineMalformed, Err: fmt.Errorf("failed to decode stream event: %w", err)}
	}

	if chunk.Error != nil {
		apiErr := &APIError{Message: chunk.Error.Message}
		if code, ok := chunk.Error.Code.(string); ok {
			apiErr.Code = code
		}
		return LineEvent{Kind: LineError, Err: apiErr}
	}

	ev := LineEvent{Kind: LineIgnore, Model: chunk.Model}
	if len(chunk.Choices) > 0 {
		choice := chunk.Choices[0]
		if choice.FinishReason != nil {
			ev.FinishReason = *choice.FinishReason
		}
		if choice.Delta.Content != "" {
			ev.Kind = LineContent
			ev.Content = choice.Delta.Content
		}
	}
	return ev
}

// =============================================================================
// STREAM TYPES
// =============================================================================

// StreamStats describes a finished (or failed) stream.
type StreamStats struct {
	Model         string
	Attempts      int
	FirstFragment time.Duration
	Total         time.Duration
	Fragments     int
	Chars         int
	Malformed     int
	FinishReason  string

	// SawDone is false when the server closed the stream without "[DONE]".
	SawDone bool
}

// StreamError is a failure after the response started; Partial holds the
// content delivered before it.
type StreamError struct {
	Partial string
	Err     error
}

func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// Stream sends req with stream enabled and calls onFragment, on the calling
// goroutine and in arrival order, for every content fragment. It returns once
// "[DONE]" arrives, the server closes the stream, ctx ends or the transport
// fails. Connection failures, 429 and 5xx responses are retried with
// exponential backoff; nothing is retried once the response body is being read.
func (c *Client) Stream(ctx context.Context, req ChatRequest, onFragment func(string)) (*StreamStats, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	req.Stream = true
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	stats := &StreamStats{Model: req.Model}
	start := time.Now()
	defer func() { stats.Total = time.Since(start) }()

	var resp *http.Response
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			delay := calculateBackoff(attempt, err)
			c.logger.Warn("Retrying chat request (attempt %d) in %v: %v", attempt+1, delay, err)
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			case <-time.After(delay):
			}
		}

		stats.Attempts = attempt + 1
		resp, err = c.open(ctx, body)
		if err == nil {
			break
		}
		if attempt >= c.maxRetries || !isRetryable(err) {
			return stats, err
		}
	}
	defer resp.Body.Close()

	return stats, c.readStream(ctx, resp.Body, start, stats, onFragment)
}

// open posts the request and returns a 200 response.
func (c *Client) open(ctx context.Context, body []byte) (*http.Response, error) {
	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	// CLOUD: log method and path only; headers carry the key.
	c.logger.Debug("API request: %s %s", httpReq.Method, httpReq.URL.Path)
	sent := time.Now()

	resp, err := c.getHTTPClient().Do(httpReq)
	httpReq.Header.Del("Authorization")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	c.logger.Debug("API response: %s (%v)", resp.Status, time.Since(sent))

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, handleErrorResponse(resp, data)
	}
	return resp, nil
}

// readStream consumes the event lines. An idle timer closes the body when no
// line arrives within the read timeout.
func (c *Client) readStream(ctx context.Context, body io.ReadCloser, start time.Time, stats *StreamStats, onFragment func(string)) error {
	var timedOut atomic.Bool
	idle := time.AfterFunc(c.readTimeout, func() {
		timedOut.Store(true)
		body.Close()
	})
	defer idle.Stop()

	var partial strings.Builder
	fail := func(err error) error {
		return &StreamError{Partial: partial.String(), Err: err}
	}

	reader := bufio.NewReader(body)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			idle.Reset(c.readTimeout)

			ev := DecodeLine(line)
			if ev.Model != "" {
				stats.Model = ev.Model
			}
			if ev.FinishReason != "" {
				stats.FinishReason = ev.FinishReason
			}

			switch ev.Kind {
			case LineContent:
				if stats.Fragments == 0 {
					stats.FirstFragment = time.Since(start)
				}
				stats.Fragments++
				stats.Chars += len([]rune(ev.Content))
				partial.WriteString(ev.Content)
				if onFragment != nil {
					onFragment(ev.Content)
					idle.Reset(c.readTimeout)
				}
			case LineDone:
				stats.SawDone = true
				return nil
			case LineMalformed:
				stats.Malformed++
				c.logger.Warn("Skipping malformed stream event: %v (line %q)", ev.Err, strings.TrimSpace(line))
			case LineError:
				return fail(ev.Err)
			case LineIgnore:
				if trimmed := strings.TrimSpace(line); trimmed != "" && !strings.HasPrefix(trimmed, "data:") && !strings.HasPrefix(trimmed, ":") {
					c.logger.Debug("Ignoring stream line %q", trimmed)
				}
			}
		}

		if err != nil {
			switch {
			case ctx.Err() != nil:
				return ctx.Err()
			case timedOut.Load():
				return fail(fmt.Errorf("%w: no data for %v", ErrReadTimeout, c.readTimeout))
			case errors.Is(err, io.EOF):
				c.logger.Warn("Stream ended without [DONE] after %d fragments", stats.Fragments)
				return nil
			default:
				return fail(fmt.Errorf("read error: %w", err))
			}
		}
	}
}
