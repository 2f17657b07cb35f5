// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/pursuer/internal/logging"
)

// Configuration constants.
const (
	DefaultBaseURL        = "https://api.arliai.com/v1"
	DefaultConnectTimeout = 15 * time.Second
	DefaultReadTimeout    = 35 * time.Second
	DefaultMaxRetries     = 2

	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 10 * time.Second

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 * 1024

	userAgent = "pursuer/1.0"
)

// Error variables for common API failures.
var (
	ErrNotConfigured       = errors.New("API key not configured")
	ErrAuthFailed          = errors.New("authentication failed")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrModelNotFound       = errors.New("model not found")
	ErrRateLimited         = errors.New("rate limited")
	ErrReadTimeout         = errors.New("read timed out")
)

// APIError is a non-200 response from the API.
type APIError struct {
	Status  int
	Code    string
	Message string

	// RetryAfter is the server's Retry-After hint, if any.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Status == 0 {
		return "API error: " + msg
	}
	if e.Code != "" {
		return fmt.Sprintf("API error [%s] (HTTP %d): %s", e.Code, e.Status, msg)
	}
	return fmt.Sprintf("API error (HTTP %d): %s", e.Status, msg)
}

// Is maps well-known statuses onto the sentinel errors.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAuthFailed:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrInsufficientCredits:
		return e.Status == http.StatusPaymentRequired
	case ErrModelNotFound:
		return e.Status == http.StatusNotFound
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	}
	return false
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// ChatMessage is one message of the request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the chat completions payload. Sampling parameters are sent
// as configured, zero values included.
type ChatRequest struct {
	Model             string        `json:"model"`
	Messages          []ChatMessage `json:"messages"`
	RepetitionPenalty float64       `json:"repetition_penalty"`
	Temperature       float64       `json:"temperature"`
	TopP              float64       `json:"top_p"`
	TopK              int           `json:"top_k"`
	MaxTokens         int           `json:"max_tokens"`
	Stream            bool          `json:"stream"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
		Type    string `json:"type"`
	} `json:"error"`
	Detail string `json:"detail"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client streams chat completions. It is safe for concurrent use once built.
type Client struct {
	apiKey         string
	baseURL        string
	connectTimeout time.Duration
	readTimeout    time.Duration
	maxRetries     int
	logger         *logging.Logger

	httpOnce   sync.Once
	httpClient *http.Client
}

// NewClient creates a client for apiKey with default settings.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:         strings.TrimSpace(apiKey),
		baseURL:        DefaultBaseURL,
		connectTimeout: DefaultConnectTimeout,
		readTimeout:    DefaultReadTimeout,
		maxRetries:     DefaultMaxRetries,
	}
}

// WithBaseURL sets the API root; "/chat/completions" is appended to it.
func (c *Client) WithBaseURL(url string) *Client {
	if url != "" {
		c.baseURL = strings.TrimRight(url, "/")
	}
	return c
}

// WithConnectTimeout bounds dialing and the TLS handshake.
func (c *Client) WithConnectTimeout(d time.Duration) *Client {
	if d > 0 {
		c.connectTimeout = d
	}
	return c
}

// WithReadTimeout bounds the wait for response headers and every gap
// between stream lines.
func (c *Client) WithReadTimeout(d time.Duration) *Client {
	if d > 0 {
		c.readTimeout = d
	}
	return c
}

// WithMaxRetries sets how often a request is retried before any content
// arrives.
func (c *Client) WithMaxRetries(n int) *Client {
	if n >= 0 {
		c.maxRetries = n
	}
	return c
}

// WithLogger sets the logger for request and stream diagnostics.
func (c *Client) WithLogger(l *logging.Logger) *Client {
	c.logger = l
	return c
}

// WithHTTPClient replaces the HTTP client, e.g. in tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpOnce.Do(func() {})
	c.httpClient = hc
	return c
}

// IsConfigured reports whether an API key is set.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIKeyMasked describes the key without revealing any part of it.
func (c *Client) APIKeyMasked() string {
	if c.apiKey == "" {
		return "[not set]"
	}
	h := sha256.Sum256([]byte(c.apiKey))
	return fmt.Sprintf("[REDACTED, length=%d, fingerprint=%s]", len(c.apiKey), hex.EncodeToString(h[:4]))
}

// PERFORMANCE: one pooled transport per client.
func (c *Client) getHTTPClient() *http.Client {
	c.httpOnce.Do(func() {
		dialer := &net.Dialer{
			Timeout:   c.connectTimeout,
			KeepAlive: 30 * time.Second,
		}
		c.httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           dialer.DialContext,
				MaxIdleConns:          10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   c.connectTimeout,
				ResponseHeaderTimeout: c.readTimeout,
				ForceAttemptHTTP2:     true,
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
			},
			// No overall timeout: streams are bounded by the idle timer and ctx.
		}
	})
	return c.httpClient
}

// setHeaders sets auth and content headers.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("User-Agent", userAgent)
}

// handleErrorResponse converts a non-200 response into an *APIError.
func handleErrorResponse(resp *http.Response, body []byte) error {
	apiErr := &APIError{Status: resp.StatusCode}

	var parsed apiErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil {
		apiErr.Message = parsed.Error.Message
		if apiErr.Message == "" {
			apiErr.Message = parsed.Detail
		}
		switch code := parsed.Error.Code.(type) {
		case string:
			apiErr.Code = code
		case float64:
			apiErr.Code = strconv.Itoa(int(code))
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}

	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			apiErr.RetryAfter = time.Duration(secs) * time.Second
		} else if t, err := http.ParseTime(ra); err == nil {
			apiErr.RetryAfter = time.Until(t)
		}
	}
	return apiErr
}

// isRetryable reports whether a failure before any content may be retried.
func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= 500
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, ErrReadTimeout)
}

// calculateBackoff returns the delay before retry attempt (1-based).
func calculateBackoff(attempt int, err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return min(apiErr.RetryAfter, retryMaxDelay)
	}
	delay := retryBaseDelay * time.Duration(1<<uint(attempt-1))
	return min(delay, retryMaxDelay)
}
