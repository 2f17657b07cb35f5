// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/pursuer/internal/cloud"
	"github.com/jeranaias/pursuer/internal/config"
	"github.com/jeranaias/pursuer/internal/logging"
	"github.com/jeranaias/pursuer/internal/telemetry"
	"github.com/jeranaias/pursuer/internal/transcript"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrBusy is returned by Submit while a request is in flight.
	ErrBusy = errors.New("a request is already in progress")

	// ErrEmptyMessage is returned by Submit for blank input.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("session closed")
)

// CanceledMessage is shown when the user stops a request.
const CanceledMessage = "Request canceled."

// NetworkMessage prefixes transport failures.
const NetworkMessage = "Please check your Internet Connection, or the service may be temporarily down."

// FailureMessage returns the text shown to the user for a failed request.
func FailureMessage(err error) string {
	if err == nil {
		return ""
	}
	if code := cloud.StatusCode(err); code != 0 {
		return fmt.Sprintf("API request failed with status code %d", code)
	}
	if errors.Is(err, cloud.ErrNotConfigured) {
		return "No API key configured. Set PURSUER_API_KEY or run: pursuer config set api.api_key <key>"
	}
	if errors.Is(err, context.Canceled) {
		return CanceledMessage
	}
	if isNetworkError(err) {
		return NetworkMessage + "\nNetwork error: " + err.Error()
	}
	return "Unexpected error: " + err.Error()
}

func isNetworkError(err error) bool {
	if errors.Is(err, cloud.ErrReadTimeout) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// =============================================================================
// MANAGER
// =============================================================================

// Streamer is the transport used by the Manager.
type Streamer interface {
	Stream(ctx context.Context, req cloud.ChatRequest, onFragment func(string)) (*cloud.StreamStats, error)
}

// Recorder stores per-request usage.
type Recorder interface {
	Record(ctx context.Context, rec telemetry.Record) error
}

// Options configures a Manager. Client and Sink are required.
type Options struct {
	Client     Streamer
	Sink       Sink
	Parser     *transcript.Parser
	Recorder   Recorder
	Logger     *logging.Logger
	Model      string
	Generation config.GenerationConfig
}

// Manager runs chat requests one at a time.
type Manager struct {
	client   Streamer
	sink     Sink
	parser   *transcript.Parser
	recorder Recorder
	logger   *logging.Logger
	gen      config.GenerationConfig

	mu     sync.Mutex
	model  string
	active string
	cancel context.CancelFunc
	closed bool

	wg sync.WaitGroup
}

// NewManager creates a Manager.
func NewManager(opts Options) *Manager {
	parser := opts.Parser
	if parser == nil {
		parser = transcript.NewParser(config.DefaultMaxChars)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	gen := opts.Generation
	if gen.SystemPrompt == "" {
		gen.SystemPrompt = config.DefaultSystemPrompt
	}
	return &Manager{
		client:   opts.Client,
		sink:     opts.Sink,
		parser:   parser,
		recorder: opts.Recorder,
		logger:   logger,
		gen:      gen,
		model:    opts.Model,
	}
}

// Model returns the model used for new requests.
func (m *Manager) Model() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model
}

// SetModel changes the model for subsequent requests.
func (m *Manager) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.model = model
}

// Busy reports whether a request holds the in-flight slot.
func (m *Manager) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != ""
}

// Active returns the in-flight request ID, or "".
func (m *Manager) Active() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// BuildRequest assembles the outbound request for message. displayed is the
// transcript text including the echoed message.
func (m *Manager) BuildRequest(message, displayed string) (cloud.ChatRequest, int) {
	message = strings.TrimSpace(message)
	history := m.parser.Parse(displayed, message)

	msgs := make([]cloud.ChatMessage, 0, len(history)+2)
	msgs = append(msgs, cloud.ChatMessage{Role: transcript.RoleSystem, Content: m.gen.SystemPrompt})
	for _, t := range history {
		msgs = append(msgs, cloud.ChatMessage{Role: t.Role, Content: t.Content})
	}
	msgs = append(msgs, cloud.ChatMessage{Role: transcript.RoleUser, Content: message})

	return cloud.ChatRequest{
		Model:             m.Model(),
		Messages:          msgs,
		RepetitionPenalty: m.gen.RepetitionPenalty,
		Temperature:       m.gen.Temperature,
		TopP:              m.gen.TopP,
		TopK:              m.gen.TopK,
		MaxTokens:         m.gen.MaxTokens,
		Stream:            true,
	}, len(history)
}

// Submit starts a request for message and returns its ID. Events for it are
// posted to the sink until a terminal event; the slot stays taken until
// Release is called with the same ID.
func (m *Manager) Submit(message, displayed string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyMessage
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrClosed
	}
	if m.active != "" {
		m.mu.Unlock()
		return "", ErrBusy
	}
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	m.active = id
	m.cancel = cancel
	m.wg.Add(1)
	m.mu.Unlock()

	req, turns := m.BuildRequest(message, displayed)
	m.logger.Debug("Submitting request %s: model=%s history_turns=%d", id, req.Model, turns)

	go m.run(ctx, id, req, turns)
	return id, nil
}

// Cancel stops the in-flight request with the given ID. A Failed event with
// CanceledMessage follows.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != id || m.cancel == nil {
		return false
	}
	m.cancel()
	return true
}

// Release frees the in-flight slot held by id. Call it after the terminal
// event for id has been handled.
func (m *Manager) Release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != id {
		return
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.active = ""
	m.cancel = nil
}

// Close cancels the in-flight request and waits for its worker. Nothing is
// posted for a request abandoned this way.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// run is the request worker.
func (m *Manager) run(ctx context.Context, id string, req cloud.ChatRequest, turns int) {
	defer m.wg.Done()

	started := time.Now()
	stats, err := m.client.Stream(ctx, req, func(text string) {
		m.sink.Post(Fragment{RequestID: id, Text: text})
	})
	if stats == nil {
		stats = &cloud.StreamStats{Model: req.Model}
	}

	rec := telemetry.Record{
		ID:            id,
		Model:         req.Model,
		StartedAt:     started,
		FirstFragment: stats.FirstFragment,
		Duration:      time.Since(started),
		Attempts:      stats.Attempts,
		HistoryTurns:  turns,
		Fragments:     stats.Fragments,
		Chars:         stats.Chars,
		Malformed:     stats.Malformed,
		Status:        telemetry.StatusOK,
	}

	abandoned := false
	switch {
	case err == nil:
		m.logger.Info("Request %s finished: %d fragments, %d chars in %v", id, stats.Fragments, stats.Chars, rec.Duration)
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		rec.Status = telemetry.StatusCanceled
		rec.Error = err.Error()
		abandoned = m.isClosed()
		m.logger.Info("Request %s canceled after %d chars", id, stats.Chars)
	default:
		rec.Status = telemetry.StatusError
		rec.Error = err.Error()
		m.logger.Error("Request %s failed: %v", id, err)
	}

	m.record(rec)

	if abandoned {
		return
	}
	if err == nil {
		m.sink.Post(Done{RequestID: id, Stats: stats})
		return
	}
	m.sink.Post(Failed{RequestID: id, Message: FailureMessage(err), Err: err, Stats: stats})
}

func (m *Manager) record(rec telemetry.Record) {
	if m.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.recorder.Record(ctx, rec); err != nil {
		m.logger.Warn("Failed to record usage for %s: %v", rec.ID, err)
	}
}
