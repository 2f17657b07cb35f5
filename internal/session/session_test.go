// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/pursuer/internal/cloud"
	"github.com/jeranaias/pursuer/internal/config"
	"github.com/jeranaias/pursuer/internal/markdown"
	"github.com/jeranaias/pursuer/internal/telemetry"
	"github.com/jeranaias/pursuer/internal/transcript"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

type fakeStreamer struct {
	mu        sync.Mutex
	requests  []cloud.ChatRequest
	fragments []string
	err       error
	block     bool
	started   chan struct{}
}

func (f *fakeStreamer) Stream(ctx context.Context, req cloud.ChatRequest, onFragment func(string)) (*cloud.StreamStats, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	frags, err, block, started := f.fragments, f.err, f.block, f.started
	f.mu.Unlock()

	stats := &cloud.StreamStats{Model: req.Model, Attempts: 1}
	for _, frag := range frags {
		stats.Fragments++
		stats.Chars += len([]rune(frag))
		onFragment(frag)
	}
	if started != nil {
		close(started)
	}
	if block {
		<-ctx.Done()
		return stats, ctx.Err()
	}
	return stats, err
}

func (f *fakeStreamer) lastRequest(t *testing.T) cloud.ChatRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

type fakeRecorder struct {
	mu   sync.Mutex
	recs []telemetry.Record
}

func (r *fakeRecorder) Record(_ context.Context, rec telemetry.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return nil
}

func (r *fakeRecorder) all() []telemetry.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]telemetry.Record(nil), r.recs...)
}

type fakeSurface struct {
	ops []markdown.RenderOp
}

func (s *fakeSurface) Append(ops []markdown.RenderOp) { s.ops = append(s.ops, ops...) }
func (s *fakeSurface) Text() string                   { return markdown.PlainText(s.ops) }
func (s *fakeSurface) Clear()                         { s.ops = nil }

func next(t *testing.T, q *Queue) Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ev, err := q.Next(ctx)
	require.NoError(t, err)
	return ev
}

// drain applies events until the request's terminal event.
func drain(t *testing.T, q *Queue, conv *Conversation, m *Manager, id string) []Event {
	t.Helper()
	var events []Event
	for {
		ev := next(t, q)
		events = append(events, ev)
		done, err := conv.Apply(ev)
		require.NoError(t, err)
		if done {
			m.Release(id)
			return events
		}
	}
}

func newTestManager(streamer Streamer, q Sink, rec Recorder) *Manager {
	return NewManager(Options{
		Client:   streamer,
		Sink:     q,
		Parser:   transcript.NewParser(config.DefaultMaxChars),
		Recorder: rec,
		Model:    "test-model",
		Generation: config.GenerationConfig{
			SystemPrompt: "be brief",
			Temperature:  0.5,
			TopK:         40,
			MaxTokens:    256,
		},
	})
}

// =============================================================================
// FAILURE MESSAGES
// =============================================================================

func TestFailureMessage(t *testing.T) {
	netErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"status", &cloud.APIError{Status: 503, Message: "down"}, "API request failed with status code 503"},
		{"wrapped status", fmt.Errorf("x: %w", &cloud.APIError{Status: 401}), "API request failed with status code 401"},
		{"network", netErr, NetworkMessage + "\nNetwork error: " + netErr.Error()},
		{"idle timeout", &cloud.StreamError{Err: cloud.ErrReadTimeout}, NetworkMessage + "\nNetwork error: " + (&cloud.StreamError{Err: cloud.ErrReadTimeout}).Error()},
		{"canceled", context.Canceled, CanceledMessage},
		{"other", errors.New("boom"), "Unexpected error: boom"},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FailureMessage(tt.err))
		})
	}

	assert.Contains(t, FailureMessage(cloud.ErrNotConfigured), "PURSUER_API_KEY")
}

// =============================================================================
// QUEUE
// =============================================================================

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 100; i++ {
		q.Post(Fragment{RequestID: "r", Text: fmt.Sprint(i)})
	}
	assert.Equal(t, 100, q.Len())

	for i := 0; i < 100; i++ {
		ev := next(t, q)
		assert.Equal(t, fmt.Sprint(i), ev.(Fragment).Text)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueue_NextHonorsContext(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_ConcurrentProducer(t *testing.T) {
	q := NewQueue()
	go func() {
		for i := 0; i < 500; i++ {
			q.Post(Fragment{RequestID: "r", Text: fmt.Sprint(i)})
		}
	}()
	for i := 0; i < 500; i++ {
		assert.Equal(t, fmt.Sprint(i), next(t, q).(Fragment).Text)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(Fragment{}))
	assert.True(t, IsTerminal(Done{}))
	assert.True(t, IsTerminal(Failed{}))
}

// =============================================================================
// MANAGER
// =============================================================================

func TestManager_SubmitValidation(t *testing.T) {
	streamer := &fakeStreamer{block: true, started: make(chan struct{})}
	q := NewQueue()
	m := newTestManager(streamer, q, nil)

	_, err := m.Submit("   ", "")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	id, err := m.Submit("hello", "You: hello\n\n")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.True(t, m.Busy())
	assert.Equal(t, id, m.Active())

	_, err = m.Submit("again", "")
	assert.ErrorIs(t, err, ErrBusy)

	<-streamer.started
	m.Close()

	_, err = m.Submit("after close", "")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 0, q.Len(), "an abandoned request posts nothing")
}

func TestManager_BuildRequest(t *testing.T) {
	m := newTestManager(&fakeStreamer{}, NewQueue(), nil)

	displayed := "You: hi\n\nHello there\n\nYou: next\n\n"
	req, turns := m.BuildRequest("next", displayed)

	assert.Equal(t, 2, turns)
	assert.Equal(t, "test-model", req.Model)
	assert.True(t, req.Stream)
	assert.Equal(t, 0.5, req.Temperature)
	assert.Equal(t, 40, req.TopK)
	assert.Equal(t, 256, req.MaxTokens)
	assert.Equal(t, []cloud.ChatMessage{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "Hello there"},
		{Role: "user", Content: "next"},
	}, req.Messages)

	m.SetModel("other")
	req, _ = m.BuildRequest("x", "")
	assert.Equal(t, "other", req.Model)
}

func TestConversation_MultiLineEchoIsNotResent(t *testing.T) {
	m := newTestManager(&fakeStreamer{}, NewQueue(), nil)
	surface := &fakeSurface{}
	conv := NewConversation(surface, nil, "", nil)

	message := "line one\n\nline two\n"
	conv.Echo(message)
	assert.Equal(t, "You: line one\nline two\n\n", surface.Text())

	req, turns := m.BuildRequest(message, surface.Text())
	assert.Equal(t, 0, turns)
	assert.Equal(t, []cloud.ChatMessage{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "line one\n\nline two"},
	}, req.Messages)
}

func TestManager_CancelPostsFailed(t *testing.T) {
	streamer := &fakeStreamer{block: true, started: make(chan struct{})}
	q := NewQueue()
	rec := &fakeRecorder{}
	m := newTestManager(streamer, q, rec)
	defer m.Close()

	id, err := m.Submit("hello", "")
	require.NoError(t, err)
	<-streamer.started

	assert.False(t, m.Cancel("not-the-id"))
	assert.True(t, m.Cancel(id))

	ev := next(t, q)
	failed, ok := ev.(Failed)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, id, failed.RequestID)
	assert.Equal(t, CanceledMessage, failed.Message)

	recs := rec.all()
	require.Len(t, recs, 1)
	assert.Equal(t, telemetry.StatusCanceled, recs[0].Status)

	assert.True(t, m.Busy(), "slot is held until Release")
	m.Release("someone-else")
	assert.True(t, m.Busy())
	m.Release(id)
	assert.False(t, m.Busy())
}

// =============================================================================
// CONVERSATION
// =============================================================================

func TestConversation_StreamAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat_history.txt")
	store := transcript.NewStore(path)
	surface := &fakeSurface{}
	conv := NewConversation(surface, store, "", nil)

	streamer := &fakeStreamer{fragments: []string{"Hel", "lo **wo", "rld**\n", "see [docs](http://x)"}}
	q := NewQueue()
	rec := &fakeRecorder{}
	m := newTestManager(streamer, q, rec)
	defer m.Close()

	require.NoError(t, conv.Load())

	id, err := conv.Send(m, "hi")
	require.NoError(t, err)
	assert.Equal(t, id, conv.Current())

	events := drain(t, q, conv, m, id)
	require.Len(t, events, 5)
	for i, frag := range streamer.fragments {
		assert.Equal(t, Fragment{RequestID: id, Text: frag}, events[i])
	}
	assert.IsType(t, Done{}, events[4])

	want := "You: hi\n\nHello world\nsee docs\n\n\n"
	assert.Equal(t, want, surface.Text())

	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, string(saved))

	url, ok := conv.Renderer().Links().Resolve(1)
	assert.True(t, ok)
	assert.Equal(t, "http://x", url)

	req := streamer.lastRequest(t)
	assert.Equal(t, []cloud.ChatMessage{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
	}, req.Messages, "echoed message is not duplicated")

	recs := rec.all()
	require.Len(t, recs, 1)
	assert.Equal(t, id, recs[0].ID)
	assert.Equal(t, telemetry.StatusOK, recs[0].Status)
	assert.Equal(t, 4, recs[0].Fragments)

	// Second exchange carries the first one as history.
	streamer.fragments = []string{"ok"}
	id2, err := conv.Send(m, "again")
	require.NoError(t, err)
	drain(t, q, conv, m, id2)

	req = streamer.lastRequest(t)
	assert.Equal(t, []cloud.ChatMessage{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "Hello world see docs"},
		{Role: "user", Content: "again"},
	}, req.Messages)
}

func TestConversation_FailureRendersMessage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat_history.txt")
	surface := &fakeSurface{}
	conv := NewConversation(surface, transcript.NewStore(path), "", nil)

	streamer := &fakeStreamer{
		fragments: []string{"partial"},
		err:       &cloud.StreamError{Partial: "partial", Err: &cloud.APIError{Status: 502}},
	}
	q := NewQueue()
	m := newTestManager(streamer, q, nil)
	defer m.Close()

	id, err := conv.Send(m, "hi")
	require.NoError(t, err)
	events := drain(t, q, conv, m, id)

	failed, ok := events[len(events)-1].(Failed)
	require.True(t, ok)
	assert.Equal(t, "API request failed with status code 502", failed.Message)

	want := "You: hi\n\npartial\nAPI request failed with status code 502\n\n"
	assert.Equal(t, want, surface.Text())

	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, string(saved))
	assert.False(t, m.Busy())
}

func TestConversation_SendWhileBusy(t *testing.T) {
	streamer := &fakeStreamer{block: true, started: make(chan struct{})}
	surface := &fakeSurface{}
	conv := NewConversation(surface, nil, "", nil)
	m := newTestManager(streamer, NewQueue(), nil)

	_, err := conv.Send(m, "first")
	require.NoError(t, err)
	<-streamer.started
	before := surface.Text()

	_, err = conv.Send(m, "second")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, before, surface.Text(), "a rejected message is not echoed")

	_, err = conv.Send(m, "  ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	m.Close()
}

func TestConversation_IgnoresStaleEvents(t *testing.T) {
	surface := &fakeSurface{}
	conv := NewConversation(surface, nil, "", nil)

	done, err := conv.Apply(Fragment{RequestID: "stale", Text: "x\n"})
	assert.NoError(t, err)
	assert.False(t, done)
	assert.Empty(t, surface.Text())
}

func TestConversation_LoadAndClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat_history.txt")
	require.NoError(t, os.WriteFile(path, []byte("You: a\n\n**not rendered**\n\n"), 0600))

	surface := &fakeSurface{}
	conv := NewConversation(surface, transcript.NewStore(path), "", nil)
	require.NoError(t, conv.Load())
	assert.Equal(t, "You: a\n\n**not rendered**\n\n", surface.Text(), "history is loaded verbatim")

	conv.ClearScreen()
	assert.Empty(t, surface.Text())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, data, "clearing the screen keeps the file")

	require.NoError(t, conv.Load())
	require.NoError(t, conv.ClearHistory())
	assert.Empty(t, surface.Text())
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestConversation_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat_history.txt")
	surface := &fakeSurface{}
	conv := NewConversation(surface, transcript.NewStore(path), "", nil)
	require.NoError(t, conv.Load())

	changed, err := conv.Reload()
	require.NoError(t, err)
	assert.False(t, changed, "missing file matches the empty surface")

	require.NoError(t, os.WriteFile(path, []byte("You: edited\n\n"), 0600))
	changed, err = conv.Reload()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "You: edited\n\n", surface.Text())

	changed, err = conv.Reload()
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestConversation_LoadError(t *testing.T) {
	dir := t.TempDir()
	// A directory cannot be read as a file.
	surface := &fakeSurface{}
	conv := NewConversation(surface, transcript.NewStore(dir), "", nil)

	err := conv.Load()
	assert.Error(t, err)
	assert.Contains(t, surface.Text(), "Error loading chat history")
}
