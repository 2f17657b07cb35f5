// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/pursuer/internal/cloud"
	"github.com/jeranaias/pursuer/internal/telemetry"
	"github.com/jeranaias/pursuer/internal/transcript"
)

// =============================================================================
// TEST HARNESS
// =============================================================================

// fakeAPI is a chat completions endpoint that streams a fixed reply.
type fakeAPI struct {
	mu       sync.Mutex
	requests []cloud.ChatRequest
	status   int
	chunks   []string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req cloud.ChatRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.mu.Lock()
	f.requests = append(f.requests, req)
	status, chunks := f.status, f.chunks
	f.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		io.WriteString(w, `{"error":{"message":"bad request"}}`)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	for _, c := range chunks {
		data, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{{"delta": map[string]string{"content": c}}},
		})
		io.WriteString(w, "data: "+string(data)+"\n\n")
		if fl, ok := w.(http.Flusher); ok {
			fl.Flush()
		}
	}
	io.WriteString(w, "data: [DONE]\n\n")
}

func (f *fakeAPI) lastRequest(t *testing.T) cloud.ChatRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

// testEnv points configuration at a temp directory and api at the base URL.
func testEnv(t *testing.T, api http.Handler) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("PURSUER_HOME", home)
	t.Setenv("PURSUER_API_KEY", "test-key")
	t.Setenv("PURSUER_MODEL", "")
	t.Setenv("PURSUER_HISTORY_FILE", "")
	t.Setenv("PURSUER_LOG_LEVEL", "")

	base := "http://127.0.0.1:1"
	if api != nil {
		server := httptest.NewServer(api)
		t.Cleanup(server.Close)
		base = server.URL
	}
	t.Setenv("PURSUER_BASE_URL", base)

	require.NoError(t, os.WriteFile(filepath.Join(home, "config.toml"), []byte("[api]\nmax_retries = 0\n"), 0600))
	return home
}

type testApp struct {
	*App
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func newTestApp(t *testing.T, args Args, stdin string) *testApp {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	app, err := NewApp(args, AppOptions{In: strings.NewReader(stdin), Out: out, Err: errOut})
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return &testApp{App: app, out: out, errOut: errOut}
}

func replyAPI() *fakeAPI {
	return &fakeAPI{chunks: []string{"Hello ", "**world**\n", "see [docs](https://go.dev)"}}
}

// =============================================================================
// APP TESTS
// =============================================================================

func TestNewApp_Wiring(t *testing.T) {
	home := testEnv(t, nil)
	app := newTestApp(t, Args{}, "")

	assert.Equal(t, filepath.Join(home, "chat_history.txt"), app.History.Path())
	assert.Equal(t, 0, app.Config.API.MaxRetries)
	assert.True(t, app.Client.IsConfigured())
	assert.NotNil(t, app.Telemetry)
	assert.Equal(t, app.Config.History.UserPrefix, app.Parser.UserPrefix)
}

func TestNewApp_ExplicitConfigFile(t *testing.T) {
	testEnv(t, nil)
	path := filepath.Join(t.TempDir(), "alt.toml")
	require.NoError(t, os.WriteFile(path, []byte("[api]\nmax_retries = 4\n[ui]\ntheme = \"light\"\n"), 0600))

	app := newTestApp(t, Args{Config: path}, "")
	assert.Equal(t, 4, app.Config.API.MaxRetries)
	assert.Equal(t, "light", app.Config.UI.Theme)
}

func TestNewApp_ExplicitConfigFileErrors(t *testing.T) {
	testEnv(t, nil)
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[ui]\ntheme = \"neon\"\n"), 0600))

	for _, path := range []string{filepath.Join(dir, "missing.toml"), bad} {
		_, err := NewApp(Args{Config: path}, AppOptions{In: strings.NewReader(""), Out: &bytes.Buffer{}, Err: &bytes.Buffer{}})
		assert.Error(t, err, path)
	}
}

func TestNewApp_UnknownModel(t *testing.T) {
	testEnv(t, nil)
	_, err := NewApp(Args{Model: "nope"}, AppOptions{Out: io.Discard, Err: io.Discard})
	var usageErr *UsageError
	require.ErrorAs(t, err, &usageErr)
	assert.Contains(t, usageErr.Hint, "Meta-Llama-3.1-8B-Instruct")
}

func TestNewApp_ModelOverride(t *testing.T) {
	testEnv(t, nil)
	app := newTestApp(t, Args{Model: "Mistral-Nemo-12B-Instruct-2407"}, "")
	assert.Equal(t, "Mistral-Nemo-12B-Instruct-2407", app.Config.API.Model)
}

func TestNewApp_TelemetryDisabled(t *testing.T) {
	home := testEnv(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.toml"), []byte("[telemetry]\nenabled = false\n"), 0600))

	app := newTestApp(t, Args{}, "")
	assert.Nil(t, app.Telemetry)

	require.NoError(t, RunStats(context.Background(), app.App))
	assert.Contains(t, app.errOut.String(), "Statistics are disabled")
}

// =============================================================================
// ASK TESTS
// =============================================================================

func TestRunAsk_StreamsWithoutSaving(t *testing.T) {
	api := replyAPI()
	testEnv(t, api)
	app := newTestApp(t, Args{Query: "what?"}, "")

	require.NoError(t, app.History.Save("You: earlier\n\nanswer\n\n\n"))
	require.NoError(t, RunAsk(context.Background(), app.App))

	assert.Equal(t, "Hello world\nsee docs[1]\n\n\n", app.out.String())

	req := api.lastRequest(t)
	assert.True(t, req.Stream)
	assert.Equal(t, app.Config.API.Model, req.Model)
	require.GreaterOrEqual(t, len(req.Messages), 3)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, cloud.ChatMessage{Role: "user", Content: "what?"}, req.Messages[len(req.Messages)-1])
	assert.Contains(t, req.Messages, cloud.ChatMessage{Role: "user", Content: "earlier"})
	assert.Contains(t, req.Messages, cloud.ChatMessage{Role: "assistant", Content: "answer"})

	text, _, err := app.History.Load()
	require.NoError(t, err)
	assert.Equal(t, "You: earlier\n\nanswer\n\n\n", text)
}

func TestRunAsk_Save(t *testing.T) {
	testEnv(t, replyAPI())
	app := newTestApp(t, Args{Query: "what?", Save: true}, "")
	require.NoError(t, app.History.Save("You: earlier\n\nanswer\n\n\n"))

	require.NoError(t, RunAsk(context.Background(), app.App))

	text, _, err := app.History.Load()
	require.NoError(t, err)
	assert.Equal(t, "You: earlier\n\nanswer\n\n\nYou: what?\n\nHello world\nsee docs\n\n\n", text)
}

func TestRunAsk_RecordsTelemetry(t *testing.T) {
	testEnv(t, replyAPI())
	app := newTestApp(t, Args{Query: "what?"}, "")
	require.NoError(t, RunAsk(context.Background(), app.App))

	recs, err := app.Telemetry.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, telemetry.StatusOK, recs[0].Status)
	assert.Equal(t, len([]rune("Hello **world**\nsee [docs](https://go.dev)")), recs[0].Chars)
}

func TestRunAsk_QuestionFromStdin(t *testing.T) {
	api := replyAPI()
	testEnv(t, api)
	app := newTestApp(t, Args{Query: "-"}, "from stdin\n")

	require.NoError(t, RunAsk(context.Background(), app.App))
	last := api.lastRequest(t).Messages
	assert.Equal(t, "from stdin", last[len(last)-1].Content)
}

func TestRunAsk_NoQuestion(t *testing.T) {
	testEnv(t, nil)
	app := newTestApp(t, Args{}, "   \n")

	err := RunAsk(context.Background(), app.App)
	var usageErr *UsageError
	require.ErrorAs(t, err, &usageErr)
}

func TestRunAsk_APIFailure(t *testing.T) {
	testEnv(t, &fakeAPI{status: http.StatusBadRequest})
	app := newTestApp(t, Args{Query: "what?", Save: true}, "")

	err := RunAsk(context.Background(), app.App)
	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, "API request failed with status code 400", respErr.Message)
	assert.Equal(t, ExitGeneralError, GetExitCode(err))
	assert.Equal(t, "API request failed with status code 400\n\n", app.out.String())

	text, _, err := app.History.Load()
	require.NoError(t, err)
	assert.Equal(t, "You: what?\n\nAPI request failed with status code 400\n\n", text)

	recs, err := app.Telemetry.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, telemetry.StatusError, recs[0].Status)
}

func TestRunAsk_NetworkFailure(t *testing.T) {
	testEnv(t, nil)
	app := newTestApp(t, Args{Query: "what?"}, "")

	err := RunAsk(context.Background(), app.App)
	assert.Equal(t, ExitNetworkError, GetExitCode(err))
	assert.Contains(t, app.out.String(), "Please check your Internet Connection")
}

// =============================================================================
// HISTORY TESTS
// =============================================================================

func TestRunHistory(t *testing.T) {
	testEnv(t, nil)
	app := newTestApp(t, Args{Subcommand: "show"}, "")

	require.NoError(t, RunHistory(app.App))
	assert.Empty(t, app.out.String())
	assert.Contains(t, app.errOut.String(), "No chat history")

	transcriptText := "You: hi\n\nhello <b>there</b>\n\n\n"
	require.NoError(t, app.History.Save(transcriptText))

	app.out.Reset()
	require.NoError(t, RunHistory(app.App))
	assert.Equal(t, transcriptText, app.out.String())

	app.out.Reset()
	app.Args.Subcommand = "turns"
	require.NoError(t, RunHistory(app.App))
	var turns []transcript.Turn
	require.NoError(t, json.Unmarshal(app.out.Bytes(), &turns))
	assert.Equal(t, []transcript.Turn{
		{Role: transcript.RoleUser, Content: "hi"},
		{Role: transcript.RoleAssistant, Content: "hello <b>there</b>"},
	}, turns)

	app.out.Reset()
	app.Args.Subcommand = "path"
	require.NoError(t, RunHistory(app.App))
	assert.Equal(t, app.History.Path()+"\n", app.out.String())
}

func TestRunHistory_TurnsEmptyIsArray(t *testing.T) {
	testEnv(t, nil)
	app := newTestApp(t, Args{Subcommand: "turns"}, "")
	require.NoError(t, RunHistory(app.App))
	assert.Equal(t, "[]\n", app.out.String())
}

func TestRunHistory_ClearNeedsConfirmation(t *testing.T) {
	testEnv(t, nil)
	app := newTestApp(t, Args{Subcommand: "clear"}, "y\n")
	require.NoError(t, app.History.Save("You: hi\n\n"))

	// A reader that is not a terminal cannot answer the prompt.
	err := RunHistory(app.App)
	var usageErr *UsageError
	require.ErrorAs(t, err, &usageErr)
	text, _, _ := app.History.Load()
	assert.Equal(t, "You: hi\n\n", text)

	app.Args.Yes = true
	require.NoError(t, RunHistory(app.App))
	text, _, _ = app.History.Load()
	assert.Empty(t, text)
}

func TestRunHistory_Export(t *testing.T) {
	testEnv(t, nil)
	app := newTestApp(t, Args{Subcommand: "export", Format: "md"}, "")

	require.NoError(t, RunHistory(app.App))
	assert.Empty(t, app.out.String())
	assert.Contains(t, app.errOut.String(), "No chat history")

	require.NoError(t, app.History.Save("You: hi\n\nsee **this**\n\n\n"))
	require.NoError(t, RunHistory(app.App))
	assert.Contains(t, app.out.String(), "### You\n\nhi\n")
	assert.Contains(t, app.out.String(), "### Assistant\n\nsee **this**\n")

	dir := t.TempDir()
	app.out.Reset()
	app.Args.Format = "html"
	app.Args.Theme = "light"
	app.Args.Output = filepath.Join(dir, "chat.html")
	require.NoError(t, RunHistory(app.App))
	assert.Empty(t, app.out.String())
	assert.Contains(t, app.errOut.String(), "Exported 2 messages to "+app.Args.Output)

	data, err := os.ReadFile(app.Args.Output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<p class=\"assistant\">see <strong>this</strong></p>")
	assert.Contains(t, string(data), "light-theme")
}

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestRunConfig_InitGetSet(t *testing.T) {
	home := testEnv(t, nil)
	path := filepath.Join(home, "config.toml")
	require.NoError(t, os.Remove(path))

	var out, errOut bytes.Buffer
	require.NoError(t, RunConfig(Args{Subcommand: "init"}, &out, &errOut))
	assert.FileExists(t, path)

	err := RunConfig(Args{Subcommand: "init"}, &out, &errOut)
	var usageErr *UsageError
	require.ErrorAs(t, err, &usageErr)
	require.NoError(t, RunConfig(Args{Subcommand: "init", Force: true}, &out, &errOut))

	out.Reset()
	require.NoError(t, RunConfig(Args{Subcommand: "set", ConfigKey: "ui.theme", ConfigVal: "light"}, &out, &errOut))
	assert.Equal(t, "ui.theme = light\n", out.String())

	out.Reset()
	require.NoError(t, RunConfig(Args{Subcommand: "get", ConfigKey: "ui.theme"}, &out, &errOut))
	assert.Equal(t, "light\n", out.String())

	out.Reset()
	require.NoError(t, RunConfig(Args{Subcommand: "get", ConfigKey: "api.models"}, &out, &errOut))
	assert.Equal(t, "Meta-Llama-3.1-8B-Instruct,Mistral-Nemo-12B-Instruct-2407\n", out.String())

	out.Reset()
	require.NoError(t, RunConfig(Args{Subcommand: "path"}, &out, &errOut))
	assert.Equal(t, path+"\n", out.String())
}

func TestRunConfig_ExplicitPath(t *testing.T) {
	testEnv(t, nil)
	path := filepath.Join(t.TempDir(), "nested", "alt.toml")

	var out, errOut bytes.Buffer
	require.NoError(t, RunConfig(Args{Subcommand: "init", Config: path}, &out, &errOut))
	assert.FileExists(t, path)
	require.NoError(t, RunConfig(Args{Subcommand: "set", ConfigKey: "ui.theme", ConfigVal: "light", Config: path, Quiet: true}, &out, &errOut))

	out.Reset()
	require.NoError(t, RunConfig(Args{Subcommand: "get", ConfigKey: "ui.theme", Config: path}, &out, &errOut))
	assert.Equal(t, "light\n", out.String())

	out.Reset()
	require.NoError(t, RunConfig(Args{Subcommand: "path", Config: path}, &out, &errOut))
	assert.Equal(t, path+"\n", out.String())

	err := RunConfig(Args{Subcommand: "init", Config: filepath.Join(t.TempDir(), "alt.json")}, &out, &errOut)
	var usageErr *UsageError
	require.ErrorAs(t, err, &usageErr)
}

func TestRunConfig_SetRejectsInvalid(t *testing.T) {
	home := testEnv(t, nil)
	path := filepath.Join(home, "config.toml")
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	var out, errOut bytes.Buffer
	err = RunConfig(Args{Subcommand: "set", ConfigKey: "ui.theme", ConfigVal: "neon"}, &out, &errOut)
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, GetExitCode(err))

	err = RunConfig(Args{Subcommand: "set", ConfigKey: "no.such", ConfigVal: "x"}, &out, &errOut)
	var usageErr *UsageError
	require.ErrorAs(t, err, &usageErr)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRunConfig_SetDoesNotSaveEnvironment(t *testing.T) {
	home := testEnv(t, nil)

	var out, errOut bytes.Buffer
	require.NoError(t, RunConfig(Args{Subcommand: "set", ConfigKey: "generation.temperature", ConfigVal: "0.2"}, &out, &errOut))

	data, err := os.ReadFile(filepath.Join(home, "config.toml"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "test-key")
	assert.Contains(t, string(data), "temperature = 0.2")
}

func TestRunConfig_ShowRedactsKey(t *testing.T) {
	testEnv(t, nil)

	var out, errOut bytes.Buffer
	require.NoError(t, RunConfig(Args{Subcommand: "show"}, &out, &errOut))
	assert.NotContains(t, out.String(), "test-key")
	assert.Contains(t, out.String(), "[REDACTED]")

	out.Reset()
	require.NoError(t, RunConfig(Args{Subcommand: "get", ConfigKey: "api.api_key"}, &out, &errOut))
	assert.Equal(t, "[REDACTED]\n", out.String())

	out.Reset()
	require.NoError(t, RunConfig(Args{Subcommand: "show", JSON: true}, &out, &errOut))
	var resp JSONResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotContains(t, out.String(), "test-key")
}

// =============================================================================
// STATS TESTS
// =============================================================================

func TestRunStats(t *testing.T) {
	testEnv(t, nil)
	app := newTestApp(t, Args{Subcommand: "show", Limit: 10, NoColor: true}, "")
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, app.Telemetry.Record(ctx, telemetry.Record{ID: "a", Model: "m1", StartedAt: now.Add(-time.Minute), Duration: 2 * time.Second, FirstFragment: 300 * time.Millisecond, Chars: 120}))
	require.NoError(t, app.Telemetry.Record(ctx, telemetry.Record{ID: "b", Model: "m1", StartedAt: now, Status: telemetry.StatusError, Error: "API request failed"}))

	require.NoError(t, RunStats(ctx, app.App))
	out := app.out.String()
	assert.Contains(t, out, "Total:      2 (1 ok, 1 failed, 0 canceled)")
	assert.Contains(t, out, "300ms")
	assert.Contains(t, out, "2.0s")
	assert.Contains(t, out, "API request failed")

	app.out.Reset()
	app.Args.JSON = true
	require.NoError(t, RunStats(ctx, app.App))
	var resp struct {
		Data statsReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(app.out.Bytes(), &resp))
	assert.Equal(t, 2, resp.Data.Summary.Requests)
	require.Len(t, resp.Data.Recent, 2)
	assert.Equal(t, "b", resp.Data.Recent[0].ID)
}

func TestRunStats_Purge(t *testing.T) {
	testEnv(t, nil)
	app := newTestApp(t, Args{Subcommand: "purge", Days: 7}, "")
	ctx := context.Background()

	require.NoError(t, app.Telemetry.Record(ctx, telemetry.Record{ID: "old", StartedAt: time.Now().Add(-30 * 24 * time.Hour)}))
	require.NoError(t, app.Telemetry.Record(ctx, telemetry.Record{ID: "new", StartedAt: time.Now()}))

	require.NoError(t, RunStats(ctx, app.App))
	assert.Equal(t, "Deleted 1 records older than 7 days.\n", app.out.String())

	recs, err := app.Telemetry.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "new", recs[0].ID)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "-", formatDuration(0))
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
	assert.Equal(t, "2m05s", formatDuration(125*time.Second))
}
