// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/pursuer/internal/util"
)

// =============================================================================
// CONFIGURATION STRUCTURES
// =============================================================================

// Config is the root configuration.
type Config struct {
	Version    string           `toml:"version" json:"version"`
	API        APIConfig        `toml:"api" json:"api"`
	Generation GenerationConfig `toml:"generation" json:"generation"`
	History    HistoryConfig    `toml:"history" json:"history"`
	UI         UIConfig         `toml:"ui" json:"ui"`
	Log        LogConfig        `toml:"log" json:"log"`
	Telemetry  TelemetryConfig  `toml:"telemetry" json:"telemetry"`
}

// APIConfig configures the chat completions endpoint.
type APIConfig struct {
	// BaseURL is the OpenAI-compatible API root; "/chat/completions" is appended.
	BaseURL string `toml:"base_url" json:"base_url"`

	// APIKey is sent as a bearer token. Never logged.
	APIKey string `toml:"api_key" json:"api_key"`

	// Model must be one of Models; an unknown model falls back to Models[0].
	Model  string   `toml:"model" json:"model"`
	Models []string `toml:"models" json:"models"`

	ConnectTimeoutSecs int `toml:"connect_timeout_secs" json:"connect_timeout_secs"`
	ReadTimeoutSecs    int `toml:"read_timeout_secs" json:"read_timeout_secs"`

	// MaxRetries applies only before any response content has arrived.
	MaxRetries int `toml:"max_retries" json:"max_retries"`
}

// GenerationConfig holds the sampling parameters passed through to the API.
type GenerationConfig struct {
	SystemPrompt      string  `toml:"system_prompt" json:"system_prompt"`
	RepetitionPenalty float64 `toml:"repetition_penalty" json:"repetition_penalty"`
	Temperature       float64 `toml:"temperature" json:"temperature"`
	TopP              float64 `toml:"top_p" json:"top_p"`
	TopK              int     `toml:"top_k" json:"top_k"`
	MaxTokens         int     `toml:"max_tokens" json:"max_tokens"`
}

// HistoryConfig controls the persisted transcript.
type HistoryConfig struct {
	File string `toml:"file" json:"file"`

	// MaxChars bounds the serialized history sent with each request.
	MaxChars int `toml:"max_chars" json:"max_chars"`

	// UserPrefix marks user lines in the transcript.
	UserPrefix string `toml:"user_prefix" json:"user_prefix"`
}

// UIConfig controls the terminal front ends.
type UIConfig struct {
	// Theme is "auto", "dark" or "light".
	Theme string `toml:"theme" json:"theme"`

	// HighlightCode enables syntax highlighting of fenced code.
	HighlightCode bool `toml:"highlight_code" json:"highlight_code"`

	// WordWrap wraps prose at the view width.
	WordWrap bool `toml:"word_wrap" json:"word_wrap"`

	// AltScreen runs the chat view in the alternate screen buffer.
	AltScreen bool `toml:"alt_screen" json:"alt_screen"`
}

// LogConfig controls the error log.
type LogConfig struct {
	// Level is "off", "error", "warn", "info" or "debug".
	Level string `toml:"level" json:"level"`
	File  string `toml:"file" json:"file"`
}

// TelemetryConfig controls the local request usage log.
type TelemetryConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled"`
	Path    string `toml:"path" json:"path"`
}

// ConnectTimeout returns the connection timeout.
func (a APIConfig) ConnectTimeout() time.Duration {
	return time.Duration(a.ConnectTimeoutSecs) * time.Second
}

// ReadTimeout returns the response/idle read timeout.
func (a APIConfig) ReadTimeout() time.Duration {
	return time.Duration(a.ReadTimeoutSecs) * time.Second
}

// HasModel reports whether name is one of the configured models.
func (a APIConfig) HasModel(name string) bool {
	for _, m := range a.Models {
		if m == name {
			return true
		}
	}
	return false
}

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	// CurrentVersion is written to new config files.
	CurrentVersion = "1"

	DefaultBaseURL      = "https://api.arliai.com/v1"
	DefaultSystemPrompt = "You are a helpful AI assistant."
	DefaultMaxChars     = 4000
	DefaultUserPrefix   = "You: "

	historyFileName   = "chat_history.txt"
	logFileName       = "error_log.txt"
	telemetryFileName = "usage.db"
	legacyKeyFileName = "api_key.txt"
)

// DefaultModels is the built-in model list.
var DefaultModels = []string{
	"Meta-Llama-3.1-8B-Instruct",
	"Mistral-Nemo-12B-Instruct-2407",
}

// Default returns a configuration with every field at its default.
// Paths are relative to Dir and resolved by SetDefaults.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		API: APIConfig{
			BaseURL:            DefaultBaseURL,
			Model:              DefaultModels[0],
			Models:             append([]string(nil), DefaultModels...),
			ConnectTimeoutSecs: 15,
			ReadTimeoutSecs:    35,
			MaxRetries:         2,
		},
		Generation: GenerationConfig{
			SystemPrompt:      DefaultSystemPrompt,
			RepetitionPenalty: 1.0,
			Temperature:       0.7,
			TopP:              0.9,
			TopK:              40,
			MaxTokens:         1024,
		},
		History: HistoryConfig{
			MaxChars:   DefaultMaxChars,
			UserPrefix: DefaultUserPrefix,
		},
		UI: UIConfig{
			Theme:         "auto",
			HighlightCode: true,
			WordWrap:      true,
			AltScreen:     true,
		},
		Log: LogConfig{
			Level: "warn",
		},
		Telemetry: TelemetryConfig{
			Enabled: true,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// Dir returns the configuration directory: $PURSUER_HOME or ~/.pursuer.
func Dir() (string, error) {
	if dir := os.Getenv("PURSUER_HOME"); dir != "" {
		return util.ExpandHome(dir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".pursuer"), nil
}

// PathTOML returns the path of config.toml.
func PathTOML() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// PathJSON returns the path of config.json.
func PathJSON() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// SECURITY: config files may hold an API key and are kept at 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads config.toml, falling back to config.json and then defaults.
// .env files and environment overrides are applied, paths resolved and the
// result validated. A file that fails to parse is reported alongside a
// usable default configuration.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	loaded := false
	if path, err := PathTOML(); err == nil && fileExists(path) {
		if err := LoadTOML(cfg, path); err != nil {
			loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			cfg = Default()
		} else {
			loaded = true
		}
	}
	if !loaded {
		if path, err := PathJSON(); err == nil && fileExists(path) {
			if err := LoadJSON(cfg, path); err != nil {
				loadErr = errors.Join(loadErr, fmt.Errorf("failed to load JSON config: %w", err))
				cfg = Default()
			}
		}
	}

	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, loadErr
}

// LoadFromPath loads a specific file (.json by extension, TOML otherwise).
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(strings.ToLower(path), ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else if err := LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
	}

	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish applies everything that follows file decoding.
func finish(cfg *Config) error {
	LoadDotEnv()
	cfg.ApplyEnvOverrides()
	cfg.loadLegacyAPIKey()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadTOML decodes path over cfg. Keys absent from the file keep their
// current values.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %s\n", path, strings.Join(keys, ", "))
	}
	return nil
}

// LoadJSON decodes path over cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadDotEnv loads .env from the working directory and the config directory.
// Variables already set in the environment win.
func LoadDotEnv() {
	candidates := []string{".env"}
	if dir, err := Dir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, ".env"))
	}
	for _, path := range candidates {
		if !fileExists(path) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not load %s: %v\n", path, err)
		}
	}
}

// loadLegacyAPIKey reads api_key.txt from the config directory when no key
// is configured.
func (c *Config) loadLegacyAPIKey() {
	if c.API.APIKey != "" {
		return
	}
	dir, err := Dir()
	if err != nil {
		return
	}
	data, err := os.ReadFile(filepath.Join(dir, legacyKeyFileName))
	if err != nil {
		return
	}
	c.API.APIKey = strings.TrimSpace(string(data))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes cfg to path with a header comment, atomically and 0600.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# pursuer configuration file\n")
	buf.WriteString("# Environment variables PURSUER_API_KEY, PURSUER_MODEL and PURSUER_BASE_URL override these values.\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.WriteFileAtomic(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// DEFAULTS AND OVERRIDES
// =============================================================================

// SetDefaults fills empty values, resolves file paths against Dir and resets
// an unknown model to the first known one.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = d.API.BaseURL
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if len(c.API.Models) == 0 {
		c.API.Models = d.API.Models
	}
	if !c.API.HasModel(c.API.Model) {
		c.API.Model = c.API.Models[0]
	}
	if c.API.ConnectTimeoutSecs <= 0 {
		c.API.ConnectTimeoutSecs = d.API.ConnectTimeoutSecs
	}
	if c.API.ReadTimeoutSecs <= 0 {
		c.API.ReadTimeoutSecs = d.API.ReadTimeoutSecs
	}
	if c.API.MaxRetries < 0 {
		c.API.MaxRetries = 0
	}

	if c.Generation.SystemPrompt == "" {
		c.Generation.SystemPrompt = d.Generation.SystemPrompt
	}
	if c.Generation.MaxTokens <= 0 {
		c.Generation.MaxTokens = d.Generation.MaxTokens
	}

	if c.History.UserPrefix == "" {
		c.History.UserPrefix = d.History.UserPrefix
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	c.Log.Level = strings.ToLower(c.Log.Level)

	dir, err := Dir()
	if err != nil {
		dir = "."
	}
	c.History.File = resolvePath(c.History.File, dir, historyFileName)
	c.Log.File = resolvePath(c.Log.File, dir, logFileName)
	c.Telemetry.Path = resolvePath(c.Telemetry.Path, dir, telemetryFileName)
}

func resolvePath(path, dir, name string) string {
	if path == "" {
		return filepath.Join(dir, name)
	}
	path = util.ExpandHome(path)
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	return path
}

// ApplyEnvOverrides applies PURSUER_* environment variables.
func (c *Config) ApplyEnvOverrides() {
	if key := os.Getenv("PURSUER_API_KEY"); key != "" {
		c.API.APIKey = key
	}
	if model := os.Getenv("PURSUER_MODEL"); model != "" {
		c.API.Model = model
	}
	if base := os.Getenv("PURSUER_BASE_URL"); base != "" {
		c.API.BaseURL = base
	}
	if file := os.Getenv("PURSUER_HISTORY_FILE"); file != "" {
		c.History.File = file
	}
	if level := os.Getenv("PURSUER_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError is a single invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects every invalid field.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

var (
	validThemes    = []string{"auto", "dark", "light"}
	validLogLevels = []string{"off", "error", "warn", "info", "debug"}
)

// Validate checks ranges and enumerations. It returns ValidateErrors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if u, err := url.Parse(c.API.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("api.base_url", "must be an http(s) URL, got %q", c.API.BaseURL)
	}
	for i, m := range c.API.Models {
		if strings.TrimSpace(m) == "" {
			add("api.models", "entry %d is empty", i)
		}
	}
	if c.API.MaxRetries > 10 {
		add("api.max_retries", "must be at most 10, got %d", c.API.MaxRetries)
	}
	if c.API.ConnectTimeoutSecs > 600 {
		add("api.connect_timeout_secs", "must be at most 600, got %d", c.API.ConnectTimeoutSecs)
	}
	if c.API.ReadTimeoutSecs > 3600 {
		add("api.read_timeout_secs", "must be at most 3600, got %d", c.API.ReadTimeoutSecs)
	}

	g := c.Generation
	if g.Temperature < 0 || g.Temperature > 2 {
		add("generation.temperature", "must be between 0 and 2, got %g", g.Temperature)
	}
	if g.TopP < 0 || g.TopP > 1 {
		add("generation.top_p", "must be between 0 and 1, got %g", g.TopP)
	}
	if g.TopK < 0 {
		add("generation.top_k", "must not be negative, got %d", g.TopK)
	}
	if g.RepetitionPenalty <= 0 {
		add("generation.repetition_penalty", "must be positive, got %g", g.RepetitionPenalty)
	}

	if c.History.MaxChars < 0 {
		add("history.max_chars", "must not be negative, got %d", c.History.MaxChars)
	}
	if !contains(validThemes, c.UI.Theme) {
		add("ui.theme", "must be one of %s, got %q", strings.Join(validThemes, ", "), c.UI.Theme)
	}
	if !contains(validLogLevels, c.Log.Level) {
		add("log.level", "must be one of %s, got %q", strings.Join(validLogLevels, ", "), c.Log.Level)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// =============================================================================
// COPY AND DISPLAY
// =============================================================================

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	clone := *c
	clone.API.Models = append([]string(nil), c.API.Models...)
	return &clone
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	if safe.API.APIKey != "" {
		safe.API.APIKey = "[REDACTED]"
	}
	return safe
}

// String renders the configuration as TOML with the API key redacted.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c.Redacted()); err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return buf.String()
}
