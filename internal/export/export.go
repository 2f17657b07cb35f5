// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/pursuer/internal/transcript"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter converts a Document to one output format.
type Exporter interface {
	// Export returns the rendered document.
	Export(doc *Document) ([]byte, error)

	// FileExtension returns the extension including the dot, e.g. ".md".
	FileExtension() string

	// MimeType returns the MIME type of the output.
	MimeType() string
}

// Document is the chat history being exported.
type Document struct {
	Title      string
	Model      string
	Source     string
	ExportedAt time.Time

	// Text is the flat transcript; Turns is its parsed form.
	Text       string
	Turns      []transcript.Turn
	UserPrefix string
}

// NewDocument parses text into a document stamped with the current time.
func NewDocument(text string, parser *transcript.Parser, model, source string) *Document {
	prefix := parser.UserPrefix
	if prefix == "" {
		prefix = transcript.DefaultUserPrefix
	}
	return &Document{
		Title:      "Chat history",
		Model:      model,
		Source:     source,
		ExportedAt: time.Now(),
		Text:       text,
		Turns:      parser.Turns(text),
		UserPrefix: prefix,
	}
}

func (d *Document) validate() error {
	if d == nil {
		return fmt.Errorf("document is nil")
	}
	if len(d.Turns) == 0 {
		return fmt.Errorf("history has no messages")
	}
	return nil
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// IncludeMetadata adds the header block (model, source, dates).
	IncludeMetadata bool

	// Theme for HTML export ("light" or "dark").
	Theme string
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		IncludeMetadata: true,
		Theme:           "dark",
	}
}

// =============================================================================
// FORMATS
// =============================================================================

// Format names an export format.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
)

// Formats lists the accepted format names.
var Formats = []Format{FormatMarkdown, FormatHTML, FormatJSON}

// ParseFormat accepts a format name or a common alias ("markdown", "htm").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown export format %q (use md, html or json)", s)
}

// New returns the exporter for f.
func New(f Format, opts *Options) (Exporter, error) {
	switch f {
	case FormatMarkdown:
		return NewMarkdownExporter(opts), nil
	case FormatHTML:
		return NewHTMLExporter(opts), nil
	case FormatJSON:
		return NewJSONExporter(opts), nil
	}
	return nil, fmt.Errorf("unknown export format %q", string(f))
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ExportToFile writes the exported document to path and returns the path
// written. When path is an existing directory, a file named after the
// document's title and export time is created inside it.
func ExportToFile(doc *Document, exporter Exporter, path string) (string, error) {
	content, err := exporter.Export(doc)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, Filename(doc, exporter))
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("create output directory: %w", err)
		}
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// Filename is the default file name for doc, e.g.
// "Chat_history_20250102_150405.md".
func Filename(doc *Document, exporter Exporter) string {
	return fmt.Sprintf("%s_%s%s",
		sanitizeFilename(doc.Title),
		doc.ExportedAt.Format("20060102_150405"),
		exporter.FileExtension(),
	)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	const maxLen = 50
	runes := []rune(s)
	if len(runes) > maxLen {
		runes = runes[:maxLen]
	}

	result := make([]rune, 0, len(runes))
	for _, r := range runes {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			result = append(result, '-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			result = append(result, '_')
		case r < 32 || r == 127:
			result = append(result, '-')
		default:
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return "history"
	}
	return string(result)
}

// roleLabel is the heading shown for a turn.
func roleLabel(role string) string {
	switch role {
	case transcript.RoleUser:
		return "You"
	case transcript.RoleAssistant:
		return "Assistant"
	case transcript.RoleSystem:
		return "System"
	case "":
		return "Unknown"
	}
	runes := []rune(role)
	return strings.ToUpper(string(runes[0])) + string(runes[1:])
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
