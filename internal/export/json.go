// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/jeranaias/pursuer/internal/transcript"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports the turns with metadata. The flat text is omitted;
// it can be rebuilt from the turns.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

type jsonDocument struct {
	Title      string            `json:"title"`
	Model      string            `json:"model,omitempty"`
	Source     string            `json:"source,omitempty"`
	ExportedAt time.Time         `json:"exported_at"`
	Messages   int               `json:"messages"`
	Turns      []transcript.Turn `json:"turns"`
}

// Export converts a document to indented JSON.
func (e *JSONExporter) Export(doc *Document) ([]byte, error) {
	if err := doc.validate(); err != nil {
		return nil, err
	}

	out := jsonDocument{
		Title:      doc.Title,
		ExportedAt: doc.ExportedAt,
		Messages:   len(doc.Turns),
		Turns:      doc.Turns,
	}
	if e.options.IncludeMetadata {
		out.Model = doc.Model
		out.Source = doc.Source
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
