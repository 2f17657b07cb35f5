// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports the history as Markdown, one section per turn.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a document to Markdown.
func (e *MarkdownExporter) Export(doc *Document) ([]byte, error) {
	if err := doc.validate(); err != nil {
		return nil, err
	}

	var sb strings.Builder

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		sb.WriteString(fmt.Sprintf("title: %s\n", escapeYAML(doc.Title)))
		if doc.Model != "" {
			sb.WriteString(fmt.Sprintf("model: %s\n", escapeYAML(doc.Model)))
		}
		if doc.Source != "" {
			sb.WriteString(fmt.Sprintf("source: %s\n", escapeYAML(doc.Source)))
		}
		sb.WriteString(fmt.Sprintf("messages: %d\n", len(doc.Turns)))
		sb.WriteString(fmt.Sprintf("exported: %s\n", doc.ExportedAt.Format(time.RFC3339)))
		sb.WriteString("generator: pursuer\n")
		sb.WriteString("---\n\n")
	}

	sb.WriteString(fmt.Sprintf("# %s\n\n", escapeMarkdown(doc.Title)))

	for i, turn := range doc.Turns {
		sb.WriteString(fmt.Sprintf("### %s\n\n", roleLabel(turn.Role)))
		sb.WriteString(strings.TrimSpace(turn.Content))
		sb.WriteString("\n\n")
		if i < len(doc.Turns)-1 {
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString(fmt.Sprintf("*Exported from pursuer on %s*\n",
		doc.ExportedAt.Format("January 2, 2006 at 3:04 PM")))

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// escapeMarkdown escapes characters that would start markup in a heading.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		"*", `\*`,
		"_", `\_`,
		"`", "\\`",
		"[", `\[`,
		"]", `\]`,
		"#", `\#`,
	)
	return r.Replace(s)
}

// escapeYAML quotes a scalar when it holds characters YAML would interpret.
func escapeYAML(s string) string {
	if s == "" || strings.ContainsAny(s, ":#{}[]&*!|>'\"%@`,\n") || strings.TrimSpace(s) != s {
		s = strings.ReplaceAll(s, `\`, `\\`)
		s = strings.ReplaceAll(s, `"`, `\"`)
		s = strings.ReplaceAll(s, "\n", `\n`)
		return `"` + s + `"`
	}
	return s
}
