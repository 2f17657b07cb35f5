// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"strings"

	"github.com/jeranaias/pursuer/internal/markdown"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports the history as a standalone page. The transcript is
// rendered with the same markdown rules as the chat view.
type HTMLExporter struct {
	options *Options
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts}
}

// Export converts a document to HTML.
func (e *HTMLExporter) Export(doc *Document) ([]byte, error) {
	if err := doc.validate(); err != nil {
		return nil, err
	}

	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}

	var sb strings.Builder

	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n")
	sb.WriteString("<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	sb.WriteString(fmt.Sprintf("    <title>%s</title>\n", html.EscapeString(doc.Title)))
	sb.WriteString("    <meta name=\"generator\" content=\"pursuer\">\n")
	sb.WriteString(css)
	sb.WriteString("</head>\n")
	sb.WriteString(fmt.Sprintf("<body class=\"%s-theme\">\n", theme))
	sb.WriteString("    <div class=\"container\">\n")

	if e.options.IncludeMetadata {
		sb.WriteString(e.renderHeader(doc))
	}

	sb.WriteString("        <main class=\"conversation\">\n")
	sb.WriteString(renderTranscript(doc.Text, doc.UserPrefix))
	sb.WriteString("        </main>\n")

	sb.WriteString("        <footer class=\"footer\">\n")
	sb.WriteString(fmt.Sprintf("            <p>Exported from <strong>pursuer</strong> on %s</p>\n",
		doc.ExportedAt.Format("January 2, 2006 at 3:04 PM")))
	sb.WriteString("        </footer>\n")
	sb.WriteString("    </div>\n")
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// =============================================================================
// RENDERING FUNCTIONS
// =============================================================================

func (e *HTMLExporter) renderHeader(doc *Document) string {
	var sb strings.Builder

	sb.WriteString("        <header class=\"header\">\n")
	sb.WriteString(fmt.Sprintf("            <h1>%s</h1>\n", html.EscapeString(doc.Title)))
	sb.WriteString("            <div class=\"metadata\">\n")
	if doc.Model != "" {
		sb.WriteString(fmt.Sprintf("                <span class=\"meta-item\"><strong>Model:</strong> %s</span>\n", html.EscapeString(doc.Model)))
	}
	sb.WriteString(fmt.Sprintf("                <span class=\"meta-item\"><strong>Exported:</strong> %s</span>\n", formatTimestamp(doc.ExportedAt)))
	sb.WriteString(fmt.Sprintf("                <span class=\"meta-item\"><strong>Messages:</strong> %d</span>\n", len(doc.Turns)))
	sb.WriteString("            </div>\n")
	sb.WriteString("        </header>\n")

	return sb.String()
}

// renderTranscript streams text through a markdown renderer and converts
// each rendered line to a block element. Lines starting with userPrefix are
// marked as user lines; fenced lines are gathered into one <pre> block.
func renderTranscript(text, userPrefix string) string {
	r := markdown.NewRenderer()
	ops := r.Feed(text)
	ops = append(ops, r.Finish()...)

	var (
		sb     strings.Builder
		inPre   bool
		preLang string
		blanks  int
	)

	closePre := func() {
		if inPre {
			sb.WriteString("</code></pre>\n")
			inPre = false
		}
		blanks = 0
	}

	for _, line := range splitLines(ops) {
		if len(line) == 0 {
			if inPre {
				blanks++
			}
			continue
		}

		if first := line[0]; first.Fenced {
			if inPre && first.Lang != preLang {
				closePre()
			}
			if !inPre {
				lang := ""
				if first.Lang != "" {
					lang = fmt.Sprintf(" class=\"language-%s\"", html.EscapeString(first.Lang))
				}
				sb.WriteString(fmt.Sprintf("            <pre class=\"code-block\"><code%s>", lang))
				inPre = true
				preLang = first.Lang
			} else {
				sb.WriteString(strings.Repeat("\n", blanks+1))
			}
			blanks = 0
			sb.WriteString(html.EscapeString(markdown.PlainText(line)))
			continue
		}
		closePre()

		if level := line[0].Style.HeaderLevel(); level > 0 {
			sb.WriteString(fmt.Sprintf("            <h%d>%s</h%d>\n", level, html.EscapeString(line[0].Text), level))
			continue
		}

		class := "assistant"
		if strings.HasPrefix(markdown.PlainText(line), userPrefix) {
			class = "user"
		}
		sb.WriteString(fmt.Sprintf("            <p class=\"%s\">", class))
		for _, op := range line {
			sb.WriteString(inlineHTML(op, r.Links()))
		}
		sb.WriteString("</p>\n")
	}
	closePre()

	return sb.String()
}

// splitLines groups ops into lines, dropping the line breaks.
func splitLines(ops []markdown.RenderOp) [][]markdown.RenderOp {
	var (
		lines [][]markdown.RenderOp
		cur   []markdown.RenderOp
	)
	for _, op := range ops {
		if op.IsLineBreak() {
			lines = append(lines, cur)
			cur = nil
			continue
		}
		cur = append(cur, op)
	}
	if len(cur) > 0 {
		lines = append(lines, cur)
	}
	return lines
}

// inlineHTML renders one inline op. Links whose URL is not http, https or
// mailto are rendered as plain text.
func inlineHTML(op markdown.RenderOp, links *markdown.LinkTable) string {
	text := html.EscapeString(op.Text)
	switch op.Style {
	case markdown.StyleBold:
		return "<strong>" + text + "</strong>"
	case markdown.StyleItalic:
		return "<em>" + text + "</em>"
	case markdown.StyleCode:
		return "<code>" + text + "</code>"
	case markdown.StyleStrikethrough:
		return "<del>" + text + "</del>"
	case markdown.StyleLink:
		url, ok := links.Resolve(op.Link)
		if !ok || !safeURL(url) {
			return text
		}
		return fmt.Sprintf("<a href=\"%s\">%s</a>", html.EscapeString(url), text)
	}
	return text
}

func safeURL(url string) bool {
	lower := strings.ToLower(strings.TrimSpace(url))
	for _, scheme := range []string{"http://", "https://", "mailto:"} {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

// =============================================================================
// EMBEDDED CSS
// =============================================================================

const css = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }

        :root {
            --font-sans: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            --font-mono: "SF Mono", "Monaco", "Inconsolata", "Fira Code", "Source Code Pro", monospace;
        }

        .dark-theme {
            --bg-primary: #1a1b26;
            --bg-secondary: #24283b;
            --bg-tertiary: #414868;
            --text-primary: #c0caf5;
            --text-secondary: #a9b1d6;
            --code-bg: #1a1b26;
            --accent-blue: #7aa2f7;
            --accent-green: #9ece6a;
        }

        .light-theme {
            --bg-primary: #ffffff;
            --bg-secondary: #f7f8fa;
            --bg-tertiary: #e1e4e8;
            --text-primary: #24292e;
            --text-secondary: #586069;
            --code-bg: #f6f8fa;
            --accent-blue: #0366d6;
            --accent-green: #22863a;
        }

        body {
            font-family: var(--font-sans);
            font-size: 16px;
            line-height: 1.6;
            color: var(--text-primary);
            background: var(--bg-primary);
            padding: 20px;
        }

        .container {
            max-width: 900px;
            margin: 0 auto;
            background: var(--bg-secondary);
            border-radius: 12px;
            overflow: hidden;
        }

        .header { padding: 32px; background: var(--bg-tertiary); }
        .header h1 { font-size: 28px; margin-bottom: 16px; }
        .metadata { display: flex; flex-wrap: wrap; gap: 16px; font-size: 14px; color: var(--text-secondary); }

        .conversation { padding: 24px 32px; }
        .conversation p { margin: 4px 0; white-space: pre-wrap; }
        .conversation p.user { color: var(--accent-green); font-weight: 600; margin-top: 20px; }
        .conversation h1, .conversation h2, .conversation h3,
        .conversation h4, .conversation h5, .conversation h6 { margin: 16px 0 8px; color: var(--accent-blue); }
        .conversation a { color: var(--accent-blue); }
        .conversation code { font-family: var(--font-mono); background: var(--code-bg); padding: 1px 4px; border-radius: 4px; }

        .code-block {
            font-family: var(--font-mono);
            background: var(--code-bg);
            padding: 12px 16px;
            margin: 8px 0;
            border-radius: 8px;
            overflow-x: auto;
        }
        .code-block code { background: none; padding: 0; }

        .footer { padding: 16px 32px; font-size: 13px; color: var(--text-secondary); }
    </style>
`
