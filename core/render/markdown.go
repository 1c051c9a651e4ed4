// Package render turns a mirrored page's Markdown into its output format.
// Markdown is the canonical format; JSON and PDF are derived from the
// goldmark syntax tree of the same text.
package render

import (
	"fmt"
	"strings"

	"github.com/gaurav-prasanna/docmirror/core"
	"github.com/gaurav-prasanna/docmirror/core/config"
)

// MarkdownRenderer writes the Markdown unchanged apart from a single
// trailing newline.
type MarkdownRenderer struct{}

// NewMarkdownRenderer creates a MarkdownRenderer.
func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{}
}

// Render implements core.Renderer.
func (r *MarkdownRenderer) Render(markdown string, _ core.PageMetadata) ([]byte, error) {
	return []byte(strings.TrimRight(markdown, "\n") + "\n"), nil
}

// Extension implements core.Renderer.
func (r *MarkdownRenderer) Extension() string {
	return ".md"
}

// ForFormat returns the renderer for a configured output format.
func ForFormat(format string) (core.Renderer, error) {
	switch format {
	case config.FormatMarkdown, "":
		return NewMarkdownRenderer(), nil
	case config.FormatJSON:
		return NewJSONRenderer(), nil
	case config.FormatPDF:
		return NewPDFRenderer(), nil
	default:
		return nil, fmt.Errorf("%w: output format %q", core.ErrUnsupported, format)
	}
}
