// Package extract isolates the document body of a rendered page:
//  1. Find the primary content landmark (<main>)
//  2. Narrow to the pre-wrapped text region that holds prose and code
//  3. Pick up the page title and subtitle, dropping navigation chrome
package extract

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/gaurav-prasanna/docmirror/core"
)

const (
	primarySelector  = "main"
	bodySelector     = ".whitespace-pre-wrap"
	titleSelector    = "h1"
	subtitleSelector = "p.text-lg.text-tint"
)

// HTMLExtractor pulls ExtractedContent out of a rendered page.
type HTMLExtractor struct{}

// New creates an HTMLExtractor.
func New() *HTMLExtractor {
	return &HTMLExtractor{}
}

// Extract serialises the page's DOM and extracts its document content.
func (e *HTMLExtractor) Extract(ctx context.Context, page core.Page) (core.ExtractedContent, error) {
	doc, err := page.HTML(ctx)
	if err != nil {
		return core.ExtractedContent{}, fmt.Errorf("reading page HTML: %w", err)
	}
	return e.ExtractHTML(doc)
}

// ExtractHTML extracts the title, subtitle and body fragments from raw HTML.
// A page without the primary landmark yields empty content and no error.
func (e *HTMLExtractor) ExtractHTML(raw string) (core.ExtractedContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return core.ExtractedContent{}, fmt.Errorf("parsing HTML: %w", err)
	}

	main := doc.Find(primarySelector).First()
	if main.Length() == 0 {
		return core.ExtractedContent{}, nil
	}

	var content core.ExtractedContent

	if title := doc.Find(titleSelector).First(); title.Length() > 0 {
		content.TitleHTML, err = goquery.OuterHtml(title)
		if err != nil {
			return core.ExtractedContent{}, fmt.Errorf("serializing title: %w", err)
		}
	}

	if subtitle := doc.Find(subtitleSelector).First(); subtitle.Length() > 0 {
		content.SubtitleHTML = `<p class="subtitle">` + html.EscapeString(subtitle.Text()) + `</p>`
	}

	if body := main.Find(bodySelector).First(); body.Length() > 0 {
		content.BodyHTML, err = body.Html()
		if err != nil {
			return core.ExtractedContent{}, fmt.Errorf("serializing content: %w", err)
		}
	}

	return content, nil
}
