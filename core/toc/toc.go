// Package toc reads the navigation tree of a documentation landing page
// into an ordered list of core.TocEntry.
package toc

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/gaurav-prasanna/docmirror/core"
)

const (
	containerSelector = `[data-testid="table-of-contents"]`
	linkSelector      = "a[href]"
)

// Extractor produces TOC entries from a rendered landing page.
type Extractor struct{}

// New creates a TOC Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract reads the current document of page and returns its TOC entries.
// baseURL is the landing page URL, used to tell same-site links from
// external ones.
func (e *Extractor) Extract(ctx context.Context, page core.Page, baseURL string) ([]core.TocEntry, error) {
	doc, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading page HTML: %w", err)
	}
	return e.ExtractHTML(doc, baseURL)
}

// ExtractHTML returns the TOC entries found in raw, in document order.
// A document without a TOC container yields an empty slice and no error.
func (e *Extractor) ExtractHTML(raw, baseURL string) ([]core.TocEntry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	var base *url.URL
	if baseURL != "" {
		base, err = url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parsing base URL: %w", err)
		}
	}

	entries := []core.TocEntry{}

	container := doc.Find(containerSelector).First()
	if container.Length() == 0 {
		return entries, nil
	}
	root := container.Get(0)

	container.Find(linkSelector).Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		p, ok := sitePath(strings.TrimSpace(href), base)
		if !ok {
			return
		}
		entries = append(entries, core.TocEntry{
			Title: strings.Join(strings.Fields(link.Text()), " "),
			Path:  p,
			Level: Level(Depth(link.Get(0), root)),
		})
	})

	return entries, nil
}

// Depth counts the list-semantic ancestors (ul, li) of n below root,
// starting at 1.
func Depth(n, root *html.Node) int {
	depth := 1
	for p := n.Parent; p != nil && p != root; p = p.Parent {
		if p.Type == html.ElementNode && (p.Data == "ul" || p.Data == "li") {
			depth++
		}
	}
	return depth
}

// Level maps a nesting depth to a TOC level. Every navigation item is
// wrapped in two list containers, so the depth is halved.
func Level(depth int) int {
	return max(1, depth/2)
}

// sitePath returns the site-relative path of href, or false when the link
// leaves the site or only targets the current page.
func sitePath(href string, base *url.URL) (string, bool) {
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}

	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	switch strings.ToLower(u.Scheme) {
	case "":
	case "http", "https":
		if base == nil || !strings.EqualFold(u.Host, base.Host) {
			return "", false
		}
		p := u.EscapedPath()
		if p == "" {
			p = "/"
		}
		return p, true
	default:
		// mailto:, javascript:, tel: ...
		return "", false
	}

	if u.Host != "" {
		// protocol-relative //host/path
		if base == nil || !strings.EqualFold(u.Host, base.Host) {
			return "", false
		}
	}
	p := u.EscapedPath()
	if p == "" {
		return "", false
	}
	return p, true
}
