// Package crawl discovers pages when a site exposes no table of contents.
// It reads sitemap.xml and falls back to the links of the landing page.
package crawl

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/xmlquery"

	"github.com/gaurav-prasanna/docmirror/core"
)

const (
	// MaxEntries bounds a discovery run.
	MaxEntries = 1000
	// maxSitemaps bounds the child sitemaps read from a sitemap index.
	maxSitemaps = 20
)

// Fetcher retrieves a resource. core.Page satisfies it, so sitemaps are read
// with the site's session.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Discover returns one level-1 entry per page found for the site at baseURL.
// Sitemap entries win; landingHTML's links are used only when the sitemap is
// missing or empty. Fetch failures are not errors.
func Discover(ctx context.Context, f Fetcher, baseURL, landingHTML string) ([]core.TocEntry, error) {
	base, err := url.Parse(baseURL)
	if err != nil || !base.IsAbs() {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}

	q := NewQueue(MaxEntries)
	for _, loc := range sitemapLocations(ctx, f, base) {
		if e, ok := EntryFor(loc, base.Host); ok {
			q.Add(e)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.Len() > 0 {
		return q.Entries(), nil
	}

	links, err := extractLinks(landingHTML, base)
	if err != nil {
		return nil, err
	}
	for _, link := range links {
		if e, ok := EntryFor(link, base.Host); ok {
			q.Add(e)
		}
	}
	return q.Entries(), nil
}

func sitemapLocations(ctx context.Context, f Fetcher, base *url.URL) []string {
	root := &url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/sitemap.xml"}
	doc := fetchXML(ctx, f, root.String())
	if doc == nil {
		return nil
	}

	locs := texts(xmlquery.Find(doc, "//url/loc"))
	children := texts(xmlquery.Find(doc, "//sitemap/loc"))
	if len(children) > maxSitemaps {
		children = children[:maxSitemaps]
	}
	for _, child := range children {
		if !IsSameDomain(child, base.Host) {
			continue
		}
		if sub := fetchXML(ctx, f, child); sub != nil {
			locs = append(locs, texts(xmlquery.Find(sub, "//url/loc"))...)
		}
	}
	return locs
}

func fetchXML(ctx context.Context, f Fetcher, rawURL string) *xmlquery.Node {
	data, err := f.Fetch(ctx, rawURL)
	if err != nil || len(data) == 0 {
		return nil
	}
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	return doc
}

func texts(nodes []*xmlquery.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if t := strings.TrimSpace(n.InnerText()); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// extractLinks returns the absolute targets of the page's anchors.
func extractLinks(html string, base *url.URL) ([]string, error) {
	if strings.TrimSpace(html) == "" {
		return nil, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if resolved := resolveURL(s.AttrOr("href", ""), base); resolved != "" {
			links = append(links, resolved)
		}
	})
	return links, nil
}

func resolveURL(href string, base *url.URL) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(parsed)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}
