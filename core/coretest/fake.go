// Package coretest provides in-memory fakes of the rendering collaborator
// for tests of the pipeline packages.
package coretest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/gaurav-prasanna/docmirror/core"
)

// Site is the content served by a FakeBrowser, keyed by absolute URL.
type Site struct {
	Pages  map[string]string // url -> HTML
	Assets map[string][]byte // url -> body
	// NavErrors makes Navigate fail for the given URLs.
	NavErrors map[string]error
	// AfterClick replaces the current document when Click is called
	// with WaitNetworkIdle (a login submit).
	AfterClick string
}

// FakeBrowser implements core.Browser over a Site.
type FakeBrowser struct {
	Site *Site

	mu      sync.Mutex
	opened  int
	open    int
	maxOpen int
	closed  bool
	pages   []*FakePage
}

// NewBrowser returns a FakeBrowser serving site.
func NewBrowser(site *Site) *FakeBrowser {
	return &FakeBrowser{Site: site}
}

// OpenPage implements core.Browser.
func (b *FakeBrowser) OpenPage(_ context.Context) (core.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("browser closed")
	}
	b.opened++
	b.open++
	if b.open > b.maxOpen {
		b.maxOpen = b.open
	}
	p := &FakePage{browser: b, typed: map[string]string{}}
	b.pages = append(b.pages, p)
	return p, nil
}

// Close implements core.Browser.
func (b *FakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Opened returns the number of pages opened so far.
func (b *FakeBrowser) Opened() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened
}

// Open returns the number of pages currently open.
func (b *FakeBrowser) Open() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// MaxOpen returns the highest number of simultaneously open pages.
func (b *FakeBrowser) MaxOpen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxOpen
}

// Closed reports whether Close was called.
func (b *FakeBrowser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Pages returns every page opened so far.
func (b *FakeBrowser) Pages() []*FakePage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*FakePage(nil), b.pages...)
}

// FakePage implements core.Page.
type FakePage struct {
	browser *FakeBrowser

	mu      sync.Mutex
	url     string
	html    string
	closed  bool
	closes  int
	visited []string
	typed   map[string]string
	clicked []string
	fetched []string
}

// NewPage returns a standalone page showing html.
func NewPage(html string, assets map[string][]byte) *FakePage {
	b := NewBrowser(&Site{Assets: assets})
	return &FakePage{browser: b, html: html, typed: map[string]string{}}
}

// Navigate implements core.Page.
func (p *FakePage) Navigate(_ context.Context, url string, _ core.WaitStrategy) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visited = append(p.visited, url)
	site := p.browser.Site
	if err, ok := site.NavErrors[url]; ok {
		return fmt.Errorf("%w: %s: %v", core.ErrNavigation, url, err)
	}
	doc, ok := site.Pages[url]
	if !ok {
		return fmt.Errorf("%w: %s: not found", core.ErrNavigation, url)
	}
	p.url = url
	p.html = doc
	return nil
}

// WaitForSelector implements core.Page.
func (p *FakePage) WaitForSelector(_ context.Context, selector string, _ time.Duration) (bool, error) {
	doc, err := p.document()
	if err != nil {
		return false, err
	}
	return doc.Find(selector).Length() > 0, nil
}

// HTML implements core.Page.
func (p *FakePage) HTML(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.html, nil
}

// Title implements core.Page.
func (p *FakePage) Title(_ context.Context) (string, error) {
	doc, err := p.document()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(doc.Find("title").First().Text()), nil
}

// Fetch implements core.Page.
func (p *FakePage) Fetch(_ context.Context, url string) ([]byte, error) {
	p.mu.Lock()
	p.fetched = append(p.fetched, url)
	p.mu.Unlock()

	data, ok := p.browser.Site.Assets[url]
	if !ok {
		return nil, fmt.Errorf("%w: %s: status 404", core.ErrDownload, url)
	}
	return data, nil
}

// Type implements core.Page.
func (p *FakePage) Type(_ context.Context, selector, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.typed[selector] = text
	return nil
}

// Click implements core.Page.
func (p *FakePage) Click(_ context.Context, selector string, wait core.WaitStrategy) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicked = append(p.clicked, selector)
	if wait == core.WaitNetworkIdle && p.browser.Site.AfterClick != "" {
		p.html = p.browser.Site.AfterClick
	}
	return nil
}

// Close implements core.Page.
func (p *FakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closes++
	if p.closed {
		return nil
	}
	p.closed = true
	p.browser.mu.Lock()
	p.browser.open--
	p.browser.mu.Unlock()
	return nil
}

// Visited returns the URLs navigated to.
func (p *FakePage) Visited() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.visited...)
}

// Typed returns the text typed into selector.
func (p *FakePage) Typed(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.typed[selector]
}

// Clicked returns the clicked selectors.
func (p *FakePage) Clicked() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicked...)
}

// Fetched returns the URLs fetched through the page.
func (p *FakePage) Fetched() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.fetched...)
}

// CloseCalls returns how many times Close was called.
func (p *FakePage) CloseCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}

// IsClosed reports whether Close was called.
func (p *FakePage) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *FakePage) document() (*goquery.Document, error) {
	p.mu.Lock()
	html := p.html
	p.mu.Unlock()
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

var (
	_ core.Browser = (*FakeBrowser)(nil)
	_ core.Page    = (*FakePage)(nil)
)
