// Package fetch implements core.Browser over plain HTTP.
// Pages are fetched with GET requests through one shared client and cookie
// jar; selectors are evaluated with goquery against the last response.
// No scripts run, so it suits sites that render their content server-side.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/gaurav-prasanna/docmirror/core"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "docmirror/1.0 (https://github.com/gaurav-prasanna/docmirror)"
)

// HTTPBrowser renders pages by fetching them over HTTP.
type HTTPBrowser struct {
	client    *http.Client
	userAgent string
}

// Option configures an HTTPBrowser.
type Option func(*HTTPBrowser)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(b *HTTPBrowser) {
		if d > 0 {
			b.client.Timeout = d
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(b *HTTPBrowser) { b.userAgent = ua }
}

// New creates an HTTPBrowser with a cookie jar and a sensible timeout.
func New(opts ...Option) (*HTTPBrowser, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	b := &HTTPBrowser{
		client:    &http.Client{Timeout: defaultTimeout, Jar: jar},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// OpenPage implements core.Browser.
func (b *HTTPBrowser) OpenPage(_ context.Context) (core.Page, error) {
	return &Page{browser: b, typed: make(map[string]string)}, nil
}

// Close implements core.Browser.
func (b *HTTPBrowser) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

func (b *HTTPBrowser) do(req *http.Request, accept string) (*http.Response, []byte, error) {
	req.Header.Set("User-Agent", b.userAgent)
	req.Header.Set("Accept", accept)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp, body, nil
}

// Page is one tab of an HTTPBrowser.
type Page struct {
	browser *HTTPBrowser

	mu    sync.Mutex
	url   *url.URL
	doc   string
	typed map[string]string // form field name -> value
}

// Navigate implements core.Page. The wait strategy has no effect: the
// document is complete once the response body is read.
func (p *Page) Navigate(ctx context.Context, rawURL string, _ core.WaitStrategy) error {
	target, err := p.resolve(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrNavigation, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return p.load(req)
}

func (p *Page) load(req *http.Request) error {
	resp, body, err := p.browser.do(req, "text/html,application/xhtml+xml")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", core.ErrNavigation, req.URL, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = resp.Request.URL
	p.doc = string(body)
	p.typed = make(map[string]string)
	return nil
}

// WaitForSelector implements core.Page. The document is static, so the
// selector is checked once.
func (p *Page) WaitForSelector(_ context.Context, selector string, _ time.Duration) (bool, error) {
	doc, err := p.document()
	if err != nil {
		return false, err
	}
	return doc.Find(selector).Length() > 0, nil
}

// HTML implements core.Page.
func (p *Page) HTML(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc, nil
}

// Title implements core.Page.
func (p *Page) Title(_ context.Context) (string, error) {
	doc, err := p.document()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(doc.Find("title").First().Text()), nil
}

// Fetch implements core.Page. Relative URLs resolve against the current
// document and the page's cookies are sent.
func (p *Page) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	target, err := p.resolve(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDownload, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	_, body, err := p.browser.do(req, "*/*")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrDownload, target, err)
	}
	return body, nil
}

// Type implements core.Page. The value is recorded against the field's
// name and sent when its form is submitted.
func (p *Page) Type(_ context.Context, selector, text string) error {
	doc, err := p.document()
	if err != nil {
		return err
	}
	field := doc.Find(selector).First()
	if field.Length() == 0 {
		return fmt.Errorf("no element matches %q", selector)
	}
	// Only named fields are submitted with their form.
	name := field.AttrOr("name", "")
	if name == "" {
		return fmt.Errorf("element %q has no name to submit under", selector)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.typed[name] = text
	return nil
}

// Click implements core.Page. Submit controls post their form; links are
// followed; anything else is a no-op.
func (p *Page) Click(ctx context.Context, selector string, _ core.WaitStrategy) error {
	doc, err := p.document()
	if err != nil {
		return err
	}
	el := doc.Find(selector).First()
	if el.Length() == 0 {
		return fmt.Errorf("no element matches %q", selector)
	}

	if isSubmit(el) {
		if form := el.Closest("form"); form.Length() > 0 {
			return p.submit(ctx, form, el)
		}
		return nil
	}
	if href, ok := el.Attr("href"); ok && goquery.NodeName(el) == "a" {
		return p.Navigate(ctx, href, core.WaitLoad)
	}
	return nil
}

func (p *Page) submit(ctx context.Context, form, submitter *goquery.Selection) error {
	p.mu.Lock()
	typed := make(map[string]string, len(p.typed))
	for k, v := range p.typed {
		typed[k] = v
	}
	p.mu.Unlock()

	values := url.Values{}
	form.Find("input, textarea, select").Each(func(_ int, f *goquery.Selection) {
		name, ok := f.Attr("name")
		if !ok || name == "" {
			return
		}
		kind := strings.ToLower(f.AttrOr("type", "text"))
		switch kind {
		case "submit", "button", "image", "reset", "file":
			return
		case "checkbox", "radio":
			if _, checked := f.Attr("checked"); !checked {
				return
			}
		}
		if v, ok := typed[name]; ok {
			values.Add(name, v)
			return
		}
		values.Add(name, f.AttrOr("value", ""))
	})
	if name, ok := submitter.Attr("name"); ok && name != "" {
		values.Add(name, submitter.AttrOr("value", ""))
	}

	action, err := p.resolve(form.AttrOr("action", ""))
	if err != nil {
		return fmt.Errorf("%w: form action: %v", core.ErrNavigation, err)
	}

	var req *http.Request
	if strings.EqualFold(form.AttrOr("method", "get"), http.MethodPost) {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, action.String(), strings.NewReader(values.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		action.RawQuery = values.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, action.String(), nil)
	}
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return p.load(req)
}

// Close implements core.Page.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc = ""
	p.typed = make(map[string]string)
	return nil
}

func (p *Page) resolve(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", rawURL, err)
	}

	p.mu.Lock()
	base := p.url
	p.mu.Unlock()

	if base != nil {
		u = base.ResolveReference(u)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("relative URL %q without a current document", rawURL)
	}
	return u, nil
}

func (p *Page) document() (*goquery.Document, error) {
	p.mu.Lock()
	raw := p.doc
	p.mu.Unlock()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return doc, nil
}

func isSubmit(s *goquery.Selection) bool {
	switch goquery.NodeName(s) {
	case "button":
		return strings.EqualFold(s.AttrOr("type", "submit"), "submit")
	case "input":
		kind := strings.ToLower(s.AttrOr("type", ""))
		return kind == "submit" || kind == "image"
	}
	return false
}

var (
	_ core.Browser = (*HTTPBrowser)(nil)
	_ core.Page    = (*Page)(nil)
)
