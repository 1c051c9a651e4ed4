// Package browser implements core.Browser on headless Chromium through go-rod.
//
// go-rod downloads a managed Chromium on first use when no binary is found
// (~/.cache/rod/browser/). Set ROD_BROWSER_BIN or use WithBin to point at an
// installed Chrome, and WithNoSandbox inside containers.
package browser

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/gaurav-prasanna/docmirror/core"
)

const defaultNavigationTimeout = 60 * time.Second

// fetchScript downloads a resource with the page's origin and cookies and
// resolves to a data: URL.
const fetchScript = `async (url) => {
	const res = await fetch(url, { credentials: "include" });
	if (!res.ok) throw new Error("status " + res.status);
	const blob = await res.blob();
	return await new Promise((resolve, reject) => {
		const reader = new FileReader();
		reader.onload = () => resolve(reader.result);
		reader.onerror = () => reject(reader.error);
		reader.readAsDataURL(blob);
	});
}`

// Browser is a running Chromium instance.
type Browser struct {
	rod      *rod.Browser
	launcher *launcher.Launcher
	navTO    time.Duration
}

type options struct {
	bin       string
	headless  bool
	noSandbox bool
	navTO     time.Duration
}

// Option configures Launch.
type Option func(*options)

// WithBin uses the Chrome binary at path instead of the managed download.
func WithBin(path string) Option {
	return func(o *options) { o.bin = path }
}

// WithHeadless toggles headless mode. Default true.
func WithHeadless(enable bool) Option {
	return func(o *options) { o.headless = enable }
}

// WithNoSandbox disables the Chrome sandbox.
func WithNoSandbox(enable bool) Option {
	return func(o *options) { o.noSandbox = enable }
}

// WithNavigationTimeout bounds each navigation including its wait.
func WithNavigationTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.navTO = d
		}
	}
}

// Launch starts Chromium and connects to it. The browser lives until Close
// or until ctx is done.
func Launch(ctx context.Context, opts ...Option) (*Browser, error) {
	o := options{headless: true, navTO: defaultNavigationTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	l := launcher.New().Context(ctx).Headless(o.headless).NoSandbox(o.noSandbox)
	if o.bin != "" {
		l = l.Bin(o.bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}
	return &Browser{rod: b, launcher: l, navTO: o.navTO}, nil
}

// OpenPage implements core.Browser.
func (b *Browser) OpenPage(ctx context.Context) (core.Page, error) {
	p, err := b.rod.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("opening page: %w", err)
	}
	return &Page{page: p, navTO: b.navTO}, nil
}

// Close implements core.Browser.
func (b *Browser) Close() error {
	err := b.rod.Close()
	b.launcher.Kill()
	return err
}

// Page is one Chromium tab.
type Page struct {
	page  *rod.Page
	navTO time.Duration
}

// Navigate implements core.Page.
func (p *Page) Navigate(ctx context.Context, rawURL string, wait core.WaitStrategy) error {
	page := p.page.Context(ctx).Timeout(p.navTO)
	defer page.CancelTimeout()

	done := waiter(page, wait)
	if err := page.Navigate(rawURL); err != nil {
		return fmt.Errorf("%w: %s: %v", core.ErrNavigation, rawURL, err)
	}
	if err := done(); err != nil {
		return fmt.Errorf("%w: waiting for %s: %v", core.ErrNavigation, wait, err)
	}
	return nil
}

// waiter must be armed before the action that triggers the navigation.
func waiter(page *rod.Page, wait core.WaitStrategy) func() error {
	switch wait {
	case core.WaitNetworkIdle:
		w := page.WaitNavigation(proto.PageLifecycleEventNameNetworkAlmostIdle)
		return func() error {
			w()
			return page.GetContext().Err()
		}
	case core.WaitLoad:
		return page.WaitLoad
	default:
		return func() error { return nil }
	}
}

// WaitForSelector implements core.Page.
func (p *Page) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	page := p.page.Context(ctx)
	if timeout <= 0 {
		found, _, err := page.Has(selector)
		return found, err
	}

	timed := page.Timeout(timeout)
	defer timed.CancelTimeout()

	_, err := timed.Element(selector)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return false, nil
	default:
		return false, err
	}
}

// HTML implements core.Page.
func (p *Page) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

// Title implements core.Page.
func (p *Page) Title(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(info.Title), nil
}

// Evaluate runs a JavaScript function expression in the page and returns
// its JSON-decoded result.
func (p *Page) Evaluate(ctx context.Context, js string, args ...any) (any, error) {
	res, err := p.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return nil, err
	}
	return res.Value.Val(), nil
}

// Fetch implements core.Page.
func (p *Page) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	res, err := p.page.Context(ctx).Eval(fetchScript, rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrDownload, rawURL, err)
	}
	data, err := decodeDataURL(res.Value.Str())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrDownload, rawURL, err)
	}
	return data, nil
}

// decodeDataURL returns the payload of a base64 data: URL.
func decodeDataURL(s string) ([]byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, errors.New("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, errors.New("malformed data URL")
	}
	if strings.HasSuffix(meta, ";base64") {
		return base64.StdEncoding.DecodeString(payload)
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

// Type implements core.Page.
func (p *Page) Type(ctx context.Context, selector, text string) error {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("finding %q: %w", selector, err)
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("typing into %q: %w", selector, err)
	}
	return nil
}

// Click implements core.Page.
func (p *Page) Click(ctx context.Context, selector string, wait core.WaitStrategy) error {
	page := p.page.Context(ctx)
	el, err := page.Element(selector)
	if err != nil {
		return fmt.Errorf("finding %q: %w", selector, err)
	}

	page = page.Timeout(p.navTO)
	defer page.CancelTimeout()

	done := waiter(page, wait)
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("clicking %q: %w", selector, err)
	}
	if err := done(); err != nil {
		return fmt.Errorf("%w: after clicking %q: %v", core.ErrNavigation, selector, err)
	}
	return nil
}

// Close implements core.Page.
func (p *Page) Close() error {
	return p.page.Close()
}

var (
	_ core.Browser = (*Browser)(nil)
	_ core.Page    = (*Page)(nil)
)
