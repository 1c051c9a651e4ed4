// Package mirror drives a whole mirroring run: authentication, mode
// selection, the table of contents, and the per-page pipeline of
// extract, transform, assets, render and write.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/gaurav-prasanna/docmirror/core"
	"github.com/gaurav-prasanna/docmirror/core/config"
	"github.com/gaurav-prasanna/docmirror/core/extract"
	"github.com/gaurav-prasanna/docmirror/core/output"
	"github.com/gaurav-prasanna/docmirror/core/render"
	"github.com/gaurav-prasanna/docmirror/core/toc"
)

const (
	indexFile = "README.md"
	imagesDir = "images"
)

// Mode is the kind of run selected for a URL.
type Mode int

const (
	ModeSinglePage Mode = iota
	ModeFullSite
)

func (m Mode) String() string {
	if m == ModeFullSite {
		return "full-site"
	}
	return "single-page"
}

// ModeFor returns full-site mode when forced or when u has no path.
func ModeFor(u *url.URL, all bool) Mode {
	if all || u.Path == "" || u.Path == "/" {
		return ModeFullSite
	}
	return ModeSinglePage
}

// Report summarises a run.
type Report struct {
	URL     string
	Title   string
	Mode    Mode
	Entries []core.TocEntry
	// Written and Skipped hold output paths relative to the output directory.
	Written  []string
	Skipped  []string
	Failures []*core.EntryError
}

// Mirror mirrors documentation sites through a core.Browser.
type Mirror struct {
	browser   core.Browser
	cfg       config.Config
	log       logrus.FieldLogger
	out       io.Writer
	fs        output.FS
	limiter   *rate.Limiter
	renderer  core.Renderer
	extractor *extract.HTMLExtractor
	toc       *toc.Extractor
	now       func() time.Time
}

// Option configures a Mirror.
type Option func(*Mirror)

// WithLogger sets the structured logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(m *Mirror) { m.log = log }
}

// WithOutput sets where progress lines are printed. Default os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(m *Mirror) { m.out = w }
}

// WithFS replaces the filesystem the output is written to.
func WithFS(fs output.FS) Option {
	return func(m *Mirror) { m.fs = fs }
}

// WithLimiter paces page navigations in full-site mode.
func WithLimiter(l *rate.Limiter) Option {
	return func(m *Mirror) { m.limiter = l }
}

// WithRenderer overrides the renderer chosen by mirror.format.
func WithRenderer(r core.Renderer) Option {
	return func(m *Mirror) { m.renderer = r }
}

// New validates cfg and prepares a Mirror. The output directory is created
// unless WithFS is given.
func New(browser core.Browser, cfg config.Config, opts ...Option) (*Mirror, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	m := &Mirror{
		browser:   browser,
		cfg:       cfg,
		log:       logrus.StandardLogger(),
		out:       os.Stdout,
		extractor: extract.New(),
		toc:       toc.New(),
		now:       time.Now,
	}
	if cfg.Mirror.PageRate > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(cfg.Mirror.PageRate), 1)
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.renderer == nil {
		r, err := render.ForFormat(cfg.Mirror.Format)
		if err != nil {
			return nil, err
		}
		m.renderer = r
	}
	if m.fs == nil {
		w, err := output.New(cfg.Mirror.OutputDir)
		if err != nil {
			return nil, fmt.Errorf("initializing output writer: %w", err)
		}
		m.fs = w
	}
	return m, nil
}

// Run mirrors rawURL. Per-entry failures in full-site mode are collected in
// the report; any other failure, including cancellation, is returned.
func (m *Mirror) Run(ctx context.Context, rawURL string) (*Report, error) {
	target, err := url.Parse(rawURL)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return nil, fmt.Errorf("invalid URL: %s (must include scheme, e.g. https://example.com)", rawURL)
	}

	report := &Report{URL: rawURL, Mode: ModeFor(target, m.cfg.Mirror.All)}
	log := m.log.WithFields(logrus.Fields{"url": rawURL, "mode": report.Mode.String()})
	log.Info("mirroring started")

	opened, err := m.browser.OpenPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening page: %w", err)
	}
	page := &landingPage{Page: opened}
	defer page.Close()

	if m.cfg.Auth.Enabled() {
		ok, err := Authenticate(ctx, page, rawURL, m.cfg.Auth)
		if err != nil {
			return nil, fmt.Errorf("authenticating: %w", err)
		}
		log.WithField("login_form", ok).Debug("authentication probed")
	}

	if err := page.Navigate(ctx, rawURL, core.WaitNetworkIdle); err != nil {
		return nil, fmt.Errorf("loading %s: %w", rawURL, err)
	}
	found, err := page.WaitForSelector(ctx, "body", m.cfg.Browser.SelectorTimeout.Std())
	if err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", rawURL, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s has no body", core.ErrNoContent, rawURL)
	}

	report.Title, err = page.Title(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading title: %w", err)
	}

	if report.Mode == ModeSinglePage {
		err = m.single(ctx, page, target, report)
	} else {
		err = m.site(ctx, page, target, report)
	}
	if err != nil {
		return report, err
	}

	log.WithFields(logrus.Fields{
		"written": len(report.Written),
		"skipped": len(report.Skipped),
		"failed":  len(report.Failures),
	}).Info("mirroring finished")
	return report, nil
}

// landingPage closes the wrapped page at most once. Full-site runs close
// it before the entry loop; Run closes it on every other path.
type landingPage struct {
	core.Page
	once sync.Once
	err  error
}

func (p *landingPage) Close() error {
	p.once.Do(func() { p.err = p.Page.Close() })
	return p.err
}

func (m *Mirror) single(ctx context.Context, page core.Page, target *url.URL, report *Report) error {
	file := output.SinglePagePath(target.Path, m.renderer.Extension())
	written, err := m.convert(ctx, page, target, file, report.Title)
	if err != nil {
		return err
	}
	m.record(report, file, written)
	return nil
}

// site writes the index, then mirrors every entry in order. The landing page
// is closed first so at most one page is open while entries are processed.
func (m *Mirror) site(ctx context.Context, landing core.Page, target *url.URL, report *Report) error {
	entries, err := m.entries(ctx, landing, target)
	if err != nil {
		return err
	}
	report.Entries = entries

	domain := target.Hostname()
	index := BuildIndex(report.Title, entries, domain, m.renderer.Extension())
	if err := m.fs.WriteFile(indexFile, []byte(index)); err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	fmt.Fprintf(m.out, "✓ Written: %s\n", indexFile)
	if err := landing.Close(); err != nil {
		m.log.WithError(err).Warn("closing landing page")
	}

	fmt.Fprintf(m.out, "Found %d pages to process\n", len(entries))
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if m.limiter != nil {
			if err := m.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		fmt.Fprintf(m.out, "[%d/%d] Processing %s\n", i+1, len(entries), entry.Title)
		if err := m.mirrorEntry(ctx, entry, target, report); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			var entryErr *core.EntryError
			if !errors.As(err, &entryErr) {
				entryErr = &core.EntryError{Entry: entry, Op: "mirror", Err: err}
			}
			report.Failures = append(report.Failures, entryErr)
			m.log.WithFields(logrus.Fields{"entry": entry.Path, "op": entryErr.Op}).WithError(entryErr.Err).Warn("entry skipped")
			fmt.Fprintf(m.out, "  ✗ Error: %v\n", entryErr)
		}
	}

	if n := len(report.Failures); n > 0 {
		fmt.Fprintf(m.out, "\n%d/%d pages failed\n", n, len(entries))
	}
	return nil
}

func (m *Mirror) entries(ctx context.Context, landing core.Page, target *url.URL) ([]core.TocEntry, error) {
	entries, err := m.toc.Extract(ctx, landing, target.String())
	if err != nil {
		return nil, fmt.Errorf("reading table of contents: %w", err)
	}
	if len(entries) > 0 || !m.cfg.Crawl.SitemapFallback {
		return entries, nil
	}

	m.log.WithField("url", target.String()).Info("no table of contents, discovering pages")
	return m.discover(ctx, landing, target)
}

// mirrorEntry processes one TOC entry in a page of its own.
func (m *Mirror) mirrorEntry(ctx context.Context, entry core.TocEntry, base *url.URL, report *Report) error {
	ref, err := url.Parse(entry.Path)
	if err != nil {
		return &core.EntryError{Entry: entry, Op: "resolve", Err: err}
	}
	pageURL := base.ResolveReference(ref)

	file, err := entryFile(entry, base.Hostname(), m.renderer.Extension())
	if err != nil {
		return &core.EntryError{Entry: entry, Op: "resolve", Err: err}
	}

	page, err := m.browser.OpenPage(ctx)
	if err != nil {
		return &core.EntryError{Entry: entry, Op: "open", Err: err}
	}
	defer page.Close()

	if err := page.Navigate(ctx, pageURL.String(), core.WaitNetworkIdle); err != nil {
		return &core.EntryError{Entry: entry, Op: "navigate", Err: err}
	}
	if _, err := page.WaitForSelector(ctx, "main", m.cfg.Browser.SelectorTimeout.Std()); err != nil {
		return &core.EntryError{Entry: entry, Op: "navigate", Err: err}
	}

	written, err := m.convert(ctx, page, pageURL, file, entry.Title)
	if err != nil {
		return &core.EntryError{Entry: entry, Op: "convert", Err: err}
	}
	m.record(report, file, written)
	return nil
}

func (m *Mirror) record(report *Report, file string, written bool) {
	if written {
		report.Written = append(report.Written, file)
		fmt.Fprintf(m.out, "  ✓ Written: %s\n", file)
		return
	}
	report.Skipped = append(report.Skipped, file)
	m.log.WithField("path", file).Info("blank page skipped")
}
