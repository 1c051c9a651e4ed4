package mirror

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaurav-prasanna/docmirror/core"
	"github.com/gaurav-prasanna/docmirror/core/config"
	"github.com/gaurav-prasanna/docmirror/core/coretest"
)

const site = "https://docs.example.com"

const landing = `<html><head><title>Acme Docs</title></head><body>
<nav data-testid="table-of-contents"><ul>
  <li><a href="/intro">Intro</a></li>
  <li><ul><li><a href="/guide/setup">Setup</a></li></ul></li>
</ul></nav>
<main></main>
</body></html>`

const introPage = `<html><head><title>Intro</title></head><body><main>
<h1>Intro</h1>
<div class="whitespace-pre-wrap"><p>Welcome.</p><p><img src="https://files.example.com/a.png" alt="diagram"></p></div>
</main></body></html>`

const setupPage = `<html><head><title>Setup</title></head><body><main>
<h1>Setup</h1>
<div class="whitespace-pre-wrap"><p>Run it.</p></div>
</main></body></html>`

const blankPage = `<html><body><main><div class="whitespace-pre-wrap">  </div></main></body></html>`

func newSite() *coretest.Site {
	return &coretest.Site{
		Pages: map[string]string{
			site + "/":            landing,
			site + "/intro":       introPage,
			site + "/guide/setup": setupPage,
		},
		Assets: map[string][]byte{"https://files.example.com/a.png": []byte("PNG")},
	}
}

type harness struct {
	mirror  *Mirror
	browser *coretest.FakeBrowser
	dir     string
	out     *bytes.Buffer
}

func newHarness(t *testing.T, s *coretest.Site, mutate func(*config.Config)) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.Mirror.OutputDir = t.TempDir()
	if mutate != nil {
		mutate(&cfg)
	}

	logger, _ := test.NewNullLogger()
	b := coretest.NewBrowser(s)
	out := &bytes.Buffer{}
	m, err := New(b, cfg, WithLogger(logger), WithOutput(out))
	require.NoError(t, err)
	return &harness{mirror: m, browser: b, dir: cfg.Mirror.OutputDir, out: out}
}

func (h *harness) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(h.dir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func TestRun_FullSite(t *testing.T) {
	h := newHarness(t, newSite(), nil)

	report, err := h.mirror.Run(context.Background(), site+"/")
	require.NoError(t, err)

	assert.Equal(t, ModeFullSite, report.Mode)
	assert.Equal(t, "Acme Docs", report.Title)
	assert.Equal(t, []core.TocEntry{
		{Title: "Intro", Path: "/intro", Level: 1},
		{Title: "Setup", Path: "/guide/setup", Level: 2},
	}, report.Entries)
	assert.Equal(t, []string{"intro.md", "guide/setup.md"}, report.Written)
	assert.Empty(t, report.Failures)

	assert.Equal(t, "# Acme Docs\n\n## Contents\n\n- [Intro](intro.md)\n  - [Setup](guide/setup.md)\n", h.read(t, "README.md"))

	intro := h.read(t, "intro.md")
	assert.Contains(t, intro, "# Intro")
	assert.Contains(t, intro, "Welcome.")
	assert.Contains(t, intro, "![diagram](images/image_")

	images, err := filepath.Glob(filepath.Join(h.dir, "images", "image_*.png"))
	require.NoError(t, err)
	require.Len(t, images, 1)
	data, err := os.ReadFile(images[0])
	require.NoError(t, err)
	assert.Equal(t, "PNG", string(data))

	assert.Contains(t, h.read(t, "guide/setup.md"), "Run it.")

	assert.Equal(t, 1, h.browser.MaxOpen(), "one page open at a time")
	assert.Equal(t, 0, h.browser.Open(), "every page closed")
	for _, p := range h.browser.Pages() {
		assert.Equal(t, 1, p.CloseCalls(), "each page closed exactly once")
	}
	assert.Contains(t, h.out.String(), "✓ Written: README.md")
}

func TestRun_SinglePage(t *testing.T) {
	h := newHarness(t, newSite(), nil)

	report, err := h.mirror.Run(context.Background(), site+"/guide/setup")
	require.NoError(t, err)

	assert.Equal(t, ModeSinglePage, report.Mode)
	assert.Equal(t, []string{"setup.md"}, report.Written)
	assert.Contains(t, h.read(t, "setup.md"), "Run it.")
	assert.NoFileExists(t, filepath.Join(h.dir, "README.md"))
}

func TestRun_ForcedFullSite(t *testing.T) {
	s := newSite()
	s.Pages[site+"/guide"] = landing
	h := newHarness(t, s, func(c *config.Config) { c.Mirror.All = true })

	report, err := h.mirror.Run(context.Background(), site+"/guide")
	require.NoError(t, err)
	assert.Equal(t, ModeFullSite, report.Mode)
	assert.Len(t, report.Written, 2)
}

func TestRun_EntryFailuresAreSkipped(t *testing.T) {
	s := newSite()
	s.Pages[site+"/"] = `<html><head><title>Acme</title></head><body><nav data-testid="table-of-contents"><ul>
<li><a href="/intro">Intro</a></li><li><a href="/blank">Blank</a></li><li><a href="/guide/setup">Setup</a></li>
</ul></nav></body></html>`
	s.Pages[site+"/blank"] = blankPage
	s.NavErrors = map[string]error{site + "/intro": errors.New("timeout")}
	h := newHarness(t, s, nil)

	report, err := h.mirror.Run(context.Background(), site+"/")
	require.NoError(t, err)

	require.Len(t, report.Failures, 1)
	assert.Equal(t, "navigate", report.Failures[0].Op)
	assert.Equal(t, "/intro", report.Failures[0].Entry.Path)
	assert.ErrorIs(t, report.Failures[0], core.ErrNavigation)

	assert.Equal(t, []string{"blank.md"}, report.Skipped)
	assert.Equal(t, []string{"guide/setup.md"}, report.Written)
	assert.NoFileExists(t, filepath.Join(h.dir, "blank.md"))
	assert.NoFileExists(t, filepath.Join(h.dir, "intro.md"))
	assert.Contains(t, h.read(t, "README.md"), "- [Intro](intro.md)", "index lists every entry")
	assert.Contains(t, h.out.String(), "1/3 pages failed")
}

func TestRun_RootEntryNamedAfterDomain(t *testing.T) {
	s := newSite()
	s.Pages[site+"/"] = `<html><head><title>Acme</title></head><body><nav data-testid="table-of-contents"><ul>
<li><a href="/">Home</a></li></ul></nav>
<main><h1>Home</h1><div class="whitespace-pre-wrap"><p>Start here.</p></div></main></body></html>`
	h := newHarness(t, s, nil)

	report, err := h.mirror.Run(context.Background(), site+"/")
	require.NoError(t, err)
	assert.Equal(t, []string{"docs.example.com.md"}, report.Written)
	assert.Contains(t, h.read(t, "README.md"), "- [Home](docs.example.com.md)")
	assert.Contains(t, h.read(t, "docs.example.com.md"), "Start here.")
}

func TestRun_WithoutImages(t *testing.T) {
	h := newHarness(t, newSite(), func(c *config.Config) { c.Mirror.DownloadImages = false })

	_, err := h.mirror.Run(context.Background(), site+"/intro")
	require.NoError(t, err)

	assert.Contains(t, h.read(t, "intro.md"), "![diagram](https://files.example.com/a.png)")
	assert.NoDirExists(t, filepath.Join(h.dir, "images"))
	for _, p := range h.browser.Pages() {
		assert.Empty(t, p.Fetched())
	}
}

func TestRun_JSONFormat(t *testing.T) {
	h := newHarness(t, newSite(), func(c *config.Config) { c.Mirror.Format = config.FormatJSON })

	report, err := h.mirror.Run(context.Background(), site+"/")
	require.NoError(t, err)
	assert.Equal(t, []string{"intro.json", "guide/setup.json"}, report.Written)
	assert.Contains(t, h.read(t, "README.md"), "- [Intro](intro.json)")
	assert.Contains(t, h.read(t, "intro.json"), `"title": "Intro"`)
}

func TestRun_SitemapFallback(t *testing.T) {
	s := newSite()
	s.Pages[site+"/"] = `<html><head><title>Acme</title></head><body><main></main></body></html>`
	s.Assets[site+"/sitemap.xml"] = []byte(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"><url><loc>https://docs.example.com/intro</loc></url></urlset>`)

	h := newHarness(t, s, nil)
	report, err := h.mirror.Run(context.Background(), site+"/")
	require.NoError(t, err)
	assert.Empty(t, report.Entries, "fallback is opt-in")

	h = newHarness(t, s, func(c *config.Config) { c.Crawl.SitemapFallback = true })
	report, err = h.mirror.Run(context.Background(), site+"/")
	require.NoError(t, err)
	assert.Equal(t, []core.TocEntry{{Title: "intro", Path: "/intro", Level: 1}}, report.Entries)
	assert.Equal(t, []string{"intro.md"}, report.Written)
}

func TestRun_Authentication(t *testing.T) {
	s := newSite()
	s.Pages[site+"/guide/setup"] = `<html><body><form><input type="email"><input type="password"><button type="submit">Go</button></form>
<main><h1>Setup</h1><div class="whitespace-pre-wrap"><p>Run it.</p></div></main></body></html>`
	h := newHarness(t, s, func(c *config.Config) {
		c.Auth.Username = "me@example.com"
		c.Auth.Password = "hunter2"
	})

	_, err := h.mirror.Run(context.Background(), site+"/guide/setup")
	require.NoError(t, err)

	p := h.browser.Pages()[0]
	assert.Equal(t, "me@example.com", p.Typed(emailSelector))
	assert.Equal(t, "hunter2", p.Typed(passwordSelector))
	assert.Equal(t, []string{submitSelector}, p.Clicked())
	assert.Equal(t, []string{site + "/guide/setup", site + "/guide/setup"}, p.Visited())
}

func TestRun_Errors(t *testing.T) {
	h := newHarness(t, newSite(), nil)

	_, err := h.mirror.Run(context.Background(), "docs.example.com/intro")
	assert.ErrorContains(t, err, "invalid URL")

	_, err = h.mirror.Run(context.Background(), site+"/missing")
	assert.ErrorIs(t, err, core.ErrNavigation)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.mirror.Run(ctx, site+"/")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew(t *testing.T) {
	cfg := config.Default()
	cfg.Mirror.OutputDir = t.TempDir()
	cfg.Mirror.Format = "docx"
	_, err := New(coretest.NewBrowser(newSite()), cfg)
	assert.Error(t, err)

	cfg.Mirror.Format = config.FormatMarkdown
	cfg.Mirror.PageRate = 2
	m, err := New(coretest.NewBrowser(newSite()), cfg)
	require.NoError(t, err)
	assert.NotNil(t, m.limiter)
}

func TestAuthenticate(t *testing.T) {
	auth := config.AuthConfig{Username: "u@example.com", Password: "pw"}

	withForm := &coretest.Site{
		Pages:      map[string]string{site: `<form><input type="email"><input type="password"><button type="submit"></button></form>`},
		AfterClick: `<main>signed in</main>`,
	}
	page, err := coretest.NewBrowser(withForm).OpenPage(context.Background())
	require.NoError(t, err)

	ok, err := Authenticate(context.Background(), page, site, auth)
	require.NoError(t, err)
	assert.True(t, ok)
	html, _ := page.HTML(context.Background())
	assert.Equal(t, `<main>signed in</main>`, html)

	public := &coretest.Site{Pages: map[string]string{site: `<main>public</main>`}}
	page, err = coretest.NewBrowser(public).OpenPage(context.Background())
	require.NoError(t, err)

	ok, err = Authenticate(context.Background(), page, site, auth)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, page.(*coretest.FakePage).Typed(emailSelector))

	_, err = Authenticate(context.Background(), page, site+"/nowhere", auth)
	assert.ErrorIs(t, err, core.ErrNavigation)
}

func TestBuildIndex(t *testing.T) {
	entries := []core.TocEntry{
		{Title: "Home", Path: "/", Level: 1},
		{Title: "A [beta]", Path: "/a/", Level: 1},
		{Title: "Deep", Path: "/a/b/c", Level: 3},
		{Title: "Zero", Path: "/z", Level: 0},
	}
	got := BuildIndex("", entries, "docs.example.com", ".md")
	assert.Equal(t, "# docs.example.com\n\n## Contents\n\n"+
		"- [Home](docs.example.com.md)\n"+
		"- [A \\[beta\\]](a.md)\n"+
		"    - [Deep](a/b/c.md)\n"+
		"- [Zero](z.md)\n", got)
}

func TestEntryFile(t *testing.T) {
	f, err := entryFile(core.TocEntry{Path: "/guide/hello%20world"}, "x.com", ".md")
	require.NoError(t, err)
	assert.Equal(t, "guide/hello world.md", f)

	f, err = entryFile(core.TocEntry{Path: "/"}, "x.com", ".md")
	require.NoError(t, err)
	assert.Equal(t, "x.com.md", f)

	_, err = entryFile(core.TocEntry{Path: "/../../etc/passwd"}, "x.com", ".md")
	assert.Error(t, err)
}

func TestModeFor(t *testing.T) {
	for raw, want := range map[string]Mode{
		"https://x.com":        ModeFullSite,
		"https://x.com/":       ModeFullSite,
		"https://x.com/a":      ModeSinglePage,
		"https://x.com/a/b?q=": ModeSinglePage,
	} {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, want, ModeFor(u, false), raw)
	}
	u, _ := url.Parse("https://x.com/a")
	assert.Equal(t, ModeFullSite, ModeFor(u, true))
}
