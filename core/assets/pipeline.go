// Package assets downloads the images a transformed page references and
// rewrites the Markdown to point at the local copies.
package assets

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/gaurav-prasanna/docmirror/core"
	"github.com/gaurav-prasanna/docmirror/core/output"
	"github.com/gaurav-prasanna/docmirror/core/transform"
)

// DefaultConcurrency bounds simultaneous downloads per page.
const DefaultConcurrency = 8

// imagePattern matches ![alt](target "title"). Group 2 is the target,
// either <bracketed> or bare with balanced parentheses.
var imagePattern = regexp.MustCompile(`!\[((?:\\.|[^\]\\])*)\]\(\s*(<[^>]*>|(?:[^\s()]|\([^\s()]*\))+)(?:\s+"((?:\\.|[^"\\])*)")?\s*\)`)

// Fetcher retrieves a binary resource. core.Page satisfies it, so images are
// fetched with the page's origin and cookies.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Pipeline processes the images of one page at a time.
type Pipeline struct {
	fetcher     Fetcher
	fs          output.FS
	log         logrus.FieldLogger
	concurrency int
	baseURL     *url.URL

	now  func() time.Time
	intn func(n int) int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for per-image progress.
func WithLogger(log logrus.FieldLogger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithConcurrency bounds simultaneous downloads. Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithBaseURL resolves relative image sources against the page URL.
func WithBaseURL(raw string) Option {
	return func(p *Pipeline) {
		if u, err := url.Parse(raw); err == nil && u.IsAbs() {
			p.baseURL = u
		}
	}
}

// New creates a Pipeline fetching through fetcher and writing through fs.
func New(fetcher Fetcher, fs output.FS, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:     fetcher,
		fs:          fs,
		log:         logrus.StandardLogger(),
		concurrency: DefaultConcurrency,
		now:         time.Now,
		intn:        rand.IntN,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type task struct {
	target string // as written in the Markdown
	ref    core.ImageReference
	file   string // write path, relative to the output root
	link   string // path relative to the page file
	local  bool   // target was assigned by the transform engine
}

// Process downloads every distinct image referenced in markdown into
// imagesDir/<directory of pageFile>/ and rewrites the references.
//
// pageFile is the page's output path relative to the output root.
// known carries the references the transform engine assigned local paths
// to; their targets are mapped back to the original URLs for download and
// restored to those URLs when the download fails. data: URIs are never
// touched. Download failures are reported per reference, not as an error.
func (p *Pipeline) Process(ctx context.Context, markdown, imagesDir, pageFile string, known []core.ImageReference) (string, []core.ImageReference, error) {
	tasks := p.plan(markdown, imagesDir, pageFile, known)
	if len(tasks) == 0 {
		return markdown, nil, nil
	}

	dir := path.Join(imagesDir, path.Dir(pageFile))
	if err := p.fs.EnsureDir(dir); err != nil {
		return markdown, nil, fmt.Errorf("creating image directory: %w", err)
	}

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for _, t := range tasks {
		g.Go(func() error {
			p.download(ctx, t)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return markdown, nil, err
	}

	replacements := make(map[string]string, len(tasks))
	refs := make([]core.ImageReference, len(tasks))
	failed := 0
	for i, t := range tasks {
		refs[i] = t.ref
		switch {
		case t.ref.Downloaded:
			replacements[t.target] = transform.MarkdownTarget(t.link)
		case t.local:
			replacements[t.target] = transform.MarkdownTarget(t.ref.OriginalSrc)
			failed++
		default:
			failed++
		}
	}

	p.log.WithFields(logrus.Fields{
		"path":   pageFile,
		"images": len(tasks),
		"failed": failed,
	}).Debug("images processed")

	return rewrite(markdown, replacements), refs, nil
}

// plan collects the distinct non-data image targets and assigns each a
// unique local filename.
func (p *Pipeline) plan(markdown, imagesDir, pageFile string, known []core.ImageReference) []*task {
	originals := make(map[string]string, len(known))
	for _, ref := range known {
		if ref.LocalPath != "" {
			originals[ref.LocalPath] = ref.OriginalSrc
		}
	}

	pageDir := path.Dir(pageFile)
	dir := path.Join(imagesDir, pageDir)

	var tasks []*task
	seen := make(map[string]bool)
	names := make(map[string]bool)
	for _, m := range imagePattern.FindAllStringSubmatch(markdown, -1) {
		target := m[2]
		if seen[target] || isDataURI(target) {
			continue
		}
		seen[target] = true

		bare := unbracket(target)
		src, local := originals[bare]
		if !local {
			src = bare
		}

		name := p.filename(src, names)
		file := path.Join(dir, name)
		tasks = append(tasks, &task{
			target: target,
			ref:    core.ImageReference{OriginalSrc: src},
			file:   file,
			link:   relativeLink(pageDir, file),
			local:  local,
		})
	}
	return tasks
}

func (p *Pipeline) download(ctx context.Context, t *task) {
	log := p.log.WithField("url", t.ref.OriginalSrc)

	src, err := p.resolve(t.ref.OriginalSrc)
	if err != nil {
		t.ref.Err = err
		log.WithError(err).Warn("image skipped")
		return
	}

	data, err := p.fetcher.Fetch(ctx, src)
	if err == nil && len(data) == 0 {
		err = fmt.Errorf("%w: empty response", core.ErrDownload)
	}
	if err != nil {
		t.ref.Err = fmt.Errorf("downloading %s: %w", src, err)
		log.WithError(err).Warn("image download failed")
		return
	}

	if err := p.fs.WriteFile(t.file, data); err != nil {
		t.ref.Err = err
		log.WithError(err).Warn("image write failed")
		return
	}

	t.ref.Downloaded = true
	t.ref.LocalPath = t.link
	log.WithField("path", t.file).Debug("image downloaded")
}

func (p *Pipeline) resolve(src string) (string, error) {
	u, err := url.Parse(src)
	if err != nil {
		return "", fmt.Errorf("%w: parsing %q: %v", core.ErrDownload, src, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	if p.baseURL == nil {
		return "", fmt.Errorf("%w: relative source %q", core.ErrDownload, src)
	}
	return p.baseURL.ResolveReference(u).String(), nil
}

// filename returns image_<unix ms>_<0..999><ext>, redrawn until unused.
func (p *Pipeline) filename(src string, used map[string]bool) string {
	ext := ".png"
	if u, err := url.Parse(src); err == nil {
		if e := path.Ext(u.Path); e != "" && len(e) <= 6 {
			ext = strings.ToLower(e)
		}
	}

	ms := p.now().UnixMilli()
	for attempt := 1; ; attempt++ {
		name := fmt.Sprintf("image_%d_%d%s", ms, p.intn(1000), ext)
		if !used[name] {
			used[name] = true
			return name
		}
		if attempt%1000 == 0 {
			ms++
		}
	}
}

// rewrite replaces the targets of image references found in replacements,
// keeping alt text and titles.
func rewrite(markdown string, replacements map[string]string) string {
	if len(replacements) == 0 {
		return markdown
	}

	var b strings.Builder
	last := 0
	for _, m := range imagePattern.FindAllStringSubmatchIndex(markdown, -1) {
		start, end := m[4], m[5]
		repl, ok := replacements[markdown[start:end]]
		if !ok {
			continue
		}
		b.WriteString(markdown[last:start])
		b.WriteString(repl)
		last = end
	}
	b.WriteString(markdown[last:])
	return b.String()
}

func relativeLink(fromDir, to string) string {
	rel, err := filepath.Rel(filepath.FromSlash(fromDir), filepath.FromSlash(to))
	if err != nil {
		return to
	}
	return filepath.ToSlash(rel)
}

func unbracket(target string) string {
	if strings.HasPrefix(target, "<") && strings.HasSuffix(target, ">") {
		return target[1 : len(target)-1]
	}
	return target
}

func isDataURI(target string) bool {
	return len(target) >= 5 && strings.EqualFold(target[:5], "data:")
}
