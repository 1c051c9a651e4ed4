package mirror

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gaurav-prasanna/docmirror/core"
	"github.com/gaurav-prasanna/docmirror/core/assets"
	"github.com/gaurav-prasanna/docmirror/core/transform"
)

// convert runs the page pipeline on the document page currently shows and
// writes the result to file. It reports false when the page is blank.
func (m *Mirror) convert(ctx context.Context, page core.Page, pageURL *url.URL, file, title string) (bool, error) {
	log := m.log.WithFields(logrus.Fields{"url": pageURL.String(), "path": file})

	content, err := m.extractor.Extract(ctx, page)
	if err != nil {
		return false, fmt.Errorf("extracting content: %w", err)
	}
	if content.IsEmpty() {
		log.Debug("no document content")
		return false, nil
	}

	doc, err := m.engine(pageURL).Transform(ctx, content.HTML())
	if err != nil {
		return false, err
	}
	markdown := doc.Markdown
	if strings.TrimSpace(markdown) == "" {
		return false, nil
	}

	if m.cfg.Mirror.DownloadImages {
		pipeline := assets.New(page, m.fs,
			assets.WithLogger(log),
			assets.WithConcurrency(m.cfg.Assets.Concurrency),
			assets.WithBaseURL(pageURL.String()),
		)
		var refs []core.ImageReference
		markdown, refs, err = pipeline.Process(ctx, markdown, imagesDir, file, doc.Images)
		if err != nil {
			return false, fmt.Errorf("processing images: %w", err)
		}
		log.WithField("images", len(refs)).Debug("page images handled")
	}

	data, err := m.renderer.Render(markdown, m.metadata(pageURL, title))
	if err != nil {
		return false, fmt.Errorf("rendering %s: %w", file, err)
	}
	if err := m.fs.WriteFile(file, data); err != nil {
		return false, err
	}
	return true, nil
}

// engine builds the transform engine for a page. Relative links resolve
// against the page's origin.
func (m *Mirror) engine(pageURL *url.URL) *transform.Engine {
	opts := []transform.Option{transform.WithDomain(pageURL.Scheme + "://" + pageURL.Host)}
	if !m.cfg.Mirror.DownloadImages {
		opts = append(opts, transform.WithRemoteImages())
	}
	return transform.New(opts...)
}

func (m *Mirror) metadata(pageURL *url.URL, title string) core.PageMetadata {
	return core.PageMetadata{
		URL:       pageURL.String(),
		Domain:    pageURL.Host,
		Path:      pageURL.Path,
		Title:     title,
		FetchedAt: m.now().UTC().Format(time.RFC3339),
	}
}
