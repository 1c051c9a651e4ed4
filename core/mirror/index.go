package mirror

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/gaurav-prasanna/docmirror/core"
	"github.com/gaurav-prasanna/docmirror/core/output"
	"github.com/gaurav-prasanna/docmirror/crawl"
)

var linkTextEscaper = strings.NewReplacer("[", `\[`, "]", `\]`)

// BuildIndex renders the README listing every entry as a nested link list.
// Entries are indented two spaces per level below 1 and link to the file
// their page is written to.
func BuildIndex(title string, entries []core.TocEntry, domain, ext string) string {
	if strings.TrimSpace(title) == "" {
		title = domain
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n## Contents\n\n", title)
	for _, e := range entries {
		indent := strings.Repeat("  ", max(e.Level, 1)-1)
		link := output.PagePath(e.RelativePath(), domain, ext)
		fmt.Fprintf(&b, "%s- [%s](%s)\n", indent, linkTextEscaper.Replace(e.Title), link)
	}
	return b.String()
}

// entryFile returns the output path of an entry's page, unescaped and
// confined to the output directory.
func entryFile(e core.TocEntry, domain, ext string) (string, error) {
	rel, err := url.PathUnescape(e.RelativePath())
	if err != nil {
		return "", fmt.Errorf("unescaping %q: %w", e.Path, err)
	}
	if rel != "" {
		rel = path.Clean(rel)
		if rel == ".." || strings.HasPrefix(rel, "../") {
			return "", fmt.Errorf("path %q escapes the output directory", e.Path)
		}
	}
	return output.PagePath(rel, domain, ext), nil
}

func (m *Mirror) discover(ctx context.Context, landing core.Page, target *url.URL) ([]core.TocEntry, error) {
	html, err := landing.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading landing page: %w", err)
	}
	entries, err := crawl.Discover(ctx, landing, target.String(), html)
	if err != nil {
		return nil, fmt.Errorf("discovering pages: %w", err)
	}
	return entries, nil
}
