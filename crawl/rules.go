package crawl

import (
	"net/url"
	"path"
	"strings"

	"github.com/gaurav-prasanna/docmirror/core"
)

// staticExtensions are never documentation pages.
var staticExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".svg": true, ".webp": true, ".ico": true, ".bmp": true, ".avif": true,
	".css": true, ".js": true, ".mjs": true, ".json": true, ".xml": true, ".txt": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
	".mp4": true, ".webm": true, ".mp3": true, ".wav": true,
	".zip": true, ".tar": true, ".gz": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
}

// IsSameDomain reports whether rawURL is on host domain.
func IsSameDomain(rawURL string, domain string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(parsed.Host, domain)
}

// IsStaticAsset reports whether rawURL points at an image, stylesheet,
// script or other non-page file.
func IsStaticAsset(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(parsed.Path))
	return staticExtensions[ext]
}

// NormalizePath returns the path of rawURL without fragment, query or
// trailing slash. The root is "/".
func NormalizePath(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	p := strings.TrimSuffix(parsed.EscapedPath(), "/")
	if p == "" {
		return "/"
	}
	return p
}

// EntryFor turns a same-domain page URL into a level-1 TOC entry titled by
// its last path segment. The root page is titled by the domain.
func EntryFor(rawURL, domain string) (core.TocEntry, bool) {
	if !IsSameDomain(rawURL, domain) || IsStaticAsset(rawURL) {
		return core.TocEntry{}, false
	}
	p := NormalizePath(rawURL)
	if p == "" {
		return core.TocEntry{}, false
	}

	title := domain
	if p != "/" {
		title = path.Base(p)
		if unescaped, err := url.PathUnescape(title); err == nil {
			title = unescaped
		}
	}
	return core.TocEntry{Title: title, Path: p, Level: 1}, true
}
