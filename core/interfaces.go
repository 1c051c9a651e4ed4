// Package core defines the pipeline types and collaborator interfaces for docmirror.
// Each stage of the mirroring pipeline is a clean, testable package under core/.
package core

import (
	"context"
	"strings"
	"time"
)

// TocEntry is one navigable page discovered in the site's table of contents.
type TocEntry struct {
	Title string `json:"title"`
	Path  string `json:"path"`  // site-relative, leading slash optional
	Level int    `json:"level"` // >= 1
}

// RelativePath returns the entry path without its leading slash,
// trailing slash, query or fragment.
func (e TocEntry) RelativePath() string {
	p := e.Path
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return strings.Trim(p, "/")
}

// ExtractedContent holds the raw markup fragments of a document page.
type ExtractedContent struct {
	TitleHTML    string
	SubtitleHTML string
	BodyHTML     string
}

// IsEmpty reports whether nothing was extracted.
func (c ExtractedContent) IsEmpty() bool {
	return c.TitleHTML == "" && c.SubtitleHTML == "" && c.BodyHTML == ""
}

// HTML joins the fragments in reading order.
func (c ExtractedContent) HTML() string {
	return c.TitleHTML + "\n" + c.SubtitleHTML + "\n" + c.BodyHTML
}

// ImageReference tracks one image found in a page's Markdown.
// It lives only for the processing of a single page.
type ImageReference struct {
	OriginalSrc string
	LocalPath   string
	Downloaded  bool
	Err         error
}

// PageMetadata holds metadata extracted from the page and URL.
type PageMetadata struct {
	URL       string `json:"url"`
	Domain    string `json:"domain"`
	Path      string `json:"path"`
	Title     string `json:"title"`
	Language  string `json:"language"`
	FetchedAt string `json:"fetched_at"` // ISO8601
}

// Heading represents a single heading found in the content.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Link represents a hyperlink found in the content.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// Section represents a heading-delimited section of content.
type Section struct {
	Heading string `json:"heading"`
	Level   int    `json:"level"`
	Text    string `json:"text"`
}

// PageContent holds the text and structured content of a page.
type PageContent struct {
	Markdown string    `json:"markdown"`
	Sections []Section `json:"sections"`
}

// PageStructure holds structural metadata parsed from the content.
type PageStructure struct {
	Headings   []Heading `json:"headings"`
	Links      []Link    `json:"links"`
	Images     []Link    `json:"images"`
	CodeBlocks int       `json:"code_blocks"`
	Tables     int       `json:"tables"`
	Lists      int       `json:"lists"`
}

// PageJSON is the complete JSON output for a single mirrored page.
type PageJSON struct {
	Metadata  PageMetadata  `json:"metadata"`
	Content   PageContent   `json:"content"`
	Structure PageStructure `json:"structure"`
}

// WaitStrategy tells a Page how long to wait after a navigation.
type WaitStrategy int

const (
	WaitNone WaitStrategy = iota
	WaitLoad
	WaitNetworkIdle
)

func (w WaitStrategy) String() string {
	switch w {
	case WaitLoad:
		return "load"
	case WaitNetworkIdle:
		return "networkidle"
	default:
		return "none"
	}
}

// Browser is the browser-level session shared by every page of a run.
type Browser interface {
	OpenPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single rendered, queryable page context.
// A Page is owned by the code that opened it and must be closed by it.
type Page interface {
	Navigate(ctx context.Context, url string, wait WaitStrategy) error
	// WaitForSelector reports whether selector appeared within timeout.
	// A timeout is not an error.
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) (bool, error)
	// HTML serialises the current DOM.
	HTML(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	// Fetch downloads url from inside the page so the origin's session applies.
	Fetch(ctx context.Context, url string) ([]byte, error)
	Type(ctx context.Context, selector, text string) error
	Click(ctx context.Context, selector string, wait WaitStrategy) error
	Close() error
}

// Renderer converts Markdown (and metadata) into a final output format.
type Renderer interface {
	Render(markdown string, meta PageMetadata) ([]byte, error)
	// Extension returns the file extension for this renderer (e.g. ".md", ".pdf").
	Extension() string
}
