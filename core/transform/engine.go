// Package transform converts extracted page content into Markdown.
// It wraps html-to-markdown with an ordered list of shape-matching rules
// for the markup documentation sites emit (callouts, steppers, code groups,
// role-based tables). Elements no rule claims fall through to the
// commonmark, table and strikethrough plugins.
package transform

import (
	"bytes"
	"context"
	"fmt"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/strikethrough"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"golang.org/x/net/html"

	"github.com/gaurav-prasanna/docmirror/core"
)

// Rule pairs a node predicate with its Markdown rendering.
type Rule struct {
	Name  string
	Match func(n *html.Node) bool
	// Render receives the already rendered children of n, unless
	// IgnoreContent is set, in which case content is always "".
	Render        func(ctx context.Context, content string, n *html.Node) string
	IgnoreContent bool
}

// Document is the result of transforming one page.
type Document struct {
	Markdown string
	// Images holds one reference per distinct image the image rule
	// assigned a local path to, in document order.
	Images []core.ImageReference

	paths map[string]string // local path -> source
	srcs  map[string]string // source -> local path
}

// Engine converts HTML fragments to Markdown. It is safe for concurrent use.
type Engine struct {
	conv         *converter.Converter
	rules        []Rule
	domain       string
	remoteImages bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithRemoteImages makes the image rule keep the (unwrapped) remote URL
// instead of assigning a local path. Used when images are not downloaded.
func WithRemoteImages() Option {
	return func(e *Engine) { e.remoteImages = true }
}

// WithDomain resolves relative links against domain.
func WithDomain(domain string) Option {
	return func(e *Engine) { e.domain = domain }
}

// WithRules appends rules after the built-in ones.
func WithRules(rules ...Rule) Option {
	return func(e *Engine) { e.rules = append(e.rules, rules...) }
}

// New creates an Engine with the built-in rule set.
func New(opts ...Option) *Engine {
	e := &Engine{}
	e.rules = e.builtinRules()
	for _, opt := range opts {
		opt(e)
	}

	e.conv = converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
			strikethrough.NewStrikethroughPlugin(),
		),
	)
	e.conv.Register.Renderer(e.handleRender, converter.PriorityEarly)

	return e
}

// Rules returns the names of the active rules in evaluation order.
func (e *Engine) Rules() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name
	}
	return names
}

// Transform converts an HTML fragment into Markdown and collects the
// images the fragment references.
func (e *Engine) Transform(ctx context.Context, fragment string) (*Document, error) {
	doc := &Document{
		paths: make(map[string]string),
		srcs:  make(map[string]string),
	}

	opts := []converter.ConvertOptionFunc{
		converter.WithContext(context.WithValue(ctx, documentKey{}, doc)),
	}
	if e.domain != "" {
		opts = append(opts, converter.WithDomain(e.domain))
	}

	markdown, err := e.conv.ConvertString(fragment, opts...)
	if err != nil {
		return nil, fmt.Errorf("converting HTML to markdown: %w", err)
	}
	doc.Markdown = markdown
	return doc, nil
}

// TransformString converts an HTML fragment into Markdown.
func (e *Engine) TransformString(fragment string) (string, error) {
	doc, err := e.Transform(context.Background(), fragment)
	if err != nil {
		return "", err
	}
	return doc.Markdown, nil
}

// handleRender evaluates the rules top to bottom; the first match wins.
func (e *Engine) handleRender(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	if n.Type != html.ElementNode {
		return converter.RenderTryNext
	}

	for _, r := range e.rules {
		if !r.Match(n) {
			continue
		}

		var content string
		if !r.IgnoreContent {
			var buf bytes.Buffer
			ctx.RenderChildNodes(ctx, &buf, n)
			content = buf.String()
		}

		w.WriteString(r.Render(ctx, content, n))
		return converter.RenderSuccess
	}

	return converter.RenderTryNext
}

type documentKey struct{}

func documentFrom(ctx context.Context) *Document {
	doc, _ := ctx.Value(documentKey{}).(*Document)
	return doc
}
