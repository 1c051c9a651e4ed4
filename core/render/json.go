package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"

	"github.com/gaurav-prasanna/docmirror/core"
)

// JSONRenderer writes a page as core.PageJSON: metadata, the Markdown, the
// heading-delimited sections and a structural summary.
type JSONRenderer struct{}

// NewJSONRenderer creates a JSONRenderer.
func NewJSONRenderer() *JSONRenderer {
	return &JSONRenderer{}
}

// Render implements core.Renderer.
func (r *JSONRenderer) Render(markdown string, meta core.PageMetadata) ([]byte, error) {
	doc, src := parse(markdown)

	page := core.PageJSON{
		Metadata: meta,
		Content: core.PageContent{
			Markdown: markdown,
			Sections: sections(doc, src),
		},
		Structure: structure(doc, src),
	}

	data, err := json.MarshalIndent(page, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling JSON: %w", err)
	}
	return data, nil
}

// Extension implements core.Renderer.
func (r *JSONRenderer) Extension() string {
	return ".json"
}

func structure(doc ast.Node, src []byte) core.PageStructure {
	s := core.PageStructure{
		Headings: []core.Heading{},
		Links:    []core.Link{},
		Images:   []core.Link{},
	}
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.Heading:
			s.Headings = append(s.Headings, core.Heading{Level: n.Level, Text: inlineText(n, src)})
		case *ast.Link:
			s.Links = append(s.Links, core.Link{Text: inlineText(n, src), Href: string(n.Destination)})
		case *ast.AutoLink:
			s.Links = append(s.Links, core.Link{Text: string(n.Label(src)), Href: string(n.URL(src))})
		case *ast.Image:
			s.Images = append(s.Images, core.Link{Text: inlineText(n, src), Href: string(n.Destination)})
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			s.CodeBlocks++
		case *east.Table:
			s.Tables++
		case *ast.List:
			if _, nested := n.Parent().(*ast.ListItem); !nested {
				s.Lists++
			}
		}
		return ast.WalkContinue, nil
	})
	return s
}

// sections splits the top-level blocks at every heading. Content before the
// first heading is not part of any section.
func sections(doc ast.Node, src []byte) []core.Section {
	var (
		out   []core.Section
		cur   *core.Section
		parts []string
	)
	flush := func() {
		if cur != nil {
			cur.Text = strings.Join(parts, "\n\n")
			out = append(out, *cur)
		}
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			flush()
			cur = &core.Section{Heading: inlineText(h, src), Level: h.Level}
			parts = nil
			continue
		}
		if cur == nil {
			continue
		}
		if t := blockText(n, src); t != "" {
			parts = append(parts, t)
		}
	}
	flush()
	return out
}
