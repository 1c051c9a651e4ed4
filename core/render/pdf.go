package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"

	"github.com/gaurav-prasanna/docmirror/core"
)

// PDFRenderer lays a page out as an A4 PDF. Images are listed by their alt
// text, not embedded.
type PDFRenderer struct{}

// NewPDFRenderer creates a PDFRenderer.
func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

var headingSizes = map[int]float64{1: 18, 2: 15, 3: 13, 4: 12, 5: 11, 6: 10}

// Render implements core.Renderer.
func (r *PDFRenderer) Render(markdown string, meta core.PageMetadata) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetTitle(meta.Title, true)
	pdf.AddPage()
	// Core fonts are cp1252.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if meta.URL != "" {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.SetTextColor(100, 100, 100)
		pdf.MultiCell(0, 5, tr("Source: "+meta.URL), "", "L", false)
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(4)
	}

	doc, src := parse(markdown)
	l := &layout{pdf: pdf, src: src, tr: tr}
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		l.block(n, 0)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writing PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// Extension implements core.Renderer.
func (r *PDFRenderer) Extension() string {
	return ".pdf"
}

type layout struct {
	pdf *gofpdf.Fpdf
	src []byte
	tr  func(string) string
}

func (l *layout) text(s string, indent float64) {
	l.pdf.SetX(l.pdf.GetX() + indent)
	l.pdf.MultiCell(0, 5, l.tr(s), "", "L", false)
	l.pdf.SetX(10)
}

func (l *layout) block(n ast.Node, indent float64) {
	pdf := l.pdf
	switch n := n.(type) {
	case *ast.Heading:
		size, ok := headingSizes[n.Level]
		if !ok {
			size = 10
		}
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", size)
		pdf.MultiCell(0, size*0.6, l.tr(inlineText(n, l.src)), "", "L", false)
		pdf.Ln(2)

	case *ast.Paragraph, *ast.TextBlock:
		pdf.SetFont("Helvetica", "", 10)
		l.text(inlineText(n, l.src), indent)
		pdf.Ln(2)

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		pdf.Ln(1)
		pdf.SetFont("Courier", "", 9)
		pdf.SetFillColor(245, 245, 245)
		pdf.SetX(pdf.GetX() + indent)
		pdf.MultiCell(0, 4.5, l.tr(codeText(n, l.src)), "", "L", true)
		pdf.Ln(3)

	case *ast.Blockquote:
		pdf.SetFont("Helvetica", "I", 10)
		pdf.SetTextColor(80, 80, 80)
		l.text(blockText(n, l.src), indent+4)
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(2)

	case *ast.List:
		num := n.Start
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			bullet := "- "
			if n.IsOrdered() {
				bullet = fmt.Sprintf("%d. ", num)
				num++
			}
			l.item(item, bullet, indent)
		}
		pdf.Ln(1)

	case *east.Table:
		pdf.SetFont("Helvetica", "", 9)
		for row := n.FirstChild(); row != nil; row = row.NextSibling() {
			if _, header := row.(*east.TableHeader); header {
				pdf.SetFont("Helvetica", "B", 9)
			}
			l.text(strings.Join(cellTexts(row, l.src), "  |  "), indent)
			pdf.SetFont("Helvetica", "", 9)
		}
		pdf.Ln(2)

	case *ast.ThematicBreak:
		y := pdf.GetY() + 2
		pdf.Line(10, y, 200, y)
		pdf.Ln(4)

	default:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			l.block(c, indent)
		}
	}
}

// item writes a list item's first block after its bullet and the rest,
// nested lists included, indented below it.
func (l *layout) item(item ast.Node, bullet string, indent float64) {
	first := item.FirstChild()
	if first == nil {
		return
	}
	l.pdf.SetFont("Helvetica", "", 10)
	if _, isList := first.(*ast.List); isList {
		l.text(bullet, indent)
		l.block(first, indent+6)
	} else {
		l.text(bullet+blockText(first, l.src), indent)
	}
	for c := first.NextSibling(); c != nil; c = c.NextSibling() {
		l.block(c, indent+6)
	}
}
