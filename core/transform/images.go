package transform

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/JohannesKaufmann/dom"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/net/html"

	"github.com/gaurav-prasanna/docmirror/core"
)

const (
	imageProxyMarker = "/~gitbook/image"
	imagesDir        = "images"
)

var (
	altEscaper    = strings.NewReplacer("[", `\[`, "]", `\]`)
	titleEscaper  = strings.NewReplacer(`"`, `\"`)
	parenEscaper  = strings.NewReplacer("(", "%28", ")", "%29")
	anglesEscaper = strings.NewReplacer("<", "%3C", ">", "%3E")
)

func (e *Engine) renderImage(ctx context.Context, _ string, n *html.Node) string {
	alt := dom.GetAttributeOr(n, "alt", "")
	title := dom.GetAttributeOr(n, "title", "")
	src := strings.TrimSpace(dom.GetAttributeOr(n, "src", ""))
	if src == "" {
		return ""
	}

	src = UnwrapProxy(src)

	u, err := url.Parse(src)
	if err != nil || !u.IsAbs() || u.Host == "" || e.remoteImages {
		return ImageMarkdown(alt, src, title)
	}

	doc := documentFrom(ctx)
	if doc == nil {
		return ImageMarkdown(alt, LocalImagePath(src, 0), title)
	}
	return ImageMarkdown(alt, doc.record(src), title)
}

// record assigns src a local path unique within the document and returns
// it. A source seen before keeps its first path.
func (d *Document) record(src string) string {
	if p, ok := d.srcs[src]; ok {
		return p
	}

	var local string
	for salt := 0; ; salt++ {
		local = LocalImagePath(src, salt)
		if _, taken := d.paths[local]; !taken {
			break
		}
	}

	d.paths[local] = src
	d.srcs[src] = local
	d.Images = append(d.Images, core.ImageReference{OriginalSrc: src, LocalPath: local})
	return local
}

// UnwrapProxy returns the original URL of an image-proxy URL of the form
// .../~gitbook/image?url=<encoded original>. Other sources are returned
// unchanged.
func UnwrapProxy(src string) string {
	if !strings.Contains(src, imageProxyMarker) {
		return src
	}
	u, err := url.Parse(src)
	if err != nil {
		return src
	}
	if inner := u.Query().Get("url"); inner != "" {
		return inner
	}
	return src
}

// LocalImagePath returns images/<hash>_<basename> for an absolute image
// URL. The hash is the first eight base64url characters of the xxhash64
// of the source (salted when salt > 0).
func LocalImagePath(src string, salt int) string {
	key := src
	if salt > 0 {
		key += "#" + strconv.Itoa(salt)
	}

	var sum [8]byte
	binary.BigEndian.PutUint64(sum[:], xxhash.Sum64String(key))
	hash := base64.RawURLEncoding.EncodeToString(sum[:])[:8]

	base := "image"
	if u, err := url.Parse(src); err == nil {
		if b := path.Base(u.EscapedPath()); b != "." && b != "/" && b != "" {
			base = parenEscaper.Replace(b)
		}
	}

	return imagesDir + "/" + hash + "_" + base
}

// ImageMarkdown formats a Markdown image. Targets containing spaces or
// parentheses are wrapped in angle brackets.
func ImageMarkdown(alt, target, title string) string {
	out := "![" + altEscaper.Replace(alt) + "](" + MarkdownTarget(target)
	if title != "" {
		out += ` "` + titleEscaper.Replace(title) + `"`
	}
	return out + ")"
}

// MarkdownTarget returns target in a form a Markdown link destination can
// hold unambiguously.
func MarkdownTarget(target string) string {
	if !strings.ContainsAny(target, " \t()<>") {
		return target
	}
	return "<" + anglesEscaper.Replace(target) + ">"
}
