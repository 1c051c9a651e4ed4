package render

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaurav-prasanna/docmirror/core"
)

const page = "Intro line.\n\n" +
	"# Setup\n\n" +
	"Install the [CLI](https://example.com/cli) first.\n\n" +
	"```bash\nnpm i -g tool\n```\n\n" +
	"## Options\n\n" +
	"- one\n  - nested\n- two\n\n" +
	"| Name | Value |\n| --- | --- |\n| a | `1` |\n\n" +
	"![Diagram](images/guide/image_1_2.png)\n\n" +
	">[!info] Note\n> Read this.\n"

var meta = core.PageMetadata{URL: "https://docs.example.com/setup", Domain: "docs.example.com", Path: "/setup", Title: "Setup"}

func TestMarkdownRenderer(t *testing.T) {
	r := NewMarkdownRenderer()
	out, err := r.Render("# Hi\n\n\n", meta)
	require.NoError(t, err)
	assert.Equal(t, "# Hi\n", string(out))
	assert.Equal(t, ".md", r.Extension())
}

func TestJSONRenderer(t *testing.T) {
	r := NewJSONRenderer()
	out, err := r.Render(page, meta)
	require.NoError(t, err)
	assert.Equal(t, ".json", r.Extension())

	var got core.PageJSON
	require.NoError(t, json.Unmarshal(out, &got))

	assert.Equal(t, meta, got.Metadata)
	assert.Equal(t, page, got.Content.Markdown)
	assert.Equal(t, []core.Heading{{Level: 1, Text: "Setup"}, {Level: 2, Text: "Options"}}, got.Structure.Headings)
	assert.Equal(t, []core.Link{{Text: "CLI", Href: "https://example.com/cli"}}, got.Structure.Links)
	assert.Equal(t, []core.Link{{Text: "Diagram", Href: "images/guide/image_1_2.png"}}, got.Structure.Images)
	assert.Equal(t, 1, got.Structure.CodeBlocks)
	assert.Equal(t, 1, got.Structure.Tables)
	assert.Equal(t, 1, got.Structure.Lists, "nested lists count once")

	require.Len(t, got.Content.Sections, 2)
	assert.Equal(t, "Setup", got.Content.Sections[0].Heading)
	assert.Equal(t, "Install the CLI first.\n\nnpm i -g tool", got.Content.Sections[0].Text)
	assert.Equal(t, 2, got.Content.Sections[1].Level)
	assert.Contains(t, got.Content.Sections[1].Text, "Name | Value")
	assert.Contains(t, got.Content.Sections[1].Text, "a | 1")
	assert.Contains(t, got.Content.Sections[1].Text, "Read this.")
	assert.NotContains(t, got.Content.Sections[0].Text, "Intro line", "text before the first heading belongs to no section")
}

func TestJSONRenderer_Empty(t *testing.T) {
	out, err := NewJSONRenderer().Render("", meta)
	require.NoError(t, err)

	var got core.PageJSON
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Empty(t, got.Content.Sections)
	assert.NotNil(t, got.Structure.Headings)
}

func TestPDFRenderer(t *testing.T) {
	r := NewPDFRenderer()
	out, err := r.Render(page, core.PageMetadata{URL: meta.URL, Title: "Setup – “quoted”"})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Equal(t, ".pdf", r.Extension())
}

func TestForFormat(t *testing.T) {
	for format, ext := range map[string]string{"md": ".md", "": ".md", "json": ".json", "pdf": ".pdf"} {
		r, err := ForFormat(format)
		require.NoError(t, err, format)
		assert.Equal(t, ext, r.Extension())
	}

	_, err := ForFormat("embeddings")
	assert.ErrorIs(t, err, core.ErrUnsupported)
}
