package toc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaurav-prasanna/docmirror/core"
	"github.com/gaurav-prasanna/docmirror/core/coretest"
)

const landing = `<html><body>
<aside>
  <a href="/outside">Not in the TOC</a>
  <div data-testid="table-of-contents">
    <ul>
      <li><a href="/">Home</a></li>
      <li><a href="/intro">  Intro
          page </a></li>
      <li>
        <div>Guide</div>
        <ul>
          <li><a href="/guide/setup">Setup</a></li>
          <li>
            <ul>
              <li><a href="https://docs.example.com/guide/setup/advanced?tab=1#x">Advanced</a></li>
            </ul>
          </li>
        </ul>
      </li>
      <li><a href="#">Top</a></li>
      <li><a href="#section">Anchor</a></li>
      <li><a href="https://github.com/example">GitHub</a></li>
      <li><a href="mailto:team@example.com">Mail</a></li>
      <li><a href="">Empty</a></li>
    </ul>
  </div>
</aside>
</body></html>`

func TestExtractHTML(t *testing.T) {
	entries, err := New().ExtractHTML(landing, "https://docs.example.com/")
	require.NoError(t, err)

	assert.Equal(t, []core.TocEntry{
		{Title: "Home", Path: "/", Level: 1},
		{Title: "Intro page", Path: "/intro", Level: 1},
		{Title: "Setup", Path: "/guide/setup", Level: 2},
		{Title: "Advanced", Path: "/guide/setup/advanced", Level: 3},
	}, entries)
}

func TestExtractHTML_NoContainer(t *testing.T) {
	entries, err := New().ExtractHTML(`<html><body><ul><li><a href="/a">A</a></li></ul></body></html>`, "")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestExtractHTML_LevelAlwaysPositive(t *testing.T) {
	raw := `<div data-testid="table-of-contents"><a href="/flat">Flat</a><ul><a href="/one">One</a></ul></div>`
	entries, err := New().ExtractHTML(raw, "")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.GreaterOrEqual(t, e.Level, 1, e.Path)
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		depth int
		want  int
	}{
		{1, 1},
		{2, 1},
		{3, 1},
		{4, 2},
		{5, 2},
		{7, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Level(tt.depth), "depth %d", tt.depth)
	}
}

func TestSitePath(t *testing.T) {
	tests := []struct {
		href string
		want string
		ok   bool
	}{
		{"/intro", "/intro", true},
		{"guide/setup", "guide/setup", true},
		{"/intro?x=1#y", "/intro", true},
		{"https://docs.example.com", "/", true},
		{"//docs.example.com/a", "/a", true},
		{"//cdn.example.com/a", "", false},
		{"https://other.example.com/a", "", false},
		{"javascript:void(0)", "", false},
		{"#", "", false},
		{"?page=2", "", false},
	}
	base := mustParse(t, "https://docs.example.com/start")
	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			got, ok := sitePath(tt.href, base)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract_FromPage(t *testing.T) {
	page := coretest.NewPage(landing, nil)

	entries, err := New().Extract(context.Background(), page, "https://docs.example.com")
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}
