package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaurav-prasanna/docmirror/core"
)

func TestDecodeDataURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "base64", in: "data:image/png;base64,UE5H", want: "PNG"},
		{name: "percent encoded", in: "data:text/plain,a%20b", want: "a b"},
		{name: "empty payload", in: "data:application/octet-stream;base64,", want: ""},
		{name: "not data", in: "https://example.com/a.png", wantErr: true},
		{name: "no comma", in: "data:image/png;base64", wantErr: true},
		{name: "bad base64", in: "data:image/png;base64,@@@", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeDataURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

// TestChromium drives a real browser and is skipped when none is installed.
func TestChromium(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("no Chromium found")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "ok", Path: "/"})
		w.Write([]byte(`<html><head><title>Docs</title></head><body>
<main><h1>Hello</h1></main>
<input type="email" id="email">
<script>setTimeout(() => { const d = document.createElement("div"); d.id = "late"; document.body.appendChild(d); }, 200)</script>
</body></html>`))
	})
	mux.HandleFunc("GET /img.png", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("session"); err != nil {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		w.Write([]byte("PNG"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	b, err := Launch(ctx, WithBin(bin), WithNoSandbox(true))
	require.NoError(t, err)
	defer b.Close()

	page, err := b.OpenPage(ctx)
	require.NoError(t, err)
	defer page.Close()

	require.NoError(t, page.Navigate(ctx, srv.URL+"/", core.WaitLoad))

	title, err := page.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Docs", title)

	found, err := page.WaitForSelector(ctx, "#late", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = page.WaitForSelector(ctx, "#never", 300*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, found)

	doc, err := page.HTML(ctx)
	require.NoError(t, err)
	assert.Contains(t, doc, "<h1>Hello</h1>")

	require.NoError(t, page.Type(ctx, "#email", "me@example.com"))
	v, err := page.(*Page).Evaluate(ctx, `() => document.getElementById("email").value`)
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", v)

	data, err := page.Fetch(ctx, "/img.png")
	require.NoError(t, err)
	assert.Equal(t, "PNG", string(data))

	_, err = page.Fetch(ctx, "/missing.png")
	assert.ErrorIs(t, err, core.ErrDownload)
}
