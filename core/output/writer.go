// Package output handles file naming and writing for docmirror outputs.
// In single-page mode the filename is the last URL path segment (e.g. setup.md).
// In full-site mode filenames mirror the TOC entry's path structure.
package output

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FS is the filesystem collaborator used by the pipeline.
// Both operations create missing parent directories.
type FS interface {
	EnsureDir(dir string) error
	WriteFile(path string, data []byte) error
}

// Writer writes rendered output to disk below OutputDir.
type Writer struct {
	OutputDir string
}

var _ FS = (*Writer)(nil)

// New creates a Writer targeting the given output directory.
// If outputDir is empty, it defaults to the current working directory.
func New(outputDir string) (*Writer, error) {
	if outputDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		outputDir = wd
	}

	// Ensure the output directory exists.
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	return &Writer{OutputDir: outputDir}, nil
}

// EnsureDir creates dir (relative paths are resolved against OutputDir).
func (w *Writer) EnsureDir(dir string) error {
	dir = w.resolve(dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return nil
}

// WriteFile writes data to p, creating parent directories first.
func (w *Writer) WriteFile(p string, data []byte) error {
	p = w.resolve(p)
	if err := w.EnsureDir(filepath.Dir(p)); err != nil {
		return err
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return fmt.Errorf("writing file %s: %w", p, err)
	}
	return nil
}

func (w *Writer) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(w.OutputDir, filepath.FromSlash(p))
}

// PagePath returns the slash-separated output path for a TOC entry path.
// Example: /guide/setup -> guide/setup.md
// The root entry is named after the site's domain so it does not collide
// with the README index.
func PagePath(entryPath, domain, ext string) string {
	rel := strings.Trim(entryPath, "/")
	if rel == "" {
		return sanitize(domain) + ext
	}
	return rel + ext
}

// SinglePagePath returns the output name used in single-page mode:
// the final URL path segment, or "index" when the path is empty.
func SinglePagePath(urlPath, ext string) string {
	base := path.Base(strings.TrimSuffix(urlPath, "/"))
	if base == "." || base == "/" || base == "" {
		base = "index"
	}
	return base + ext
}

// sanitize replaces characters that are awkward in filenames with underscores.
func sanitize(s string) string {
	var b strings.Builder
	for _, ch := range s {
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') ||
			ch == '.' || ch == '-' {
			b.WriteRune(ch)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
