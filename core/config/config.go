// Package config holds docmirror's run configuration.
// Values come from defaults, an optional TOML file and finally CLI flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all run configuration.
type Config struct {
	Mirror  MirrorConfig  `toml:"mirror"`
	Auth    AuthConfig    `toml:"auth"`
	Browser BrowserConfig `toml:"browser"`
	Assets  AssetsConfig  `toml:"assets"`
	Crawl   CrawlConfig   `toml:"crawl"`
}

// MirrorConfig controls what is mirrored and where it goes.
type MirrorConfig struct {
	OutputDir      string  `toml:"output_dir"`
	All            bool    `toml:"all"`
	Format         string  `toml:"format"`
	DownloadImages bool    `toml:"download_images"`
	PageRate       float64 `toml:"page_rate"` // pages per second, 0 disables limiting
}

// AuthConfig holds credentials for private sites.
type AuthConfig struct {
	Username     string   `toml:"username"`
	Password     string   `toml:"password"`
	ProbeTimeout Duration `toml:"probe_timeout"`
}

// Enabled reports whether credentials were supplied.
func (a AuthConfig) Enabled() bool {
	return a.Username != "" || a.Password != ""
}

// BrowserConfig selects and tunes the rendering backend.
type BrowserConfig struct {
	Renderer          string   `toml:"renderer"`
	Headless          bool     `toml:"headless"`
	Bin               string   `toml:"bin"`
	NoSandbox         bool     `toml:"no_sandbox"`
	NavigationTimeout Duration `toml:"navigation_timeout"`
	SelectorTimeout   Duration `toml:"selector_timeout"`
}

// AssetsConfig tunes the image pipeline.
type AssetsConfig struct {
	Concurrency int `toml:"concurrency"`
}

// CrawlConfig controls page discovery beyond the table of contents.
type CrawlConfig struct {
	SitemapFallback bool `toml:"sitemap_fallback"`
}

// Renderer and format names.
const (
	RendererChrome = "chrome"
	RendererHTTP   = "http"

	FormatMarkdown = "md"
	FormatJSON     = "json"
	FormatPDF      = "pdf"
)

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Mirror: MirrorConfig{
			OutputDir:      "./output",
			Format:         FormatMarkdown,
			DownloadImages: true,
		},
		Auth: AuthConfig{
			ProbeTimeout: Duration(10 * time.Second),
		},
		Browser: BrowserConfig{
			Renderer:          RendererChrome,
			Headless:          true,
			NavigationTimeout: Duration(60 * time.Second),
			SelectorTimeout:   Duration(30 * time.Second),
		},
		Assets: AssetsConfig{
			Concurrency: 8,
		},
	}
}

// Load reads a TOML file on top of the defaults.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Mirror.OutputDir) == "" {
		errs = append(errs, errors.New("mirror.output_dir must not be empty"))
	}
	switch c.Mirror.Format {
	case FormatMarkdown, FormatJSON, FormatPDF:
	default:
		errs = append(errs, fmt.Errorf("mirror.format must be one of md, json, pdf (got %q)", c.Mirror.Format))
	}
	if c.Mirror.PageRate < 0 {
		errs = append(errs, errors.New("mirror.page_rate must not be negative"))
	}
	switch c.Browser.Renderer {
	case RendererChrome, RendererHTTP:
	default:
		errs = append(errs, fmt.Errorf("browser.renderer must be chrome or http (got %q)", c.Browser.Renderer))
	}
	if c.Auth.Enabled() && (c.Auth.Username == "" || c.Auth.Password == "") {
		errs = append(errs, errors.New("auth requires both username and password"))
	}
	if c.Assets.Concurrency < 1 {
		errs = append(errs, errors.New("assets.concurrency must be at least 1"))
	}

	return errors.Join(errs...)
}

// Duration is a time.Duration that reads "10s" style strings from TOML.
type Duration time.Duration

// Std returns the standard library duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}
