package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gaurav-prasanna/docmirror/core"
	"github.com/gaurav-prasanna/docmirror/core/browser"
	"github.com/gaurav-prasanna/docmirror/core/config"
	"github.com/gaurav-prasanna/docmirror/core/fetch"
	"github.com/gaurav-prasanna/docmirror/core/mirror"
)

// Flag variables, shared by the root and mirror commands.
var (
	flagAll        bool
	flagOutputDir  string
	flagImages     bool
	flagUsername   string
	flagPassword   string
	flagRenderer   string
	flagFormat     string
	flagConfig     string
	flagSitemap    bool
	flagRate       float64
	flagVerbose    bool
	flagJSONLogs   bool
	flagNoSandbox  bool
	flagChromePath string
)

var mirrorCmd = &cobra.Command{
	Use:   "mirror <url>",
	Short: "Mirror a documentation page or site",
	Long: `Mirror renders the URL and writes Markdown (or JSON/PDF) below the output
directory. Flags override values from --config.`,
	Args:          cobra.ExactArgs(1),
	RunE:          runMirror,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	addMirrorFlags(mirrorCmd)
	rootCmd.AddCommand(mirrorCmd)
}

func addMirrorFlags(cmd *cobra.Command) {
	defaults := config.Default()
	f := cmd.Flags()

	f.BoolVarP(&flagAll, "all", "a", false, "Mirror the whole site even when the URL has a path")
	f.StringVarP(&flagOutputDir, "output", "o", defaults.Mirror.OutputDir, "Output directory")
	f.BoolVarP(&flagImages, "images", "i", defaults.Mirror.DownloadImages, "Download images and rewrite links to local copies")
	f.StringVarP(&flagUsername, "username", "u", "", "Login email for private sites")
	f.StringVarP(&flagPassword, "password", "p", "", "Login password for private sites")
	f.StringVar(&flagRenderer, "renderer", defaults.Browser.Renderer, "Rendering backend: chrome or http")
	f.StringVar(&flagFormat, "format", defaults.Mirror.Format, "Output format: md, json or pdf")
	f.StringVar(&flagConfig, "config", "", "TOML configuration file")
	f.BoolVar(&flagSitemap, "sitemap-fallback", false, "Discover pages from sitemap.xml when the site has no table of contents")
	f.Float64Var(&flagRate, "rate", 0, "Maximum pages per second in full-site mode (0 = unlimited)")
	f.BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging")
	f.BoolVar(&flagJSONLogs, "json-logs", false, "Log as JSON")
	f.BoolVar(&flagNoSandbox, "no-sandbox", false, "Disable the Chrome sandbox (containers)")
	f.StringVar(&flagChromePath, "chrome", "", "Path to a Chrome or Chromium binary")
}

func runMirror(cmd *cobra.Command, args []string) error {
	log := newLogger(flagVerbose, flagJSONLogs)

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	applyFlags(cmd.Flags(), &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBrowser(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	m, err := mirror.New(b, cfg, mirror.WithLogger(log), mirror.WithOutput(cmd.OutOrStdout()))
	if err != nil {
		return err
	}

	report, err := m.Run(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Done: %d written, %d skipped, %d failed → %s\n",
		len(report.Written), len(report.Skipped), len(report.Failures), cfg.Mirror.OutputDir)
	return nil
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(f *pflag.FlagSet, cfg *config.Config) {
	if f.Changed("all") {
		cfg.Mirror.All = flagAll
	}
	if f.Changed("output") {
		cfg.Mirror.OutputDir = flagOutputDir
	}
	if f.Changed("images") {
		cfg.Mirror.DownloadImages = flagImages
	}
	if f.Changed("username") {
		cfg.Auth.Username = flagUsername
	}
	if f.Changed("password") {
		cfg.Auth.Password = flagPassword
	}
	if f.Changed("renderer") {
		cfg.Browser.Renderer = flagRenderer
	}
	if f.Changed("format") {
		cfg.Mirror.Format = flagFormat
	}
	if f.Changed("sitemap-fallback") {
		cfg.Crawl.SitemapFallback = flagSitemap
	}
	if f.Changed("rate") {
		cfg.Mirror.PageRate = flagRate
	}
	if f.Changed("no-sandbox") {
		cfg.Browser.NoSandbox = flagNoSandbox
	}
	if f.Changed("chrome") {
		cfg.Browser.Bin = flagChromePath
	}
}

func newLogger(verbose, jsonLogs bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if jsonLogs {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	log.SetLevel(logrus.WarnLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func openBrowser(ctx context.Context, cfg config.Config) (core.Browser, error) {
	if cfg.Browser.Renderer == config.RendererHTTP {
		b, err := fetch.New(fetch.WithTimeout(cfg.Browser.NavigationTimeout.Std()))
		if err != nil {
			return nil, err
		}
		return b, nil
	}

	b, err := browser.Launch(ctx,
		browser.WithBin(cfg.Browser.Bin),
		browser.WithHeadless(cfg.Browser.Headless),
		browser.WithNoSandbox(cfg.Browser.NoSandbox),
		browser.WithNavigationTimeout(cfg.Browser.NavigationTimeout.Std()),
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}
