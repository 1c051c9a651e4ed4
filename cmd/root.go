// Package cmd implements the docmirror CLI using Cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "docmirror <url>",
	Short: "docmirror — mirror a documentation site into local Markdown",
	Long: `docmirror renders a documentation site in a browser and writes its pages as
Markdown, keeping the navigation structure, code blocks, tables, callouts and
images.

A URL with a page path mirrors that page only; a bare domain (or --all)
mirrors every page listed in the site's table of contents and writes a
README.md index.

Examples:
  docmirror https://docs.example.com
  docmirror https://docs.example.com/guide/setup -o ./setup
  docmirror https://private.example.com -u me@example.com -p secret
  docmirror https://docs.example.com --renderer http --format json`,
	Args:          cobra.ExactArgs(1),
	RunE:          runMirror,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	addMirrorFlags(rootCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
