package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for gemirror.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gemirror",
		Short: "Mirror a website into a Gemini capsule",
		Long: `gemirror mirrors a website into a tree of Gemtext files that a Gemini
server can serve as is.

A run first discovers every page reachable from the site's sections, then
converts the main content of each page, rewriting internal links to the
local .gmi files and downloading referenced images. Nothing a single page
does wrong stops the run: failures are reported as degraded items.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("json-log", false, "Write logs as JSON lines")

	// Add subcommands
	cmd.AddCommand(NewMirrorCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
