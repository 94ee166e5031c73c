package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/gemirror/internal/config"
	"github.com/nao1215/gemirror/internal/database"
	"github.com/nao1215/gemirror/internal/log"
	"github.com/nao1215/gemirror/internal/model"
	"github.com/nao1215/gemirror/internal/pipeline"
	"github.com/nao1215/gemirror/internal/report"
)

// ErrRunCancelled is returned when the run was interrupted by a signal.
// The partial tree and report are still written.
var ErrRunCancelled = errors.New("mirror run cancelled")

// NewMirrorCmd creates the mirror command.
func NewMirrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Mirror the configured site into Gemtext files",
		Long: `Mirror crawls the configured site and writes a Gemini capsule.

The run has two passes:
- Discovery fetches every page reachable from the site's sections and
  assigns each a .gmi target path. Nothing is written.
- Conversion fetches every page again, extracts the main content, rewrites
  internal links to relative .gmi paths, downloads images into the asset
  directory and writes the Gemtext file.

Pages that cannot be fetched or yield no content are written as stubs that
point at the original URL, so no rewritten link dangles. Re-running over an
existing tree overwrites the pages and reuses downloaded images.

Without a configuration file the built-in site is mirrored.

Examples:
  # Mirror the built-in site into ./content
  gemirror mirror

  # Mirror a site described in a config file into a server's root
  gemirror mirror -c mysite.yaml -o /srv/gemini/content

  # Print the run summary as JSON
  gemirror mirror --json

  # Write a Markdown summary for a CI job
  gemirror mirror --markdown --report-file summary.md`,
		Args: cobra.NoArgs,
		RunE: runMirrorCmd,
	}

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .gemirror in current or home directory)")
	cmd.Flags().StringP("output", "o", config.DefaultOutputDir,
		"Content root the .gmi files are written to")

	cmd.Flags().Duration("delay", config.DefaultCrawlDelay,
		"Minimum delay between HTTP requests")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to discover")
	cmd.Flags().String("proxy", "",
		"Route requests through a proxy (e.g., socks5://127.0.0.1:9050)")

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("report-file", "r", "",
		"Write report to specified file path (creates directories if needed)")

	cmd.Flags().Bool("no-history", false,
		"Do not record the run in the history database")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	return cmd
}

// runMirrorCmd executes the mirror command.
func runMirrorCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.JSONLog)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runMirror(ctx, cfg, cmd.OutOrStdout(), logger)
}

// getBoolFlag retrieves a flag from the command or its root.
func getBoolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// buildConfig creates a Config from defaults, the config file and flags,
// in increasing order of precedence.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	// If the user explicitly specified a config file path, error if not found.
	// Otherwise silently fall back to the built-in site.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(file)
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if flags.Changed("output") {
		if cfg.OutputDir, err = flags.GetString("output"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("delay") {
		if cfg.CrawlDelay, err = flags.GetDuration("delay"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-pages") {
		if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("proxy") {
		if cfg.ProxyURL, err = flags.GetString("proxy"); err != nil {
			return nil, err
		}
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("report-file"); err != nil {
		return nil, err
	}

	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveHistory = !noHistory

	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}

	cfg.Verbose = getBoolFlag(cmd, "verbose")
	cfg.JSONLog = getBoolFlag(cmd, "json-log")

	return cfg, nil
}

// runMirror executes one mirror run and reports it.
func runMirror(ctx context.Context, cfg *config.Config, stdout io.Writer, logger *slog.Logger) error {
	m, err := pipeline.Build(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to set up mirror: %w", err)
	}

	logger.Info("starting mirror",
		"site", m.Run.Site,
		"output", cfg.OutputDir,
		"maxPages", cfg.MaxPages,
		"delay", cfg.CrawlDelay,
	)

	startTime := time.Now()
	execErr := m.Pipeline.Execute(ctx, m.Run)
	logger.Info("mirror finished",
		"state", m.Run.State,
		"elapsed", time.Since(startTime).Round(time.Millisecond),
		"requests", m.Fetcher.Requests(),
	)

	if err := outputReport(cfg, stdout, m.Run); err != nil {
		logger.Error("report failed", "error", err)
	}

	if cfg.SaveHistory {
		// The run context may be cancelled already; history is recorded
		// for partial runs too.
		if err := saveRun(context.WithoutCancel(ctx), cfg.DBDir, m.Run, logger); err != nil {
			logger.Error("failed to save run", "error", err)
		}
	}

	if m.Run.Cancelled {
		return ErrRunCancelled
	}
	return execErr
}

// newReportWriter returns the writer for the configured report format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}

// outputReport writes the run report to stdout or the report file.
func outputReport(cfg *config.Config, stdout io.Writer, run *model.Run) error {
	output := stdout
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create report directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close()
		output = f
	}

	_, err := newReportWriter(cfg, output).Write(run)
	return err
}

// saveRun records the run in the history database.
func saveRun(ctx context.Context, dbDir string, run *model.Run, logger *slog.Logger) error {
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	id, err := db.SaveRun(ctx, run)
	if err != nil {
		return err
	}

	logger.Info("run saved to history", "id", id, "db", db.Path())
	return nil
}
