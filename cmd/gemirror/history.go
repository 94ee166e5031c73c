package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/gemirror/internal/config"
	"github.com/nao1215/gemirror/internal/database"
	"github.com/nao1215/gemirror/internal/model"
	"github.com/nao1215/gemirror/internal/report"
)

// NewHistoryCmd creates the history command.
// This command lists the runs recorded by the mirror command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [site]",
		Short: "Show previous mirror runs",
		Long: `History lists the mirror runs recorded in the history database.

Every run is recorded with its summary counters and page list unless the
mirror command was started with --no-history. History is a ledger only;
it never changes what a run does.

Examples:
  # List recent runs of every site
  gemirror history

  # List runs of one site
  gemirror history https://www.coredump.ch

  # Show the full report of run 5
  gemirror history --show 5

  # Show run 5 as JSON
  gemirror history --show 5 --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().Int64P("show", "s", 0,
		"Show the full report of the run with this ID")
	cmd.Flags().IntP("limit", "n", 20,
		"Maximum number of runs to list (0 lists all)")
	cmd.Flags().BoolP("json", "j", false,
		"Output the run shown with --show in JSON format")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	showID, err := flags.GetInt64("show")
	if err != nil {
		return err
	}
	limit, err := flags.GetInt("limit")
	if err != nil {
		return err
	}
	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	if showID > 0 {
		return showRun(ctx, db, out, showID, jsonOutput)
	}

	var site string
	if len(args) > 0 {
		site = strings.TrimSuffix(args[0], "/")
	}
	return listRuns(ctx, db, out, site, limit)
}

// showRun writes the full report of a stored run.
func showRun(ctx context.Context, db *database.HistoryDB, out io.Writer, id int64, jsonOutput bool) error {
	run, err := db.GetRun(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return fmt.Errorf("run %d not found (use 'gemirror history' to see available IDs)", id)
	}

	var w report.Writer = report.NewSimpleWriter(out, report.WithVerbose(true))
	if jsonOutput {
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	}
	_, err = w.Write(run)
	return err
}

// listRuns writes one line per stored run, newest first.
func listRuns(ctx context.Context, db *database.HistoryDB, out io.Writer, site string, limit int) error {
	runs, err := db.ListRuns(ctx, site, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		if site != "" {
			fmt.Fprintf(out, "No runs found for %s\n", site)
		} else {
			fmt.Fprintln(out, "No runs found.")
		}
		fmt.Fprintln(out, "\nUse 'gemirror mirror' to mirror a site.")
		return nil
	}

	fmt.Fprintf(out, "Mirror runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-6s  %-20s  %-10s  %-10s  %s\n", "ID", "Date", "Duration", "Status", "Site")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 78))

	for _, meta := range runs {
		fmt.Fprintf(out, "  %-6d  %-20s  %-10s  %-10s  %s\n",
			meta.ID,
			meta.StartedAt.Local().Format("2006-01-02 15:04:05"),
			formatDuration(meta.Duration()),
			metadataStatus(meta),
			meta.Site,
		)
		fmt.Fprintf(out, "          %s\n", formatSummary(meta.Summary))
	}

	fmt.Fprintln(out, "\nUse 'gemirror history --show <id>' to see the full report of a run.")
	return nil
}

// metadataStatus mirrors report.Status for a stored run.
func metadataStatus(meta database.RunMetadata) string {
	return report.Status(&model.Run{
		State:     meta.State,
		Cancelled: meta.Cancelled,
		Summary:   meta.Summary,
	})
}

// formatDuration formats a run duration, or "-" for unfinished runs.
func formatDuration(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	return d.Round(100 * time.Millisecond).String()
}

// formatSummary formats the summary counters into one line.
func formatSummary(s model.Summary) string {
	parts := []string{
		fmt.Sprintf("pages %d/%d", s.PagesConverted, s.PagesDiscovered),
	}
	if s.PagesDegraded > 0 {
		parts = append(parts, fmt.Sprintf("degraded %d", s.PagesDegraded))
	}
	if s.PagesFailed > 0 {
		parts = append(parts, fmt.Sprintf("failed %d", s.PagesFailed))
	}
	parts = append(parts, fmt.Sprintf("assets %d", s.AssetsProcessed()))
	if s.AssetsFallback > 0 {
		parts = append(parts, fmt.Sprintf("remote %d", s.AssetsFallback))
	}
	return strings.Join(parts, ", ")
}
