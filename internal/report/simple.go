package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/gemirror/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
//
// Design decision: Plain text with ASCII rules rather than ANSI colors,
// so the output reads the same in a terminal, a cron mail or a log file.
type SimpleWriter struct {
	baseWriter

	// verbose lists every page, not just the degraded ones.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists every page in the report.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the run summary in human-readable format.
func (w *SimpleWriter) Write(run *model.Run) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, run)
	w.writeSummary(&sb, run)
	w.writeDegraded(&sb, run)
	if w.verbose {
		w.writePages(&sb, run)
	}
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

func rule(sb *strings.Builder, c string) {
	sb.WriteString(strings.Repeat(c, 70))
	sb.WriteString("\n")
}

func section(sb *strings.Builder, title string) {
	rule(sb, "-")
	sb.WriteString(title + "\n")
	rule(sb, "-")
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, run *model.Run) {
	sb.WriteString("\n")
	rule(sb, "=")
	sb.WriteString("                        GEMIRROR RUN REPORT\n")
	rule(sb, "=")
	sb.WriteString("\n")

	fmt.Fprintf(sb, "Site:      %s\n", run.Site)
	fmt.Fprintf(sb, "Output:    %s\n", run.OutputDir)
	fmt.Fprintf(sb, "Started:   %s\n", run.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:  %s\n", run.Duration().Round(time.Millisecond))

	switch Status(run) {
	case "cancelled":
		fmt.Fprintf(sb, "Status:    CANCELLED during %s (partial results)\n", run.State)
	case "incomplete":
		fmt.Fprintf(sb, "Status:    INCOMPLETE, stopped during %s\n", run.State)
	case "degraded":
		fmt.Fprintf(sb, "Status:    Complete with %d degraded item(s)\n", run.Summary.DegradedItems())
	default:
		sb.WriteString("Status:    Complete\n")
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, run *model.Run) {
	s := run.Summary
	section(sb, "SUMMARY")

	fmt.Fprintf(sb, "  Pages discovered:    %d\n", s.PagesDiscovered)
	fmt.Fprintf(sb, "  Pages converted:     %d\n", s.PagesConverted)
	fmt.Fprintf(sb, "  Pages degraded:      %d\n", s.PagesDegraded)
	fmt.Fprintf(sb, "  Pages failed:        %d\n", s.PagesFailed)
	fmt.Fprintf(sb, "  Discovery failures:  %d\n", s.DiscoveryFailures)
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  Assets downloaded:   %d\n", s.AssetsDownloaded)
	fmt.Fprintf(sb, "  Assets cached:       %d\n", s.AssetsCached)
	fmt.Fprintf(sb, "  Assets remote:       %d\n", s.AssetsFallback)
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  Parse anomalies:     %d\n", s.ParseAnomalies)
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeDegraded(sb *strings.Builder, run *model.Run) {
	pages := degradedPages(run)
	assets := fallbackAssets(run)
	if len(pages) == 0 && len(assets) == 0 {
		return
	}

	section(sb, "DEGRADED")
	for _, p := range pages {
		if !p.Converted {
			fmt.Fprintf(sb, "  [x] %s -> %s (not written, links to it are dangling)\n", p.URL, p.TargetPath)
		} else {
			fmt.Fprintf(sb, "  [!] %s -> %s\n", p.URL, p.TargetPath)
		}
		if p.Error != "" {
			fmt.Fprintf(sb, "      %s\n", p.Error)
		}
	}
	for _, a := range assets {
		fmt.Fprintf(sb, "  [-] %s (kept remote)\n", a.URL)
		if a.Error != "" {
			fmt.Fprintf(sb, "      %s\n", a.Error)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writePages(sb *strings.Builder, run *model.Run) {
	section(sb, "PAGES")
	if len(run.Pages) == 0 {
		sb.WriteString("  No pages\n\n")
		return
	}
	for _, p := range run.Pages {
		mark := "+"
		switch {
		case !p.Converted:
			mark = "x"
		case p.Degraded:
			mark = "!"
		}
		fmt.Fprintf(sb, "  [%s] %s\n", mark, p.TargetPath)
		if p.Title != "" {
			fmt.Fprintf(sb, "      %s\n", p.Title)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	rule(sb, "=")
	sb.WriteString("Report generated by gemirror\n")
	sb.WriteString("https://github.com/nao1215/gemirror\n")
	rule(sb, "=")
}
