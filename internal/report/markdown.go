package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/gemirror/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation, which gives tables, mermaid charts and GitHub alerts
// without string templates.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run summary in Markdown format.
func (w *MarkdownWriter) Write(run *model.Run) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, run)
	w.writeSummary(md, run)
	w.writeDegraded(md, run)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, run *model.Run) {
	md.H1("gemirror Run Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Site", "`" + run.Site + "`"},
			{"Output", "`" + run.OutputDir + "`"},
			{"Started", run.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", run.Duration().Round(time.Millisecond).String()},
			{"Status", w.statusText(run)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) statusText(run *model.Run) string {
	switch Status(run) {
	case "cancelled":
		return "⚠️ Cancelled during " + string(run.State) + " (partial results)"
	case "incomplete":
		return "❌ Incomplete, stopped during " + string(run.State)
	case "degraded":
		return "🟡 Complete with degradation"
	default:
		return "✅ Complete"
	}
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, run *model.Run) {
	s := run.Summary
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows: [][]string{
			{"Pages discovered", strconv.Itoa(s.PagesDiscovered)},
			{"Pages converted", strconv.Itoa(s.PagesConverted)},
			{"Pages degraded", strconv.Itoa(s.PagesDegraded)},
			{"Pages failed", strconv.Itoa(s.PagesFailed)},
			{"Discovery failures", strconv.Itoa(s.DiscoveryFailures)},
			{"Assets downloaded", strconv.Itoa(s.AssetsDownloaded)},
			{"Assets cached", strconv.Itoa(s.AssetsCached)},
			{"Assets remote", strconv.Itoa(s.AssetsFallback)},
			{"Parse anomalies", strconv.Itoa(s.ParseAnomalies)},
		},
	})
	md.PlainText("")

	if s.PagesDiscovered > 0 {
		w.writePieChart(md, s)
	}
	w.writeAlert(md, run)
}

// writePieChart writes a mermaid pie chart of page outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Page Outcomes"),
		piechart.WithShowData(true),
	)

	clean := s.PagesConverted - s.PagesDegraded
	if clean > 0 {
		chart.LabelAndIntValue("Converted", uint64(clean)) //nolint:gosec // positive
	}
	if s.PagesDegraded > 0 {
		chart.LabelAndIntValue("Degraded", uint64(s.PagesDegraded)) //nolint:gosec // positive
	}
	if s.PagesFailed > 0 {
		chart.LabelAndIntValue("Failed", uint64(s.PagesFailed)) //nolint:gosec // positive
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, run *model.Run) {
	s := run.Summary
	switch {
	case run.Cancelled:
		md.Warningf("The run was cancelled during %s. The output tree is incomplete.", run.State)
	case s.PagesFailed > 0:
		md.Cautionf("%d page(s) could not be written. Links to them are dangling.", s.PagesFailed)
	case s.DegradedItems() > 0:
		md.Importantf("%d item(s) took a fallback path. See the list below.", s.DegradedItems())
	case s.ParseAnomalies > 0:
		md.Note(fmt.Sprintf("%d parse anomaly(ies) were recorded. Check the content selectors.", s.ParseAnomalies))
	default:
		md.Tip("Every page and asset was mirrored.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeDegraded(md *markdown.Markdown, run *model.Run) {
	pages := degradedPages(run)
	assets := fallbackAssets(run)
	if len(pages) == 0 && len(assets) == 0 {
		return
	}

	if len(pages) > 0 {
		md.H2("Degraded Pages")
		md.PlainText("")
		rows := make([][]string, len(pages))
		for i, p := range pages {
			reason := p.Error
			if reason == "" {
				reason = "-"
			}
			rows[i] = []string{p.URL, "`" + p.TargetPath + "`", truncateString(reason, 60)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"URL", "Target", "Reason"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	if len(assets) > 0 {
		md.H2("Remote Assets")
		md.PlainText("")
		rows := make([][]string, len(assets))
		for i, a := range assets {
			reason := a.Error
			if reason == "" {
				reason = "-"
			}
			rows[i] = []string{a.URL, truncateString(reason, 60)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"URL", "Reason"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [gemirror](https://github.com/nao1215/gemirror)*")
}
