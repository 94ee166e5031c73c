package report

import (
	"io"

	"github.com/nao1215/gemirror/internal/model"
)

// Writer defines the interface for report output.
//
// Design decision: We use an interface so that the mirror command picks a
// format once and writes the same run to stdout or a file with one call.
type Writer interface {
	// Write outputs the run summary to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(run *model.Run) (int, error)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// Status returns a one-word status of the run.
func Status(run *model.Run) string {
	switch {
	case run.Cancelled:
		return "cancelled"
	case run.State != model.StateDone:
		return "incomplete"
	case !run.Summary.Clean():
		return "degraded"
	default:
		return "complete"
	}
}

// degradedPages returns the pages that took a fallback path or failed.
func degradedPages(run *model.Run) []*model.Page {
	pages := make([]*model.Page, 0)
	for _, p := range run.Pages {
		if p.Degraded || p.Error != "" {
			pages = append(pages, p)
		}
	}
	return pages
}

// fallbackAssets returns the assets left as remote references.
func fallbackAssets(run *model.Run) []*model.Asset {
	assets := make([]*model.Asset, 0)
	for _, a := range run.Assets {
		if a.Fallback {
			assets = append(assets, a)
		}
	}
	return assets
}

// truncateString truncates a string to maxLen bytes with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
