// Package report writes the summary of a mirror run.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - JSONWriter: Structured JSON output for tool integration
//   - MarkdownWriter: Markdown output for sharing, e.g. in a CI job summary
//
// Design decision: We separate report writing from the run data (which is
// in the model package) so that a new output format never touches the
// pipeline.
package report
