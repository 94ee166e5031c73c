// Package model defines the core data structures shared by the mirror
// pipeline.
//
// This package contains the following main types:
//   - Page: A page of the mirrored site and its local target path
//   - Asset: A downloaded (or fallback) image
//   - Run: The state and results of one pipeline invocation
//   - Summary: Counters reported when a run finishes
//
// Design decision: Models live in their own package to avoid import cycles.
// The registry, asset store, pipeline, database and report packages all
// need these types.
//
// The models are serializable to JSON for report output and for the run
// history database.
package model
