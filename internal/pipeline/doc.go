// Package pipeline runs a mirror as a sequence of steps over a model.Run.
//
// A run has two passes. The discovery pass crawls the site and fills the
// page registry; nothing is written. The conversion pass fetches every
// registered page again, converts it to Gemtext and writes it. Conversion
// needs the complete registry because every internal link is rewritten
// through it.
//
// Design decision: We keep the step pattern for the two passes because it
// gives both the same cancellation check, logging and state transitions,
// and because a pass can be tested on its own with a hand-built registry.
//
// Everything runs on one goroutine. Concurrent runs against the same
// output tree are not supported.
package pipeline
