package convert

import "errors"

var (
	// ErrParseAnomaly marks an unexpected or missing structural element.
	// Anomalies are recoverable: the converter degrades to omission or
	// best-effort text extraction.
	ErrParseAnomaly = errors.New("parse anomaly")

	// ErrInvalidSelector is returned by New when a content selector
	// cannot be compiled.
	ErrInvalidSelector = errors.New("invalid content selector")
)
