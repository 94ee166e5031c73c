package asset

import "fmt"

// WriteError is a filesystem failure while persisting an asset.
// It is recoverable: the asset falls back to its remote URL.
type WriteError struct {
	// Path is the file that could not be written.
	Path string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *WriteError) Error() string {
	return fmt.Sprintf("write asset %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *WriteError) Unwrap() error {
	return e.Err
}
