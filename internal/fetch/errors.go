package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrStatus is wrapped by FetchError when the server answered with a
	// non-2xx status code.
	ErrStatus = errors.New("unexpected HTTP status")

	// ErrBodyTooLarge is wrapped by FetchError when the response exceeds
	// the configured size limit.
	ErrBodyTooLarge = errors.New("response body too large")
)

// FetchError describes a failed GET. It is always recoverable: the run
// continues with a fallback for the affected page or asset.
type FetchError struct {
	// URL is the requested URL.
	URL string

	// StatusCode is the HTTP status, or 0 if no response was received.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}
