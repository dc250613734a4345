// Package apperr defines the error kinds shared by the store, the fetcher and
// the retrieval pipeline. Callers match them with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch marks a network, transport or feed parse failure.
	ErrFetch = errors.New("fetch failed")
	// ErrStoreUnavailable marks a store that cannot be read or written.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInvalidArgument marks a request rejected before any I/O.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidPath marks an output target that cannot be written.
	ErrInvalidPath = errors.New("invalid path")
)

// FetchError wraps the upstream cause of a failed fetch.
type FetchError struct {
	URL   string
	Cause error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch '%s' with %v", e.URL, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, ErrFetch) match any FetchError.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// InvalidArgument formats an ErrInvalidArgument error.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// StoreUnavailable wraps err as ErrStoreUnavailable with a short context message.
func StoreUnavailable(msg string, err error) error {
	return fmt.Errorf("%w: %s with %w", ErrStoreUnavailable, msg, err)
}

// InvalidPath wraps err as ErrInvalidPath for the given target.
func InvalidPath(path string, err error) error {
	return fmt.Errorf("%w: cannot write '%s' with %w", ErrInvalidPath, path, err)
}
