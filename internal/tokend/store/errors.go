package store

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when a signing or refresh operation is
// invoked while that feature has no backing configuration. Callers
// avoid it by checking capability flags first; nothing here retries.
var ErrNotConfigured = errors.New("store: feature not configured")

// RefreshError wraps an infrastructure failure (I/O, network timeout,
// lock timeout, serialization) from a store operation. Logical
// not-found outcomes are never a RefreshError: they are nil results.
type RefreshError struct {
	Backend string
	Op      string
	Err     error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("store: %s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// NewRefreshError wraps err with its backend and operation. Returns nil
// for a nil err so drivers can use it on every return path.
func NewRefreshError(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	return &RefreshError{Backend: backend, Op: op, Err: err}
}

// IsRefreshError reports whether err is an infrastructure failure from
// a store driver.
func IsRefreshError(err error) bool {
	var re *RefreshError
	return errors.As(err, &re)
}
