package errors

import "errors"

var (
	ErrNotFound = errors.New("visit not found")

	// ErrStatusChanged means the visit left the expected status between read
	// and write.
	ErrStatusChanged = errors.New("visit status changed concurrently")

	// ErrAlreadyClaimed is returned when a once-only flag is already set.
	ErrAlreadyClaimed = errors.New("visit flag already set")
)
