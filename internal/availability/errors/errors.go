package errors

import "errors"

var (
	ErrNotFound = errors.New("availability range not found")

	ErrNoCoveringRange = errors.New("no single availability range covers the requested dates")
)
