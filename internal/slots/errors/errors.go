package errors

import "errors"

var (
	ErrNotFound = errors.New("slot not found")

	ErrAlreadyBooked = errors.New("slot already booked")

	ErrNotBooked = errors.New("slot is not booked")
)
