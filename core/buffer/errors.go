package buffer

import "errors"

// --- Error Definitions ---

var (
	// ErrRange reports a write or resize outside the buffer's current bounds.
	// It always indicates a caller bug.
	ErrRange         = errors.New("position out of buffer range")
	ErrInvalidLength = errors.New("buffer length must not be negative")
)
