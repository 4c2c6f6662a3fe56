package model

import "errors"

// Sentinel kinds for record encoding errors.
var (
	ErrNotInitialized        = errors.New("record not initialized")
	ErrDiscriminatorMismatch = errors.New("record discriminator mismatch")
	ErrRecordTooSmall        = errors.New("record too small")
	ErrInvalidRecord         = errors.New("invalid record")
	ErrIDTooLong             = errors.New("identifier too long")
)
