package repository

import "errors"

// Sentinel kinds for rating store errors.
var (
	ErrNotFound      = errors.New("user not found")
	ErrInvalidRating = errors.New("invalid rating")
	ErrUnknownStore  = errors.New("unknown store kind")
	ErrClosed        = errors.New("store closed")
)
