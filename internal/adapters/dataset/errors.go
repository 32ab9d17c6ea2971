package dataset

import "errors"

// Sentinel kinds for dataset errors.
var (
	ErrLoad   = errors.New("load dataset")
	ErrFormat = errors.New("malformed dataset")
)
