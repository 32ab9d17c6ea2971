package similarity

import (
	"errors"
	"fmt"
)

// Sentinel kinds for similarity errors. The typed errors below unwrap to
// them so callers can use errors.Is.
var (
	ErrUnknownUser       = errors.New("unknown user")
	ErrUnsupportedKernel = errors.New("unsupported kernel")
)

// UnknownUserError reports a user id that is absent from the rating table.
type UnknownUserError struct {
	User string
}

func (e *UnknownUserError) Error() string {
	return fmt.Sprintf("user %q not present in dataset", e.User)
}

func (e *UnknownUserError) Unwrap() error { return ErrUnknownUser }

// UnsupportedKernelError reports a kernel selector other than "pearson" or "euclidean".
type UnsupportedKernelError struct {
	Kernel string
}

func (e *UnsupportedKernelError) Error() string {
	return fmt.Sprintf("kernel %q not supported", e.Kernel)
}

func (e *UnsupportedKernelError) Unwrap() error { return ErrUnsupportedKernel }
