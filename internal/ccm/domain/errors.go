package domain

import (
	"errors"
	"fmt"
)

// Exported error variables allow callers to use errors.Is() for error checking.
var (
	ErrProfileNameEmpty        = errors.New("profile name cannot be empty")
	ErrProfileNameDot          = errors.New("profile name cannot be '.' or '..'")
	ErrProfileNameHidden       = errors.New("profile name cannot start with '.'")
	ErrProfileNameNonPrintable = errors.New("profile name contains non-printable characters")
	ErrProfileNameInvalidChars = errors.New("profile name contains invalid characters (<>:\"/|?*)")
	ErrProfileNameReserved     = errors.New("profile name is a reserved system filename")
	ErrProfileNameNullByte     = errors.New("profile name contains null byte")
)

var (
	ErrProfileNotFound      = errors.New("profile not found")
	ErrProfileAlreadyExists = errors.New("profile already exists")
	ErrActiveProfile        = errors.New("profile is currently active")
	ErrMalformedProfile     = errors.New("malformed profile")
	ErrMissingRequiredKey   = errors.New("missing required key")
	ErrMirrorNotFound       = errors.New("claude settings not found")
	ErrIO                   = errors.New("i/o error")
	// ErrCancelledByUser is returned when a conflict was resolved with "cancel".
	// It is a normal outcome, not a failure.
	ErrCancelledByUser = errors.New("cancelled by user")
)

// PathError records a failed filesystem operation. It matches both ErrIO and
// the underlying cause under errors.Is.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() []error {
	return []error{ErrIO, e.Err}
}

// IOError wraps err as a PathError unless it is nil.
func IOError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &PathError{Op: op, Path: path, Err: err}
}
