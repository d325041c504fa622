package maxlines

import (
	"errors"
	"fmt"
)

// Common filesystem errors
var (
	ErrNotExist     = errors.New("file does not exist")
	ErrExist        = errors.New("file already exists")
	ErrPermission   = errors.New("permission denied")
	ErrNotDir       = errors.New("not a directory")
	ErrIsDir        = errors.New("is a directory")
	ErrNotAllowed   = errors.New("operation not allowed")
	ErrNotSupported = errors.New("operation not supported")
	ErrInvalidSize  = errors.New("invalid file size")
)

// ErrEmptySequence is returned by MaxIndex when there is no element to pick.
var ErrEmptySequence = errors.New("empty sequence has no maximum")

// PathError records an error and the operation and file path that caused it
type PathError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface
func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *PathError) Unwrap() error {
	return e.Err
}

// IsNotExist reports whether an error indicates that a file or directory
// does not exist
func IsNotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}

// IsPermission reports whether an error indicates that permission is denied
func IsPermission(err error) bool {
	return errors.Is(err, ErrPermission)
}

// IsNotDir reports whether an error indicates that a directory was expected
func IsNotDir(err error) bool {
	return errors.Is(err, ErrNotDir)
}
