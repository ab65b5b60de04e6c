package fsops

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"
)

// ErrorKind classifies filesystem failures so the UI can present them
// without string matching.
type ErrorKind int

const (
	Unknown ErrorKind = iota
	NotFound
	PermissionDenied
	NotADirectory
	AlreadyExists
	IOError
)

func (k ErrorKind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case PermissionDenied:
		return "permission denied"
	case NotADirectory:
		return "not a directory"
	case AlreadyExists:
		return "already exists"
	case IOError:
		return "I/O error"
	default:
		return "unknown error"
	}
}

// OpError is the error type returned by all fsops operations.
type OpError struct {
	Kind ErrorKind
	Path string
	msg  string
	err  error
}

func (e *OpError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *OpError) Unwrap() error {
	return e.err
}

// NewOpError creates an OpError with an explicit kind.
func NewOpError(kind ErrorKind, path, msg string, err error) *OpError {
	return &OpError{Kind: kind, Path: path, msg: msg, err: err}
}

// KindOf extracts the ErrorKind from an error chain, defaulting to Unknown.
func KindOf(err error) ErrorKind {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Kind
	}
	return Unknown
}

// classify wraps an underlying OS error with the matching kind.
func classify(path, msg string, err error) *OpError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return NewOpError(NotFound, path, msg, err)
	case errors.Is(err, fs.ErrPermission):
		return NewOpError(PermissionDenied, path, msg, err)
	case errors.Is(err, fs.ErrExist):
		return NewOpError(AlreadyExists, path, msg, err)
	case errors.Is(err, syscall.ENOTDIR):
		return NewOpError(NotADirectory, path, msg, err)
	default:
		var pathErr *os.PathError
		if errors.As(err, &pathErr) && errors.Is(pathErr.Err, syscall.ENOTDIR) {
			return NewOpError(NotADirectory, path, msg, err)
		}
		return NewOpError(IOError, path, msg, err)
	}
}
