package vfs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an operation failure.
type Kind int

const (
	KindInternal Kind = iota
	KindVolumeNotMounted
	KindPathNotFound
	KindAccessDenied
	KindDirectoryNotFound
	KindItemExists
	KindNoFileUploaded
	KindCorruptSession
)

// Error is the typed failure returned by every vfs operation.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.message()
	if e.Path != "" {
		msg = msg + ": " + e.Path
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) message() string {
	switch e.Kind {
	case KindVolumeNotMounted:
		return "volume not mounted"
	case KindPathNotFound:
		return "path not found"
	case KindAccessDenied:
		return "access denied"
	case KindDirectoryNotFound:
		return "directory not found"
	case KindItemExists:
		return "an item with this name already exists"
	case KindNoFileUploaded:
		return "no file uploaded"
	case KindCorruptSession:
		return "upload session is corrupt"
	default:
		return "internal error"
	}
}

// HTTPStatus maps a failure kind to a response status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindVolumeNotMounted, KindItemExists, KindNoFileUploaded:
		return http.StatusBadRequest
	case KindPathNotFound, KindDirectoryNotFound:
		return http.StatusNotFound
	case KindAccessDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

// KindOf extracts the failure kind from an error chain.
// Non-vfs errors classify as KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// OperationResult is the uniform response shape for mutating operations.
type OperationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Name    string `json:"name,omitempty"`
	Path    string `json:"path,omitempty"`
	Size    int64  `json:"size,omitempty"`
}

// OK builds a successful result.
func OK(format string, args ...interface{}) OperationResult {
	return OperationResult{Success: true, Message: fmt.Sprintf(format, args...)}
}
