package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Brain error code.
type ErrorCode string

const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"   // 400
	ErrNotFound         ErrorCode = "NOT_FOUND"         // 404
	ErrFileNotFound     ErrorCode = "FILE_NOT_FOUND"    // 404
	ErrCancelled        ErrorCode = "CANCELLED"         // 499
	ErrStoreUnavailable ErrorCode = "STORE_UNAVAILABLE" // 503
	ErrInternal         ErrorCode = "INTERNAL"          // 500
)

// BrainError represents a structured error with code, status, and details.
type BrainError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	cause   error
}

// Error implements the error interface.
func (e *BrainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *BrainError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *BrainError {
	return &BrainError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a record cannot be found.
func NewNotFound(id string) *BrainError {
	return &BrainError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("record not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewFileNotFound creates a 404 error for a missing import file.
func NewFileNotFound(path string) *BrainError {
	return &BrainError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewCancelled creates a 499 error for an operation aborted by its context.
func NewCancelled(op string) *BrainError {
	return &BrainError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewStoreUnavailable creates a 503 error for a failed store read or write.
// op is "load" or "save".
func NewStoreUnavailable(op string, err error) *BrainError {
	msg := fmt.Sprintf("store %s failed", op)
	if err != nil {
		msg = fmt.Sprintf("store %s failed: %v", op, err)
	}
	return &BrainError{
		Code:    ErrStoreUnavailable,
		Status:  503,
		Message: msg,
		Details: map[string]any{"op": op},
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *BrainError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &BrainError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if err (or anything it wraps) is a BrainError with the given code.
func Is(err error, code ErrorCode) bool {
	var bErr *BrainError
	if stderrors.As(err, &bErr) {
		return bErr.Code == code
	}
	return false
}

// As returns the BrainError wrapped by err, if any.
func As(err error) (*BrainError, bool) {
	var bErr *BrainError
	if stderrors.As(err, &bErr) {
		return bErr, true
	}
	return nil, false
}
