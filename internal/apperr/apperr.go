// Package apperr defines the error kinds surfaced by the service layer.
// The API layer maps them to HTTP status codes with errors.As.
package apperr

import "fmt"

// ValidationError reports bad input shape: an empty message, an invalid
// role, an oversized payload. Never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// StorageError reports that durable storage failed: unavailable, or a
// constraint violation. The enclosing operation must be treated as failed
// in its entirety.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Storage wraps err as a StorageError for the named operation.
func Storage(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// GenerationError reports a completion-service failure. When one is
// returned, no message from the failed turn has been persisted.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("completion failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Generation wraps err as a GenerationError.
func Generation(err error) *GenerationError {
	return &GenerationError{Err: err}
}
