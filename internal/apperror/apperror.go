// Package apperror defines the error taxonomy surfaced by the record service.
// Handlers turn an AppError into the JSON error envelope and its HTTP status.
package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeStorage             = "STORAGE_ERROR"
	CodeStorageTimeout      = "STORAGE_TIMEOUT"
	CodeIdempotencyConflict = "IDEMPOTENCY_CONFLICT"
	CodeInternal            = "INTERNAL_ERROR"
)

// AppError is the error type shared by the service and HTTP layers.
type AppError struct {
	// Code is a machine-readable identifier
	Code string `json:"code"`

	// Message is safe to show to API consumers
	Message string `json:"message"`

	// Details carries field errors and other context
	Details map[string]any `json:"details,omitempty"`

	HTTPStatus int  `json:"-"`
	Retryable  bool `json:"-"`

	// Err is the underlying cause, never serialized
	Err error `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewStorage wraps a persistence failure. Deadline overruns become a retryable
// STORAGE_TIMEOUT so callers know the whole request can be repeated.
func NewStorage(operation string, err error) *AppError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &AppError{
			Code:       CodeStorageTimeout,
			Message:    "Storage did not respond in time",
			HTTPStatus: http.StatusServiceUnavailable,
			Retryable:  true,
			Details:    map[string]any{"operation": operation},
			Err:        err,
		}
	}
	return &AppError{
		Code:       CodeStorage,
		Message:    "Storage operation failed",
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"operation": operation},
		Err:        err,
	}
}

// NewIdempotencyConflict is returned when a key is reused with another body or is still in flight.
func NewIdempotencyConflict(message string) *AppError {
	return &AppError{
		Code:       CodeIdempotencyConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewInternal hides the cause from clients.
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// AsAppError extracts an AppError from the chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == CodeValidation
}

// IsStorage reports whether err came from the persistence layer, timeouts included.
func IsStorage(err error) bool {
	appErr, ok := AsAppError(err)
	return ok && (appErr.Code == CodeStorage || appErr.Code == CodeStorageTimeout)
}

// Normalize converts any error into an AppError, defaulting to INTERNAL_ERROR.
func Normalize(err error) *AppError {
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return NewInternal(err)
}
