// Package errors defines the error taxonomy shared by the stores, the
// handlers and the API client.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies an AppError. The value is sent as "type" in error
// bodies.
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "VALIDATION"
	ErrorTypeNotFound    ErrorType = "NOT_FOUND"
	ErrorTypeConflict    ErrorType = "CONFLICT"
	ErrorTypeStore       ErrorType = "STORE"
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"
	ErrorTypeInternal    ErrorType = "INTERNAL"
)

var statusByType = map[ErrorType]int{
	ErrorTypeValidation:  http.StatusBadRequest,
	ErrorTypeNotFound:    http.StatusNotFound,
	ErrorTypeConflict:    http.StatusConflict,
	ErrorTypeStore:       http.StatusInternalServerError,
	ErrorTypeUnavailable: http.StatusServiceUnavailable,
	ErrorTypeInternal:    http.StatusInternalServerError,
}

// StatusFor returns the HTTP status of an error type
func StatusFor(t ErrorType) int {
	if status, ok := statusByType[t]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// TypeForStatus is the inverse of StatusFor. 500 maps to INTERNAL.
func TypeForStatus(status int) ErrorType {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrorTypeValidation
	case http.StatusNotFound:
		return ErrorTypeNotFound
	case http.StatusConflict:
		return ErrorTypeConflict
	case http.StatusServiceUnavailable:
		return ErrorTypeUnavailable
	}
	return ErrorTypeInternal
}

// AppError is the error type returned across layer boundaries.
// Operation and Collection are set on store errors.
type AppError struct {
	Type       ErrorType
	Message    string
	Code       string
	Details    map[string]interface{}
	Operation  string
	Collection string
	Cause      error
	HTTPStatus int
}

func (e *AppError) Error() string {
	msg := string(e.Type) + ": " + e.Message
	if e.Cause != nil {
		msg += " (caused by: " + e.Cause.Error() + ")"
	}
	return msg
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithCode sets a machine-readable code such as RECORD_EXISTS
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetails attaches structured details, e.g. per-field validation messages
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause records the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

func newError(t ErrorType, message string) *AppError {
	return &AppError{Type: t, Message: message, HTTPStatus: StatusFor(t)}
}

// NewValidationError reports missing or malformed input
func NewValidationError(message string) *AppError {
	return newError(ErrorTypeValidation, message)
}

func NewValidationErrorf(format string, args ...interface{}) *AppError {
	return newError(ErrorTypeValidation, fmt.Sprintf(format, args...))
}

// NewNotFoundError reports an absent key on a targeted read, update or delete
func NewNotFoundError(resource string) *AppError {
	return newError(ErrorTypeNotFound, resource+" not found")
}

// NewConflictError reports a failed conditional write
func NewConflictError(message string) *AppError {
	return newError(ErrorTypeConflict, message)
}

// NewStoreError wraps any other failure of a store call. The message is
// generic; the cause is only shown to clients in development.
func NewStoreError(operation, collection string, err error) *AppError {
	e := newError(ErrorTypeStore, fmt.Sprintf("%s on %s failed", operation, collection))
	e.Operation = operation
	e.Collection = collection
	e.Cause = err
	return e
}

// NewUnavailableError reports a dependency that is refusing calls, such as
// a store behind an open circuit breaker
func NewUnavailableError(service string) *AppError {
	return newError(ErrorTypeUnavailable, service+" is unavailable")
}

func NewInternalError(message string) *AppError {
	return newError(ErrorTypeInternal, message)
}

// GetAppError returns the first AppError in err's chain, or nil
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

func IsAppError(err error) bool { return GetAppError(err) != nil }

// IsType reports whether err's AppError has type t
func IsType(err error, t ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == t
}

func IsNotFound(err error) bool   { return IsType(err, ErrorTypeNotFound) }
func IsValidation(err error) bool { return IsType(err, ErrorTypeValidation) }
func IsConflict(err error) bool   { return IsType(err, ErrorTypeConflict) }
func IsStore(err error) bool      { return IsType(err, ErrorTypeStore) }
