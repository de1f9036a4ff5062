package shared

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable application error codes. Storage-engine SQLSTATE codes pass
// through MapDBError unchanged and extend this vocabulary.
const (
	CodeRequiredField       = "REQUIRED_FIELD"
	CodeValidationError     = "VALIDATION_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodeNoData              = "NO_DATA"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeAuthenticationError = "AUTHENTICATION_ERROR"
	CodePermissionDenied    = "PERMISSION_DENIED"
	CodeInternalError       = "INTERNAL_ERROR"
)

// Error is the discriminated failure value carried across layer
// boundaries. Usecases and handlers re-wrap it but never reinterpret the
// code.
type Error struct {
	Code    string
	Message string
	Status  int
	Details map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds an Error with the default 400 status.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message, Status: http.StatusBadRequest}
}

// WithStatus overrides the HTTP-equivalent status.
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

// WithDetails attaches structured context to the error.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// Internal wraps an unexpected error, falling back to the supplied message
// when the cause carries none.
func Internal(err error, fallback string) *Error {
	message := fallback
	if err != nil && err.Error() != "" {
		message = err.Error()
	}
	return &Error{Code: CodeInternalError, Message: message, Status: http.StatusInternalServerError}
}

// AsError extracts an *Error from err, wrapping anything else as an
// internal error with the fallback message.
func AsError(err error, fallback string) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err, fallback)
}
