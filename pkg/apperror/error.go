// Package apperror defines the error kinds surfaced by the graph services and
// their mapping onto HTTP responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is an application error carrying its HTTP status and a stable code.
type Error struct {
	HTTPStatus int
	Code       string
	Message    string
	Internal   error
	Details    map[string]any
}

func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Internal
}

// Is matches any *Error with the same code, so wrapped copies produced by
// WithMessage or WithInternal still satisfy errors.Is against the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithInternal returns a copy of the error with an internal cause attached.
func (e *Error) WithInternal(err error) *Error {
	cp := *e
	cp.Internal = err
	return &cp
}

// WithMessage returns a copy of the error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	cp := *e
	cp.Message = message
	return &cp
}

// WithDetails returns a copy of the error with details attached.
func (e *Error) WithDetails(details map[string]any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// New creates a new application error.
func New(status int, code, message string) *Error {
	return &Error{
		HTTPStatus: status,
		Code:       code,
		Message:    message,
	}
}

var (
	ErrUnauthorized = New(http.StatusUnauthorized, "unauthorized", "Authentication required")
	ErrInvalidToken = New(http.StatusUnauthorized, "invalid_token", "Invalid or expired token")

	ErrForbidden = New(http.StatusForbidden, "forbidden", "Access denied")
	ErrNotFound  = New(http.StatusNotFound, "not_found", "Resource not found")
	ErrConflict  = New(http.StatusConflict, "conflict", "Resource already exists")

	ErrInvalid    = New(http.StatusBadRequest, "invalid", "Invalid input")
	ErrBadRequest = New(http.StatusBadRequest, "bad_request", "Invalid request")

	ErrInternal = New(http.StatusInternalServerError, "internal_error", "An internal error occurred")
	ErrDatabase = New(http.StatusInternalServerError, "database_error", "Database operation failed")
)

// NewNotFound creates a not found error for a resource type and ID.
func NewNotFound(resourceType, id string) *Error {
	return ErrNotFound.WithMessage(fmt.Sprintf("%s '%s' not found", resourceType, id))
}

// NewForbidden creates a forbidden error with a custom message.
func NewForbidden(message string) *Error {
	return ErrForbidden.WithMessage(message)
}

// NewConflict creates a conflict error with a custom message.
func NewConflict(message string) *Error {
	return ErrConflict.WithMessage(message)
}

// NewInvalid creates an invalid input error with a custom message.
func NewInvalid(message string) *Error {
	return ErrInvalid.WithMessage(message)
}

// NewBadRequest creates a bad request error with a custom message.
func NewBadRequest(message string) *Error {
	return ErrBadRequest.WithMessage(message)
}

// NewInternal creates an internal error with a message and wrapped cause.
func NewInternal(message string, err error) *Error {
	return ErrInternal.WithMessage(message).WithInternal(err)
}

// As extracts the *Error from an error chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Message returns the client-facing message of err. Internal causes are
// never included.
func Message(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Message
	}
	return ErrInternal.Message
}

func IsNotFound(err error) bool  { return errors.Is(err, ErrNotFound) }
func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }
func IsConflict(err error) bool  { return errors.Is(err, ErrConflict) }
func IsInvalid(err error) bool   { return errors.Is(err, ErrInvalid) }

// ToHTTPError converts an error to a status code and response body.
func ToHTTPError(err error) (int, map[string]any) {
	if appErr, ok := As(err); ok {
		errBody := map[string]any{
			"code":    appErr.Code,
			"message": appErr.Message,
		}
		if len(appErr.Details) > 0 {
			errBody["details"] = appErr.Details
		}
		return appErr.HTTPStatus, map[string]any{"error": errBody}
	}

	return http.StatusInternalServerError, map[string]any{
		"error": map[string]any{
			"code":    ErrInternal.Code,
			"message": ErrInternal.Message,
		},
	}
}
