package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindInvalidToken
	KindForbidden
	KindNotFound
	KindConflict
	KindUpstream
)

// AppError represents an application error
type AppError struct {
	Kind    Kind        `json:"-"`
	Message string      `json:"message"`
	Data    interface{} `json:"-"`
	Err     error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error kind to the HTTP status the API answers with.
// Ownership and missing-reference errors are reported as 400.
func (e *AppError) StatusCode() int {
	switch e.Kind {
	case KindValidation, KindForbidden, KindNotFound, KindConflict:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindInvalidToken:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// WithData attaches a payload that is returned alongside the error message
func (e *AppError) WithData(data interface{}) *AppError {
	e.Data = data
	return e
}

func Validation(message string) *AppError {
	return &AppError{Kind: KindValidation, Message: message}
}

func Unauthorized(message string) *AppError {
	return &AppError{Kind: KindAuth, Message: message}
}

func InvalidToken(message string, err error) *AppError {
	return &AppError{Kind: KindInvalidToken, Message: message, Err: err}
}

func Forbidden(message string) *AppError {
	return &AppError{Kind: KindForbidden, Message: message}
}

func NotFound(message string) *AppError {
	return &AppError{Kind: KindNotFound, Message: message}
}

func Conflict(message string) *AppError {
	return &AppError{Kind: KindConflict, Message: message}
}

func Upstream(message string, err error) *AppError {
	return &AppError{Kind: KindUpstream, Message: message, Err: err}
}

func Internal(err error) *AppError {
	return &AppError{Kind: KindInternal, Message: "Internal server error", Err: err}
}

// As returns the AppError in err's chain, if any
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err carries an AppError of the given kind
func IsKind(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}
