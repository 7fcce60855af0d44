package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies application errors for transport mapping.
type ErrorCode string

const (
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeExpired      ErrorCode = "EXPIRED"
	ErrCodeStorage      ErrorCode = "STORAGE_ERROR"
	ErrCodeRateLimit    ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
)

// AppError carries an error code, an HTTP mapping and optional context.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Context    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value pair for the error response body.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

func Wrap(err error, code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus, Cause: err}
}

func NewInvalidInput(message string) *AppError {
	return New(ErrCodeInvalidInput, message, http.StatusBadRequest)
}

func NewNotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NewUnauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func NewForbidden(message string) *AppError {
	return New(ErrCodeForbidden, message, http.StatusForbidden)
}

// NewExpired maps to 410 Gone: the resource existed but its TTL has passed.
func NewExpired(resource string) *AppError {
	return New(ErrCodeExpired, fmt.Sprintf("%s has expired", resource), http.StatusGone)
}

// NewStorage is for primary-write failures, which always propagate. Mirror
// failures are logged and counted instead; see the recording store.
func NewStorage(err error, message string) *AppError {
	return Wrap(err, ErrCodeStorage, message, http.StatusInternalServerError)
}

func NewRateLimit() *AppError {
	return New(ErrCodeRateLimit, "rate limit exceeded", http.StatusTooManyRequests)
}

func NewInternal(message string) *AppError {
	return New(ErrCodeInternal, message, http.StatusInternalServerError)
}

// GetAppError extracts the first AppError in the chain, or nil.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}
