package core

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrValidation       ErrorCode = "DEVBOX_VALIDATION"
	ErrAuth             ErrorCode = "DEVBOX_AUTH"
	ErrAccessDenied     ErrorCode = "DEVBOX_ACCESS_DENIED"
	ErrQuotaExceeded    ErrorCode = "DEVBOX_QUOTA_EXCEEDED"
	ErrCapacityExceeded ErrorCode = "DEVBOX_CAPACITY_EXCEEDED"
	ErrNotFound         ErrorCode = "DEVBOX_NOT_FOUND"
	ErrProcessFailure   ErrorCode = "DEVBOX_PROCESS_FAILURE"
	ErrInternal         ErrorCode = "DEVBOX_INTERNAL"
)

// HTTPStatus returns the HTTP status code for this error code.
func (e ErrorCode) HTTPStatus() int {
	switch e {
	case ErrValidation:
		return 400
	case ErrAuth, ErrAccessDenied:
		return 403
	case ErrNotFound:
		return 404
	case ErrCapacityExceeded:
		return 413
	case ErrQuotaExceeded:
		return 429
	default:
		return 500
	}
}

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAppError(code ErrorCode, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// AsAppError unwraps err into an AppError. Errors that carry no code are
// reported as ErrInternal with a generic message.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewAppError(ErrInternal, "internal error")
}

// IsCode reports whether err is an AppError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}
