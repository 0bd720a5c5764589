// Package apperr defines the error taxonomy shared by stores and
// handlers. Absence and cross-tenant access are both NotFound so that
// responses never reveal whether an entity exists in another tenant.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

type NotFoundError struct{ Msg string }

func (e *NotFoundError) Error() string { return e.Msg }

type AccessDeniedError struct{ Msg string }

func (e *AccessDeniedError) Error() string { return e.Msg }

type ConflictError struct{ Msg string }

func (e *ConflictError) Error() string { return e.Msg }

// TransientError marks an upstream failure the caller may retry. The
// service itself never retries past the collaborator client's backoff.
type TransientError struct {
	Msg string
	Err error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *TransientError) Unwrap() error { return e.Err }

func Validation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &NotFoundError{Msg: fmt.Sprintf(format, args...)}
}

func AccessDenied(format string, args ...any) error {
	return &AccessDeniedError{Msg: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) error {
	return &ConflictError{Msg: fmt.Sprintf(format, args...)}
}

func Transient(err error, format string, args ...any) error {
	return &TransientError{Msg: fmt.Sprintf(format, args...), Err: err}
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// HTTPStatus maps a taxonomy error to a response status. Unknown errors
// are internal.
func HTTPStatus(err error) int {
	var (
		v  *ValidationError
		nf *NotFoundError
		ad *AccessDeniedError
		c  *ConflictError
		t  *TransientError
	)
	switch {
	case errors.As(err, &v):
		return http.StatusBadRequest
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &ad):
		return http.StatusForbidden
	case errors.As(err, &c):
		return http.StatusConflict
	case errors.As(err, &t):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
