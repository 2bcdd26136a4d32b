// Package apperr is the error taxonomy shared by every workflow stage.
// Services return *Error values; the HTTP layer renders them with the
// matching status code and a machine-readable kind.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindForbidden    Kind = "forbidden"
	KindUnauthorized Kind = "unauthorized"
	KindInternal     Kind = "internal"
	KindTimeout      Kind = "timeout"
)

// Sentinels let callers match a kind with errors.Is.
var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("resource not found")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal error")
	ErrTimeout      = errors.New("request timed out")
)

var sentinels = map[Kind]error{
	KindValidation:   ErrValidation,
	KindNotFound:     ErrNotFound,
	KindForbidden:    ErrForbidden,
	KindUnauthorized: ErrUnauthorized,
	KindInternal:     ErrInternal,
	KindTimeout:      ErrTimeout,
}

var statuses = map[Kind]int{
	KindValidation:   http.StatusBadRequest,
	KindNotFound:     http.StatusNotFound,
	KindForbidden:    http.StatusForbidden,
	KindUnauthorized: http.StatusUnauthorized,
	KindInternal:     http.StatusInternalServerError,
	KindTimeout:      http.StatusGatewayTimeout,
}

type Error struct {
	Kind    Kind              `json:"kind"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match against the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// HTTPStatus maps the kind to its wire status code.
func (e *Error) HTTPStatus() int {
	if s, ok := statuses[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// WithDetail returns the error with an extra detail entry.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = map[string]string{}
	}
	e.Details[key] = value
	return e
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: "VALIDATION_ERROR", Message: fmt.Sprintf(format, args...)}
}

// Required reports a missing mandatory field.
func Required(field string) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    "FIELD_REQUIRED",
		Message: fmt.Sprintf("%s is required", field),
		Details: map[string]string{"field": field},
	}
}

func NotFound(resource, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found", resource),
		Details: map[string]string{"resource": resource, "id": id},
	}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Code: "FORBIDDEN", Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: "UNAUTHORIZED", Message: message}
}

func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Code: "INTERNAL_ERROR", Message: message, Err: err}
}

func Timeout(message string) *Error {
	return &Error{Kind: KindTimeout, Code: "TIMEOUT", Message: message}
}

// Wrap keeps app errors as they are and turns anything else into an
// internal error carrying message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	return Internal(message, err)
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func IsNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
func IsForbidden(err error) bool  { return errors.Is(err, ErrForbidden) }
