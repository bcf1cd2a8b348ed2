// Package apperrors defines the error kinds returned by the ride services
// and their HTTP mapping.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindForbidden  Kind = "forbidden"
	KindConflict   Kind = "conflict"
	KindValidation Kind = "validation"
	KindInternal   Kind = "internal"
)

const (
	CodeRideNotFound       = "RIDE_NOT_FOUND"
	CodeRequestNotFound    = "RIDE_REQUEST_NOT_FOUND"
	CodeOwnRide            = "OWN_RIDE"
	CodeOwnRequest         = "OWN_REQUEST"
	CodeNotRideOwner       = "NOT_RIDE_OWNER"
	CodeNotRequestOwner    = "NOT_REQUEST_OWNER"
	CodeDriverOnly         = "DRIVER_ONLY"
	CodeRideNotActive      = "RIDE_NOT_ACTIVE"
	CodeAlreadyBooked      = "ALREADY_BOOKED"
	CodeRideFull           = "RIDE_FULL"
	CodeInsufficientSeats  = "INSUFFICIENT_SEATS"
	CodeRequestUnavailable = "REQUEST_UNAVAILABLE"
	CodeInvalidStatus      = "INVALID_STATUS"
	CodeIllegalTransition  = "ILLEGAL_TRANSITION"
	CodeValidation         = "VALIDATION_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
)

// Error is the typed error carried from services to handlers.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]string
	Err     error
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

// Is matches another *Error with the same kind and code, so callers can
// compare against the exported sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Code == "" || e.Code == t.Code)
}

// Retryable reports whether re-issuing the same call may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindInternal
}

// WithDetails returns a copy of e carrying per-field details.
func (e *Error) WithDetails(details map[string]string) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func NotFound(code, message string) *Error {
	return New(KindNotFound, code, message)
}

func Forbidden(code, message string) *Error {
	return New(KindForbidden, code, message)
}

func Conflict(code, message string) *Error {
	return New(KindConflict, code, message)
}

func Validation(message string) *Error {
	return New(KindValidation, CodeValidation, message)
}

func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: message, Err: err}
}

var (
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrForbidden  = &Error{Kind: KindForbidden}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrValidation = &Error{Kind: KindValidation}
	ErrInternal   = &Error{Kind: KindInternal}
)

// From returns err as an *Error, wrapping anything unclassified as internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("internal server error", err)
}

func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return From(err).Kind
}

// HTTPStatus maps err onto a response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case "":
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}
