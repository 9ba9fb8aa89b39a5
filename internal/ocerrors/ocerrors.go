// Package ocerrors classifies errors by kind rather than by concrete type,
// so bridges and the gateway can map any error to an HTTP status without
// type-asserting on a specific library's exception hierarchy (spec §7).
package ocerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the error categories from spec §7.
type Kind int

const (
	KindUnknown Kind = iota
	KindDisconnected
	KindUnimplemented
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindInvalidInput
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindDisconnected:
		return "disconnected"
	case KindUnimplemented:
		return "unimplemented"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindInvalidInput:
		return "invalid_input"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind so callers can recover it
// with errors.As without depending on which package produced it.
type Error struct {
	Kind  Kind
	Msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.cause }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, cause: cause}
}

func Disconnected(msg string) *Error  { return New(KindDisconnected, msg) }
func Unimplemented(msg string) *Error { return New(KindUnimplemented, msg) }
func Unauthorized(msg string) *Error  { return New(KindUnauthorized, msg) }
func Forbidden(msg string) *Error     { return New(KindForbidden, msg) }
func NotFound(msg string) *Error      { return New(KindNotFound, msg) }
func InvalidInput(msg string) *Error  { return New(KindInvalidInput, msg) }
func Fatal(msg string, cause error) *Error {
	return Wrap(KindFatal, msg, cause)
}

// KindOf recovers the Kind of err, walking the unwrap chain. Errors not
// produced by this package are KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err (or something it wraps) has the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps a Kind to the status code the gateway should emit
// absent more specific handling (e.g. the 401/403/304/412 special cases
// in internal/websession are computed independently of this table).
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindDisconnected:
		return http.StatusBadGateway
	case KindUnimplemented:
		return http.StatusNotImplemented
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindFatal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
