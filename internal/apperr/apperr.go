// Package apperr classifies failures crossing the service boundary so that
// transports can map them to status codes without inspecting messages.
package apperr

import (
	"errors"
	"net/http"
)

// Kind is the failure class of an Error.
type Kind int

const (
	KindInfra Kind = iota
	KindNotFound
	KindValidation
	KindPolicy
	KindForbidden
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindPolicy:
		return "policy"
	case KindForbidden:
		return "forbidden"
	case KindUnavailable:
		return "unavailable"
	default:
		return "infra"
	}
}

// Error is a classified failure. Msg is safe to show to clients; Err holds the
// underlying cause and is only logged.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(msg string) error    { return &Error{Kind: KindNotFound, Msg: msg} }
func Validation(msg string) error  { return &Error{Kind: KindValidation, Msg: msg} }
func Policy(msg string) error      { return &Error{Kind: KindPolicy, Msg: msg} }
func Forbidden(msg string) error   { return &Error{Kind: KindForbidden, Msg: msg} }
func Unavailable(msg string) error { return &Error{Kind: KindUnavailable, Msg: msg} }

// Infra wraps a storage or system failure.
func Infra(msg string, err error) error {
	return &Error{Kind: KindInfra, Msg: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain. Unclassified
// errors are infra.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInfra
}

// Message returns the client-facing message for err. Infra failures are
// reported with their Msg only; unclassified errors get a generic text.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "internal error"
}

// HTTPStatus maps err to a response status.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindPolicy:
		return http.StatusNotAcceptable
	case KindForbidden:
		return http.StatusForbidden
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
