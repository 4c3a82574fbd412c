// Package fail carries the error taxonomy shared by definition-time and
// request-time code. Every failure the module surfaces is one of four
// kinds; each kind maps to a default wire status.
package fail

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	// Definition: structural misconfiguration caught at function-definition
	// or registry-build time. Meant to surface at startup, never mid-request.
	Definition Kind = "DEFINITION"
	// BadRequest: malformed or oversized inbound envelope / trigger data.
	BadRequest Kind = "BAD_REQUEST"
	// NotFound: no function matches the requested path.
	NotFound Kind = "NOT_FOUND"
	// Internal: handler panics/errors and header-safety violations.
	Internal Kind = "INTERNAL"
)

func (k Kind) status() int {
	switch k {
	case BadRequest:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is the one concrete error type the module produces on purpose.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// Status returns the wire status for e, floored at 400 so an error is
// never reported in the success range.
func (e *Error) Status() int {
	s := e.Kind.status()
	if s < http.StatusBadRequest {
		return http.StatusInternalServerError
	}
	return s
}

// With attaches a detail key/value and returns e for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

func newf(k Kind, format string, args ...any) *Error {
	e := &Error{Kind: k, Message: fmt.Sprintf(format, args...)}
	for _, a := range args {
		if err, ok := a.(error); ok {
			e.wrapped = err
		}
	}
	return e
}

func Definitionf(format string, args ...any) *Error { return newf(Definition, format, args...) }
func BadRequestf(format string, args ...any) *Error { return newf(BadRequest, format, args...) }
func NotFoundf(format string, args ...any) *Error   { return newf(NotFound, format, args...) }
func Internalf(format string, args ...any) *Error   { return newf(Internal, format, args...) }

// Convert coerces any error into a *fail.Error. Unrecognized errors
// become Internal, so nothing leaks past the router boundary untyped.
func Convert(err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return &Error{Kind: Internal, Message: err.Error(), wrapped: err}
}

// IsKind reports whether err is a *fail.Error of kind k.
func IsKind(err error, k Kind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == k
}

// Body is the JSON error payload written to callers.
type Body struct {
	ErrorKind string         `json:"error"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}

// ToBody renders err as the wire error payload.
func ToBody(err error) Body {
	fe := Convert(err)
	return Body{ErrorKind: string(fe.Kind), Message: fe.Message, Details: fe.Details}
}
