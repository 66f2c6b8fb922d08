// Package apperror defines the operational error type returned by services and
// handlers.  An *Error carries an HTTP-facing kind and a message that is safe
// to show to clients.  Anything that is not an *Error is treated as an
// unexpected failure by the HTTP error handler.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// Kind classifies an operational error.
type Kind int

const (
	// Internal marks an error that is not operational.
	Internal Kind = iota
	BadRequest
	Unauthorized
	Forbidden
	NotFound
	Conflict
	Validation
	TooManyRequests
)

// Error is an anticipated failure with a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error // underlying cause, never rendered in production
	stack   []uintptr
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode maps the kind onto an HTTP status.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case BadRequest, Validation:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case TooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Operational reports whether the message may be shown to clients.
func (e *Error) Operational() bool { return e.Kind != Internal }

// Status is "fail" for client errors and "error" for server errors.
func (e *Error) Status() string {
	if e.StatusCode() < 500 {
		return "fail"
	}
	return "error"
}

// Stack renders the call stack captured when the error was created.
func (e *Error) Stack() string {
	if len(e.stack) == 0 {
		return ""
	}
	frames := runtime.CallersFrames(e.stack)
	var b strings.Builder
	for {
		f, more := frames.Next()
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", f.Function, f.File, f.Line)
		if !more {
			break
		}
	}
	return b.String()
}

func newError(kind Kind, msg string, err error) *Error {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	return &Error{Kind: kind, Message: msg, Err: err, stack: pcs[:n]}
}

func NewBadRequest(msg string) *Error   { return newError(BadRequest, msg, nil) }
func NewUnauthorized(msg string) *Error { return newError(Unauthorized, msg, nil) }
func NewForbidden(msg string) *Error    { return newError(Forbidden, msg, nil) }
func NewNotFound(msg string) *Error     { return newError(NotFound, msg, nil) }
func NewConflict(msg string) *Error     { return newError(Conflict, msg, nil) }

// NewValidation wraps the violations error so callers can still inspect it.
func NewValidation(msg string, err error) *Error { return newError(Validation, msg, err) }

// NewInternal wraps an unexpected failure.
func NewInternal(msg string, err error) *Error { return newError(Internal, msg, err) }

// Wrap attaches a kind and client message to an existing error.
func Wrap(kind Kind, msg string, err error) *Error { return newError(kind, msg, err) }

// As unwraps err into an *Error.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// Is reports whether err is an operational error of the given kind.
func Is(err error, kind Kind) bool {
	ae, ok := As(err)
	return ok && ae.Kind == kind
}
