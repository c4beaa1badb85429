// Package errors provides application-level errors for the benchmark service.
// Every error carries a Kind that maps onto an HTTP status and a stack trace
// captured by github.com/pkg/errors at construction.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	// KindInternal is an unexpected failure.
	KindInternal Kind = iota
	// KindInvalid is a malformed or semantically invalid request.
	KindInvalid
	// KindNotFound is a reference to something that does not exist.
	KindNotFound
	// KindConflict is a request that the current state does not allow.
	KindConflict
	// KindUnavailable is a temporary refusal, for example when the job queue is full.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// HTTPStatus returns the status code for the kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalid:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error represents an error with context and stack trace.
type Error struct {
	// The underlying error, carrying the stack trace
	Err error
	// A human-readable message describing the error
	Message string
	// The operation that was being performed when the error occurred
	Operation string
	// The component or package where the error occurred
	Component string
	// Kind classifies the error
	Kind Kind
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	if e.Component != "" {
		b.WriteString(e.Component)
	}
	if e.Operation != "" {
		if b.Len() > 0 {
			b.WriteString(".")
		}
		b.WriteString(e.Operation)
	}
	if e.Message != "" {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		if cause := e.Err.Error(); cause != e.Message {
			if b.Len() > 0 {
				b.WriteString(": ")
			}
			b.WriteString(cause)
		}
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Format prints the stack trace with %+v.
func (e *Error) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "%s\n%+v", e.Error(), e.Err)
		return
	}
	fmt.Fprint(s, e.Error())
}

// WithOperation adds an operation to the error.
func (e *Error) WithOperation(op string) *Error {
	e.Operation = op
	return e
}

// WithComponent adds a component to the error.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// WithKind sets the error kind.
func (e *Error) WithKind(k Kind) *Error {
	e.Kind = k
	return e
}

// New creates a new error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Err: errors.New(msg), Message: msg, Kind: kind}
}

// Errorf creates a new error of the given kind with a formatted message.
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	msg := fmt.Sprintf(format, args...)
	return &Error{Err: errors.New(msg), Message: msg, Kind: kind}
}

// Wrap wraps err with a message. An existing *Error keeps its kind;
// anything else becomes KindInternal unless kind is given.
func Wrap(err error, msg string, kind ...Kind) *Error {
	if err == nil {
		return nil
	}

	e := &Error{Err: errors.WithStack(err), Message: msg, Kind: KindInternal}
	var inner *Error
	if stderrors.As(err, &inner) {
		e.Err = err
		e.Kind = inner.Kind
	}
	if len(kind) > 0 {
		e.Kind = kind[0]
	}
	return e
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, kind Kind, format string, args ...interface{}) *Error {
	return Wrap(err, fmt.Sprintf(format, args...), kind)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// StatusCode maps err onto an HTTP status code.
func StatusCode(err error) int {
	return KindOf(err).HTTPStatus()
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err, if any.
func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}
