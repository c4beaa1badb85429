package optimization

import (
	"errors"
	"fmt"
)

var (
	// ErrLineSearchExhausted is returned when backtracking cannot find a step
	// satisfying the sufficient-decrease condition within its shrink budget.
	ErrLineSearchExhausted = errors.New("line search exhausted")

	// ErrTrustRegionExhausted is returned when the step radius controller
	// rejects every candidate within its retry budget.
	ErrTrustRegionExhausted = errors.New("trust region exhausted")

	// ErrSingularSubspace is returned when the reduced 2x2 model is singular
	// or too ill-conditioned to invert.
	ErrSingularSubspace = errors.New("singular subspace model")

	// ErrDimensionMismatch is returned when the objective's gradient length
	// differs from the iterate length.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrUnknownMetric is returned for an unsupported AIM metric variant.
	ErrUnknownMetric = errors.New("unknown metric")

	// ErrUnknownAlgorithm is returned for an unsupported algorithm name.
	ErrUnknownAlgorithm = errors.New("unknown algorithm")
)

// Error represents an optimization error with context
// that can be wrapped with additional information.
type Error struct {
	// Message describes the error that occurred.
	Message string
	// Op is the operation that caused the error.
	Op string
	// Component is the algorithm where the error occurred.
	Component string
	// Iteration is the 1-based outer iteration, or 0 when not applicable.
	Iteration int
	// Err is the underlying error that triggered this one, if any.
	Err error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var prefix string
	if e.Component != "" && e.Op != "" {
		prefix = fmt.Sprintf("%s: %s", e.Component, e.Op)
	} else if e.Component != "" {
		prefix = e.Component
	} else if e.Op != "" {
		prefix = e.Op
	}
	if e.Iteration > 0 {
		if prefix != "" {
			prefix += " "
		}
		prefix += fmt.Sprintf("(iteration %d)", e.Iteration)
	}

	msg := e.Message
	if e.Err != nil {
		if msg != "" {
			msg = fmt.Sprintf("%s: %v", msg, e.Err)
		} else {
			msg = e.Err.Error()
		}
	}
	if prefix != "" {
		return fmt.Sprintf("%s: %s", prefix, msg)
	}
	return msg
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithOperation adds operation context to the error.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// WithComponent adds component context to the error.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// AtIteration records the iteration at which the error occurred.
func (e *Error) AtIteration(k int) *Error {
	e.Iteration = k
	return e
}

// WrapError wraps an existing error with additional context.
// If err is nil, WrapError returns nil.
func WrapError(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: message,
		Err:     err,
	}
}

// WrapErrorf wraps an existing error with additional formatted context.
// If err is nil, WrapErrorf returns nil.
func WrapErrorf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// IsOptimizationError checks if an error is of type Error.
// If the error chain holds an optimization error, it returns it and true.
func IsOptimizationError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CheckGradient verifies that g has the dimension of x.
func CheckGradient(component string, x, g []float64) error {
	if len(g) != len(x) {
		return WrapErrorf(ErrDimensionMismatch, "gradient has %d entries, point has %d", len(g), len(x)).
			WithComponent(component).
			WithOperation("Gradient")
	}
	return nil
}
