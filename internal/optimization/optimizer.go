package optimization

import (
	"context"
	"time"
)

// Objective supplies the loss and gradient of the function being minimized.
// Implementations must be deterministic and free of side effects so that
// several optimizers can evaluate the same objective concurrently.
type Objective interface {
	// Loss evaluates the objective at x. It must not modify x.
	Loss(x []float64) float64

	// Gradient returns a newly allocated gradient at x with len(x) entries.
	// It must not modify x.
	Gradient(x []float64) []float64
}

// Optimizer defines the interface for the iterative minimization algorithms
type Optimizer interface {
	// Name returns the short algorithm identifier (gd, hb, nag, ...).
	Name() string

	// Optimize runs a fresh minimization from x0. x0 is never modified.
	//
	// When an inner loop exhausts its retry budget, or the run is cancelled,
	// Optimize returns the partial result reached so far together with the error.
	Optimize(ctx context.Context, obj Objective, x0 []float64) (*Result, error)
}

// Result contains the outcome of a single Optimize call
type Result struct {
	// X is the final iterate. It is owned by the caller.
	X []float64

	// Elapsed is the wall time spent inside Optimize.
	Elapsed time.Duration

	// Trace is the per-iteration history of the run.
	Trace *Trace

	// Converged reports whether the run stopped on the gradient tolerance
	// rather than on the iteration cap or an error.
	Converged bool
}

// Iterations returns the number of recorded iterations.
func (r *Result) Iterations() int {
	if r == nil || r.Trace == nil {
		return 0
	}
	return r.Trace.Len()
}

// NewResult stamps the elapsed time since start and packages a run outcome.
func NewResult(x []float64, start time.Time, trace *Trace, converged bool) *Result {
	return &Result{
		X:         x,
		Elapsed:   time.Since(start),
		Trace:     trace,
		Converged: converged,
	}
}

// Cancelled reports the context error, if any, without blocking.
func Cancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// CopyPoint returns an independent copy of x.
func CopyPoint(x []float64) []float64 {
	return append([]float64(nil), x...)
}
