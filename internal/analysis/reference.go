// Package analysis compares optimizer runs against a high-accuracy reference
// optimum: it tabulates final gaps and draws convergence curves.
package analysis

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/optimize"

	"github.com/copyleftdev/aimbench/internal/optimization"
)

// ErrReferenceFailed is returned when the reference solver does not converge.
// It aborts the comparison for that objective; there is no retry.
var ErrReferenceFailed = errors.New("reference solver failed")

// Reference is a high-accuracy minimizer and its loss.
type Reference struct {
	X      []float64
	Loss   float64
	Status optimize.Status
	// Iterations is the number of major L-BFGS iterations.
	Iterations int
}

// Solver computes reference optima with L-BFGS.
type Solver struct {
	// GradientThreshold stops the solve once ‖∇f‖_∞ falls below it.
	GradientThreshold float64
	// MaxIterations caps the major iterations.
	MaxIterations int
}

// DefaultSolver returns a gradient threshold of 1e-8 and 10000 iterations.
func DefaultSolver() Solver {
	return Solver{GradientThreshold: 1e-8, MaxIterations: 10000}
}

// FindOptimal runs the default solver.
func FindOptimal(ctx context.Context, obj optimization.Objective, x0 []float64) (*Reference, error) {
	return DefaultSolver().Solve(ctx, obj, x0)
}

// Solve minimizes obj from x0. Any termination other than convergence,
// including cancellation, is reported as ErrReferenceFailed.
func (s Solver) Solve(ctx context.Context, obj optimization.Objective, x0 []float64) (*Reference, error) {
	problem := optimize.Problem{
		Func: obj.Loss,
		Grad: func(grad, x []float64) {
			copy(grad, obj.Gradient(x))
		},
	}
	settings := &optimize.Settings{
		GradientThreshold: s.GradientThreshold,
		MajorIterations:   s.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Relative:   1e-16,
			Iterations: 100,
		},
		Recorder: ctxRecorder{ctx},
	}

	res, err := optimize.Minimize(problem, optimization.CopyPoint(x0), settings, &optimize.LBFGS{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReferenceFailed, err)
	}
	switch res.Status {
	case optimize.GradientThreshold, optimize.FunctionConvergence, optimize.Success, optimize.MethodConverge:
	default:
		return nil, fmt.Errorf("%w: terminated with %v", ErrReferenceFailed, res.Status)
	}

	return &Reference{
		X:          res.X,
		Loss:       res.F,
		Status:     res.Status,
		Iterations: res.Stats.MajorIterations,
	}, nil
}

// ctxRecorder stops the solver once ctx is done.
type ctxRecorder struct {
	ctx context.Context
}

func (r ctxRecorder) Init() error {
	return optimization.Cancelled(r.ctx)
}

func (r ctxRecorder) Record(*optimize.Location, optimize.Operation, *optimize.Stats) error {
	return optimization.Cancelled(r.ctx)
}
