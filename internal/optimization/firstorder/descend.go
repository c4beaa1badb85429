// Package firstorder implements gradient-only minimizers: fixed-step gradient
// descent, heavy ball, accelerated gradient with backtracking, Adagrad and Adam.
package firstorder

import (
	"context"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/aimbench/internal/optimization"
)

// stepFunc updates x in place given the gradient at x. t is the 1-based
// iteration counter.
type stepFunc func(t int, x, g []float64)

// descend is the loop shared by gradient descent, Adagrad and Adam: step,
// re-evaluate the gradient at the new point, record it, then stop when its
// norm drops below gtol.
func descend(ctx context.Context, name string, stop optimization.Stopping, obj optimization.Objective, x0 []float64, step stepFunc) (*optimization.Result, error) {
	start := time.Now()

	x := optimization.CopyPoint(x0)
	tr := optimization.NewTrace(stop.MaxIter)
	g := obj.Gradient(x)
	if err := optimization.CheckGradient(name, x, g); err != nil {
		return optimization.NewResult(x, start, tr, false), err
	}

	for t := 1; t <= stop.MaxIter; t++ {
		if err := optimization.Cancelled(ctx); err != nil {
			return optimization.NewResult(x, start, tr, false), err
		}

		step(t, x, g)
		g = obj.Gradient(x)

		gn := floats.Norm(g, 2)
		tr.Record(obj.Loss(x), gn)
		if gn < stop.Gtol {
			return optimization.NewResult(x, start, tr, true), nil
		}
	}
	return optimization.NewResult(x, start, tr, false), nil
}
