package firstorder

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/aimbench/internal/optimization"
)

// DefaultMaxBacktracks bounds the shrink steps of one line search.
const DefaultMaxBacktracks = 500

// NesterovConfig configures accelerated gradient with backtracking.
type NesterovConfig struct {
	optimization.Stopping
	// LearningRate is the initial trial step of every line search (default 1).
	LearningRate float64
	// Beta is the shrink factor applied to a rejected trial step (default 0.9).
	Beta float64
	// MaxBacktracks bounds the number of shrinks per line search.
	MaxBacktracks int
}

// DefaultNesterovConfig returns lr=1, beta=0.9, max_backtracks=500.
func DefaultNesterovConfig() NesterovConfig {
	return NesterovConfig{
		Stopping:      optimization.DefaultStopping(),
		LearningRate:  1.0,
		Beta:          0.9,
		MaxBacktracks: DefaultMaxBacktracks,
	}
}

// NesterovConfigFromParams reads "lr", "beta", "max_backtracks", "max_iter" and "gtol".
func NesterovConfigFromParams(p optimization.Params) NesterovConfig {
	c := DefaultNesterovConfig()
	c.Stopping = c.Stopping.WithParams(p)
	c.LearningRate = p.Float("lr", c.LearningRate)
	c.Beta = p.Float("beta", c.Beta)
	c.MaxBacktracks = p.Int("max_backtracks", c.MaxBacktracks)
	return c
}

// Nesterov is accelerated gradient descent with a backtracking line search
// on the extrapolated point.
//
// State per iteration is (x_k, v_k, θ_k, t_k):
//
//	y   = (1-θ_k)·x_k + θ_k·v_k
//	t   = largest lr·beta^j with f(y - t∇f(y)) ≤ f(y) - (t/2)‖∇f(y)‖²
//	θ'  solves θ'² = (1-θ')·θ_k²·(t/t_k)
//	x'  = y - t∇f(y)
//	v'  = x_k + (x' - x_k)/θ'
type Nesterov struct {
	cfg NesterovConfig
}

// NewNesterov creates an accelerated gradient optimizer.
func NewNesterov(cfg NesterovConfig) *Nesterov {
	return &Nesterov{cfg: cfg}
}

// Name returns "nag".
func (o *Nesterov) Name() string { return "nag" }

// Config returns the optimizer configuration.
func (o *Nesterov) Config() NesterovConfig { return o.cfg }

// Optimize records the loss and gradient norm at x_k before stepping and
// stops once that norm is below gtol. A line search that still fails after
// MaxBacktracks shrinks ends the run with ErrLineSearchExhausted.
func (o *Nesterov) Optimize(ctx context.Context, obj optimization.Objective, x0 []float64) (*optimization.Result, error) {
	start := time.Now()
	c := o.cfg
	n := len(x0)

	x := optimization.CopyPoint(x0)
	v := optimization.CopyPoint(x0)
	y := make([]float64, n)
	next := make([]float64, n)
	theta := 1.0
	tk := c.LearningRate
	tr := optimization.NewTrace(c.MaxIter)

	for k := 1; k <= c.MaxIter; k++ {
		if err := optimization.Cancelled(ctx); err != nil {
			return optimization.NewResult(x, start, tr, false), err
		}

		for i := range y {
			y[i] = (1-theta)*x[i] + theta*v[i]
		}
		gy := obj.Gradient(y)
		gx := obj.Gradient(x)
		if err := optimization.CheckGradient(o.Name(), x, gx); err != nil {
			return optimization.NewResult(x, start, tr, false), err
		}

		gn := floats.Norm(gx, 2)
		tr.Record(obj.Loss(x), gn)
		if gn < c.Gtol {
			return optimization.NewResult(x, start, tr, true), nil
		}

		t, ok := o.backtrack(obj, y, gy, next)
		if !ok {
			err := optimization.WrapErrorf(optimization.ErrLineSearchExhausted,
				"no sufficient decrease after %d shrinks", c.MaxBacktracks).
				WithComponent(o.Name()).
				WithOperation("backtrack").
				AtIteration(k)
			return optimization.NewResult(x, start, tr, false), err
		}

		// positive root of θ² + rθ - r = 0, i.e. θ² = (1-θ)·θ_k²·(t/t_k)
		r := (t / tk) * theta * theta
		thetaNext := (-r + math.Sqrt(r*r+4*r)) / 2

		for i := range v {
			v[i] = x[i] + (next[i]-x[i])/thetaNext
		}
		copy(x, next)
		theta = thetaNext
		tk = t
	}
	return optimization.NewResult(x, start, tr, false), nil
}

// backtrack shrinks the trial step from lr until the sufficient-decrease
// condition holds, leaving the accepted point in next.
func (o *Nesterov) backtrack(obj optimization.Objective, y, gy, next []float64) (float64, bool) {
	c := o.cfg
	fy := obj.Loss(y)
	gy2 := floats.Dot(gy, gy)

	t := c.LearningRate
	for shrinks := 0; ; shrinks++ {
		floats.AddScaledTo(next, y, -t, gy)
		if obj.Loss(next) <= fy-(t/2)*gy2 {
			return t, true
		}
		if shrinks >= c.MaxBacktracks {
			return t, false
		}
		t *= c.Beta
	}
}
