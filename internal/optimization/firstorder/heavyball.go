package firstorder

import (
	"context"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/aimbench/internal/optimization"
)

// HeavyBallConfig configures Polyak's heavy-ball method.
type HeavyBallConfig struct {
	optimization.Stopping
	LearningRate float64
	Momentum     float64
}

// DefaultHeavyBallConfig returns lr=1e-4, momentum=0.9.
func DefaultHeavyBallConfig() HeavyBallConfig {
	return HeavyBallConfig{Stopping: optimization.DefaultStopping(), LearningRate: 1e-4, Momentum: 0.9}
}

// HeavyBallConfigFromParams reads "lr", "momentum", "max_iter" and "gtol".
func HeavyBallConfigFromParams(p optimization.Params) HeavyBallConfig {
	c := DefaultHeavyBallConfig()
	c.Stopping = c.Stopping.WithParams(p)
	c.LearningRate = p.Float("lr", c.LearningRate)
	c.Momentum = p.Float("momentum", c.Momentum)
	return c
}

// HeavyBall iterates x_{k+1} = x_k - lr·∇f(x_k) + momentum·(x_k - x_{k-1})
// after a plain gradient seed step.
//
// Unlike gradient descent, the stopping test uses the gradient at the point
// before the update. On convergence the last recorded gradient norm belongs
// to the returned point and no update is applied. When MaxIter is reached the
// final update is still applied, so the last recorded norm is that of the
// point one step before the returned one.
type HeavyBall struct {
	cfg HeavyBallConfig
}

// NewHeavyBall creates a heavy-ball optimizer.
func NewHeavyBall(cfg HeavyBallConfig) *HeavyBall {
	return &HeavyBall{cfg: cfg}
}

// Name returns "hb".
func (o *HeavyBall) Name() string { return "hb" }

// Config returns the optimizer configuration.
func (o *HeavyBall) Config() HeavyBallConfig { return o.cfg }

// Optimize runs heavy ball. The trace trajectory holds x0 followed by every
// iterate produced by an applied update.
func (o *HeavyBall) Optimize(ctx context.Context, obj optimization.Objective, x0 []float64) (*optimization.Result, error) {
	start := time.Now()
	c := o.cfg

	x := optimization.CopyPoint(x0)
	tr := optimization.NewTrace(c.MaxIter)
	tr.RecordPoint(x)

	g := obj.Gradient(x)
	if err := optimization.CheckGradient(o.Name(), x, g); err != nil {
		return optimization.NewResult(x, start, tr, false), err
	}
	prev := optimization.CopyPoint(x)
	floats.AddScaled(x, -c.LearningRate, g)
	tr.RecordPoint(x)

	for k := 1; k <= c.MaxIter; k++ {
		if err := optimization.Cancelled(ctx); err != nil {
			return optimization.NewResult(x, start, tr, false), err
		}

		g = obj.Gradient(x)
		gn := floats.Norm(g, 2)
		tr.Record(obj.Loss(x), gn)
		if gn < c.Gtol {
			return optimization.NewResult(x, start, tr, true), nil
		}

		for i := range x {
			next := x[i] - c.LearningRate*g[i] + c.Momentum*(x[i]-prev[i])
			prev[i] = x[i]
			x[i] = next
		}
		tr.RecordPoint(x)
	}
	return optimization.NewResult(x, start, tr, false), nil
}
