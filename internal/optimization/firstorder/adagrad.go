package firstorder

import (
	"context"
	"math"

	"github.com/copyleftdev/aimbench/internal/optimization"
)

// AdagradConfig configures Adagrad.
type AdagradConfig struct {
	optimization.Stopping
	LearningRate float64
	// Epsilon is added under the square root of the accumulator.
	Epsilon float64
}

// DefaultAdagradConfig returns lr=1e-4, eps=1e-8.
func DefaultAdagradConfig() AdagradConfig {
	return AdagradConfig{Stopping: optimization.DefaultStopping(), LearningRate: 1e-4, Epsilon: 1e-8}
}

// AdagradConfigFromParams reads "lr", "eps", "max_iter" and "gtol".
func AdagradConfigFromParams(p optimization.Params) AdagradConfig {
	c := DefaultAdagradConfig()
	c.Stopping = c.Stopping.WithParams(p)
	c.LearningRate = p.Float("lr", c.LearningRate)
	c.Epsilon = p.Float("eps", c.Epsilon)
	return c
}

// Adagrad scales each coordinate by the inverse root of its accumulated
// squared gradients. The accumulator never shrinks, so steps decay over the
// run; stalling on long runs is expected.
type Adagrad struct {
	cfg AdagradConfig
}

// NewAdagrad creates an Adagrad optimizer.
func NewAdagrad(cfg AdagradConfig) *Adagrad {
	return &Adagrad{cfg: cfg}
}

// Name returns "adagrad".
func (o *Adagrad) Name() string { return "adagrad" }

// Config returns the optimizer configuration.
func (o *Adagrad) Config() AdagradConfig { return o.cfg }

// Optimize runs cache += g², x ← x - lr·g/√(cache+eps) elementwise.
func (o *Adagrad) Optimize(ctx context.Context, obj optimization.Objective, x0 []float64) (*optimization.Result, error) {
	lr, eps := o.cfg.LearningRate, o.cfg.Epsilon
	cache := make([]float64, len(x0))
	return descend(ctx, o.Name(), o.cfg.Stopping, obj, x0, func(_ int, x, g []float64) {
		for i := range x {
			cache[i] += g[i] * g[i]
			x[i] -= lr * g[i] / math.Sqrt(cache[i]+eps)
		}
	})
}
