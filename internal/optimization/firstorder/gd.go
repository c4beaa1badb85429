package firstorder

import (
	"context"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/aimbench/internal/optimization"
)

// GDConfig configures fixed-step gradient descent.
type GDConfig struct {
	optimization.Stopping
	// LearningRate is the fixed step size (default 1e-4). It is not
	// validated; a step above the stability limit simply diverges.
	LearningRate float64
}

// DefaultGDConfig returns lr=1e-4 with the shared stopping rule.
func DefaultGDConfig() GDConfig {
	return GDConfig{Stopping: optimization.DefaultStopping(), LearningRate: 1e-4}
}

// GDConfigFromParams overlays the "lr", "max_iter" and "gtol" entries of p on the defaults.
func GDConfigFromParams(p optimization.Params) GDConfig {
	c := DefaultGDConfig()
	c.Stopping = c.Stopping.WithParams(p)
	c.LearningRate = p.Float("lr", c.LearningRate)
	return c
}

// GradientDescent applies x ← x - lr·∇f(x).
type GradientDescent struct {
	cfg GDConfig
}

// NewGradientDescent creates a gradient descent optimizer.
func NewGradientDescent(cfg GDConfig) *GradientDescent {
	return &GradientDescent{cfg: cfg}
}

// Name returns "gd".
func (o *GradientDescent) Name() string { return "gd" }

// Config returns the optimizer configuration.
func (o *GradientDescent) Config() GDConfig { return o.cfg }

// Optimize records the loss and gradient norm of each new iterate and stops
// once the new gradient norm is below gtol.
func (o *GradientDescent) Optimize(ctx context.Context, obj optimization.Objective, x0 []float64) (*optimization.Result, error) {
	lr := o.cfg.LearningRate
	return descend(ctx, o.Name(), o.cfg.Stopping, obj, x0, func(_ int, x, g []float64) {
		floats.AddScaled(x, -lr, g)
	})
}
