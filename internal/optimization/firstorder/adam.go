package firstorder

import (
	"context"
	"math"

	"github.com/copyleftdev/aimbench/internal/optimization"
)

// AdamConfig configures Adam.
type AdamConfig struct {
	optimization.Stopping
	LearningRate float64
	Beta1        float64
	Beta2        float64
	// Epsilon is added to the bias-corrected second moment under the root.
	Epsilon float64
}

// DefaultAdamConfig returns lr=1e-4, β1=0.9, β2=0.999, eps=1e-8.
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		Stopping:     optimization.DefaultStopping(),
		LearningRate: 1e-4,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
	}
}

// AdamConfigFromParams reads "lr", "beta1", "beta2", "eps", "max_iter" and "gtol".
func AdamConfigFromParams(p optimization.Params) AdamConfig {
	c := DefaultAdamConfig()
	c.Stopping = c.Stopping.WithParams(p)
	c.LearningRate = p.Float("lr", c.LearningRate)
	c.Beta1 = p.Float("beta1", c.Beta1)
	c.Beta2 = p.Float("beta2", c.Beta2)
	c.Epsilon = p.Float("eps", c.Epsilon)
	return c
}

// Adam implements adaptive moment estimation with bias correction.
//
//	m = β1·m + (1-β1)·g
//	v = β2·v + (1-β2)·g²
//	m̂ = m/(1-β1^t),  v̂ = v/(1-β2^t)
//	x = x - lr·m̂/√(v̂+eps)
type Adam struct {
	cfg AdamConfig
}

// NewAdam creates an Adam optimizer.
func NewAdam(cfg AdamConfig) *Adam {
	return &Adam{cfg: cfg}
}

// Name returns "adam".
func (o *Adam) Name() string { return "adam" }

// Config returns the optimizer configuration.
func (o *Adam) Config() AdamConfig { return o.cfg }

// Optimize runs Adam. The bias-correction counter t starts at 1 on the first step.
func (o *Adam) Optimize(ctx context.Context, obj optimization.Objective, x0 []float64) (*optimization.Result, error) {
	c := o.cfg
	m := make([]float64, len(x0))
	v := make([]float64, len(x0))
	return descend(ctx, o.Name(), c.Stopping, obj, x0, func(t int, x, g []float64) {
		bc1 := 1 - math.Pow(c.Beta1, float64(t))
		bc2 := 1 - math.Pow(c.Beta2, float64(t))
		for i := range x {
			m[i] = c.Beta1*m[i] + (1-c.Beta1)*g[i]
			v[i] = c.Beta2*v[i] + (1-c.Beta2)*g[i]*g[i]
			mHat := m[i] / bc1
			vHat := v[i] / bc2
			x[i] -= c.LearningRate * mHat / math.Sqrt(vHat+c.Epsilon)
		}
	})
}
