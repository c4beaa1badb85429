package subspace

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/aimbench/internal/optimization"
)

// DefaultMaxRetries bounds the rejected candidates of one outer iteration.
const DefaultMaxRetries = 500

// AIMConfig configures the adaptive inverse-metric method.
type AIMConfig struct {
	optimization.Stopping
	Metric Metric
	// InitialLR is the step of the gradient seed step.
	InitialLR float64
	// Beta is the initial step radius.
	Beta float64
	// Eta is the ratio above which a candidate is rejected.
	Eta float64
	// Mu weighs the deflection along the metric direction. The QN metric
	// replaces it every iteration.
	Mu float64
	// Epsilon is the finite-difference step of the Hg metric.
	Epsilon float64
	// MetricTol is the norm below which the metric direction is dropped.
	MetricTol  float64
	MaxRetries int
}

// DefaultAIMConfig returns the Hg metric with initial_lr=1e-4, beta=1,
// eta=0.9, mu=0.75, eps=1e-3, mtol=1e-8 and max_retries=500.
func DefaultAIMConfig() AIMConfig {
	return AIMConfig{
		Stopping:   optimization.DefaultStopping(),
		Metric:     MetricHessian,
		InitialLR:  1e-4,
		Beta:       1.0,
		Eta:        0.9,
		Mu:         0.75,
		Epsilon:    1e-3,
		MetricTol:  1e-8,
		MaxRetries: DefaultMaxRetries,
	}
}

// AIMConfigFromParams reads "mtype", "initial_lr", "beta", "eta", "mu",
// "eps", "mtol", "max_retries", "max_iter" and "gtol".
func AIMConfigFromParams(p optimization.Params) (AIMConfig, error) {
	c := DefaultAIMConfig()
	c.Stopping = c.Stopping.WithParams(p)

	metric, err := ParseMetric(p.String("mtype", string(c.Metric)))
	if err != nil {
		return c, err
	}
	c.Metric = metric
	c.InitialLR = p.Float("initial_lr", c.InitialLR)
	c.Beta = p.Float("beta", c.Beta)
	c.Eta = p.Float("eta", c.Eta)
	c.Mu = p.Float("mu", c.Mu)
	c.Epsilon = p.Float("eps", c.Epsilon)
	c.MetricTol = p.Float("mtol", c.MetricTol)
	c.MaxRetries = p.Int("max_retries", c.MaxRetries)
	return c, nil
}

// AIM takes deflected gradient steps
//
//	x' = x - β·(g - μ⟨m,g⟩m)
//
// where m is a unit curvature direction chosen by the metric. The radius β
// is tuned by the curvature-agreement ratio
//
//	r = β⟨dx,dg⟩ / (⟨dx,dx⟩ + μ/(1-μ)·⟨m,dx⟩²)
//
// A candidate with r > η is rejected and β shrinks by min(1, 1/r)/1.5.
// An accepted candidate with r < 0.5 grows β by 2/(max(r,0)+1e-3) for the
// next iteration.
type AIM struct {
	cfg AIMConfig

	// trial observes every candidate's radius and ratio.
	trial func(beta, ratio float64)
}

// NewAIM creates an AIM optimizer.
func NewAIM(cfg AIMConfig) (*AIM, error) {
	if _, err := ParseMetric(string(cfg.Metric)); err != nil {
		return nil, err
	}
	return &AIM{cfg: cfg}, nil
}

// Name returns "aim".
func (o *AIM) Name() string { return "aim" }

// Config returns the optimizer configuration.
func (o *AIM) Config() AIMConfig { return o.cfg }

// Optimize runs AIM. The trajectory holds x0, the seed iterate and every
// committed iterate; StepSizes holds the radius each committed step used.
//
// If MaxRetries candidates in a row are rejected the run ends with
// ErrTrustRegionExhausted at the last committed iterate.
func (o *AIM) Optimize(ctx context.Context, obj optimization.Objective, x0 []float64) (*optimization.Result, error) {
	start := time.Now()
	c := o.cfg
	n := len(x0)

	x := optimization.CopyPoint(x0)
	tr := optimization.NewTrace(c.MaxIter)
	tr.RecordPoint(x)

	g := obj.Gradient(x)
	if err := optimization.CheckGradient(o.Name(), x, g); err != nil {
		return optimization.NewResult(x, start, tr, false), err
	}
	prev := optimization.CopyPoint(x)
	floats.AddScaled(x, -c.InitialLR, g)
	tr.RecordPoint(x)

	beta, mu := c.Beta, c.Mu
	next := make([]float64, n)
	dx := make([]float64, n)
	dg := make([]float64, n)

	for k := 1; k <= c.MaxIter; k++ {
		if err := optimization.Cancelled(ctx); err != nil {
			return optimization.NewResult(x, start, tr, false), err
		}

		gPrev := g
		g = obj.Gradient(x)
		gn := floats.Norm(g, 2)
		tr.Record(obj.Loss(x), gn)
		if gn < c.Gtol {
			return optimization.NewResult(x, start, tr, true), nil
		}

		var m []float64
		m, mu = o.direction(obj, metricState{x: x, prev: prev, g: g, gPrev: gPrev, beta: beta}, mu)
		normalize(m, c.MetricTol)

		used, err := o.search(obj, x, g, m, mu, &beta, next, dx, dg)
		if err != nil {
			return optimization.NewResult(x, start, tr, false), err.AtIteration(k)
		}

		copy(prev, x)
		copy(x, next)
		tr.RecordPoint(x)
		tr.RecordStep(used)
	}
	return optimization.NewResult(x, start, tr, false), nil
}

// search runs the reject/retry loop for one outer iteration. On acceptance
// the candidate is left in next, the radius it used is returned, and *beta
// holds the radius for the next iteration.
func (o *AIM) search(obj optimization.Objective, x, g, m []float64, mu float64, beta *float64, next, dx, dg []float64) (float64, *optimization.Error) {
	c := o.cfg
	mg := floats.Dot(m, g)
	weight := mu / (1 - mu)

	for rejected := 0; ; {
		b := *beta
		for i := range next {
			next[i] = x[i] - b*(g[i]-mu*mg*m[i])
		}
		gNext := obj.Gradient(next)
		floats.SubTo(dx, x, next)
		floats.SubTo(dg, g, gNext)

		mdx := floats.Dot(m, dx)
		r := floats.Dot(dx, dg) * b / (floats.Dot(dx, dx) + weight*mdx*mdx)
		if o.trial != nil {
			o.trial(b, r)
		}

		if r > c.Eta {
			*beta = b * math.Min(1, 1/r) / 1.5
			rejected++
			if rejected >= c.MaxRetries {
				return 0, optimization.WrapErrorf(optimization.ErrTrustRegionExhausted,
					"%d candidates rejected, radius %g", rejected, *beta).
					WithComponent(o.Name()).
					WithOperation("search")
			}
			continue
		}
		if r < 0.5 {
			*beta = 2 * b / (math.Max(r, 0) + 1e-3)
		}
		return b, nil
	}
}
