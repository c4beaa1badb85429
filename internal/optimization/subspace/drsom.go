// Package subspace implements the curvature-aware methods that work without
// an explicit Hessian: DRSOM, which solves a 2x2 quadratic model on the span
// of the gradient and the last step, and AIM, an adaptive inverse-metric
// method with a self-tuning step radius.
package subspace

import (
	"context"
	"errors"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/aimbench/internal/optimization"
)

// DRSOMConfig configures DRSOM.
type DRSOMConfig struct {
	optimization.Stopping
	// InitialLR is the step of the gradient seed step (default 1e-4).
	InitialLR float64
	// Epsilon is the finite-difference step for the Hessian-vector product (default 1).
	Epsilon float64
}

// DefaultDRSOMConfig returns initial_lr=1e-4, eps=1.
func DefaultDRSOMConfig() DRSOMConfig {
	return DRSOMConfig{Stopping: optimization.DefaultStopping(), InitialLR: 1e-4, Epsilon: 1.0}
}

// DRSOMConfigFromParams reads "initial_lr", "eps", "max_iter" and "gtol".
func DRSOMConfigFromParams(p optimization.Params) DRSOMConfig {
	c := DefaultDRSOMConfig()
	c.Stopping = c.Stopping.WithParams(p)
	c.InitialLR = p.Float("initial_lr", c.InitialLR)
	c.Epsilon = p.Float("eps", c.Epsilon)
	return c
}

// DRSOM minimizes the quadratic model restricted to span{g, d}, d = x_k - x_{k-1}:
//
//	Q = | ⟨g,Hg⟩  -⟨d,Hg⟩ |    c = |  ⟨g,g⟩ |
//	    | -⟨d,Hg⟩  ⟨d,Hd⟩ |        | -⟨g,d⟩ |
//
//	α = Q⁻¹c,  x ← x - α₀g + α₁d
//
// with Hg = (g - ∇f(x-εg))/ε and Hd = g - g_prev.
type DRSOM struct {
	cfg DRSOMConfig
}

// NewDRSOM creates a DRSOM optimizer.
func NewDRSOM(cfg DRSOMConfig) *DRSOM {
	return &DRSOM{cfg: cfg}
}

// Name returns "drsom".
func (o *DRSOM) Name() string { return "drsom" }

// Config returns the optimizer configuration.
func (o *DRSOM) Config() DRSOMConfig { return o.cfg }

// Optimize runs DRSOM. The trajectory holds x0, the seed iterate and every
// committed iterate.
//
// The subspace is treated as singular when g and d are numerically collinear,
// that is ⟨g,d⟩² ≥ (1-collinearTol)·‖g‖²‖d‖², when Q has no inverse, or when
// the solved coefficients are not finite. The step is then rejected and the
// run ends with ErrSingularSubspace; the returned point is the last committed
// iterate. There is no gradient-step fallback.
func (o *DRSOM) Optimize(ctx context.Context, obj optimization.Objective, x0 []float64) (*optimization.Result, error) {
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
	floats.AddScaled(x, -c.InitialLR, g)
	tr.RecordPoint(x)

	d := make([]float64, len(x))
	hd := make([]float64, len(x))
	q := mat.NewDense(2, 2, nil)
	var qi mat.Dense
	var alpha mat.VecDense

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

		floats.SubTo(d, x, prev)
		if collinear(g, d) {
			err := optimization.WrapError(optimization.ErrSingularSubspace, "gradient and last step are collinear").
				WithOperation("solve").
				WithComponent(o.Name()).
				AtIteration(k)
			return optimization.NewResult(x, start, tr, false), err
		}

		hg := hessVec(obj, x, g, c.Epsilon)
		floats.SubTo(hd, g, gPrev)

		dHg := floats.Dot(d, hg)
		q.Set(0, 0, floats.Dot(g, hg))
		q.Set(0, 1, -dHg)
		q.Set(1, 0, -dHg)
		q.Set(1, 1, floats.Dot(d, hd))
		rhs := mat.NewVecDense(2, []float64{floats.Dot(g, g), -floats.Dot(g, d)})

		if err := solve(&alpha, &qi, q, rhs); err != nil {
			return optimization.NewResult(x, start, tr, false),
				err.WithComponent(o.Name()).AtIteration(k)
		}

		copy(prev, x)
		floats.AddScaled(x, -alpha.AtVec(0), g)
		floats.AddScaled(x, alpha.AtVec(1), d)
		tr.RecordPoint(x)
	}
	return optimization.NewResult(x, start, tr, false), nil
}

// collinearTol is the relative slack of the collinearity test. Rounding keeps
// exactly parallel vectors within a few ulps of equality.
const collinearTol = 1e-10

// collinear reports whether g and d span less than a plane. A zero d counts
// as collinear.
func collinear(g, d []float64) bool {
	gd := floats.Dot(g, d)
	return gd*gd >= (1-collinearTol)*floats.Dot(g, g)*floats.Dot(d, d)
}

// solve stores Q⁻¹c in alpha, using qi as scratch.
func solve(alpha *mat.VecDense, qi *mat.Dense, q *mat.Dense, rhs *mat.VecDense) *optimization.Error {
	if err := qi.Inverse(q); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return optimization.WrapError(optimization.ErrSingularSubspace, "reduced model is not invertible").
				WithOperation("solve")
		}
	}
	alpha.MulVec(qi, rhs)
	a0, a1 := alpha.AtVec(0), alpha.AtVec(1)
	if math.IsNaN(a0) || math.IsInf(a0, 0) || math.IsNaN(a1) || math.IsInf(a1, 0) {
		return optimization.WrapErrorf(optimization.ErrSingularSubspace, "coefficients (%g, %g) are not finite", a0, a1).
			WithOperation("solve")
	}
	return nil
}

// hessVec approximates ∇²f(x)·g by (g - ∇f(x-εg))/ε.
func hessVec(obj optimization.Objective, x, g []float64, eps float64) []float64 {
	xs := make([]float64, len(x))
	floats.AddScaledTo(xs, x, -eps, g)
	hg := obj.Gradient(xs)
	for i := range hg {
		hg[i] = (g[i] - hg[i]) / eps
	}
	return hg
}
