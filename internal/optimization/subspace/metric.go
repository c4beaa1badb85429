package subspace

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/aimbench/internal/optimization"
)

// Metric selects how AIM estimates its curvature direction.
type Metric string

const (
	// MetricVelocity uses the last step x_k - x_{k-1}.
	MetricVelocity Metric = "v"
	// MetricAcceleration uses the gradient change g_k - g_{k-1}.
	MetricAcceleration Metric = "a"
	// MetricQuasiNewton uses α·y - s with a secant scale α, and adapts mu.
	MetricQuasiNewton Metric = "QN"
	// MetricHessian uses a finite-difference Hessian-vector product along g.
	MetricHessian Metric = "Hg"
)

// Metrics lists the supported variants.
var Metrics = []Metric{MetricVelocity, MetricAcceleration, MetricQuasiNewton, MetricHessian}

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	for _, m := range Metrics {
		if string(m) == s {
			return m, nil
		}
	}
	return "", optimization.WrapErrorf(optimization.ErrUnknownMetric, "%q (want v, a, QN or Hg)", s).
		WithComponent("aim")
}

// metricState is the per-run input to a direction estimate.
type metricState struct {
	x, prev []float64
	g, gPrev []float64
	beta     float64
}

// direction returns the raw metric direction and, for the quasi-Newton
// variant, the updated mixing coefficient. For other variants mu is
// returned unchanged.
func (o *AIM) direction(obj optimization.Objective, s metricState, mu float64) ([]float64, float64) {
	c := o.cfg
	n := len(s.x)
	m := make([]float64, n)

	switch c.Metric {
	case MetricVelocity:
		floats.SubTo(m, s.x, s.prev)
	case MetricAcceleration:
		floats.SubTo(m, s.g, s.gPrev)
	case MetricQuasiNewton:
		step := make([]float64, n)
		y := make([]float64, n)
		floats.SubTo(step, s.x, s.prev)
		floats.SubTo(y, s.g, s.gPrev)

		alpha := math.Max(floats.Dot(step, step)/math.Abs(floats.Dot(step, y)), s.beta/c.Eta) * 1.1
		floats.Scale(alpha, y)
		floats.SubTo(m, y, step)
		mu = floats.Dot(m, m) / floats.Dot(m, y)
	case MetricHessian:
		m = hessVec(obj, s.x, s.g, c.Epsilon)
	}
	return m, mu
}

// normalize scales m to unit length, or zeroes it when its norm is at most tol.
func normalize(m []float64, tol float64) {
	nm := floats.Norm(m, 2)
	if nm > tol {
		floats.Scale(1/nm, m)
		return
	}
	for i := range m {
		m[i] = 0
	}
}
