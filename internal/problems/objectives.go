package problems

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Quadratic is f(x) = ½xᵀAx - bᵀx for a symmetric A.
type Quadratic struct {
	A Matrix
	B []float64
}

// NewQuadratic creates a quadratic objective. b may be nil for a zero linear term.
func NewQuadratic(a Matrix, b []float64) (*Quadratic, error) {
	r, c := a.Dims()
	if r != c {
		return nil, fmt.Errorf("quadratic: matrix is %dx%d, want square", r, c)
	}
	if b == nil {
		b = make([]float64, r)
	}
	if len(b) != r {
		return nil, fmt.Errorf("quadratic: b has %d entries, want %d", len(b), r)
	}
	return &Quadratic{A: a, B: b}, nil
}

func (q *Quadratic) Loss(x []float64) float64 {
	ax := make([]float64, len(x))
	q.A.MulVecTo(ax, x)
	return 0.5*floats.Dot(x, ax) - floats.Dot(q.B, x)
}

func (q *Quadratic) Gradient(x []float64) []float64 {
	g := make([]float64, len(x))
	q.A.MulVecTo(g, x)
	floats.Sub(g, q.B)
	return g
}

// LogisticRegressionL2 is the L2-regularized logistic loss
//
//	f(x) = mean((1-b)∘z + log(1+exp(-z))) + ½λ‖x‖²,  z = Ax
//
// with labels b in {0, 1}.
type LogisticRegressionL2 struct {
	A      Matrix
	B      []float64
	Lambda float64
}

// NewLogisticRegressionL2 creates the objective; lambda defaults to 1 in the
// benchmark suites.
func NewLogisticRegressionL2(a Matrix, b []float64, lambda float64) (*LogisticRegressionL2, error) {
	r, _ := a.Dims()
	if len(b) != r {
		return nil, fmt.Errorf("logistic: %d labels for %d rows", len(b), r)
	}
	return &LogisticRegressionL2{A: a, B: b, Lambda: lambda}, nil
}

// Dim returns the number of features.
func (p *LogisticRegressionL2) Dim() int {
	_, c := p.A.Dims()
	return c
}

func (p *LogisticRegressionL2) Loss(x []float64) float64 {
	r, _ := p.A.Dims()
	z := make([]float64, r)
	p.A.MulVecTo(z, x)

	var sum float64
	for i, zi := range z {
		sum += (1-p.B[i])*zi + softplus(-zi)
	}
	return sum/float64(r) + 0.5*p.Lambda*floats.Dot(x, x)
}

func (p *LogisticRegressionL2) Gradient(x []float64) []float64 {
	r, c := p.A.Dims()
	z := make([]float64, r)
	p.A.MulVecTo(z, x)
	for i, zi := range z {
		z[i] = sigmoid(zi) - p.B[i]
	}

	g := make([]float64, c)
	p.A.MulTransVecTo(g, z)
	floats.Scale(1/float64(r), g)
	floats.AddScaled(g, p.Lambda, x)
	return g
}

// softplus computes log(1+exp(t)) without overflow.
func softplus(t float64) float64 {
	return math.Max(t, 0) + math.Log1p(math.Exp(-math.Abs(t)))
}

func sigmoid(t float64) float64 {
	if t >= 0 {
		return 1 / (1 + math.Exp(-t))
	}
	e := math.Exp(t)
	return e / (1 + e)
}

// SmoothedLpL2 is least squares with a smoothed L_p penalty
//
//	f(x) = ½‖Ax-b‖² + λ Σ s(x_i)^p
//	s(t) = |t|               if |t| > eps
//	       t²/(2eps) + eps/2 otherwise
//
// with λ = 0.2‖Aᵀb‖_∞.
type SmoothedLpL2 struct {
	A       Matrix
	B       []float64
	Lambda  float64
	Epsilon float64
	P       float64
}

// NewSmoothedLpL2 creates the objective and derives λ from the data.
func NewSmoothedLpL2(a Matrix, b []float64, epsilon, p float64) (*SmoothedLpL2, error) {
	r, c := a.Dims()
	if len(b) != r {
		return nil, fmt.Errorf("lp: %d observations for %d rows", len(b), r)
	}
	if epsilon <= 0 {
		return nil, fmt.Errorf("lp: smoothing epsilon must be positive, got %v", epsilon)
	}
	atb := make([]float64, c)
	a.MulTransVecTo(atb, b)
	return &SmoothedLpL2{
		A:       a,
		B:       b,
		Lambda:  0.2 * floats.Norm(atb, math.Inf(1)),
		Epsilon: epsilon,
		P:       p,
	}, nil
}

// Dim returns the number of features.
func (p *SmoothedLpL2) Dim() int {
	_, c := p.A.Dims()
	return c
}

func (p *SmoothedLpL2) residual(x []float64) []float64 {
	r, _ := p.A.Dims()
	res := make([]float64, r)
	p.A.MulVecTo(res, x)
	floats.Sub(res, p.B)
	return res
}

func (p *SmoothedLpL2) smooth(t float64) float64 {
	if math.Abs(t) > p.Epsilon {
		return math.Abs(t)
	}
	return t*t/(2*p.Epsilon) + p.Epsilon/2
}

func (p *SmoothedLpL2) smoothDeriv(t float64) float64 {
	if math.Abs(t) > p.Epsilon {
		if t > 0 {
			return 1
		}
		return -1
	}
	return t / p.Epsilon
}

func (p *SmoothedLpL2) Loss(x []float64) float64 {
	res := p.residual(x)
	var penalty float64
	for _, xi := range x {
		penalty += math.Pow(p.smooth(xi), p.P)
	}
	return 0.5*floats.Dot(res, res) + p.Lambda*penalty
}

func (p *SmoothedLpL2) Gradient(x []float64) []float64 {
	res := p.residual(x)
	g := make([]float64, len(x))
	p.A.MulTransVecTo(g, res)
	for i, xi := range x {
		g[i] += p.Lambda * p.P * math.Pow(p.smooth(xi), p.P-1) * p.smoothDeriv(xi)
	}
	return g
}
