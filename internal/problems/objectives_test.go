package problems

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
)

type objective interface {
	Loss(x []float64) float64
	Gradient(x []float64) []float64
}

func randomDense(rng *rand.Rand, r, c int) *Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return NewDense(r, c, data)
}

func randomVector(rng *rand.Rand, n int, scale float64) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = scale * rng.NormFloat64()
	}
	return v
}

func TestGradientsMatchFiniteDifferences(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	a := randomDense(rng, 12, 5)

	labels := make([]float64, 12)
	for i := range labels {
		if rng.Float64() < 0.5 {
			labels[i] = 1
		}
	}
	logit, err := NewLogisticRegressionL2(a, labels, 0.3)
	require.NoError(t, err)

	b := randomVector(rng, 12, 1)
	lp1, err := NewSmoothedLpL2(a, b, 0.1, 1)
	require.NoError(t, err)
	lpHalf, err := NewSmoothedLpL2(a, b, 0.1, 0.5)
	require.NoError(t, err)

	quad, err := NewQuadratic(Diagonal{1, 2, 3, 4, 5}, []float64{1, 0, -1, 0, 1})
	require.NoError(t, err)

	tests := []struct {
		name string
		obj  objective
	}{
		{"logistic", logit},
		{"lp p=1", lp1},
		{"lp p=0.5", lpHalf},
		{"quadratic", quad},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// keep every coordinate away from the smoothing kink at |x|=eps
			x := []float64{0.7, -0.4, 0.03, 1.2, -0.05}
			got := tt.obj.Gradient(x)
			want := fd.Gradient(nil, tt.obj.Loss, x, &fd.Settings{Formula: fd.Central})

			require.Len(t, got, len(x))
			for i := range got {
				assert.InDelta(t, want[i], got[i], 1e-5*math.Max(1, math.Abs(want[i])), "component %d", i)
			}
		})
	}
}

func TestLogisticIdentityDesign(t *testing.T) {
	p, err := NewLogisticRegressionL2(Identity(2), []float64{0, 0}, 1)
	require.NoError(t, err)

	assert.InDelta(t, math.Ln2, p.Loss([]float64{0, 0}), 1e-15)
	g := p.Gradient([]float64{0, 0})
	assert.InDelta(t, 0.25, g[0], 1e-15)
	assert.InDelta(t, 0.25, g[1], 1e-15)

	// large margins must not overflow
	assert.False(t, math.IsInf(p.Loss([]float64{-800, 800}), 0))
	assert.False(t, math.IsNaN(p.Gradient([]float64{-800, 800})[0]))
}

func TestSmoothedLpLambda(t *testing.T) {
	a := NewDense(2, 2, []float64{1, 2, 3, 4})
	p, err := NewSmoothedLpL2(a, []float64{1, -1}, 0.1, 2)
	require.NoError(t, err)

	// Aᵀb = [1-3, 2-4] = [-2, -2]
	assert.InDelta(t, 0.4, p.Lambda, 1e-15)
	assert.Equal(t, 2, p.Dim())

	_, err = NewSmoothedLpL2(a, []float64{1}, 0.1, 2)
	assert.Error(t, err)
	_, err = NewSmoothedLpL2(a, []float64{1, 1}, 0, 2)
	assert.Error(t, err)
}

func TestSmoothing(t *testing.T) {
	p := &SmoothedLpL2{Epsilon: 0.1}

	assert.InDelta(t, 0.5, p.smooth(-0.5), 1e-15)
	assert.InDelta(t, 0.05, p.smooth(0), 1e-15)
	// continuous at the switch point
	assert.InDelta(t, p.smooth(0.1), 0.1, 1e-15)
	assert.InDelta(t, 0.5, p.smoothDeriv(0.05), 1e-15)
	assert.Equal(t, -1.0, p.smoothDeriv(-3))
}

func TestQuadraticValidation(t *testing.T) {
	_, err := NewQuadratic(NewDense(2, 3, nil), nil)
	assert.Error(t, err)

	_, err = NewQuadratic(Diagonal{1, 1}, []float64{1})
	assert.Error(t, err)

	q, err := NewQuadratic(Diagonal{2, 2}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, q.Loss([]float64{1, 1}), 1e-15)
}

func TestGradientDoesNotModifyInput(t *testing.T) {
	p, err := NewLogisticRegressionL2(Identity(3), []float64{1, 0, 1}, 0.1)
	require.NoError(t, err)

	x := []float64{1, 2, 3}
	_ = p.Gradient(x)
	_ = p.Loss(x)
	assert.Equal(t, []float64{1, 2, 3}, x)
}
