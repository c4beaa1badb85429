package firstorder

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/aimbench/internal/optimization"
	"github.com/copyleftdev/aimbench/internal/optimization/optimtest"
	"github.com/copyleftdev/aimbench/internal/problems"
)

func newGD(lr float64, maxIter int) *GradientDescent {
	c := DefaultGDConfig()
	c.LearningRate = lr
	c.MaxIter = maxIter
	return NewGradientDescent(c)
}

func allOptimizers() map[string]optimization.Optimizer {
	hb := DefaultHeavyBallConfig()
	hb.LearningRate = 0.1
	adagrad := DefaultAdagradConfig()
	adagrad.LearningRate = 0.5
	adam := DefaultAdamConfig()
	adam.LearningRate = 0.1

	return map[string]optimization.Optimizer{
		"gd":      newGD(0.5, optimization.DefaultMaxIter),
		"hb":      NewHeavyBall(hb),
		"nag":     NewNesterov(DefaultNesterovConfig()),
		"adagrad": NewAdagrad(adagrad),
		"adam":    NewAdam(adam),
	}
}

func TestGradientDescentGeometricDecay(t *testing.T) {
	opt := newGD(0.5, 100)
	res, err := opt.Optimize(context.Background(), optimtest.Isotropic(1), []float64{2})
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.Equal(t, 21, res.Iterations())
	assert.Equal(t, 9.5367431640625e-07, res.X[0])

	// every step halves the iterate exactly
	x := 2.0
	for i, gn := range res.Trace.GradNorms {
		x /= 2
		assert.Equal(t, x, gn, "iteration %d", i+1)
		assert.Equal(t, 0.5*x*x, res.Trace.Losses[i], "iteration %d", i+1)
	}
	optimtest.AssertTraceConsistent(t, res, 100)
}

func TestConvergenceOnIsotropicQuadratic(t *testing.T) {
	tests := []struct {
		name       string
		iterations int
	}{
		{"gd", 21},
		{"hb", 210},
		{"nag", 2},
		{"adagrad", 25},
		{"adam", 189},
	}

	opts := allOptimizers()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt := opts[tt.name]
			require.Equal(t, tt.name, opt.Name())

			res, err := opt.Optimize(context.Background(), optimtest.Isotropic(2), []float64{1, 1})
			require.NoError(t, err)

			assert.True(t, res.Converged)
			assert.Equal(t, tt.iterations, res.Iterations())
			last, ok := res.Trace.Last()
			require.True(t, ok)
			assert.Less(t, last.GradNorm, optimization.DefaultGtol)
			assert.False(t, res.Trace.Diverged())
			optimtest.AssertTraceConsistent(t, res, optimization.DefaultMaxIter)
		})
	}
}

func TestAdamFirstStep(t *testing.T) {
	c := DefaultAdamConfig()
	c.LearningRate = 0.1
	c.MaxIter = 1

	res, err := NewAdam(c).Optimize(context.Background(), optimtest.Isotropic(1), []float64{2})
	require.NoError(t, err)

	// bias correction makes m̂ = g and v̂ = g² on the first step
	want := 2 - 0.1*2/math.Sqrt(4+1e-8)
	assert.InDelta(t, want, res.X[0], 1e-15)
	assert.Equal(t, 1, res.Iterations())
	assert.False(t, res.Converged)
}

func TestAdagradUnitStep(t *testing.T) {
	c := DefaultAdagradConfig()
	c.LearningRate = 1

	res, err := NewAdagrad(c).Optimize(context.Background(), optimtest.Isotropic(2), []float64{1, 1})
	require.NoError(t, err)

	// lr·g/√(g²+eps) lands next to the origin in one step
	assert.Equal(t, 1, res.Iterations())
	assert.True(t, res.Converged)
	assert.InDelta(t, 0, res.X[0], 1e-8)
}

func TestHeavyBallTrajectories(t *testing.T) {
	opt := allOptimizers()["hb"]
	res, err := opt.Optimize(context.Background(), optimtest.Isotropic(2), []float64{1, 1})
	require.NoError(t, err)
	require.True(t, res.Converged)

	tr := res.Trace
	require.Len(t, tr.Trajectories, tr.Len()+1)
	assert.Equal(t, []float64{1, 1}, tr.Trajectories[0])
	assert.InDeltaSlice(t, []float64{0.9, 0.9}, tr.Trajectories[1], 1e-15)
	assert.Equal(t, res.X, tr.Trajectories[len(tr.Trajectories)-1])

	// snapshots do not alias the live iterate or each other
	res.X[0] = 42
	assert.NotEqual(t, 42.0, tr.Trajectories[len(tr.Trajectories)-1][0])
	tr.Trajectories[1][0] = -1
	assert.Equal(t, 1.0, tr.Trajectories[0][0])
}

func TestHeavyBallMaxIterTrajectories(t *testing.T) {
	c := DefaultHeavyBallConfig()
	c.MaxIter = 3
	res, err := NewHeavyBall(c).Optimize(context.Background(), optimtest.Isotropic(2), []float64{1, 1})
	require.NoError(t, err)

	assert.False(t, res.Converged)
	assert.Equal(t, 3, res.Iterations())
	assert.Len(t, res.Trace.Trajectories, 5)
}

func TestHeavyBallLastNormLagsOnMaxIter(t *testing.T) {
	c := DefaultHeavyBallConfig()
	c.LearningRate = 0.5
	c.Momentum = 0
	c.MaxIter = 1

	// seed 2 → 1, then the only iteration records ‖∇f(1)‖ and still steps to 0.5
	res, err := NewHeavyBall(c).Optimize(context.Background(), optimtest.Isotropic(1), []float64{2})
	require.NoError(t, err)
	assert.False(t, res.Converged)
	assert.Equal(t, []float64{0.5}, res.X)
	assert.Equal(t, []float64{1}, res.Trace.GradNorms)
	assert.Equal(t, []float64{1}, res.Trace.Trajectories[1])
}

type flatLoss struct{}

func (flatLoss) Loss([]float64) float64 { return 0 }

func (flatLoss) Gradient(x []float64) []float64 {
	g := make([]float64, len(x))
	for i := range g {
		g[i] = 1
	}
	return g
}

func TestNesterovLineSearchExhausted(t *testing.T) {
	c := DefaultNesterovConfig()
	c.MaxBacktracks = 5

	obj := &optimtest.Counting{Objective: flatLoss{}}
	res, err := NewNesterov(c).Optimize(context.Background(), obj, []float64{1, 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, optimization.ErrLineSearchExhausted))

	oe, ok := optimization.IsOptimizationError(err)
	require.True(t, ok)
	assert.Equal(t, "nag", oe.Component)
	assert.Equal(t, 1, oe.Iteration)

	require.NotNil(t, res)
	assert.False(t, res.Converged)
	assert.Equal(t, 1, res.Iterations())
	assert.Equal(t, []float64{1, 1}, res.X)
	// f(x), f(y) and six trial points
	assert.EqualValues(t, 8, obj.Losses.Load())
}

func TestNesterovFirstStepIsExact(t *testing.T) {
	c := DefaultNesterovConfig()
	c.MaxIter = 1
	res, err := NewNesterov(c).Optimize(context.Background(), optimtest.Isotropic(2), []float64{1, 1})
	require.NoError(t, err)

	// t=1 satisfies the sufficient-decrease test immediately and lands on 0
	assert.Equal(t, []float64{0, 0}, res.X)
	assert.InDelta(t, math.Sqrt2, res.Trace.GradNorms[0], 1e-15)
}

func TestNesterovMomentumAfterShrink(t *testing.T) {
	c := DefaultNesterovConfig()
	c.Beta = 0.5
	c.MaxIter = 2

	// f = 2x² + ½y². Both line searches accept t=0.25 after two shrinks, so
	// t_2/t_1 = 1/4 and θ_2 solves θ² = (1-θ)/4.
	obj := optimtest.DiagQuadratic{H: []float64{4, 1}}
	res, err := NewNesterov(c).Optimize(context.Background(), obj, []float64{1, 1})
	require.NoError(t, err)

	theta := (-0.25 + math.Sqrt(0.0625+1)) / 2
	assert.InDelta(t, (1-theta)*0.25, theta*theta, 1e-15)

	// x_1 = (0, 0.75), v_1 = x_0 + (x_1 - x_0)/θ_2, y = (θ_2-1, 0.5+θ_2/4),
	// x_2 = y - ∇f(y)/4 = (0, 0.75·y_2)
	require.Equal(t, 2, res.Iterations())
	assert.InDelta(t, 0.75, res.Trace.GradNorms[1], 1e-15)
	assert.InDelta(t, 0, res.X[0], 1e-15)
	assert.InDelta(t, 0.375+0.1875*theta, res.X[1], 1e-12)
}

func TestDeterministic(t *testing.T) {
	obj, err := problems.NewLogisticRegressionL2(
		problems.NewDense(3, 2, []float64{1, 0.5, -0.3, 2, 0.7, -1}),
		[]float64{1, 0, 1}, 0.1)
	require.NoError(t, err)

	for name, opt := range allOptimizers() {
		t.Run(name, func(t *testing.T) {
			a, err := opt.Optimize(context.Background(), obj, []float64{0.5, -0.5})
			require.NoError(t, err)
			b, err := opt.Optimize(context.Background(), obj, []float64{0.5, -0.5})
			require.NoError(t, err)
			optimtest.AssertBitIdentical(t, a, b)
		})
	}
}

func TestInputNotModified(t *testing.T) {
	for name, opt := range allOptimizers() {
		t.Run(name, func(t *testing.T) {
			x0 := []float64{1, -2}
			res, err := opt.Optimize(context.Background(), optimtest.Isotropic(2), x0)
			require.NoError(t, err)
			assert.Equal(t, []float64{1, -2}, x0)

			res.X[0] = 99
			assert.Equal(t, 1.0, x0[0])
		})
	}
}

func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for name, opt := range allOptimizers() {
		t.Run(name, func(t *testing.T) {
			res, err := opt.Optimize(ctx, optimtest.Isotropic(2), []float64{1, 1})
			require.ErrorIs(t, err, context.Canceled)
			require.NotNil(t, res)
			assert.False(t, res.Converged)
			assert.Equal(t, 0, res.Iterations())
		})
	}
}

func TestDimensionMismatch(t *testing.T) {
	for name, opt := range allOptimizers() {
		t.Run(name, func(t *testing.T) {
			_, err := opt.Optimize(context.Background(), optimtest.BadGradient{}, []float64{1, 1})
			require.ErrorIs(t, err, optimization.ErrDimensionMismatch)
		})
	}
}

func TestEvaluationCounts(t *testing.T) {
	obj := &optimtest.Counting{Objective: optimtest.Isotropic(2)}
	res, err := newGD(1e-4, 5).Optimize(context.Background(), obj, []float64{1, 1})
	require.NoError(t, err)

	assert.Equal(t, 5, res.Iterations())
	assert.EqualValues(t, 6, obj.Gradients.Load())
	assert.EqualValues(t, 5, obj.Losses.Load())
}

func TestLogisticRegression(t *testing.T) {
	obj, err := problems.NewLogisticRegressionL2(problems.Identity(2), []float64{0, 0}, 1)
	require.NoError(t, err)

	t.Run("stable step converges", func(t *testing.T) {
		res, err := newGD(1, optimization.DefaultMaxIter).Optimize(context.Background(), obj, []float64{1, 1})
		require.NoError(t, err)
		assert.True(t, res.Converged)
		assert.LessOrEqual(t, res.Iterations(), 20)
		assert.InDelta(t, res.X[0], res.X[1], 1e-12)
		assert.Less(t, res.Trace.Losses[res.Iterations()-1], obj.Loss([]float64{1, 1}))
	})

	t.Run("oversized step diverges", func(t *testing.T) {
		res, err := newGD(4, 50).Optimize(context.Background(), obj, []float64{1, 1})
		require.NoError(t, err)
		assert.False(t, res.Converged)
		require.Equal(t, 50, res.Iterations())
		for i := 1; i < len(res.Trace.Losses); i++ {
			assert.Greater(t, res.Trace.Losses[i], res.Trace.Losses[i-1], "iteration %d", i+1)
		}
	})
}

func TestConfigFromParams(t *testing.T) {
	p := optimization.Params{"lr": 0.3, "max_iter": 7, "gtol": "1e-3", "beta": 0.5, "unknown": true}

	gd := GDConfigFromParams(p)
	assert.Equal(t, 0.3, gd.LearningRate)
	assert.Equal(t, 7, gd.MaxIter)
	assert.Equal(t, 1e-3, gd.Gtol)

	nag := NesterovConfigFromParams(p)
	assert.Equal(t, 0.5, nag.Beta)
	assert.Equal(t, DefaultMaxBacktracks, nag.MaxBacktracks)

	adam := AdamConfigFromParams(optimization.Params{})
	assert.Equal(t, DefaultAdamConfig(), adam)

	hb := HeavyBallConfigFromParams(optimization.Params{"momentum": 0.5})
	assert.Equal(t, 0.5, hb.Momentum)
	assert.Equal(t, 1e-4, hb.LearningRate)
}
