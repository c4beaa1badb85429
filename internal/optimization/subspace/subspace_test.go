package subspace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/aimbench/internal/optimization"
	"github.com/copyleftdev/aimbench/internal/optimization/optimtest"
)

func newAIM(t *testing.T, metric Metric, tweak func(*AIMConfig)) *AIM {
	t.Helper()
	c := DefaultAIMConfig()
	c.Metric = metric
	if tweak != nil {
		tweak(&c)
	}
	opt, err := NewAIM(c)
	require.NoError(t, err)
	return opt
}

type trialStep struct {
	beta, ratio float64
}

func recordTrials(o *AIM) *[]trialStep {
	var trials []trialStep
	o.trial = func(beta, ratio float64) {
		trials = append(trials, trialStep{beta, ratio})
	}
	return &trials
}

func TestDRSOMConvergesOnQuadratic(t *testing.T) {
	c := DefaultDRSOMConfig()
	c.InitialLR = 0.1
	opt := NewDRSOM(c)

	res, err := opt.Optimize(context.Background(), optimtest.DiagQuadratic{H: []float64{1, 4}}, []float64{1, 1})
	require.NoError(t, err)

	// the subspace spans the whole plane, so one model step is exact
	assert.True(t, res.Converged)
	assert.Equal(t, 2, res.Iterations())
	optimtest.AssertFloat64SlicesEqual(t, res.X, []float64{0, 0}, 1e-10)

	tr := res.Trace
	require.Len(t, tr.Trajectories, 3)
	assert.Equal(t, []float64{1, 1}, tr.Trajectories[0])
	optimtest.AssertFloat64SlicesEqual(t, tr.Trajectories[1], []float64{0.9, 0.6}, 1e-15)
	optimtest.AssertTraceConsistent(t, res, c.MaxIter)
}

func TestDRSOMHigherDimension(t *testing.T) {
	c := DefaultDRSOMConfig()
	c.InitialLR = 0.1

	res, err := NewDRSOM(c).Optimize(context.Background(), optimtest.DiagQuadratic{H: []float64{1, 2, 3}}, []float64{1, 1, 1})
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.LessOrEqual(t, res.Iterations(), 50)
	assert.Len(t, res.Trace.Trajectories, res.Iterations()+1)
}

func TestDRSOMSingularSubspace(t *testing.T) {
	// in one dimension g and d are always parallel
	c := DefaultDRSOMConfig()
	c.InitialLR = 0.5
	c.Epsilon = 1

	res, err := NewDRSOM(c).Optimize(context.Background(), optimtest.Isotropic(1), []float64{2})
	require.ErrorIs(t, err, optimization.ErrSingularSubspace)

	oe, ok := optimization.IsOptimizationError(err)
	require.True(t, ok)
	assert.Equal(t, "drsom", oe.Component)
	assert.Equal(t, "solve", oe.Op)
	assert.Equal(t, 1, oe.Iteration)

	require.NotNil(t, res)
	assert.False(t, res.Converged)
	assert.Equal(t, 1, res.Iterations())
	assert.Equal(t, []float64{1}, res.X)
	assert.Len(t, res.Trace.Trajectories, 2)
}

func TestDRSOMInexactOneDimensional(t *testing.T) {
	tests := []struct {
		name string
		h    float64
		x0   float64
		lr   float64
	}{
		{"small step", 2.3, 1.3, 0.01},
		{"large step", 3, 0.7, 0.1},
		{"negative start", 7, -0.37, 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultDRSOMConfig()
			c.InitialLR = tt.lr

			obj := optimtest.DiagQuadratic{H: []float64{tt.h}}
			res, err := NewDRSOM(c).Optimize(context.Background(), obj, []float64{tt.x0})
			require.ErrorIs(t, err, optimization.ErrSingularSubspace)

			oe, ok := optimization.IsOptimizationError(err)
			require.True(t, ok)
			assert.Equal(t, "solve", oe.Op)
			assert.Equal(t, 1, oe.Iteration)

			// no model step is taken; the run stops on the seed iterate
			require.NotNil(t, res)
			assert.Equal(t, 1, res.Iterations())
			assert.InDelta(t, tt.x0-tt.lr*tt.h*tt.x0, res.X[0], 1e-15)
			assert.Len(t, res.Trace.Trajectories, 2)
		})
	}
}

func TestDRSOMCollinear(t *testing.T) {
	assert.True(t, collinear([]float64{1, 2}, []float64{-0.3, -0.6}))
	assert.True(t, collinear([]float64{1, 2}, []float64{0, 0}))
	assert.True(t, collinear([]float64{0.1, 0.7}, []float64{0.1 * 1.3, 0.7 * 1.3}))
	assert.False(t, collinear([]float64{1, 0}, []float64{0, 1}))
	assert.False(t, collinear([]float64{0.9, 2.4}, []float64{-0.1, -0.4}))
}

func TestAIMConvergence(t *testing.T) {
	tests := []struct {
		metric     Metric
		isotropic  int
		anisotropy int
	}{
		{MetricVelocity, 15, 60},
		{MetricAcceleration, 15, 30},
		{MetricQuasiNewton, 10, 14},
		{MetricHessian, 15, 20},
	}

	for _, tt := range tests {
		t.Run(string(tt.metric), func(t *testing.T) {
			opt := newAIM(t, tt.metric, nil)

			res, err := opt.Optimize(context.Background(), optimtest.Isotropic(2), []float64{1, 1})
			require.NoError(t, err)
			assert.True(t, res.Converged)
			assert.Equal(t, tt.isotropic, res.Iterations())
			optimtest.AssertTraceConsistent(t, res, optimization.DefaultMaxIter)

			res, err = opt.Optimize(context.Background(), optimtest.DiagQuadratic{H: []float64{1, 4}}, []float64{1, 1})
			require.NoError(t, err)
			assert.True(t, res.Converged)
			assert.Equal(t, tt.anisotropy, res.Iterations())

			tr := res.Trace
			assert.Len(t, tr.Trajectories, tr.Len()+1)
			assert.Len(t, tr.StepSizes, tr.Len()-1)
		})
	}
}

func TestAIMRejectThenAccept(t *testing.T) {
	// f = 5x²: the first candidate at beta=1 overshoots with r=2.5
	opt := newAIM(t, MetricHessian, func(c *AIMConfig) { c.MaxIter = 1 })
	trials := recordTrials(opt)

	res, err := opt.Optimize(context.Background(), optimtest.DiagQuadratic{H: []float64{10}}, []float64{1})
	require.NoError(t, err)

	require.Len(t, *trials, 2)
	first, second := (*trials)[0], (*trials)[1]
	assert.Equal(t, 1.0, first.beta)
	assert.InDelta(t, 2.5, first.ratio, 1e-12)
	assert.Greater(t, first.ratio, opt.Config().Eta)

	assert.Less(t, second.beta, first.beta)
	assert.InDelta(t, 0.4/1.5, second.beta, 1e-12)
	assert.InDelta(t, 2.0/3.0, second.ratio, 1e-12)

	// the committed step used the shrunk radius
	require.Len(t, res.Trace.StepSizes, 1)
	assert.Equal(t, second.beta, res.Trace.StepSizes[0])
	assert.InDelta(t, 0.333, res.X[0], 1e-12)
}

func TestAIMRadiusCarriesOver(t *testing.T) {
	opt := newAIM(t, MetricHessian, func(c *AIMConfig) { c.MaxIter = 3 })
	trials := recordTrials(opt)

	res, err := opt.Optimize(context.Background(), optimtest.DiagQuadratic{H: []float64{10}}, []float64{1})
	require.NoError(t, err)

	// r=2/3 is accepted without growth, so later iterations start from the
	// shrunk radius and are accepted first time
	require.Len(t, *trials, 4)
	for _, p := range (*trials)[1:] {
		assert.InDelta(t, 0.4/1.5, p.beta, 1e-12)
		assert.InDelta(t, 2.0/3.0, p.ratio, 1e-12)
	}
	assert.InDelta(t, 0.037, res.X[0], 1e-12)
}

func TestAIMZeroMetricFallsBackToGradientStep(t *testing.T) {
	opt := newAIM(t, MetricHessian, func(c *AIMConfig) {
		c.MaxIter = 1
		c.MetricTol = 1e9
	})
	trials := recordTrials(opt)

	res, err := opt.Optimize(context.Background(), optimtest.DiagQuadratic{H: []float64{10}}, []float64{1})
	require.NoError(t, err)

	require.Len(t, *trials, 2)
	assert.InDelta(t, 10, (*trials)[0].ratio, 1e-12)
	assert.InDelta(t, 1.0/15, (*trials)[1].beta, 1e-12)
	assert.InDelta(t, 0.333, res.X[0], 1e-12)
}

func TestAIMTrustRegionExhausted(t *testing.T) {
	opt := newAIM(t, MetricHessian, func(c *AIMConfig) { c.MaxRetries = 1 })

	res, err := opt.Optimize(context.Background(), optimtest.DiagQuadratic{H: []float64{10}}, []float64{1})
	require.ErrorIs(t, err, optimization.ErrTrustRegionExhausted)

	oe, ok := optimization.IsOptimizationError(err)
	require.True(t, ok)
	assert.Equal(t, "aim", oe.Component)
	assert.Equal(t, 1, oe.Iteration)

	require.NotNil(t, res)
	assert.Equal(t, 1, res.Iterations())
	// still at the seed iterate
	assert.InDelta(t, 0.999, res.X[0], 1e-15)
	assert.Empty(t, res.Trace.StepSizes)
}

func TestAIMQuasiNewtonDoesNotMutateConfig(t *testing.T) {
	opt := newAIM(t, MetricQuasiNewton, nil)
	_, err := opt.Optimize(context.Background(), optimtest.DiagQuadratic{H: []float64{1, 4}}, []float64{1, 1})
	require.NoError(t, err)

	assert.Equal(t, 0.75, opt.Config().Mu)
	assert.Equal(t, 1.0, opt.Config().Beta)
}

func TestDeterministic(t *testing.T) {
	obj := optimtest.DiagQuadratic{H: []float64{1, 3, 9}}
	x0 := []float64{1, -1, 0.5}

	opts := []optimization.Optimizer{NewDRSOM(DefaultDRSOMConfig())}
	for _, m := range Metrics {
		opts = append(opts, newAIM(t, m, nil))
	}

	for _, opt := range opts {
		a, errA := opt.Optimize(context.Background(), obj, x0)
		b, errB := opt.Optimize(context.Background(), obj, x0)
		assert.Equal(t, errA, errB)
		optimtest.AssertBitIdentical(t, a, b)
	}
	assert.Equal(t, []float64{1, -1, 0.5}, x0)
}

func TestCancelledAndMismatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := map[string]optimization.Optimizer{
		"drsom": NewDRSOM(DefaultDRSOMConfig()),
		"aim":   newAIM(t, MetricVelocity, nil),
	}
	for name, opt := range opts {
		t.Run(name, func(t *testing.T) {
			res, err := opt.Optimize(ctx, optimtest.Isotropic(2), []float64{1, 1})
			require.ErrorIs(t, err, context.Canceled)
			assert.Equal(t, 0, res.Iterations())

			_, err = opt.Optimize(context.Background(), optimtest.BadGradient{}, []float64{1, 1})
			require.ErrorIs(t, err, optimization.ErrDimensionMismatch)
		})
	}
}

func TestParseMetric(t *testing.T) {
	for _, m := range Metrics {
		got, err := ParseMetric(string(m))
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}

	_, err := ParseMetric("hg")
	assert.ErrorIs(t, err, optimization.ErrUnknownMetric)

	_, err = NewAIM(AIMConfig{Metric: "x"})
	assert.ErrorIs(t, err, optimization.ErrUnknownMetric)
}

func TestConfigFromParams(t *testing.T) {
	c, err := AIMConfigFromParams(optimization.Params{"mtype": "QN", "beta": 2, "max_retries": 10, "lr": 5})
	require.NoError(t, err)
	assert.Equal(t, MetricQuasiNewton, c.Metric)
	assert.Equal(t, 2.0, c.Beta)
	assert.Equal(t, 10, c.MaxRetries)
	assert.Equal(t, 1e-4, c.InitialLR)

	_, err = AIMConfigFromParams(optimization.Params{"mtype": "z"})
	assert.ErrorIs(t, err, optimization.ErrUnknownMetric)

	d := DRSOMConfigFromParams(optimization.Params{"initial_lr": 0.1, "eps": 0.5})
	assert.Equal(t, 0.1, d.InitialLR)
	assert.Equal(t, 0.5, d.Epsilon)
	assert.Equal(t, optimization.DefaultMaxIter, d.MaxIter)
}
