package analysis

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/aimbench/internal/optimization"
	"github.com/copyleftdev/aimbench/internal/problems"
)

func TestFindOptimalQuadratic(t *testing.T) {
	q, err := problems.NewQuadratic(problems.Diagonal{1, 4}, []float64{1, 2})
	require.NoError(t, err)

	ref, err := FindOptimal(context.Background(), q, []float64{0, 0})
	require.NoError(t, err)

	assert.InDelta(t, 1.0, ref.X[0], 1e-7)
	assert.InDelta(t, 0.5, ref.X[1], 1e-7)
	assert.InDelta(t, -1.0, ref.Loss, 1e-12)
}

func TestFindOptimalLogistic(t *testing.T) {
	obj, err := problems.NewLogisticRegressionL2(problems.Identity(2), []float64{0, 0}, 1)
	require.NoError(t, err)

	ref, err := FindOptimal(context.Background(), obj, []float64{1, 1})
	require.NoError(t, err)

	g := obj.Gradient(ref.X)
	assert.Less(t, math.Abs(g[0]), 1e-7)
	assert.InDelta(t, ref.X[0], ref.X[1], 1e-9)
	assert.Less(t, ref.X[0], 0.0)
}

func TestFindOptimalFailure(t *testing.T) {
	obj, err := problems.NewLogisticRegressionL2(problems.Identity(2), []float64{0, 0}, 1)
	require.NoError(t, err)

	s := DefaultSolver()
	s.MaxIterations = 1
	_, err = s.Solve(context.Background(), obj, []float64{5, -3})
	require.ErrorIs(t, err, ErrReferenceFailed)
}

func TestFindOptimalCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q, err := problems.NewQuadratic(problems.Diagonal{1, 1}, nil)
	require.NoError(t, err)

	_, err = FindOptimal(ctx, q, []float64{1, 1})
	require.ErrorIs(t, err, ErrReferenceFailed)
	assert.ErrorIs(t, err, context.Canceled)
}

func result(losses, gradNorms []float64, elapsed time.Duration) *optimization.Result {
	tr := optimization.NewTrace(len(losses))
	for i := range losses {
		tr.Record(losses[i], gradNorms[i])
	}
	return &optimization.Result{X: []float64{0}, Elapsed: elapsed, Trace: tr}
}

func TestAnalyzerRows(t *testing.T) {
	a := NewAnalyzer(1)
	a.AddResult("GD", result([]float64{4, 2, 1.5}, []float64{3, 2, 1}, 1500*time.Millisecond))
	a.AddResult("empty", result(nil, nil, 0))

	rows := a.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, Row{Algorithm: "GD", Iterations: 3, Time: 1500 * time.Millisecond, GradNorm: 1, Loss: 1.5, Gap: 0.5}, rows[0])

	assert.Equal(t, "empty", rows[1].Algorithm)
	assert.Equal(t, 0, rows[1].Iterations)
	assert.True(t, math.IsNaN(rows[1].Gap))

	gaps, ok := a.GapSeries("GD")
	require.True(t, ok)
	assert.Equal(t, []float64{3, 1, 0.5}, gaps)

	_, ok = a.GapSeries("missing")
	assert.False(t, ok)
	assert.Equal(t, 2, a.Len())
	assert.Equal(t, 1.0, a.OptimalLoss())
}

func TestWriteTable(t *testing.T) {
	a := NewAnalyzer(0)
	a.AddResult("AIM_Hg", result([]float64{0.25}, []float64{1e-7}, 2*time.Second))
	a.AddResult("NAG", result([]float64{2, 1}, []float64{0.5, 0.1}, time.Millisecond))

	var buf bytes.Buffer
	require.NoError(t, a.WriteTable(&buf))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "| Algorithm |"))
	assert.Contains(t, lines[0], "Optimality Gap")
	assert.True(t, strings.HasPrefix(lines[1], "|:"))
	assert.Contains(t, lines[2], "AIM_Hg")
	assert.Contains(t, lines[2], "2.000000")
	assert.Contains(t, lines[2], "1.000000e-07")
	assert.Contains(t, lines[2], "2.500000e-01")
	assert.Contains(t, lines[3], "0.001000")

	// every line has the same width
	for _, l := range lines[1:] {
		assert.Equal(t, len(lines[0]), len(l))
	}
}

func TestSeriesColors(t *testing.T) {
	assert.Equal(t, highlightPalette[:1], seriesColors(1))
	assert.Equal(t, highlightPalette, seriesColors(2))

	c := seriesColors(3)
	require.Len(t, c, 3)
	assert.Equal(t, basePalette[0], c[0])
	assert.Equal(t, highlightPalette[0], c[1])
	assert.Equal(t, highlightPalette[1], c[2])

	c = seriesColors(MaxSeries)
	require.Len(t, c, MaxSeries)
	assert.Equal(t, basePalette[7], c[7])
	assert.Equal(t, highlightPalette[1], c[9])
}

func TestPlotConvergence(t *testing.T) {
	a := NewAnalyzer(1)
	for _, name := range []string{"GD", "HB", "NAG"} {
		// the last gap is exactly zero and must be clamped for the log axis
		a.AddResult(name, result([]float64{5, 3, 2, 1}, []float64{1, 1, 1, 1}, 0))
	}
	a.AddResult("diverged", result([]float64{math.Inf(1), math.NaN()}, []float64{1, 1}, 0))

	path := filepath.Join(t.TempDir(), "convergence.png")
	require.NoError(t, a.PlotConvergence(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	assert.Error(t, NewAnalyzer(0).PlotConvergence(path))
}
