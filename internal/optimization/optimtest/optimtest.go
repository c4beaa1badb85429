// Package optimtest holds objectives and assertions shared by the optimizer tests.
package optimtest

import (
	"math"
	"sync/atomic"
	"testing"

	"github.com/copyleftdev/aimbench/internal/optimization"
)

// DiagQuadratic is f(x) = ½ Σ h_i x_i², gradient h∘x.
type DiagQuadratic struct {
	H []float64
}

// Isotropic returns ½‖x‖² in n dimensions.
func Isotropic(n int) DiagQuadratic {
	h := make([]float64, n)
	for i := range h {
		h[i] = 1
	}
	return DiagQuadratic{H: h}
}

func (q DiagQuadratic) Loss(x []float64) float64 {
	var s float64
	for i, v := range x {
		s += q.H[i] * v * v
	}
	return 0.5 * s
}

func (q DiagQuadratic) Gradient(x []float64) []float64 {
	g := make([]float64, len(x))
	for i, v := range x {
		g[i] = q.H[i] * v
	}
	return g
}

// Counting wraps an objective and counts evaluations.
type Counting struct {
	optimization.Objective
	Losses    atomic.Int64
	Gradients atomic.Int64
}

func (c *Counting) Loss(x []float64) float64 {
	c.Losses.Add(1)
	return c.Objective.Loss(x)
}

func (c *Counting) Gradient(x []float64) []float64 {
	c.Gradients.Add(1)
	return c.Objective.Gradient(x)
}

// BadGradient returns a gradient one entry too short.
type BadGradient struct{}

func (BadGradient) Loss(x []float64) float64 { return 0 }

func (BadGradient) Gradient(x []float64) []float64 { return make([]float64, len(x)+1) }

// AssertTraceConsistent checks the per-run trace invariants.
func AssertTraceConsistent(t *testing.T, res *optimization.Result, maxIter int) {
	t.Helper()

	if res == nil || res.Trace == nil {
		t.Fatalf("nil result or trace")
	}
	tr := res.Trace
	if len(tr.Losses) != len(tr.GradNorms) {
		t.Fatalf("losses/grad_norms length mismatch: %d vs %d", len(tr.Losses), len(tr.GradNorms))
	}
	if maxIter >= 1 && tr.Len() == 0 {
		t.Fatalf("empty trace with max_iter=%d", maxIter)
	}
	if tr.Len() > maxIter {
		t.Fatalf("trace has %d entries, cap is %d", tr.Len(), maxIter)
	}
	for i, e := range tr.Entries() {
		if e.Iteration != i+1 {
			t.Fatalf("entry %d has iteration %d", i, e.Iteration)
		}
	}
}

// AssertFloat64SlicesEqual checks if two float64 slices are approximately equal
func AssertFloat64SlicesEqual(t *testing.T, got, want []float64, tol float64) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}

	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			t.Fatalf("at index %d: got %v, want %v (tolerance %v)", i, got[i], want[i], tol)
		}
	}
}

// AssertBitIdentical checks that two runs produced exactly the same history.
func AssertBitIdentical(t *testing.T, a, b *optimization.Result) {
	t.Helper()

	if a.Trace.Len() != b.Trace.Len() {
		t.Fatalf("trace length differs: %d vs %d", a.Trace.Len(), b.Trace.Len())
	}
	for i := range a.Trace.Losses {
		if math.Float64bits(a.Trace.Losses[i]) != math.Float64bits(b.Trace.Losses[i]) ||
			math.Float64bits(a.Trace.GradNorms[i]) != math.Float64bits(b.Trace.GradNorms[i]) {
			t.Fatalf("iteration %d differs", i+1)
		}
	}
	for i := range a.X {
		if math.Float64bits(a.X[i]) != math.Float64bits(b.X[i]) {
			t.Fatalf("final point differs at %d", i)
		}
	}
}
