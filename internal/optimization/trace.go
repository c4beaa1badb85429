package optimization

import "math"

// maxPreallocated bounds the up-front capacity of a trace so that a large
// iteration cap does not allocate for iterations that never happen.
const maxPreallocated = 1024

// Entry is one recorded iteration. Iteration numbering starts at 1.
type Entry struct {
	Iteration int
	Loss      float64
	GradNorm  float64
}

// Trace is the append-only history of one optimization run.
//
// Losses and GradNorms always have the same length. Trajectories is only
// populated by methods that need previous iterates (heavy ball, DRSOM, AIM);
// every snapshot is an independent copy. StepSizes holds the step radius of
// every committed step for methods with an adaptive radius.
type Trace struct {
	Losses       []float64   `json:"losses"`
	GradNorms    []float64   `json:"grad_norms"`
	Trajectories [][]float64 `json:"trajectories,omitempty"`
	StepSizes    []float64   `json:"step_sizes,omitempty"`
}

// NewTrace creates an empty trace sized for up to maxIter iterations.
func NewTrace(maxIter int) *Trace {
	n := maxIter
	if n > maxPreallocated {
		n = maxPreallocated
	}
	if n < 0 {
		n = 0
	}
	return &Trace{
		Losses:    make([]float64, 0, n),
		GradNorms: make([]float64, 0, n),
	}
}

// Record appends the loss and gradient norm of one iteration.
func (t *Trace) Record(loss, gradNorm float64) {
	t.Losses = append(t.Losses, loss)
	t.GradNorms = append(t.GradNorms, gradNorm)
}

// RecordPoint appends a copy of x to the trajectory.
func (t *Trace) RecordPoint(x []float64) {
	t.Trajectories = append(t.Trajectories, CopyPoint(x))
}

// RecordStep appends the radius used by a committed step.
func (t *Trace) RecordStep(size float64) {
	t.StepSizes = append(t.StepSizes, size)
}

// Len returns the number of recorded iterations.
func (t *Trace) Len() int {
	return len(t.Losses)
}

// Entries returns the iterations as records numbered from 1.
func (t *Trace) Entries() []Entry {
	entries := make([]Entry, len(t.Losses))
	for i := range t.Losses {
		entries[i] = Entry{Iteration: i + 1, Loss: t.Losses[i], GradNorm: t.GradNorms[i]}
	}
	return entries
}

// Last returns the most recent entry.
func (t *Trace) Last() (Entry, bool) {
	n := len(t.Losses)
	if n == 0 {
		return Entry{}, false
	}
	return Entry{Iteration: n, Loss: t.Losses[n-1], GradNorm: t.GradNorms[n-1]}, true
}

// Diverged reports whether a NaN or infinite value was recorded. Optimizers
// never intercept such values, so this is how callers detect divergence.
func (t *Trace) Diverged() bool {
	for i := range t.Losses {
		if !finite(t.Losses[i]) || !finite(t.GradNorms[i]) {
			return true
		}
	}
	return false
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
