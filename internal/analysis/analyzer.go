package analysis

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/copyleftdev/aimbench/internal/optimization"
)

// Row is one line of the comparison table.
type Row struct {
	Algorithm  string        `json:"algorithm"`
	Iterations int           `json:"iterations"`
	Time       time.Duration `json:"time"`
	GradNorm   float64       `json:"grad_norm"`
	Loss       float64       `json:"loss"`
	Gap        float64       `json:"gap"`
}

type entry struct {
	name   string
	result *optimization.Result
}

// Analyzer collects named runs against one reference loss. It is safe for
// concurrent use.
type Analyzer struct {
	fStar float64

	mu      sync.RWMutex
	entries []entry
}

// NewAnalyzer creates an analyzer reporting gaps against fStar.
func NewAnalyzer(fStar float64) *Analyzer {
	return &Analyzer{fStar: fStar}
}

// OptimalLoss returns the reference loss.
func (a *Analyzer) OptimalLoss() float64 {
	return a.fStar
}

// AddResult appends a run. Runs keep their insertion order.
func (a *Analyzer) AddResult(name string, res *optimization.Result) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry{name: name, result: res})
}

// Len returns the number of runs added.
func (a *Analyzer) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}

// Rows summarizes every run by its last trace entry. A run with an empty
// trace reports NaN for grad norm, loss and gap.
func (a *Analyzer) Rows() []Row {
	a.mu.RLock()
	defer a.mu.RUnlock()

	rows := make([]Row, 0, len(a.entries))
	for _, e := range a.entries {
		row := Row{
			Algorithm: e.name,
			GradNorm:  math.NaN(),
			Loss:      math.NaN(),
			Gap:       math.NaN(),
		}
		if e.result != nil {
			row.Iterations = e.result.Iterations()
			row.Time = e.result.Elapsed
			if last, ok := e.result.Trace.Last(); ok {
				row.GradNorm = last.GradNorm
				row.Loss = last.Loss
				row.Gap = last.Loss - a.fStar
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// GapSeries returns f(x_k) - f* for every recorded iteration of the named run.
func (a *Analyzer) GapSeries(name string) ([]float64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for _, e := range a.entries {
		if e.name != name || e.result == nil || e.result.Trace == nil {
			continue
		}
		gaps := make([]float64, len(e.result.Trace.Losses))
		for i, l := range e.result.Trace.Losses {
			gaps[i] = l - a.fStar
		}
		return gaps, true
	}
	return nil, false
}

var tableHeader = []string{"Algorithm", "Iterations", "Time (s)", "Grad Norm", "Loss", "Optimality Gap"}

// WriteTable writes the rows as a GitHub-flavoured markdown table.
func (a *Analyzer) WriteTable(w io.Writer) error {
	rows := a.Rows()
	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, []string{
			r.Algorithm,
			fmt.Sprintf("%d", r.Iterations),
			fmt.Sprintf("%.6f", r.Time.Seconds()),
			fmt.Sprintf("%.6e", r.GradNorm),
			fmt.Sprintf("%.6e", r.Loss),
			fmt.Sprintf("%.6e", r.Gap),
		})
	}

	widths := make([]int, len(tableHeader))
	for i, h := range tableHeader {
		widths[i] = len(h)
	}
	for _, row := range cells {
		for i, c := range row {
			widths[i] = max(widths[i], len(c))
		}
	}

	var sb strings.Builder
	writeRow := func(row []string) {
		sb.WriteString("|")
		for i, c := range row {
			// the first column is text, the rest are numbers
			if i == 0 {
				fmt.Fprintf(&sb, " %-*s |", widths[i], c)
			} else {
				fmt.Fprintf(&sb, " %*s |", widths[i], c)
			}
		}
		sb.WriteString("\n")
	}

	writeRow(tableHeader)
	sb.WriteString("|")
	for i, wd := range widths {
		if i == 0 {
			sb.WriteString(":" + strings.Repeat("-", wd+1) + "|")
		} else {
			sb.WriteString(strings.Repeat("-", wd+1) + ":|")
		}
	}
	sb.WriteString("\n")
	for _, row := range cells {
		writeRow(row)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
