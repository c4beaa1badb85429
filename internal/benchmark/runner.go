package benchmark

import (
	"context"
	"errors"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/copyleftdev/aimbench/internal/analysis"
	"github.com/copyleftdev/aimbench/internal/metrics"
	"github.com/copyleftdev/aimbench/internal/optimization"
)

// RunRecord is the outcome of one optimizer entry.
type RunRecord struct {
	Name      string
	Algorithm string
	// Result is nil only when the optimizer could not be constructed.
	Result *optimization.Result
	Err    error
}

// Outcome classifies the record for metrics and reporting.
func (r RunRecord) Outcome() string {
	switch {
	case r.Err == nil && r.Result != nil && r.Result.Converged:
		return metrics.OutcomeConverged
	case r.Err == nil:
		return metrics.OutcomeMaxIter
	case errors.Is(r.Err, context.Canceled), errors.Is(r.Err, context.DeadlineExceeded):
		return metrics.OutcomeCancelled
	default:
		return metrics.OutcomeError
	}
}

// Runner executes optimizer entries concurrently against one objective.
type Runner struct {
	// Workers bounds the number of concurrent runs. Zero means GOMAXPROCS.
	Workers int
	// Defaults are merged under every entry's own params.
	Defaults optimization.Params

	logger  *zap.Logger
	metrics *metrics.Collectors
}

// NewRunner creates a runner. logger and m may be nil.
func NewRunner(workers int, logger *zap.Logger, m *metrics.Collectors) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		Workers: workers,
		logger:  logger,
		metrics: m,
	}
}

func (r *Runner) workers() int {
	if r.Workers > 0 {
		return r.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Run executes every entry from its own copy of x0 and returns one record
// per entry in input order. An entry that fails does not stop the others.
// The returned error is non-nil only when ctx was cancelled.
func (r *Runner) Run(ctx context.Context, obj optimization.Objective, x0 []float64, entries []OptimizerSpec) ([]RunRecord, error) {
	records := make([]RunRecord, len(entries))

	var g errgroup.Group
	g.SetLimit(r.workers())

	for i, e := range entries {
		records[i] = RunRecord{Name: e.Name, Algorithm: e.Algorithm}
		opt, err := NewOptimizer(e.Algorithm, r.Defaults.Merge(e.Params))
		if err != nil {
			records[i].Err = err
			r.logger.Error("optimizer configuration rejected",
				zap.String("name", e.Name),
				zap.String("algorithm", e.Algorithm),
				zap.Error(err))
			continue
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				records[i].Err = err
				return nil
			}
			res, err := opt.Optimize(ctx, obj, optimization.CopyPoint(x0))
			records[i].Result = res
			records[i].Err = err
			r.observe(records[i])
			return nil
		})
	}

	// workers never return errors; failures live in the records
	_ = g.Wait()
	return records, ctx.Err()
}

func (r *Runner) observe(rec RunRecord) {
	var (
		elapsed time.Duration
		iters   int
		loss    float64
	)
	if rec.Result != nil {
		elapsed = rec.Result.Elapsed
		iters = rec.Result.Iterations()
		if iters > 0 {
			loss = rec.Result.Trace.Losses[iters-1]
		}
	}
	outcome := rec.Outcome()
	r.metrics.ObserveRun(rec.Algorithm, outcome, elapsed, iters)

	fields := []zap.Field{
		zap.String("name", rec.Name),
		zap.String("algorithm", rec.Algorithm),
		zap.String("outcome", outcome),
		zap.Int("iterations", iters),
		zap.Float64("loss", loss),
		zap.Duration("elapsed", elapsed),
	}
	switch {
	case rec.Err == nil:
		r.logger.Info("run finished", fields...)
	case errors.Is(rec.Err, optimization.ErrLineSearchExhausted),
		errors.Is(rec.Err, optimization.ErrTrustRegionExhausted),
		errors.Is(rec.Err, optimization.ErrSingularSubspace):
		r.logger.Warn("run stopped early", append(fields, zap.Error(rec.Err))...)
	case outcome == metrics.OutcomeCancelled:
		r.logger.Info("run cancelled", fields...)
	default:
		r.logger.Error("run failed", append(fields, zap.Error(rec.Err))...)
	}
}

// Report is the outcome of a whole suite.
type Report struct {
	Suite     string
	Reference *analysis.Reference
	Analyzer  *analysis.Analyzer
	Records   []RunRecord
}

// Rows returns the comparison table rows in entry order.
func (r *Report) Rows() []analysis.Row {
	return r.Analyzer.Rows()
}

// RunSuite builds the suite's problem, computes the reference optimum and
// runs every optimizer. A reference failure aborts the suite before any
// optimizer runs.
func (r *Runner) RunSuite(ctx context.Context, s *Suite) (*Report, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	obj, x0, err := s.Problem.Build()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	ref, err := analysis.FindOptimal(ctx, obj, x0)
	if err != nil {
		return nil, err
	}
	r.logger.Info("reference optimum",
		zap.String("suite", s.Name),
		zap.Float64("loss", ref.Loss),
		zap.Int("iterations", ref.Iterations),
		zap.Duration("elapsed", time.Since(start)))

	records, err := r.Run(ctx, obj, x0, s.Optimizers)

	a := analysis.NewAnalyzer(ref.Loss)
	for _, rec := range records {
		if rec.Result != nil {
			a.AddResult(rec.Name, rec.Result)
		}
	}
	return &Report{
		Suite:     s.Name,
		Reference: ref,
		Analyzer:  a,
		Records:   records,
	}, err
}
