// Package metrics exposes Prometheus collectors for benchmark runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "aimbench"

// Run outcomes used as the "outcome" label.
const (
	OutcomeConverged = "converged"
	OutcomeMaxIter   = "max_iter"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

// Collectors groups the benchmark metrics.
type Collectors struct {
	Runs        *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	Iterations  *prometheus.HistogramVec
	JobsRunning prometheus.Gauge
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which is convenient in tests.
func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Optimizer runs by algorithm and outcome.",
		}, []string{"algorithm", "outcome"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a single optimizer run.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"algorithm"}),
		Iterations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_iterations",
			Help:      "Recorded iterations of a single optimizer run.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"algorithm"}),
		JobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_running",
			Help:      "Benchmark jobs currently executing.",
		}),
	}

	if reg != nil {
		for _, col := range []prometheus.Collector{c.Runs, c.Duration, c.Iterations, c.JobsRunning} {
			if err := reg.Register(col); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// ObserveRun records one finished run.
func (c *Collectors) ObserveRun(algorithm, outcome string, elapsed time.Duration, iterations int) {
	if c == nil {
		return
	}
	c.Runs.WithLabelValues(algorithm, outcome).Inc()
	c.Duration.WithLabelValues(algorithm).Observe(elapsed.Seconds())
	c.Iterations.WithLabelValues(algorithm).Observe(float64(iterations))
}

// JobStarted increments the running-jobs gauge.
func (c *Collectors) JobStarted() {
	if c != nil {
		c.JobsRunning.Inc()
	}
}

// JobFinished decrements the running-jobs gauge.
func (c *Collectors) JobFinished() {
	if c != nil {
		c.JobsRunning.Dec()
	}
}
