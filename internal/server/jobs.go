package server

import (
	"context"
	"io/fs"
	"math"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/copyleftdev/aimbench/internal/benchmark"
	apperrors "github.com/copyleftdev/aimbench/internal/errors"
)

// Status is the lifecycle state of a benchmark job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Job tracks one suite run. Fields are guarded by Server.mu.
type Job struct {
	ID       string
	Suite    *benchmark.Suite
	Status   Status
	Created  time.Time
	Started  *time.Time
	Finished *time.Time
	Err      error
	Report   *benchmark.Report
	Plot     string

	cancel context.CancelFunc
	done   chan struct{}
}

// Done is closed once the job's goroutine has exited.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// RowView is one line of the comparison table. Non-finite values are null.
type RowView struct {
	Algorithm   string   `json:"algorithm"`
	Iterations  int      `json:"iterations"`
	TimeSeconds float64  `json:"time_seconds"`
	GradNorm    *float64 `json:"grad_norm"`
	Loss        *float64 `json:"loss"`
	Gap         *float64 `json:"optimality_gap"`
}

// RunView is the outcome of one optimizer entry.
type RunView struct {
	Name      string `json:"name"`
	Algorithm string `json:"algorithm"`
	Outcome   string `json:"outcome"`
	Error     string `json:"error,omitempty"`
}

// JobView is the JSON representation of a job.
type JobView struct {
	ID          string     `json:"benchmark_id"`
	Suite       string     `json:"suite"`
	Status      Status     `json:"status"`
	Created     time.Time  `json:"created"`
	Started     *time.Time `json:"started,omitempty"`
	Finished    *time.Time `json:"finished,omitempty"`
	Error       string     `json:"error,omitempty"`
	OptimalLoss *float64   `json:"optimal_loss,omitempty"`
	Rows        []RowView  `json:"rows,omitempty"`
	Runs        []RunView  `json:"runs,omitempty"`
	Plot        string     `json:"plot,omitempty"`
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// view must be called with s.mu held.
func (j *Job) view() JobView {
	v := JobView{
		ID:       j.ID,
		Suite:    j.Suite.Name,
		Status:   j.Status,
		Created:  j.Created,
		Started:  j.Started,
		Finished: j.Finished,
		Plot:     j.Plot,
	}
	if j.Err != nil {
		v.Error = j.Err.Error()
	}
	if j.Report == nil {
		return v
	}

	v.OptimalLoss = finite(j.Report.Reference.Loss)
	for _, r := range j.Report.Rows() {
		v.Rows = append(v.Rows, RowView{
			Algorithm:   r.Algorithm,
			Iterations:  r.Iterations,
			TimeSeconds: r.Time.Seconds(),
			GradNorm:    finite(r.GradNorm),
			Loss:        finite(r.Loss),
			Gap:         finite(r.Gap),
		})
	}
	for _, rec := range j.Report.Records {
		rv := RunView{Name: rec.Name, Algorithm: rec.Algorithm, Outcome: rec.Outcome()}
		if rec.Err != nil {
			rv.Error = rec.Err.Error()
		}
		v.Runs = append(v.Runs, rv)
	}
	return v
}

// StartParams selects the suite for a new job: either an inline suite or
// the name of a built-in or server-side suite.
type StartParams struct {
	benchmark.Suite
	Builtin string `json:"builtin,omitempty"`
}

func (s *Server) resolveSuite(p *StartParams) (*benchmark.Suite, error) {
	if p.Builtin != "" {
		if p.Name != "" || len(p.Optimizers) > 0 {
			return nil, apperrors.New(apperrors.KindInvalid, "builtin and an inline suite are mutually exclusive")
		}
		return s.lookupSuite(p.Builtin)
	}

	suite := p.Suite
	if suite.Problem.Data != "" {
		return nil, apperrors.New(apperrors.KindInvalid, "data files are only allowed in server-side suites")
	}
	if err := suite.Validate(); err != nil {
		return nil, apperrors.Wrap(err, "invalid suite", apperrors.KindInvalid)
	}
	return &suite, nil
}

// lookupSuite finds name in the suite directory first, then among the built-ins.
func (s *Server) lookupSuite(name string) (*benchmark.Suite, error) {
	if name != filepath.Base(name) || name == "." || name == ".." {
		return nil, apperrors.Errorf(apperrors.KindInvalid, "invalid suite name %q", name)
	}

	if dir := s.cfg.Benchmark.SuiteDir; dir != "" {
		for _, ext := range []string{".yaml", ".yml"} {
			suite, err := benchmark.LoadSuite(filepath.Join(dir, name+ext))
			if err == nil {
				return suite, nil
			}
			if !apperrors.Is(err, fs.ErrNotExist) {
				return nil, apperrors.Wrap(err, "loading suite", apperrors.KindInvalid)
			}
		}
	}

	suite, err := benchmark.DefaultSuite(name)
	if err != nil {
		return nil, apperrors.Wrap(err, "", apperrors.KindNotFound)
	}
	return suite, nil
}

// Start registers a job for params and runs it in the background.
func (s *Server) Start(params *StartParams) (*Job, error) {
	suite, err := s.resolveSuite(params)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	job := &Job{
		ID:      uuid.NewString(),
		Suite:   suite,
		Status:  StatusPending,
		Created: time.Now(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return nil, apperrors.New(apperrors.KindUnavailable, "server is shutting down")
	}
	s.pruneLocked(job.Created)
	s.jobs[job.ID] = job
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("Benchmark queued", map[string]interface{}{
		"benchmark_id": job.ID,
		"suite":        suite.Name,
	})

	go s.run(ctx, job)
	return job, nil
}

func (s *Server) run(ctx context.Context, job *Job) {
	defer s.wg.Done()
	defer close(job.done)
	defer job.cancel()

	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		s.finish(job, nil, ctx.Err())
		return
	}
	defer func() { <-s.slots }()

	s.mu.Lock()
	if job.Status.terminal() {
		s.mu.Unlock()
		return
	}
	now := time.Now()
	job.Status = StatusRunning
	job.Started = &now
	s.mu.Unlock()

	s.metrics.JobStarted()
	defer s.metrics.JobFinished()

	report, err := s.runner.RunSuite(ctx, job.Suite)
	if report != nil && err == nil && s.cfg.Benchmark.PlotDir != "" {
		path := filepath.Join(s.cfg.Benchmark.PlotDir, job.ID+".png")
		if perr := report.Analyzer.PlotConvergence(path); perr != nil {
			s.logger.Warn("Convergence plot failed", map[string]interface{}{
				"benchmark_id": job.ID,
				"error":        perr.Error(),
			})
		} else {
			s.mu.Lock()
			job.Plot = path
			s.mu.Unlock()
		}
	}
	s.finish(job, report, err)
}

func (s *Server) finish(job *Job, report *benchmark.Report, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job.Report = report
	if job.Status == StatusCancelled {
		return
	}

	now := time.Now()
	job.Finished = &now
	switch {
	case err == nil:
		job.Status = StatusCompleted
	case apperrors.Is(err, context.Canceled):
		job.Status = StatusCancelled
	default:
		job.Status = StatusFailed
		job.Err = err
	}

	fields := map[string]interface{}{
		"benchmark_id": job.ID,
		"suite":        job.Suite.Name,
		"status":       string(job.Status),
	}
	if job.Err != nil {
		fields["error"] = job.Err.Error()
		s.logger.Error("Benchmark failed", fields)
		return
	}
	s.logger.Info("Benchmark finished", fields)
}

// Job returns a snapshot of the job with the given ID.
func (s *Server) Job(id string) (JobView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return JobView{}, apperrors.Errorf(apperrors.KindNotFound, "benchmark %q not found", id)
	}
	return job.view(), nil
}

// Jobs returns snapshots of every known job, oldest first.
func (s *Server) Jobs() []JobView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]JobView, 0, len(s.jobs))
	for _, job := range s.jobs {
		views = append(views, job.view())
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].Created.Equal(views[j].Created) {
			return views[i].ID < views[j].ID
		}
		return views[i].Created.Before(views[j].Created)
	})
	return views
}

// Cancel stops a pending or running job.
func (s *Server) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return apperrors.Errorf(apperrors.KindNotFound, "benchmark %q not found", id)
	}
	if job.Status.terminal() {
		return apperrors.Errorf(apperrors.KindConflict, "cannot cancel benchmark with status %s", job.Status)
	}

	job.cancel()
	now := time.Now()
	job.Status = StatusCancelled
	job.Finished = &now

	s.logger.Info("Benchmark cancelled", map[string]interface{}{
		"benchmark_id": id,
	})
	return nil
}

// pruneLocked forgets finished jobs older than the configured TTL.
func (s *Server) pruneLocked(now time.Time) {
	ttl := s.cfg.Benchmark.JobTTL
	if ttl <= 0 {
		return
	}
	for id, job := range s.jobs {
		if job.Finished != nil && now.Sub(*job.Finished) > ttl {
			delete(s.jobs, id)
		}
	}
}
