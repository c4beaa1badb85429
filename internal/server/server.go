// Package server exposes benchmark jobs over REST and JSON-RPC 2.0.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/copyleftdev/aimbench/internal/benchmark"
	"github.com/copyleftdev/aimbench/internal/config"
	apperrors "github.com/copyleftdev/aimbench/internal/errors"
	"github.com/copyleftdev/aimbench/internal/logging"
	"github.com/copyleftdev/aimbench/internal/metrics"
)

// Server manages benchmark jobs and provides endpoints to start, monitor
// and cancel them. Jobs run in background goroutines; at most
// cfg.Optimization.MaxJobs run at once and the rest wait as pending.
type Server struct {
	cfg     *config.Config
	logger  *logging.Logger
	runner  *benchmark.Runner
	metrics *metrics.Collectors

	mu     sync.RWMutex // protects jobs and closed
	jobs   map[string]*Job
	closed bool

	slots   chan struct{}
	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a new server instance. m may be nil.
func NewServer(cfg *config.Config, logger *logging.Logger, m *metrics.Collectors) *Server {
	runner := benchmark.NewRunner(cfg.Optimization.WorkerCount, logger.Zap(), m)
	runner.Defaults = cfg.OptimizerDefaults()

	maxJobs := cfg.Optimization.MaxJobs
	if maxJobs <= 0 {
		maxJobs = 1
	}

	ctx, stop := context.WithCancel(context.Background())
	return &Server{
		cfg:     cfg,
		logger:  logger,
		runner:  runner,
		metrics: m,
		jobs:    make(map[string]*Job),
		slots:   make(chan struct{}, maxJobs),
		baseCtx: ctx,
		stop:    stop,
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/suites", s.handleSuites)
		r.Route("/benchmarks", func(r chi.Router) {
			r.Post("/", s.handleStart)
			r.Get("/", s.handleList)
			r.Get("/{id}", s.handleStatus)
			r.Delete("/{id}", s.handleCancel)
		})
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// Close cancels every job and waits for their goroutines to exit.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.stop()
	s.wg.Wait()
	return nil
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	limit := s.cfg.HTTP.MaxBodyBytes
	if limit <= 0 {
		limit = 1 << 20
	}
	body := http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(body)
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperrors.Wrap(err, "invalid request body", apperrors.KindInvalid)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleStart handles POST /api/v1/benchmarks.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var params StartParams
	if err := s.decodeBody(w, r, &params); err != nil {
		apperrors.WriteJSON(w, err)
		return
	}

	job, err := s.Start(&params)
	if err != nil {
		apperrors.WriteJSON(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"benchmark_id": job.ID,
		"status":       StatusPending,
	})
}

// handleList handles GET /api/v1/benchmarks.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Jobs())
}

// handleStatus handles GET /api/v1/benchmarks/{id}.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	view, err := s.Job(chi.URLParam(r, "id"))
	if err != nil {
		apperrors.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleCancel handles DELETE /api/v1/benchmarks/{id}.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Cancel(id); err != nil {
		apperrors.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"benchmark_id": id,
		"status":       StatusCancelled,
	})
}

// handleSuites handles GET /api/v1/suites.
func (s *Server) handleSuites(w http.ResponseWriter, r *http.Request) {
	suites, err := benchmark.DefaultSuites()
	if err != nil {
		apperrors.WriteJSON(w, apperrors.Wrap(err, "loading built-in suites"))
		return
	}

	type entry struct {
		Name       string `json:"name"`
		Kind       string `json:"kind"`
		Optimizers int    `json:"optimizers"`
	}
	out := make([]entry, 0, len(suites))
	for _, suite := range suites {
		out = append(out, entry{Name: suite.Name, Kind: suite.Problem.Kind, Optimizers: len(suite.Optimizers)})
	}
	writeJSON(w, http.StatusOK, out)
}
