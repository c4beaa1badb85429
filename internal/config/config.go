// Package config loads service configuration from the environment.
package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/pkg/errors"

	"github.com/copyleftdev/aimbench/internal/optimization"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
		// MaxBodyBytes bounds request bodies; suites are small.
		MaxBodyBytes int64 `env:"HTTP_MAX_BODY_BYTES" envDefault:"1048576"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Optimization struct {
		// WorkerCount bounds concurrent optimizer runs within one suite.
		WorkerCount int `env:"OPT_WORKER_COUNT" envDefault:"4"`
		// MaxJobs bounds concurrently running benchmark jobs.
		MaxJobs         int     `env:"OPT_MAX_JOBS" envDefault:"2"`
		MaxIterations   int     `env:"OPT_MAX_ITER" envDefault:"10000"`
		Gtol            float64 `env:"OPT_GTOL" envDefault:"1e-6"`
		MaxInnerRetries int     `env:"OPT_MAX_INNER_RETRIES" envDefault:"500"`
	}
	Benchmark struct {
		// SuiteDir holds additional suite files; empty means built-in suites only.
		SuiteDir string `env:"BENCH_SUITE_DIR"`
		// PlotDir receives convergence plots; empty disables plotting.
		PlotDir string `env:"BENCH_PLOT_DIR"`
		// JobTTL is how long finished jobs stay queryable.
		JobTTL time.Duration `env:"BENCH_JOB_TTL" envDefault:"1h"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "config")
	}

	// Set default logging level based on environment
	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.HTTP.Port <= 0 || c.HTTP.Port > 65535:
		return errors.Errorf("config: HTTP_PORT %d out of range", c.HTTP.Port)
	case c.Optimization.WorkerCount <= 0:
		return errors.Errorf("config: OPT_WORKER_COUNT must be positive, got %d", c.Optimization.WorkerCount)
	case c.Optimization.MaxJobs <= 0:
		return errors.Errorf("config: OPT_MAX_JOBS must be positive, got %d", c.Optimization.MaxJobs)
	case c.Optimization.MaxIterations <= 0:
		return errors.Errorf("config: OPT_MAX_ITER must be positive, got %d", c.Optimization.MaxIterations)
	case c.Optimization.Gtol <= 0:
		return errors.Errorf("config: OPT_GTOL must be positive, got %g", c.Optimization.Gtol)
	case c.Optimization.MaxInnerRetries <= 0:
		return errors.Errorf("config: OPT_MAX_INNER_RETRIES must be positive, got %d", c.Optimization.MaxInnerRetries)
	}
	return nil
}

// OptimizerDefaults returns the stopping rule and inner-loop caps as
// hyperparameters to merge under every suite entry.
func (c *Config) OptimizerDefaults() optimization.Params {
	return optimization.Params{
		"max_iter":       c.Optimization.MaxIterations,
		"gtol":           c.Optimization.Gtol,
		"max_backtracks": c.Optimization.MaxInnerRetries,
		"max_retries":    c.Optimization.MaxInnerRetries,
	}
}
