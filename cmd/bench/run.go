package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/copyleftdev/aimbench/internal/benchmark"
	"github.com/copyleftdev/aimbench/internal/logging"
	"github.com/copyleftdev/aimbench/internal/optimization"
)

var runExample = `# run a built-in suite
%[1]s run --builtin lp-p2-m1000-n500-r0.15

# run a suite file, capping every optimizer at 2000 iterations
%[1]s run --suite suites/my-suite.yaml --max-iter 2000 --plot convergence.png
`

// RunFlags are the raw flag values of the run command.
type RunFlags struct {
	Suite     string
	Builtin   string
	Workers   int
	MaxIter   int
	Gtol      float64
	Plot      string
	LogLevel  string
	LogFormat string
}

// RunOptions is a validated run invocation.
type RunOptions struct {
	Suite   *benchmark.Suite
	Workers int
	Params  optimization.Params
	Plot    string
	Logger  *logging.Logger

	Out io.Writer
}

// ToOptions resolves the suite and builds the logger.
func (f *RunFlags) ToOptions(out, errout io.Writer) (*RunOptions, error) {
	if (f.Suite == "") == (f.Builtin == "") {
		return nil, errors.New("exactly one of --suite and --builtin is required")
	}
	if f.Workers < 0 {
		return nil, errors.Errorf("--workers must not be negative, got %d", f.Workers)
	}

	var (
		suite *benchmark.Suite
		err   error
	)
	if f.Suite != "" {
		suite, err = benchmark.LoadSuite(f.Suite)
	} else {
		suite, err = benchmark.DefaultSuite(f.Builtin)
	}
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLoggerWithWriter(&logging.Config{Level: f.LogLevel, Format: f.LogFormat}, errout)
	if err != nil {
		return nil, err
	}

	params := optimization.Params{}
	if f.MaxIter > 0 {
		params["max_iter"] = f.MaxIter
	}
	if f.Gtol > 0 {
		params["gtol"] = f.Gtol
	}

	return &RunOptions{
		Suite:   suite,
		Workers: f.Workers,
		Params:  params,
		Plot:    f.Plot,
		Logger:  logger,
		Out:     out,
	}, nil
}

// Run executes the suite and writes the table. Failed optimizer entries are
// listed under the table; only cancellation or a reference failure makes
// the command fail.
func (o *RunOptions) Run(ctx context.Context) error {
	runner := benchmark.NewRunner(o.Workers, o.Logger.Zap(), nil)
	runner.Defaults = o.Params

	report, err := runner.RunSuite(ctx, o.Suite)
	if report == nil {
		return err
	}

	if _, werr := fmt.Fprintf(o.Out, "Suite %s, optimal loss %.6e\n\n", report.Suite, report.Reference.Loss); werr != nil {
		return werr
	}
	if werr := report.Analyzer.WriteTable(o.Out); werr != nil {
		return werr
	}
	for _, rec := range report.Records {
		if rec.Err != nil {
			fmt.Fprintf(o.Out, "%s (%s): %s: %v\n", rec.Name, rec.Algorithm, rec.Outcome(), rec.Err)
		}
	}
	if err != nil {
		return err
	}

	if o.Plot != "" {
		if err := report.Analyzer.PlotConvergence(o.Plot); err != nil {
			return errors.Wrap(err, "plotting convergence")
		}
		o.Logger.Info("Convergence plot written", map[string]interface{}{"path": o.Plot})
	}
	return nil
}

// NewCmdRun returns the command that runs one suite.
func NewCmdRun(parent string, out, errout io.Writer) *cobra.Command {
	flags := &RunFlags{}

	cmd := &cobra.Command{
		Use:     "run (--suite FILE | --builtin NAME)",
		Short:   "Run a benchmark suite and print the comparison table",
		Example: fmt.Sprintf(runExample, parent),
		Args:    cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			opts, err := flags.ToOptions(out, errout)
			if err != nil {
				return err
			}
			defer func() { _ = opts.Logger.Sync() }()

			ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return opts.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&flags.Suite, "suite", "", "Path to a suite YAML file")
	cmd.Flags().StringVar(&flags.Builtin, "builtin", "", "Name of a built-in suite (see the list command)")
	cmd.Flags().IntVar(&flags.Workers, "workers", 0, "Concurrent optimizer runs; 0 uses GOMAXPROCS")
	cmd.Flags().IntVar(&flags.MaxIter, "max-iter", 0, "Default iteration cap for entries that set none")
	cmd.Flags().Float64Var(&flags.Gtol, "gtol", 0, "Default gradient-norm tolerance for entries that set none")
	cmd.Flags().StringVar(&flags.Plot, "plot", "", "Write a convergence plot to this PNG path")
	cmd.Flags().StringVar(&flags.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&flags.LogFormat, "log-format", logging.FormatConsole, "Log format (json, console)")
	return cmd
}
