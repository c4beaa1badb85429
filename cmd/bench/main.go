// Command bench runs optimizer benchmark suites from the command line and
// prints a comparison table.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/aimbench/internal/benchmark"
)

func main() {
	if err := NewCmdBench("bench", os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

// NewCmdBench returns the root command.
func NewCmdBench(name string, out, errout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:          name,
		Short:        "Benchmark first-order and subspace optimizers",
		SilenceUsage: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(errout)

	cmd.AddCommand(NewCmdRun(name, out, errout))
	cmd.AddCommand(NewCmdList(out))
	return cmd
}

// NewCmdList returns the command listing built-in suites.
func NewCmdList(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List built-in suites",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return listSuites(out)
		},
	}
}

func listSuites(out io.Writer) error {
	suites, err := benchmark.DefaultSuites()
	if err != nil {
		return err
	}
	for _, s := range suites {
		if _, err := fmt.Fprintf(out, "%-40s %-9s %d optimizers\n", s.Name, s.Problem.Kind, len(s.Optimizers)); err != nil {
			return err
		}
	}
	return nil
}
