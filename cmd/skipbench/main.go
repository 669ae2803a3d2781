// Command skipbench drives the concurrent ordered-set benchmarks and
// writes one CSV file per suite.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mattkeenan/skiplist"
	"github.com/mattkeenan/skiplist/bench"
	"github.com/mattkeenan/skiplist/lazy"
	"github.com/mattkeenan/skiplist/lockfree"
	"github.com/mattkeenan/skiplist/workload"
)

const (
	suiteSequential = "SequentialSkipList"
	suiteLazy       = "LazySkipList"
	suiteLockFree   = "LockFreeSkipList"
)

var allSuites = []string{suiteSequential, suiteLazy, suiteLockFree}

var (
	repetitions int
	verbose     bool
	outputDir   string
)

func factoryFor(suite string) func(height int) skiplist.OrderedSet {
	switch suite {
	case suiteSequential:
		return func(height int) skiplist.OrderedSet { return skiplist.NewSequential(height) }
	case suiteLazy:
		return func(height int) skiplist.OrderedSet { return lazy.New(height) }
	case suiteLockFree:
		return func(height int) skiplist.OrderedSet { return lockfree.New(height) }
	default:
		return nil
	}
}

func runSuite(suite string) error {
	buildAt := factoryFor(suite)
	if buildAt == nil {
		return fmt.Errorf("unknown suite %q", suite)
	}

	configs := bench.DefaultSweep(suite, buildAt)
	name := bench.ResultFileName(suite, time.Now())
	if outputDir != "" {
		name = outputDir + string(os.PathSeparator) + name
	}

	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("creating result file: %w", err)
	}
	defer f.Close()

	for _, cfg := range configs {
		results, err := bench.Run(cfg, workload.Mixed(0.4, 0.4), repetitions)
		if err != nil {
			return fmt.Errorf("running %s: %w", cfg, err)
		}
		if verbose {
			for _, r := range results {
				fmt.Println(r)
			}
		}
		if err := bench.WriteCSV(f, cfg, results); err != nil {
			return fmt.Errorf("writing csv for %s: %w", cfg, err)
		}
	}

	return nil
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skipbench [suites...]",
		Short: "Benchmark sequential, lazy, and lock-free ordered sets",
		Long: "skipbench runs the configured suites (default: all three) and " +
			"writes one semicolon-separated CSV file per suite in the current directory, " +
			"or in --output-dir when given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			suites := args
			if len(suites) == 0 {
				suites = allSuites
			}

			var failed bool
			for _, suite := range suites {
				if err := runSuite(suite); err != nil {
					log.Printf("skipbench: %s: %v", suite, err)
					failed = true
					continue
				}
			}
			if failed {
				return fmt.Errorf("one or more suites failed")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&repetitions, "repetitions", 5, "number of repetitions per configuration")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print per-repetition results to stdout")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "directory to write CSV files into (default: current directory)")

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
