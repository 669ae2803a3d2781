// Package bench drives the repetition loop described for the concurrent
// ordered-set benchmark: spawn a fixed pool of workers, synchronize them
// across a barrier-fenced timed phase, merge their statistics, and emit
// one Result per repetition.
package bench

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mattkeenan/skiplist"
	"github.com/mattkeenan/skiplist/stats"
	"github.com/mattkeenan/skiplist/workload"
)

// Factory builds a fresh, empty ordered set for one repetition.
type Factory func() skiplist.OrderedSet

// Configuration names one benchmark suite: which variant to build (via
// Factory), at what list height, against what workload shape.
type Configuration struct {
	Description string
	ListHeight  int
	workload.Config
	Factory Factory
}

func (c Configuration) String() string {
	return fmt.Sprintf("%s(height=%d, threads=%d, items=%d, initial=%d, scaling=%s)",
		c.Description, c.ListHeight, c.NumberOfThreads, c.NumberOfItems,
		c.InitialNumberOfItems, scalingName(c.Scaling))
}

func scalingName(s workload.Scaling) string {
	if s == workload.Strong {
		return "strong"
	}
	return "weak"
}

// Result holds one repetition's timing and per-category outcome.
type Result struct {
	Repetition            int
	TotalTime             time.Duration
	TotalThroughput       float64
	Insertions            int64
	PercentageFailedInsert float64
	AverageRetriesInsert  float64
	InsertThroughput      float64
	Removals              int64
	PercentageFailedRemove float64
	AverageRetriesRemove  float64
	RemoveThroughput      float64
	Finds                 int64
	AverageRetriesFind    float64
	FindThroughput        float64
}

func (r Result) String() string {
	return fmt.Sprintf("rep=%d time=%.6fs throughput=%.1f ops/s (insert=%d remove=%d find=%d)",
		r.Repetition, r.TotalTime.Seconds(), r.TotalThroughput, r.Insertions, r.Removals, r.Finds)
}

// Run executes repetitions independent repetitions of wl against a set
// built by cfg.Factory, following the prepare/barrier/work/barrier/merge/
// cleanup sequence of the original benchmark harness. It returns one
// Result per completed repetition; it stops and returns the error from
// the first repetition in which a worker panics.
func Run(cfg Configuration, wl workload.Workload, repetitions int) ([]Result, error) {
	if cfg.NumberOfThreads <= 0 {
		return nil, fmt.Errorf("bench: NumberOfThreads must be positive, got %d", cfg.NumberOfThreads)
	}

	threadCtxs := make([]*workload.ThreadContext, cfg.NumberOfThreads)
	for i := range threadCtxs {
		threadCtxs[i] = &workload.ThreadContext{
			ThreadID: i,
			Rand:     rand.New(rand.NewSource(time.Now().UnixNano() + int64(i))),
			Stats:    stats.New(),
		}
	}

	results := make([]Result, 0, repetitions)
	for rep := 0; rep < repetitions; rep++ {
		result, err := runRepetition(rep, cfg, wl, threadCtxs)
		if err != nil {
			return results, fmt.Errorf("bench: repetition %d: %w", rep, err)
		}
		results = append(results, result)
	}
	return results, nil
}

func runRepetition(rep int, cfg Configuration, wl workload.Workload, threadCtxs []*workload.ThreadContext) (Result, error) {
	set := cfg.Factory()
	barrier := NewBarrier(cfg.NumberOfThreads)
	var timer Timer
	var mergeMu sync.Mutex
	merged := stats.New()

	g, _ := errgroup.WithContext(context.Background())
	for _, tc := range threadCtxs {
		tc := tc
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					barrier.Abort()
					err = fmt.Errorf("worker %d: %v", tc.ThreadID, r)
				}
			}()

			wl.Prepare(tc, cfg.Config, set)
			tc.Stats.Reset()

			barrier.Wait()
			if tc.ThreadID == 0 {
				timer.Start()
			}

			wl.Work(tc, cfg.Config, set)

			barrier.Wait()
			if tc.ThreadID == 0 {
				timer.Stop()
			}

			mergeMu.Lock()
			tc.Stats.MergeInto(merged)
			mergeMu.Unlock()

			wl.Cleanup(tc, cfg.Config, set)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	return deriveResult(rep, timer.Elapsed(), merged), nil
}

func deriveResult(rep int, elapsed time.Duration, merged *stats.Aggregator) Result {
	seconds := elapsed.Seconds()

	inserted := merged.Succeeded(stats.Insert)
	removed := merged.Succeeded(stats.Remove)
	found := merged.Succeeded(stats.Lookup) + merged.Failed(stats.Lookup)
	total := merged.Count(stats.Insert) + merged.Count(stats.Remove) + merged.Count(stats.Lookup)

	throughput := func(count int64) float64 {
		if seconds <= 0 {
			return 0
		}
		return float64(count) / seconds
	}

	return Result{
		Repetition:             rep,
		TotalTime:              elapsed,
		TotalThroughput:        throughput(total),
		Insertions:             merged.Count(stats.Insert),
		PercentageFailedInsert: merged.PercentageFailed(stats.Insert),
		AverageRetriesInsert:   merged.AverageRetries(stats.Insert),
		InsertThroughput:       throughput(inserted),
		Removals:               merged.Count(stats.Remove),
		PercentageFailedRemove: merged.PercentageFailed(stats.Remove),
		AverageRetriesRemove:   merged.AverageRetries(stats.Remove),
		RemoveThroughput:       throughput(removed),
		Finds:                  merged.Count(stats.Lookup),
		AverageRetriesFind:     merged.AverageRetries(stats.Lookup),
		FindThroughput:         throughput(found),
	}
}

// DefaultSweep reproduces the original harness's createBenchmarksForListHeight
// sweep: list heights 8, 16, 64, and thread counts doubling from 1 up to
// runtime.NumCPU(). buildAt constructs a fresh, empty set at the given list
// height; each Configuration's Factory closes over its own swept height, the
// way the original builds one list per configured height rather than
// reusing a single fixed-height instance across the sweep.
func DefaultSweep(description string, buildAt func(height int) skiplist.OrderedSet) []Configuration {
	heights := []int{8, 16, 64}
	configs := make([]Configuration, 0, len(heights)*8)

	for _, height := range heights {
		height := height
		for threads := 1; threads <= runtime.NumCPU(); threads *= 2 {
			configs = append(configs, Configuration{
				Description: description,
				ListHeight:  height,
				Config: workload.Config{
					NumberOfThreads:      threads,
					NumberOfItems:        10000,
					InitialNumberOfItems: 10000,
					Scaling:              workload.Weak,
				},
				Factory: func() skiplist.OrderedSet { return buildAt(height) },
			})
		}
	}
	return configs
}
