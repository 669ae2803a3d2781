// Package workload generates the ascending/descending/interleaving/mixed
// key-access patterns the benchmark harness drives against a skip list
// from multiple goroutines.
package workload

import (
	"math/rand"
	"sync"

	"github.com/mattkeenan/skiplist"
	"github.com/mattkeenan/skiplist/stats"
)

// Scaling selects how the per-thread item count is derived from the
// configured total.
type Scaling int

const (
	// Weak scaling: total work grows with thread count (items per thread
	// is constant, equal to Config.NumberOfItems).
	Weak Scaling = iota
	// Strong scaling: total work is constant (items per thread =
	// Config.NumberOfItems / Config.NumberOfThreads).
	Strong
)

// Config parameterizes a single benchmark repetition's workload.
type Config struct {
	NumberOfThreads      int
	NumberOfItems        int
	InitialNumberOfItems int
	Scaling              Scaling
}

// ItemsPerThread returns the number of items a single thread operates on,
// per the Weak/Strong definitions above.
func (c Config) ItemsPerThread() int {
	if c.Scaling == Strong {
		return c.NumberOfItems / c.NumberOfThreads
	}
	return c.NumberOfItems
}

// ThreadContext is the explicit stand-in for the C++ original's
// thread-local state: a thread id, a private random generator (resolving
// spec §9's "thread-local generator" open question the only way Go's
// goroutine model allows), and the aggregator this thread's operations
// should be recorded into.
type ThreadContext struct {
	ThreadID int
	Rand     *rand.Rand
	Stats    *stats.Aggregator
}

// Fn is a single phase (prepare, work, or cleanup) of a Workload.
type Fn func(ctx *ThreadContext, cfg Config, set skiplist.OrderedSet)

// Workload bundles the three phases a benchmark repetition runs in order:
// Prepare (restricted to thread 0 by default), Work (every thread), and
// Cleanup.
type Workload struct {
	Prepare Fn
	Work    Fn
	Cleanup Fn
}

func noop(*ThreadContext, Config, skiplist.OrderedSet) {}

// DefaultPrepare inserts keys [0, cfg.InitialNumberOfItems) from thread 0
// only, leaving every other thread idle during the prepare phase.
func DefaultPrepare(ctx *ThreadContext, cfg Config, set skiplist.OrderedSet) {
	if ctx.ThreadID != 0 {
		return
	}
	for key := 0; key < cfg.InitialNumberOfItems; key++ {
		set.Insert(skiplist.Key(key))
	}
}

// DefaultRemovePrepare pre-populates the set with
// cfg.InitialNumberOfItems + cfg.ItemsPerThread()*cfg.NumberOfThreads keys
// from thread 0, the range later consumed by the remove workloads.
func DefaultRemovePrepare(ctx *ThreadContext, cfg Config, set skiplist.OrderedSet) {
	if ctx.ThreadID != 0 {
		return
	}
	total := cfg.InitialNumberOfItems + cfg.ItemsPerThread()*cfg.NumberOfThreads
	for key := 0; key < total; key++ {
		set.Insert(skiplist.Key(key))
	}
}

func threadRange(ctx *ThreadContext, cfg Config) (base skiplist.Key, n int) {
	n = cfg.ItemsPerThread()
	base = skiplist.Key(ctx.ThreadID*n + cfg.InitialNumberOfItems)
	return base, n
}

// countingInserter is implemented by OrderedSet variants whose Insert can
// internally retry (lock validation, CAS contention) and therefore have
// something to report through stats.Recorder.Retry, the way the original's
// insert() calls directly into its thread-local SkipListStatistics from
// inside its own CAS/validation loop. Variants without internal retries
// (Sequential) don't implement it, and doInsert falls back to plain
// Start/Success/Failure bookkeeping around the call.
type countingInserter interface {
	InsertCounting(key skiplist.Key, agg *stats.Aggregator) bool
}

// countingRemover is Remove's analogue of countingInserter.
type countingRemover interface {
	RemoveCounting(key skiplist.Key, agg *stats.Aggregator) bool
}

// doInsert inserts key into set, recording into ctx.Stats. When set reports
// its own retries, they flow into ctx.Stats directly from inside Insert;
// otherwise only the outcome is recorded.
func doInsert(ctx *ThreadContext, set skiplist.OrderedSet, key skiplist.Key) {
	if cs, ok := set.(countingInserter); ok {
		cs.InsertCounting(key, ctx.Stats)
		return
	}
	record(ctx, stats.Insert, set.Insert(key))
}

// doRemove is doInsert's Remove analogue.
func doRemove(ctx *ThreadContext, set skiplist.OrderedSet, key skiplist.Key) {
	if cs, ok := set.(countingRemover); ok {
		cs.RemoveCounting(key, ctx.Stats)
		return
	}
	record(ctx, stats.Remove, set.Remove(key))
}

// record wraps a single set operation with the Start/Success/Failure
// bookkeeping every workload's Work phase performs, mirroring how the
// original benchmark timed each individual call against its thread-local
// SkipListStatistics. It is also used directly for Contains, since lookup
// retries are never counted even in the original.
func record(ctx *ThreadContext, category stats.Category, ok bool) {
	ctx.Stats.Start(category)
	if ok {
		ctx.Stats.Success(category)
	} else {
		ctx.Stats.Failure(category)
	}
}

// AscendingInsert inserts keys [tid*N+initial, tid*N+initial+N) in
// ascending order, where N = cfg.ItemsPerThread().
func AscendingInsert() Workload {
	return Workload{
		Prepare: DefaultPrepare,
		Work: func(ctx *ThreadContext, cfg Config, set skiplist.OrderedSet) {
			base, n := threadRange(ctx, cfg)
			for i := 0; i < n; i++ {
				doInsert(ctx, set, base+skiplist.Key(i))
			}
		},
		Cleanup: noop,
	}
}

// DescendingInsert is AscendingInsert with the same per-thread range
// inserted in descending order.
func DescendingInsert() Workload {
	return Workload{
		Prepare: DefaultPrepare,
		Work: func(ctx *ThreadContext, cfg Config, set skiplist.OrderedSet) {
			base, n := threadRange(ctx, cfg)
			for i := n - 1; i >= 0; i-- {
				doInsert(ctx, set, base+skiplist.Key(i))
			}
		},
		Cleanup: noop,
	}
}

// InterleavingInsert inserts
// initial+tid, initial+tid+N, initial+tid+2N, ... (N values, stride N)
// so that concurrent threads interleave within the same key range instead
// of each owning a disjoint block.
func InterleavingInsert() Workload {
	return Workload{
		Prepare: DefaultPrepare,
		Work: func(ctx *ThreadContext, cfg Config, set skiplist.OrderedSet) {
			n := cfg.ItemsPerThread()
			start := skiplist.Key(cfg.InitialNumberOfItems + ctx.ThreadID)
			stride := skiplist.Key(n)
			for i := 0; i < n; i++ {
				doInsert(ctx, set, start+skiplist.Key(i)*stride)
			}
		},
		Cleanup: noop,
	}
}

// AscendingRemove pre-populates the whole key space, then has each thread
// remove its ascending slice of it.
func AscendingRemove() Workload {
	return Workload{
		Prepare: DefaultRemovePrepare,
		Work: func(ctx *ThreadContext, cfg Config, set skiplist.OrderedSet) {
			base, n := threadRange(ctx, cfg)
			for i := 0; i < n; i++ {
				doRemove(ctx, set, base+skiplist.Key(i))
			}
		},
		Cleanup: noop,
	}
}

// DescendingRemove is AscendingRemove with each thread's slice removed in
// descending order.
func DescendingRemove() Workload {
	return Workload{
		Prepare: DefaultRemovePrepare,
		Work: func(ctx *ThreadContext, cfg Config, set skiplist.OrderedSet) {
			base, n := threadRange(ctx, cfg)
			for i := n - 1; i >= 0; i-- {
				doRemove(ctx, set, base+skiplist.Key(i))
			}
		},
		Cleanup: noop,
	}
}

// InterleavingRemove mirrors InterleavingInsert's strided key pattern, but
// removes instead of inserting.
func InterleavingRemove() Workload {
	return Workload{
		Prepare: DefaultRemovePrepare,
		Work: func(ctx *ThreadContext, cfg Config, set skiplist.OrderedSet) {
			n := cfg.ItemsPerThread()
			start := skiplist.Key(cfg.InitialNumberOfItems + ctx.ThreadID)
			stride := skiplist.Key(n)
			for i := 0; i < n; i++ {
				doRemove(ctx, set, start+skiplist.Key(i)*stride)
			}
		},
		Cleanup: noop,
	}
}

// Mixed returns a workload where, among config.NumberOfThreads threads,
// thread ids below ceil(pInsert*T) insert, ids from there up to but
// excluding ceil((pInsert+pRemove)*T) remove, and the remainder search — each against a thread-local vector of
// random keys sampled during Prepare, exactly as spec §4.6 describes.
// pInsert + pRemove must not exceed 1.
func Mixed(pInsert, pRemove float64) Workload {
	if pInsert < 0 || pRemove < 0 || pInsert+pRemove > 1 {
		panic("workload: pInsert + pRemove must be in [0, 1]")
	}

	sampled := map[int][]skiplist.Key{}
	var sampledMu sync.Mutex

	return Workload{
		Prepare: func(ctx *ThreadContext, cfg Config, set skiplist.OrderedSet) {
			n := cfg.ItemsPerThread()
			keys := make([]skiplist.Key, n)
			span := cfg.InitialNumberOfItems + n
			for i := range keys {
				keys[i] = skiplist.Key(ctx.Rand.Intn(span))
			}
			sampledMu.Lock()
			sampled[ctx.ThreadID] = keys
			sampledMu.Unlock()
		},
		Work: func(ctx *ThreadContext, cfg Config, set skiplist.OrderedSet) {
			removeThreshold := ceilFrac(pInsert, cfg.NumberOfThreads)
			searchThreshold := ceilFrac(pInsert+pRemove, cfg.NumberOfThreads)

			sampledMu.Lock()
			keys := sampled[ctx.ThreadID]
			sampledMu.Unlock()

			switch {
			case ctx.ThreadID >= searchThreshold:
				for _, key := range keys {
					record(ctx, stats.Lookup, set.Contains(key))
				}
			case ctx.ThreadID >= removeThreshold:
				for _, key := range keys {
					doRemove(ctx, set, key)
				}
			default:
				for _, key := range keys {
					doInsert(ctx, set, key)
				}
			}
		},
		Cleanup: func(ctx *ThreadContext, cfg Config, set skiplist.OrderedSet) {
			sampledMu.Lock()
			delete(sampled, ctx.ThreadID)
			sampledMu.Unlock()
		},
	}
}

func ceilFrac(frac float64, total int) int {
	raw := frac * float64(total)
	n := int(raw)
	if float64(n) < raw {
		n++
	}
	return n
}
