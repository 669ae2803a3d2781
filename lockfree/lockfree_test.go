package lockfree

import (
	"sync"
	"testing"

	"github.com/mattkeenan/skiplist"
	"github.com/mattkeenan/skiplist/stats"
	"github.com/stretchr/testify/require"
)

func TestLockFreeInsertCountingRecordsOutcome(t *testing.T) {
	l := New(8)
	agg := stats.New()

	require.True(t, l.InsertCounting(42, agg))
	require.Equal(t, int64(1), agg.Count(stats.Insert))
	require.Equal(t, int64(1), agg.Succeeded(stats.Insert))

	require.False(t, l.InsertCounting(42, agg))
	require.Equal(t, int64(1), agg.Failed(stats.Insert))
}

func TestLockFreeRemoveCountingRecordsOutcome(t *testing.T) {
	l := New(8)
	agg := stats.New()

	l.Insert(7)
	require.True(t, l.RemoveCounting(7, agg))
	require.Equal(t, int64(1), agg.Succeeded(stats.Remove))

	require.False(t, l.RemoveCounting(7, agg))
	require.Equal(t, int64(1), agg.Failed(stats.Remove))
}

// TestLockFreeInsertCountingAggregatesAcrossGoroutinesUnderContention mirrors
// the lazy-list version of this test: every attempt at a small shared key
// range is accounted for exactly once, win or lose.
func TestLockFreeInsertCountingAggregatesAcrossGoroutinesUnderContention(t *testing.T) {
	const goroutines = 20
	const keys = 5

	l := New(8)
	results := make(chan bool, goroutines*keys)
	aggs := make([]*stats.Aggregator, goroutines)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		aggs[g] = stats.New()
		go func(agg *stats.Aggregator) {
			defer wg.Done()
			for key := skiplist.Key(0); key < keys; key++ {
				results <- l.InsertCounting(key, agg)
			}
		}(aggs[g])
	}
	wg.Wait()
	close(results)

	successes := int64(0)
	for ok := range results {
		if ok {
			successes++
		}
	}

	merged := stats.New()
	for _, agg := range aggs {
		agg.MergeInto(merged)
	}

	require.Equal(t, int64(goroutines*keys), merged.Count(stats.Insert))
	require.Equal(t, successes, merged.Succeeded(stats.Insert))
	require.Equal(t, int64(goroutines*keys)-successes, merged.Failed(stats.Insert))
	require.Equal(t, int64(keys), successes)
}

func TestLockFreeEmptyOnConstruction(t *testing.T) {
	l := New(16)
	require.True(t, l.Empty())
	require.Equal(t, 0, l.Size())
}

func TestLockFreeInsertContainsSize(t *testing.T) {
	l := New(16)

	require.True(t, l.Insert(42))
	require.False(t, l.Empty())
	require.Equal(t, 1, l.Size())
	require.True(t, l.Contains(42))
	require.False(t, l.Contains(41))
}

func TestLockFreeInsertIdempotence(t *testing.T) {
	l := New(8)

	require.True(t, l.Insert(7))
	require.False(t, l.Insert(7))
	require.Equal(t, 1, l.Size())
}

func TestLockFreeRemove(t *testing.T) {
	l := New(8)

	require.True(t, l.Insert(42))
	require.True(t, l.Remove(42))
	require.False(t, l.Remove(42))
	require.True(t, l.Empty())
}

func TestLockFreeClear(t *testing.T) {
	l := New(8)
	for key := skiplist.Key(0); key < 200; key++ {
		l.Insert(key)
	}
	l.Clear()

	require.True(t, l.Empty())
	for key := skiplist.Key(0); key < 200; key++ {
		require.False(t, l.Contains(key))
	}
}

func TestLockFreeKeyPreconditionPanics(t *testing.T) {
	l := New(8)
	require.Panics(t, func() { l.Insert(skiplist.MinKey) })
	require.Panics(t, func() { l.Insert(skiplist.MaxKey) })
}

func TestLockFreeParallelInsertDisjointRanges(t *testing.T) {
	const threads = 50
	const perThread = 200

	l := New(16)
	var wg sync.WaitGroup
	wg.Add(threads)
	for tid := 0; tid < threads; tid++ {
		go func(tid int) {
			defer wg.Done()
			base := skiplist.Key(tid * perThread)
			for i := 0; i < perThread; i++ {
				require.True(t, l.Insert(base+skiplist.Key(i)))
			}
		}(tid)
	}
	wg.Wait()

	require.Equal(t, threads*perThread, l.Size())
	for key := skiplist.Key(0); key < threads*perThread; key++ {
		require.True(t, l.Contains(key))
	}
}

func TestLockFreeParallelInsertSameKeyExactlyOneWinner(t *testing.T) {
	const contenders = 4

	l := New(8)
	results := make(chan bool, contenders)
	var wg sync.WaitGroup
	wg.Add(contenders)
	for i := 0; i < contenders; i++ {
		go func() {
			defer wg.Done()
			results <- l.Insert(7)
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for ok := range results {
		if ok {
			successes++
		}
	}

	require.Equal(t, 1, successes)
	require.True(t, l.Contains(7))
	require.Equal(t, 1, l.Size())
}

func TestLockFreeParallelMixedStaysOrdered(t *testing.T) {
	const threads = 8
	const ops = 500

	l := New(16)
	for key := skiplist.Key(0); key < 1000; key++ {
		l.Insert(key)
	}

	var wg sync.WaitGroup
	wg.Add(threads)
	for tid := 0; tid < threads; tid++ {
		go func(tid int) {
			defer wg.Done()
			for i := 0; i < ops; i++ {
				key := skiplist.Key((tid*ops + i) % 1500)
				switch i % 3 {
				case 0:
					l.Insert(key)
				case 1:
					l.Remove(key)
				default:
					l.Contains(key)
				}
			}
		}(tid)
	}
	wg.Wait()

	prev := skiplist.MinKey
	seen := map[skiplist.Key]bool{}
	for current := l.head.next[0].Reference(); current != l.sentinel; current = current.next[0].Reference() {
		require.Greater(t, current.key, prev)
		require.False(t, seen[current.key])
		seen[current.key] = true
		prev = current.key
	}
}
