package skiplist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func withDebugConsistency(t *testing.T) {
	t.Helper()
	prev := DebugConsistency
	DebugConsistency = true
	t.Cleanup(func() { DebugConsistency = prev })
}

func TestSequentialEmptyOnConstruction(t *testing.T) {
	withDebugConsistency(t)
	sl := NewSequential(16)
	require.True(t, sl.Empty())
	require.Equal(t, 0, sl.Size())
	require.False(t, sl.Contains(42))
}

func TestSequentialInsertContainsSize(t *testing.T) {
	withDebugConsistency(t)
	sl := NewSequential(16)

	require.True(t, sl.Insert(42))
	require.False(t, sl.Empty())
	require.Equal(t, 1, sl.Size())
	require.True(t, sl.Contains(42))
	require.False(t, sl.Contains(41))
}

func TestSequentialInsertOrdering(t *testing.T) {
	withDebugConsistency(t)
	sl := NewSequential(8)

	for _, key := range []Key{42, 21, 12} {
		require.True(t, sl.Insert(key))
	}

	var got []Key
	for current := sl.head.next[0]; current != sl.sentinel; current = current.next[0] {
		got = append(got, current.key)
	}
	require.Equal(t, []Key{12, 21, 42}, got)
}

func TestSequentialInsertIdempotence(t *testing.T) {
	withDebugConsistency(t)
	sl := NewSequential(8)

	require.True(t, sl.Insert(7))
	require.False(t, sl.Insert(7))
	require.False(t, sl.Insert(7))
	require.Equal(t, 1, sl.Size())
}

func TestSequentialRemove(t *testing.T) {
	withDebugConsistency(t)
	sl := NewSequential(8)

	require.True(t, sl.Insert(42))
	require.True(t, sl.Remove(42))
	require.False(t, sl.Remove(42))
	require.True(t, sl.Empty())
}

func TestSequentialRemoveIdempotence(t *testing.T) {
	withDebugConsistency(t)
	sl := NewSequential(8)

	require.True(t, sl.Insert(7))
	require.True(t, sl.Remove(7))
	require.False(t, sl.Remove(7))
	require.True(t, sl.Insert(7))
	require.True(t, sl.Remove(7))
}

func TestSequentialClear(t *testing.T) {
	withDebugConsistency(t)
	sl := NewSequential(8)

	for key := Key(0); key < 100; key++ {
		sl.Insert(key)
	}
	sl.Clear()

	require.True(t, sl.Empty())
	require.Equal(t, 0, sl.Size())
	for key := Key(0); key < 100; key++ {
		require.False(t, sl.Contains(key))
	}
}

func TestSequentialSizeAccounting(t *testing.T) {
	withDebugConsistency(t)
	sl := NewSequential(16)

	for key := Key(0); key < 500; key++ {
		sl.Insert(key)
	}
	for key := Key(0); key < 200; key++ {
		sl.Remove(key)
	}

	require.Equal(t, 300, sl.Size())
}

func TestSequentialKeyPreconditionPanics(t *testing.T) {
	sl := NewSequential(8)
	require.Panics(t, func() { sl.Insert(MinKey) })
	require.Panics(t, func() { sl.Insert(MaxKey) })
}

func TestNewSequentialRejectsNonPositiveHeight(t *testing.T) {
	require.Panics(t, func() { NewSequential(0) })
	require.Panics(t, func() { NewSequential(-1) })
}
