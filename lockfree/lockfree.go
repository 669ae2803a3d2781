// Package lockfree implements a non-blocking skip list built on atomic
// marked pointers: insert, remove and contains never block. Contention is
// resolved by CAS retries, with no cap on their number, and traversals help
// unlink nodes that other goroutines have marked.
package lockfree

import (
	"math/rand"
	"sync/atomic"

	"github.com/mattkeenan/skiplist"
	"github.com/mattkeenan/skiplist/stats"
)

type lfNode struct {
	key    skiplist.Key
	height int
	next   []*markedRef
}

func newLFNode(key skiplist.Key, height int) *lfNode {
	return &lfNode{key: key, height: height, next: make([]*markedRef, height+1)}
}

// List is the lock-free ordered set of spec C5. It implements
// skiplist.OrderedSet.
type List struct {
	head      *lfNode
	sentinel  *lfNode
	maxHeight int
	size      atomic.Int64
	rnd       *rand.Rand
}

// New creates an empty lock-free skip list whose nodes carry at most
// maxHeight forward pointers. maxHeight must be positive.
func New(maxHeight int) *List {
	if maxHeight <= 0 {
		panic("lockfree: maxHeight must be positive")
	}

	head := newLFNode(skiplist.MinKey, maxHeight-1)
	sentinel := newLFNode(skiplist.MaxKey, maxHeight-1)
	for level := 0; level < maxHeight; level++ {
		head.next[level] = newMarkedRef(sentinel, false)
		sentinel.next[level] = newMarkedRef(nil, false)
	}

	return &List{
		head:      head,
		sentinel:  sentinel,
		maxHeight: maxHeight,
	}
}

// randomHeight draws a geometric(1/2) variate in [0, maxHeight-1] from
// math/rand's top-level generator, which is safe for concurrent use.
func (l *List) randomHeight() int {
	height := 0
	for rand.Intn(2) == 0 && height < l.maxHeight-1 {
		height++
	}
	return height
}

// find performs the helping top-down traversal of spec §4.4: it physically
// unlinks any marked successor it encounters via CAS, restarting from head
// on contention. It returns whether key is present and fills predecessors
// and successors for every level.
func (l *List) find(key skiplist.Key, predecessors, successors []*lfNode) bool {
retry:
	pred := l.head
	for level := l.maxHeight - 1; level >= 0; level-- {
		curr := pred.next[level].Reference()
		for {
			succ, marked := curr.next[level].Load()
			for marked {
				if !pred.next[level].CompareAndSet(curr, false, succ, false) {
					goto retry
				}
				curr = pred.next[level].Reference()
				succ, marked = curr.next[level].Load()
			}

			if curr.key < key {
				pred = curr
				curr = succ
			} else {
				break
			}
		}
		predecessors[level] = pred
		successors[level] = curr
	}
	return successors[0].key == key
}

// Insert implements skiplist.OrderedSet. The CAS on predecessors[0]'s
// level-0 link is the linearization point.
func (l *List) Insert(key skiplist.Key) bool {
	return l.insert(key, stats.Discard)
}

// InsertCounting behaves exactly like Insert, additionally reporting into
// agg each time the level-0 CAS loses a race and must retry, the way the
// original calls directly into its thread-local SkipListStatistics from
// that same retry point. Contention on the higher-level links is resolved
// by re-running find and is not counted, matching the original.
func (l *List) InsertCounting(key skiplist.Key, agg *stats.Aggregator) bool {
	return l.insert(key, agg)
}

func (l *List) insert(key skiplist.Key, rec stats.Recorder) bool {
	checkKey(key)

	topLevel := l.randomHeight()
	predecessors := make([]*lfNode, l.maxHeight)
	successors := make([]*lfNode, l.maxHeight)

	rec.Start(stats.Insert)
	for {
		if l.find(key, predecessors, successors) {
			rec.Failure(stats.Insert)
			return false
		}

		newNode := newLFNode(key, topLevel)
		for level := 0; level <= topLevel; level++ {
			newNode.next[level] = newMarkedRef(successors[level], false)
		}

		pred, succ := predecessors[0], successors[0]
		if !pred.next[0].CompareAndSet(succ, false, newNode, false) {
			rec.Retry(stats.Insert)
			continue
		}
		l.size.Add(1)

		for level := 1; level <= topLevel; level++ {
			for {
				pred, succ = predecessors[level], successors[level]
				if pred.next[level].CompareAndSet(succ, false, newNode, false) {
					break
				}
				l.find(key, predecessors, successors)
			}
		}
		rec.Success(stats.Insert)
		return true
	}
}

// Remove implements skiplist.OrderedSet. The CAS that flips the level-0
// mark bit from false to true is the linearization point.
func (l *List) Remove(key skiplist.Key) bool {
	return l.remove(key, stats.Discard)
}

// RemoveCounting behaves exactly like Remove. It takes an *stats.Aggregator
// for symmetry with InsertCounting, but the original never retries a
// deletion once the victim is found, so it reports no retries, only the
// Start/Success/Failure outcome.
func (l *List) RemoveCounting(key skiplist.Key, agg *stats.Aggregator) bool {
	return l.remove(key, agg)
}

func (l *List) remove(key skiplist.Key, rec stats.Recorder) bool {
	checkKey(key)

	predecessors := make([]*lfNode, l.maxHeight)
	successors := make([]*lfNode, l.maxHeight)

	rec.Start(stats.Remove)
	if !l.find(key, predecessors, successors) {
		rec.Failure(stats.Remove)
		return false
	}

	victim := successors[0]
	for level := victim.height; level >= 1; level-- {
		succ, marked := victim.next[level].Load()
		for !marked {
			victim.next[level].CompareAndSet(succ, false, succ, true)
			succ, marked = victim.next[level].Load()
		}
	}

	succ, _ := victim.next[0].Load()
	for {
		iOwn := victim.next[0].CompareAndSet(succ, false, succ, true)
		newSucc, newMarked := victim.next[0].Load()
		if iOwn {
			l.size.Add(-1)
			l.find(key, predecessors, successors)
			rec.Success(stats.Remove)
			return true
		} else if newMarked {
			rec.Failure(stats.Remove)
			return false
		}
		succ = newSucc
	}
}

// Contains implements skiplist.OrderedSet. It never helps unlink marked
// nodes, only follows their pointers, so it never blocks and never CASes.
func (l *List) Contains(key skiplist.Key) bool {
	checkKey(key)

	pred := l.head
	var curr *lfNode
	for level := l.maxHeight - 1; level >= 0; level-- {
		curr, _ = pred.next[level].Load()
		for {
			succ, marked := curr.next[level].Load()
			for marked {
				curr = succ
				succ, marked = curr.next[level].Load()
			}
			if curr.key < key {
				pred = curr
				curr = succ
			} else {
				break
			}
		}
	}
	return curr.key == key
}

// Size implements skiplist.OrderedSet. It is best-effort under concurrency.
func (l *List) Size() int { return int(l.size.Load()) }

// Empty implements skiplist.OrderedSet.
func (l *List) Empty() bool { return l.size.Load() == 0 }

// Clear implements skiplist.OrderedSet.
//
// It is not linearizable with concurrent Insert/Remove/Contains: per spec
// §4.4 and §9, callers must externally quiesce the list before calling
// Clear, or treat it as a debug/test-only utility.
func (l *List) Clear() {
	for current := l.head.next[0].Reference(); current != l.sentinel; {
		next := current.next[0].Reference()
		for level := current.height; level >= 0; level-- {
			succ, marked := current.next[level].Load()
			for !marked {
				current.next[level].CompareAndSet(succ, false, succ, true)
				succ, marked = current.next[level].Load()
			}
		}
		current = next
	}

	for level := 0; level < l.maxHeight; level++ {
		l.head.next[level].Store(l.sentinel, false)
	}
	l.size.Store(0)
}

func checkKey(key skiplist.Key) {
	if key == skiplist.MinKey || key == skiplist.MaxKey {
		panic("lockfree: key equals a sentinel bound")
	}
}

var _ skiplist.OrderedSet = (*List)(nil)
