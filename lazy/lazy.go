// Package lazy implements the fine-grained optimistic skip list: insertion
// validates predecessors after locking them, removal splits into a
// logical mark followed by physical unlinking, and Contains never takes a
// lock.
package lazy

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattkeenan/skiplist"
	"github.com/mattkeenan/skiplist/stats"
)

// node is a lazy-list entry. marked and fullyLinked are read without
// holding mutex (the "observed without acquiring the lock" requirement of
// spec §3), hence atomic.Bool rather than a plain bool guarded by mutex.
type node struct {
	key         skiplist.Key
	next        []*node
	height      int
	mutex       sync.Mutex
	marked      atomic.Bool
	fullyLinked atomic.Bool
}

func newNode(key skiplist.Key, height int) *node {
	return &node{key: key, height: height, next: make([]*node, height+1)}
}

// List is the lazy fine-grained-locking ordered set of spec C4. It
// implements skiplist.OrderedSet.
type List struct {
	head      *node
	sentinel  *node
	maxHeight int
	size      atomic.Int64
	rndMu     sync.Mutex
	rnd       *rand.Rand
}

// New creates an empty lazy skip list whose nodes carry at most maxHeight
// forward pointers. maxHeight must be positive.
func New(maxHeight int) *List {
	if maxHeight <= 0 {
		panic("lazy: maxHeight must be positive")
	}

	head := newNode(skiplist.MinKey, maxHeight-1)
	sentinel := newNode(skiplist.MaxKey, maxHeight-1)
	for level := range head.next {
		head.next[level] = sentinel
	}
	head.fullyLinked.Store(true)
	sentinel.fullyLinked.Store(true)

	return &List{
		head:      head,
		sentinel:  sentinel,
		maxHeight: maxHeight,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// randomHeight draws a geometric(1/2) variate in [0, maxHeight-1]. Every
// goroutine shares the list's generator behind rndMu: height generation is
// rare enough relative to CAS/lock contention elsewhere that a shared,
// mutex-guarded *rand.Rand is simpler than plumbing a per-goroutine one
// through every call site, unlike the per-repetition workload generators
// in package workload which already own a goroutine for their lifetime.
func (l *List) randomHeight() int {
	l.rndMu.Lock()
	defer l.rndMu.Unlock()
	height := 0
	for l.rnd.Intn(2) == 0 && height < l.maxHeight-1 {
		height++
	}
	return height
}

// find traverses from head to level 0 without locking, recording the
// predecessor and successor at every level. It returns the highest level
// at which the successor's key equals key, or -1 if key was not found at
// any level.
func (l *List) find(key skiplist.Key, predecessors, successors []*node) int {
	foundLevel := -1
	pred := l.head
	for level := l.maxHeight - 1; level >= 0; level-- {
		curr := pred.next[level]
		for curr.key < key {
			pred = curr
			curr = pred.next[level]
		}
		if foundLevel == -1 && curr.key == key {
			foundLevel = level
		}
		predecessors[level] = pred
		successors[level] = curr
	}
	return foundLevel
}

// lockLevels locks predecessors[0..upTo] in ascending order, skipping any
// predecessor that is identical to one already locked at a lower level
// (the de-duplication alternative to a reentrant lock accepted by spec §9).
// It returns the set of nodes it actually locked, to be unlocked later.
func lockLevels(predecessors []*node, upTo int) []*node {
	locked := make([]*node, 0, upTo+1)
	for level := 0; level <= upTo; level++ {
		pred := predecessors[level]
		alreadyLocked := false
		for _, l := range locked {
			if l == pred {
				alreadyLocked = true
				break
			}
		}
		if !alreadyLocked {
			pred.mutex.Lock()
			locked = append(locked, pred)
		}
	}
	return locked
}

func unlockAll(locked []*node) {
	for _, n := range locked {
		n.mutex.Unlock()
	}
}

// Insert implements skiplist.OrderedSet. The store of fullyLinked = true
// is the linearization point.
func (l *List) Insert(key skiplist.Key) bool {
	return l.insert(key, stats.Discard)
}

// InsertCounting behaves exactly like Insert, additionally reporting every
// retry the underlying validation loop takes into agg, the way the
// original implementation calls directly into its thread-local
// SkipListStatistics from inside insert() rather than timing the call from
// outside.
func (l *List) InsertCounting(key skiplist.Key, agg *stats.Aggregator) bool {
	return l.insert(key, agg)
}

func (l *List) insert(key skiplist.Key, rec stats.Recorder) bool {
	checkKey(key)

	predecessors := make([]*node, l.maxHeight)
	successors := make([]*node, l.maxHeight)

	rec.Start(stats.Insert)
	for {
		foundLevel := l.find(key, predecessors, successors)
		if foundLevel != -1 {
			found := successors[foundLevel]
			if !found.marked.Load() {
				for !found.fullyLinked.Load() {
					// spin until the in-progress insert publishes.
				}
				rec.Failure(stats.Insert)
				return false
			}
			rec.Retry(stats.Insert) // a marked duplicate is mid-removal; retry
			continue
		}

		newHeight := l.randomHeight()
		locked := lockLevels(predecessors, newHeight)

		valid := true
		for level := 0; valid && level <= newHeight; level++ {
			pred, succ := predecessors[level], successors[level]
			valid = !pred.marked.Load() && !succ.marked.Load() && pred.next[level] == succ
		}
		if !valid {
			unlockAll(locked)
			rec.Retry(stats.Insert)
			continue
		}

		newNode := newNode(key, newHeight)
		for level := 0; level <= newHeight; level++ {
			newNode.next[level] = successors[level]
			predecessors[level].next[level] = newNode
		}
		newNode.fullyLinked.Store(true)
		l.size.Add(1)

		unlockAll(locked)
		rec.Success(stats.Insert)
		return true
	}
}

// Remove implements skiplist.OrderedSet. The store of marked = true on the
// victim node is the linearization point.
func (l *List) Remove(key skiplist.Key) bool {
	return l.remove(key, stats.Discard)
}

// RemoveCounting behaves exactly like Remove, additionally reporting every
// predecessor-validation retry into agg.
func (l *List) RemoveCounting(key skiplist.Key, agg *stats.Aggregator) bool {
	return l.remove(key, agg)
}

func (l *List) remove(key skiplist.Key, rec stats.Recorder) bool {
	checkKey(key)

	predecessors := make([]*node, l.maxHeight)
	successors := make([]*node, l.maxHeight)

	var victim *node
	retryInProgress := false

	rec.Start(stats.Remove)
	for {
		foundLevel := l.find(key, predecessors, successors)
		if foundLevel == -1 {
			rec.Failure(stats.Remove)
			return false
		}

		candidate := successors[foundLevel]
		if !retryInProgress {
			if !(candidate.fullyLinked.Load() && !candidate.marked.Load() && candidate.height == foundLevel) {
				rec.Failure(stats.Remove)
				return false
			}
			candidate.mutex.Lock()
			if candidate.marked.Load() {
				candidate.mutex.Unlock()
				rec.Failure(stats.Remove)
				return false
			}
			candidate.marked.Store(true)
			l.size.Add(-1)
			victim = candidate
			retryInProgress = true
		}

		locked := lockLevels(predecessors, victim.height)

		valid := true
		for level := 0; valid && level <= victim.height; level++ {
			valid = !predecessors[level].marked.Load() && predecessors[level].next[level] == victim
		}
		if !valid {
			unlockAll(locked)
			rec.Retry(stats.Remove)
			continue
		}

		for level := victim.height; level >= 0; level-- {
			predecessors[level].next[level] = victim.next[level]
		}
		victim.mutex.Unlock()
		unlockAll(locked)
		rec.Success(stats.Remove)
		return true
	}
}

// Contains implements skiplist.OrderedSet. It never takes a lock.
func (l *List) Contains(key skiplist.Key) bool {
	checkKey(key)
	predecessors := make([]*node, l.maxHeight)
	successors := make([]*node, l.maxHeight)
	foundLevel := l.find(key, predecessors, successors)
	return foundLevel != -1 && successors[foundLevel].fullyLinked.Load() && !successors[foundLevel].marked.Load()
}

// Size implements skiplist.OrderedSet. It is best-effort under concurrency.
func (l *List) Size() int { return int(l.size.Load()) }

// Empty implements skiplist.OrderedSet.
func (l *List) Empty() bool { return l.size.Load() == 0 }

// Clear implements skiplist.OrderedSet.
//
// As documented in spec §9, this walks head.next[0] while concurrent
// mutators may still be splicing into it; it only terminates correctly
// under external quiescence, where it degenerates to a straightforward
// mark-everything-then-relink. It must not be relied on for a
// linearizable clear under concurrent insert/remove.
func (l *List) Clear() {
	l.head.mutex.Lock()
	defer l.head.mutex.Unlock()

	for current := l.head.next[0]; current != l.sentinel; current = current.next[0] {
		for !current.fullyLinked.Load() || current.marked.Load() {
			// spin until current's concurrent insert/remove settles.
		}
		current.mutex.Lock()
		current.marked.Store(true)
		current.mutex.Unlock()
	}

	for level := 0; level < l.maxHeight; level++ {
		l.head.next[level] = l.sentinel
	}
	l.size.Store(0)
}

func checkKey(key skiplist.Key) {
	if key == skiplist.MinKey || key == skiplist.MaxKey {
		panic("lazy: key equals a sentinel bound")
	}
}

var _ skiplist.OrderedSet = (*List)(nil)
