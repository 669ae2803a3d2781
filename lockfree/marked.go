package lockfree

import "sync/atomic"

// pair is the immutable value held inside a markedRef. Swapping the whole
// pair atomically is the Go analogue of the original implementation's
// pointer-plus-mark-bit packed into one atomic word: it avoids depending on
// node alignment or unsafe pointer tagging at the cost of one extra
// allocation per Store/CompareAndSet.
type pair struct {
	next   *lfNode
	marked bool
}

// markedRef is an atomic cell holding a forward pointer together with a
// one-bit logical-deletion flag, updated as a single atomic unit.
type markedRef struct {
	v atomic.Pointer[pair]
}

func newMarkedRef(next *lfNode, marked bool) *markedRef {
	m := &markedRef{}
	m.v.Store(&pair{next: next, marked: marked})
	return m
}

// Load returns the current reference and mark together.
func (m *markedRef) Load() (*lfNode, bool) {
	p := m.v.Load()
	return p.next, p.marked
}

// Reference returns the current reference, ignoring the mark.
func (m *markedRef) Reference() *lfNode {
	return m.v.Load().next
}

// Marked reports the current mark bit.
func (m *markedRef) Marked() bool {
	return m.v.Load().marked
}

// Store unconditionally replaces both the reference and the mark.
func (m *markedRef) Store(next *lfNode, marked bool) {
	m.v.Store(&pair{next: next, marked: marked})
}

// CompareAndSet atomically replaces (oldNext, oldMarked) with
// (newNext, newMarked), reporting whether the swap took place.
func (m *markedRef) CompareAndSet(oldNext *lfNode, oldMarked bool, newNext *lfNode, newMarked bool) bool {
	cur := m.v.Load()
	if cur.next != oldNext || cur.marked != oldMarked {
		return false
	}
	if cur.next == newNext && cur.marked == newMarked {
		return true
	}
	return m.v.CompareAndSwap(cur, &pair{next: newNext, marked: newMarked})
}
