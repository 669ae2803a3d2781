package bench

import "sync"

// Barrier is a reusable, width-T rendezvous point: every goroutine calling
// Wait blocks until all T have called it, then all T are released
// together, the Go analogue of boost::barrier used by the original
// harness's two per-repetition timing fences.
type Barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	width      int
	waiting    int
	generation uint64
	broken     bool
}

// NewBarrier creates a Barrier for exactly width participants. width must
// be positive.
func NewBarrier(width int) *Barrier {
	if width <= 0 {
		panic("bench: barrier width must be positive")
	}
	b := &Barrier{width: width}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks the calling goroutine until width goroutines have called
// Wait on this generation, then releases all of them and advances to the
// next generation so the barrier can be reused by the following
// repetition.
func (b *Barrier) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.broken {
		return
	}

	gen := b.generation
	b.waiting++
	if b.waiting == b.width {
		b.waiting = 0
		b.generation++
		b.cond.Broadcast()
		return
	}
	for gen == b.generation && !b.broken {
		b.cond.Wait()
	}
}

// Abort permanently releases every goroutine currently blocked in Wait
// and causes future Wait calls to return immediately, without requiring
// width participants. Used when a worker panics mid-repetition so its
// peers don't deadlock on the barrier.
func (b *Barrier) Abort() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broken = true
	b.cond.Broadcast()
}
