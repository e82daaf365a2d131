package heap

import (
	"sync"

	"github.com/petermattis/goid"
)

// ---------------------------------------------------------------------------
// World barrier: cooperative stop-the-world rendezvous
// ---------------------------------------------------------------------------

// worldBarrier tracks which goroutines are inside isolate operations.
// Mutators pass enter/exit at safe points (operation boundaries); the
// collector stops the world by flagging the pause and waiting until no
// operation is in flight. Nested entry by the same goroutine (a trap
// re-entering the isolate) never blocks, so a stop request cannot
// deadlock against a goroutine that is already inside.
type worldBarrier struct {
	mu     sync.Mutex
	cond   *sync.Cond
	paused bool
	active int
	depth  map[int64]int
}

func newWorldBarrier() *worldBarrier {
	b := &worldBarrier{depth: make(map[int64]int)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// enter marks the calling goroutine as inside an operation, blocking
// first if the world is stopped and this is the goroutine's outermost
// entry.
func (b *worldBarrier) enter() {
	id := goid.Get()
	b.mu.Lock()
	if b.depth[id] > 0 {
		b.depth[id]++
		b.mu.Unlock()
		return
	}
	for b.paused {
		b.cond.Wait()
	}
	b.depth[id] = 1
	b.active++
	b.mu.Unlock()
}

// exit unwinds one entry. Leaving the outermost entry wakes a pending
// stop request once the last operation drains.
func (b *worldBarrier) exit() {
	id := goid.Get()
	b.mu.Lock()
	d := b.depth[id] - 1
	if d > 0 {
		b.depth[id] = d
		b.mu.Unlock()
		return
	}
	delete(b.depth, id)
	b.active--
	if b.active == 0 && b.paused {
		b.cond.Broadcast()
	}
	b.mu.Unlock()
}

// inOperation reports whether the calling goroutine is inside an
// operation. A collection request from inside one would self-deadlock
// at the rendezvous, so the collector rejects it up front.
func (b *worldBarrier) inOperation() bool {
	id := goid.Get()
	b.mu.Lock()
	in := b.depth[id] > 0
	b.mu.Unlock()
	return in
}

// stopTheWorld flags the pause and waits until every in-flight
// operation has exited. New entries block until startTheWorld.
func (b *worldBarrier) stopTheWorld() {
	b.mu.Lock()
	b.paused = true
	for b.active > 0 {
		b.cond.Wait()
	}
	b.mu.Unlock()
}

// startTheWorld lifts the pause and wakes blocked mutators.
func (b *worldBarrier) startTheWorld() {
	b.mu.Lock()
	b.paused = false
	b.cond.Broadcast()
	b.mu.Unlock()
}
