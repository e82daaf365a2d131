package heap

import (
	"sync"
)

// ---------------------------------------------------------------------------
// Weak handles
// ---------------------------------------------------------------------------

// Weak observes a slotted value without rooting it. Once the collector
// reclaims the referent the handle reports dead permanently; the
// generation carried in the target means a later tenant of the same
// table index is never mistaken for the original referent.
type Weak struct {
	target Value

	mu       sync.Mutex
	alive    bool
	fired    bool
	listener func()
}

// Weak registers a weak handle on v. Only slotted values can be watched;
// primitives are never reclaimed.
func (iso *Isolate) Weak(v Value) (*Weak, *Error) {
	iso.checkAlive("Weak")
	if !v.IsSlotted() {
		return nil, errorf(ErrTypeMismatch, "Weak", "%s value cannot be weakly held", v.Kind())
	}
	w := &Weak{target: v, alive: true}
	iso.barrier.enter()
	iso.weaks.register(w)
	iso.barrier.exit()
	return w, nil
}

// Value returns the referent while it is alive. After reclamation it
// reports (Undefined, false) permanently.
func (w *Weak) Value() (Value, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.alive {
		return Undefined, false
	}
	return w.target, true
}

// IsAlive reports whether the referent has not been reclaimed.
func (w *Weak) IsAlive() bool {
	w.mu.Lock()
	alive := w.alive
	w.mu.Unlock()
	return alive
}

// OnDrop installs a listener fired exactly once when the referent is
// reclaimed. Installing after reclamation fires it immediately.
func (w *Weak) OnDrop(fn func()) {
	w.mu.Lock()
	if !w.alive {
		run := !w.fired
		w.fired = true
		w.mu.Unlock()
		if run && fn != nil {
			fn()
		}
		return
	}
	w.listener = fn
	w.mu.Unlock()
}

// expire marks the handle dead and surrenders its unfired listener.
// Called by the sweeper; the listener runs after the world restarts.
func (w *Weak) expire() func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.alive = false
	if w.listener != nil && !w.fired {
		w.fired = true
		fn := w.listener
		w.listener = nil
		return fn
	}
	return nil
}

// ---------------------------------------------------------------------------
// Weak registry
// ---------------------------------------------------------------------------

// weakRegistry indexes weak handles by table index so the sweeper can
// expire the watchers of a reclaimed entry without scanning every
// handle.
type weakRegistry struct {
	mu      rwMutex
	byIndex map[uint32][]*Weak
}

func newWeakRegistry() *weakRegistry {
	return &weakRegistry{byIndex: make(map[uint32][]*Weak)}
}

func (wr *weakRegistry) register(w *Weak) {
	index := w.target.TableIndex()
	wr.mu.Lock()
	wr.byIndex[index] = append(wr.byIndex[index], w)
	wr.mu.Unlock()
}

// expireEntry expires every handle watching (index, gen), returning
// their pending listeners and the number of handles expired.
// Collector-only; runs while the world is stopped.
func (wr *weakRegistry) expireEntry(index uint32, gen uint16) ([]func(), int) {
	watchers := wr.byIndex[index]
	if len(watchers) == 0 {
		return nil, 0
	}
	var listeners []func()
	expired := 0
	kept := watchers[:0]
	for _, w := range watchers {
		if w.target.Generation() != gen {
			kept = append(kept, w)
			continue
		}
		expired++
		if fn := w.expire(); fn != nil {
			listeners = append(listeners, fn)
		}
	}
	if len(kept) == 0 {
		delete(wr.byIndex, index)
	} else {
		wr.byIndex[index] = kept
	}
	return listeners, expired
}

func (wr *weakRegistry) count() int {
	wr.mu.RLock()
	n := 0
	for _, watchers := range wr.byIndex {
		n += len(watchers)
	}
	wr.mu.RUnlock()
	return n
}
