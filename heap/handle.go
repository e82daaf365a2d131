package heap

import (
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Root set
// ---------------------------------------------------------------------------

// rootSet holds the refcounted root registrations behind Pinned,
// Persistent and Local handles. Rooting the same referent twice holds a
// count of two, so releasing one handle never unroots the other.
// Non-slotted values are accepted and ignored: primitives are not
// collected.
type rootSet struct {
	mu   rwMutex
	refs map[Value]uint32
}

func newRootSet() *rootSet {
	return &rootSet{refs: make(map[Value]uint32)}
}

func (r *rootSet) root(v Value) {
	if !v.IsSlotted() {
		return
	}
	r.mu.Lock()
	r.refs[v]++
	r.mu.Unlock()
}

func (r *rootSet) unroot(v Value) {
	if !v.IsSlotted() {
		return
	}
	r.mu.Lock()
	if n := r.refs[v]; n > 1 {
		r.refs[v] = n - 1
	} else {
		delete(r.refs, v)
	}
	r.mu.Unlock()
}

// snapshot appends every rooted value to buf. Collector-only.
func (r *rootSet) snapshot(buf []Value) []Value {
	for v := range r.refs {
		buf = append(buf, v)
	}
	return buf
}

func (r *rootSet) count() int {
	r.mu.RLock()
	n := len(r.refs)
	r.mu.RUnlock()
	return n
}

// ---------------------------------------------------------------------------
// Pinned handles
// ---------------------------------------------------------------------------

// Pinned roots its referent until Release. Cheap to create, intended
// for short non-lexical lifetimes where a scope does not fit.
type Pinned struct {
	iso      *Isolate
	value    Value
	released atomic.Bool
}

// Pin roots v and returns the handle.
func (ctx *Context) Pin(v Value) *Pinned {
	iso := ctx.iso
	iso.checkAlive("Pin")
	iso.barrier.enter()
	iso.roots.root(v)
	iso.barrier.exit()
	return &Pinned{iso: iso, value: v}
}

// Value returns the pinned value. Panics HandleExpired after Release.
func (h *Pinned) Value() Value {
	if h.released.Load() {
		panic(errorf(ErrHandleExpired, "Pinned.Value", "handle already released"))
	}
	return h.value
}

// IsReleased reports whether Release has run.
func (h *Pinned) IsReleased() bool { return h.released.Load() }

// Release unroots the referent. Releasing twice panics HandleExpired.
func (h *Pinned) Release() {
	if h.released.Swap(true) {
		panic(errorf(ErrHandleExpired, "Pinned.Release", "handle already released"))
	}
	h.iso.barrier.enter()
	h.iso.roots.unroot(h.value)
	h.iso.barrier.exit()
}

// ---------------------------------------------------------------------------
// Persistent handles
// ---------------------------------------------------------------------------

// Persistent roots its referent until Unregister; it is never released
// automatically. Sharing one across goroutines requires external
// synchronization, as with any long-lived registration.
type Persistent struct {
	iso      *Isolate
	value    Value
	released atomic.Bool
}

// Persistent roots v for the life of the registration.
func (iso *Isolate) Persistent(v Value) *Persistent {
	iso.checkAlive("Persistent")
	iso.barrier.enter()
	iso.roots.root(v)
	iso.barrier.exit()
	return &Persistent{iso: iso, value: v}
}

// Value returns the registered value. Panics HandleExpired after
// Unregister.
func (h *Persistent) Value() Value {
	if h.released.Load() {
		panic(errorf(ErrHandleExpired, "Persistent.Value", "registration already removed"))
	}
	return h.value
}

// Unregister unroots the referent. Unregistering twice panics
// HandleExpired.
func (h *Persistent) Unregister() {
	if h.released.Swap(true) {
		panic(errorf(ErrHandleExpired, "Persistent.Unregister", "registration already removed"))
	}
	h.iso.barrier.enter()
	h.iso.roots.unroot(h.value)
	h.iso.barrier.exit()
}
