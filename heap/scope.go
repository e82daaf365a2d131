package heap

import (
	"github.com/petermattis/goid"
)

// ---------------------------------------------------------------------------
// Handle scopes: lexically scoped Local handles
// ---------------------------------------------------------------------------

// scopeTable tracks each goroutine's stack of open handle scopes.
type scopeTable struct {
	mu     rwMutex
	stacks map[int64][]*HandleScope
}

func newScopeTable() *scopeTable {
	return &scopeTable{stacks: make(map[int64][]*HandleScope)}
}

func (st *scopeTable) push(s *HandleScope) {
	st.mu.Lock()
	st.stacks[s.goroutine] = append(st.stacks[s.goroutine], s)
	st.mu.Unlock()
}

// pop removes the goroutine's innermost scope, which must be s.
func (st *scopeTable) pop(s *HandleScope) *Error {
	st.mu.Lock()
	defer st.mu.Unlock()

	stack := st.stacks[s.goroutine]
	if len(stack) == 0 || stack[len(stack)-1] != s {
		return errorf(ErrHandleExpired, "HandleScope.Close",
			"scope is not the innermost open scope on goroutine %d", s.goroutine)
	}
	stack = stack[:len(stack)-1]
	if len(stack) == 0 {
		delete(st.stacks, s.goroutine)
	} else {
		st.stacks[s.goroutine] = stack
	}
	return nil
}

// top returns the calling goroutine's innermost open scope.
func (st *scopeTable) top() (*HandleScope, bool) {
	id := goid.Get()
	st.mu.RLock()
	defer st.mu.RUnlock()

	stack := st.stacks[id]
	if len(stack) == 0 {
		return nil, false
	}
	return stack[len(stack)-1], true
}

// snapshotValues appends every Local registered in any open scope to
// buf. Collector-only; runs while the world is stopped.
func (st *scopeTable) snapshotValues(buf []Value) []Value {
	for _, stack := range st.stacks {
		for _, s := range stack {
			for _, l := range s.locals {
				buf = append(buf, l.value)
			}
		}
	}
	return buf
}

// ---------------------------------------------------------------------------
// HandleScope and Local
// ---------------------------------------------------------------------------

// HandleScope collects Local handles and releases them together on
// Close. Scopes nest strictly on one goroutine: the innermost open
// scope closes first, and closing any other panics HandleExpired.
type HandleScope struct {
	iso       *Isolate
	goroutine int64
	locals    []*Local
	closed    bool
}

// OpenScope opens a handle scope on the calling goroutine.
func (ctx *Context) OpenScope() *HandleScope {
	iso := ctx.iso
	iso.checkAlive("OpenScope")
	s := &HandleScope{iso: iso, goroutine: goid.Get()}
	iso.barrier.enter()
	iso.scopes.push(s)
	iso.barrier.exit()
	return s
}

// Local registers v in the calling goroutine's innermost open scope.
// Panics HandleExpired when no scope is open.
func (ctx *Context) Local(v Value) *Local {
	iso := ctx.iso
	iso.checkAlive("Local")
	iso.barrier.enter()
	defer iso.barrier.exit()

	s, ok := iso.scopes.top()
	if !ok {
		panic(errorf(ErrHandleExpired, "Local", "no open handle scope on this goroutine"))
	}
	l := &Local{scope: s, value: v}
	s.locals = append(s.locals, l)
	return l
}

// Close releases every Local in the scope. The scope must be the
// innermost open one on its goroutine; closing out of order or twice
// panics HandleExpired.
func (s *HandleScope) Close() {
	s.iso.barrier.enter()
	defer s.iso.barrier.exit()

	if s.closed {
		panic(errorf(ErrHandleExpired, "HandleScope.Close", "scope already closed"))
	}
	if err := s.iso.scopes.pop(s); err != nil {
		panic(err)
	}
	s.closed = true
	s.locals = nil
}

// IsClosed reports whether the scope has been closed.
func (s *HandleScope) IsClosed() bool { return s.closed }

// Local is a handle whose lifetime is its scope's. The referent stays
// rooted while the scope is open.
type Local struct {
	scope *HandleScope
	value Value
}

// Value returns the held value. Panics HandleExpired once the owning
// scope has closed.
func (l *Local) Value() Value {
	if l.scope.closed {
		panic(errorf(ErrHandleExpired, "Local.Value", "owning scope already closed"))
	}
	return l.value
}

// IsAlive reports whether the owning scope is still open.
func (l *Local) IsAlive() bool { return !l.scope.closed }
