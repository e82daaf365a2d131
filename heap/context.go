package heap

// ---------------------------------------------------------------------------
// Context: per-goroutine operation state
// ---------------------------------------------------------------------------

// trapSite identifies one trap activation: which record, which hook,
// which key. An activation already on the stack makes a second entry a
// re-entrancy fault.
type trapSite struct {
	index uint32
	op    TrapOp
	key   Symbol
}

// Context carries the policy and per-goroutine state an operation runs
// under. Contexts are goroutine-affine: create one per goroutine with
// Isolate.NewContext and do not share it. Every object, property and
// handle operation takes the Context explicitly; there is no package
// state.
type Context struct {
	iso *Isolate

	// EnableShortcuts lets GetFast/SetFast consult the field shortcut
	// cache. Defaults to the isolate's configuration.
	EnableShortcuts bool

	// DispatchTraps routes operations through installed SlotTraps.
	// With it off every operation behaves like its IgnoreSlotTrap
	// variant.
	DispatchTraps bool

	active map[trapSite]struct{}
}

// Isolate returns the isolate the context operates on.
func (ctx *Context) Isolate() *Isolate { return ctx.iso }

// enterTrap registers a trap activation, failing when the same hook on
// the same record and key is already running on this goroutine.
func (ctx *Context) enterTrap(site trapSite) *Error {
	if _, ok := ctx.active[site]; ok {
		return errorf(ErrTrapReentrancy, site.op.String(),
			"trap on record %d key %d re-entered itself", site.index, site.key)
	}
	if ctx.active == nil {
		ctx.active = make(map[trapSite]struct{}, 4)
	}
	ctx.active[site] = struct{}{}
	return nil
}

func (ctx *Context) exitTrap(site trapSite) {
	delete(ctx.active, site)
}
