package heap

import (
	"slices"
)

// MaxPrototypeDepth bounds prototype-chain traversal. SetPrototype
// rejects chains past the bound eagerly; lookups keep the same bound as
// a backstop and report PrototypeCycleDetected when they exceed it.
const MaxPrototypeDepth = 128

// ---------------------------------------------------------------------------
// Operation plumbing
// ---------------------------------------------------------------------------

// requireSubject rejects property access on undefined or null.
func requireSubject(op string, subject Value) *Error {
	if subject.IsNil() {
		return errorf(ErrNilTraversal, op, "cannot visit properties of %s", subject.Kind())
	}
	return nil
}

// slotTrapOf fetches a record's slot trap under its read lock.
func slotTrapOf(page *Page, slot uint16) SlotTrap {
	lock := &page.locks[slot]
	lock.RLock()
	st := page.records[slot].slotTrap
	lock.RUnlock()
	return st
}

// peekOwnField reads the current value of a simple field, for TrapInfo
// old-value reporting. Undefined when the key is absent or trapped.
func peekOwnField(page *Page, slot uint16, key Symbol) Value {
	lock := &page.locks[slot]
	lock.RLock()
	defer lock.RUnlock()
	if trap, ok := page.records[slot].lookupTrap(key); ok {
		if field, simple := trap.(*FieldTrap); simple {
			return field.value
		}
	}
	return Undefined
}

// runSlotTrap invokes one slot-trap hook under the re-entrancy guard.
// The record lock is not held; the hook may re-enter the isolate, but
// re-entering the same hook on the same record and key fails with
// TrapReentrancy.
func (ctx *Context) runSlotTrap(info TrapInfo, hook func(*Context, TrapInfo) TrapResult) (TrapResult, *Error) {
	site := trapSite{index: info.Subject.TableIndex(), op: info.Op, key: info.Key}
	if err := ctx.enterTrap(site); err != nil {
		return Skip, err
	}
	defer ctx.exitTrap(site)
	return hook(ctx, info), nil
}

// runTrapGet invokes a custom property trap's getter under the
// re-entrancy guard.
func (ctx *Context) runTrapGet(trap PropertyTrap, info TrapInfo) (Value, *Error) {
	site := trapSite{index: info.Subject.TableIndex(), op: info.Op, key: info.Key}
	if err := ctx.enterTrap(site); err != nil {
		return Undefined, err
	}
	defer ctx.exitTrap(site)
	return trap.Get(ctx, info)
}

// runTrapSet invokes a custom property trap's setter under the
// re-entrancy guard.
func (ctx *Context) runTrapSet(trap PropertyTrap, info TrapInfo) *Error {
	site := trapSite{index: info.Subject.TableIndex(), op: info.Op, key: info.Key}
	if err := ctx.enterTrap(site); err != nil {
		return err
	}
	defer ctx.exitTrap(site)
	return trap.Set(ctx, info)
}

// ---------------------------------------------------------------------------
// Prototype link
// ---------------------------------------------------------------------------

// GetPrototype returns the subject's prototype. Plain primitives report
// their kind's builtin prototype; slotted subjects may be intercepted
// by an installed slot trap.
func (iso *Isolate) GetPrototype(ctx *Context, subject Value) (Value, *Error) {
	iso.checkAlive("GetPrototype")
	iso.barrier.enter()
	defer iso.barrier.exit()
	if err := requireSubject("GetPrototype", subject); err != nil {
		return Undefined, err
	}
	return iso.prototypeOf(ctx, subject, ctx.DispatchTraps)
}

// GetPrototypeIgnoreSlotTrap is GetPrototype without slot-trap
// dispatch, for trap implementations reaching through themselves.
func (iso *Isolate) GetPrototypeIgnoreSlotTrap(ctx *Context, subject Value) (Value, *Error) {
	iso.checkAlive("GetPrototype")
	iso.barrier.enter()
	defer iso.barrier.exit()
	if err := requireSubject("GetPrototype", subject); err != nil {
		return Undefined, err
	}
	return iso.prototypeOf(ctx, subject, false)
}

// prototypeOf is the barrier-free inner form shared by chain walks.
func (iso *Isolate) prototypeOf(ctx *Context, subject Value, dispatch bool) (Value, *Error) {
	if !subject.IsSlotted() {
		return iso.kindPrototype(subject), nil
	}
	page, slot := iso.store.resolve(subject)
	if dispatch {
		if st := slotTrapOf(page, slot); st != nil {
			info := TrapInfo{Subject: subject, Op: TrapGetPrototype, Key: iso.prototypeSym}
			res, err := ctx.runSlotTrap(info, st.GetPrototype)
			if err != nil {
				return Undefined, err
			}
			if res.IsTrapped() {
				return res.Value(), nil
			}
			if res.IsThrown() {
				return Undefined, res.Err()
			}
		}
	}
	lock := &page.locks[slot]
	lock.RLock()
	proto := page.records[slot].prototype
	lock.RUnlock()
	return proto, nil
}

// SetPrototype replaces the subject's prototype. The proposed chain is
// checked for cycles eagerly, so cycle errors surface at write time.
func (iso *Isolate) SetPrototype(ctx *Context, subject, prototype Value) *Error {
	return iso.setPrototype(ctx, subject, prototype, ctx.DispatchTraps)
}

// SetPrototypeIgnoreSlotTrap is SetPrototype without slot-trap dispatch.
func (iso *Isolate) SetPrototypeIgnoreSlotTrap(ctx *Context, subject, prototype Value) *Error {
	return iso.setPrototype(ctx, subject, prototype, false)
}

func (iso *Isolate) setPrototype(ctx *Context, subject, prototype Value, dispatch bool) *Error {
	iso.checkAlive("SetPrototype")
	iso.barrier.enter()
	defer iso.barrier.exit()

	if err := requireSubject("SetPrototype", subject); err != nil {
		return err
	}
	if !subject.IsSlotted() {
		return errorf(ErrTypeMismatch, "SetPrototype",
			"cannot set the prototype of a %s value", subject.Kind())
	}
	if !prototype.IsNull() && !prototype.IsObject() {
		return errorf(ErrTypeMismatch, "SetPrototype",
			"%s value cannot serve as a prototype", prototype.Kind())
	}
	if prototype.IsSlotted() {
		iso.store.resolve(prototype)
	}
	page, slot := iso.store.resolve(subject)

	if dispatch {
		if st := slotTrapOf(page, slot); st != nil {
			lock := &page.locks[slot]
			lock.RLock()
			old := page.records[slot].prototype
			lock.RUnlock()
			info := TrapInfo{Subject: subject, Op: TrapSetPrototype, Key: iso.prototypeSym, Old: old, New: prototype}
			res, err := ctx.runSlotTrap(info, st.SetPrototype)
			if err != nil {
				return err
			}
			if res.IsTrapped() {
				return nil
			}
			if res.IsThrown() {
				return res.Err()
			}
		}
	}

	if err := iso.checkPrototypeCycle(subject, prototype); err != nil {
		return err
	}

	lock := &page.locks[slot]
	lock.Lock()
	rec := &page.records[slot]
	if !rec.extensible() {
		lock.Unlock()
		return errorf(ErrNotExtensible, "SetPrototype", "record is not extensible")
	}
	rec.prototype = prototype
	lock.Unlock()

	iso.rememberCross(page, subject.TableIndex(), prototype)
	return nil
}

// checkPrototypeCycle rejects an assignment that would make subject
// reachable from its own prototype chain. The walk reads raw prototype
// links so a trap cannot mask a cycle.
func (iso *Isolate) checkPrototypeCycle(subject, prototype Value) *Error {
	current := prototype
	for depth := 0; depth < MaxPrototypeDepth; depth++ {
		if !current.IsSlotted() {
			return nil
		}
		if current.TableIndex() == subject.TableIndex() && current.Generation() == subject.Generation() {
			return errorf(ErrPrototypeCycleDetected, "SetPrototype",
				"record %d would appear in its own prototype chain", subject.TableIndex())
		}
		page, slot, ok := iso.store.tryResolve(current)
		if !ok {
			return nil
		}
		lock := &page.locks[slot]
		lock.RLock()
		current = page.records[slot].prototype
		lock.RUnlock()
	}
	return errorf(ErrPrototypeCycleDetected, "SetPrototype",
		"prototype chain exceeds %d links", MaxPrototypeDepth)
}

// ---------------------------------------------------------------------------
// Own properties
// ---------------------------------------------------------------------------

// HasOwnProperty reports whether the subject itself holds key, without
// consulting the prototype chain.
func (iso *Isolate) HasOwnProperty(ctx *Context, subject Value, key Symbol) (bool, *Error) {
	iso.checkAlive("HasOwnProperty")
	iso.barrier.enter()
	defer iso.barrier.exit()
	if err := requireSubject("HasOwnProperty", subject); err != nil {
		return false, err
	}
	return iso.hasOwnProperty(ctx, subject, key, ctx.DispatchTraps)
}

func (iso *Isolate) hasOwnProperty(ctx *Context, subject Value, key Symbol, dispatch bool) (bool, *Error) {
	if !subject.IsSlotted() {
		return false, nil
	}
	page, slot := iso.store.resolve(subject)
	if dispatch {
		if st := slotTrapOf(page, slot); st != nil {
			info := TrapInfo{Subject: subject, Op: TrapHasProperty, Key: key}
			res, err := ctx.runSlotTrap(info, st.HasProperty)
			if err != nil {
				return false, err
			}
			if res.IsTrapped() {
				return res.Value().IsTruthy(), nil
			}
			if res.IsThrown() {
				return false, res.Err()
			}
		}
	}
	lock := &page.locks[slot]
	lock.RLock()
	_, ok := page.records[slot].lookupTrap(key)
	lock.RUnlock()
	return ok, nil
}

// GetOwnProperty returns the subject's own property value, Undefined
// when absent. The prototype chain is not consulted.
func (iso *Isolate) GetOwnProperty(ctx *Context, subject Value, key Symbol) (Value, *Error) {
	iso.checkAlive("GetOwnProperty")
	iso.barrier.enter()
	defer iso.barrier.exit()
	if err := requireSubject("GetOwnProperty", subject); err != nil {
		return Undefined, err
	}
	v, _, err := iso.ownProperty(ctx, subject, key, ctx.DispatchTraps)
	return v, err
}

// GetOwnPropertyIgnoreSlotTrap is GetOwnProperty without slot-trap
// dispatch.
func (iso *Isolate) GetOwnPropertyIgnoreSlotTrap(ctx *Context, subject Value, key Symbol) (Value, *Error) {
	iso.checkAlive("GetOwnProperty")
	iso.barrier.enter()
	defer iso.barrier.exit()
	if err := requireSubject("GetOwnProperty", subject); err != nil {
		return Undefined, err
	}
	v, _, err := iso.ownProperty(ctx, subject, key, false)
	return v, err
}

// ownProperty resolves an own property: slot trap first, then the map.
// Simple fields are read under the record's read lock; custom traps run
// unlocked under the re-entrancy guard.
func (iso *Isolate) ownProperty(ctx *Context, subject Value, key Symbol, dispatch bool) (Value, bool, *Error) {
	if !subject.IsSlotted() {
		return Undefined, false, nil
	}
	page, slot := iso.store.resolve(subject)
	if dispatch {
		if st := slotTrapOf(page, slot); st != nil {
			info := TrapInfo{Subject: subject, Op: TrapGetProperty, Key: key}
			res, err := ctx.runSlotTrap(info, st.GetProperty)
			if err != nil {
				return Undefined, false, err
			}
			if res.IsTrapped() {
				return res.Value(), true, nil
			}
			if res.IsThrown() {
				return Undefined, false, res.Err()
			}
		}
	}
	lock := &page.locks[slot]
	lock.RLock()
	trap, ok := page.records[slot].lookupTrap(key)
	if !ok {
		lock.RUnlock()
		return Undefined, false, nil
	}
	if field, simple := trap.(*FieldTrap); simple {
		v := field.value
		lock.RUnlock()
		return v, true, nil
	}
	lock.RUnlock()
	v, err := ctx.runTrapGet(trap, TrapInfo{Subject: subject, Op: TrapGetProperty, Key: key})
	if err != nil {
		return Undefined, false, err
	}
	return v, true, nil
}

// SetOwnProperty writes an own property. An absent key installs a new
// simple field when the flags allow it; the prototype chain is never
// consulted, so writes shadow inherited properties.
func (iso *Isolate) SetOwnProperty(ctx *Context, subject Value, key Symbol, v Value) *Error {
	return iso.setOwnProperty(ctx, subject, key, v, ctx.DispatchTraps)
}

// SetOwnPropertyIgnoreSlotTrap is SetOwnProperty without slot-trap
// dispatch.
func (iso *Isolate) SetOwnPropertyIgnoreSlotTrap(ctx *Context, subject Value, key Symbol, v Value) *Error {
	return iso.setOwnProperty(ctx, subject, key, v, false)
}

func (iso *Isolate) setOwnProperty(ctx *Context, subject Value, key Symbol, v Value, dispatch bool) *Error {
	iso.checkAlive("SetOwnProperty")
	iso.barrier.enter()
	defer iso.barrier.exit()

	if err := requireSubject("SetOwnProperty", subject); err != nil {
		return err
	}
	if !subject.IsSlotted() {
		return errorf(ErrFrozen, "SetOwnProperty", "%s values are frozen", subject.Kind())
	}
	page, slot := iso.store.resolve(subject)

	if dispatch {
		if st := slotTrapOf(page, slot); st != nil {
			info := TrapInfo{Subject: subject, Op: TrapSetProperty, Key: key,
				Old: peekOwnField(page, slot, key), New: v}
			res, err := ctx.runSlotTrap(info, st.SetProperty)
			if err != nil {
				return err
			}
			if res.IsTrapped() {
				iso.rememberCross(page, subject.TableIndex(), v)
				return nil
			}
			if res.IsThrown() {
				return res.Err()
			}
		}
	}

	lock := &page.locks[slot]
	lock.Lock()
	rec := &page.records[slot]
	if rec.frozen() {
		lock.Unlock()
		return errorf(ErrFrozen, "SetOwnProperty", "record is frozen")
	}
	if trap, ok := rec.lookupTrap(key); ok {
		if field, simple := trap.(*FieldTrap); simple {
			field.value = v
			if rec.shortcuts != nil {
				rec.shortcuts.writeThrough(key, v)
			}
			lock.Unlock()
			iso.rememberCross(page, subject.TableIndex(), v)
			return nil
		}
		lock.Unlock()
		info := TrapInfo{Subject: subject, Op: TrapSetProperty, Key: key, New: v}
		if err := ctx.runTrapSet(trap, info); err != nil {
			return err
		}
		iso.rememberCross(page, subject.TableIndex(), v)
		return nil
	}
	if rec.sealed() {
		lock.Unlock()
		return errorf(ErrSealed, "SetOwnProperty", "record is sealed")
	}
	if !rec.extensible() {
		lock.Unlock()
		return errorf(ErrNotExtensible, "SetOwnProperty", "record is not extensible")
	}
	rec.storeTrap(key, NewFieldTrap(v))
	rec.invalidateShape()
	lock.Unlock()
	iso.rememberCross(page, subject.TableIndex(), v)
	return nil
}

// DefineOwnProperty installs a property trap under key, replacing any
// existing entry. Structural: denied on sealed and frozen records, and
// on non-extensible records when the key is new.
func (iso *Isolate) DefineOwnProperty(ctx *Context, subject Value, key Symbol, trap PropertyTrap) *Error {
	return iso.defineOwnProperty(ctx, subject, key, trap, ctx.DispatchTraps)
}

// DefineOwnPropertyIgnoreSlotTrap is DefineOwnProperty without
// slot-trap dispatch.
func (iso *Isolate) DefineOwnPropertyIgnoreSlotTrap(ctx *Context, subject Value, key Symbol, trap PropertyTrap) *Error {
	return iso.defineOwnProperty(ctx, subject, key, trap, false)
}

func (iso *Isolate) defineOwnProperty(ctx *Context, subject Value, key Symbol, trap PropertyTrap, dispatch bool) *Error {
	iso.checkAlive("DefineOwnProperty")
	iso.barrier.enter()
	defer iso.barrier.exit()

	if err := requireSubject("DefineOwnProperty", subject); err != nil {
		return err
	}
	if !subject.IsSlotted() {
		return errorf(ErrFrozen, "DefineOwnProperty", "%s values are frozen", subject.Kind())
	}
	if trap == nil {
		return errorf(ErrTypeMismatch, "DefineOwnProperty", "property trap must not be nil")
	}
	page, slot := iso.store.resolve(subject)

	if dispatch {
		if st := slotTrapOf(page, slot); st != nil {
			info := TrapInfo{Subject: subject, Op: TrapDefineProperty, Key: key,
				Old: peekOwnField(page, slot, key), Trap: trap}
			res, err := ctx.runSlotTrap(info, st.DefineProperty)
			if err != nil {
				return err
			}
			if res.IsTrapped() {
				return nil
			}
			if res.IsThrown() {
				return res.Err()
			}
		}
	}

	lock := &page.locks[slot]
	lock.Lock()
	rec := &page.records[slot]
	if rec.frozen() {
		lock.Unlock()
		return errorf(ErrFrozen, "DefineOwnProperty", "record is frozen")
	}
	if rec.sealed() {
		lock.Unlock()
		return errorf(ErrSealed, "DefineOwnProperty", "record is sealed")
	}
	if _, exists := rec.lookupTrap(key); !exists && !rec.extensible() {
		lock.Unlock()
		return errorf(ErrNotExtensible, "DefineOwnProperty", "record is not extensible")
	}
	rec.storeTrap(key, trap)
	rec.invalidateShape()
	lock.Unlock()

	if rep, ok := trap.(ValueReporter); ok {
		for _, rv := range rep.ReferencedValues() {
			iso.rememberCross(page, subject.TableIndex(), rv)
		}
	}
	return nil
}

// DeleteOwnProperty removes an own property. Deleting an absent key is
// not an error; deletion on sealed or frozen records is denied.
func (iso *Isolate) DeleteOwnProperty(ctx *Context, subject Value, key Symbol) *Error {
	return iso.deleteOwnProperty(ctx, subject, key, ctx.DispatchTraps)
}

// DeleteOwnPropertyIgnoreSlotTrap is DeleteOwnProperty without
// slot-trap dispatch.
func (iso *Isolate) DeleteOwnPropertyIgnoreSlotTrap(ctx *Context, subject Value, key Symbol) *Error {
	return iso.deleteOwnProperty(ctx, subject, key, false)
}

func (iso *Isolate) deleteOwnProperty(ctx *Context, subject Value, key Symbol, dispatch bool) *Error {
	iso.checkAlive("DeleteOwnProperty")
	iso.barrier.enter()
	defer iso.barrier.exit()

	if err := requireSubject("DeleteOwnProperty", subject); err != nil {
		return err
	}
	if !subject.IsSlotted() {
		return errorf(ErrFrozen, "DeleteOwnProperty", "%s values are frozen", subject.Kind())
	}
	page, slot := iso.store.resolve(subject)

	if dispatch {
		if st := slotTrapOf(page, slot); st != nil {
			info := TrapInfo{Subject: subject, Op: TrapDeleteProperty, Key: key,
				Old: peekOwnField(page, slot, key)}
			res, err := ctx.runSlotTrap(info, st.DeleteProperty)
			if err != nil {
				return err
			}
			if res.IsTrapped() {
				return nil
			}
			if res.IsThrown() {
				return res.Err()
			}
		}
	}

	lock := &page.locks[slot]
	lock.Lock()
	rec := &page.records[slot]
	if rec.frozen() {
		lock.Unlock()
		return errorf(ErrFrozen, "DeleteOwnProperty", "record is frozen")
	}
	if rec.sealed() {
		lock.Unlock()
		return errorf(ErrSealed, "DeleteOwnProperty", "record is sealed")
	}
	if rec.removeTrap(key) {
		rec.invalidateShape()
	}
	lock.Unlock()
	return nil
}

// ListOwnPropertySymbols returns the subject's own property symbols in
// ascending order.
func (iso *Isolate) ListOwnPropertySymbols(ctx *Context, subject Value) ([]Symbol, *Error) {
	iso.checkAlive("ListOwnPropertySymbols")
	iso.barrier.enter()
	defer iso.barrier.exit()
	if err := requireSubject("ListOwnPropertySymbols", subject); err != nil {
		return nil, err
	}
	return iso.listOwnPropertySymbols(ctx, subject, ctx.DispatchTraps)
}

// ListOwnPropertySymbolsIgnoreSlotTrap is ListOwnPropertySymbols
// without slot-trap dispatch.
func (iso *Isolate) ListOwnPropertySymbolsIgnoreSlotTrap(ctx *Context, subject Value) ([]Symbol, *Error) {
	iso.checkAlive("ListOwnPropertySymbols")
	iso.barrier.enter()
	defer iso.barrier.exit()
	if err := requireSubject("ListOwnPropertySymbols", subject); err != nil {
		return nil, err
	}
	return iso.listOwnPropertySymbols(ctx, subject, false)
}

func (iso *Isolate) listOwnPropertySymbols(ctx *Context, subject Value, dispatch bool) ([]Symbol, *Error) {
	if !subject.IsSlotted() {
		return nil, nil
	}
	page, slot := iso.store.resolve(subject)
	if dispatch {
		if st := slotTrapOf(page, slot); st != nil {
			info := TrapInfo{Subject: subject, Op: TrapListSymbols}
			site := trapSite{index: subject.TableIndex(), op: TrapListSymbols}
			if err := ctx.enterTrap(site); err != nil {
				return nil, err
			}
			syms, res := st.ListSymbols(ctx, info)
			ctx.exitTrap(site)
			if res.IsTrapped() {
				sorted := slices.Clone(syms)
				slices.Sort(sorted)
				return sorted, nil
			}
			if res.IsThrown() {
				return nil, res.Err()
			}
		}
	}
	lock := &page.locks[slot]
	lock.RLock()
	keys := page.records[slot].ownKeys()
	lock.RUnlock()
	slices.Sort(keys)
	return keys, nil
}

// ---------------------------------------------------------------------------
// Prototype-chain lookup
// ---------------------------------------------------------------------------

// GetProperty resolves key along the prototype chain, returning
// Undefined when the chain ends at null without a match.
func (iso *Isolate) GetProperty(ctx *Context, subject Value, key Symbol) (Value, *Error) {
	iso.checkAlive("GetProperty")
	iso.barrier.enter()
	defer iso.barrier.exit()
	return iso.getProperty(ctx, subject, key)
}

func (iso *Isolate) getProperty(ctx *Context, subject Value, key Symbol) (Value, *Error) {
	if err := requireSubject("GetProperty", subject); err != nil {
		return Undefined, err
	}
	current := subject
	for depth := 0; depth < MaxPrototypeDepth; depth++ {
		if current.IsNil() {
			return Undefined, nil
		}
		if current.IsSlotted() {
			v, found, err := iso.ownProperty(ctx, current, key, ctx.DispatchTraps)
			if err != nil {
				return Undefined, err
			}
			if found {
				return v, nil
			}
		}
		proto, err := iso.prototypeOf(ctx, current, ctx.DispatchTraps)
		if err != nil {
			return Undefined, err
		}
		current = proto
	}
	return Undefined, errorf(ErrPrototypeCycleDetected, "GetProperty",
		"prototype chain exceeds %d links while resolving symbol %d", MaxPrototypeDepth, key)
}

// HasProperty reports whether key resolves anywhere along the
// prototype chain.
func (iso *Isolate) HasProperty(ctx *Context, subject Value, key Symbol) (bool, *Error) {
	iso.checkAlive("HasProperty")
	iso.barrier.enter()
	defer iso.barrier.exit()

	if err := requireSubject("HasProperty", subject); err != nil {
		return false, err
	}
	current := subject
	for depth := 0; depth < MaxPrototypeDepth; depth++ {
		if current.IsNil() {
			return false, nil
		}
		if current.IsSlotted() {
			has, err := iso.hasOwnProperty(ctx, current, key, ctx.DispatchTraps)
			if err != nil {
				return false, err
			}
			if has {
				return true, nil
			}
		}
		proto, err := iso.prototypeOf(ctx, current, ctx.DispatchTraps)
		if err != nil {
			return false, err
		}
		current = proto
	}
	return false, errorf(ErrPrototypeCycleDetected, "HasProperty",
		"prototype chain exceeds %d links while resolving symbol %d", MaxPrototypeDepth, key)
}

// ListPropertySymbols returns the union of own property symbols along
// the prototype chain, ascending and deduplicated.
func (iso *Isolate) ListPropertySymbols(ctx *Context, subject Value) ([]Symbol, *Error) {
	iso.checkAlive("ListPropertySymbols")
	iso.barrier.enter()
	defer iso.barrier.exit()

	if err := requireSubject("ListPropertySymbols", subject); err != nil {
		return nil, err
	}
	seen := make(map[Symbol]struct{})
	current := subject
	for depth := 0; depth < MaxPrototypeDepth; depth++ {
		if current.IsNil() {
			keys := make([]Symbol, 0, len(seen))
			for key := range seen {
				keys = append(keys, key)
			}
			slices.Sort(keys)
			return keys, nil
		}
		if current.IsSlotted() {
			own, err := iso.listOwnPropertySymbols(ctx, current, ctx.DispatchTraps)
			if err != nil {
				return nil, err
			}
			for _, key := range own {
				seen[key] = struct{}{}
			}
		}
		proto, err := iso.prototypeOf(ctx, current, ctx.DispatchTraps)
		if err != nil {
			return nil, err
		}
		current = proto
	}
	return nil, errorf(ErrPrototypeCycleDetected, "ListPropertySymbols",
		"prototype chain exceeds %d links", MaxPrototypeDepth)
}

// ---------------------------------------------------------------------------
// Text-keyed convenience
// ---------------------------------------------------------------------------

// GetPropertyText resolves a public-scope text key along the chain.
func (iso *Isolate) GetPropertyText(ctx *Context, subject Value, name string) (Value, *Error) {
	return iso.GetProperty(ctx, subject, iso.Intern(name))
}

// SetPropertyText writes an own property under a public-scope text key.
func (iso *Isolate) SetPropertyText(ctx *Context, subject Value, name string, v Value) *Error {
	return iso.SetOwnProperty(ctx, subject, iso.Intern(name), v)
}

// HasPropertyText reports a public-scope text key along the chain.
func (iso *Isolate) HasPropertyText(ctx *Context, subject Value, name string) (bool, *Error) {
	return iso.HasProperty(ctx, subject, iso.Intern(name))
}

// DeletePropertyText deletes an own property under a public-scope text
// key.
func (iso *Isolate) DeletePropertyText(ctx *Context, subject Value, name string) *Error {
	return iso.DeleteOwnProperty(ctx, subject, iso.Intern(name))
}

// ---------------------------------------------------------------------------
// Integrity levels
// ---------------------------------------------------------------------------

// PreventExtensions forbids adding properties. Primitives are already
// frozen; the call is a no-op for them.
func (iso *Isolate) PreventExtensions(ctx *Context, subject Value) *Error {
	return iso.restrict("PreventExtensions", subject, (*Record).preventExtensions)
}

// Seal forbids adding, defining and deleting properties.
func (iso *Isolate) Seal(ctx *Context, subject Value) *Error {
	return iso.restrict("Seal", subject, (*Record).seal)
}

// Freeze forbids every property mutation.
func (iso *Isolate) Freeze(ctx *Context, subject Value) *Error {
	return iso.restrict("Freeze", subject, (*Record).freeze)
}

func (iso *Isolate) restrict(op string, subject Value, apply func(*Record)) *Error {
	iso.checkAlive(op)
	iso.barrier.enter()
	defer iso.barrier.exit()

	if err := requireSubject(op, subject); err != nil {
		return err
	}
	if !subject.IsSlotted() {
		return nil
	}
	page, slot := iso.store.resolve(subject)
	lock := &page.locks[slot]
	lock.Lock()
	apply(&page.records[slot])
	lock.Unlock()
	return nil
}

// IsExtensible reports whether properties may be added. Primitives are
// never extensible.
func (iso *Isolate) IsExtensible(ctx *Context, subject Value) (bool, *Error) {
	return iso.inspectFlags("IsExtensible", subject, false, (*Record).extensible)
}

// IsSealed reports whether structural mutation is denied. Primitives
// report sealed.
func (iso *Isolate) IsSealed(ctx *Context, subject Value) (bool, *Error) {
	return iso.inspectFlags("IsSealed", subject, true, (*Record).sealed)
}

// IsFrozen reports whether all property mutation is denied. Primitives
// report frozen.
func (iso *Isolate) IsFrozen(ctx *Context, subject Value) (bool, *Error) {
	return iso.inspectFlags("IsFrozen", subject, true, (*Record).frozen)
}

func (iso *Isolate) inspectFlags(op string, subject Value, primitive bool, read func(*Record) bool) (bool, *Error) {
	iso.checkAlive(op)
	iso.barrier.enter()
	defer iso.barrier.exit()

	if err := requireSubject(op, subject); err != nil {
		return false, err
	}
	if !subject.IsSlotted() {
		return primitive, nil
	}
	page, slot := iso.store.resolve(subject)
	lock := &page.locks[slot]
	lock.RLock()
	out := read(&page.records[slot])
	lock.RUnlock()
	return out, nil
}

// ---------------------------------------------------------------------------
// Shortcut-accelerated access
// ---------------------------------------------------------------------------

// GetFast reads an own simple field through the field shortcut cache.
// A current token serves the value straight from the cache; a stale or
// unbound token refreshes lazily through the ordinary lookup path.
// Records carrying a slot trap are never cached.
func (iso *Isolate) GetFast(ctx *Context, subject Value, token *FieldToken) (Value, *Error) {
	iso.checkAlive("GetFast")
	iso.barrier.enter()
	defer iso.barrier.exit()

	if err := requireSubject("GetFast", subject); err != nil {
		return Undefined, err
	}
	if !ctx.EnableShortcuts || !subject.IsSlotted() {
		return iso.getProperty(ctx, subject, token.key)
	}
	page, slot := iso.store.resolve(subject)
	lock := &page.locks[slot]

	lock.RLock()
	rec := &page.records[slot]
	if fs := rec.shortcuts; fs != nil && token.matches(fs) {
		if v, ok := fs.load(token.index); ok {
			lock.RUnlock()
			return v, nil
		}
	}
	lock.RUnlock()

	lock.Lock()
	if rec.slotTrap == nil {
		if trap, ok := rec.lookupTrap(token.key); ok {
			if field, simple := trap.(*FieldTrap); simple {
				if rec.shortcuts == nil {
					rec.shortcuts = newFieldShortcuts(subject.TableIndex())
				}
				if i, bound := rec.shortcuts.bind(token.key); bound {
					rec.shortcuts.fill(i, field)
					token.rebind(rec.shortcuts, i)
				}
				v := field.value
				lock.Unlock()
				return v, nil
			}
		}
	}
	lock.Unlock()
	return iso.getProperty(ctx, subject, token.key)
}

// SetFast writes an own simple field through the field shortcut cache,
// falling back to SetOwnProperty and rebinding on a miss.
func (iso *Isolate) SetFast(ctx *Context, subject Value, token *FieldToken, v Value) *Error {
	iso.checkAlive("SetFast")
	iso.barrier.enter()
	defer iso.barrier.exit()

	if err := requireSubject("SetFast", subject); err != nil {
		return err
	}
	if !ctx.EnableShortcuts || !subject.IsSlotted() {
		return iso.setOwnProperty(ctx, subject, token.key, v, ctx.DispatchTraps)
	}
	page, slot := iso.store.resolve(subject)
	lock := &page.locks[slot]

	lock.Lock()
	rec := &page.records[slot]
	if fs := rec.shortcuts; fs != nil && token.matches(fs) && !rec.frozen() {
		if fs.store(token.index, v) {
			lock.Unlock()
			iso.rememberCross(page, subject.TableIndex(), v)
			return nil
		}
	}
	lock.Unlock()

	if err := iso.setOwnProperty(ctx, subject, token.key, v, ctx.DispatchTraps); err != nil {
		return err
	}

	lock.Lock()
	if rec.slotTrap == nil {
		if trap, ok := rec.lookupTrap(token.key); ok {
			if field, simple := trap.(*FieldTrap); simple {
				if rec.shortcuts == nil {
					rec.shortcuts = newFieldShortcuts(subject.TableIndex())
				}
				if i, bound := rec.shortcuts.bind(token.key); bound {
					rec.shortcuts.fill(i, field)
					token.rebind(rec.shortcuts, i)
				}
			}
		}
	}
	lock.Unlock()
	return nil
}
