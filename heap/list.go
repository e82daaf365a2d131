package heap

import (
	"slices"
)

// ---------------------------------------------------------------------------
// List: slotted growable element vectors
// ---------------------------------------------------------------------------

// ListSlot is the built-in payload (internal slot 0) of a list record.
// Mutate it through the isolate's List operations, which hold the
// record lock; the collector reads the elements only while the world is
// stopped.
type ListSlot struct {
	elems []Value
}

// Len returns the element count.
func (l *ListSlot) Len() int { return len(l.elems) }

// ReferencedValues reports the elements for tracing.
func (l *ListSlot) ReferencedValues() []Value { return l.elems }

// MakeList allocates a list record holding the given elements.
func (iso *Isolate) MakeList(ctx *Context, elems ...Value) (Value, *Error) {
	iso.checkAlive("MakeList")
	iso.barrier.enter()
	defer iso.barrier.exit()

	v, err := iso.newRecordValue(KindList, ClassSmall, iso.listProto)
	if err != nil {
		return Undefined, err
	}
	page, slot := iso.store.resolve(v)
	lock := &page.locks[slot]
	lock.Lock()
	page.records[slot].setInternalSlot(InternalSlotBuiltin, &ListSlot{elems: slices.Clone(elems)})
	lock.Unlock()

	for _, e := range elems {
		iso.rememberCross(page, v.TableIndex(), e)
	}
	return v, nil
}

// ListLen returns the element count of a list value.
func (iso *Isolate) ListLen(ctx *Context, v Value) (int, *Error) {
	iso.checkAlive("ListLen")
	iso.barrier.enter()
	defer iso.barrier.exit()

	page, slot, err := iso.listRecord("ListLen", v)
	if err != nil {
		return 0, err
	}
	lock := &page.locks[slot]
	lock.RLock()
	ls, err := listPayload("ListLen", &page.records[slot], v)
	n := 0
	if err == nil {
		n = len(ls.elems)
	}
	lock.RUnlock()
	return n, err
}

// ListGet returns element i of a list value.
func (iso *Isolate) ListGet(ctx *Context, v Value, i int) (Value, *Error) {
	iso.checkAlive("ListGet")
	iso.barrier.enter()
	defer iso.barrier.exit()

	page, slot, err := iso.listRecord("ListGet", v)
	if err != nil {
		return Undefined, err
	}
	lock := &page.locks[slot]
	lock.RLock()
	defer lock.RUnlock()
	ls, err := listPayload("ListGet", &page.records[slot], v)
	if err != nil {
		return Undefined, err
	}
	if i < 0 || i >= len(ls.elems) {
		return Undefined, errorf(ErrIntegerRange, "ListGet",
			"index %d outside list of length %d", i, len(ls.elems))
	}
	return ls.elems[i], nil
}

// ListSet replaces element i of a list value. Denied on frozen records.
func (iso *Isolate) ListSet(ctx *Context, v Value, i int, elem Value) *Error {
	iso.checkAlive("ListSet")
	iso.barrier.enter()
	defer iso.barrier.exit()

	page, slot, err := iso.listRecord("ListSet", v)
	if err != nil {
		return err
	}
	lock := &page.locks[slot]
	lock.Lock()
	rec := &page.records[slot]
	if rec.frozen() {
		lock.Unlock()
		return errorf(ErrFrozen, "ListSet", "record is frozen")
	}
	ls, err := listPayload("ListSet", rec, v)
	if err != nil {
		lock.Unlock()
		return err
	}
	if i < 0 || i >= len(ls.elems) {
		n := len(ls.elems)
		lock.Unlock()
		return errorf(ErrIntegerRange, "ListSet", "index %d outside list of length %d", i, n)
	}
	ls.elems[i] = elem
	lock.Unlock()

	iso.rememberCross(page, v.TableIndex(), elem)
	return nil
}

// ListAppend grows a list value by the given elements. Length changes
// are structural: denied on sealed, frozen and non-extensible records.
func (iso *Isolate) ListAppend(ctx *Context, v Value, elems ...Value) *Error {
	iso.checkAlive("ListAppend")
	iso.barrier.enter()
	defer iso.barrier.exit()

	page, slot, err := iso.listRecord("ListAppend", v)
	if err != nil {
		return err
	}
	lock := &page.locks[slot]
	lock.Lock()
	rec := &page.records[slot]
	switch {
	case rec.frozen():
		lock.Unlock()
		return errorf(ErrFrozen, "ListAppend", "record is frozen")
	case rec.sealed():
		lock.Unlock()
		return errorf(ErrSealed, "ListAppend", "record is sealed")
	case !rec.extensible():
		lock.Unlock()
		return errorf(ErrNotExtensible, "ListAppend", "record is not extensible")
	}
	ls, err := listPayload("ListAppend", rec, v)
	if err != nil {
		lock.Unlock()
		return err
	}
	ls.elems = append(ls.elems, elems...)
	lock.Unlock()

	for _, e := range elems {
		iso.rememberCross(page, v.TableIndex(), e)
	}
	return nil
}

// ListElements copies out a list value's elements.
func (iso *Isolate) ListElements(ctx *Context, v Value) ([]Value, *Error) {
	iso.checkAlive("ListElements")
	iso.barrier.enter()
	defer iso.barrier.exit()

	page, slot, err := iso.listRecord("ListElements", v)
	if err != nil {
		return nil, err
	}
	lock := &page.locks[slot]
	lock.RLock()
	defer lock.RUnlock()
	ls, err := listPayload("ListElements", &page.records[slot], v)
	if err != nil {
		return nil, err
	}
	return slices.Clone(ls.elems), nil
}

func (iso *Isolate) listRecord(op string, v Value) (*Page, uint16, *Error) {
	if !v.IsList() {
		return nil, 0, errorf(ErrTypeMismatch, op, "%s value is not a list", v.Kind())
	}
	page, slot := iso.store.resolve(v)
	return page, slot, nil
}

// listPayload fetches the built-in payload. Caller holds the record
// lock.
func listPayload(op string, rec *Record, v Value) (*ListSlot, *Error) {
	payload, ok := rec.internalSlot(InternalSlotBuiltin)
	ls, good := payload.(*ListSlot)
	if !ok || !good {
		return nil, errorf(ErrInternal, op, "list record %d has no list payload", v.TableIndex())
	}
	return ls, nil
}
