package heap

import (
	"slices"
)

// ---------------------------------------------------------------------------
// Tuple: slotted fixed-arity element vectors
// ---------------------------------------------------------------------------

// TupleSlot is the built-in payload (internal slot 0) of a tuple
// record. The element vector is fixed at construction.
type TupleSlot struct {
	elems []Value
}

// Len returns the arity.
func (t *TupleSlot) Len() int { return len(t.elems) }

// ReferencedValues reports the elements for tracing.
func (t *TupleSlot) ReferencedValues() []Value { return t.elems }

// MakeTuple allocates a tuple record holding the given elements. Tuple
// records are frozen at birth: neither the elements nor the property
// map can be mutated afterwards.
func (iso *Isolate) MakeTuple(ctx *Context, elems ...Value) (Value, *Error) {
	iso.checkAlive("MakeTuple")
	iso.barrier.enter()
	defer iso.barrier.exit()

	v, err := iso.newRecordValue(KindTuple, ClassSmall, iso.tupleProto)
	if err != nil {
		return Undefined, err
	}
	page, slot := iso.store.resolve(v)
	lock := &page.locks[slot]
	lock.Lock()
	rec := &page.records[slot]
	rec.setInternalSlot(InternalSlotBuiltin, &TupleSlot{elems: slices.Clone(elems)})
	rec.freeze()
	lock.Unlock()

	for _, e := range elems {
		iso.rememberCross(page, v.TableIndex(), e)
	}
	return v, nil
}

// TupleLen returns the arity of a tuple value.
func (iso *Isolate) TupleLen(ctx *Context, v Value) (int, *Error) {
	iso.checkAlive("TupleLen")
	iso.barrier.enter()
	defer iso.barrier.exit()

	ts, err := iso.tuplePayload("TupleLen", v)
	if err != nil {
		return 0, err
	}
	return len(ts.elems), nil
}

// TupleGet returns element i of a tuple value.
func (iso *Isolate) TupleGet(ctx *Context, v Value, i int) (Value, *Error) {
	iso.checkAlive("TupleGet")
	iso.barrier.enter()
	defer iso.barrier.exit()

	ts, err := iso.tuplePayload("TupleGet", v)
	if err != nil {
		return Undefined, err
	}
	if i < 0 || i >= len(ts.elems) {
		return Undefined, errorf(ErrIntegerRange, "TupleGet",
			"index %d outside tuple of arity %d", i, len(ts.elems))
	}
	return ts.elems[i], nil
}

// TupleElements copies out a tuple value's elements.
func (iso *Isolate) TupleElements(ctx *Context, v Value) ([]Value, *Error) {
	iso.checkAlive("TupleElements")
	iso.barrier.enter()
	defer iso.barrier.exit()

	ts, err := iso.tuplePayload("TupleElements", v)
	if err != nil {
		return nil, err
	}
	return slices.Clone(ts.elems), nil
}

// tuplePayload resolves the built-in payload of a tuple value. Tuples
// are immutable, so the payload is safe to use after the lock drops.
func (iso *Isolate) tuplePayload(op string, v Value) (*TupleSlot, *Error) {
	if !v.IsTuple() {
		return nil, errorf(ErrTypeMismatch, op, "%s value is not a tuple", v.Kind())
	}
	page, slot := iso.store.resolve(v)
	lock := &page.locks[slot]
	lock.RLock()
	payload, ok := page.records[slot].internalSlot(InternalSlotBuiltin)
	lock.RUnlock()
	ts, good := payload.(*TupleSlot)
	if !ok || !good {
		return nil, errorf(ErrInternal, op, "tuple record %d has no tuple payload", v.TableIndex())
	}
	return ts, nil
}
