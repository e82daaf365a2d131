package heap

// ---------------------------------------------------------------------------
// Text: slotted immutable strings
// ---------------------------------------------------------------------------

// TextSlot is the built-in payload (internal slot 0) of a text record.
// The string is immutable; replacing a text means allocating a new one.
type TextSlot struct {
	text string
}

// String returns the payload.
func (t *TextSlot) String() string { return t.text }

// MakeText allocates a text record holding s. The record's prototype is
// the builtin text prototype; the record itself stays extensible, only
// the string payload is fixed.
func (iso *Isolate) MakeText(ctx *Context, s string) (Value, *Error) {
	iso.checkAlive("MakeText")
	iso.barrier.enter()
	defer iso.barrier.exit()

	v, err := iso.newRecordValue(KindText, ClassSmall, iso.textProto)
	if err != nil {
		return Undefined, err
	}
	page, slot := iso.store.resolve(v)
	lock := &page.locks[slot]
	lock.Lock()
	page.records[slot].setInternalSlot(InternalSlotBuiltin, &TextSlot{text: s})
	lock.Unlock()
	return v, nil
}

// Text extracts the string payload of a text value.
func (iso *Isolate) Text(ctx *Context, v Value) (string, *Error) {
	iso.checkAlive("Text")
	iso.barrier.enter()
	defer iso.barrier.exit()

	ts, err := iso.textPayload("Text", v)
	if err != nil {
		return "", err
	}
	return ts.text, nil
}

// TextLen returns the byte length of a text value's payload.
func (iso *Isolate) TextLen(ctx *Context, v Value) (int, *Error) {
	iso.checkAlive("TextLen")
	iso.barrier.enter()
	defer iso.barrier.exit()

	ts, err := iso.textPayload("TextLen", v)
	if err != nil {
		return 0, err
	}
	return len(ts.text), nil
}

// textPayload resolves the built-in payload of a text value. The
// payload is immutable, so it is safe to use after the lock drops.
func (iso *Isolate) textPayload(op string, v Value) (*TextSlot, *Error) {
	if !v.IsText() {
		return nil, errorf(ErrTypeMismatch, op, "%s value is not text", v.Kind())
	}
	page, slot := iso.store.resolve(v)
	lock := &page.locks[slot]
	lock.RLock()
	payload, ok := page.records[slot].internalSlot(InternalSlotBuiltin)
	lock.RUnlock()
	ts, good := payload.(*TextSlot)
	if !ok || !good {
		return nil, errorf(ErrInternal, op, "text record %d has no text payload", v.TableIndex())
	}
	return ts, nil
}
