package heap

// ---------------------------------------------------------------------------
// TrapInfo: what an interception sees
// ---------------------------------------------------------------------------

// TrapOp identifies the intercepted operation.
type TrapOp uint8

const (
	TrapGetPrototype TrapOp = iota
	TrapSetPrototype
	TrapHasProperty
	TrapGetProperty
	TrapSetProperty
	TrapDefineProperty
	TrapDeleteProperty
	TrapListSymbols
	TrapDrop
)

// String returns the operation name.
func (op TrapOp) String() string {
	switch op {
	case TrapGetPrototype:
		return "get-prototype"
	case TrapSetPrototype:
		return "set-prototype"
	case TrapHasProperty:
		return "has-property"
	case TrapGetProperty:
		return "get-property"
	case TrapSetProperty:
		return "set-property"
	case TrapDefineProperty:
		return "define-property"
	case TrapDeleteProperty:
		return "delete-property"
	case TrapListSymbols:
		return "list-symbols"
	case TrapDrop:
		return "drop"
	default:
		return "invalid"
	}
}

// TrapInfo captures one intercepted operation: the subject record, the
// operation kind, the key and the old/new values where the operation has
// them. Define operations additionally carry the trap being installed.
type TrapInfo struct {
	Subject Value
	Op      TrapOp
	Key     Symbol
	Old     Value
	New     Value
	Trap    PropertyTrap
}

// ---------------------------------------------------------------------------
// TrapResult: Trapped / Thrown / Skipped
// ---------------------------------------------------------------------------

type trapOutcome uint8

const (
	trapSkipped trapOutcome = iota
	trapTrapped
	trapThrown
)

// TrapResult is the outcome of one SlotTrap hook. The zero value is
// Skip: the hook declined and the default behavior proceeds.
type TrapResult struct {
	outcome trapOutcome
	value   Value
	err     *Error
}

// Skip is the declined outcome; the default operation runs.
var Skip = TrapResult{}

// Trapped reports the hook handled the operation, producing v.
func Trapped(v Value) TrapResult {
	return TrapResult{outcome: trapTrapped, value: v}
}

// Thrown reports the hook failed the operation with err.
func Thrown(err *Error) TrapResult {
	return TrapResult{outcome: trapThrown, err: err}
}

// IsSkipped reports whether the hook declined.
func (r TrapResult) IsSkipped() bool { return r.outcome == trapSkipped }

// IsTrapped reports whether the hook handled the operation.
func (r TrapResult) IsTrapped() bool { return r.outcome == trapTrapped }

// IsThrown reports whether the hook failed the operation.
func (r TrapResult) IsThrown() bool { return r.outcome == trapThrown }

// Value returns the handled result. Only meaningful when IsTrapped.
func (r TrapResult) Value() Value { return r.value }

// Err returns the failure. Only meaningful when IsThrown.
func (r TrapResult) Err() *Error { return r.err }

// ---------------------------------------------------------------------------
// PropertyTrap: per-key interception
// ---------------------------------------------------------------------------

// PropertyTrap intercepts access to a single property. Every entry in a
// record's property map is a PropertyTrap; plain values are wrapped in
// the built-in FieldTrap so the lookup path is uniform.
type PropertyTrap interface {
	// Get produces the property value.
	Get(ctx *Context, info TrapInfo) (Value, *Error)

	// Set replaces the property value. Traps without a setter return
	// ErrReadOnlyProperty.
	Set(ctx *Context, info TrapInfo) *Error

	// IsSimpleField reports whether the trap is a plain stored value,
	// eligible for the field shortcut cache.
	IsSimpleField() bool
}

// ValueReporter is implemented by traps and internal slots whose payload
// holds slotted values the collector must trace.
type ValueReporter interface {
	ReferencedValues() []Value
}

// ReadOnly is an embeddable setter that denies writes. Trap
// implementations embed it when they only intercept reads.
type ReadOnly struct{}

// Set denies the write.
func (ReadOnly) Set(_ *Context, info TrapInfo) *Error {
	return errorf(ErrReadOnlyProperty, "Set", "property %d has no setter", info.Key)
}

// IsSimpleField reports false: a trapped property is never a plain field.
func (ReadOnly) IsSimpleField() bool { return false }

// ---------------------------------------------------------------------------
// FieldTrap: the built-in simple field
// ---------------------------------------------------------------------------

// FieldTrap stores a plain property value. It is what Set installs when
// no custom trap is present, and the only trap kind the field shortcut
// cache accelerates.
type FieldTrap struct {
	value Value
}

// NewFieldTrap wraps a plain value as a property entry.
func NewFieldTrap(v Value) *FieldTrap {
	return &FieldTrap{value: v}
}

// Get returns the stored value.
func (f *FieldTrap) Get(*Context, TrapInfo) (Value, *Error) {
	return f.value, nil
}

// Set replaces the stored value.
func (f *FieldTrap) Set(_ *Context, info TrapInfo) *Error {
	f.value = info.New
	return nil
}

// IsSimpleField reports true.
func (*FieldTrap) IsSimpleField() bool { return true }

// ReferencedValues reports the stored value for tracing.
func (f *FieldTrap) ReferencedValues() []Value {
	return []Value{f.value}
}

// ---------------------------------------------------------------------------
// SlotTrap: whole-record interception
// ---------------------------------------------------------------------------

// SlotTrap intercepts every structured operation on one record. Hooks
// return Skip to fall through to the default behavior. Hooks run
// synchronously on the calling goroutine while the record lock is NOT
// held, so they may re-enter the isolate; re-entering the same hook on
// the same record is detected as TrapReentrancy.
type SlotTrap interface {
	GetPrototype(ctx *Context, info TrapInfo) TrapResult
	SetPrototype(ctx *Context, info TrapInfo) TrapResult
	HasProperty(ctx *Context, info TrapInfo) TrapResult
	GetProperty(ctx *Context, info TrapInfo) TrapResult
	SetProperty(ctx *Context, info TrapInfo) TrapResult
	DefineProperty(ctx *Context, info TrapInfo) TrapResult
	DeleteProperty(ctx *Context, info TrapInfo) TrapResult

	// ListSymbols contributes the record's own property symbols. A
	// Trapped result uses the returned slice instead of the map keys.
	ListSymbols(ctx *Context, info TrapInfo) ([]Symbol, TrapResult)

	// Drop is notified when the record is reclaimed. It runs inside the
	// collector's pause and must not call back into the isolate.
	Drop(info TrapInfo)
}

// SlotTrapBase is an embeddable SlotTrap that skips every hook.
// Implementations embed it and override the hooks they care about.
type SlotTrapBase struct{}

func (SlotTrapBase) GetPrototype(*Context, TrapInfo) TrapResult   { return Skip }
func (SlotTrapBase) SetPrototype(*Context, TrapInfo) TrapResult   { return Skip }
func (SlotTrapBase) HasProperty(*Context, TrapInfo) TrapResult    { return Skip }
func (SlotTrapBase) GetProperty(*Context, TrapInfo) TrapResult    { return Skip }
func (SlotTrapBase) SetProperty(*Context, TrapInfo) TrapResult    { return Skip }
func (SlotTrapBase) DefineProperty(*Context, TrapInfo) TrapResult { return Skip }
func (SlotTrapBase) DeleteProperty(*Context, TrapInfo) TrapResult { return Skip }
func (SlotTrapBase) ListSymbols(*Context, TrapInfo) ([]Symbol, TrapResult) {
	return nil, Skip
}
func (SlotTrapBase) Drop(TrapInfo) {}

// InternalSlot is an opaque embedder payload attached to a record under
// a numeric key. The core stores it without interpreting it; payloads
// implementing ValueReporter participate in GC tracing.
type InternalSlot = any
