package heap

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

// DefaultFragmentationThreshold is the free-slot fraction past which a
// page's survivors are evacuated during compaction.
const DefaultFragmentationThreshold = 0.4

// Options configures a new isolate. The zero value is usable; see
// DefaultOptions for the defaults the config layer starts from.
type Options struct {
	// InitialPages preallocates this many pages per size class.
	InitialPages int

	// MaxPages caps the page store across both classes; 0 means
	// unbounded growth. Allocation past the cap fails OutOfMemory.
	MaxPages int

	// FragmentationThreshold overrides the compaction trigger. Zero or
	// negative selects DefaultFragmentationThreshold.
	FragmentationThreshold float64

	// EnableFieldShortcuts seeds EnableShortcuts on new Contexts.
	EnableFieldShortcuts bool

	// DispatchTraps seeds trap dispatch on new Contexts.
	DispatchTraps bool

	// LogName selects the logger; empty means "strata.heap".
	LogName string
}

// DefaultOptions returns the options a bare isolate runs under.
func DefaultOptions() Options {
	return Options{
		InitialPages:           1,
		FragmentationThreshold: DefaultFragmentationThreshold,
		EnableFieldShortcuts:   true,
		DispatchTraps:          true,
	}
}

// ---------------------------------------------------------------------------
// Isolate
// ---------------------------------------------------------------------------

// Isolate owns one object heap: the page store and object table, the
// symbol table, the root registries, the collector and the builtin
// prototypes. Isolates share nothing; two isolates' Values must never
// mix. All exported operations are safe for concurrent use.
type Isolate struct {
	id   string
	log  commonlog.Logger
	opts Options

	store   *pageStore
	symbols *SymbolTable
	roots   *rootSet
	scopes  *scopeTable
	weaks   *weakRegistry
	barrier *worldBarrier
	gc      *collector

	// prototypeSym is the public-scope "prototype" symbol, used as the
	// trap key on prototype operations.
	prototypeSym Symbol

	// Builtin prototypes. objectProto terminates every default chain;
	// the primitive prototypes hang under it and answer property reads
	// on plain primitives.
	objectProto  Value
	booleanProto Value
	integerProto Value
	floatProto   Value
	symbolProto  Value
	textProto    Value
	listProto    Value
	tupleProto   Value

	// builtins is the GC root list for the prototypes above.
	builtins []Value

	nextSlotID atomic.Uint64

	outletMu  sync.Mutex
	outlets   map[uint64]any
	nextOutID atomic.Uint64

	autoMu sync.Mutex
	auto   *AutoCollector

	shut atomic.Bool
}

// NewIsolate builds an isolate: page store, symbol table, builtin
// prototypes and collector.
func NewIsolate(opts Options) (*Isolate, *Error) {
	if opts.FragmentationThreshold <= 0 {
		opts.FragmentationThreshold = DefaultFragmentationThreshold
	}
	if opts.LogName == "" {
		opts.LogName = "strata.heap"
	}
	iso := &Isolate{
		id:      uuid.NewString(),
		log:     commonlog.GetLogger(opts.LogName),
		opts:    opts,
		store:   newPageStore(opts.MaxPages),
		symbols: NewSymbolTable(),
		roots:   newRootSet(),
		scopes:  newScopeTable(),
		weaks:   newWeakRegistry(),
		barrier: newWorldBarrier(),
		outlets: make(map[uint64]any),
	}
	iso.gc = newCollector(iso)
	iso.prototypeSym = iso.symbols.Public().Intern("prototype")

	if opts.InitialPages > 0 {
		if err := iso.store.preallocate(opts.InitialPages); err != nil {
			return nil, err
		}
	}
	if err := iso.createBuiltins(); err != nil {
		return nil, err
	}

	iso.log.Infof("isolate %s ready: %d pages, %d builtin prototypes",
		iso.id, iso.store.pageCount(), len(iso.builtins))
	return iso, nil
}

// createBuiltins allocates the prototype records. The object prototype
// sits at the chain root with a null prototype; every other builtin
// hangs under it.
func (iso *Isolate) createBuiltins() *Error {
	objectProto, err := iso.newRecordValue(KindObject, ClassSmall, Null)
	if err != nil {
		return err
	}
	iso.objectProto = objectProto
	iso.builtins = append(iso.builtins, objectProto)

	for _, dst := range []*Value{
		&iso.booleanProto, &iso.integerProto, &iso.floatProto,
		&iso.symbolProto, &iso.textProto, &iso.listProto, &iso.tupleProto,
	} {
		v, err := iso.newRecordValue(KindObject, ClassSmall, objectProto)
		if err != nil {
			return err
		}
		*dst = v
		iso.builtins = append(iso.builtins, v)
	}
	return nil
}

// ID returns the isolate's unique identifier.
func (iso *Isolate) ID() string { return iso.id }

// Shutdown stops the background collector and retires the isolate.
// Every later operation panics HandleExpired; shutting down twice
// panics as well.
func (iso *Isolate) Shutdown() {
	if iso.shut.Swap(true) {
		panic(errorf(ErrHandleExpired, "Shutdown", "isolate %s already shut down", iso.id))
	}
	iso.stopAuto()
	iso.log.Infof("isolate %s shut down", iso.id)
}

// checkAlive panics HandleExpired once the isolate has been shut down.
func (iso *Isolate) checkAlive(op string) {
	if iso.shut.Load() {
		panic(errorf(ErrHandleExpired, op, "isolate %s has been shut down", iso.id))
	}
}

// NewContext creates an operation context for the calling goroutine.
// Contexts are goroutine-affine and must not be shared.
func (iso *Isolate) NewContext() *Context {
	iso.checkAlive("NewContext")
	return &Context{
		iso:             iso,
		EnableShortcuts: iso.opts.EnableFieldShortcuts,
		DispatchTraps:   iso.opts.DispatchTraps,
	}
}

// ---------------------------------------------------------------------------
// Symbols
// ---------------------------------------------------------------------------

// Symbols returns the isolate's symbol table.
func (iso *Isolate) Symbols() *SymbolTable { return iso.symbols }

// Intern interns text in the public scope.
func (iso *Isolate) Intern(text string) Symbol {
	return iso.symbols.Public().Intern(text)
}

// NewScope returns the symbol scope for (kind, locator), creating it on
// first request.
func (iso *Isolate) NewScope(kind ScopeKind, locator string) *Scope {
	return iso.symbols.NewScope(kind, locator)
}

// ---------------------------------------------------------------------------
// Builtin prototypes
// ---------------------------------------------------------------------------

// ObjectPrototype returns the root object prototype.
func (iso *Isolate) ObjectPrototype() Value { return iso.objectProto }

// PrototypeFor returns the builtin prototype record backing a kind.
// Undefined and null have none.
func (iso *Isolate) PrototypeFor(k Kind) Value {
	switch k {
	case KindBoolean:
		return iso.booleanProto
	case KindInteger:
		return iso.integerProto
	case KindFloat:
		return iso.floatProto
	case KindSymbol:
		return iso.symbolProto
	case KindText:
		return iso.textProto
	case KindList:
		return iso.listProto
	case KindTuple:
		return iso.tupleProto
	case KindObject:
		return iso.objectProto
	default:
		return Null
	}
}

// kindPrototype resolves the prototype a plain primitive answers with.
func (iso *Isolate) kindPrototype(v Value) Value {
	switch v.Kind() {
	case KindBoolean:
		return iso.booleanProto
	case KindInteger:
		return iso.integerProto
	case KindFloat:
		return iso.floatProto
	case KindSymbol:
		return iso.symbolProto
	default:
		return Null
	}
}

// ---------------------------------------------------------------------------
// Object creation
// ---------------------------------------------------------------------------

// CreateObject allocates a small object record. Undefined selects the
// builtin object prototype; Null creates a chain terminator.
func (iso *Isolate) CreateObject(ctx *Context, prototype Value) (Value, *Error) {
	return iso.CreateObjectSized(ctx, prototype, ClassSmall)
}

// CreateObjectSized allocates an object record of an explicit size
// class. ClassLarge skips the inline property array for records
// expected to carry many properties.
func (iso *Isolate) CreateObjectSized(ctx *Context, prototype Value, class SizeClass) (Value, *Error) {
	iso.checkAlive("CreateObject")
	iso.barrier.enter()
	defer iso.barrier.exit()

	switch {
	case prototype.IsUndefined():
		prototype = iso.objectProto
	case prototype.IsNull(), prototype.IsObject():
	default:
		return Undefined, errorf(ErrTypeMismatch, "CreateObject",
			"%s value cannot serve as a prototype", prototype.Kind())
	}
	if class > ClassLarge {
		return Undefined, errorf(ErrTypeMismatch, "CreateObject", "unknown size class %d", class)
	}
	if prototype.IsSlotted() {
		iso.store.resolve(prototype)
	}
	return iso.newRecordValue(KindObject, class, prototype)
}

// newRecordValue allocates a record, binds its kind and prototype and
// assembles the slotted Value. The new record sits in its page's
// nursery, so it survives a collection that starts before the caller
// roots it.
func (iso *Isolate) newRecordValue(kind Kind, class SizeClass, prototype Value) (Value, *Error) {
	index, gen, page, slot, err := iso.store.allocate(class)
	if err != nil {
		return Undefined, err
	}
	lock := &page.locks[slot]
	lock.Lock()
	rec := &page.records[slot]
	rec.kind = kind
	rec.prototype = prototype
	lock.Unlock()

	iso.rememberCross(page, index, prototype)
	return makeSlotted(kindTag(kind), index, gen), nil
}

// ---------------------------------------------------------------------------
// Slot traps
// ---------------------------------------------------------------------------

// InstallSlotTrap attaches a whole-record trap, replacing any existing
// one. Installation invalidates the record's field shortcuts and keeps
// them disabled while the trap is present.
func (iso *Isolate) InstallSlotTrap(ctx *Context, subject Value, trap SlotTrap) *Error {
	iso.checkAlive("InstallSlotTrap")
	iso.barrier.enter()
	defer iso.barrier.exit()

	if err := requireSubject("InstallSlotTrap", subject); err != nil {
		return err
	}
	if !subject.IsSlotted() {
		return errorf(ErrTypeMismatch, "InstallSlotTrap",
			"%s value cannot carry a slot trap", subject.Kind())
	}
	if trap == nil {
		return errorf(ErrTypeMismatch, "InstallSlotTrap", "slot trap must not be nil")
	}
	page, slot := iso.store.resolve(subject)
	lock := &page.locks[slot]
	lock.Lock()
	rec := &page.records[slot]
	rec.slotTrap = trap
	rec.invalidateShape()
	lock.Unlock()

	if rep, ok := trap.(ValueReporter); ok {
		for _, rv := range rep.ReferencedValues() {
			iso.rememberCross(page, subject.TableIndex(), rv)
		}
	}
	return nil
}

// ClearSlotTrap detaches the subject's slot trap, if any.
func (iso *Isolate) ClearSlotTrap(ctx *Context, subject Value) *Error {
	iso.checkAlive("ClearSlotTrap")
	iso.barrier.enter()
	defer iso.barrier.exit()

	if err := requireSubject("ClearSlotTrap", subject); err != nil {
		return err
	}
	if !subject.IsSlotted() {
		return nil
	}
	page, slot := iso.store.resolve(subject)
	lock := &page.locks[slot]
	lock.Lock()
	rec := &page.records[slot]
	rec.slotTrap = nil
	rec.invalidateShape()
	lock.Unlock()
	return nil
}

// HasSlotTrap reports whether the subject carries a slot trap.
func (iso *Isolate) HasSlotTrap(ctx *Context, subject Value) (bool, *Error) {
	iso.checkAlive("HasSlotTrap")
	iso.barrier.enter()
	defer iso.barrier.exit()

	if err := requireSubject("HasSlotTrap", subject); err != nil {
		return false, err
	}
	if !subject.IsSlotted() {
		return false, nil
	}
	page, slot := iso.store.resolve(subject)
	return slotTrapOf(page, slot) != nil, nil
}

// ---------------------------------------------------------------------------
// Internal slots
// ---------------------------------------------------------------------------

// NewInternalSlotID reserves a fresh internal slot id. Id 0 is the
// built-in payload slot (text, list, tuple).
func (iso *Isolate) NewInternalSlotID() uint64 {
	return iso.nextSlotID.Add(1)
}

// SetInternalSlot attaches an embedder payload under id. Internal slots
// live outside the property map: integrity flags do not apply, and only
// payloads implementing ValueReporter participate in tracing.
func (iso *Isolate) SetInternalSlot(ctx *Context, subject Value, id uint64, payload InternalSlot) *Error {
	iso.checkAlive("SetInternalSlot")
	iso.barrier.enter()
	defer iso.barrier.exit()

	if err := requireSubject("SetInternalSlot", subject); err != nil {
		return err
	}
	if !subject.IsSlotted() {
		return errorf(ErrTypeMismatch, "SetInternalSlot",
			"%s value cannot carry internal slots", subject.Kind())
	}
	page, slot := iso.store.resolve(subject)
	lock := &page.locks[slot]
	lock.Lock()
	page.records[slot].setInternalSlot(id, payload)
	lock.Unlock()

	if rep, ok := payload.(ValueReporter); ok {
		for _, rv := range rep.ReferencedValues() {
			iso.rememberCross(page, subject.TableIndex(), rv)
		}
	}
	return nil
}

// GetInternalSlot reads the embedder payload under id.
func (iso *Isolate) GetInternalSlot(ctx *Context, subject Value, id uint64) (InternalSlot, bool, *Error) {
	iso.checkAlive("GetInternalSlot")
	iso.barrier.enter()
	defer iso.barrier.exit()

	if err := requireSubject("GetInternalSlot", subject); err != nil {
		return nil, false, err
	}
	if !subject.IsSlotted() {
		return nil, false, nil
	}
	page, slot := iso.store.resolve(subject)
	lock := &page.locks[slot]
	lock.RLock()
	payload, ok := page.records[slot].internalSlot(id)
	lock.RUnlock()
	return payload, ok, nil
}

// HasInternalSlot reports whether the subject carries a payload under
// id.
func (iso *Isolate) HasInternalSlot(ctx *Context, subject Value, id uint64) (bool, *Error) {
	_, ok, err := iso.GetInternalSlot(ctx, subject, id)
	return ok, err
}

// ClearInternalSlot removes the payload under id, reporting whether one
// existed.
func (iso *Isolate) ClearInternalSlot(ctx *Context, subject Value, id uint64) (bool, *Error) {
	iso.checkAlive("ClearInternalSlot")
	iso.barrier.enter()
	defer iso.barrier.exit()

	if err := requireSubject("ClearInternalSlot", subject); err != nil {
		return false, err
	}
	if !subject.IsSlotted() {
		return false, nil
	}
	page, slot := iso.store.resolve(subject)
	lock := &page.locks[slot]
	lock.Lock()
	removed := page.records[slot].deleteInternalSlot(id)
	lock.Unlock()
	return removed, nil
}

// ListInternalSlotIDs returns the subject's internal slot ids in
// ascending order.
func (iso *Isolate) ListInternalSlotIDs(ctx *Context, subject Value) ([]uint64, *Error) {
	iso.checkAlive("ListInternalSlotIDs")
	iso.barrier.enter()
	defer iso.barrier.exit()

	if err := requireSubject("ListInternalSlotIDs", subject); err != nil {
		return nil, err
	}
	if !subject.IsSlotted() {
		return nil, nil
	}
	page, slot := iso.store.resolve(subject)
	lock := &page.locks[slot]
	lock.RLock()
	rec := &page.records[slot]
	ids := make([]uint64, 0, len(rec.internal))
	for id := range rec.internal {
		ids = append(ids, id)
	}
	lock.RUnlock()
	slices.Sort(ids)
	return ids, nil
}

// ---------------------------------------------------------------------------
// Outlets
// ---------------------------------------------------------------------------

// AddOutlet registers an embedder payload with the isolate and returns
// its handle id. Outlets are plain registry entries: they are not
// traced and do not root anything.
func (iso *Isolate) AddOutlet(payload any) uint64 {
	iso.checkAlive("AddOutlet")
	id := iso.nextOutID.Add(1)
	iso.outletMu.Lock()
	iso.outlets[id] = payload
	iso.outletMu.Unlock()
	return id
}

// Outlet returns the payload registered under id.
func (iso *Isolate) Outlet(id uint64) (any, bool) {
	iso.checkAlive("Outlet")
	iso.outletMu.Lock()
	payload, ok := iso.outlets[id]
	iso.outletMu.Unlock()
	return payload, ok
}

// ClearOutlet removes the payload registered under id.
func (iso *Isolate) ClearOutlet(id uint64) {
	iso.checkAlive("ClearOutlet")
	iso.outletMu.Lock()
	delete(iso.outlets, id)
	iso.outletMu.Unlock()
}
