package heap

// ---------------------------------------------------------------------------
// Record: the stored form of one object
// ---------------------------------------------------------------------------

// SizeClass selects the property storage strategy at allocation time.
type SizeClass uint8

const (
	// ClassSmall records keep their first properties in an inline array
	// and spill to an overflow map past inlinePropertyCount.
	ClassSmall SizeClass = iota

	// ClassLarge records use a map from birth. Callers pick this class
	// when they expect many properties.
	ClassLarge
)

// inlinePropertyCount is the number of properties a small record holds
// before spilling to the overflow map.
const inlinePropertyCount = 8

// InternalSlotBuiltin is the internal slot id reserved for built-in
// payloads (text, list, tuple).
const InternalSlotBuiltin uint64 = 0

const (
	flagLive uint8 = 1 << iota
	flagNotExtensible
	flagSealed
	flagFrozen
)

type propEntry struct {
	key  Symbol
	trap PropertyTrap
}

// Record is the slot-resident form of one object: header flags, the
// prototype reference, the property map, internal slots and the
// optional whole-record trap. Records live inside page slot arrays and
// are addressed by (page, slot); all methods assume the caller holds
// the slot's lock.
type Record struct {
	flags uint8
	class SizeClass

	// kind is the slotted variant (text, tuple, list or object) this
	// record backs; table is its object-table index. Together they let
	// the collector rebuild the record's Value without a reverse scan.
	kind  Kind
	table uint32

	prototype Value

	inlineCount uint8
	inline      [inlinePropertyCount]propEntry
	overflow    map[Symbol]PropertyTrap

	internal map[uint64]InternalSlot
	slotTrap SlotTrap

	shortcuts *fieldShortcuts
}

// reinit prepares a reclaimed or fresh record for a new object. The
// caller fills in kind and table after the slot is bound.
func (r *Record) reinit(class SizeClass) {
	r.flags = flagLive
	r.class = class
	r.kind = KindObject
	r.table = 0
	r.prototype = Null
	r.inlineCount = 0
	for i := range r.inline {
		r.inline[i] = propEntry{}
	}
	r.overflow = nil
	if class == ClassLarge {
		r.overflow = make(map[Symbol]PropertyTrap)
	}
	r.internal = nil
	r.slotTrap = nil
	r.shortcuts = nil
}

// clear releases everything the record holds. Called by the sweeper
// after Drop notifications have fired.
func (r *Record) clear() {
	*r = Record{prototype: Undefined}
}

func (r *Record) isLive() bool { return r.flags&flagLive != 0 }

// ---------------------------------------------------------------------------
// Integrity flags
// ---------------------------------------------------------------------------

func (r *Record) extensible() bool { return r.flags&flagNotExtensible == 0 }
func (r *Record) sealed() bool     { return r.flags&flagSealed != 0 }
func (r *Record) frozen() bool     { return r.flags&flagFrozen != 0 }

func (r *Record) preventExtensions() {
	r.flags |= flagNotExtensible
}

func (r *Record) seal() {
	r.flags |= flagNotExtensible | flagSealed
}

func (r *Record) freeze() {
	r.flags |= flagNotExtensible | flagSealed | flagFrozen
}

// ---------------------------------------------------------------------------
// Property storage
// ---------------------------------------------------------------------------

// lookupTrap finds the trap stored under key.
func (r *Record) lookupTrap(key Symbol) (PropertyTrap, bool) {
	for i := uint8(0); i < r.inlineCount; i++ {
		if r.inline[i].key == key {
			return r.inline[i].trap, true
		}
	}
	if r.overflow != nil {
		t, ok := r.overflow[key]
		return t, ok
	}
	return nil, false
}

// storeTrap inserts or replaces the trap under key and reports whether
// the key is new to the record.
func (r *Record) storeTrap(key Symbol, t PropertyTrap) bool {
	for i := uint8(0); i < r.inlineCount; i++ {
		if r.inline[i].key == key {
			r.inline[i].trap = t
			return false
		}
	}
	if r.overflow != nil {
		if _, ok := r.overflow[key]; ok {
			r.overflow[key] = t
			return false
		}
	}
	if r.class == ClassSmall && r.inlineCount < inlinePropertyCount {
		r.inline[r.inlineCount] = propEntry{key: key, trap: t}
		r.inlineCount++
		return true
	}
	if r.overflow == nil {
		r.overflow = make(map[Symbol]PropertyTrap)
	}
	r.overflow[key] = t
	return true
}

// removeTrap deletes the entry under key and reports whether it existed.
// Inline entries are compacted so lookup stays a prefix scan.
func (r *Record) removeTrap(key Symbol) bool {
	for i := uint8(0); i < r.inlineCount; i++ {
		if r.inline[i].key == key {
			r.inlineCount--
			r.inline[i] = r.inline[r.inlineCount]
			r.inline[r.inlineCount] = propEntry{}
			return true
		}
	}
	if r.overflow != nil {
		if _, ok := r.overflow[key]; ok {
			delete(r.overflow, key)
			return true
		}
	}
	return false
}

// ownKeys lists the record's own property symbols, inline entries first.
func (r *Record) ownKeys() []Symbol {
	keys := make([]Symbol, 0, int(r.inlineCount)+len(r.overflow))
	for i := uint8(0); i < r.inlineCount; i++ {
		keys = append(keys, r.inline[i].key)
	}
	for key := range r.overflow {
		keys = append(keys, key)
	}
	return keys
}

func (r *Record) propertyCount() int {
	return int(r.inlineCount) + len(r.overflow)
}

// ---------------------------------------------------------------------------
// Internal slots
// ---------------------------------------------------------------------------

func (r *Record) internalSlot(id uint64) (InternalSlot, bool) {
	if r.internal == nil {
		return nil, false
	}
	s, ok := r.internal[id]
	return s, ok
}

func (r *Record) setInternalSlot(id uint64, s InternalSlot) {
	if r.internal == nil {
		r.internal = make(map[uint64]InternalSlot, 1)
	}
	r.internal[id] = s
}

func (r *Record) deleteInternalSlot(id uint64) bool {
	if r.internal == nil {
		return false
	}
	if _, ok := r.internal[id]; !ok {
		return false
	}
	delete(r.internal, id)
	return true
}

// ---------------------------------------------------------------------------
// Shape invalidation
// ---------------------------------------------------------------------------

// invalidateShape bumps the shortcut version after a structural
// mutation. Plain value writes do not come through here; they update
// the shortcut cache in place.
func (r *Record) invalidateShape() {
	if r.shortcuts != nil {
		r.shortcuts.bumpVersion()
	}
}

// ---------------------------------------------------------------------------
// Tracing
// ---------------------------------------------------------------------------

// referencedValues appends every slotted value the record can reach to
// buf: the prototype, property trap payloads, internal slot payloads
// and the slot trap itself when they report values.
func (r *Record) referencedValues(buf []Value) []Value {
	buf = append(buf, r.prototype)
	for i := uint8(0); i < r.inlineCount; i++ {
		if rep, ok := r.inline[i].trap.(ValueReporter); ok {
			buf = append(buf, rep.ReferencedValues()...)
		}
	}
	for _, t := range r.overflow {
		if rep, ok := t.(ValueReporter); ok {
			buf = append(buf, rep.ReferencedValues()...)
		}
	}
	for _, s := range r.internal {
		if rep, ok := s.(ValueReporter); ok {
			buf = append(buf, rep.ReferencedValues()...)
		}
	}
	if rep, ok := r.slotTrap.(ValueReporter); ok {
		buf = append(buf, rep.ReferencedValues()...)
	}
	return buf
}
