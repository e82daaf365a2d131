package heap

// ---------------------------------------------------------------------------
// Field shortcuts: per-record inline cache for simple fields
// ---------------------------------------------------------------------------

// MaxFieldShortcuts is the number of direct field entries one record's
// shortcut cache can hold.
const MaxFieldShortcuts = 26

// FieldToken memoizes one access site's view of a record's shortcut
// cache: which entry index serves the symbol, under which shape id and
// version. A token whose version fell behind is refreshed lazily on the
// next access; it never scans other records.
type FieldToken struct {
	shapeID uint32
	version uint16
	index   uint8
	key     Symbol
}

// NewFieldToken creates an unbound token for the given property key.
// Callers keep one token per access site and pass it to GetFast /
// SetFast.
func NewFieldToken(key Symbol) *FieldToken {
	return &FieldToken{key: key}
}

// Key returns the property symbol the token serves.
func (t *FieldToken) Key() Symbol { return t.key }

// matches reports whether the token is current for the cache.
func (t *FieldToken) matches(fs *fieldShortcuts) bool {
	return t.shapeID == fs.shapeID && t.version == fs.version
}

func (t *FieldToken) rebind(fs *fieldShortcuts, index uint8) {
	t.shapeID = fs.shapeID
	t.version = fs.version
	t.index = index
}

// fieldShortcuts is the record-side cache: a write-through copy of up
// to MaxFieldShortcuts simple field values, validated by a version that
// bumps on every structural mutation. Value-only writes keep the copy
// in sync instead of bumping, so hot fields stay cached across writes.
// Each entry also keeps its FieldTrap so a cached write can update the
// authoritative field without a map lookup. The cache holds copies of
// traced values, never the only reference, so the collector ignores it.
type fieldShortcuts struct {
	shapeID uint32
	version uint16
	symbols map[Symbol]uint8
	valid   uint32
	values  [MaxFieldShortcuts]Value
	fields  [MaxFieldShortcuts]*FieldTrap
}

func newFieldShortcuts(shapeID uint32) *fieldShortcuts {
	return &fieldShortcuts{
		shapeID: shapeID,
		symbols: make(map[Symbol]uint8, MaxFieldShortcuts),
	}
}

// bumpVersion invalidates every outstanding token and entry after a
// structural mutation. Entries repopulate on the next misses.
func (fs *fieldShortcuts) bumpVersion() {
	fs.version++
	fs.valid = 0
	clear(fs.symbols)
	for i := range fs.fields {
		fs.fields[i] = nil
	}
}

// bind finds or assigns the entry index for key. Reports false when all
// entries are taken by other symbols.
func (fs *fieldShortcuts) bind(key Symbol) (uint8, bool) {
	if i, ok := fs.symbols[key]; ok {
		return i, true
	}
	if len(fs.symbols) >= MaxFieldShortcuts {
		return 0, false
	}
	i := uint8(len(fs.symbols))
	fs.symbols[key] = i
	return i, true
}

// fill stores a field's value and trap under an entry and marks it
// servable.
func (fs *fieldShortcuts) fill(index uint8, trap *FieldTrap) {
	fs.values[index] = trap.value
	fs.fields[index] = trap
	fs.valid |= 1 << index
}

// load serves a cached value. Reports false when the entry was never
// filled since the last version bump.
func (fs *fieldShortcuts) load(index uint8) (Value, bool) {
	if index >= MaxFieldShortcuts || fs.valid&(1<<index) == 0 {
		return Undefined, false
	}
	return fs.values[index], true
}

// store writes a cached field through its trap. Reports false when the
// entry is not servable.
func (fs *fieldShortcuts) store(index uint8, v Value) bool {
	if index >= MaxFieldShortcuts || fs.valid&(1<<index) == 0 {
		return false
	}
	fs.fields[index].value = v
	fs.values[index] = v
	return true
}

// writeThrough keeps a cached entry current after a plain field write.
func (fs *fieldShortcuts) writeThrough(key Symbol, v Value) {
	if i, ok := fs.symbols[key]; ok && fs.valid&(1<<i) != 0 {
		fs.values[i] = v
	}
}
