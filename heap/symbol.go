package heap

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Symbol is the 32-bit identity of an interned property key. The zero
// Symbol is never minted.
type Symbol uint32

// ScopeKind distinguishes the visibility classes of symbol scopes.
type ScopeKind uint8

const (
	// ScopePublic is the process-visible default scope; plain text keys
	// intern here.
	ScopePublic ScopeKind = iota

	// ScopeFilePrivate scopes symbols to one source unit.
	ScopeFilePrivate

	// ScopeFriend scopes symbols to a named group of source units.
	ScopeFriend

	// ScopeClassPrivate scopes symbols to one class or block body.
	ScopeClassPrivate
)

// String returns the lower-case kind name.
func (k ScopeKind) String() string {
	switch k {
	case ScopePublic:
		return "public"
	case ScopeFilePrivate:
		return "file-private"
	case ScopeFriend:
		return "friend"
	case ScopeClassPrivate:
		return "class-private"
	default:
		return "invalid"
	}
}

// ---------------------------------------------------------------------------
// Scope: one interning namespace
// ---------------------------------------------------------------------------

// Scope is an interning namespace. Identical text interned in one scope
// always yields the same Symbol; distinct scopes never collide even for
// identical text, because all scopes share the table's ID generator.
type Scope struct {
	table   *SymbolTable
	kind    ScopeKind
	locator string

	mu      sync.RWMutex
	byText  map[string]Symbol
	byValue map[Value]Symbol
}

// Kind returns the scope's visibility class.
func (s *Scope) Kind() ScopeKind { return s.kind }

// Locator returns the identifier the scope was created under.
func (s *Scope) Locator() string { return s.locator }

// Intern returns the Symbol for text in this scope, minting one on first
// use. Interning is idempotent and safe under concurrent callers.
func (s *Scope) Intern(text string) Symbol {
	// Fast path: read-only lookup
	s.mu.RLock()
	if sym, ok := s.byText[text]; ok {
		s.mu.RUnlock()
		return sym
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if sym, ok := s.byText[text]; ok {
		return sym
	}

	sym := s.table.mint(s, text, Undefined, true)
	s.byText[text] = sym
	return sym
}

// InternValue returns the Symbol for an opaque payload value in this
// scope, minting one on first use.
func (s *Scope) InternValue(payload Value) Symbol {
	s.mu.RLock()
	if sym, ok := s.byValue[payload]; ok {
		s.mu.RUnlock()
		return sym
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if sym, ok := s.byValue[payload]; ok {
		return sym
	}

	sym := s.table.mint(s, "", payload, false)
	s.byValue[payload] = sym
	return sym
}

// Owns reports whether sym was interned by this scope.
func (s *Scope) Owns(sym Symbol) bool {
	rec, ok := s.table.record(sym)
	return ok && rec.scope == s
}

// ---------------------------------------------------------------------------
// SymbolTable: scoped interning of property keys
// ---------------------------------------------------------------------------

type symbolRecord struct {
	scope   *Scope
	text    string
	payload Value
	hasText bool
}

// SymbolTable interns symbols across all scopes of one isolate. IDs come
// from a single atomic generator, so no two scopes can mint the same
// Symbol. Symbols are immortal: they live for the table's lifetime and
// are never individually destroyed.
type SymbolTable struct {
	nextID atomic.Uint32

	mu      sync.RWMutex
	scopes  map[string]*Scope // scope key -> scope
	records map[Symbol]*symbolRecord

	public *Scope
}

// NewSymbolTable creates a symbol table with its built-in public scope.
func NewSymbolTable() *SymbolTable {
	t := &SymbolTable{
		scopes:  make(map[string]*Scope),
		records: make(map[Symbol]*symbolRecord),
	}
	t.public = t.NewScope(ScopePublic, "")
	return t
}

// Public returns the built-in public scope.
func (t *SymbolTable) Public() *Scope { return t.public }

func scopeKey(kind ScopeKind, locator string) string {
	return string('0'+byte(kind)) + ":" + locator
}

// NewScope returns the scope for (kind, locator), creating it on first
// request. Friend scopes asked for with an empty locator receive a
// generated one so unrelated callers cannot accidentally share symbols.
func (t *SymbolTable) NewScope(kind ScopeKind, locator string) *Scope {
	if kind == ScopeFriend && locator == "" {
		locator = uuid.NewString()
	}
	key := scopeKey(kind, locator)

	t.mu.RLock()
	if s, ok := t.scopes[key]; ok {
		t.mu.RUnlock()
		return s
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.scopes[key]; ok {
		return s
	}

	s := &Scope{
		table:   t,
		kind:    kind,
		locator: locator,
		byText:  make(map[string]Symbol),
		byValue: make(map[Value]Symbol),
	}
	t.scopes[key] = s
	return s
}

// mint assigns a fresh Symbol and records its provenance. Callers hold
// their scope's write lock; the table lock only guards the record map.
func (t *SymbolTable) mint(scope *Scope, text string, payload Value, hasText bool) Symbol {
	sym := Symbol(t.nextID.Add(1))

	t.mu.Lock()
	t.records[sym] = &symbolRecord{scope: scope, text: text, payload: payload, hasText: hasText}
	t.mu.Unlock()

	return sym
}

func (t *SymbolTable) record(sym Symbol) (*symbolRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[sym]
	return rec, ok
}

// Resolve returns the scope and text of sym. Resolution is total for any
// Symbol this table minted; ok is false only for foreign or zero IDs.
// Value-payload symbols resolve with an empty text.
func (t *SymbolTable) Resolve(sym Symbol) (scope *Scope, text string, ok bool) {
	rec, found := t.record(sym)
	if !found {
		return nil, "", false
	}
	return rec.scope, rec.text, true
}

// ResolvePayload returns the opaque payload of a value-interned symbol,
// or Undefined for text symbols.
func (t *SymbolTable) ResolvePayload(sym Symbol) (Value, bool) {
	rec, found := t.record(sym)
	if !found {
		return Undefined, false
	}
	return rec.payload, true
}

// ResolveIn resolves sym against an expected scope, failing with
// SymbolScopeMismatch when sym belongs to a different scope.
func (t *SymbolTable) ResolveIn(scope *Scope, sym Symbol) (string, *Error) {
	rec, found := t.record(sym)
	if !found {
		return "", errorf(ErrSymbolScopeMismatch, "ResolveIn", "symbol %d was not minted by this table", sym)
	}
	if rec.scope != scope {
		return "", errorf(ErrSymbolScopeMismatch, "ResolveIn",
			"symbol %d belongs to %s scope %q, not %s scope %q",
			sym, rec.scope.kind, rec.scope.locator, scope.kind, scope.locator)
	}
	return rec.text, nil
}

// Count returns the number of interned symbols.
func (t *SymbolTable) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}
