package heap

// ---------------------------------------------------------------------------
// Object table: logical references
// ---------------------------------------------------------------------------

// A slotted Value does not address storage directly. Its payload is an
// object-table index plus a generation; the table maps the index to the
// record's current (page, slot). Compaction moves records and rewrites
// table entries, so Values stay valid across relocation. Freed indices
// are recycled through a free list with a generation bump, which makes
// a stale Value detectable instead of silently aliasing the new tenant.

type tableEntry struct {
	page     *Page
	slot     uint16
	gen      uint16
	live     bool
	nextFree uint32
}

type objectTable struct {
	mu       rwMutex
	entries  []tableEntry
	freeHead uint32
	liveN    uint32
}

// newObjectTable reserves index 0 so a zero payload never resolves.
func newObjectTable() *objectTable {
	return &objectTable{entries: make([]tableEntry, 1, 1024)}
}

// allocate binds (page, slot) to a table index and returns the index
// and generation for the new Value. Generations start at 1 and bump on
// every reuse.
func (t *objectTable) allocate(page *Page, slot uint16) (uint32, uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var index uint32
	if t.freeHead != 0 {
		index = t.freeHead
		e := &t.entries[index]
		t.freeHead = e.nextFree
		e.page = page
		e.slot = slot
		e.live = true
		e.nextFree = 0
	} else {
		index = uint32(len(t.entries))
		t.entries = append(t.entries, tableEntry{page: page, slot: slot, gen: 1, live: true})
	}
	t.liveN++
	return index, t.entries[index].gen
}

// locate returns the entry's current placement, reporting false for
// indices that are out of range, dead or from a prior generation.
func (t *objectTable) locate(index uint32, gen uint16) (*Page, uint16, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if index == 0 || index >= uint32(len(t.entries)) {
		return nil, 0, false
	}
	e := &t.entries[index]
	if !e.live || e.gen != gen {
		return nil, 0, false
	}
	return e.page, e.slot, true
}

// locateIndex resolves an index regardless of generation, for
// remembered-set entries that carry no generation. Collector-only;
// runs while the world is stopped.
func (t *objectTable) locateIndex(index uint32) (*Page, uint16, bool) {
	if index == 0 || index >= uint32(len(t.entries)) {
		return nil, 0, false
	}
	e := &t.entries[index]
	if !e.live {
		return nil, 0, false
	}
	return e.page, e.slot, true
}

// generation returns the entry's current generation. Collector-only.
func (t *objectTable) generation(index uint32) uint16 {
	return t.entries[index].gen
}

// relocate rewrites an entry's placement. Collector-only; identity
// (index, generation) is unchanged so existing Values keep working.
func (t *objectTable) relocate(index uint32, page *Page, slot uint16) {
	e := &t.entries[index]
	e.page = page
	e.slot = slot
}

// releaseEntry retires an index to the free list and bumps its
// generation so stale Values are caught. Collector-only.
func (t *objectTable) releaseEntry(index uint32) {
	e := &t.entries[index]
	e.live = false
	e.page = nil
	e.gen++
	e.nextFree = t.freeHead
	t.freeHead = index
	t.liveN--
}

// liveCount returns the number of live entries.
func (t *objectTable) liveCount() uint32 {
	t.mu.RLock()
	n := t.liveN
	t.mu.RUnlock()
	return n
}

// ---------------------------------------------------------------------------
// Page store
// ---------------------------------------------------------------------------

// pageStore owns the pages and the object table. Allocation walks the
// class's page list for a free slot and grows by one page when every
// page is full, within the configured budget.
type pageStore struct {
	mu      rwMutex
	pages   []*Page
	byClass [2][]*Page
	nextID  uint32

	table *objectTable

	pageBudget int
	allocColor uint8
}

func newPageStore(pageBudget int) *pageStore {
	return &pageStore{
		table:      newObjectTable(),
		pageBudget: pageBudget,
		allocColor: colorWhite,
	}
}

// allocate claims a slot of the requested class, binds it in the object
// table and returns the slotted payload parts. Fails with OutOfMemory
// when the page budget is exhausted.
func (s *pageStore) allocate(class SizeClass) (uint32, uint16, *Page, uint16, *Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.byClass[class] {
		if slot, ok := p.gain(class, s.allocColor); ok {
			index, gen := s.table.allocate(p, slot)
			p.records[slot].table = index
			return index, gen, p, slot, nil
		}
	}

	p, err := s.grow(class)
	if err != nil {
		return 0, 0, nil, 0, err
	}
	slot, ok := p.gain(class, s.allocColor)
	if !ok {
		panic(errorf(ErrInternal, "Allocate", "fresh page %d has no free slot", p.id))
	}
	index, gen := s.table.allocate(p, slot)
	p.records[slot].table = index
	return index, gen, p, slot, nil
}

// grow appends one page of the given class, within the budget. The
// caller holds s.mu.
func (s *pageStore) grow(class SizeClass) (*Page, *Error) {
	if s.pageBudget > 0 && len(s.pages) >= s.pageBudget {
		return nil, errorf(ErrOutOfMemory, "Allocate",
			"page budget of %d exhausted", s.pageBudget)
	}
	s.nextID++
	p := newPage(s.nextID, class)
	s.pages = append(s.pages, p)
	s.byClass[class] = append(s.byClass[class], p)
	return p, nil
}

// preallocate grows each size class to n pages up front.
func (s *pageStore) preallocate(n int) *Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for class := ClassSmall; class <= ClassLarge; class++ {
		for len(s.byClass[class]) < n {
			if _, err := s.grow(class); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolve maps a slotted Value to its record placement. A Value whose
// table entry is gone or generationally stale panics DanglingReference:
// holding one past reclamation is a caller bug, not a recoverable
// condition.
func (s *pageStore) resolve(v Value) (*Page, uint16) {
	page, slot, ok := s.tryResolve(v)
	if !ok {
		panic(errorf(ErrDanglingReference, "Resolve",
			"table index %d generation %d no longer maps to a record",
			v.TableIndex(), v.Generation()))
	}
	return page, slot
}

// tryResolve is the non-panicking form used by Weak handles and the
// collector, where staleness is an answer rather than a bug.
func (s *pageStore) tryResolve(v Value) (*Page, uint16, bool) {
	if !v.IsSlotted() {
		return nil, 0, false
	}
	return s.table.locate(v.TableIndex(), v.Generation())
}

// snapshotPages copies the page list for the collector to walk.
func (s *pageStore) snapshotPages() []*Page {
	s.mu.RLock()
	out := make([]*Page, len(s.pages))
	copy(out, s.pages)
	s.mu.RUnlock()
	return out
}

// pagesOfClass copies one class's page list in ascending id order.
// Collector-only; runs while the world is stopped.
func (s *pageStore) pagesOfClass(class SizeClass) []*Page {
	out := make([]*Page, len(s.byClass[class]))
	copy(out, s.byClass[class])
	return out
}

// dropPage removes an emptied page from the store. Collector-only.
func (s *pageStore) dropPage(victim *Page) {
	s.mu.Lock()
	defer s.mu.Unlock()

	filter := func(list []*Page) []*Page {
		out := list[:0]
		for _, p := range list {
			if p != victim {
				out = append(out, p)
			}
		}
		return out
	}
	s.pages = filter(s.pages)
	s.byClass[victim.class] = filter(s.byClass[victim.class])
}

// setAllocColor retargets the color fresh records are painted.
// Collector-only; runs while the world is stopped.
func (s *pageStore) setAllocColor(c uint8) {
	s.allocColor = c
}

// shrinkNextID retracts the page id cursor after compaction released
// trailing pages. Collector-only; runs while the world is stopped.
func (s *pageStore) shrinkNextID() {
	var max uint32
	for _, p := range s.pages {
		if p.id > max {
			max = p.id
		}
	}
	s.nextID = max
}

// pageCount returns the number of pages in the store.
func (s *pageStore) pageCount() int {
	s.mu.RLock()
	n := len(s.pages)
	s.mu.RUnlock()
	return n
}
