package heap

// ---------------------------------------------------------------------------
// Remembered set: cross-page reference bookkeeping
// ---------------------------------------------------------------------------

// Each page remembers the table indices of its own records that store a
// reference into another page. The property write barrier feeds the
// set; sweep and compaction prune it. Mark still scans the full heap,
// so the set is advisory: it keeps the bookkeeping a partial scan
// would need, and Stats exposes it.

// remember records that the record under index, resident on this page,
// stores a cross-page reference.
func (p *Page) remember(index uint32) {
	p.occupancy.Lock()
	p.remembered[index] = struct{}{}
	p.occupancy.Unlock()
}

// forget removes a table index from the remembered set. Collector-only.
func (p *Page) forget(index uint32) {
	delete(p.remembered, index)
}

// rememberedCount returns the remembered set size.
func (p *Page) rememberedCount() int {
	p.occupancy.RLock()
	n := len(p.remembered)
	p.occupancy.RUnlock()
	return n
}

// rememberCross is the write barrier: when a value stored into the
// record under fromIndex resolves to a different page, the writing page
// remembers the writer. Same-page and primitive stores are not
// remembered.
func (iso *Isolate) rememberCross(from *Page, fromIndex uint32, to Value) {
	if !to.IsSlotted() {
		return
	}
	toPage, _, ok := iso.store.tryResolve(to)
	if ok && toPage != from {
		from.remember(fromIndex)
	}
}
