package heap

import (
	"sync"
	"sync/atomic"
	"time"
)

// MarkSliceSize is the number of gray records the marker scans per
// worklist drain step.
const MarkSliceSize = 128

// ---------------------------------------------------------------------------
// Collector: stop-the-world mark-compact
// ---------------------------------------------------------------------------

// collector runs whole-heap collection cycles: stop the world, mark
// from the roots, sweep the unmarked, compact fragmented pages, flip
// the color base, restart the world. One cycle runs at a time.
type collector struct {
	iso *Isolate

	mu sync.Mutex

	// white is the current base color. Survivors end a cycle painted
	// white^colorFlip, which the flip turns into the next cycle's
	// white, so sweeping never repaints.
	white uint8

	cycles atomic.Uint64
	last   atomic.Value // *CollectionStats
}

func newCollector(iso *Isolate) *collector {
	return &collector{iso: iso, white: colorWhite}
}

func (gc *collector) cycleCount() uint64 {
	return gc.cycles.Load()
}

func (gc *collector) lastStats() *CollectionStats {
	v := gc.last.Load()
	if v == nil {
		return nil
	}
	return v.(*CollectionStats)
}

// Collect runs one synchronous collection cycle and returns its stats.
// Requesting a collection from inside an operation (a trap hook, for
// example) panics: the rendezvous would wait on the caller itself.
func (iso *Isolate) Collect() CollectionStats {
	iso.checkAlive("Collect")
	if iso.barrier.inOperation() {
		panic(errorf(ErrInternal, "Collect", "collection requested from inside an operation"))
	}
	return iso.gc.collect()
}

func (gc *collector) collect() CollectionStats {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	iso := gc.iso
	start := time.Now()

	iso.barrier.stopTheWorld()

	c := &gcCycle{iso: iso, white: gc.white}
	c.stats.Cycle = gc.cycles.Add(1)
	c.stats.Timestamp = start

	pages := iso.store.snapshotPages()
	c.markRoots(pages)
	c.drain()
	c.sweep(pages)
	c.compact()

	// Flip: survivors painted black this cycle become white for the
	// next one, and fresh allocations are painted to match.
	gc.white ^= colorFlip
	iso.store.setAllocColor(gc.white)
	for _, p := range iso.store.snapshotPages() {
		p.clearNursery()
	}

	c.stats.Live = iso.store.table.liveCount()
	c.stats.Pause = time.Since(start)

	iso.barrier.startTheWorld()

	// Weak listeners run outside the pause, on the collecting
	// goroutine.
	for _, fn := range c.listeners {
		fn()
	}

	stats := c.stats
	gc.last.Store(&stats)
	iso.log.Debugf("collection %d: marked %d, reclaimed %d, relocated %d, released %d pages, %d live, pause %s",
		stats.Cycle, stats.Marked, stats.Reclaimed, stats.Relocated,
		stats.PagesReleased, stats.Live, stats.Pause)
	return stats
}

// ---------------------------------------------------------------------------
// One cycle
// ---------------------------------------------------------------------------

// graySlot identifies a record painted gray and awaiting its scan.
type graySlot struct {
	page *Page
	slot uint16
}

// gcCycle is the working state of one collection. Everything here runs
// while the world is stopped, except the listeners, which the caller
// fires after restart.
type gcCycle struct {
	iso   *Isolate
	white uint8

	gray      []graySlot
	scanBuf   []Value
	slotBuf   []uint16
	valueBuf  []Value
	listeners []func()

	stats CollectionStats
}

// markRoots grays every root: builtin prototypes, the root set
// (Pinned and Persistent handles), open scope Locals, and the page
// nurseries.
func (c *gcCycle) markRoots(pages []*Page) {
	for _, v := range c.iso.builtins {
		c.markValue(v)
	}
	c.valueBuf = c.iso.roots.snapshot(c.valueBuf[:0])
	c.valueBuf = c.iso.scopes.snapshotValues(c.valueBuf)
	for _, v := range c.valueBuf {
		c.markValue(v)
	}
	for _, p := range pages {
		c.slotBuf = p.nurserySlots(c.slotBuf[:0])
		for _, slot := range c.slotBuf {
			c.pushGray(p, slot)
		}
	}
}

// markValue grays the record behind a slotted value. Primitive and
// stale values are ignored.
func (c *gcCycle) markValue(v Value) {
	if !v.IsSlotted() {
		return
	}
	page, slot, ok := c.iso.store.table.locate(v.TableIndex(), v.Generation())
	if !ok {
		return
	}
	c.pushGray(page, slot)
}

func (c *gcCycle) pushGray(page *Page, slot uint16) {
	if page.color(slot) != c.white {
		return
	}
	page.paint(slot, colorGray)
	c.gray = append(c.gray, graySlot{page: page, slot: slot})
}

// drain scans the gray worklist in MarkSliceSize chunks until empty.
func (c *gcCycle) drain() {
	for len(c.gray) > 0 {
		n := len(c.gray)
		if n > MarkSliceSize {
			n = MarkSliceSize
		}
		chunk := c.gray[len(c.gray)-n:]
		c.gray = c.gray[:len(c.gray)-n]
		for _, g := range chunk {
			c.scan(g)
		}
	}
}

// scan blackens one record and grays everything it references: the
// prototype, property values and reporting internal slots and traps.
func (c *gcCycle) scan(g graySlot) {
	g.page.paint(g.slot, c.white^colorFlip)
	c.stats.Marked++

	rec := &g.page.records[g.slot]
	c.scanBuf = rec.referencedValues(c.scanBuf[:0])
	for _, v := range c.scanBuf {
		c.markValue(v)
	}
}

// sweep releases every record still white: fire the slot trap's Drop,
// expire weak handles, retire the table entry (generation bump) and
// free the slot. Remembered entries of dead records are pruned.
func (c *gcCycle) sweep(pages []*Page) {
	iso := c.iso
	for _, page := range pages {
		c.slotBuf = page.occupiedSlots(c.slotBuf[:0])
		for _, slot := range c.slotBuf {
			switch page.color(slot) {
			case c.white:
			case colorGray:
				panic(errorf(ErrInternal, "Collect",
					"gray record survived the mark phase: page %d slot %d", page.id, slot))
			default:
				continue
			}

			rec := &page.records[slot]
			index := rec.table
			gen := iso.store.table.generation(index)

			if rec.slotTrap != nil {
				subject := makeSlotted(kindTag(rec.kind), index, gen)
				rec.slotTrap.Drop(TrapInfo{Subject: subject, Op: TrapDrop})
			}
			listeners, expired := iso.weaks.expireEntry(index, gen)
			c.listeners = append(c.listeners, listeners...)
			c.stats.WeakExpired += expired

			rec.clear()
			iso.store.table.releaseEntry(index)
			page.release(slot)
			page.forget(index)
			c.stats.Reclaimed++
		}
	}
}

// compact evacuates survivors of fragmented high-id pages into lower-id
// pages of the same class, then drops emptied pages and retracts the
// page id cursor.
func (c *gcCycle) compact() {
	iso := c.iso
	threshold := iso.opts.FragmentationThreshold

	for class := ClassSmall; class <= ClassLarge; class++ {
		pages := iso.store.pagesOfClass(class)
		for hi := len(pages) - 1; hi > 0; hi-- {
			victim := pages[hi]
			if victim.Used() == 0 {
				iso.store.dropPage(victim)
				c.stats.PagesReleased++
				continue
			}
			if victim.fragmentation() <= threshold {
				continue
			}
			if c.evacuate(victim, pages[:hi]) {
				iso.store.dropPage(victim)
				c.stats.PagesReleased++
			}
		}
	}
	iso.store.shrinkNextID()
}

// evacuate moves every record off victim into the target pages,
// reporting whether the page emptied. A record moves by struct copy;
// the table entry is rewritten in place so the record's identity (index
// and generation) survives the move.
func (c *gcCycle) evacuate(victim *Page, targets []*Page) bool {
	iso := c.iso
	c.slotBuf = victim.occupiedSlots(c.slotBuf[:0])

	ti := 0
	for _, slot := range c.slotBuf {
		var dst *Page
		var dstSlot uint16
		for ti < len(targets) {
			if s, ok := targets[ti].claim(); ok {
				dst = targets[ti]
				dstSlot = s
				break
			}
			ti++
		}
		if dst == nil {
			// No room left in lower pages; the page stays.
			return false
		}

		src := &victim.records[slot]
		index := src.table
		dst.records[dstSlot] = *src
		dst.paint(dstSlot, victim.color(slot))
		iso.store.table.relocate(index, dst, dstSlot)
		if _, ok := victim.remembered[index]; ok {
			victim.forget(index)
			dst.remember(index)
		}
		src.clear()
		victim.release(slot)
		c.stats.Relocated++
	}
	return true
}
