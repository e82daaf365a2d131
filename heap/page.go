package heap

import (
	"math/bits"
)

// ---------------------------------------------------------------------------
// Page: a fixed block of record slots
// ---------------------------------------------------------------------------

// PageSlotCount is the number of record slots per page.
const PageSlotCount = 578

// bitmapWords is the occupancy bitmap size: one bit per slot.
const bitmapWords = (PageSlotCount + 63) / 64

// GC colors. White and black swap meaning every cycle (XOR flip), so
// sweeping never has to repaint survivors. Gray is transient: the mark
// phase drains it before the cycle ends.
const (
	colorMask  uint8 = 0b11
	colorGray  uint8 = 0b01
	colorFlip  uint8 = 0b11
	colorWhite uint8 = 0b00 // initial base; flips each cycle
)

// Page holds PageSlotCount record slots of one size class together with
// their occupancy bitmap, per-slot locks, GC colors, the nursery and
// the remembered set. Slot locks live page-side so a Record stays a
// plain struct.
type Page struct {
	id    uint32
	class SizeClass

	records [PageSlotCount]Record
	locks   [PageSlotCount]rwMutex

	// occupancy guards allocation bookkeeping: bitmap, counts, nursery
	// and remembered set. Slot contents are guarded by locks[slot].
	occupancy rwMutex
	bitmap    [bitmapWords]uint64
	used      uint32

	colors [PageSlotCount]uint8

	nursery    map[uint16]struct{}
	remembered map[uint32]struct{}
}

func newPage(id uint32, class SizeClass) *Page {
	return &Page{
		id:         id,
		class:      class,
		nursery:    make(map[uint16]struct{}),
		remembered: make(map[uint32]struct{}),
	}
}

// ID returns the page's store-assigned identifier.
func (p *Page) ID() uint32 { return p.id }

// Class returns the page's size class.
func (p *Page) Class() SizeClass { return p.class }

// Used returns the number of occupied slots.
func (p *Page) Used() uint32 {
	p.occupancy.RLock()
	n := p.used
	p.occupancy.RUnlock()
	return n
}

// Full reports whether no slot is free.
func (p *Page) Full() bool {
	return p.Used() == PageSlotCount
}

// fragmentation is the fraction of slots that are free. Pages past the
// compaction threshold get their survivors evacuated.
func (p *Page) fragmentation() float64 {
	used := p.Used()
	if used == 0 {
		return 1
	}
	return float64(PageSlotCount-used) / float64(PageSlotCount)
}

// ---------------------------------------------------------------------------
// Slot allocation
// ---------------------------------------------------------------------------

// gain claims one free slot and reports its index. The claimed slot is
// initialized live, painted the current allocation color and entered
// into the nursery so it survives a collection that starts before the
// caller roots it.
func (p *Page) gain(class SizeClass, allocColor uint8) (uint16, bool) {
	p.occupancy.Lock()
	defer p.occupancy.Unlock()

	for w := 0; w < bitmapWords; w++ {
		free := ^p.bitmap[w]
		if w == bitmapWords-1 {
			free &= (1 << (PageSlotCount - (bitmapWords-1)*64)) - 1
		}
		if free == 0 {
			continue
		}
		bit := bits.TrailingZeros64(free)
		slot := uint16(w*64 + bit)
		p.bitmap[w] |= 1 << uint(bit)
		p.used++
		p.records[slot].reinit(class)
		p.colors[slot] = allocColor
		p.nursery[slot] = struct{}{}
		return slot, true
	}
	return 0, false
}

// release frees the slot. The record must already be cleared.
func (p *Page) release(slot uint16) {
	p.occupancy.Lock()
	p.bitmap[slot/64] &^= 1 << uint(slot%64)
	p.used--
	delete(p.nursery, slot)
	p.occupancy.Unlock()
}

// claim takes one free slot for an incoming relocation: occupied but
// not reinitialized, not painted and not entered into the nursery.
// Collector-only; runs while the world is stopped.
func (p *Page) claim() (uint16, bool) {
	for w := 0; w < bitmapWords; w++ {
		free := ^p.bitmap[w]
		if w == bitmapWords-1 {
			free &= (1 << (PageSlotCount - (bitmapWords-1)*64)) - 1
		}
		if free == 0 {
			continue
		}
		bit := bits.TrailingZeros64(free)
		p.bitmap[w] |= 1 << uint(bit)
		p.used++
		return uint16(w*64 + bit), true
	}
	return 0, false
}

// occupied reports whether the slot holds a record.
func (p *Page) occupied(slot uint16) bool {
	p.occupancy.RLock()
	set := p.bitmap[slot/64]&(1<<uint(slot%64)) != 0
	p.occupancy.RUnlock()
	return set
}

// occupiedSlots appends the indices of all occupied slots to buf.
// Collector-only; runs while the world is stopped.
func (p *Page) occupiedSlots(buf []uint16) []uint16 {
	for w := 0; w < bitmapWords; w++ {
		word := p.bitmap[w]
		for word != 0 {
			bit := bits.TrailingZeros64(word)
			word &^= 1 << uint(bit)
			buf = append(buf, uint16(w*64+bit))
		}
	}
	return buf
}

// ---------------------------------------------------------------------------
// Nursery
// ---------------------------------------------------------------------------

// nurserySlots appends the nursery members to buf. Collector-only.
func (p *Page) nurserySlots(buf []uint16) []uint16 {
	for slot := range p.nursery {
		buf = append(buf, slot)
	}
	return buf
}

// clearNursery empties the nursery at the end of a completed
// collection. Collector-only.
func (p *Page) clearNursery() {
	clear(p.nursery)
}

// ---------------------------------------------------------------------------
// Colors
// ---------------------------------------------------------------------------

// color returns the slot's GC color. Collector-only.
func (p *Page) color(slot uint16) uint8 {
	return p.colors[slot] & colorMask
}

// paint sets the slot's GC color. Collector-only.
func (p *Page) paint(slot uint16, c uint8) {
	p.colors[slot] = c & colorMask
}
