package heap

import (
	"time"
)

// ---------------------------------------------------------------------------
// Statistics
// ---------------------------------------------------------------------------

// CollectionStats holds the outcome of one collection cycle.
type CollectionStats struct {
	// Cycle is the 1-based collection counter.
	Cycle uint64

	// Marked is the number of records the mark phase painted black.
	Marked int

	// Reclaimed is the number of records the sweep released.
	Reclaimed int

	// Relocated is the number of records compaction moved.
	Relocated int

	// PagesReleased is the number of pages dropped by compaction.
	PagesReleased int

	// WeakExpired is the number of weak handles whose referent was
	// reclaimed this cycle.
	WeakExpired int

	// Live is the record count after the cycle.
	Live uint32

	// Pause is the stop-the-world duration.
	Pause time.Duration

	// Timestamp is when the cycle started.
	Timestamp time.Time
}

// PageSnapshot describes one page for stats reporting.
type PageSnapshot struct {
	ID         uint32
	Class      SizeClass
	Used       uint32
	Nursery    int
	Remembered int
}

// HeapStats is a point-in-time summary of the isolate.
type HeapStats struct {
	IsolateID   string
	Pages       int
	LiveRecords uint32
	Roots       int
	WeakHandles int
	Symbols     int
	Cycles      uint64

	// LastCollection is nil until the first cycle completes.
	LastCollection *CollectionStats

	PageList []PageSnapshot
}

// Occupancy is the live-record fraction of the page capacity.
func (s HeapStats) Occupancy() float64 {
	if s.Pages == 0 {
		return 0
	}
	return float64(s.LiveRecords) / float64(s.Pages*PageSlotCount)
}

// Stats summarizes the isolate's current heap state.
func (iso *Isolate) Stats() HeapStats {
	iso.checkAlive("Stats")
	iso.barrier.enter()
	defer iso.barrier.exit()

	pages := iso.store.snapshotPages()
	stats := HeapStats{
		IsolateID:      iso.id,
		Pages:          len(pages),
		LiveRecords:    iso.store.table.liveCount(),
		Roots:          iso.roots.count(),
		WeakHandles:    iso.weaks.count(),
		Symbols:        iso.symbols.Count(),
		Cycles:         iso.gc.cycleCount(),
		LastCollection: iso.gc.lastStats(),
		PageList:       make([]PageSnapshot, 0, len(pages)),
	}
	for _, p := range pages {
		p.occupancy.RLock()
		snap := PageSnapshot{
			ID:         p.id,
			Class:      p.class,
			Used:       p.used,
			Nursery:    len(p.nursery),
			Remembered: len(p.remembered),
		}
		p.occupancy.RUnlock()
		stats.PageList = append(stats.PageList, snap)
	}
	return stats
}

// occupancy is the live fraction the auto collector's trigger compares
// against.
func (iso *Isolate) occupancy() float64 {
	pages := iso.store.pageCount()
	if pages == 0 {
		return 0
	}
	return float64(iso.store.table.liveCount()) / float64(pages*PageSlotCount)
}
