package heap

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Diagnostics snapshot (CBOR)
// ---------------------------------------------------------------------------

// cborEncMode encodes snapshots canonically so identical heap states
// produce identical bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("heap: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// SnapshotFormatVersion is bumped whenever the snapshot layout changes
// incompatibly.
const SnapshotFormatVersion = 1

// Snapshot is the externally persistable image of an isolate's
// statistics. It carries no object graph, only the numbers external
// tooling needs to chart heap behavior over time.
type Snapshot struct {
	Format      uint8          `cbor:"1,keyasint"`
	IsolateID   string         `cbor:"2,keyasint"`
	CapturedAt  int64          `cbor:"3,keyasint"` // unix nanoseconds
	Pages       int            `cbor:"4,keyasint"`
	LiveRecords uint32         `cbor:"5,keyasint"`
	Roots       int            `cbor:"6,keyasint"`
	WeakHandles int            `cbor:"7,keyasint"`
	Symbols     int            `cbor:"8,keyasint"`
	Cycles      uint64         `cbor:"9,keyasint"`
	Last        *SnapshotCycle `cbor:"10,keyasint,omitempty"`
	PageList    []SnapshotPage `cbor:"11,keyasint,omitempty"`
}

// SnapshotCycle mirrors CollectionStats with wire-friendly integer
// timestamps.
type SnapshotCycle struct {
	Cycle         uint64 `cbor:"1,keyasint"`
	Marked        int    `cbor:"2,keyasint"`
	Reclaimed     int    `cbor:"3,keyasint"`
	Relocated     int    `cbor:"4,keyasint"`
	PagesReleased int    `cbor:"5,keyasint"`
	WeakExpired   int    `cbor:"6,keyasint"`
	Live          uint32 `cbor:"7,keyasint"`
	PauseNanos    int64  `cbor:"8,keyasint"`
	StartedAt     int64  `cbor:"9,keyasint"` // unix nanoseconds
}

// SnapshotPage mirrors PageSnapshot on the wire.
type SnapshotPage struct {
	ID         uint32    `cbor:"1,keyasint"`
	Class      SizeClass `cbor:"2,keyasint"`
	Used       uint32    `cbor:"3,keyasint"`
	Nursery    int       `cbor:"4,keyasint"`
	Remembered int       `cbor:"5,keyasint"`
}

// Snapshot captures current statistics and encodes them to canonical
// CBOR bytes the caller may persist or ship to tooling.
func (iso *Isolate) Snapshot() ([]byte, error) {
	stats := iso.Stats()
	return MarshalSnapshot(buildSnapshot(stats, time.Now()))
}

// buildSnapshot converts a HeapStats into its wire form.
func buildSnapshot(stats HeapStats, capturedAt time.Time) *Snapshot {
	snap := &Snapshot{
		Format:      SnapshotFormatVersion,
		IsolateID:   stats.IsolateID,
		CapturedAt:  capturedAt.UnixNano(),
		Pages:       stats.Pages,
		LiveRecords: stats.LiveRecords,
		Roots:       stats.Roots,
		WeakHandles: stats.WeakHandles,
		Symbols:     stats.Symbols,
		Cycles:      stats.Cycles,
	}
	if last := stats.LastCollection; last != nil {
		snap.Last = &SnapshotCycle{
			Cycle:         last.Cycle,
			Marked:        last.Marked,
			Reclaimed:     last.Reclaimed,
			Relocated:     last.Relocated,
			PagesReleased: last.PagesReleased,
			WeakExpired:   last.WeakExpired,
			Live:          last.Live,
			PauseNanos:    int64(last.Pause),
			StartedAt:     last.Timestamp.UnixNano(),
		}
	}
	if len(stats.PageList) > 0 {
		snap.PageList = make([]SnapshotPage, 0, len(stats.PageList))
		for _, p := range stats.PageList {
			snap.PageList = append(snap.PageList, SnapshotPage{
				ID:         p.ID,
				Class:      p.Class,
				Used:       p.Used,
				Nursery:    p.Nursery,
				Remembered: p.Remembered,
			})
		}
	}
	return snap
}

// MarshalSnapshot serializes a Snapshot to CBOR bytes.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	data, err := cborEncMode.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("heap: marshal snapshot: %w", err)
	}
	return data, nil
}

// UnmarshalSnapshot deserializes a Snapshot from CBOR bytes.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("heap: unmarshal snapshot: %w", err)
	}
	return &s, nil
}
