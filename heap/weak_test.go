package heap

import (
	"testing"
)

// ---------------------------------------------------------------------------
// Weak observation
// ---------------------------------------------------------------------------

func TestWeakDoesNotRoot(t *testing.T) {
	iso, ctx := newTestIsolate(t)
	obj := mustCreate(t, iso, ctx, Undefined)
	w := probeWeak(t, iso, obj)

	got, ok := w.Value()
	if !ok || got != obj {
		t.Fatalf("Weak.Value() = %v, %v, want %v, true", got, ok, obj)
	}

	iso.Collect()
	if !w.IsAlive() {
		t.Fatal("referent reclaimed during its birth cycle")
	}
	iso.Collect()
	if w.IsAlive() {
		t.Error("weak handle alone kept the referent alive")
	}
	got, ok = w.Value()
	if ok || !got.IsUndefined() {
		t.Errorf("Weak.Value() after reclamation = %v, %v, want undefined, false", got, ok)
	}
}

func TestWeakAliveWhileRooted(t *testing.T) {
	iso, ctx := newTestIsolate(t)
	obj := mustCreate(t, iso, ctx, Undefined)
	pin := ctx.Pin(obj)
	w := probeWeak(t, iso, obj)

	for i := 0; i < 3; i++ {
		iso.Collect()
	}
	if !w.IsAlive() {
		t.Fatal("weak handle expired while the referent is pinned")
	}

	pin.Release()
	iso.Collect()
	if w.IsAlive() {
		t.Error("weak handle alive after the referent was reclaimed")
	}
}

func TestWeakRejectsPrimitives(t *testing.T) {
	iso, _ := newTestIsolate(t)

	for _, v := range []Value{MakeInteger(1), True, MakeFloat(0.5), Undefined, Null, MakeSymbol(3)} {
		_, err := iso.Weak(v)
		if !IsCode(err, ErrTypeMismatch) {
			t.Errorf("Weak(%v) = %v, want TypeMismatch", v, err)
		}
	}
}

// ---------------------------------------------------------------------------
// Drop listeners
// ---------------------------------------------------------------------------

func TestOnDropFiresOnce(t *testing.T) {
	iso, ctx := newTestIsolate(t)
	obj := mustCreate(t, iso, ctx, Undefined)
	w := probeWeak(t, iso, obj)

	fired := 0
	w.OnDrop(func() { fired++ })

	iso.Collect()
	if fired != 0 {
		t.Fatal("listener fired while the referent is alive")
	}
	iso.Collect()
	if fired != 1 {
		t.Fatalf("listener fired %d times after reclamation, want 1", fired)
	}
	iso.Collect()
	if fired != 1 {
		t.Errorf("listener re-fired on a later cycle: %d", fired)
	}
}

func TestOnDropAfterDeathFiresImmediately(t *testing.T) {
	iso, ctx := newTestIsolate(t)
	obj := mustCreate(t, iso, ctx, Undefined)
	w := probeWeak(t, iso, obj)

	iso.Collect()
	iso.Collect()
	if w.IsAlive() {
		t.Fatal("referent still alive")
	}

	fired := 0
	w.OnDrop(func() { fired++ })
	if fired != 1 {
		t.Errorf("late listener fired %d times, want 1 (immediately)", fired)
	}

	// A second late installation must not fire again.
	w.OnDrop(func() { fired++ })
	if fired != 1 {
		t.Errorf("second late listener fired, total %d", fired)
	}
}

func TestOnDropNilListener(t *testing.T) {
	iso, ctx := newTestIsolate(t)
	obj := mustCreate(t, iso, ctx, Undefined)
	w := probeWeak(t, iso, obj)

	w.OnDrop(nil)
	iso.Collect()
	iso.Collect()
	if w.IsAlive() {
		return
	}
	t.Error("referent not reclaimed")
}

// ---------------------------------------------------------------------------
// Generation discrimination
// ---------------------------------------------------------------------------

func TestWeakGenerationPreventsAliasing(t *testing.T) {
	iso, ctx := newTestIsolate(t)

	a := mustCreate(t, iso, ctx, Undefined)
	wa := probeWeak(t, iso, a)

	iso.Collect()
	iso.Collect()
	if wa.IsAlive() {
		t.Fatal("unrooted record not reclaimed")
	}

	// The freed table entry is recycled LIFO, so the next allocation
	// reuses a's index under a bumped generation.
	b := mustCreate(t, iso, ctx, Undefined)
	if b.TableIndex() != a.TableIndex() {
		t.Fatalf("recycled index = %d, want %d", b.TableIndex(), a.TableIndex())
	}
	if b.Generation() == a.Generation() {
		t.Fatal("recycled entry kept its generation")
	}

	pin := ctx.Pin(b)
	defer pin.Release()
	wb := probeWeak(t, iso, b)

	iso.Collect()
	if wa.IsAlive() {
		t.Error("dead weak handle revived by an index reuse")
	}
	if !wb.IsAlive() {
		t.Error("weak handle on the new tenant expired")
	}
	if _, ok := wa.Value(); ok {
		t.Error("expired handle serves the new tenant's value")
	}
}

func TestWeakExpiredStat(t *testing.T) {
	iso, ctx := newTestIsolate(t)

	const n = 3
	for i := 0; i < n; i++ {
		obj := mustCreate(t, iso, ctx, Undefined)
		probeWeak(t, iso, obj)
	}
	if got := iso.Stats().WeakHandles; got != n {
		t.Fatalf("WeakHandles = %d, want %d", got, n)
	}

	iso.Collect()
	stats := iso.Collect()
	if stats.WeakExpired != n {
		t.Errorf("WeakExpired = %d, want %d", stats.WeakExpired, n)
	}
	if got := iso.Stats().WeakHandles; got != 0 {
		t.Errorf("WeakHandles after expiry = %d, want 0", got)
	}
}
