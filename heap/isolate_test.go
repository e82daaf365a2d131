package heap

import (
	"slices"
	"testing"
)

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNewIsolateDefaults(t *testing.T) {
	iso, ctx := newTestIsolate(t)

	if iso.ID() == "" {
		t.Error("isolate has no id")
	}
	if ctx.Isolate() != iso {
		t.Error("Context.Isolate() does not return its isolate")
	}

	stats := iso.Stats()
	if stats.Pages != 2 {
		t.Errorf("Pages = %d, want 2 (one per size class)", stats.Pages)
	}
	if stats.LiveRecords != 8 {
		t.Errorf("LiveRecords = %d, want the 8 builtin prototypes", stats.LiveRecords)
	}
	if stats.Roots != 0 {
		t.Errorf("Roots = %d, want 0", stats.Roots)
	}
	if stats.Cycles != 0 || stats.LastCollection != nil {
		t.Errorf("fresh isolate reports collections: %d, %v", stats.Cycles, stats.LastCollection)
	}
	if stats.Occupancy() <= 0 {
		t.Errorf("Occupancy = %v, want > 0", stats.Occupancy())
	}

	other, err := NewIsolate(DefaultOptions())
	if err != nil {
		t.Fatalf("NewIsolate: %v", err)
	}
	defer other.Shutdown()
	if other.ID() == iso.ID() {
		t.Error("two isolates share an id")
	}
}

func TestContextSeededFromOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.EnableFieldShortcuts = false
	opts.DispatchTraps = false
	iso, err := NewIsolate(opts)
	if err != nil {
		t.Fatalf("NewIsolate: %v", err)
	}
	defer iso.Shutdown()

	ctx := iso.NewContext()
	if ctx.EnableShortcuts {
		t.Error("EnableShortcuts = true, want the option's false")
	}
	if ctx.DispatchTraps {
		t.Error("DispatchTraps = true, want the option's false")
	}
}

func TestPrototypeForEveryKind(t *testing.T) {
	iso, ctx := newTestIsolate(t)

	objectKinds := []Kind{
		KindBoolean, KindInteger, KindFloat, KindSymbol,
		KindText, KindList, KindTuple, KindObject,
	}
	seen := make(map[Value]Kind, len(objectKinds))
	for _, k := range objectKinds {
		proto := iso.PrototypeFor(k)
		if !proto.IsObject() {
			t.Errorf("PrototypeFor(%v) = %v, want an object record", k, proto)
			continue
		}
		if prior, dup := seen[proto]; dup {
			t.Errorf("PrototypeFor(%v) aliases PrototypeFor(%v)", k, prior)
		}
		seen[proto] = k
	}

	for _, k := range []Kind{KindUndefined, KindNull} {
		if proto := iso.PrototypeFor(k); !proto.IsNull() {
			t.Errorf("PrototypeFor(%v) = %v, want null", k, proto)
		}
	}

	// Every builtin prototype hangs under the object prototype, which
	// itself terminates at null.
	for _, k := range objectKinds[:len(objectKinds)-1] {
		proto, err := iso.GetPrototype(ctx, iso.PrototypeFor(k))
		if err != nil || proto != iso.ObjectPrototype() {
			t.Errorf("GetPrototype(PrototypeFor(%v)) = %v, %v, want the object prototype", k, proto, err)
		}
	}
	top, err := iso.GetPrototype(ctx, iso.ObjectPrototype())
	if err != nil || !top.IsNull() {
		t.Errorf("GetPrototype(object prototype) = %v, %v, want null", top, err)
	}
}

// ---------------------------------------------------------------------------
// Object creation validation
// ---------------------------------------------------------------------------

func TestCreateObjectValidation(t *testing.T) {
	iso, ctx := newTestIsolate(t)

	for _, bad := range []Value{MakeInteger(1), True, MakeFloat(1.5), MakeSymbol(2)} {
		_, err := iso.CreateObject(ctx, bad)
		if !IsCode(err, ErrTypeMismatch) {
			t.Errorf("CreateObject(proto=%v) = %v, want TypeMismatch", bad, err)
		}
	}

	text := mustText(t, iso, ctx, "not a prototype")
	if _, err := iso.CreateObject(ctx, text); !IsCode(err, ErrTypeMismatch) {
		t.Errorf("CreateObject(text proto) = want TypeMismatch")
	}

	if _, err := iso.CreateObjectSized(ctx, Undefined, SizeClass(9)); !IsCode(err, ErrTypeMismatch) {
		t.Errorf("CreateObjectSized(bad class) = want TypeMismatch")
	}
}

func TestPageBudgetExhaustion(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxPages = 2
	iso, err := NewIsolate(opts)
	if err != nil {
		t.Fatalf("NewIsolate: %v", err)
	}
	defer iso.Shutdown()
	ctx := iso.NewContext()

	// One small page is preallocated and the builtins occupy 8 slots of
	// it; the budget denies a third page.
	created := 0
	for {
		_, cerr := iso.CreateObject(ctx, Null)
		if cerr != nil {
			if !IsCode(cerr, ErrOutOfMemory) {
				t.Fatalf("allocation failed with %v, want OutOfMemory", cerr)
			}
			break
		}
		created++
		if created > PageSlotCount {
			t.Fatal("budget never enforced")
		}
	}
	if want := PageSlotCount - 8; created != want {
		t.Errorf("allocations before exhaustion = %d, want %d", created, want)
	}
}

// ---------------------------------------------------------------------------
// Internal slots
// ---------------------------------------------------------------------------

func TestInternalSlotRoundTrip(t *testing.T) {
	iso, ctx := newTestIsolate(t)
	obj := mustCreate(t, iso, ctx, Undefined)

	idA := iso.NewInternalSlotID()
	idB := iso.NewInternalSlotID()
	if idA == 0 || idB <= idA {
		t.Fatalf("slot ids = %d, %d, want fresh ascending nonzero", idA, idB)
	}

	type payload struct{ n int }
	if err := iso.SetInternalSlot(ctx, obj, idA, &payload{n: 1}); err != nil {
		t.Fatalf("SetInternalSlot: %v", err)
	}
	if err := iso.SetInternalSlot(ctx, obj, idB, &payload{n: 2}); err != nil {
		t.Fatalf("SetInternalSlot: %v", err)
	}

	got, ok, err := iso.GetInternalSlot(ctx, obj, idA)
	if err != nil || !ok {
		t.Fatalf("GetInternalSlot = %v, %v, %v", got, ok, err)
	}
	if p, good := got.(*payload); !good || p.n != 1 {
		t.Errorf("payload = %#v, want n=1", got)
	}

	has, err := iso.HasInternalSlot(ctx, obj, idB)
	if err != nil || !has {
		t.Errorf("HasInternalSlot(idB) = %v, %v, want true", has, err)
	}

	ids, err := iso.ListInternalSlotIDs(ctx, obj)
	if err != nil {
		t.Fatalf("ListInternalSlotIDs: %v", err)
	}
	if !slices.Equal(ids, []uint64{idA, idB}) {
		t.Errorf("ListInternalSlotIDs = %v, want [%d %d] ascending", ids, idA, idB)
	}

	removed, err := iso.ClearInternalSlot(ctx, obj, idA)
	if err != nil || !removed {
		t.Errorf("ClearInternalSlot = %v, %v, want true, nil", removed, err)
	}
	removed, err = iso.ClearInternalSlot(ctx, obj, idA)
	if err != nil || removed {
		t.Errorf("ClearInternalSlot twice = %v, %v, want false, nil", removed, err)
	}
	has, err = iso.HasInternalSlot(ctx, obj, idA)
	if err != nil || has {
		t.Errorf("HasInternalSlot after clear = %v, %v, want false", has, err)
	}
}

func TestInternalSlotsBypassIntegrity(t *testing.T) {
	iso, ctx := newTestIsolate(t)
	obj := mustCreate(t, iso, ctx, Undefined)
	if err := iso.Freeze(ctx, obj); err != nil {
		t.Fatal(err)
	}

	// Internal slots are embedder bookkeeping outside the property map;
	// freezing does not apply to them.
	id := iso.NewInternalSlotID()
	if err := iso.SetInternalSlot(ctx, obj, id, "embedder state"); err != nil {
		t.Errorf("SetInternalSlot on frozen record = %v, want nil", err)
	}
	if _, err := iso.ClearInternalSlot(ctx, obj, id); err != nil {
		t.Errorf("ClearInternalSlot on frozen record = %v, want nil", err)
	}
}

func TestInternalSlotOnPrimitive(t *testing.T) {
	iso, ctx := newTestIsolate(t)

	err := iso.SetInternalSlot(ctx, MakeInteger(1), 1, "x")
	if !IsCode(err, ErrTypeMismatch) {
		t.Errorf("SetInternalSlot on primitive = %v, want TypeMismatch", err)
	}
	_, ok, err := iso.GetInternalSlot(ctx, MakeInteger(1), 1)
	if err != nil || ok {
		t.Errorf("GetInternalSlot on primitive = %v, %v, want false, nil", ok, err)
	}
}

// ---------------------------------------------------------------------------
// Outlets
// ---------------------------------------------------------------------------

func TestOutletRegistry(t *testing.T) {
	iso, _ := newTestIsolate(t)

	a := iso.AddOutlet("first")
	b := iso.AddOutlet(42)
	if a == b {
		t.Fatalf("outlet ids collide: %d", a)
	}

	got, ok := iso.Outlet(a)
	if !ok || got != "first" {
		t.Errorf("Outlet(a) = %v, %v, want first, true", got, ok)
	}
	got, ok = iso.Outlet(b)
	if !ok || got != 42 {
		t.Errorf("Outlet(b) = %v, %v, want 42, true", got, ok)
	}

	iso.ClearOutlet(a)
	if _, ok := iso.Outlet(a); ok {
		t.Error("Outlet(a) still registered after ClearOutlet")
	}
	if _, ok := iso.Outlet(b); !ok {
		t.Error("ClearOutlet(a) removed b")
	}
}

// ---------------------------------------------------------------------------
// Shutdown
// ---------------------------------------------------------------------------

func TestShutdownRetiresIsolate(t *testing.T) {
	iso, err := NewIsolate(DefaultOptions())
	if err != nil {
		t.Fatalf("NewIsolate: %v", err)
	}
	ctx := iso.NewContext()
	obj, err := iso.CreateObject(ctx, Undefined)
	if err != nil {
		t.Fatalf("CreateObject: %v", err)
	}

	iso.Shutdown()

	wantPanicCode(t, ErrHandleExpired, func() { iso.NewContext() })
	wantPanicCode(t, ErrHandleExpired, func() { _, _ = iso.CreateObject(ctx, Undefined) })
	wantPanicCode(t, ErrHandleExpired, func() { _, _ = iso.GetOwnProperty(ctx, obj, 1) })
	wantPanicCode(t, ErrHandleExpired, func() { iso.Stats() })
	wantPanicCode(t, ErrHandleExpired, func() { iso.Collect() })
	wantPanicCode(t, ErrHandleExpired, iso.Shutdown)
}

func TestIsolatesAreIndependent(t *testing.T) {
	one, ctxOne := newTestIsolate(t)

	two, err := NewIsolate(DefaultOptions())
	if err != nil {
		t.Fatalf("NewIsolate: %v", err)
	}
	ctxTwo := two.NewContext()

	for i := 0; i < 5; i++ {
		if _, err := one.CreateObject(ctxOne, Undefined); err != nil {
			t.Fatal(err)
		}
	}
	if got := two.Stats().LiveRecords; got != 8 {
		t.Errorf("second isolate LiveRecords = %d, want its 8 builtins only", got)
	}

	// Retiring one isolate leaves the other fully operational.
	two.Shutdown()
	if _, err := one.CreateObject(ctxOne, Undefined); err != nil {
		t.Errorf("first isolate broken by second's shutdown: %v", err)
	}
	wantPanicCode(t, ErrHandleExpired, func() { _, _ = two.CreateObject(ctxTwo, Undefined) })
}
