package heap

import (
	"math"
	"testing"
	"unsafe"
)

// ---------------------------------------------------------------------------
// Float tests
// ---------------------------------------------------------------------------

func TestFloatRoundTrip(t *testing.T) {
	tests := []float64{
		0.0,
		math.Copysign(0, -1),
		1.0,
		-1.0,
		3.14159265358979,
		-3.14159265358979,
		math.MaxFloat64,
		math.SmallestNonzeroFloat64,
		-math.MaxFloat64,
		-math.SmallestNonzeroFloat64,
		math.Inf(1),
		math.Inf(-1),
	}

	for _, f := range tests {
		v := MakeFloat(f)
		if !v.IsFloat() {
			t.Errorf("MakeFloat(%v).IsFloat() = false, want true", f)
			continue
		}
		got := v.Float64()
		if got != f {
			t.Errorf("MakeFloat(%v).Float64() = %v, want %v", f, got, f)
		}
	}
}

func TestFloatNaNCanonicalization(t *testing.T) {
	v := MakeFloat(math.NaN())
	if v != CanonicalNaN {
		t.Errorf("MakeFloat(NaN) = %#x, want canonical %#x", uint64(v), uint64(CanonicalNaN))
	}
	if !v.IsFloat() {
		t.Error("canonical NaN should decode as float")
	}
	if !math.IsNaN(v.Float64()) {
		t.Error("canonical NaN roundtrip failed")
	}

	// A NaN whose mantissa collides with a tagged pattern must collapse
	// to the canonical form instead of decoding as that tag.
	forged := math.Float64frombits(nanBits | tagObject | 42)
	if got := MakeFloat(forged); got != CanonicalNaN {
		t.Errorf("MakeFloat(forged NaN) = %#x, want canonical NaN", uint64(got))
	}
}

func TestNegativeNaNIsFloat(t *testing.T) {
	// Sign-bit NaNs sit outside the reserved tag space and stay floats.
	neg := Value(uint64(1)<<63 | nanBits | 7)
	if neg.Kind() != KindFloat {
		t.Errorf("negative NaN Kind() = %v, want float", neg.Kind())
	}
}

func TestFloatTypeChecks(t *testing.T) {
	v := MakeFloat(42.5)
	if !v.IsFloat() {
		t.Error("IsFloat should be true")
	}
	if v.IsInteger() {
		t.Error("IsInteger should be false for float")
	}
	if v.IsObject() {
		t.Error("IsObject should be false for float")
	}
	if v.IsSymbol() {
		t.Error("IsSymbol should be false for float")
	}
	if v.IsNil() {
		t.Error("IsNil should be false for float")
	}
	if v.IsBoolean() {
		t.Error("IsBoolean should be false for float")
	}
}

// ---------------------------------------------------------------------------
// Integer tests
// ---------------------------------------------------------------------------

func TestIntegerRoundTrip(t *testing.T) {
	tests := []int32{
		0,
		1,
		-1,
		42,
		-42,
		1000000,
		-1000000,
		math.MaxInt32,
		math.MinInt32,
	}

	for _, n := range tests {
		v := MakeInteger(n)
		if !v.IsInteger() {
			t.Errorf("MakeInteger(%d).IsInteger() = false, want true", n)
			continue
		}
		got := v.Int32()
		if got != n {
			t.Errorf("MakeInteger(%d).Int32() = %d, want %d", n, got, n)
		}
	}
}

func TestCardinalRoundTrip(t *testing.T) {
	tests := []uint32{0, 1, 42, math.MaxInt32, math.MaxInt32 + 1, math.MaxUint32}

	for _, n := range tests {
		v := MakeCardinal(n)
		if !v.IsInteger() {
			t.Errorf("MakeCardinal(%d).IsInteger() = false, want true", n)
			continue
		}
		got := v.Uint32()
		if got != n {
			t.Errorf("MakeCardinal(%d).Uint32() = %d, want %d", n, got, n)
		}
	}
}

func TestNegativeOriginBit(t *testing.T) {
	// Negative-created integers refuse cardinal extraction.
	neg := MakeInteger(-42)
	if _, ok := neg.TryUint32(); ok {
		t.Error("TryUint32 on a negative-created integer should fail")
	}
	if n, ok := neg.TryInt32(); !ok || n != -42 {
		t.Errorf("TryInt32(-42) = %d, %v; want -42, true", n, ok)
	}

	// A negative-created zero keeps the origin bit: signed extraction
	// yields zero, cardinal extraction still refuses.
	v, err := Encode(KindInteger, intNegativeBit)
	if err != nil {
		t.Fatalf("Encode(negative zero) failed: %v", err)
	}
	if n, ok := v.TryInt32(); !ok || n != 0 {
		t.Errorf("negative zero TryInt32 = %d, %v; want 0, true", n, ok)
	}
	if _, ok := v.TryUint32(); ok {
		t.Error("negative zero TryUint32 should fail")
	}
	if v == MakeInteger(0) {
		t.Error("negative-created zero should be a distinct bit pattern from +0")
	}
}

func TestCardinalBeyondInt32(t *testing.T) {
	v := MakeCardinal(math.MaxUint32)
	if _, ok := v.TryInt32(); ok {
		t.Error("TryInt32 on a cardinal beyond int32 range should fail")
	}
	if got := v.Uint32(); got != math.MaxUint32 {
		t.Errorf("Uint32() = %d, want %d", got, uint32(math.MaxUint32))
	}
}

func TestInt32PanicOnNonInteger(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Int32() on a float should panic")
		}
	}()
	MakeFloat(42.0).Int32()
}

func TestUint32PanicOnNegative(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Uint32() on a negative-created integer should panic")
		}
	}()
	MakeInteger(-1).Uint32()
}

// ---------------------------------------------------------------------------
// Nil and boolean tests
// ---------------------------------------------------------------------------

func TestNilValues(t *testing.T) {
	if !Undefined.IsUndefined() || !Undefined.IsNil() {
		t.Error("Undefined should be undefined and nil")
	}
	if !Null.IsNull() || !Null.IsNil() {
		t.Error("Null should be null and nil")
	}
	if Undefined == Null {
		t.Error("Undefined and Null should be distinct")
	}
	if Undefined.Kind() != KindUndefined {
		t.Errorf("Undefined.Kind() = %v, want undefined", Undefined.Kind())
	}
	if Null.Kind() != KindNull {
		t.Errorf("Null.Kind() = %v, want null", Null.Kind())
	}
}

func TestBooleans(t *testing.T) {
	if !True.IsBoolean() || !False.IsBoolean() {
		t.Error("True and False should be booleans")
	}
	if True.Bool() != true || False.Bool() != false {
		t.Error("Bool() roundtrip failed")
	}
	if MakeBoolean(true) != True || MakeBoolean(false) != False {
		t.Error("MakeBoolean should return the canonical constants")
	}
	if True.Kind() != KindBoolean || False.Kind() != KindBoolean {
		t.Error("booleans should decode as KindBoolean")
	}
}

func TestBoolPanicOnNonBoolean(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Bool() on an integer should panic")
		}
	}()
	MakeInteger(1).Bool()
}

// ---------------------------------------------------------------------------
// Symbol tests
// ---------------------------------------------------------------------------

func TestSymbolValueRoundTrip(t *testing.T) {
	tests := []Symbol{0, 1, 100, 1000000, math.MaxUint32}

	for _, s := range tests {
		v := MakeSymbol(s)
		if !v.IsSymbol() {
			t.Errorf("MakeSymbol(%d).IsSymbol() = false, want true", s)
			continue
		}
		got := v.Symbol()
		if got != s {
			t.Errorf("MakeSymbol(%d).Symbol() = %d, want %d", s, got, s)
		}
	}
}

func TestSymbolPanicOnNonSymbol(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Symbol() on an integer should panic")
		}
	}()
	MakeInteger(42).Symbol()
}

// ---------------------------------------------------------------------------
// Slotted value tests
// ---------------------------------------------------------------------------

func TestSlottedRoundTrip(t *testing.T) {
	tests := []struct {
		tag   uint64
		kind  Kind
		index uint32
		gen   uint16
	}{
		{tagText, KindText, 1, 1},
		{tagTuple, KindTuple, 577, 2},
		{tagList, KindList, 1 << 20, 0xFFFF},
		{tagObject, KindObject, 0xFFFFFFFF, 7},
	}

	for _, tt := range tests {
		v := makeSlotted(tt.tag, tt.index, tt.gen)
		if v.Kind() != tt.kind {
			t.Errorf("makeSlotted(%#x).Kind() = %v, want %v", tt.tag, v.Kind(), tt.kind)
		}
		if !v.IsSlotted() {
			t.Errorf("makeSlotted(%#x).IsSlotted() = false, want true", tt.tag)
		}
		if got := v.TableIndex(); got != tt.index {
			t.Errorf("TableIndex() = %d, want %d", got, tt.index)
		}
		if got := v.Generation(); got != tt.gen {
			t.Errorf("Generation() = %d, want %d", got, tt.gen)
		}
	}
}

func TestSlottedDistinctKinds(t *testing.T) {
	text := makeSlotted(tagText, 5, 1)
	list := makeSlotted(tagList, 5, 1)
	tuple := makeSlotted(tagTuple, 5, 1)
	obj := makeSlotted(tagObject, 5, 1)

	all := []Value{text, list, tuple, obj}
	for i := range all {
		for j := i + 1; j < len(all); j++ {
			if all[i] == all[j] {
				t.Errorf("slotted values %d and %d with same payload should differ", i, j)
			}
		}
	}
}

func TestTableIndexPanicOnImmediate(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("TableIndex() on an integer should panic")
		}
	}()
	MakeInteger(42).TableIndex()
}

// ---------------------------------------------------------------------------
// Kind decoding
// ---------------------------------------------------------------------------

func TestKindTotality(t *testing.T) {
	tests := []struct {
		v    Value
		want Kind
	}{
		{Undefined, KindUndefined},
		{Null, KindNull},
		{True, KindBoolean},
		{False, KindBoolean},
		{MakeInteger(7), KindInteger},
		{MakeCardinal(math.MaxUint32), KindInteger},
		{MakeFloat(2.5), KindFloat},
		{MakeFloat(math.Inf(1)), KindFloat},
		{CanonicalNaN, KindFloat},
		{MakeSymbol(9), KindSymbol},
		{makeSlotted(tagText, 1, 1), KindText},
		{makeSlotted(tagList, 1, 1), KindList},
		{makeSlotted(tagTuple, 1, 1), KindTuple},
		{makeSlotted(tagObject, 1, 1), KindObject},
	}

	for _, tt := range tests {
		if got := tt.v.Kind(); got != tt.want {
			t.Errorf("Kind(%#x) = %v, want %v", uint64(tt.v), got, tt.want)
		}
	}
}

func TestKindString(t *testing.T) {
	if KindObject.String() != "object" || KindUndefined.String() != "undefined" {
		t.Error("Kind.String() mismatch")
	}
	if Kind(200).String() != "invalid" {
		t.Error("unknown kind should print invalid")
	}
}

// ---------------------------------------------------------------------------
// Generic encode
// ---------------------------------------------------------------------------

func TestEncodeValid(t *testing.T) {
	tests := []struct {
		kind    Kind
		payload uint64
		want    Value
	}{
		{KindUndefined, 0, Undefined},
		{KindNull, 0, Null},
		{KindBoolean, 1, True},
		{KindBoolean, 0, False},
		{KindInteger, 42, MakeInteger(42)},
		{KindFloat, math.Float64bits(1.5), MakeFloat(1.5)},
		{KindSymbol, 7, MakeSymbol(7)},
		{KindObject, uint64(3)<<slottedIndexShift | 1, makeSlotted(tagObject, 3, 1)},
	}

	for _, tt := range tests {
		got, err := Encode(tt.kind, tt.payload)
		if err != nil {
			t.Errorf("Encode(%v, %#x) failed: %v", tt.kind, tt.payload, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Encode(%v, %#x) = %#x, want %#x", tt.kind, tt.payload, uint64(got), uint64(tt.want))
		}
	}
}

func TestEncodeInvalid(t *testing.T) {
	tests := []struct {
		kind    Kind
		payload uint64
	}{
		{KindBoolean, 2},
		{KindInteger, 1 << 34},
		{KindSymbol, 1 << 33},
		{KindObject, 1 << 48},
		{Kind(99), 0},
	}

	for _, tt := range tests {
		_, err := Encode(tt.kind, tt.payload)
		if err == nil {
			t.Errorf("Encode(%v, %#x) should fail", tt.kind, tt.payload)
			continue
		}
		if !IsCode(err, ErrInvalidEncoding) {
			t.Errorf("Encode(%v, %#x) error code = %v, want InvalidEncoding", tt.kind, tt.payload, CodeOf(err))
		}
	}
}

// ---------------------------------------------------------------------------
// Coercion and truthiness
// ---------------------------------------------------------------------------

func TestAsFloat64(t *testing.T) {
	if got := MakeFloat(2.5).AsFloat64(-1); got != 2.5 {
		t.Errorf("AsFloat64(float) = %v, want 2.5", got)
	}
	if got := MakeInteger(-3).AsFloat64(-1); got != -3 {
		t.Errorf("AsFloat64(integer) = %v, want -3", got)
	}
	if got := MakeCardinal(math.MaxUint32).AsFloat64(-1); got != float64(math.MaxUint32) {
		t.Errorf("AsFloat64(cardinal) = %v, want %v", got, float64(math.MaxUint32))
	}
	if got := True.AsFloat64(-1); got != -1 {
		t.Errorf("AsFloat64(boolean) = %v, want fallback", got)
	}
}

func TestAsInt32(t *testing.T) {
	if got := MakeInteger(7).AsInt32(-1); got != 7 {
		t.Errorf("AsInt32(integer) = %d, want 7", got)
	}
	if got := MakeFloat(8.0).AsInt32(-1); got != 8 {
		t.Errorf("AsInt32(8.0) = %d, want 8", got)
	}
	if got := MakeFloat(8.5).AsInt32(-1); got != -1 {
		t.Errorf("AsInt32(8.5) = %d, want fallback", got)
	}
	if got := MakeFloat(1e12).AsInt32(-1); got != -1 {
		t.Errorf("AsInt32(1e12) = %d, want fallback", got)
	}
	if got := Null.AsInt32(-1); got != -1 {
		t.Errorf("AsInt32(null) = %d, want fallback", got)
	}
}

func TestTruthiness(t *testing.T) {
	falsy := []Value{False, Null, Undefined}
	for _, v := range falsy {
		if v.IsTruthy() {
			t.Errorf("%v should be falsy", v.Kind())
		}
	}

	truthy := []Value{
		True,
		MakeInteger(0),
		MakeInteger(-1),
		MakeFloat(0.0),
		CanonicalNaN,
		MakeSymbol(0),
		makeSlotted(tagObject, 1, 1),
	}
	for i, v := range truthy {
		if !v.IsTruthy() {
			t.Errorf("truthy[%d] should be truthy", i)
		}
	}
}

// ---------------------------------------------------------------------------
// Edge cases
// ---------------------------------------------------------------------------

func TestDistinctTypesSamePayload(t *testing.T) {
	v1 := MakeInteger(42)
	v2 := MakeSymbol(42)
	v3 := MakeFloat(42.0)

	if v1 == v2 {
		t.Error("Integer(42) should not equal Symbol(42)")
	}
	if v1 == v3 {
		t.Error("Integer(42) should not equal Float(42.0)")
	}
	if v2 == v3 {
		t.Error("Symbol(42) should not equal Float(42.0)")
	}
}

func TestValueSize(t *testing.T) {
	if size := unsafe.Sizeof(Value(0)); size != 8 {
		t.Errorf("Value size = %d, want 8", size)
	}
}

// ---------------------------------------------------------------------------
// Benchmarks
// ---------------------------------------------------------------------------

func BenchmarkKind(b *testing.B) {
	v := MakeInteger(42)
	for i := 0; i < b.N; i++ {
		_ = v.Kind()
	}
}

func BenchmarkFloatRoundtrip(b *testing.B) {
	for i := 0; i < b.N; i++ {
		v := MakeFloat(3.14159)
		_ = v.Float64()
	}
}

func BenchmarkIntegerRoundtrip(b *testing.B) {
	for i := 0; i < b.N; i++ {
		v := MakeInteger(42)
		_ = v.Int32()
	}
}
