package heap

import (
	"math"
)

// Value represents a Strata value using NaN-boxing.
//
// All values are represented as 64-bit IEEE 754 doubles. Non-float values
// are encoded in the NaN (Not-a-Number) space using the quiet NaN prefix
// and tag bits to distinguish types.
//
// Encoding scheme:
//   - Float: Native IEEE 754 double (anything outside the tagged NaN space)
//   - Nil/Boolean: Quiet NaN + tagNilBoolean + payload 0..3
//   - Integer: Quiet NaN + tagInteger + 32-bit magnitude + negative bit
//   - Symbol: Quiet NaN + tagSymbol + 32-bit symbol ID
//   - Text/Tuple/List/Object: Quiet NaN + kind tag + table index + generation
//
// The canonical NaN is exactly the quiet NaN prefix with a zero tag and
// zero payload; arithmetic NaNs are canonicalized on construction so the
// tagged patterns can never be produced by a float operation.
type Value uint64

// NaN-boxing constants
const (
	// Quiet NaN prefix: exponent all 1s, quiet bit set, sign bit 0
	// 0x7FF8_0000_0000_0000
	nanBits uint64 = 0x7FF8000000000000

	// Tag mask: 3 bits within the NaN mantissa space
	tagMask uint64 = 0x0007000000000000

	// Payload mask: 48 bits below the tag
	payloadMask uint64 = 0x0000FFFFFFFFFFFF

	// Tag values (shifted into position)
	tagNilBoolean uint64 = 0x0001000000000000 // undefined, null, false, true
	tagInteger    uint64 = 0x0002000000000000 // 32-bit magnitude + sign bit
	tagText       uint64 = 0x0003000000000000 // slotted text
	tagSymbol     uint64 = 0x0004000000000000 // interned symbol ID
	tagTuple      uint64 = 0x0005000000000000 // slotted tuple
	tagList       uint64 = 0x0006000000000000 // slotted list
	tagObject     uint64 = 0x0007000000000000 // slotted object

	// Integer payload layout: bits 0..31 magnitude, bit 32 set when the
	// value was created from a negative integer.
	intNegativeBit uint64 = 0x0000000100000000

	// Slotted payload layout: bits 16..47 object-table index,
	// bits 0..15 entry generation.
	slottedIndexShift            = 16
	slottedGenerationMask uint64 = 0x000000000000FFFF
)

// Nil/boolean payloads
const (
	payloadUndefined uint64 = 0
	payloadNull      uint64 = 1
	payloadFalse     uint64 = 2
	payloadTrue      uint64 = 3
)

// Pre-defined immediate values
const (
	Undefined Value = Value(nanBits | tagNilBoolean | payloadUndefined)
	Null      Value = Value(nanBits | tagNilBoolean | payloadNull)
	False     Value = Value(nanBits | tagNilBoolean | payloadFalse)
	True      Value = Value(nanBits | tagNilBoolean | payloadTrue)

	// CanonicalNaN is the only NaN bit pattern MakeFloat ever stores.
	CanonicalNaN Value = Value(nanBits)
)

// Kind identifies the decoded variant of a Value.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindBoolean
	KindInteger
	KindFloat
	KindSymbol
	KindText
	KindList
	KindTuple
	KindObject
)

// String returns the lower-case variant name.
func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBoolean:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindSymbol:
		return "symbol"
	case KindText:
		return "text"
	case KindList:
		return "list"
	case KindTuple:
		return "tuple"
	case KindObject:
		return "object"
	default:
		return "invalid"
	}
}

// Kind decodes the variant of v. Decoding is total: every 64-bit pattern
// maps to exactly one variant, with no surrounding context required.
func (v Value) Kind() Kind {
	switch uint64(v) >> 48 {
	case 0x7FF9:
		switch uint64(v) & payloadMask {
		case payloadUndefined:
			return KindUndefined
		case payloadNull:
			return KindNull
		default:
			return KindBoolean
		}
	case 0x7FFA:
		return KindInteger
	case 0x7FFB:
		return KindText
	case 0x7FFC:
		return KindSymbol
	case 0x7FFD:
		return KindTuple
	case 0x7FFE:
		return KindList
	case 0x7FFF:
		return KindObject
	default:
		// Ordinary floats, infinities, signaling NaNs, negative NaNs and
		// the canonical NaN all land here.
		return KindFloat
	}
}

// ---------------------------------------------------------------------------
// Type checking
// ---------------------------------------------------------------------------

// IsUndefined returns true if v is the undefined value.
func (v Value) IsUndefined() bool { return v == Undefined }

// IsNull returns true if v is the null value.
func (v Value) IsNull() bool { return v == Null }

// IsNil returns true if v is undefined or null.
func (v Value) IsNil() bool { return v == Undefined || v == Null }

// IsBoolean returns true if v is true or false.
func (v Value) IsBoolean() bool { return v == True || v == False }

// IsInteger returns true if v carries the integer tag.
func (v Value) IsInteger() bool {
	return uint64(v)&(nanBits|tagMask) == nanBits|tagInteger
}

// IsFloat returns true if v decodes as a float.
func (v Value) IsFloat() bool { return v.Kind() == KindFloat }

// IsSymbol returns true if v carries the symbol tag.
func (v Value) IsSymbol() bool {
	return uint64(v)&(nanBits|tagMask) == nanBits|tagSymbol
}

// IsText returns true if v is a slotted text value.
func (v Value) IsText() bool { return v.Kind() == KindText }

// IsList returns true if v is a slotted list value.
func (v Value) IsList() bool { return v.Kind() == KindList }

// IsTuple returns true if v is a slotted tuple value.
func (v Value) IsTuple() bool { return v.Kind() == KindTuple }

// IsObject returns true if v is a slotted object value.
func (v Value) IsObject() bool { return v.Kind() == KindObject }

// IsSlotted returns true if v resolves through the object table
// (text, tuple, list or object).
func (v Value) IsSlotted() bool {
	switch v.Kind() {
	case KindText, KindTuple, KindList, KindObject:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Nil and boolean operations
// ---------------------------------------------------------------------------

// MakeUndefined returns the undefined value.
func MakeUndefined() Value { return Undefined }

// MakeNull returns the null value.
func MakeNull() Value { return Null }

// MakeBoolean creates a Value from a bool.
func MakeBoolean(b bool) Value {
	if b {
		return True
	}
	return False
}

// Bool returns v as a bool.
// Panics if v is not true or false.
func (v Value) Bool() bool {
	switch v {
	case True:
		return true
	case False:
		return false
	default:
		panic("Value.Bool: not a boolean")
	}
}

// ---------------------------------------------------------------------------
// Integer operations
// ---------------------------------------------------------------------------

// MakeInteger creates a Value from an int32. Negative inputs record a
// negative-origin bit alongside the magnitude so cardinal extraction can
// refuse them without re-deriving the sign.
func MakeInteger(n int32) Value {
	if n < 0 {
		return Value(nanBits | tagInteger | intNegativeBit | uint64(uint32(-int64(n))))
	}
	return Value(nanBits | tagInteger | uint64(uint32(n)))
}

// MakeCardinal creates a Value from a uint32.
func MakeCardinal(n uint32) Value {
	return Value(nanBits | tagInteger | uint64(n))
}

// Int32 returns v as an int32.
// Panics if v is not an integer or the magnitude exceeds the int32 range.
func (v Value) Int32() int32 {
	n, ok := v.TryInt32()
	if !ok {
		panic("Value.Int32: not an int32")
	}
	return n
}

// TryInt32 returns v as an int32, reporting false when v is not an
// integer or holds a cardinal beyond the int32 range.
func (v Value) TryInt32() (int32, bool) {
	if !v.IsInteger() {
		return 0, false
	}
	magnitude := uint64(v) & 0xFFFFFFFF
	if uint64(v)&intNegativeBit != 0 {
		return int32(-int64(magnitude)), true
	}
	if magnitude > math.MaxInt32 {
		return 0, false
	}
	return int32(magnitude), true
}

// Uint32 returns v as a uint32 cardinal.
// Panics if v is not an integer or was created from a negative value.
func (v Value) Uint32() uint32 {
	n, ok := v.TryUint32()
	if !ok {
		panic("Value.Uint32: not a cardinal")
	}
	return n
}

// TryUint32 returns v as a uint32, reporting false when v is not an
// integer or carries the negative-origin bit.
func (v Value) TryUint32() (uint32, bool) {
	if !v.IsInteger() {
		return 0, false
	}
	if uint64(v)&intNegativeBit != 0 {
		return 0, false
	}
	return uint32(uint64(v) & 0xFFFFFFFF), true
}

// ---------------------------------------------------------------------------
// Float operations
// ---------------------------------------------------------------------------

// MakeFloat creates a Value from a float64. Any NaN input collapses to
// the canonical NaN so arithmetic can never forge a tagged pattern.
func MakeFloat(f float64) Value {
	if math.IsNaN(f) {
		return CanonicalNaN
	}
	return Value(math.Float64bits(f))
}

// Float64 returns v as a float64.
// Panics if v is not a float.
func (v Value) Float64() float64 {
	if !v.IsFloat() {
		panic("Value.Float64: not a float")
	}
	return math.Float64frombits(uint64(v))
}

// AsFloat64 coerces v to a float64: floats return themselves, integers
// widen, anything else returns the fallback.
func (v Value) AsFloat64(fallback float64) float64 {
	switch v.Kind() {
	case KindFloat:
		return math.Float64frombits(uint64(v))
	case KindInteger:
		if n, ok := v.TryInt32(); ok {
			return float64(n)
		}
		u, _ := v.TryUint32()
		return float64(u)
	default:
		return fallback
	}
}

// AsInt32 coerces v to an int32: integers return themselves, floats
// convert only when integral and in range, anything else returns the
// fallback.
func (v Value) AsInt32(fallback int32) int32 {
	switch v.Kind() {
	case KindInteger:
		if n, ok := v.TryInt32(); ok {
			return n
		}
		return fallback
	case KindFloat:
		f := math.Float64frombits(uint64(v))
		if math.Trunc(f) != f || f < math.MinInt32 || f > math.MaxInt32 {
			return fallback
		}
		return int32(f)
	default:
		return fallback
	}
}

// ---------------------------------------------------------------------------
// Symbol operations
// ---------------------------------------------------------------------------

// MakeSymbol creates a Value from a Symbol.
func MakeSymbol(s Symbol) Value {
	return Value(nanBits | tagSymbol | uint64(uint32(s)))
}

// Symbol returns the symbol encoded in v.
// Panics if v is not a symbol.
func (v Value) Symbol() Symbol {
	if !v.IsSymbol() {
		panic("Value.Symbol: not a symbol")
	}
	return Symbol(uint32(uint64(v) & 0xFFFFFFFF))
}

// ---------------------------------------------------------------------------
// Slotted value operations
// ---------------------------------------------------------------------------

// makeSlotted assembles a slotted Value from a kind tag, object-table
// index and entry generation.
func makeSlotted(tag uint64, index uint32, generation uint16) Value {
	return Value(nanBits | tag | uint64(index)<<slottedIndexShift | uint64(generation))
}

func kindTag(k Kind) uint64 {
	switch k {
	case KindText:
		return tagText
	case KindTuple:
		return tagTuple
	case KindList:
		return tagList
	case KindObject:
		return tagObject
	default:
		panic("heap: kind is not slotted: " + k.String())
	}
}

// TableIndex returns the object-table index encoded in v.
// Panics if v is not slotted.
func (v Value) TableIndex() uint32 {
	if !v.IsSlotted() {
		panic("Value.TableIndex: not a slotted value")
	}
	return uint32((uint64(v) >> slottedIndexShift) & 0xFFFFFFFF)
}

// Generation returns the object-table entry generation encoded in v.
// Panics if v is not slotted.
func (v Value) Generation() uint16 {
	if !v.IsSlotted() {
		panic("Value.Generation: not a slotted value")
	}
	return uint16(uint64(v) & slottedGenerationMask)
}

// ---------------------------------------------------------------------------
// Generic encode
// ---------------------------------------------------------------------------

// Encode builds a Value from a variant and raw payload, validating that
// the requested tag is inside the reserved set. Slotted kinds take the
// packed index+generation payload; callers normally go through the typed
// constructors instead.
func Encode(kind Kind, payload uint64) (Value, *Error) {
	switch kind {
	case KindUndefined:
		return Undefined, nil
	case KindNull:
		return Null, nil
	case KindBoolean:
		if payload > 1 {
			return Undefined, errorf(ErrInvalidEncoding, "Encode", "boolean payload %d out of range", payload)
		}
		return MakeBoolean(payload == 1), nil
	case KindInteger:
		if payload&^(uint64(0xFFFFFFFF)|intNegativeBit) != 0 {
			return Undefined, errorf(ErrInvalidEncoding, "Encode", "integer payload %#x out of range", payload)
		}
		return Value(nanBits | tagInteger | payload), nil
	case KindFloat:
		return MakeFloat(math.Float64frombits(payload)), nil
	case KindSymbol:
		if payload > 0xFFFFFFFF {
			return Undefined, errorf(ErrInvalidEncoding, "Encode", "symbol payload %#x out of range", payload)
		}
		return MakeSymbol(Symbol(payload)), nil
	case KindText, KindTuple, KindList, KindObject:
		if payload&^payloadMask != 0 {
			return Undefined, errorf(ErrInvalidEncoding, "Encode", "slotted payload %#x out of range", payload)
		}
		return Value(nanBits | kindTag(kind) | payload), nil
	default:
		return Undefined, errorf(ErrInvalidEncoding, "Encode", "kind %d outside the reserved set", kind)
	}
}

// ---------------------------------------------------------------------------
// Truthiness
// ---------------------------------------------------------------------------

// IsTruthy returns true if v is considered "truthy" in conditionals.
// Only false, null and undefined are falsy; everything else is truthy.
func (v Value) IsTruthy() bool {
	return v != False && v != Null && v != Undefined
}
