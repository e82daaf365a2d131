package heap

import "fmt"

// ErrorCode classifies substrate failures.
type ErrorCode uint8

const (
	// ErrInternal marks an invariant violation inside the substrate.
	// Internal errors escaping the collector are fatal to the isolate.
	ErrInternal ErrorCode = iota

	// ErrInvalidEncoding: malformed Value construction.
	ErrInvalidEncoding

	// ErrDanglingReference: a slotted Value whose object-table entry is
	// gone or whose generation no longer matches. Caller misuse;
	// surfaced as a panic, never returned.
	ErrDanglingReference

	// ErrPrototypeCycleDetected: a prototype assignment or lookup would
	// create or traverse a cyclic chain.
	ErrPrototypeCycleDetected

	// ErrFrozen: mutation denied because the record is frozen.
	ErrFrozen

	// ErrSealed: structural mutation denied because the record is sealed.
	ErrSealed

	// ErrNotExtensible: property addition denied by the extensibility flag.
	ErrNotExtensible

	// ErrHandleExpired: use of a released Pinned, a Local whose scope
	// closed, an unregistered Persistent, or a shut-down isolate.
	// Caller misuse; surfaced as a panic, never returned.
	ErrHandleExpired

	// ErrTrapReentrancy: a trap re-entered its own trigger on the same
	// record and key.
	ErrTrapReentrancy

	// ErrOutOfMemory: allocation failed with growth disallowed or the
	// page budget exhausted.
	ErrOutOfMemory

	// ErrSymbolScopeMismatch: a symbol resolved against a scope that did
	// not intern it.
	ErrSymbolScopeMismatch

	// ErrReadOnlyProperty: write denied by a property trap without a
	// setter.
	ErrReadOnlyProperty

	// ErrTypeMismatch: an operation received a Value of the wrong kind.
	ErrTypeMismatch

	// ErrIntegerRange: integer payload outside the representable range.
	ErrIntegerRange

	// ErrNilTraversal: property access on undefined or null.
	ErrNilTraversal
)

var errorCodeNames = [...]string{
	ErrInternal:               "internal",
	ErrInvalidEncoding:        "invalid encoding",
	ErrDanglingReference:      "dangling reference",
	ErrPrototypeCycleDetected: "prototype cycle detected",
	ErrFrozen:                 "frozen",
	ErrSealed:                 "sealed",
	ErrNotExtensible:          "not extensible",
	ErrHandleExpired:          "handle expired",
	ErrTrapReentrancy:         "trap reentrancy",
	ErrOutOfMemory:            "out of memory",
	ErrSymbolScopeMismatch:    "symbol scope mismatch",
	ErrReadOnlyProperty:       "read-only property",
	ErrTypeMismatch:           "type mismatch",
	ErrIntegerRange:           "integer out of range",
	ErrNilTraversal:           "nil traversal",
}

// String returns the human-readable code name.
func (c ErrorCode) String() string {
	if int(c) < len(errorCodeNames) {
		return errorCodeNames[c]
	}
	return fmt.Sprintf("code(%d)", uint8(c))
}

// Error is the failure type for every substrate operation. Recoverable
// codes are returned to the caller; DanglingReference and HandleExpired
// indicate caller misuse and are panicked fail-fast with an *Error as
// the panic value.
type Error struct {
	Code   ErrorCode
	Op     string
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("heap: %s: %s", e.Code, e.Detail)
	}
	return fmt.Sprintf("heap: %s: %s: %s", e.Op, e.Code, e.Detail)
}

func newError(code ErrorCode, op, detail string) *Error {
	return &Error{Code: code, Op: op, Detail: detail}
}

func errorf(code ErrorCode, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the ErrorCode from err, or ErrInternal when err is not
// a substrate error. A nil *Error carries no code.
func CodeOf(err error) ErrorCode {
	if e, ok := err.(*Error); ok && e != nil {
		return e.Code
	}
	return ErrInternal
}

// IsCode reports whether err is a substrate error with the given code.
func IsCode(err error, code ErrorCode) bool {
	e, ok := err.(*Error)
	return ok && e != nil && e.Code == code
}
