// Package heap implements the Strata object substrate.
//
// This package contains:
//   - NaN-boxed value representation
//   - Scoped symbol interning
//   - Page-based object store with a relocation-stable object table
//   - Prototype-chain property access with trap interception
//   - Pinned/Local/Persistent/Weak handle discipline
//   - Stop-the-world mark-compact collector
package heap
