//go:build strata_deadlock

package heap

import "github.com/sasha-s/go-deadlock"

// rwMutex is the deadlock-detecting variant of the per-record lock.
// Cross-record lock ordering is a caller obligation; this build reports
// violations instead of hanging.
type rwMutex = deadlock.RWMutex
