//go:build !strata_deadlock

package heap

import "sync"

// rwMutex guards one record's property map and flags. Lock acquisition
// order across records is caller-determined; builds tagged
// strata_deadlock swap in a deadlock-detecting implementation.
type rwMutex = sync.RWMutex
