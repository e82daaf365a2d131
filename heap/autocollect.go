package heap

import (
	"sync"
	"sync/atomic"
	"time"
)

// ---------------------------------------------------------------------------
// AutoCollector: periodic background collection
// ---------------------------------------------------------------------------

// DefaultCollectInterval is the default background collection interval.
const DefaultCollectInterval = 30 * time.Second

// AutoCollector runs collection cycles from a background goroutine on a
// fixed interval, gated by a heap occupancy trigger. It exists for
// long-running embedders (servers, REPLs, IDE sessions) that would
// otherwise never reach a natural collection point.
type AutoCollector struct {
	iso      *Isolate
	interval time.Duration
	trigger  float64

	enabled atomic.Bool
	stop    chan struct{}
	stopped chan struct{}
	mu      sync.Mutex // protects start/stop lifecycle

	runs atomic.Uint64
}

// newAutoCollector builds the collector; trigger is the occupancy
// fraction below which ticks are skipped (zero or negative collects on
// every tick).
func newAutoCollector(iso *Isolate, interval time.Duration, trigger float64) *AutoCollector {
	if interval <= 0 {
		interval = DefaultCollectInterval
	}
	ac := &AutoCollector{
		iso:      iso,
		interval: interval,
		trigger:  trigger,
	}
	ac.enabled.Store(true)
	return ac
}

// StartAutoCollect starts the isolate's background collector, creating
// it on first use. Later calls reuse the first call's interval and
// trigger; only one loop runs.
func (iso *Isolate) StartAutoCollect(interval time.Duration, trigger float64) *AutoCollector {
	iso.checkAlive("StartAutoCollect")
	iso.autoMu.Lock()
	defer iso.autoMu.Unlock()

	if iso.auto == nil {
		iso.auto = newAutoCollector(iso, interval, trigger)
	}
	iso.auto.Start()
	return iso.auto
}

// StopAutoCollect halts the background collector, if one is running.
func (iso *Isolate) StopAutoCollect() {
	iso.checkAlive("StopAutoCollect")
	iso.stopAuto()
}

// stopAuto is the shutdown-safe form StopAutoCollect and Shutdown share.
func (iso *Isolate) stopAuto() {
	iso.autoMu.Lock()
	auto := iso.auto
	iso.autoMu.Unlock()
	if auto != nil {
		auto.Stop()
	}
}

// Start begins the collection loop. Safe to call repeatedly; only one
// loop runs.
func (ac *AutoCollector) Start() {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	if ac.stop != nil {
		return // already running
	}

	ac.stop = make(chan struct{})
	ac.stopped = make(chan struct{})

	// Capture the channels so the goroutine never reads ac.stop and
	// ac.stopped after Stop has nilled them.
	stopCh := ac.stop
	stoppedCh := ac.stopped
	go ac.loop(stopCh, stoppedCh)
}

// Stop halts the loop and waits for it to finish. Safe to call
// repeatedly or on a collector that never started.
func (ac *AutoCollector) Stop() {
	ac.mu.Lock()
	stopCh := ac.stop
	stoppedCh := ac.stopped
	ac.stop = nil
	ac.stopped = nil
	ac.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-stoppedCh
	}
}

// SetEnabled toggles collection without stopping the loop.
func (ac *AutoCollector) SetEnabled(enabled bool) {
	ac.enabled.Store(enabled)
}

// IsEnabled reports whether ticks run collections.
func (ac *AutoCollector) IsEnabled() bool {
	return ac.enabled.Load()
}

// Interval returns the tick interval.
func (ac *AutoCollector) Interval() time.Duration {
	return ac.interval
}

// Trigger returns the occupancy trigger.
func (ac *AutoCollector) Trigger() float64 {
	return ac.trigger
}

// Runs returns the number of collections the loop has run.
func (ac *AutoCollector) Runs() uint64 {
	return ac.runs.Load()
}

// CollectNow runs one collection immediately, regardless of the timer
// and the trigger.
func (ac *AutoCollector) CollectNow() CollectionStats {
	stats := ac.iso.gc.collect()
	ac.runs.Add(1)
	return stats
}

func (ac *AutoCollector) loop(stopCh <-chan struct{}, stoppedCh chan struct{}) {
	defer close(stoppedCh)

	ticker := time.NewTicker(ac.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if ac.enabled.Load() {
				ac.maybeCollect()
			}
		}
	}
}

// maybeCollect runs a cycle when occupancy reaches the trigger. It goes
// through the collector directly: a tick racing Shutdown must not trip
// the liveness check, and a cycle in flight completes before Stop
// returns.
func (ac *AutoCollector) maybeCollect() {
	iso := ac.iso
	if iso.shut.Load() {
		return
	}
	if ac.trigger > 0 && iso.occupancy() < ac.trigger {
		return
	}
	iso.gc.collect()
	ac.runs.Add(1)
}
