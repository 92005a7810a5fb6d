// Package clock provides the tick source that drives the Harmony simulator.
//
// Every timer callback runs serially: the real Loop executes callbacks on a
// single goroutine, and Virtual executes them on the goroutine that calls
// Advance. Code driven by a Scheduler can therefore mutate its own state
// without locks, as long as callers outside the scheduler go through Loop.Do.
package clock

import "time"

// Timer is a handle to a scheduled callback.
type Timer interface {
	// Stop cancels the timer. A stopped timer never runs its callback again,
	// even if it was already due. Stop is idempotent.
	Stop()
}

// Scheduler creates one-shot and periodic timers.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
	Every(period time.Duration, f func()) Timer
}

// StopAll stops every non-nil timer.
func StopAll(ts ...Timer) {
	for _, t := range ts {
		if t != nil {
			t.Stop()
		}
	}
}
