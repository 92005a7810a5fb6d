package clock

import "time"

// Virtual is a manually advanced Scheduler for deterministic tests.
// It is not safe for concurrent use.
type Virtual struct {
	now    time.Time
	seq    uint64
	timers []*virtualTimer
}

type virtualTimer struct {
	v       *Virtual
	seq     uint64
	when    time.Time
	period  time.Duration
	f       func()
	stopped bool
}

func (t *virtualTimer) Stop() {
	if t.stopped {
		return
	}
	t.stopped = true
	t.v.remove(t)
}

// NewVirtual returns a Virtual clock starting at start.
func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start}
}

// Now implements Scheduler.
func (v *Virtual) Now() time.Time { return v.now }

// AfterFunc implements Scheduler.
func (v *Virtual) AfterFunc(d time.Duration, f func()) Timer {
	return v.add(d, 0, f)
}

// Every implements Scheduler. A non-positive period panics, matching
// time.NewTicker.
func (v *Virtual) Every(period time.Duration, f func()) Timer {
	if period <= 0 {
		panic("clock: non-positive period for Every")
	}
	return v.add(period, period, f)
}

// Pending returns the number of live timers.
func (v *Virtual) Pending() int { return len(v.timers) }

// Advance moves the clock forward by d, firing every timer that falls due
// in deadline order. Callbacks observe Now() equal to their deadline.
func (v *Virtual) Advance(d time.Duration) {
	target := v.now.Add(d)
	for {
		next := v.earliest()
		if next == nil || next.when.After(target) {
			break
		}
		v.now = next.when
		if next.period > 0 {
			next.when = next.when.Add(next.period)
		} else {
			next.stopped = true
			v.remove(next)
		}
		next.f()
	}
	v.now = target
}

func (v *Virtual) add(d, period time.Duration, f func()) *virtualTimer {
	if d < 0 {
		d = 0
	}
	v.seq++
	t := &virtualTimer{v: v, seq: v.seq, when: v.now.Add(d), period: period, f: f}
	v.timers = append(v.timers, t)
	return t
}

func (v *Virtual) earliest() *virtualTimer {
	var best *virtualTimer
	for _, t := range v.timers {
		if best == nil || t.when.Before(best.when) || (t.when.Equal(best.when) && t.seq < best.seq) {
			best = t
		}
	}
	return best
}

func (v *Virtual) remove(t *virtualTimer) {
	for i, x := range v.timers {
		if x == t {
			v.timers = append(v.timers[:i:i], v.timers[i+1:]...)
			return
		}
	}
}
