package clock

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultQueueSize is the task buffer used by NewLoop when size <= 0.
const DefaultQueueSize = 256

// Loop is a real-time Scheduler whose callbacks all run on one goroutine.
// Timer.Stop must be called from the loop goroutine (inside a callback or a
// function passed to Do) to get the guarantee that no queued callback runs
// after Stop returns.
type Loop struct {
	tasks     chan func()
	done      chan struct{}
	exited    chan struct{}
	closeOnce sync.Once
}

// NewLoop starts a loop goroutine with a task buffer of size.
func NewLoop(size int) *Loop {
	if size <= 0 {
		size = DefaultQueueSize
	}
	l := &Loop{
		tasks:  make(chan func(), size),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.exited)
	for {
		select {
		case <-l.done:
			return
		case f := <-l.tasks:
			f()
		}
	}
}

// Now implements Scheduler.
func (l *Loop) Now() time.Time { return time.Now() }

// Post queues f to run on the loop. It returns false if the loop is closed.
func (l *Loop) Post(f func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- f:
		return true
	case <-l.done:
		return false
	}
}

// Do runs f on the loop and waits for it to finish. It must not be called
// from the loop goroutine itself. It returns false if the loop closed before
// f ran.
func (l *Loop) Do(f func()) bool {
	ran := make(chan struct{})
	if !l.Post(func() {
		defer close(ran)
		f()
	}) {
		return false
	}
	select {
	case <-ran:
		return true
	case <-l.exited:
		// The task may still have run just before exit.
		select {
		case <-ran:
			return true
		default:
			return false
		}
	}
}

// Close stops the loop. Pending tasks are discarded.
func (l *Loop) Close() {
	l.closeOnce.Do(func() { close(l.done) })
	<-l.exited
}

// loopTimer is checked on the loop goroutine before its callback runs, so a
// Stop issued from the loop wins over an already queued fire.
type loopTimer struct {
	stopped atomic.Bool
	timer   *time.Timer
	quit    chan struct{}
	once    sync.Once
}

func (t *loopTimer) Stop() {
	t.stopped.Store(true)
	if t.timer != nil {
		t.timer.Stop()
	}
	if t.quit != nil {
		t.once.Do(func() { close(t.quit) })
	}
}

// AfterFunc implements Scheduler.
func (l *Loop) AfterFunc(d time.Duration, f func()) Timer {
	t := &loopTimer{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.stopped.Load() {
				return
			}
			t.stopped.Store(true)
			f()
		})
	})
	return t
}

// Every implements Scheduler. Ticks that arrive while the loop is busy are
// coalesced by the underlying time.Ticker.
func (l *Loop) Every(period time.Duration, f func()) Timer {
	t := &loopTimer{quit: make(chan struct{})}
	ticker := time.NewTicker(period)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-t.quit:
				return
			case <-l.done:
				return
			case <-ticker.C:
				l.Post(func() {
					if !t.stopped.Load() {
						f()
					}
				})
			}
		}
	}()
	return t
}
