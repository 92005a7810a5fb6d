// Package selector tracks which feeds a viewer renders: one feed in single
// mode, up to four in split mode. Director commands from the bus only
// change a rendered feed's angle while automatic direction is enabled for
// that feed; a manual angle pick turns it off until the feed is re-selected.
//
// A Selector is confined to the goroutine of its scheduler, like
// harmony.Service.
package selector

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"harmony/internal/clock"
	"harmony/internal/harmony"
	"harmony/internal/platform/metrics"
)

// Mode is the layout of the view.
type Mode string

const (
	ModeSingle Mode = "single"
	ModeSplit  Mode = "split"
)

// MaxSplit is the largest split set.
const MaxSplit = 4

const (
	DefaultTransitionDelay = 200 * time.Millisecond
	DefaultStatusTTL       = 2 * time.Second
	DefaultManualStatusTTL = 3 * time.Second
)

var (
	ErrUnknownFeed  = errors.New("unknown feed")
	ErrUnknownAngle = errors.New("unknown angle")
	ErrWrongMode    = errors.New("operation not valid in current mode")
	ErrNotRendered  = errors.New("feed is not rendered")
)

// Options tunes a Selector. Zero values select the defaults.
type Options struct {
	TransitionDelay time.Duration
	StatusTTL       time.Duration
	ManualStatusTTL time.Duration
	// OnChange is called after every state change with the new view.
	OnChange func(View)
	Log      *slog.Logger
	Metrics  *metrics.Metrics
}

// Selector is the multi-feed view state machine.
type Selector struct {
	sched clock.Scheduler
	opts  Options
	log   *slog.Logger

	feeds []harmony.Feed
	known map[harmony.FeedID]bool

	mode   Mode
	active harmony.FeedID
	split  []harmony.FeedID

	auto      map[harmony.FeedID]bool
	displayed map[harmony.FeedID]harmony.AngleID
	status    map[harmony.FeedID]string

	pending     map[harmony.FeedID]clock.Timer
	statusTimer map[harmony.FeedID]clock.Timer

	positions map[harmony.FeedID]harmony.Position
	lastTick  uint64
}

// New returns a Selector in single mode showing initial.
func New(feeds []harmony.Feed, initial harmony.FeedID, sched clock.Scheduler, opts Options) (*Selector, error) {
	if opts.TransitionDelay <= 0 {
		opts.TransitionDelay = DefaultTransitionDelay
	}
	if opts.StatusTTL <= 0 {
		opts.StatusTTL = DefaultStatusTTL
	}
	if opts.ManualStatusTTL <= 0 {
		opts.ManualStatusTTL = DefaultManualStatusTTL
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	s := &Selector{
		sched:       sched,
		opts:        opts,
		log:         log,
		feeds:       append([]harmony.Feed(nil), feeds...),
		known:       make(map[harmony.FeedID]bool, len(feeds)),
		mode:        ModeSingle,
		auto:        make(map[harmony.FeedID]bool, len(feeds)),
		displayed:   make(map[harmony.FeedID]harmony.AngleID, len(feeds)),
		status:      make(map[harmony.FeedID]string),
		pending:     make(map[harmony.FeedID]clock.Timer),
		statusTimer: make(map[harmony.FeedID]clock.Timer),
		positions:   make(map[harmony.FeedID]harmony.Position),
	}
	for _, f := range s.feeds {
		s.known[f.ID] = true
		s.auto[f.ID] = true
		if angles := harmony.AvailableAngles(s.feeds, f.ID); len(angles) > 0 {
			s.displayed[f.ID] = angles[0].ID
		}
	}
	if !s.known[initial] {
		return nil, fmt.Errorf("initial feed %d: %w", initial, ErrUnknownFeed)
	}
	s.active = initial
	return s, nil
}

// Mode returns the current mode.
func (s *Selector) Mode() Mode { return s.mode }

// Active returns the feed shown in single mode.
func (s *Selector) Active() harmony.FeedID { return s.active }

// SplitSet returns the split members in selection order.
func (s *Selector) SplitSet() []harmony.FeedID {
	return append([]harmony.FeedID(nil), s.split...)
}

// Displayed returns the angle currently shown for id.
func (s *Selector) Displayed(id harmony.FeedID) (harmony.AngleID, bool) {
	a, ok := s.displayed[id]
	return a, ok
}

// AutoDirector reports whether director commands may change id's angle.
func (s *Selector) AutoDirector(id harmony.FeedID) bool { return s.auto[id] }

// Rendered returns the feeds currently on screen.
func (s *Selector) Rendered() []harmony.FeedID {
	if s.mode == ModeSplit {
		return s.SplitSet()
	}
	return []harmony.FeedID{s.active}
}

func (s *Selector) isRendered(id harmony.FeedID) bool {
	if s.mode == ModeSingle {
		return s.active == id
	}
	return indexOf(s.split, id) >= 0
}

// SelectFeed shows id in single mode and re-enables automatic direction
// for it.
func (s *Selector) SelectFeed(id harmony.FeedID) error {
	if !s.known[id] {
		return fmt.Errorf("select feed %d: %w", id, ErrUnknownFeed)
	}
	if s.mode != ModeSingle {
		return fmt.Errorf("select feed %d: %w", id, ErrWrongMode)
	}
	s.activate(id, false)
	s.changed()
	return nil
}

// activate switches the single-mode feed. manual marks a switch caused by
// an explicit angle pick, which keeps automation off.
func (s *Selector) activate(id harmony.FeedID, manual bool) {
	s.active = id
	s.auto[id] = !manual
	s.dropUnrendered()
}

// EnterSplitMode turns Single(f) into Split({f}).
func (s *Selector) EnterSplitMode() error {
	if s.mode != ModeSingle {
		return ErrWrongMode
	}
	s.mode = ModeSplit
	s.split = []harmony.FeedID{s.active}
	s.changed()
	return nil
}

// ExitSplitMode turns Split(_) into Single(promote).
func (s *Selector) ExitSplitMode(promote harmony.FeedID) error {
	if !s.known[promote] {
		return fmt.Errorf("exit split to feed %d: %w", promote, ErrUnknownFeed)
	}
	if s.mode != ModeSplit {
		return ErrWrongMode
	}
	s.mode = ModeSingle
	s.split = nil
	s.active = promote
	s.dropUnrendered()
	s.changed()
	return nil
}

// ToggleMember adds or removes id from the split set. Removing the last
// member or adding a fifth is a no-op.
func (s *Selector) ToggleMember(id harmony.FeedID) error {
	if !s.known[id] {
		return fmt.Errorf("toggle feed %d: %w", id, ErrUnknownFeed)
	}
	if s.mode != ModeSplit {
		return fmt.Errorf("toggle feed %d: %w", id, ErrWrongMode)
	}

	if i := indexOf(s.split, id); i >= 0 {
		if len(s.split) <= 1 {
			return nil
		}
		s.split = append(s.split[:i:i], s.split[i+1:]...)
		s.dropUnrendered()
	} else {
		if len(s.split) >= MaxSplit {
			return nil
		}
		s.split = append(s.split, id)
	}
	s.changed()
	return nil
}

// PickAngle is a manual override: it shows angle on feed and disables
// automatic direction for that feed until it is selected again. In single
// mode picking an angle of another feed switches to that feed.
func (s *Selector) PickAngle(feed harmony.FeedID, angle harmony.AngleID) error {
	if !s.known[feed] {
		return fmt.Errorf("pick angle on feed %d: %w", feed, ErrUnknownFeed)
	}
	a, ok := s.angle(feed, angle)
	if !ok {
		return fmt.Errorf("pick angle %d on feed %d: %w", angle, feed, ErrUnknownAngle)
	}
	if !s.isRendered(feed) {
		if s.mode != ModeSingle {
			return fmt.Errorf("pick angle on feed %d: %w", feed, ErrNotRendered)
		}
		s.activate(feed, true)
	}

	s.auto[feed] = false
	s.cancelPending(feed)
	s.displayed[feed] = angle

	label := a.Label
	if label == "" {
		label = fmt.Sprintf("Camera #%d", a.ID)
	}
	s.setStatus(feed, fmt.Sprintf("Switched to %s (director paused)", label), s.opts.ManualStatusTTL)
	s.changed()
	return nil
}

// SetAutoDirector explicitly enables or disables automatic direction.
func (s *Selector) SetAutoDirector(feed harmony.FeedID, enabled bool) error {
	if !s.known[feed] {
		return fmt.Errorf("auto director on feed %d: %w", feed, ErrUnknownFeed)
	}
	s.auto[feed] = enabled
	if !enabled {
		s.cancelPending(feed)
	}
	s.changed()
	return nil
}

// ApplyDirectorCommand schedules the suggested cut if the target feed is
// rendered and under automatic direction. It reports whether the command
// was accepted. The angle changes after the transition delay, and only if
// the feed is still rendered and automated by then.
func (s *Selector) ApplyDirectorCommand(cmd harmony.DirectorCommand) bool {
	feed := cmd.TargetFeedID
	if !s.known[feed] || !s.isRendered(feed) || !s.auto[feed] {
		return false
	}
	if _, ok := s.angle(feed, cmd.AngleID); !ok {
		s.log.Debug("director command for foreign angle",
			slog.Int("feed_id", int(feed)),
			slog.Int("angle_id", int(cmd.AngleID)))
		return false
	}
	if _, busy := s.pending[feed]; !busy && s.displayed[feed] == cmd.AngleID {
		return false
	}

	s.cancelPending(feed)
	s.setStatus(feed, "Director: "+cmd.Reason, 0)
	s.pending[feed] = s.sched.AfterFunc(s.opts.TransitionDelay, func() {
		delete(s.pending, feed)
		if !s.auto[feed] || !s.isRendered(feed) {
			return
		}
		s.displayed[feed] = cmd.AngleID
		s.setStatus(feed, cmd.Reason, s.opts.StatusTTL)
		if s.opts.Metrics != nil {
			s.opts.Metrics.IncDirectorCutsApplied()
		}
		s.changed()
	})
	s.changed()
	return true
}

// Attach subscribes the selector to director, telemetry and pulse events.
// The returned func cancels the subscriptions.
func (s *Selector) Attach(bus *harmony.Bus) (detach func()) {
	subs := []harmony.Subscription{
		harmony.On(bus, func(cmd harmony.DirectorCommand) { s.ApplyDirectorCommand(cmd) }),
		harmony.On(bus, func(u harmony.TelemetryUpdate) {
			for id, p := range u.Positions {
				s.positions[id] = p
			}
		}),
		harmony.On(bus, func(p harmony.Pulse) { s.lastTick = p.Tick }),
	}
	return func() { harmony.CancelAll(subs) }
}

// Close stops every pending transition and status timer.
func (s *Selector) Close() {
	for id, t := range s.pending {
		t.Stop()
		delete(s.pending, id)
	}
	for id, t := range s.statusTimer {
		t.Stop()
		delete(s.statusTimer, id)
	}
}

func (s *Selector) angle(feed harmony.FeedID, id harmony.AngleID) (harmony.Angle, bool) {
	for _, a := range harmony.AvailableAngles(s.feeds, feed) {
		if a.ID == id {
			return a, true
		}
	}
	return harmony.Angle{}, false
}

// cancelPending drops a scheduled cut along with its announcement.
func (s *Selector) cancelPending(feed harmony.FeedID) {
	t, ok := s.pending[feed]
	if !ok {
		return
	}
	t.Stop()
	delete(s.pending, feed)
	if _, timed := s.statusTimer[feed]; !timed {
		delete(s.status, feed)
	}
}

// setStatus shows msg for feed; ttl <= 0 keeps it until replaced.
func (s *Selector) setStatus(feed harmony.FeedID, msg string, ttl time.Duration) {
	if t, ok := s.statusTimer[feed]; ok {
		t.Stop()
		delete(s.statusTimer, feed)
	}
	s.status[feed] = msg
	if ttl <= 0 {
		return
	}
	s.statusTimer[feed] = s.sched.AfterFunc(ttl, func() {
		delete(s.statusTimer, feed)
		delete(s.status, feed)
		s.changed()
	})
}

// dropUnrendered cancels transitions and statuses of feeds that left the screen.
func (s *Selector) dropUnrendered() {
	for id := range s.pending {
		if !s.isRendered(id) {
			s.cancelPending(id)
		}
	}
	for id, t := range s.statusTimer {
		if !s.isRendered(id) {
			t.Stop()
			delete(s.statusTimer, id)
		}
	}
	for id := range s.status {
		if !s.isRendered(id) {
			delete(s.status, id)
		}
	}
}

func (s *Selector) changed() {
	if s.opts.OnChange != nil {
		s.opts.OnChange(s.View())
	}
}

func indexOf(ids []harmony.FeedID, id harmony.FeedID) int {
	for i, x := range ids {
		if x == id {
			return i
		}
	}
	return -1
}
