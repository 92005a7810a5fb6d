package selector

import (
	"errors"
	"testing"
	"time"

	"harmony/internal/clock"
	"harmony/internal/harmony"
	"harmony/internal/platform/logger"
)

var epoch = time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)

// testFeeds returns a principal feed plus ids 1..n, each with two angles
// (id*100+1, id*100+2).
func testFeeds(n int) []harmony.Feed {
	feeds := []harmony.Feed{{ID: 0, Name: "Principal", Device: harmony.DevicePlatform}}
	for i := 1; i <= n; i++ {
		id := harmony.FeedID(i)
		feeds = append(feeds, harmony.Feed{
			ID:     id,
			Device: harmony.DeviceMobile,
			Angles: []harmony.Angle{
				{ID: harmony.AngleID(i*100 + 1), Label: "Main", SourceRef: "main"},
				{ID: harmony.AngleID(i*100 + 2), Label: "Alt", SourceRef: "alt"},
			},
		})
	}
	return feeds
}

func newTestSelector(t *testing.T, n int, initial harmony.FeedID) (*Selector, *clock.Virtual, *int) {
	t.Helper()
	v := clock.NewVirtual(epoch)
	changes := new(int)
	s, err := New(testFeeds(n), initial, v, Options{
		Log:      logger.Discard(),
		OnChange: func(View) { *changes++ },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, v, changes
}

func TestNew_UnknownInitial(t *testing.T) {
	_, err := New(testFeeds(2), 9, clock.NewVirtual(epoch), Options{})
	if !errors.Is(err, ErrUnknownFeed) {
		t.Errorf("expected ErrUnknownFeed, got %v", err)
	}
}

func TestNew_DefaultAngles(t *testing.T) {
	s, _, _ := newTestSelector(t, 3, 1)

	if a, _ := s.Displayed(1); a != 101 {
		t.Errorf("feed 1 should start on its primary angle, got %d", a)
	}
	// Principal angles are the other feeds' primary angles.
	if a, _ := s.Displayed(0); a != 101 {
		t.Errorf("principal should start on feed 1's primary angle, got %d", a)
	}
	if !s.AutoDirector(1) || !s.AutoDirector(0) {
		t.Error("auto director should start enabled")
	}
}

func TestSelectFeed(t *testing.T) {
	s, _, changes := newTestSelector(t, 3, 0)

	if err := s.SelectFeed(2); err != nil {
		t.Fatalf("SelectFeed: %v", err)
	}
	if s.Active() != 2 || s.Mode() != ModeSingle {
		t.Errorf("expected Single(2), got %s(%d)", s.Mode(), s.Active())
	}
	if *changes != 1 {
		t.Errorf("expected one change notification, got %d", *changes)
	}

	if err := s.SelectFeed(42); !errors.Is(err, ErrUnknownFeed) {
		t.Errorf("expected ErrUnknownFeed, got %v", err)
	}
	if s.Active() != 2 {
		t.Error("failed select must not change state")
	}
}

func TestSelectFeed_InSplitMode(t *testing.T) {
	s, _, _ := newTestSelector(t, 3, 1)
	_ = s.EnterSplitMode()

	if err := s.SelectFeed(2); !errors.Is(err, ErrWrongMode) {
		t.Errorf("expected ErrWrongMode, got %v", err)
	}
}

func TestSplitMode_EnterExit(t *testing.T) {
	s, _, _ := newTestSelector(t, 3, 2)

	if err := s.EnterSplitMode(); err != nil {
		t.Fatal(err)
	}
	if got := s.SplitSet(); len(got) != 1 || got[0] != 2 {
		t.Errorf("split should be seeded with the active feed, got %v", got)
	}
	if err := s.EnterSplitMode(); !errors.Is(err, ErrWrongMode) {
		t.Errorf("entering split twice should fail, got %v", err)
	}

	_ = s.ToggleMember(3)
	if err := s.ExitSplitMode(3); err != nil {
		t.Fatal(err)
	}
	if s.Mode() != ModeSingle || s.Active() != 3 {
		t.Errorf("expected Single(3), got %s(%d)", s.Mode(), s.Active())
	}
	if len(s.SplitSet()) != 0 {
		t.Error("split set should be cleared")
	}
	if err := s.ExitSplitMode(1); !errors.Is(err, ErrWrongMode) {
		t.Errorf("exit from single should fail, got %v", err)
	}
}

func TestToggleMember_Bounds(t *testing.T) {
	s, _, _ := newTestSelector(t, 10, 1)
	if err := s.EnterSplitMode(); err != nil {
		t.Fatal(err)
	}

	for round := 0; round < 3; round++ {
		for id := harmony.FeedID(1); id <= 10; id++ {
			if err := s.ToggleMember(id); err != nil {
				t.Fatalf("ToggleMember(%d): %v", id, err)
			}
			n := len(s.SplitSet())
			if n < 1 || n > MaxSplit {
				t.Fatalf("split size %d out of [1,%d]", n, MaxSplit)
			}
		}
	}
}

func TestToggleMember_LastMemberStays(t *testing.T) {
	s, _, changes := newTestSelector(t, 3, 1)
	_ = s.EnterSplitMode()
	*changes = 0

	if err := s.ToggleMember(1); err != nil {
		t.Fatal(err)
	}
	if got := s.SplitSet(); len(got) != 1 || got[0] != 1 {
		t.Errorf("removing the last member must be a no-op, got %v", got)
	}
	if *changes != 0 {
		t.Error("no-op should not notify")
	}
}

func TestToggleMember_FullSetIgnoresFifth(t *testing.T) {
	s, _, _ := newTestSelector(t, 5, 1)
	_ = s.EnterSplitMode()
	for id := harmony.FeedID(2); id <= 5; id++ {
		_ = s.ToggleMember(id)
	}

	got := s.SplitSet()
	want := []harmony.FeedID{1, 2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}

func TestToggleMember_Errors(t *testing.T) {
	s, _, _ := newTestSelector(t, 3, 1)
	if err := s.ToggleMember(2); !errors.Is(err, ErrWrongMode) {
		t.Errorf("toggle in single mode: expected ErrWrongMode, got %v", err)
	}
	_ = s.EnterSplitMode()
	if err := s.ToggleMember(99); !errors.Is(err, ErrUnknownFeed) {
		t.Errorf("expected ErrUnknownFeed, got %v", err)
	}
}

func TestDirectorCommand_AppliesAfterDelay(t *testing.T) {
	s, v, _ := newTestSelector(t, 3, 1)

	cmd := harmony.DirectorCommand{TargetFeedID: 1, AngleID: 102, Reason: "Ball Action"}
	if !s.ApplyDirectorCommand(cmd) {
		t.Fatal("command for the rendered feed should be accepted")
	}
	if a, _ := s.Displayed(1); a != 101 {
		t.Error("angle should not change before the transition delay")
	}
	if !s.View().Rendered[0].Transition {
		t.Error("view should report the pending transition")
	}

	v.Advance(DefaultTransitionDelay)
	if a, _ := s.Displayed(1); a != 102 {
		t.Errorf("expected angle 102 after delay, got %d", a)
	}
	if got := s.View().Rendered[0].Status; got != "Ball Action" {
		t.Errorf("expected reason as status, got %q", got)
	}

	v.Advance(DefaultStatusTTL)
	if got := s.View().Rendered[0].Status; got != "" {
		t.Errorf("status should expire, got %q", got)
	}
}

func TestDirectorCommand_Ignored(t *testing.T) {
	s, v, _ := newTestSelector(t, 3, 1)

	cases := []struct {
		name string
		cmd  harmony.DirectorCommand
	}{
		{"not_rendered", harmony.DirectorCommand{TargetFeedID: 2, AngleID: 202}},
		{"foreign_angle", harmony.DirectorCommand{TargetFeedID: 1, AngleID: 202}},
		{"already_shown", harmony.DirectorCommand{TargetFeedID: 1, AngleID: 101}},
		{"unknown_feed", harmony.DirectorCommand{TargetFeedID: 77, AngleID: 101}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if s.ApplyDirectorCommand(tc.cmd) {
				t.Error("command should be ignored")
			}
		})
	}
	v.Advance(time.Second)
	if a, _ := s.Displayed(1); a != 101 {
		t.Errorf("angle changed to %d", a)
	}
	if a, _ := s.Displayed(2); a != 201 {
		t.Errorf("unrendered feed changed to %d", a)
	}
}

func TestPickAngle_SilencesDirectorUntilReselect(t *testing.T) {
	s, v, _ := newTestSelector(t, 3, 1)

	if err := s.PickAngle(1, 102); err != nil {
		t.Fatalf("PickAngle: %v", err)
	}
	if s.AutoDirector(1) {
		t.Fatal("manual pick should disable auto director")
	}

	if s.ApplyDirectorCommand(harmony.DirectorCommand{TargetFeedID: 1, AngleID: 101, Reason: "Crowd Reaction"}) {
		t.Error("director command should be ignored after a manual pick")
	}
	v.Advance(time.Second)
	if a, _ := s.Displayed(1); a != 102 {
		t.Fatalf("manual pick must stick, got %d", a)
	}

	if err := s.SelectFeed(1); err != nil {
		t.Fatal(err)
	}
	if !s.ApplyDirectorCommand(harmony.DirectorCommand{TargetFeedID: 1, AngleID: 101, Reason: "Crowd Reaction"}) {
		t.Fatal("re-selecting the feed should re-enable direction")
	}
	v.Advance(DefaultTransitionDelay)
	if a, _ := s.Displayed(1); a != 101 {
		t.Errorf("director should change the angle after re-select, got %d", a)
	}
}

func TestPickAngle_DuringTransitionWins(t *testing.T) {
	s, v, _ := newTestSelector(t, 3, 1)

	s.ApplyDirectorCommand(harmony.DirectorCommand{TargetFeedID: 1, AngleID: 102, Reason: "Tactical Shift"})
	v.Advance(DefaultTransitionDelay / 2)
	if err := s.PickAngle(1, 101); err != nil {
		t.Fatal(err)
	}
	v.Advance(time.Second)

	if a, _ := s.Displayed(1); a != 101 {
		t.Errorf("pending cut must not override a manual pick, got %d", a)
	}
}

func TestPickAngle_OtherFeedInSingleMode(t *testing.T) {
	s, _, _ := newTestSelector(t, 3, 1)

	if err := s.PickAngle(3, 302); err != nil {
		t.Fatal(err)
	}
	if s.Active() != 3 {
		t.Errorf("picking another feed's angle should switch to it, active=%d", s.Active())
	}
	if s.AutoDirector(3) {
		t.Error("a switch caused by a manual pick keeps automation off")
	}
	if !s.AutoDirector(1) {
		t.Error("other feeds keep their automation state")
	}
}

func TestPickAngle_Errors(t *testing.T) {
	s, _, _ := newTestSelector(t, 3, 1)

	if err := s.PickAngle(9, 901); !errors.Is(err, ErrUnknownFeed) {
		t.Errorf("expected ErrUnknownFeed, got %v", err)
	}
	if err := s.PickAngle(1, 301); !errors.Is(err, ErrUnknownAngle) {
		t.Errorf("expected ErrUnknownAngle, got %v", err)
	}
	_ = s.EnterSplitMode()
	if err := s.PickAngle(2, 201); !errors.Is(err, ErrNotRendered) {
		t.Errorf("expected ErrNotRendered, got %v", err)
	}
}

func TestPrincipalFeedAngles(t *testing.T) {
	s, v, _ := newTestSelector(t, 3, 0)

	// Feed 2's primary angle is a valid principal cut; its alternate is not.
	if s.ApplyDirectorCommand(harmony.DirectorCommand{TargetFeedID: 0, AngleID: 202}) {
		t.Error("principal feed only offers primary angles")
	}
	if !s.ApplyDirectorCommand(harmony.DirectorCommand{TargetFeedID: 0, AngleID: 201, SourceFeedID: 2}) {
		t.Fatal("principal cut to feed 2's primary should be accepted")
	}
	v.Advance(DefaultTransitionDelay)
	if a, _ := s.Displayed(0); a != 201 {
		t.Errorf("expected principal on 201, got %d", a)
	}

	view := s.View()
	if len(view.Rendered) != 1 || len(view.Rendered[0].Angles) != 3 {
		t.Errorf("principal should list 3 synthesized angles, got %+v", view.Rendered)
	}
}

func TestSplitMode_DirectorPerMember(t *testing.T) {
	s, v, _ := newTestSelector(t, 4, 1)
	_ = s.EnterSplitMode()
	_ = s.ToggleMember(2)
	_ = s.PickAngle(2, 202)

	if !s.ApplyDirectorCommand(harmony.DirectorCommand{TargetFeedID: 1, AngleID: 102}) {
		t.Error("feed 1 is rendered and automated")
	}
	if s.ApplyDirectorCommand(harmony.DirectorCommand{TargetFeedID: 2, AngleID: 201}) {
		t.Error("feed 2 was overridden manually")
	}
	if s.ApplyDirectorCommand(harmony.DirectorCommand{TargetFeedID: 3, AngleID: 302}) {
		t.Error("feed 3 is not rendered")
	}
	v.Advance(time.Second)

	if a, _ := s.Displayed(1); a != 102 {
		t.Errorf("feed 1 expected 102, got %d", a)
	}
	if a, _ := s.Displayed(2); a != 202 {
		t.Errorf("feed 2 expected 202, got %d", a)
	}
}

func TestRemovedMemberDropsPendingCut(t *testing.T) {
	s, v, _ := newTestSelector(t, 3, 1)
	_ = s.EnterSplitMode()
	_ = s.ToggleMember(2)

	s.ApplyDirectorCommand(harmony.DirectorCommand{TargetFeedID: 2, AngleID: 202})
	_ = s.ToggleMember(2)
	v.Advance(time.Second)

	if a, _ := s.Displayed(2); a != 201 {
		t.Errorf("cut for a removed member should be dropped, got %d", a)
	}
	if v.Pending() != 0 {
		t.Errorf("expected no timers, got %d", v.Pending())
	}
}

func TestSetAutoDirector(t *testing.T) {
	s, v, _ := newTestSelector(t, 2, 1)

	if err := s.SetAutoDirector(1, false); err != nil {
		t.Fatal(err)
	}
	if s.ApplyDirectorCommand(harmony.DirectorCommand{TargetFeedID: 1, AngleID: 102}) {
		t.Error("disabled feed should ignore commands")
	}
	_ = s.SetAutoDirector(1, true)
	s.ApplyDirectorCommand(harmony.DirectorCommand{TargetFeedID: 1, AngleID: 102})
	v.Advance(DefaultTransitionDelay)
	if a, _ := s.Displayed(1); a != 102 {
		t.Errorf("re-enabled feed should follow the director, got %d", a)
	}
	if err := s.SetAutoDirector(5, true); !errors.Is(err, ErrUnknownFeed) {
		t.Errorf("expected ErrUnknownFeed, got %v", err)
	}
}

func TestAttach_ConsumesBusEvents(t *testing.T) {
	s, v, _ := newTestSelector(t, 2, 1)
	bus := harmony.NewBus(logger.Discard(), nil)

	detach := s.Attach(bus)
	bus.Publish(harmony.Pulse{Tick: 7})
	bus.Publish(harmony.TelemetryUpdate{Positions: map[harmony.FeedID]harmony.Position{
		1: {FeedID: 1, X: 20, Y: 30},
	}})
	bus.Publish(harmony.DirectorCommand{TargetFeedID: 1, AngleID: 102, Reason: "Player Focus"})
	v.Advance(DefaultTransitionDelay)

	view := s.View()
	if view.LastTick != 7 {
		t.Errorf("expected last tick 7, got %d", view.LastTick)
	}
	if p := view.Rendered[0].Position; p == nil || p.X != 20 {
		t.Errorf("expected overlay position, got %+v", p)
	}
	if view.Rendered[0].Angle.ID != 102 {
		t.Errorf("expected angle 102, got %d", view.Rendered[0].Angle.ID)
	}

	detach()
	if bus.SubscriptionCount() != 0 {
		t.Errorf("detach leaked %d subscriptions", bus.SubscriptionCount())
	}
}

func TestClose_StopsTimers(t *testing.T) {
	s, v, _ := newTestSelector(t, 2, 1)
	s.ApplyDirectorCommand(harmony.DirectorCommand{TargetFeedID: 1, AngleID: 102})
	_ = s.PickAngle(1, 101)
	s.Close()
	if v.Pending() != 0 {
		t.Errorf("Close left %d timers", v.Pending())
	}
}
