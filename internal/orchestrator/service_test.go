package orchestrator

import (
	"errors"
	"strings"
	"testing"

	"harmony/internal/harmony"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	repo, err := NewRepositoryFromEvents([]Event{testEvent("e1"), testEvent("e0")})
	if err != nil {
		t.Fatal(err)
	}
	return NewService(repo)
}

func TestService_Events(t *testing.T) {
	svc := newTestService(t)

	got := svc.Events()
	if len(got) != 2 || got[0].ID != "e0" || got[1].ID != "e1" {
		t.Fatalf("unexpected summaries %+v", got)
	}
	if got[0].Feeds != 3 {
		t.Errorf("expected 3 feeds, got %d", got[0].Feeds)
	}
}

func TestService_Event(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Event("e1"); err != nil {
		t.Errorf("Event: %v", err)
	}
	if _, err := svc.Event("missing"); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("expected ErrEventNotFound, got %v", err)
	}
}

func TestService_AnglePlaylist(t *testing.T) {
	svc := newTestService(t)

	t.Run("feed", func(t *testing.T) {
		out, err := svc.AnglePlaylist("e1", 1, 0)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out, `NAME="Wide",DEFAULT=YES`) {
			t.Errorf("zero angle should default to the first: %s", out)
		}
	})

	t.Run("principal", func(t *testing.T) {
		out, err := svc.AnglePlaylist("e1", 0, 201)
		if err != nil {
			t.Fatal(err)
		}
		if strings.Count(out, "#EXT-X-MEDIA:") != 2 {
			t.Errorf("principal should offer one primary angle per feed: %s", out)
		}
		if !strings.Contains(out, `NAME="High",DEFAULT=YES`) {
			t.Errorf("expected High as default: %s", out)
		}
		if strings.Contains(out, "Tight") {
			t.Errorf("non-primary angles are not principal angles: %s", out)
		}
	})

	errCases := []struct {
		name  string
		event EventID
		feed  int
		angle int
		want  error
	}{
		{"event", "nope", 1, 0, ErrEventNotFound},
		{"feed", "e1", 9, 0, ErrFeedNotFound},
		{"angle", "e1", 1, 201, ErrAngleNotFound},
	}
	for _, tc := range errCases {
		t.Run("missing_"+tc.name, func(t *testing.T) {
			_, err := svc.AnglePlaylist(tc.event, harmony.FeedID(tc.feed), harmony.AngleID(tc.angle))
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
