package orchestrator

import (
	"errors"
	"fmt"

	"harmony/internal/harmony"
)

var (
	ErrEventNotFound = errors.New("event not found")
	ErrFeedNotFound  = errors.New("feed not found")
	ErrAngleNotFound = errors.New("angle not found")
)

// Service answers catalog queries and delegates storage to Repository.
type Service struct {
	repo Repository
}

// NewService returns a Service that uses repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Events returns a summary of every event sorted by id.
func (s *Service) Events() []EventSummary {
	events := s.repo.List()
	out := make([]EventSummary, 0, len(events))
	for _, e := range events {
		out = append(out, e.Summary())
	}
	return out
}

// Event returns the full event.
func (s *Service) Event(id EventID) (Event, error) {
	e, ok := s.repo.Get(id)
	if !ok {
		return Event{}, fmt.Errorf("event %q: %w", id, ErrEventNotFound)
	}
	return e, nil
}

// AnglePlaylist returns the multi-angle master playlist of one feed. The
// principal feed offers the primary angle of every other feed. A zero
// angle selects the feed's first angle.
func (s *Service) AnglePlaylist(eventID EventID, feedID harmony.FeedID, angle harmony.AngleID) (string, error) {
	e, err := s.Event(eventID)
	if err != nil {
		return "", err
	}
	feed, ok := e.Feed(feedID)
	if !ok {
		return "", fmt.Errorf("event %q feed %d: %w", eventID, feedID, ErrFeedNotFound)
	}
	feed.Angles = harmony.AvailableAngles(e.Feeds, feedID)

	if angle != 0 {
		if _, ok := feed.Angle(angle); !ok {
			return "", fmt.Errorf("event %q feed %d angle %d: %w", eventID, feedID, angle, ErrAngleNotFound)
		}
	}
	return BuildAnglePlaylist(feed, angle), nil
}
