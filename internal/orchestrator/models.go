package orchestrator

import "harmony/internal/harmony"

// EventID uniquely identifies a catalog event.
type EventID string

// EventDetails describes an event for listings.
type EventDetails struct {
	Title    string `json:"title" yaml:"title"`
	Match    string `json:"match" yaml:"match"`
	Venue    string `json:"venue" yaml:"venue"`
	Category string `json:"category" yaml:"category"`
	Status   string `json:"status" yaml:"status"`
}

// Event is a validated catalog entry. Feeds are resolved: shared angles are
// copied into every feed that references them.
type Event struct {
	ID      EventID        `json:"id"`
	Details EventDetails   `json:"details"`
	Feeds   []harmony.Feed `json:"feeds"`
}

// Feed returns the feed with the given id.
func (e Event) Feed(id harmony.FeedID) (harmony.Feed, bool) {
	for _, f := range e.Feeds {
		if f.ID == id {
			return f, true
		}
	}
	return harmony.Feed{}, false
}

// EventSummary is the list form of an Event.
type EventSummary struct {
	ID      EventID      `json:"id"`
	Details EventDetails `json:"details"`
	Feeds   int          `json:"feeds"`
}

// Summary returns the list form of e.
func (e Event) Summary() EventSummary {
	return EventSummary{ID: e.ID, Details: e.Details, Feeds: len(e.Feeds)}
}

// The document types mirror the catalog YAML layout.

type catalogDoc struct {
	Events []eventDoc `yaml:"events"`
}

type eventDoc struct {
	ID           string       `yaml:"id"`
	Details      EventDetails `yaml:"details"`
	SharedAngles []angleDoc   `yaml:"shared_angles"`
	Feeds        []feedDoc    `yaml:"feeds"`
}

type feedDoc struct {
	ID       int         `yaml:"id"`
	Name     string      `yaml:"name"`
	Device   string      `yaml:"device"`
	Position positionDoc `yaml:"position"`
	Angles   []angleDoc  `yaml:"angles"`
	Shared   []int       `yaml:"shared"`
}

type positionDoc struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

type angleDoc struct {
	ID     int    `yaml:"id"`
	Label  string `yaml:"label"`
	Source string `yaml:"source"`
}
