package orchestrator

// Store is the persistence abstraction for catalog events.
// The Repository serializes access; implementations need not be safe for
// concurrent use.
type Store interface {
	GetEvent(id EventID) (Event, bool)
	SetEvent(e Event)
	ListEventIDs() []EventID
}

// InMemoryStore is an in-memory implementation of Store.
type InMemoryStore struct {
	events map[EventID]Event
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		events: make(map[EventID]Event),
	}
}

// GetEvent implements Store.GetEvent.
func (s *InMemoryStore) GetEvent(id EventID) (Event, bool) {
	e, ok := s.events[id]
	return e, ok
}

// SetEvent implements Store.SetEvent.
func (s *InMemoryStore) SetEvent(e Event) {
	s.events[e.ID] = e
}

// ListEventIDs implements Store.ListEventIDs.
func (s *InMemoryStore) ListEventIDs() []EventID {
	ids := make([]EventID, 0, len(s.events))
	for id := range s.events {
		ids = append(ids, id)
	}
	return ids
}
