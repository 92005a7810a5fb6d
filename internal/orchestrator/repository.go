package orchestrator

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"harmony/internal/harmony"
)

// Repository defines the concurrency-safe contract for reading and
// replacing catalog events.
type Repository interface {
	// Get returns the event with the given id.
	Get(id EventID) (Event, bool)

	// List returns every event sorted by id.
	List() []Event

	// Put validates e and stores it, replacing any event with the same id.
	Put(e Event) error
}

// ErrEventID is returned by Put for an event without an id.
var ErrEventID = errors.New("event id is required")

// InMemoryRepository is a concurrency-safe Repository backed by a Store;
// by default that is an InMemoryStore.
type InMemoryRepository struct {
	mu    sync.RWMutex
	store Store
}

// NewInMemoryRepository constructs a new repository with a default in-memory store.
func NewInMemoryRepository() *InMemoryRepository {
	return NewInMemoryRepositoryWithStore(NewInMemoryStore())
}

// NewInMemoryRepositoryWithStore constructs a repository that uses the given Store.
func NewInMemoryRepositoryWithStore(store Store) *InMemoryRepository {
	return &InMemoryRepository{store: store}
}

// NewRepositoryFromEvents returns an in-memory repository holding events.
func NewRepositoryFromEvents(events []Event) (*InMemoryRepository, error) {
	r := NewInMemoryRepository()
	for _, e := range events {
		if err := r.Put(e); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Get implements Repository.Get.
func (r *InMemoryRepository) Get(id EventID) (Event, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.store.GetEvent(id)
}

// List implements Repository.List.
func (r *InMemoryRepository) List() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.store.ListEventIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	events := make([]Event, 0, len(ids))
	for _, id := range ids {
		if e, ok := r.store.GetEvent(id); ok {
			events = append(events, e)
		}
	}
	return events
}

// Put implements Repository.Put.
func (r *InMemoryRepository) Put(e Event) error {
	if e.ID == "" {
		return ErrEventID
	}
	if err := ValidateFeeds(e.Feeds); err != nil {
		return fmt.Errorf("%w: event %q: %v", ErrInvalidCatalog, e.ID, err)
	}

	// Callers keep their slices; the stored copy is never mutated.
	e.Feeds = cloneFeeds(e.Feeds)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.store.SetEvent(e)
	return nil
}

// Feeds implements harmony.FeedSource.
func (r *InMemoryRepository) Feeds(eventID string) ([]harmony.Feed, bool) {
	e, ok := r.Get(EventID(eventID))
	if !ok {
		return nil, false
	}
	return cloneFeeds(e.Feeds), true
}

func cloneFeeds(feeds []harmony.Feed) []harmony.Feed {
	out := make([]harmony.Feed, len(feeds))
	for i, f := range feeds {
		f.Angles = append([]harmony.Angle(nil), f.Angles...)
		out[i] = f
	}
	return out
}
