package harmony

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"harmony/internal/platform/metrics"
)

// Handler receives events of the kind it subscribed to.
type Handler func(Event)

// Subscription identifies one registration on a Bus.
type Subscription struct {
	bus  *Bus
	kind Kind
	id   uint64
}

// Kind returns the event kind the subscription listens to.
func (s Subscription) Kind() Kind { return s.kind }

// Cancel removes the subscription. Safe to call more than once.
func (s Subscription) Cancel() {
	if s.bus != nil {
		s.bus.Unsubscribe(s)
	}
}

type registration struct {
	id      uint64
	handler Handler
}

// Bus is a synchronous publish/subscribe dispatcher.
// Handlers run on the publisher's goroutine, in registration order, and may
// subscribe or unsubscribe from inside a callback: dispatch iterates over the
// registrations that existed when Publish was called.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Kind][]registration
	nextID uint64

	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewBus returns an empty bus. log may be nil to use slog.Default;
// m may be nil to disable metric recording.
func NewBus(log *slog.Logger, m *metrics.Metrics) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{
		subs:    make(map[Kind][]registration),
		log:     log,
		metrics: m,
	}
}

// Subscribe registers h for events of kind. Registering the same func twice
// yields two independent subscriptions. An unknown kind is a programming
// error and panics.
func (b *Bus) Subscribe(kind Kind, h Handler) Subscription {
	if !kind.Valid() {
		panic(fmt.Sprintf("harmony: subscribe to unknown event kind %q", kind))
	}
	if h == nil {
		panic("harmony: nil handler")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	// Copy on write so an in-flight dispatch keeps its snapshot.
	cur := b.subs[kind]
	next := make([]registration, len(cur), len(cur)+1)
	copy(next, cur)
	b.subs[kind] = append(next, registration{id: id, handler: h})

	return Subscription{bus: b, kind: kind, id: id}
}

// Unsubscribe removes sub. It reports whether the subscription was present.
func (b *Bus) Unsubscribe(sub Subscription) bool {
	if !sub.kind.Valid() {
		panic(fmt.Sprintf("harmony: unsubscribe from unknown event kind %q", sub.kind))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	cur := b.subs[sub.kind]
	for i, r := range cur {
		if r.id != sub.id {
			continue
		}
		next := make([]registration, 0, len(cur)-1)
		next = append(next, cur[:i]...)
		next = append(next, cur[i+1:]...)
		b.subs[sub.kind] = next
		return true
	}
	return false
}

// Publish delivers e to every current subscriber of its kind. A panicking
// handler is logged and skipped.
func (b *Bus) Publish(e Event) {
	kind := e.Kind()

	b.mu.RLock()
	snapshot := b.subs[kind]
	b.mu.RUnlock()

	if b.metrics != nil {
		b.metrics.IncEventsPublished(string(kind))
	}
	for _, r := range snapshot {
		b.safeCall(r.handler, e)
	}
}

func (b *Bus) safeCall(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked",
				slog.String("kind", string(e.Kind())),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			if b.metrics != nil {
				b.metrics.IncHandlerPanics()
			}
		}
	}()
	h(e)
}

// SubscriptionCount returns the number of live subscriptions across kinds.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, subs := range b.subs {
		n += len(subs)
	}
	return n
}

// On subscribes a handler typed to one concrete event. The kind is taken
// from T's zero value.
func On[T Event](b *Bus, h func(T)) Subscription {
	var zero T
	return b.Subscribe(zero.Kind(), func(e Event) {
		if v, ok := e.(T); ok {
			h(v)
		}
	})
}

// SubscribeAll registers h for every kind and returns the subscriptions.
func (b *Bus) SubscribeAll(h Handler) []Subscription {
	subs := make([]Subscription, 0, len(Kinds))
	for _, k := range Kinds {
		subs = append(subs, b.Subscribe(k, h))
	}
	return subs
}

// CancelAll cancels every subscription in subs.
func CancelAll(subs []Subscription) {
	for _, s := range subs {
		s.Cancel()
	}
}
