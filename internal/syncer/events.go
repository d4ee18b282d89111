package syncer

import (
	"sync"

	"github.com/dmitrijs2005/aircater/internal/models"
)

// EventType names the observable moments of the sync lifecycle.
type EventType string

const (
	EventSyncStarted   EventType = "sync:started"
	EventSyncProgress  EventType = "sync:progress"
	EventSyncConflict  EventType = "sync:conflict"
	EventSyncCompleted EventType = "sync:completed"
	EventSyncFailed    EventType = "sync:failed"

	EventEntityCreated EventType = "entity:created"
	EventEntityUpdated EventType = "entity:updated"
	EventEntityDeleted EventType = "entity:deleted"

	// EventOrderSynced fires when an order reaches the server, on top of the
	// generic entity event. UIs typically care about orders specifically.
	EventOrderSynced EventType = "order:synced"
)

// Event describes one sync occurrence. Zero-valued fields are simply not
// applicable for the event type.
type Event struct {
	Type     EventType
	Kind     models.Kind
	EntityID string

	// ItemID is the queue item involved, when one is.
	ItemID string

	// Err carries the failure message for sync:failed.
	Err string

	// Fields lists the conflicting field names for sync:conflict.
	Fields []string

	// Pending and Done carry progress counters for lifecycle events.
	Pending int
	Done    int
}

// Bus is a synchronous in-process observer registry. Handlers run on the
// publishing goroutine; anything slow should hand off to its own goroutine.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Event)
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Event))}
}

// Subscribe registers a handler and returns its unsubscribe function.
func (b *Bus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	b.subs[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish delivers the event to every subscriber. A nil bus is silent, so
// components can make eventing optional.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}

	b.mu.Lock()
	handlers := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		handlers = append(handlers, fn)
	}
	b.mu.Unlock()

	for _, fn := range handlers {
		fn(e)
	}
}
