package repo

import (
	"context"
	"sync"
	"time"

	"github.com/asaidimu/go-events"
	"github.com/google/uuid"

	"github.com/mwakio/go-mizani/core/schema"
)

// EventType identifies a repo lifecycle event.
type EventType string

const (
	EventInserted EventType = "entity.inserted"
	EventUpdated  EventType = "entity.updated"
	EventDeleted  EventType = "entity.deleted"
)

// Event describes a committed change to an entity.
type Event struct {
	Type      EventType     `json:"type"`
	Relation  string        `json:"relation"`
	Entity    schema.Entity `json:"entity"`
	Timestamp time.Time     `json:"timestamp"`
}

// EventCallback handles a repo event. Returning an error does not affect the
// commit; events are emitted after the store has accepted the change.
type EventCallback func(ctx context.Context, event Event) error

// eventHub wraps the typed event bus and tracks subscriptions by handle.
type eventHub struct {
	bus           *events.TypedEventBus[Event]
	mu            sync.Mutex
	subscriptions map[string]func()
}

func newEventHub(bus *events.TypedEventBus[Event]) *eventHub {
	return &eventHub{
		bus:           bus,
		subscriptions: make(map[string]func()),
	}
}

func (h *eventHub) emit(t EventType, relation string, entity schema.Entity) {
	if h.bus == nil {
		return
	}
	h.bus.Emit(string(t), Event{
		Type:      t,
		Relation:  relation,
		Entity:    entity,
		Timestamp: time.Now().UTC(),
	})
}

// Subscribe registers a callback for an event type and returns a handle for
// Unsubscribe.
func (r *Repo) Subscribe(t EventType, cb EventCallback) string {
	h := r.events
	h.mu.Lock()
	defer h.mu.Unlock()
	unsubscribe := h.bus.Subscribe(string(t), cb)
	id := uuid.New().String()
	h.subscriptions[id] = unsubscribe
	return id
}

// Unsubscribe removes a subscription by its handle. Unknown handles are
// ignored.
func (r *Repo) Unsubscribe(id string) {
	h := r.events
	h.mu.Lock()
	defer h.mu.Unlock()
	if unsubscribe, ok := h.subscriptions[id]; ok {
		unsubscribe()
		delete(h.subscriptions, id)
	}
}
