package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a lifecycle notification published by the engine.
type EventType string

const (
	// EventSpawned is published after a run record is created.
	EventSpawned EventType = "orchestrate:spawned"
	// EventRouted is published once the routing decision of a run is known.
	EventRouted EventType = "orchestrate:routed"
	// EventCompleted is published after a successful terminal transition.
	EventCompleted EventType = "orchestrate:completed"
	// EventKilled is published after a run was killed.
	EventKilled EventType = "orchestrate:killed"
)

// Event is a fire-and-forget lifecycle notification. After publication it
// should be treated as immutable. Consumers must not assume ordering relative
// to other event types.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	RunID     string         `json:"run_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewEvent creates an event of type t bound to a run.
func NewEvent(t EventType, runID string, payload map[string]any) Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return Event{
		ID:        NewID(),
		Type:      t,
		RunID:     runID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// NewID generates a new unique identifier.
func NewID() string { return uuid.NewString() }

// EventBus is the publish-only side of the cross-component notification bus.
// Publish must not block the caller for longer than it takes to enqueue.
type EventBus interface {
	Publish(ev Event)
}

// NoOpBus discards every event.
type NoOpBus struct{}

// Publish implements EventBus.
func (NoOpBus) Publish(Event) {}

// EventBusFunc adapts a function to EventBus.
type EventBusFunc func(Event)

// Publish implements EventBus.
func (f EventBusFunc) Publish(ev Event) { f(ev) }
