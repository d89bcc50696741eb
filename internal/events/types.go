// Package events notifies read-view subscribers about cache changes and
// mutation outcomes.
package events

import (
	"time"
)

// EventType defines the type of event.
type EventType string

const (
	// EventEntityPut indicates an entity was inserted or replaced in the cache.
	EventEntityPut EventType = "entity_put"
	// EventEntityRemoved indicates an entity left the cache.
	EventEntityRemoved EventType = "entity_removed"
	// EventEntityRekeyed indicates a temporary id was replaced by the server id.
	EventEntityRekeyed EventType = "entity_rekeyed"

	// EventOpCommitted indicates a mutation was accepted by the remote.
	EventOpCommitted EventType = "op_committed"
	// EventOpRolledBack indicates a mutation failed and was undone.
	EventOpRolledBack EventType = "op_rolled_back"
)

// Event represents a published event. Topic is the entity key string
// ("feature/12") the event is about.
type Event struct {
	Type  EventType `json:"type"`
	Topic string    `json:"topic"`
	Data  any       `json:"data,omitempty"`
	Time  time.Time `json:"time"`
}

// NewEvent creates a new event with the current timestamp.
func NewEvent(eventType EventType, topic string, data any) Event {
	return Event{
		Type:  eventType,
		Topic: topic,
		Data:  data,
		Time:  time.Now(),
	}
}

// RekeyData is the payload of EventEntityRekeyed.
type RekeyData struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// OpData is the payload of the op_* events.
type OpData struct {
	Op    string `json:"op"`
	Error string `json:"error,omitempty"`
	Stale bool   `json:"stale,omitempty"`
}
