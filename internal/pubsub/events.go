// Package pubsub implements a small generic publish/subscribe broker used
// to stream events, such as log entries, to in-process observers.
package pubsub

import "time"

// EventType classifies a published event.
type EventType string

const (
	CreatedEvent EventType = "created"
	UpdatedEvent EventType = "updated"
	DeletedEvent EventType = "deleted"
)

// Event carries one published payload together with its type and the time
// it was published.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}
