// Package queue defines message payloads exchanged over the message broker
// and the publisher/consumer pair that moves them.
package queue

// QueueName is the durable queue carrying reservation lifecycle events.
const QueueName = "reservation.events"

// EventType names a reservation lifecycle transition.
type EventType string

const (
	EventReservationCreated   EventType = "reservation.created"
	EventReservationCancelled EventType = "reservation.cancelled"
)

// ReservationEvent is published after a reservation is created or cancelled.
// It carries enough information for downstream consumers to log, notify or
// update analytics without querying the primary database.
type ReservationEvent struct {
	EventID       string    `json:"event_id"`
	Type          EventType `json:"type"`
	ReservationID uint64    `json:"reservation_id"`
	ClassID       uint64    `json:"class_id"`
	ClientID      uint64    `json:"client_id"`
	ClassTitle    string    `json:"class_title"`
	StartsAt      string    `json:"starts_at"`
	ReservedCount int       `json:"reserved_count"`
	Capacity      int       `json:"capacity"`
	OccurredAt    string    `json:"occurred_at"`
}
