package events

import (
	"time"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	// EventTicketChanged is published once per successful mutation other than
	// a breach. Consumers re-fetch the ticket instead of applying a payload.
	EventTicketChanged EventType = "ticket_changed"
	// EventSLABreached replaces EventTicketChanged when the sweeper marks a
	// ticket breached.
	EventSLABreached EventType = "sla_breached"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  int64     `json:"ticket_id"`
	Operation string    `json:"operation"`
	Version   int64     `json:"version"`
	ActorID   *string   `json:"actor_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
