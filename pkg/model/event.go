package model

import "time"

type EventType string

const (
	EventBookingCreated     EventType = "booking.created"
	EventBookingAccepted    EventType = "booking.accepted"
	EventBookingRejected    EventType = "booking.rejected"
	EventBookingCancelled   EventType = "booking.cancelled"
	EventBookingRescheduled EventType = "booking.rescheduled"
	EventBookingExpired     EventType = "booking.expired"

	EventVisitRequested   EventType = "visit.requested"
	EventVisitApproved    EventType = "visit.approved"
	EventVisitRejected    EventType = "visit.rejected"
	EventVisitCancelled   EventType = "visit.cancelled"
	EventVisitRescheduled EventType = "visit.rescheduled"
	EventVisitCompleted   EventType = "visit.completed"
	EventVisitExpired     EventType = "visit.expired"
)

type EntityType string

const (
	EntityBooking EntityType = "booking"
	EntityVisit   EntityType = "visit"
)

// LifecycleEvent announces one committed state change. EntityID doubles as
// the broker partition key; EventID is the consumer dedup key.
type LifecycleEvent struct {
	EventID    string       `json:"eventId"`
	EventType  EventType    `json:"eventType"`
	EntityType EntityType   `json:"entityType"`
	EntityID   string       `json:"entityId"`
	Timestamp  time.Time    `json:"timestamp"`
	Payload    EventPayload `json:"payload"`
}

type EventPayload struct {
	Current  any               `json:"current"`
	Previous map[string]any    `json:"previous,omitempty"`
	Context  map[string]string `json:"context,omitempty"`
}
