// Package shared contains common domain types, errors and events that are
// used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that
// happened in the domain; post-commit side effects (email, SMS, in-app
// notifications, certificate rendering) are driven by these.
const (
	// Submission events
	EventSubmissionCreated       EventType = "submission.created"
	EventSubmissionApproved      EventType = "submission.approved"
	EventSubmissionRejected      EventType = "submission.rejected"
	EventSubmissionNeedsRevision EventType = "submission.needs_revision"

	// Enrollment events
	EventEnrollmentCompleted EventType = "enrollment.completed"
	EventTaskUnlocked        EventType = "enrollment.task_unlocked"

	// Payment events
	EventPaymentOrderCreated EventType = "payment.order_created"
	EventPaymentCompleted    EventType = "payment.completed"
	EventPaymentFailed       EventType = "payment.failed"
	EventPaymentRefunded     EventType = "payment.refunded"

	// Certificate events
	EventCertificateIssued  EventType = "certificate.issued"
	EventCertificateRevoked EventType = "certificate.revoked"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType { return e.Type }

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string { return e.AggregateId }

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
	}
}

// GenericEvent is a simple Event implementation carrying an arbitrary payload.
type GenericEvent struct {
	BaseEvent
	Data map[string]interface{}
}

// Payload implements Event interface.
func (e GenericEvent) Payload() map[string]interface{} { return e.Data }

// NewEvent creates a generic domain event.
func NewEvent(eventType EventType, aggregateID string, data map[string]interface{}) GenericEvent {
	return GenericEvent{
		BaseEvent: NewBaseEvent(eventType, aggregateID),
		Data:      data,
	}
}

// EventPublisher publishes domain events to interested subscribers.
// Publishing is fire-and-forget: a failed or slow subscriber must never
// affect the operation that produced the event.
type EventPublisher interface {
	Publish(event Event) error
}

// EventHandler handles a domain event.
type EventHandler interface {
	Handle(event Event) error
}

// EventHandlerFunc adapts a function to the EventHandler interface.
type EventHandlerFunc func(event Event) error

// Handle implements EventHandler.
func (f EventHandlerFunc) Handle(event Event) error { return f(event) }

// NopPublisher discards all events. Useful in tests.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
