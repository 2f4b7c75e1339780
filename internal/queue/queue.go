package queue

import (
	"context"
	"fmt"
)

// EventPublisher publishes delivery events to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, event DeliveryEvent) error
	Close() error
}

// EventType names a delivery lifecycle event.
type EventType string

const (
	EventMessageSent   EventType = "message.sent"
	EventMessageFailed EventType = "message.failed"
	EventMessageOpened EventType = "message.opened"
)

func (t EventType) IsValid() bool {
	switch t {
	case EventMessageSent, EventMessageFailed, EventMessageOpened:
		return true
	}
	return false
}

const (
	// EventsExchangeName is the topic exchange delivery events are routed through.
	EventsExchangeName = "drip.events"
	// AuditQueueName retains every delivery event for downstream consumers.
	AuditQueueName = "drip.events.audit"
)

const auditBindingKey = "message.#"

// RoutingKey returns the topic routing key for an event type.
func RoutingKey(t EventType) string {
	return string(t)
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(_ context.Context, event DeliveryEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid delivery event: %w", err)
	}
	return nil
}

func (NopPublisher) Close() error { return nil }
