package outbox

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/YeLlowseaG/clientseeker/pkg/db/models"
	"github.com/YeLlowseaG/clientseeker/pkg/enums"
)

// EventDescriptor links an event type to its aggregate, topic and payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is a validated outbox row ready to publish.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row that can never be published as stored; the
// publisher dead-letters it instead of retrying.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func nonRetryable(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

// EventRegistry maps every billing event to the topic it is published on.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

func describe[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType) EventDescriptor {
	return EventDescriptor{
		EventType:      eventType,
		AggregateType:  aggregate,
		PayloadFactory: func() any { return new(T) },
	}
}

// NewEventRegistry puts every billing event on billingTopic.
func NewEventRegistry(billingTopic string) (*EventRegistry, error) {
	if billingTopic == "" {
		return nil, errors.New("billing topic is required")
	}
	descriptors := []EventDescriptor{
		describe[OrderPaidEvent](enums.EventOrderPaid, enums.AggregateOrder),
		describe[OrderFailedEvent](enums.EventOrderFailed, enums.AggregateOrder),
		describe[SubscriptionActivatedEvent](enums.EventSubscriptionActivated, enums.AggregateSubscription),
		describe[SubscriptionExpiredEvent](enums.EventSubscriptionExpired, enums.AggregateSubscription),
		describe[CreditsGrantedEvent](enums.EventCreditsGranted, enums.AggregateCreditEntry),
	}
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(descriptors))}
	for _, d := range descriptors {
		d.Topic = billingTopic
		reg.entries[d.EventType] = d
	}
	return reg, nil
}

// Resolve checks a row against its descriptor and decodes the typed payload.
// Every failure is a NonRetryableError.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, nonRetryable("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, nonRetryable("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == "":
		return nil, nonRetryable("missing aggregate_id")
	}

	env, err := decodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", event.EventType, err))
	}
	payload := desc.PayloadFactory()
	if err := json.Unmarshal(env.Data, payload); err != nil {
		return nil, nonRetryable("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: env, Payload: payload}, nil
}
