package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate, topic and payload.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is an outbox row with its envelope and typed payload decoded.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError tells the publisher to dead-letter the row.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// NewEventRegistry routes every storefront event to the domain topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := strings.TrimSpace(cfg.DomainTopic)
	if topic == "" {
		return nil, fmt.Errorf("domain topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	orderEvent := func(t enums.OutboxEventType, factory func() any) EventDescriptor {
		return EventDescriptor{EventType: t, AggregateType: enums.AggregateOrder, Topic: topic, PayloadFactory: factory}
	}
	for _, desc := range []EventDescriptor{
		orderEvent(enums.EventBackorderCreated, func() any { return &payloads.BackorderCreatedEvent{} }),
		orderEvent(enums.EventBackorderFulfilled, func() any { return &payloads.BackorderFulfillmentEvent{} }),
		orderEvent(enums.EventBackorderPartiallyFulfilled, func() any { return &payloads.BackorderFulfillmentEvent{} }),
		orderEvent(enums.EventBackorderCancelled, func() any { return &payloads.BackorderCancelledEvent{} }),
		orderEvent(enums.EventBackorderReprioritized, func() any { return &payloads.BackorderReprioritizedEvent{} }),
		{
			EventType:      enums.EventStockRestocked,
			AggregateType:  enums.AggregateStock,
			Topic:          topic,
			PayloadFactory: func() any { return &payloads.StockRestockedEvent{} },
		},
		{
			EventType:      enums.EventRestockDateExpired,
			AggregateType:  enums.AggregateSchedule,
			Topic:          topic,
			PayloadFactory: func() any { return &payloads.RestockDateExpiredEvent{} },
		},
		{
			EventType:      enums.EventWaitlistConverted,
			AggregateType:  enums.AggregateSubscription,
			Topic:          topic,
			PayloadFactory: func() any { return &payloads.WaitlistConvertedEvent{} },
		},
	} {
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// Resolve validates the row and decodes its typed payload. Every failure is
// non-retryable because republishing the same row cannot fix it.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if strings.TrimSpace(event.AggregateID) == "" {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}
	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
