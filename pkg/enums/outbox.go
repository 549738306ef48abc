package enums

import "fmt"

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateStock        OutboxAggregateType = "stock"
	AggregateSubscription OutboxAggregateType = "waitlist_subscription"
	AggregateSchedule     OutboxAggregateType = "restock_schedule"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateStock,
	AggregateSubscription,
	AggregateSchedule,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a domain event published to the event bus.
type OutboxEventType string

const (
	EventBackorderCreated            OutboxEventType = "backorder_created"
	EventBackorderFulfilled          OutboxEventType = "backorder_fulfilled"
	EventBackorderPartiallyFulfilled OutboxEventType = "backorder_partially_fulfilled"
	EventBackorderCancelled          OutboxEventType = "backorder_cancelled"
	EventBackorderReprioritized      OutboxEventType = "backorder_reprioritized"
	EventStockRestocked              OutboxEventType = "stock_restocked"
	EventRestockDateExpired          OutboxEventType = "restock_date_expired"
	EventWaitlistConverted           OutboxEventType = "waitlist_converted"
)

var validOutboxEventTypes = []OutboxEventType{
	EventBackorderCreated,
	EventBackorderFulfilled,
	EventBackorderPartiallyFulfilled,
	EventBackorderCancelled,
	EventBackorderReprioritized,
	EventStockRestocked,
	EventRestockDateExpired,
	EventWaitlistConverted,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason records why an event was moved to the dead-letter table.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

// Retryable reports whether a replay of the dead-lettered event may succeed.
func (r OutboxDLQErrorReason) Retryable() bool {
	return r == OutboxDLQReasonMaxAttempts
}
