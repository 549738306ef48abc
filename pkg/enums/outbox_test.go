package enums

import "testing"

func TestParseOutboxEventType(t *testing.T) {
	got, err := ParseOutboxEventType("backorder_created")
	if err != nil || got != EventBackorderCreated {
		t.Fatalf("got %q err %v", got, err)
	}
	if _, err := ParseOutboxEventType("order_paid"); err == nil {
		t.Fatal("expected error for unknown event type")
	}
	if !EventWaitlistConverted.IsValid() {
		t.Fatal("waitlist_converted should be valid")
	}
}

func TestParseOutboxAggregateType(t *testing.T) {
	if _, err := ParseOutboxAggregateType("vendor_order"); err == nil {
		t.Fatal("expected error for unknown aggregate")
	}
	if !AggregateSchedule.IsValid() {
		t.Fatal("restock_schedule should be valid")
	}
}

func TestOutboxDLQErrorReasonRetryable(t *testing.T) {
	if !OutboxDLQReasonMaxAttempts.Retryable() {
		t.Fatal("max_attempts should be retryable")
	}
	if OutboxDLQReasonNonRetryable.Retryable() {
		t.Fatal("non_retryable should not be retryable")
	}
}
