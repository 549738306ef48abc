package registry

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

func TestDecoderRegistry(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventBackorderFulfilled, 1, JSONDecoder[payloads.BackorderFulfillmentEvent]())

	orderID := uuid.New()
	input := json.RawMessage(`{"order_id":"` + orderID.String() + `","product_id":"p","quantity_assigned":2,"status":"fulfilled"}`)
	output, err := reg.Decode(enums.EventBackorderFulfilled, 1, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	event, ok := output.(payloads.BackorderFulfillmentEvent)
	if !ok || event.OrderID != orderID || event.QuantityAssigned != 2 {
		t.Fatalf("unexpected output %+v", output)
	}

	if _, err := reg.Decode(enums.EventBackorderFulfilled, 2, input); err == nil {
		t.Fatalf("expected error for unregistered version")
	}
}
