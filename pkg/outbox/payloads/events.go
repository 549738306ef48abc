package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// BackorderCreatedEvent is emitted when a customer places a backorder.
type BackorderCreatedEvent struct {
	OrderID                 uuid.UUID  `json:"order_id"`
	UserID                  uuid.UUID  `json:"user_id"`
	Priority                int64      `json:"priority"`
	ExpectedFulfillmentDate *time.Time `json:"expected_fulfillment_date,omitempty"`
	SKUs                    []SKURef   `json:"skus"`
}

// SKURef names a product and optional variant.
type SKURef struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
}

// BackorderFulfillmentEvent is emitted for each order that received stock in a
// fulfillment pass.
type BackorderFulfillmentEvent struct {
	OrderID          uuid.UUID         `json:"order_id"`
	ProductID        string            `json:"product_id"`
	VariantID        string            `json:"variant_id,omitempty"`
	QuantityAssigned int               `json:"quantity_assigned"`
	Status           enums.OrderStatus `json:"status"`
}

// BackorderCancelledEvent is emitted when a backorder is cancelled.
type BackorderCancelledEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	Reason         string            `json:"reason,omitempty"`
	Restored       []SKURef          `json:"restored,omitempty"`
}

// BackorderReprioritizedEvent records an admin queue override.
type BackorderReprioritizedEvent struct {
	OrderID  uuid.UUID `json:"order_id"`
	Priority int64     `json:"priority"`
}

// StockRestockedEvent is emitted when received stock is added to the ledger.
type StockRestockedEvent struct {
	ProductID    string `json:"product_id"`
	VariantID    string `json:"variant_id,omitempty"`
	Quantity     int    `json:"quantity"`
	Available    int    `json:"available"`
	RestockCycle int    `json:"restock_cycle"`
}

// RestockDateExpiredEvent is emitted when an announced restock date passes.
type RestockDateExpiredEvent struct {
	ScheduleID   uuid.UUID `json:"schedule_id"`
	ProductID    string    `json:"product_id"`
	VariantID    string    `json:"variant_id,omitempty"`
	ExpectedDate time.Time `json:"expected_date"`
}

// WaitlistConvertedEvent is emitted when a restock email leads to a purchase.
type WaitlistConvertedEvent struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
}
