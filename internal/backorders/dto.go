package backorders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// LineInput is one requested SKU on a new backorder.
type LineInput struct {
	ProductID string          `json:"productId" validate:"required"`
	VariantID string          `json:"variantId,omitempty"`
	Quantity  int             `json:"quantity" validate:"required,gt=0"`
	Size      *string         `json:"size,omitempty"`
	Color     *string         `json:"color,omitempty"`
	Price     decimal.Decimal `json:"price"`
}

// ShippingInput carries the delivery address captured at checkout.
type ShippingInput struct {
	Name       string  `json:"name" validate:"required"`
	Email      *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone      *string `json:"phone,omitempty"`
	Line1      string  `json:"line1" validate:"required"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city" validate:"required"`
	State      *string `json:"state,omitempty"`
	PostalCode string  `json:"postalCode" validate:"required"`
	Country    string  `json:"country" validate:"required"`
}

// CreateInput is everything needed to place a backorder. Payment has already
// been captured; PaymentReference is the provider's id.
type CreateInput struct {
	UserID           uuid.UUID       `json:"-"`
	Items            []LineInput     `json:"items" validate:"required,min=1,dive"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	Currency         string          `json:"currency" validate:"required,len=3"`
	PaymentReference *string         `json:"paymentReference,omitempty"`
	Shipping         ShippingInput   `json:"shipping" validate:"required"`
}

type CreateResult struct {
	Success                 bool       `json:"success"`
	OrderID                 uuid.UUID  `json:"orderId"`
	Priority                int64      `json:"priority"`
	ExpectedFulfillmentDate *time.Time `json:"expectedFulfillmentDate,omitempty"`
	Message                 string     `json:"message"`
}

// QueueFilter narrows the pending list to one product. A nil VariantID
// matches every variant; an empty one matches the product-level SKU only.
type QueueFilter struct {
	ProductID string
	VariantID *string
}

// FulfilledOrder is an order that received stock in a fulfillment pass.
type FulfilledOrder struct {
	OrderID  uuid.UUID         `json:"orderId"`
	Quantity int               `json:"quantity"`
	Status   enums.OrderStatus `json:"status"`
}

// FulfillmentFailure is an order whose update failed and was rolled back
// without stopping the pass.
type FulfillmentFailure struct {
	OrderID uuid.UUID `json:"orderId"`
	Error   string    `json:"error"`
}

type FulfillResult struct {
	Success           bool                 `json:"success"`
	FulfilledOrders   []FulfilledOrder     `json:"fulfilledOrders"`
	CompletedOrders   []uuid.UUID          `json:"completedOrders,omitempty"`
	SkippedOrders     []uuid.UUID          `json:"skippedOrders,omitempty"`
	Failures          []FulfillmentFailure `json:"failures,omitempty"`
	RequestedQuantity int                  `json:"requestedQuantity"`
	// UsableQuantity is the part of the request the ledger could cover.
	UsableQuantity int  `json:"usableQuantity"`
	LedgerCapped   bool `json:"ledgerCapped"`
	// RemainingQuantity is counted against the requested quantity.
	RemainingQuantity int    `json:"remainingQuantity"`
	Message           string `json:"message"`
}

// UnusedStock is the ledger stock the pass could have allocated but did not.
func (r FulfillResult) UnusedStock() int {
	return r.UsableQuantity - (r.RequestedQuantity - r.RemainingQuantity)
}

// FulfilledOrderIDs lists the affected orders in fulfillment order.
func (r FulfillResult) FulfilledOrderIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.FulfilledOrders))
	for _, o := range r.FulfilledOrders {
		ids = append(ids, o.OrderID)
	}
	return ids
}

const (
	ReasonInvalidStateTransition = "invalid_state_transition"
)

type CancelResult struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Reason  string            `json:"reason,omitempty"`
	Status  enums.OrderStatus `json:"status"`
	// AllocatedItems are lines that had already received stock. They are
	// returned to the ledger after the cancel commits; lines listed in
	// RestoreFailures need the restore endpoint.
	AllocatedItems  []inventory.Item           `json:"allocatedItems,omitempty"`
	RestoredLines   int                        `json:"restoredLines"`
	RestoreFailures []inventory.RestoreFailure `json:"restoreFailures,omitempty"`
}

type ReprioritizeResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Reason   string `json:"reason,omitempty"`
	Priority int64  `json:"priority"`
}

// Backorder is the API view of an order placed against missing stock.
type Backorder struct {
	ID                      uuid.UUID         `json:"id"`
	UserID                  uuid.UUID         `json:"userId"`
	Status                  enums.OrderStatus `json:"status"`
	TotalAmount             decimal.Decimal   `json:"totalAmount"`
	Currency                string            `json:"currency"`
	PaymentReference        *string           `json:"paymentReference,omitempty"`
	Priority                int64             `json:"priority"`
	PriorityOverride        *int64            `json:"priorityOverride,omitempty"`
	EffectivePriority       int64             `json:"effectivePriority"`
	ExpectedFulfillmentDate *time.Time        `json:"expectedFulfillmentDate,omitempty"`
	CancelReason            *string           `json:"cancelReason,omitempty"`
	Shipping                ShippingInput     `json:"shipping"`
	Items                   []BackorderItem   `json:"items"`
	CreatedAt               time.Time         `json:"createdAt"`
	UpdatedAt               time.Time         `json:"updatedAt"`
	FulfilledAt             *time.Time        `json:"fulfilledAt,omitempty"`
	CancelledAt             *time.Time        `json:"cancelledAt,omitempty"`
}

type BackorderItem struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   string          `json:"productId"`
	VariantID   string          `json:"variantId,omitempty"`
	Quantity    int             `json:"quantity"`
	Size        *string         `json:"size,omitempty"`
	Color       *string         `json:"color,omitempty"`
	Price       decimal.Decimal `json:"price"`
	FulfilledAt *time.Time      `json:"fulfilledAt,omitempty"`
}

func toBackorder(o models.Order) Backorder {
	items := make([]BackorderItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, BackorderItem{
			ID:          it.ID,
			ProductID:   it.ProductID,
			VariantID:   it.VariantID,
			Quantity:    it.Quantity,
			Size:        it.Size,
			Color:       it.Color,
			Price:       it.Price,
			FulfilledAt: it.FulfilledAt,
		})
	}
	return Backorder{
		ID:                      o.ID,
		UserID:                  o.UserID,
		Status:                  o.Status,
		TotalAmount:             o.TotalAmount,
		Currency:                o.Currency,
		PaymentReference:        o.PaymentReference,
		Priority:                o.BackorderPriority,
		PriorityOverride:        o.PriorityOverride,
		EffectivePriority:       o.EffectivePriority(),
		ExpectedFulfillmentDate: o.ExpectedFulfillmentDate,
		CancelReason:            o.CancelReason,
		Shipping: ShippingInput{
			Name:       o.Shipping.Name,
			Email:      o.Shipping.Email,
			Phone:      o.Shipping.Phone,
			Line1:      o.Shipping.Line1,
			Line2:      o.Shipping.Line2,
			City:       o.Shipping.City,
			State:      o.Shipping.State,
			PostalCode: o.Shipping.PostalCode,
			Country:    o.Shipping.Country,
		},
		Items:       items,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
		FulfilledAt: o.FulfilledAt,
		CancelledAt: o.CancelledAt,
	}
}

// Stats are read-only queue counters used by the monitor.
type Stats struct {
	Pending          int64 `json:"pending"`
	Processing       int64 `json:"processing"`
	FulfilledLast24h int64 `json:"fulfilledLast24h"`
	FulfilledLast7d  int64 `json:"fulfilledLast7d"`
}
