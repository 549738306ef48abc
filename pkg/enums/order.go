package enums

import "fmt"

// OrderType separates regular checkouts from orders placed against stock
// that has not arrived yet.
type OrderType string

const (
	OrderTypeStandard  OrderType = "standard"
	OrderTypeBackorder OrderType = "backorder"
)

var validOrderTypes = []OrderType{
	OrderTypeStandard,
	OrderTypeBackorder,
}

func (t OrderType) String() string {
	return string(t)
}

// IsValid reports whether the value matches a known order type.
func (t OrderType) IsValid() bool {
	for _, candidate := range validOrderTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// OrderStatus tracks the backorder lifecycle.
// pending -> processing -> fulfilled; pending|processing -> cancelled.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusFulfilled  OrderStatus = "fulfilled"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusFulfilled,
	OrderStatusCancelled,
}

// OpenOrderStatuses are the statuses that keep an order in a fulfillment queue.
var OpenOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
}

func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches a known order status.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFulfilled || s == OrderStatusCancelled
}

// CanTransitionTo reports whether moving from s to next is a legal step.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return next == OrderStatusProcessing || next == OrderStatusFulfilled || next == OrderStatusCancelled
	case OrderStatusProcessing:
		return next == OrderStatusFulfilled || next == OrderStatusCancelled
	default:
		return false
	}
}

// ParseOrderStatus converts raw input into OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
