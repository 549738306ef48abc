package monitor

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

type TriggerResult struct {
	Success             bool        `json:"success"`
	BackordersFulfilled int         `json:"backordersFulfilled"`
	FulfilledOrders     []uuid.UUID `json:"fulfilledOrders"`
	NotificationsSent   int         `json:"notificationsSent"`
	RemainingQuantity   int         `json:"remainingQuantity"`
	RestockCycle        int         `json:"restockCycle"`
	Message             string      `json:"message"`
}

type ExpiryResult struct {
	Success           bool     `json:"success"`
	ExpiredCount      int      `json:"expiredCount"`
	NotificationsSent int      `json:"notificationsSent"`
	Failures          []string `json:"failures,omitempty"`
	Message           string   `json:"message"`
}

// Schedule is the API view of an announced restock date.
type Schedule struct {
	ID           uuid.UUID                   `json:"id"`
	ProductID    string                      `json:"productId"`
	VariantID    string                      `json:"variantId,omitempty"`
	ExpectedDate time.Time                   `json:"expectedDate"`
	Status       enums.RestockScheduleStatus `json:"status"`
}

type Stats struct {
	PendingSchedules         int64 `json:"pendingSchedules"`
	ExpiredSchedules         int64 `json:"expiredSchedules"`
	FulfilledSchedules       int64 `json:"fulfilledSchedules"`
	PendingBackorders        int64 `json:"pendingBackorders"`
	ProcessingBackorders     int64 `json:"processingBackorders"`
	FulfilledLast24h         int64 `json:"fulfilledLast24h"`
	FulfilledLast7d          int64 `json:"fulfilledLast7d"`
	NotificationsSentLast24h int64 `json:"notificationsSentLast24h"`
}
