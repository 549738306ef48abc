package notifications

import (
	"time"

	"github.com/google/uuid"
)

// ProductRef names the restocked SKU. RestockCycle comes from the ledger and
// scopes restock mail to one notice per subscription per cycle.
type ProductRef struct {
	ProductID    string
	VariantID    string
	Name         string
	RestockCycle int
}

func (p ProductRef) displayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ProductID
}

// ScheduleRef is the announced restock date that lapsed.
type ScheduleRef struct {
	ID           uuid.UUID
	ExpectedDate time.Time
}

type DispatchFailure struct {
	SubscriptionID uuid.UUID `json:"subscriptionId"`
	Error          string    `json:"error"`
}

// DispatchResult counts one batch of sends. Skipped subscriptions already
// hold a notification for the same cycle.
type DispatchResult struct {
	Sent     int               `json:"sent"`
	Skipped  int               `json:"skipped"`
	Failed   int               `json:"failed"`
	Failures []DispatchFailure `json:"failures,omitempty"`
}

// TrackResult reports whether the call recorded a new engagement timestamp.
type TrackResult struct {
	NotificationID uuid.UUID `json:"notificationId"`
	Recorded       bool      `json:"recorded"`
	Reason         string    `json:"reason,omitempty"`
}

// ReasonNotDelivered marks a purchase reported against mail that never went out.
const ReasonNotDelivered = "not_delivered"

type Analytics struct {
	Sent           int64   `json:"sent"`
	Opened         int64   `json:"opened"`
	Clicked        int64   `json:"clicked"`
	Converted      int64   `json:"converted"`
	Failed         int64   `json:"failed"`
	OpenRate       float64 `json:"openRate"`
	ClickRate      float64 `json:"clickRate"`
	ConversionRate float64 `json:"conversionRate"`
}

func ratio(n, d int64) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
