package enums

import "fmt"

// NotificationKind distinguishes back-in-stock mail from delay notices.
type NotificationKind string

const (
	NotificationKindRestock        NotificationKind = "restock"
	NotificationKindRestockDelayed NotificationKind = "restock_delayed"
)

func (k NotificationKind) String() string {
	return string(k)
}

// NotificationStatus tracks a single dispatch attempt row.
type NotificationStatus string

const (
	NotificationStatusPending   NotificationStatus = "pending"
	NotificationStatusSent      NotificationStatus = "sent"
	NotificationStatusFailed    NotificationStatus = "failed"
	NotificationStatusConverted NotificationStatus = "converted"
)

var validNotificationStatuses = []NotificationStatus{
	NotificationStatusPending,
	NotificationStatusSent,
	NotificationStatusFailed,
	NotificationStatusConverted,
}

// IsValid checks whether the given status matches the canonical enum.
func (s NotificationStatus) IsValid() bool {
	for _, candidate := range validNotificationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// TrackingAction is an engagement event reported back from an email.
type TrackingAction string

const (
	TrackingActionOpen     TrackingAction = "open"
	TrackingActionClick    TrackingAction = "click"
	TrackingActionPurchase TrackingAction = "purchase"
)

var validTrackingActions = []TrackingAction{
	TrackingActionOpen,
	TrackingActionClick,
	TrackingActionPurchase,
}

// ParseTrackingAction converts raw strings into TrackingAction.
func ParseTrackingAction(value string) (TrackingAction, error) {
	for _, candidate := range validTrackingActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tracking action %q", value)
}
