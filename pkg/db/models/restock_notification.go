package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// RestockNotification records one email per subscription per restock cycle.
// The (subscription_id, variant_id, cycle_key) key makes dispatch idempotent.
type RestockNotification struct {
	ID             uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	SubscriptionID uuid.UUID                `gorm:"column:subscription_id;type:uuid;not null;uniqueIndex:uq_restock_notification_cycle,priority:1"`
	Email          string                   `gorm:"column:email;type:text;not null"`
	ProductID      string                   `gorm:"column:product_id;type:text;not null;index"`
	VariantID      string                   `gorm:"column:variant_id;type:text;not null;default:'';uniqueIndex:uq_restock_notification_cycle,priority:2"`
	Kind           enums.NotificationKind   `gorm:"column:kind;type:text;not null"`
	CycleKey       string                   `gorm:"column:cycle_key;type:text;not null;uniqueIndex:uq_restock_notification_cycle,priority:3"`
	Status         enums.NotificationStatus `gorm:"column:status;type:text;not null;index"`
	SentAt         *time.Time               `gorm:"column:sent_at"`
	OpenedAt       *time.Time               `gorm:"column:opened_at"`
	ClickedAt      *time.Time               `gorm:"column:clicked_at"`
	PurchasedAt    *time.Time               `gorm:"column:purchased_at"`
	LastError      *string                  `gorm:"column:last_error;type:text"`
	CreatedAt      time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (RestockNotification) TableName() string { return "restock_notifications" }

func (n *RestockNotification) BeforeCreate(*gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
