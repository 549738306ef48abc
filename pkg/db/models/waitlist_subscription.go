package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WaitlistSubscription registers interest in a SKU that is out of stock. An
// empty VariantID subscribes to every variant of the product.
type WaitlistSubscription struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Email          string     `gorm:"column:email;type:text;not null;uniqueIndex:uq_waitlist_active_subscription,priority:1,where:active = true"`
	ProductID      string     `gorm:"column:product_id;type:text;not null;index;uniqueIndex:uq_waitlist_active_subscription,priority:2,where:active = true"`
	VariantID      string     `gorm:"column:variant_id;type:text;not null;default:'';uniqueIndex:uq_waitlist_active_subscription,priority:3,where:active = true"`
	UserID         *uuid.UUID `gorm:"column:user_id;type:uuid"`
	Active         bool       `gorm:"column:active;not null;default:true"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UnsubscribedAt *time.Time `gorm:"column:unsubscribed_at"`
	ConvertedAt    *time.Time `gorm:"column:converted_at"`
}

func (WaitlistSubscription) TableName() string { return "waitlist_subscriptions" }

func (s *WaitlistSubscription) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
