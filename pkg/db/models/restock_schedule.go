package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// RestockSchedule is an announced restock date. Only one pending schedule may
// exist per SKU.
type RestockSchedule struct {
	ID           uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	ProductID    string                      `gorm:"column:product_id;type:text;not null;uniqueIndex:uq_restock_schedule_pending,priority:1,where:status = 'pending'"`
	VariantID    string                      `gorm:"column:variant_id;type:text;not null;default:'';uniqueIndex:uq_restock_schedule_pending,priority:2,where:status = 'pending'"`
	ExpectedDate time.Time                   `gorm:"column:expected_date;not null;index"`
	Status       enums.RestockScheduleStatus `gorm:"column:status;type:text;not null;index"`
	ExpiredAt    *time.Time                  `gorm:"column:expired_at"`
	FulfilledAt  *time.Time                  `gorm:"column:fulfilled_at"`
	CreatedAt    time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

func (RestockSchedule) TableName() string { return "restock_schedules" }

func (s *RestockSchedule) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
