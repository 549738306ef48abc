package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderItem is one SKU line on an order. FulfilledAt is set once the line has
// been allocated from restocked inventory.
type OrderItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID   string          `gorm:"column:product_id;type:text;not null;index:idx_order_items_sku,priority:1"`
	VariantID   string          `gorm:"column:variant_id;type:text;not null;default:'';index:idx_order_items_sku,priority:2"`
	Quantity    int             `gorm:"column:quantity;not null;check:chk_order_items_quantity_positive,quantity > 0"`
	Size        *string         `gorm:"column:size;type:text"`
	Color       *string         `gorm:"column:color;type:text"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	FulfilledAt *time.Time      `gorm:"column:fulfilled_at"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (OrderItem) TableName() string { return "order_items" }

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
