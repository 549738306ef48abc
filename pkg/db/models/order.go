package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// ShippingAddress is embedded into orders with a shipping_ column prefix.
type ShippingAddress struct {
	Name       string  `gorm:"column:name;type:text;not null"`
	Email      *string `gorm:"column:email;type:text"`
	Phone      *string `gorm:"column:phone;type:text"`
	Line1      string  `gorm:"column:line1;type:text;not null"`
	Line2      *string `gorm:"column:line2;type:text"`
	City       string  `gorm:"column:city;type:text;not null"`
	State      *string `gorm:"column:state;type:text"`
	PostalCode string  `gorm:"column:postal_code;type:text;not null"`
	Country    string  `gorm:"column:country;type:text;not null"`
}

// Order is a customer order. Backorders carry a priority assigned once at
// creation; PriorityOverride is an admin rank that only affects ordering.
type Order struct {
	ID                      uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID                  uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	OrderType               enums.OrderType   `gorm:"column:order_type;type:text;not null"`
	Status                  enums.OrderStatus `gorm:"column:status;type:text;not null;index"`
	TotalAmount             decimal.Decimal   `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Currency                string            `gorm:"column:currency;type:text;not null"`
	PaymentReference        *string           `gorm:"column:payment_reference;type:text"`
	Shipping                ShippingAddress   `gorm:"embedded;embeddedPrefix:shipping_"`
	ExpectedFulfillmentDate *time.Time        `gorm:"column:expected_fulfillment_date"`
	BackorderPriority       int64             `gorm:"column:backorder_priority;not null;default:0"`
	PriorityOverride        *int64            `gorm:"column:priority_override"`
	CancelReason            *string           `gorm:"column:cancel_reason;type:text"`
	CancelledAt             *time.Time        `gorm:"column:cancelled_at"`
	FulfilledAt             *time.Time        `gorm:"column:fulfilled_at"`
	CreatedAt               time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time         `gorm:"column:updated_at;autoUpdateTime"`

	Items []OrderItem `gorm:"foreignKey:OrderID"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// EffectivePriority is the queue rank: the admin override when present.
func (o Order) EffectivePriority() int64 {
	if o.PriorityOverride != nil {
		return *o.PriorityOverride
	}
	return o.BackorderPriority
}
