package waitlist

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// SubscribeInput registers an email for restock mail. An empty VariantID
// subscribes to every variant of the product.
type SubscribeInput struct {
	Email     string     `json:"email" validate:"required,email"`
	ProductID string     `json:"productId" validate:"required"`
	VariantID string     `json:"variantId,omitempty"`
	UserID    *uuid.UUID `json:"-"`
}

const ReasonAlreadySubscribed = "already_subscribed"

type SubscribeResult struct {
	Success        bool      `json:"success"`
	SubscriptionID uuid.UUID `json:"subscriptionId"`
	Message        string    `json:"message"`
	Reason         string    `json:"reason,omitempty"`
}

// Subscription is the API view of a waitlist row.
type Subscription struct {
	ID             uuid.UUID  `json:"id"`
	Email          string     `json:"email"`
	ProductID      string     `json:"productId"`
	VariantID      string     `json:"variantId,omitempty"`
	UserID         *uuid.UUID `json:"userId,omitempty"`
	Active         bool       `json:"active"`
	CreatedAt      time.Time  `json:"createdAt"`
	UnsubscribedAt *time.Time `json:"unsubscribedAt,omitempty"`
	ConvertedAt    *time.Time `json:"convertedAt,omitempty"`
}

func FromModel(m models.WaitlistSubscription) Subscription {
	return Subscription{
		ID:             m.ID,
		Email:          m.Email,
		ProductID:      m.ProductID,
		VariantID:      m.VariantID,
		UserID:         m.UserID,
		Active:         m.Active,
		CreatedAt:      m.CreatedAt,
		UnsubscribedAt: m.UnsubscribedAt,
		ConvertedAt:    m.ConvertedAt,
	}
}

type ProductBreakdown struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	Total     int64  `json:"total"`
	Active    int64  `json:"active"`
	Converted int64  `json:"converted"`
}

type Analytics struct {
	TotalSubscriptions     int64              `json:"totalSubscriptions"`
	ActiveSubscriptions    int64              `json:"activeSubscriptions"`
	ConvertedSubscriptions int64              `json:"convertedSubscriptions"`
	ConversionRate         float64            `json:"conversionRate"`
	ByProduct              []ProductBreakdown `json:"byProduct"`
}
