package waitlist

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository defines persistence operations for waitlist subscriptions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sub *models.WaitlistSubscription) error
	FindActive(ctx context.Context, email, productID, variantID string) (*models.WaitlistSubscription, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.WaitlistSubscription, error)
	Deactivate(ctx context.Context, email, productID, variantID string, at time.Time) (int64, error)
	MarkConverted(ctx context.Context, id uuid.UUID, at time.Time) (int64, error)
	ListActiveForSKU(ctx context.Context, productID, variantID string) ([]models.WaitlistSubscription, error)
	ListByEmail(ctx context.Context, email string) ([]models.WaitlistSubscription, error)
	Breakdown(ctx context.Context) ([]ProductBreakdown, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, sub *models.WaitlistSubscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repository) FindActive(ctx context.Context, email, productID, variantID string) (*models.WaitlistSubscription, error) {
	var sub models.WaitlistSubscription
	err := r.db.WithContext(ctx).
		Where("email = ? AND product_id = ? AND variant_id = ? AND active = ?", email, productID, variantID, true).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.WaitlistSubscription, error) {
	var sub models.WaitlistSubscription
	if err := r.db.WithContext(ctx).First(&sub, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) Deactivate(ctx context.Context, email, productID, variantID string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.WaitlistSubscription{}).
		Where("email = ? AND product_id = ? AND variant_id = ? AND active = ?", email, productID, variantID, true).
		Updates(map[string]any{"active": false, "unsubscribed_at": at})
	return res.RowsAffected, res.Error
}

// MarkConverted deactivates the subscription once, keeping the first
// conversion time.
func (r *repository) MarkConverted(ctx context.Context, id uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.WaitlistSubscription{}).
		Where("id = ? AND converted_at IS NULL", id).
		Updates(map[string]any{"active": false, "converted_at": at})
	return res.RowsAffected, res.Error
}

// ListActiveForSKU includes product-level subscriptions when a variant is
// given, since those cover every variant.
func (r *repository) ListActiveForSKU(ctx context.Context, productID, variantID string) ([]models.WaitlistSubscription, error) {
	q := r.db.WithContext(ctx).Where("product_id = ? AND active = ?", productID, true)
	if variantID == "" {
		q = q.Where("variant_id = ''")
	} else {
		q = q.Where("variant_id IN ?", []string{variantID, ""})
	}
	var subs []models.WaitlistSubscription
	err := q.Order("created_at ASC").Order("id ASC").Find(&subs).Error
	return subs, err
}

func (r *repository) ListByEmail(ctx context.Context, email string) ([]models.WaitlistSubscription, error) {
	var subs []models.WaitlistSubscription
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		Order("created_at DESC").
		Find(&subs).Error
	return subs, err
}

func (r *repository) Breakdown(ctx context.Context) ([]ProductBreakdown, error) {
	var rows []ProductBreakdown
	err := r.db.WithContext(ctx).
		Model(&models.WaitlistSubscription{}).
		Select(`product_id, variant_id, COUNT(*) AS total,
			SUM(CASE WHEN active THEN 1 ELSE 0 END) AS active,
			SUM(CASE WHEN converted_at IS NOT NULL THEN 1 ELSE 0 END) AS converted`).
		Group("product_id, variant_id").
		Order("total DESC").
		Order("product_id ASC").
		Order("variant_id ASC").
		Scan(&rows).Error
	return rows, err
}
