package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Repository exposes persistence helpers for restock notifications.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Claim(ctx context.Context, row *models.RestockNotification) (bool, error)
	ReclaimFailed(ctx context.Context, subscriptionID uuid.UUID, variantID, cycleKey string) (uuid.UUID, bool, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.RestockNotification, error)
	Stamp(ctx context.Context, id uuid.UUID, column string, at time.Time, extra map[string]any) (stampResult, error)
	Totals(ctx context.Context) (*Analytics, error)
	CountSentSince(ctx context.Context, since time.Time) (int64, error)
	PurgeFailedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a notifications repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type stampResult struct {
	Updated bool
	Found   bool
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

// Claim inserts the row unless one already exists for its subscription,
// variant and cycle. It reports whether this caller owns the send.
func (r *repositoryImpl) Claim(ctx context.Context, row *models.RestockNotification) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ReclaimFailed flips a failed row back to pending so exactly one caller
// retries it.
func (r *repositoryImpl) ReclaimFailed(ctx context.Context, subscriptionID uuid.UUID, variantID, cycleKey string) (uuid.UUID, bool, error) {
	var row models.RestockNotification
	err := r.db.WithContext(ctx).
		Where("subscription_id = ? AND variant_id = ? AND cycle_key = ?", subscriptionID, variantID, cycleKey).
		First(&row).Error
	if err != nil {
		return uuid.Nil, false, err
	}
	if row.Status != enums.NotificationStatusFailed {
		return row.ID, false, nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.RestockNotification{}).
		Where("id = ? AND status = ?", row.ID, enums.NotificationStatusFailed).
		Updates(map[string]any{"status": enums.NotificationStatusPending, "last_error": nil})
	if result.Error != nil {
		return uuid.Nil, false, result.Error
	}
	return row.ID, result.RowsAffected == 1, nil
}

func (r *repositoryImpl) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.RestockNotification{}).
		Where("id = ? AND status = ?", id, enums.NotificationStatusPending).
		Updates(map[string]any{"status": enums.NotificationStatusSent, "sent_at": at, "last_error": nil}).
		Error
}

func (r *repositoryImpl) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.db.WithContext(ctx).
		Model(&models.RestockNotification{}).
		Where("id = ? AND status = ?", id, enums.NotificationStatusPending).
		Updates(map[string]any{"status": enums.NotificationStatusFailed, "last_error": reason}).
		Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.RestockNotification, error) {
	var row models.RestockNotification
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Stamp sets column once. Later calls leave the first timestamp in place.
func (r *repositoryImpl) Stamp(ctx context.Context, id uuid.UUID, column string, at time.Time, extra map[string]any) (stampResult, error) {
	updates := map[string]any{column: at}
	for k, v := range extra {
		updates[k] = v
	}
	result := r.db.WithContext(ctx).
		Model(&models.RestockNotification{}).
		Where("id = ?", id).
		Where(column + " IS NULL").
		Updates(updates)
	if result.Error != nil {
		return stampResult{}, result.Error
	}
	if result.RowsAffected > 0 {
		return stampResult{Updated: true, Found: true}, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.RestockNotification{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return stampResult{}, err
	}
	return stampResult{Found: count > 0}, nil
}

func (r *repositoryImpl) Totals(ctx context.Context) (*Analytics, error) {
	var out Analytics
	err := r.db.WithContext(ctx).
		Model(&models.RestockNotification{}).
		Select(`
			COALESCE(SUM(CASE WHEN sent_at IS NOT NULL THEN 1 ELSE 0 END), 0) AS sent,
			COALESCE(SUM(CASE WHEN opened_at IS NOT NULL THEN 1 ELSE 0 END), 0) AS opened,
			COALESCE(SUM(CASE WHEN clicked_at IS NOT NULL THEN 1 ELSE 0 END), 0) AS clicked,
			COALESCE(SUM(CASE WHEN purchased_at IS NOT NULL THEN 1 ELSE 0 END), 0) AS converted,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS failed`, enums.NotificationStatusFailed).
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *repositoryImpl) CountSentSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RestockNotification{}).
		Where("sent_at >= ?", since).
		Count(&count).Error
	return count, err
}

// PurgeFailedBefore deletes failed rows last touched before cutoff.
func (r *repositoryImpl) PurgeFailedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", enums.NotificationStatusFailed, cutoff).
		Delete(&models.RestockNotification{})
	return res.RowsAffected, res.Error
}
