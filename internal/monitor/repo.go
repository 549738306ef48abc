package monitor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Repository persists announced restock schedules.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockPending(ctx context.Context, sku inventory.SKU) (*models.RestockSchedule, error)
	Create(ctx context.Context, schedule *models.RestockSchedule) error
	UpdateExpectedDate(ctx context.Context, id uuid.UUID, date time.Time) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.RestockSchedule, error)
	Transition(ctx context.Context, id uuid.UUID, to enums.RestockScheduleStatus, column string, at time.Time) (bool, error)
	FulfillPending(ctx context.Context, sku inventory.SKU, at time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[enums.RestockScheduleStatus]int64, error)
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

func (r *repository) pending(ctx context.Context, sku inventory.SKU) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.RestockSchedule{}).
		Where("product_id = ? AND variant_id = ? AND status = ?", sku.ProductID, sku.VariantID, enums.RestockSchedulePending)
}

// LockPending returns the pending schedule for the SKU, or nil when none.
func (r *repository) LockPending(ctx context.Context, sku inventory.SKU) (*models.RestockSchedule, error) {
	var rows []models.RestockSchedule
	err := r.pending(ctx, sku).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Limit(1).
		Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (r *repository) Create(ctx context.Context, schedule *models.RestockSchedule) error {
	return r.db.WithContext(ctx).Create(schedule).Error
}

func (r *repository) UpdateExpectedDate(ctx context.Context, id uuid.UUID, date time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.RestockSchedule{}).
		Where("id = ?", id).
		Update("expected_date", date).Error
}

func (r *repository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.RestockSchedule, error) {
	var rows []models.RestockSchedule
	err := r.db.WithContext(ctx).
		Where("status = ? AND expected_date < ?", enums.RestockSchedulePending, now).
		Order("expected_date ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Transition moves a pending schedule to a final status. It reports false when
// another worker already moved it.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, to enums.RestockScheduleStatus, column string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.RestockSchedule{}).
		Where("id = ? AND status = ?", id, enums.RestockSchedulePending).
		Updates(map[string]any{"status": to, column: at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) FulfillPending(ctx context.Context, sku inventory.SKU, at time.Time) (int64, error) {
	res := r.pending(ctx, sku).Updates(map[string]any{
		"status":       enums.RestockScheduleFulfilled,
		"fulfilled_at": at,
	})
	return res.RowsAffected, res.Error
}

func (r *repository) CountByStatus(ctx context.Context) (map[enums.RestockScheduleStatus]int64, error) {
	var rows []struct {
		Status enums.RestockScheduleStatus
		Total  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.RestockSchedule{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[enums.RestockScheduleStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}
