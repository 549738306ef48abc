package outbox

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// DLQRepository stores outbox rows the publisher gave up on.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// Insert must run in the same transaction that deletes the source row, so an
// event is never in both tables or in neither.
func (r *DLQRepository) Insert(ctx context.Context, tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("dead letter insert requires a transaction")
	}
	if entry.ErrorMessage != nil {
		entry.ErrorMessage = clip(*entry.ErrorMessage)
	}
	return tx.WithContext(ctx).Create(&entry).Error
}

// CountRetryable reports dead letters whose failure a later replay may clear.
func (r *DLQRepository) CountRetryable(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.OutboxDLQ{}).
		Where("error_reason = ?", enums.OutboxDLQReasonMaxAttempts).
		Count(&n).Error
	return n, err
}
