package backorders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// queueEntry is one order waiting on a SKU and the quantity it still needs.
type queueEntry struct {
	OrderID           uuid.UUID `gorm:"column:id"`
	BackorderPriority int64     `gorm:"column:backorder_priority"`
	PriorityOverride  *int64    `gorm:"column:priority_override"`
	Needed            int       `gorm:"column:needed"`
}

// Repository defines persistence operations for backorders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListOpen(ctx context.Context, filter *QueueFilter, params pagination.Params) ([]models.Order, int64, error)
	QueueForSKU(ctx context.Context, sku inventory.SKU) ([]queueEntry, error)
	MarkLinesFulfilled(ctx context.Context, orderID uuid.UUID, sku inventory.SKU, at time.Time) (int64, error)
	CountOpenLines(ctx context.Context, orderID uuid.UUID) (int64, error)
	TransitionStatus(ctx context.Context, orderID uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus, extra map[string]any) (bool, error)
	SetPriorityOverride(ctx context.Context, orderID uuid.UUID, priority int64) (bool, error)
	CountByStatus(ctx context.Context) (map[enums.OrderStatus]int64, error)
	CountFulfilledSince(ctx context.Context, since time.Time) (int64, error)
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

func (r *repository) backorders(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Order{}).Where("orders.order_type = ?", enums.OrderTypeBackorder)
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.backorders(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC").Order("id ASC") }).
		Where("orders.id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

const effectivePriority = "COALESCE(orders.priority_override, orders.backorder_priority)"

func (r *repository) ListOpen(ctx context.Context, filter *QueueFilter, params pagination.Params) ([]models.Order, int64, error) {
	params = params.Normalize()
	q := r.backorders(ctx).Where("orders.status IN ?", enums.OpenOrderStatuses)
	if filter != nil && filter.ProductID != "" {
		if filter.VariantID != nil {
			q = q.Where(`EXISTS (SELECT 1 FROM order_items i WHERE i.order_id = orders.id
				AND i.product_id = ? AND i.variant_id = ? AND i.fulfilled_at IS NULL)`, filter.ProductID, *filter.VariantID)
		} else {
			q = q.Where(`EXISTS (SELECT 1 FROM order_items i WHERE i.order_id = orders.id
				AND i.product_id = ? AND i.fulfilled_at IS NULL)`, filter.ProductID)
		}
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err := q.Session(&gorm.Session{}).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC").Order("id ASC") }).
		Order(effectivePriority + " ASC").
		Order("orders.created_at ASC").
		Order("orders.id ASC").
		Limit(params.Limit).
		Offset(params.Offset()).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// QueueForSKU returns open backorders that still need the SKU, in strict
// priority order with creation time as the tie-break.
func (r *repository) QueueForSKU(ctx context.Context, sku inventory.SKU) ([]queueEntry, error) {
	var entries []queueEntry
	err := r.db.WithContext(ctx).Raw(`
		SELECT o.id, o.backorder_priority, o.priority_override, SUM(i.quantity) AS needed
		FROM orders o
		JOIN order_items i ON i.order_id = o.id
		WHERE o.order_type = ?
		  AND o.status IN ?
		  AND i.product_id = ?
		  AND i.variant_id = ?
		  AND i.fulfilled_at IS NULL
		GROUP BY o.id, o.backorder_priority, o.priority_override, o.created_at
		ORDER BY COALESCE(o.priority_override, o.backorder_priority) ASC, o.created_at ASC, o.id ASC`,
		enums.OrderTypeBackorder, enums.OpenOrderStatuses, sku.ProductID, sku.VariantID,
	).Scan(&entries).Error
	return entries, err
}

func (r *repository) MarkLinesFulfilled(ctx context.Context, orderID uuid.UUID, sku inventory.SKU, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("order_id = ? AND product_id = ? AND variant_id = ? AND fulfilled_at IS NULL", orderID, sku.ProductID, sku.VariantID).
		Update("fulfilled_at", at)
	return res.RowsAffected, res.Error
}

func (r *repository) CountOpenLines(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("order_id = ? AND fulfilled_at IS NULL", orderID).
		Count(&count).Error
	return count, err
}

// TransitionStatus applies the change only while the order is still in one of
// the from statuses and reports whether it did.
func (r *repository) TransitionStatus(ctx context.Context, orderID uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus, extra map[string]any) (bool, error) {
	updates := map[string]any{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	res := r.backorders(ctx).
		Where("orders.id = ? AND orders.status IN ?", orderID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) SetPriorityOverride(ctx context.Context, orderID uuid.UUID, priority int64) (bool, error) {
	res := r.backorders(ctx).
		Where("orders.id = ? AND orders.status IN ?", orderID, enums.OpenOrderStatuses).
		Update("priority_override", priority)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CountByStatus(ctx context.Context) (map[enums.OrderStatus]int64, error) {
	var rows []struct {
		Status enums.OrderStatus
		Total  int64
	}
	err := r.backorders(ctx).
		Select("orders.status AS status, COUNT(*) AS total").
		Group("orders.status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[enums.OrderStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}

func (r *repository) CountFulfilledSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.backorders(ctx).
		Where("orders.status = ? AND orders.fulfilled_at >= ?", enums.OrderStatusFulfilled, since).
		Count(&count).Error
	return count, err
}
