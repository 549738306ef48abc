package inventory

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository owns every write to stock_records.available_quantity.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, sku SKU) (*models.StockRecord, error)
	GetMany(ctx context.Context, skus []SKU) (map[SKU]models.StockRecord, error)
	Lock(ctx context.Context, sku SKU) (*models.StockRecord, error)
	Decrement(ctx context.Context, sku SKU, qty int) (bool, error)
	Increment(ctx context.Context, sku SKU, qty int) (*models.StockRecord, bool, error)
	Hold(ctx context.Context, sku SKU, qty int) (bool, error)
	ReleaseHold(ctx context.Context, sku SKU, qty int) (bool, error)
	ConsumeHold(ctx context.Context, sku SKU, qty int) (bool, error)
	SetExpectedRestockDate(ctx context.Context, sku SKU, date *time.Time) error
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

// cycleBump advances restock_cycle whenever available goes from zero to
// positive. It must be evaluated against the pre-update row.
const cycleBump = "CASE WHEN stock_records.available_quantity = 0 THEN stock_records.restock_cycle + 1 ELSE stock_records.restock_cycle END"

func skuScope(sku SKU) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("product_id = ? AND variant_id = ?", sku.ProductID, sku.VariantID)
	}
}

// Get returns gorm.ErrRecordNotFound when the SKU has no ledger row.
func (r *repository) Get(ctx context.Context, sku SKU) (*models.StockRecord, error) {
	var rec models.StockRecord
	if err := r.db.WithContext(ctx).Scopes(skuScope(sku)).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *repository) GetMany(ctx context.Context, skus []SKU) (map[SKU]models.StockRecord, error) {
	out := make(map[SKU]models.StockRecord, len(skus))
	if len(skus) == 0 {
		return out, nil
	}
	productIDs := make([]string, 0, len(skus))
	seen := map[string]struct{}{}
	for _, sku := range skus {
		if _, ok := seen[sku.ProductID]; ok {
			continue
		}
		seen[sku.ProductID] = struct{}{}
		productIDs = append(productIDs, sku.ProductID)
	}

	var rows []models.StockRecord
	if err := r.db.WithContext(ctx).Where("product_id IN ?", productIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[SKU{ProductID: row.ProductID, VariantID: row.VariantID}] = row
	}
	return out, nil
}

// Lock reads the row FOR UPDATE. A missing row is returned as a zero record
// so callers can treat it as no stock.
func (r *repository) Lock(ctx context.Context, sku SKU) (*models.StockRecord, error) {
	var rec models.StockRecord
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(skuScope(sku)).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.StockRecord{ProductID: sku.ProductID, VariantID: sku.VariantID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Decrement subtracts qty only when it is fully covered. It reports false and
// changes nothing otherwise.
func (r *repository) Decrement(ctx context.Context, sku SKU, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.StockRecord{}).
		Scopes(skuScope(sku)).
		Where("available_quantity >= ?", qty).
		Updates(map[string]any{
			"available_quantity": gorm.Expr("available_quantity - ?", qty),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Increment adds qty, creating the row when needed, and reports whether the
// change opened a new restock cycle.
func (r *repository) Increment(ctx context.Context, sku SKU, qty int) (*models.StockRecord, bool, error) {
	db := r.db.WithContext(ctx)

	prev, err := r.Lock(ctx, sku)
	if err != nil {
		return nil, false, err
	}

	row := models.StockRecord{
		ProductID:         sku.ProductID,
		VariantID:         sku.VariantID,
		AvailableQuantity: qty,
		RestockCycle:      1,
	}
	err = db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "product_id"}, {Name: "variant_id"}},
		DoUpdates: clause.Set{
			{Column: clause.Column{Name: "restock_cycle"}, Value: gorm.Expr(cycleBump)},
			{Column: clause.Column{Name: "available_quantity"}, Value: gorm.Expr("stock_records.available_quantity + ?", qty)},
			{Column: clause.Column{Name: "updated_at"}, Value: time.Now().UTC()},
		},
	}).Create(&row).Error
	if err != nil {
		return nil, false, err
	}

	after, err := r.Get(ctx, sku)
	if err != nil {
		return nil, false, err
	}
	return after, prev.AvailableQuantity == 0 && after.AvailableQuantity > 0, nil
}

// Hold moves qty from available to reserved.
func (r *repository) Hold(ctx context.Context, sku SKU, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.StockRecord{}).
		Scopes(skuScope(sku)).
		Where("available_quantity >= ?", qty).
		Updates(map[string]any{
			"available_quantity": gorm.Expr("available_quantity - ?", qty),
			"reserved_quantity":  gorm.Expr("reserved_quantity + ?", qty),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReleaseHold returns held qty to available.
func (r *repository) ReleaseHold(ctx context.Context, sku SKU, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.StockRecord{}).
		Scopes(skuScope(sku)).
		Where("reserved_quantity >= ?", qty).
		Updates(map[string]any{
			"restock_cycle":      gorm.Expr(cycleBump),
			"available_quantity": gorm.Expr("available_quantity + ?", qty),
			"reserved_quantity":  gorm.Expr("reserved_quantity - ?", qty),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ConsumeHold drops held qty once the order it was held for is paid.
func (r *repository) ConsumeHold(ctx context.Context, sku SKU, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.StockRecord{}).
		Scopes(skuScope(sku)).
		Where("reserved_quantity >= ?", qty).
		Updates(map[string]any{
			"reserved_quantity": gorm.Expr("reserved_quantity - ?", qty),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) SetExpectedRestockDate(ctx context.Context, sku SKU, date *time.Time) error {
	row := models.StockRecord{
		ProductID:           sku.ProductID,
		VariantID:           sku.VariantID,
		ExpectedRestockDate: date,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "product_id"}, {Name: "variant_id"}},
		DoUpdates: clause.Set{
			{Column: clause.Column{Name: "expected_restock_date"}, Value: date},
			{Column: clause.Column{Name: "updated_at"}, Value: time.Now().UTC()},
		},
	}).Create(&row).Error
}
