package models

import "time"

// StockRecord is the ledger row for one SKU. VariantID is empty for products
// without variants so the composite key stays unique.
type StockRecord struct {
	ProductID           string     `gorm:"column:product_id;type:text;primaryKey"`
	VariantID           string     `gorm:"column:variant_id;type:text;primaryKey;default:''"`
	AvailableQuantity   int        `gorm:"column:available_quantity;not null;default:0;check:chk_stock_available_non_negative,available_quantity >= 0"`
	ReservedQuantity    int        `gorm:"column:reserved_quantity;not null;default:0;check:chk_stock_reserved_non_negative,reserved_quantity >= 0"`
	ExpectedRestockDate *time.Time `gorm:"column:expected_restock_date"`
	RestockCycle        int        `gorm:"column:restock_cycle;not null;default:0"`
	CreatedAt           time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (StockRecord) TableName() string { return "stock_records" }
