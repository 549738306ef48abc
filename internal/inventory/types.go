package inventory

import (
	"sort"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// SKU identifies a sellable unit. VariantID is empty for products sold
// without variants.
type SKU struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
}

func NewSKU(productID, variantID string) SKU {
	return SKU{ProductID: strings.TrimSpace(productID), VariantID: strings.TrimSpace(variantID)}
}

func (s SKU) String() string {
	if s.VariantID == "" {
		return s.ProductID
	}
	return s.ProductID + ":" + s.VariantID
}

func (s SKU) less(other SKU) bool {
	if s.ProductID != other.ProductID {
		return s.ProductID < other.ProductID
	}
	return s.VariantID < other.VariantID
}

// Validate rejects SKUs without a product.
func (s SKU) Validate() error {
	if s.ProductID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
	}
	return nil
}

// Item is a requested quantity of one SKU.
type Item struct {
	ProductID string `json:"productId" validate:"required"`
	VariantID string `json:"variantId,omitempty"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

func (i Item) SKU() SKU {
	return NewSKU(i.ProductID, i.VariantID)
}

// StockStatus answers a stock check for one item.
type StockStatus struct {
	ProductID    string `json:"productId"`
	VariantID    string `json:"variantId,omitempty"`
	Available    bool   `json:"available"`
	CurrentStock int    `json:"currentStock"`
}

// StockLevel is a read model of one ledger row.
type StockLevel struct {
	SKU
	Available           int        `json:"available"`
	Reserved            int        `json:"reserved"`
	ExpectedRestockDate *time.Time `json:"expectedRestockDate,omitempty"`
	RestockCycle        int        `json:"restockCycle"`
}

const ReasonInsufficientStock = "insufficient_stock"

// Shortage names the SKU that could not be covered.
type Shortage struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// ReserveResult reports a reservation. A shortage is a business outcome, not
// an error: Success is false and nothing was decremented.
type ReserveResult struct {
	Success  bool      `json:"success"`
	Message  string    `json:"message"`
	Reason   string    `json:"reason,omitempty"`
	Shortage *Shortage `json:"shortage,omitempty"`
}

// RestoreFailure is one line that could not be returned to the ledger and
// needs out-of-band reconciliation.
type RestoreFailure struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	Quantity  int    `json:"quantity"`
	Error     string `json:"error"`
}

type RestoreResult struct {
	Success  bool             `json:"success"`
	Restored int              `json:"restored"`
	Failures []RestoreFailure `json:"failures,omitempty"`
}

// RestockResult reports the ledger after stock was received.
type RestockResult struct {
	SKU
	Quantity     int  `json:"quantity"`
	Available    int  `json:"available"`
	RestockCycle int  `json:"restockCycle"`
	CycleStarted bool `json:"cycleStarted"`
}

func validateItems(items []Item) error {
	if len(items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	for idx, item := range items {
		if strings.TrimSpace(item.ProductID) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "productId is required").
				WithDetails(map[string]any{"index": idx})
		}
		if item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero").
				WithDetails(map[string]any{"index": idx, "productId": item.ProductID})
		}
	}
	return nil
}

type skuQuantity struct {
	sku      SKU
	quantity int
}

// aggregate merges duplicate SKUs and sorts them so that concurrent batches
// touch ledger rows in the same order.
func aggregate(items []Item) []skuQuantity {
	totals := make(map[SKU]int, len(items))
	for _, item := range items {
		totals[item.SKU()] += item.Quantity
	}
	out := make([]skuQuantity, 0, len(totals))
	for sku, qty := range totals {
		out = append(out, skuQuantity{sku: sku, quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].sku.less(out[j].sku) })
	return out
}
