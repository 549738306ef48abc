package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	WithRetryTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service exposes atomic operations over the stock ledger.
type Service interface {
	CheckStock(ctx context.Context, items []Item) ([]StockStatus, error)
	ReserveAndDecrement(ctx context.Context, items []Item) (*ReserveResult, error)
	RestoreInventory(ctx context.Context, items []Item) (*RestoreResult, error)
	Restock(ctx context.Context, sku SKU, quantity int) (*RestockResult, error)
	GetStock(ctx context.Context, sku SKU) (*StockLevel, error)
	HoldStock(ctx context.Context, items []Item) (*ReserveResult, error)
	ReleaseHold(ctx context.Context, items []Item) error
	CommitHold(ctx context.Context, items []Item) error
	// SetExpectedRestockDate stamps the ledger row; tx may be nil.
	SetExpectedRestockDate(ctx context.Context, tx *gorm.DB, sku SKU, date *time.Time) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
}

// NewService builds the inventory service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, outbox: outbox, logg: logg}, nil
}

func (s *service) CheckStock(ctx context.Context, items []Item) ([]StockStatus, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}

	skus := make([]SKU, 0, len(items))
	for _, item := range items {
		skus = append(skus, item.SKU())
	}
	rows, err := s.repo.GetMany(ctx, skus)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read stock ledger")
	}

	out := make([]StockStatus, 0, len(items))
	for _, item := range items {
		current := rows[item.SKU()].AvailableQuantity
		out = append(out, StockStatus{
			ProductID:    item.ProductID,
			VariantID:    item.VariantID,
			Available:    current >= item.Quantity,
			CurrentStock: current,
		})
	}
	return out, nil
}

// errShortage aborts the reservation transaction; it never leaves the package.
var errShortage = errors.New("insufficient stock")

func (s *service) ReserveAndDecrement(ctx context.Context, items []Item) (*ReserveResult, error) {
	return s.reserve(ctx, items, func(repo Repository, sku SKU, qty int) (bool, error) {
		return repo.Decrement(ctx, sku, qty)
	}, "inventory reserved")
}

// HoldStock moves stock into reserved_quantity for an in-flight checkout.
func (s *service) HoldStock(ctx context.Context, items []Item) (*ReserveResult, error) {
	return s.reserve(ctx, items, func(repo Repository, sku SKU, qty int) (bool, error) {
		return repo.Hold(ctx, sku, qty)
	}, "inventory held")
}

func (s *service) reserve(ctx context.Context, items []Item, take func(Repository, SKU, int) (bool, error), okMessage string) (*ReserveResult, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}
	lines := aggregate(items)

	var shortage *Shortage
	err := s.tx.WithRetryTx(ctx, func(tx *gorm.DB) error {
		shortage = nil
		repo := s.repo.WithTx(tx)
		for _, line := range lines {
			ok, err := take(repo, line.sku, line.quantity)
			if err != nil {
				return err
			}
			if ok {
				continue
			}
			current := 0
			rec, err := repo.Get(ctx, line.sku)
			switch {
			case err == nil:
				current = rec.AvailableQuantity
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}
			shortage = &Shortage{
				ProductID: line.sku.ProductID,
				VariantID: line.sku.VariantID,
				Requested: line.quantity,
				Available: current,
			}
			return errShortage
		}
		return nil
	})

	if errors.Is(err, errShortage) && shortage != nil {
		logCtx := s.logg.WithSKU(ctx, shortage.ProductID, shortage.VariantID)
		s.logg.Info(logCtx, "reservation rejected: insufficient stock")
		return &ReserveResult{
			Success:  false,
			Reason:   ReasonInsufficientStock,
			Message:  fmt.Sprintf("insufficient stock for %s: requested %d, available %d", NewSKU(shortage.ProductID, shortage.VariantID), shortage.Requested, shortage.Available),
			Shortage: shortage,
		}, nil
	}
	if err != nil {
		s.logg.Error(ctx, "reservation failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve inventory")
	}
	return &ReserveResult{Success: true, Message: okMessage}, nil
}

// RestoreInventory returns quantities line by line. A failing line never
// blocks the others; failures are logged and returned for reconciliation.
func (s *service) RestoreInventory(ctx context.Context, items []Item) (*RestoreResult, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}

	result := &RestoreResult{Success: true}
	for _, item := range items {
		sku := item.SKU()
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			_, _, err := s.repo.WithTx(tx).Increment(ctx, sku, item.Quantity)
			return err
		})
		if err != nil {
			logCtx := s.logg.WithFields(s.logg.WithSKU(ctx, sku.ProductID, sku.VariantID), map[string]any{"quantity": item.Quantity})
			s.logg.Error(logCtx, "inventory restore failed; needs reconciliation", err)
			result.Success = false
			result.Failures = append(result.Failures, RestoreFailure{
				ProductID: sku.ProductID,
				VariantID: sku.VariantID,
				Quantity:  item.Quantity,
				Error:     err.Error(),
			})
			continue
		}
		result.Restored++
	}
	return result, nil
}

func (s *service) Restock(ctx context.Context, sku SKU, quantity int) (*RestockResult, error) {
	sku = NewSKU(sku.ProductID, sku.VariantID)
	if err := sku.Validate(); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}

	var result *RestockResult
	err := s.tx.WithRetryTx(ctx, func(tx *gorm.DB) error {
		row, started, err := s.repo.WithTx(tx).Increment(ctx, sku, quantity)
		if err != nil {
			return err
		}
		result = &RestockResult{
			SKU:          sku,
			Quantity:     quantity,
			Available:    row.AvailableQuantity,
			RestockCycle: row.RestockCycle,
			CycleStarted: started,
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockRestocked,
			AggregateType: enums.AggregateStock,
			AggregateID:   sku.String(),
			Data: payloads.StockRestockedEvent{
				ProductID:    sku.ProductID,
				VariantID:    sku.VariantID,
				Quantity:     quantity,
				Available:    row.AvailableQuantity,
				RestockCycle: row.RestockCycle,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restock inventory")
	}

	logCtx := s.logg.WithFields(s.logg.WithSKU(ctx, sku.ProductID, sku.VariantID), map[string]any{
		"quantity":      quantity,
		"available":     result.Available,
		"restock_cycle": result.RestockCycle,
	})
	s.logg.Info(logCtx, "stock received")
	return result, nil
}

func (s *service) GetStock(ctx context.Context, sku SKU) (*StockLevel, error) {
	sku = NewSKU(sku.ProductID, sku.VariantID)
	if err := sku.Validate(); err != nil {
		return nil, err
	}
	rec, err := s.repo.Get(ctx, sku)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &StockLevel{SKU: sku}, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read stock ledger")
	}
	return &StockLevel{
		SKU:                 sku,
		Available:           rec.AvailableQuantity,
		Reserved:            rec.ReservedQuantity,
		ExpectedRestockDate: rec.ExpectedRestockDate,
		RestockCycle:        rec.RestockCycle,
	}, nil
}

func (s *service) ReleaseHold(ctx context.Context, items []Item) error {
	return s.settleHold(ctx, items, func(repo Repository, sku SKU, qty int) (bool, error) {
		return repo.ReleaseHold(ctx, sku, qty)
	})
}

func (s *service) CommitHold(ctx context.Context, items []Item) error {
	return s.settleHold(ctx, items, func(repo Repository, sku SKU, qty int) (bool, error) {
		return repo.ConsumeHold(ctx, sku, qty)
	})
}

func (s *service) settleHold(ctx context.Context, items []Item, apply func(Repository, SKU, int) (bool, error)) error {
	if err := validateItems(items); err != nil {
		return err
	}
	lines := aggregate(items)
	return s.tx.WithRetryTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for _, line := range lines {
			ok, err := apply(repo, line.sku, line.quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update held stock")
			}
			if !ok {
				return pkgerrors.Newf(pkgerrors.CodeConflict, "held quantity for %s is lower than %d", line.sku, line.quantity)
			}
		}
		return nil
	})
}

func (s *service) SetExpectedRestockDate(ctx context.Context, tx *gorm.DB, sku SKU, date *time.Time) error {
	sku = NewSKU(sku.ProductID, sku.VariantID)
	if err := sku.Validate(); err != nil {
		return err
	}
	if err := s.repo.WithTx(tx).SetExpectedRestockDate(ctx, sku, date); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update expected restock date")
	}
	return nil
}
