package backorders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	WithRetryTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// stockReader supplies expected restock dates for new backorders and takes
// back allocated units when a processing order is cancelled.
type stockReader interface {
	GetStock(ctx context.Context, sku inventory.SKU) (*inventory.StockLevel, error)
	RestoreInventory(ctx context.Context, items []inventory.Item) (*inventory.RestoreResult, error)
}

// Service defines the backorder lifecycle and the fulfillment queue.
type Service interface {
	CreateBackorder(ctx context.Context, input CreateInput) (*CreateResult, error)
	GetBackorder(ctx context.Context, orderID uuid.UUID) (*Backorder, error)
	GetPendingBackorders(ctx context.Context, filter *QueueFilter, params pagination.Params) (*pagination.Page[Backorder], error)
	FulfillBackorders(ctx context.Context, sku inventory.SKU, availableQuantity int) (*FulfillResult, error)
	CancelBackorder(ctx context.Context, orderID uuid.UUID, reason string) (*CancelResult, error)
	Reprioritize(ctx context.Context, orderID uuid.UUID, priority int64) (*ReprioritizeResult, error)
	GetStats(ctx context.Context) (*Stats, error)
}

// ServiceParams wires the backorder service.
type ServiceParams struct {
	Repo            Repository
	Ledger          inventory.Repository
	Stock           stockReader
	Tx              txRunner
	Outbox          outboxPublisher
	Sequencer       PrioritySequencer
	Logger          *logger.Logger
	DefaultLeadTime time.Duration
	Now             func() time.Time
}

type service struct {
	repo      Repository
	ledger    inventory.Repository
	stock     stockReader
	tx        txRunner
	outbox    outboxPublisher
	sequencer PrioritySequencer
	logg      *logger.Logger
	leadTime  time.Duration
	now       func() time.Time
}

// NewService builds a backorder service with the required dependencies.
func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("backorders repository required")
	}
	if p.Ledger == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if p.Stock == nil {
		return nil, fmt.Errorf("stock reader required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.Sequencer == nil {
		p.Sequencer = NewClockSequencer()
	}
	if p.DefaultLeadTime <= 0 {
		p.DefaultLeadTime = 14 * 24 * time.Hour
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &service{
		repo:      p.Repo,
		ledger:    p.Ledger,
		stock:     p.Stock,
		tx:        p.Tx,
		outbox:    p.Outbox,
		sequencer: p.Sequencer,
		logg:      p.Logger,
		leadTime:  p.DefaultLeadTime,
		now:       func() time.Time { return p.Now().UTC() },
	}, nil
}

func (s *service) CreateBackorder(ctx context.Context, input CreateInput) (*CreateResult, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	expected, err := s.expectedFulfillment(ctx, input.Items)
	if err != nil {
		return nil, err
	}
	priority, err := s.sequencer.Next(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign backorder priority")
	}

	order := &models.Order{
		UserID:                  input.UserID,
		OrderType:               enums.OrderTypeBackorder,
		Status:                  enums.OrderStatusPending,
		TotalAmount:             input.TotalAmount,
		Currency:                strings.ToUpper(strings.TrimSpace(input.Currency)),
		PaymentReference:        input.PaymentReference,
		ExpectedFulfillmentDate: &expected,
		BackorderPriority:       priority,
		Shipping: models.ShippingAddress{
			Name:       strings.TrimSpace(input.Shipping.Name),
			Email:      input.Shipping.Email,
			Phone:      input.Shipping.Phone,
			Line1:      strings.TrimSpace(input.Shipping.Line1),
			Line2:      input.Shipping.Line2,
			City:       strings.TrimSpace(input.Shipping.City),
			State:      input.Shipping.State,
			PostalCode: strings.TrimSpace(input.Shipping.PostalCode),
			Country:    strings.TrimSpace(input.Shipping.Country),
		},
	}
	skus := make([]payloads.SKURef, 0, len(input.Items))
	for _, line := range input.Items {
		sku := inventory.NewSKU(line.ProductID, line.VariantID)
		order.Items = append(order.Items, models.OrderItem{
			ProductID: sku.ProductID,
			VariantID: sku.VariantID,
			Quantity:  line.Quantity,
			Size:      line.Size,
			Color:     line.Color,
			Price:     line.Price,
		})
		skus = append(skus, payloads.SKURef{ProductID: sku.ProductID, VariantID: sku.VariantID, Quantity: line.Quantity})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateOrder(ctx, order); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBackorderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID.String(),
			Actor:         &outbox.ActorRef{UserID: input.UserID},
			Data: payloads.BackorderCreatedEvent{
				OrderID:                 order.ID,
				UserID:                  input.UserID,
				Priority:                priority,
				ExpectedFulfillmentDate: order.ExpectedFulfillmentDate,
				SKUs:                    skus,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create backorder")
	}

	logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
		"user_id":  input.UserID.String(),
		"priority": priority,
	})
	s.logg.Info(logCtx, "backorder created")

	return &CreateResult{
		Success:                 true,
		OrderID:                 order.ID,
		Priority:                priority,
		ExpectedFulfillmentDate: order.ExpectedFulfillmentDate,
		Message:                 "backorder created",
	}, nil
}

// expectedFulfillment is the latest announced restock date among the order's
// SKUs, or now plus the default lead time when none is announced.
func (s *service) expectedFulfillment(ctx context.Context, lines []LineInput) (time.Time, error) {
	var latest time.Time
	seen := make(map[inventory.SKU]struct{}, len(lines))
	for _, line := range lines {
		sku := inventory.NewSKU(line.ProductID, line.VariantID)
		if _, ok := seen[sku]; ok {
			continue
		}
		seen[sku] = struct{}{}
		level, err := s.stock.GetStock(ctx, sku)
		if err != nil {
			return time.Time{}, err
		}
		if level.ExpectedRestockDate != nil && level.ExpectedRestockDate.After(latest) {
			latest = level.ExpectedRestockDate.UTC()
		}
	}
	if latest.IsZero() {
		return s.now().Add(s.leadTime), nil
	}
	return latest, nil
}

func validateCreate(input CreateInput) error {
	missing := []string{}
	if input.UserID == uuid.Nil {
		missing = append(missing, "userId")
	}
	if len(input.Items) == 0 {
		missing = append(missing, "items")
	}
	for i, line := range input.Items {
		if strings.TrimSpace(line.ProductID) == "" {
			missing = append(missing, fmt.Sprintf("items[%d].productId", i))
		}
		if line.Quantity <= 0 {
			missing = append(missing, fmt.Sprintf("items[%d].quantity", i))
		}
		if line.Price.IsNegative() {
			missing = append(missing, fmt.Sprintf("items[%d].price", i))
		}
	}
	if !input.TotalAmount.IsPositive() {
		missing = append(missing, "totalAmount")
	}
	if len(strings.TrimSpace(input.Currency)) != 3 {
		missing = append(missing, "currency")
	}
	required := map[string]string{
		"shipping.name":       input.Shipping.Name,
		"shipping.line1":      input.Shipping.Line1,
		"shipping.city":       input.Shipping.City,
		"shipping.postalCode": input.Shipping.PostalCode,
		"shipping.country":    input.Shipping.Country,
	}
	for _, field := range []string{"shipping.name", "shipping.line1", "shipping.city", "shipping.postalCode", "shipping.country"} {
		if strings.TrimSpace(required[field]) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "missing or invalid backorder fields").
			WithDetails(map[string]any{"fields": missing})
	}
	return nil
}

func (s *service) GetBackorder(ctx context.Context, orderID uuid.UUID) (*Backorder, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "backorder not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load backorder")
	}
	dto := toBackorder(*order)
	return &dto, nil
}

func (s *service) GetPendingBackorders(ctx context.Context, filter *QueueFilter, params pagination.Params) (*pagination.Page[Backorder], error) {
	if filter != nil {
		filter.ProductID = strings.TrimSpace(filter.ProductID)
		if filter.ProductID == "" && filter.VariantID != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "productId is required when variantId is set")
		}
	}
	orders, total, err := s.repo.ListOpen(ctx, filter, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending backorders")
	}
	items := make([]Backorder, 0, len(orders))
	for _, o := range orders {
		items = append(items, toBackorder(o))
	}
	page := pagination.NewPage(items, total, params)
	return &page, nil
}

// FulfillBackorders allocates up to availableQuantity units of the SKU to the
// queue in priority order. The ledger row is locked for the whole pass so
// concurrent passes for one SKU serialize, and allocation never exceeds what
// the ledger holds; a short ledger is reported through LedgerCapped. Orders
// whose need exceeds what is left are skipped whole. Each order is applied
// under a savepoint so a failed order is rolled back and reported without
// stopping the pass.
func (s *service) FulfillBackorders(ctx context.Context, sku inventory.SKU, availableQuantity int) (*FulfillResult, error) {
	sku = inventory.NewSKU(sku.ProductID, sku.VariantID)
	if err := sku.Validate(); err != nil {
		return nil, err
	}
	if availableQuantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "availableQuantity must be greater than zero")
	}

	ctx = s.logg.WithSKU(ctx, sku.ProductID, sku.VariantID)

	var result *FulfillResult
	err := s.tx.WithRetryTx(ctx, func(tx *gorm.DB) error {
		result = &FulfillResult{FulfilledOrders: []FulfilledOrder{}, RequestedQuantity: availableQuantity}
		ledger := s.ledger.WithTx(tx)
		repo := s.repo.WithTx(tx)

		row, err := ledger.Lock(ctx, sku)
		if err != nil {
			return err
		}
		usable := max(min(availableQuantity, row.AvailableQuantity), 0)
		result.UsableQuantity = usable
		result.LedgerCapped = usable < availableQuantity
		remaining := usable

		queue, err := repo.QueueForSKU(ctx, sku)
		if err != nil {
			return err
		}

		now := s.now()
		for idx, entry := range queue {
			if remaining == 0 {
				break
			}
			if entry.Needed > remaining {
				result.SkippedOrders = append(result.SkippedOrders, entry.OrderID)
				continue
			}

			savepoint := fmt.Sprintf("fulfill_%d", idx)
			if err := tx.SavePoint(savepoint).Error; err != nil {
				return err
			}
			status, err := s.allocate(ctx, tx, repo, entry, sku, now)
			if err != nil {
				if rbErr := tx.RollbackTo(savepoint).Error; rbErr != nil {
					return rbErr
				}
				s.logg.Error(s.logg.WithOrderID(ctx, entry.OrderID.String()), "backorder fulfillment failed", err)
				result.Failures = append(result.Failures, FulfillmentFailure{OrderID: entry.OrderID, Error: err.Error()})
				continue
			}
			remaining -= entry.Needed
			if status == enums.OrderStatusFulfilled {
				result.CompletedOrders = append(result.CompletedOrders, entry.OrderID)
			}
			result.FulfilledOrders = append(result.FulfilledOrders, FulfilledOrder{
				OrderID:  entry.OrderID,
				Quantity: entry.Needed,
				Status:   status,
			})
		}

		consumed := usable - remaining
		if consumed > 0 {
			ok, err := ledger.Decrement(ctx, sku, consumed)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("ledger for %s changed under lock", sku)
			}
		}
		result.RemainingQuantity = availableQuantity - consumed
		return nil
	})
	if err != nil {
		s.logg.Error(ctx, "backorder fulfillment pass failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fulfill backorders")
	}

	result.Success = true
	result.Message = fmt.Sprintf("fulfilled %d backorder(s); %d unit(s) remaining", len(result.FulfilledOrders), result.RemainingQuantity)
	if result.LedgerCapped {
		result.Message += fmt.Sprintf("; ledger holds only %d of %d requested unit(s)", result.UsableQuantity, availableQuantity)
	}
	if len(result.Failures) > 0 {
		result.Message += fmt.Sprintf("; %d order(s) failed", len(result.Failures))
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"fulfilled": len(result.FulfilledOrders),
		"skipped":   len(result.SkippedOrders),
		"failed":    len(result.Failures),
		"remaining": result.RemainingQuantity,
		"usable":    result.UsableQuantity,
	}), "backorder fulfillment pass complete")
	return result, nil
}

func (s *service) allocate(ctx context.Context, tx *gorm.DB, repo Repository, entry queueEntry, sku inventory.SKU, now time.Time) (enums.OrderStatus, error) {
	marked, err := repo.MarkLinesFulfilled(ctx, entry.OrderID, sku, now)
	if err != nil {
		return "", err
	}
	if marked == 0 {
		return "", fmt.Errorf("order %s has no open lines for %s", entry.OrderID, sku)
	}

	open, err := repo.CountOpenLines(ctx, entry.OrderID)
	if err != nil {
		return "", err
	}
	next := enums.OrderStatusProcessing
	extra := map[string]any{}
	event := enums.EventBackorderPartiallyFulfilled
	if open == 0 {
		next = enums.OrderStatusFulfilled
		extra["fulfilled_at"] = now
		event = enums.EventBackorderFulfilled
	}

	ok, err := repo.TransitionStatus(ctx, entry.OrderID, enums.OpenOrderStatuses, next, extra)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("order %s is no longer open", entry.OrderID)
	}

	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     event,
		AggregateType: enums.AggregateOrder,
		AggregateID:   entry.OrderID.String(),
		Data: payloads.BackorderFulfillmentEvent{
			OrderID:          entry.OrderID,
			ProductID:        sku.ProductID,
			VariantID:        sku.VariantID,
			QuantityAssigned: entry.Needed,
			Status:           next,
		},
	})
	if err != nil {
		return "", err
	}
	return next, nil
}

func (s *service) CancelBackorder(ctx context.Context, orderID uuid.UUID, reason string) (*CancelResult, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orderId is required")
	}
	ctx = s.logg.WithOrderID(ctx, orderID.String())
	reason = strings.TrimSpace(reason)

	var result *CancelResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(enums.OrderStatusCancelled) {
			result = &CancelResult{
				Success: false,
				Reason:  ReasonInvalidStateTransition,
				Status:  order.Status,
				Message: fmt.Sprintf("cannot cancel a %s backorder", order.Status),
			}
			return nil
		}

		extra := map[string]any{"cancelled_at": s.now()}
		if reason != "" {
			extra["cancel_reason"] = reason
		}
		ok, err := repo.TransitionStatus(ctx, orderID, enums.OpenOrderStatuses, enums.OrderStatusCancelled, extra)
		if err != nil {
			return err
		}
		if !ok {
			// Fulfilled or cancelled between the read and the update.
			current, err := repo.FindOrder(ctx, orderID)
			if err != nil {
				return err
			}
			result = &CancelResult{
				Success: false,
				Reason:  ReasonInvalidStateTransition,
				Status:  current.Status,
				Message: fmt.Sprintf("cannot cancel a %s backorder", current.Status),
			}
			return nil
		}

		allocated := []inventory.Item{}
		restored := []payloads.SKURef{}
		for _, it := range order.Items {
			if it.FulfilledAt == nil {
				continue
			}
			allocated = append(allocated, inventory.Item{ProductID: it.ProductID, VariantID: it.VariantID, Quantity: it.Quantity})
			restored = append(restored, payloads.SKURef{ProductID: it.ProductID, VariantID: it.VariantID, Quantity: it.Quantity})
		}
		result = &CancelResult{
			Success:        true,
			Status:         enums.OrderStatusCancelled,
			Message:        "backorder cancelled",
			AllocatedItems: allocated,
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBackorderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID.String(),
			Data: payloads.BackorderCancelledEvent{
				OrderID:        orderID,
				PreviousStatus: order.Status,
				Reason:         reason,
				Restored:       restored,
			},
		})
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "backorder not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel backorder")
	}

	if result.Success {
		s.releaseAllocated(ctx, result)
		s.logg.Info(s.logg.WithField(ctx, "allocated_lines", len(result.AllocatedItems)), "backorder cancelled")
	} else {
		s.logg.Warn(s.logg.WithField(ctx, "status", result.Status), "backorder cancel rejected")
	}
	return result, nil
}

// releaseAllocated returns the units of already allocated lines to the ledger
// once the cancel is committed. Failures are logged and reported on the
// result; the cancel itself stands.
func (s *service) releaseAllocated(ctx context.Context, result *CancelResult) {
	if len(result.AllocatedItems) == 0 {
		return
	}
	restore, err := s.stock.RestoreInventory(ctx, result.AllocatedItems)
	if err != nil {
		s.logg.Error(ctx, "restore of cancelled allocation failed", err)
		result.RestoreFailures = []inventory.RestoreFailure{{Error: err.Error()}}
		return
	}
	result.RestoredLines = restore.Restored
	result.RestoreFailures = restore.Failures
	if len(restore.Failures) > 0 {
		s.logg.Warn(s.logg.WithField(ctx, "failed_lines", len(restore.Failures)), "cancelled allocation partly restored")
	}
}

// Reprioritize sets an explicit queue rank. It changes ordering only; the
// stored creation priority and expected fulfillment date are untouched.
func (s *service) Reprioritize(ctx context.Context, orderID uuid.UUID, priority int64) (*ReprioritizeResult, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orderId is required")
	}

	var result *ReprioritizeResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.SetPriorityOverride(ctx, orderID, priority)
		if err != nil {
			return err
		}
		if !ok {
			order, err := repo.FindOrder(ctx, orderID)
			if err != nil {
				return err
			}
			result = &ReprioritizeResult{
				Success:  false,
				Reason:   ReasonInvalidStateTransition,
				Priority: order.EffectivePriority(),
				Message:  fmt.Sprintf("cannot reprioritize a %s backorder", order.Status),
			}
			return nil
		}
		result = &ReprioritizeResult{Success: true, Priority: priority, Message: "backorder reprioritized"}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBackorderReprioritized,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID.String(),
			Data:          payloads.BackorderReprioritizedEvent{OrderID: orderID, Priority: priority},
		})
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "backorder not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reprioritize backorder")
	}
	return result, nil
}

func (s *service) GetStats(ctx context.Context) (*Stats, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count backorders")
	}
	now := s.now()
	day, err := s.repo.CountFulfilledSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count fulfilled backorders")
	}
	week, err := s.repo.CountFulfilledSince(ctx, now.Add(-7*24*time.Hour))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count fulfilled backorders")
	}
	return &Stats{
		Pending:          counts[enums.OrderStatusPending],
		Processing:       counts[enums.OrderStatusProcessing],
		FulfilledLast24h: day,
		FulfilledLast7d:  week,
	}, nil
}
