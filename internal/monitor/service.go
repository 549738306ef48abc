package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/backorders"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/waitlist"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

const expirySweepBatch = 500

// Service orchestrates restock handling across the ledger, the backorder
// queue and the waitlist.
type Service interface {
	TriggerRestockProcessing(ctx context.Context, sku inventory.SKU, newStock int) (*TriggerResult, error)
	ReceiveStock(ctx context.Context, sku inventory.SKU, quantity int) (*TriggerResult, error)
	SetExpectedRestockDate(ctx context.Context, sku inventory.SKU, date time.Time) (*Schedule, error)
	ProcessExpiredRestockDates(ctx context.Context) (*ExpiryResult, error)
	GetMonitoringStats(ctx context.Context) (*Stats, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type restockRecorder interface {
	ObserveRestock(success bool)
	AddFulfillment(fulfilled, skipped int)
	AddExpired(n int)
}

// ServiceParams wires the monitor.
type ServiceParams struct {
	Repo           Repository
	Inventory      inventory.Service
	Backorders     backorders.Service
	Waitlist       waitlist.Service
	Notifications  notifications.Service
	Tx             txRunner
	Outbox         outboxPublisher
	Metrics        restockRecorder
	Logger         *logger.Logger
	NotifyOnExpiry bool
	Now            func() time.Time
}

type service struct {
	repo           Repository
	inventory      inventory.Service
	backorders     backorders.Service
	waitlist       waitlist.Service
	notifications  notifications.Service
	tx             txRunner
	outbox         outboxPublisher
	metrics        restockRecorder
	logg           *logger.Logger
	notifyOnExpiry bool
	now            func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.Repo == nil:
		return nil, fmt.Errorf("restock schedule repository required")
	case p.Inventory == nil:
		return nil, fmt.Errorf("inventory service required")
	case p.Backorders == nil:
		return nil, fmt.Errorf("backorder service required")
	case p.Waitlist == nil:
		return nil, fmt.Errorf("waitlist service required")
	case p.Notifications == nil:
		return nil, fmt.Errorf("notification service required")
	case p.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case p.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case p.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &service{
		repo:           p.Repo,
		inventory:      p.Inventory,
		backorders:     p.Backorders,
		waitlist:       p.Waitlist,
		notifications:  p.Notifications,
		tx:             p.Tx,
		outbox:         p.Outbox,
		metrics:        p.Metrics,
		logg:           p.Logger,
		notifyOnExpiry: p.NotifyOnExpiry,
		now:            func() time.Time { return p.Now().UTC() },
	}, nil
}

// TriggerRestockProcessing hands newStock to the backorder queue first and
// announces whatever is left to the waitlist. Waitlist mail is keyed by the
// ledger's restock cycle, so repeating the call for the same restock sends
// nothing new.
func (s *service) TriggerRestockProcessing(ctx context.Context, sku inventory.SKU, newStock int) (*TriggerResult, error) {
	sku = inventory.NewSKU(sku.ProductID, sku.VariantID)
	if err := sku.Validate(); err != nil {
		return nil, err
	}
	if newStock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "newStock must not be negative")
	}
	if newStock == 0 {
		return &TriggerResult{Success: true, FulfilledOrders: []uuid.UUID{}, Message: "no new stock to process"}, nil
	}

	ctx = s.logg.WithSKU(ctx, sku.ProductID, sku.VariantID)
	result, err := s.processRestock(ctx, sku, newStock)
	if s.metrics != nil {
		s.metrics.ObserveRestock(err == nil)
	}
	if err != nil {
		s.logg.Error(ctx, "restock processing failed", err)
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"new_stock":          newStock,
		"fulfilled":          result.BackordersFulfilled,
		"notifications_sent": result.NotificationsSent,
		"remaining":          result.RemainingQuantity,
	}), "restock processed")
	return result, nil
}

func (s *service) processRestock(ctx context.Context, sku inventory.SKU, newStock int) (*TriggerResult, error) {
	fulfill, err := s.backorders.FulfillBackorders(ctx, sku, newStock)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.AddFulfillment(len(fulfill.FulfilledOrders), len(fulfill.SkippedOrders))
	}

	result := &TriggerResult{
		Success:             true,
		BackordersFulfilled: len(fulfill.FulfilledOrders),
		FulfilledOrders:     fulfill.FulfilledOrderIDs(),
		RemainingQuantity:   fulfill.UnusedStock(),
	}

	if result.RemainingQuantity > 0 {
		level, err := s.inventory.GetStock(ctx, sku)
		if err != nil {
			return nil, err
		}
		result.RestockCycle = level.RestockCycle
		subs, err := s.waitlist.GetProductSubscriptions(ctx, sku.ProductID, sku.VariantID)
		if err != nil {
			return nil, err
		}
		if len(subs) > 0 {
			dispatch, err := s.notifications.SendRestockNotifications(ctx, subs, notifications.ProductRef{
				ProductID:    sku.ProductID,
				VariantID:    sku.VariantID,
				RestockCycle: level.RestockCycle,
			})
			if err != nil {
				return nil, err
			}
			result.NotificationsSent = dispatch.Sent
		}
	}

	if _, err := s.repo.FulfillPending(ctx, sku, s.now()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close restock schedule")
	}

	result.Message = fmt.Sprintf("fulfilled %d backorder(s), sent %d notification(s), %d unit(s) remaining",
		result.BackordersFulfilled, result.NotificationsSent, result.RemainingQuantity)
	return result, nil
}

// ReceiveStock books received units on the ledger and then runs restock
// processing for them.
func (s *service) ReceiveStock(ctx context.Context, sku inventory.SKU, quantity int) (*TriggerResult, error) {
	restock, err := s.inventory.Restock(ctx, sku, quantity)
	if err != nil {
		return nil, err
	}
	return s.TriggerRestockProcessing(ctx, restock.SKU, quantity)
}

func (s *service) SetExpectedRestockDate(ctx context.Context, sku inventory.SKU, date time.Time) (*Schedule, error) {
	sku = inventory.NewSKU(sku.ProductID, sku.VariantID)
	if err := sku.Validate(); err != nil {
		return nil, err
	}
	date = date.UTC()
	if !date.After(s.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "expectedDate must be in the future")
	}

	var schedule *models.RestockSchedule
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.LockPending(ctx, sku)
		if err != nil {
			return err
		}
		if existing != nil {
			if err := repo.UpdateExpectedDate(ctx, existing.ID, date); err != nil {
				return err
			}
			existing.ExpectedDate = date
			schedule = existing
		} else {
			schedule = &models.RestockSchedule{
				ProductID:    sku.ProductID,
				VariantID:    sku.VariantID,
				ExpectedDate: date,
				Status:       enums.RestockSchedulePending,
			}
			if err := repo.Create(ctx, schedule); err != nil {
				return err
			}
		}
		return s.inventory.SetExpectedRestockDate(ctx, tx, sku, &date)
	})
	if db.IsUniqueViolation(err, "uq_restock_schedule_pending") {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "restock schedule changed concurrently; retry")
	}
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set expected restock date")
	}

	s.logg.Info(s.logg.WithField(s.logg.WithSKU(ctx, sku.ProductID, sku.VariantID), "expected_date", date), "expected restock date set")
	return &Schedule{
		ID:           schedule.ID,
		ProductID:    schedule.ProductID,
		VariantID:    schedule.VariantID,
		ExpectedDate: schedule.ExpectedDate,
		Status:       schedule.Status,
	}, nil
}

// ProcessExpiredRestockDates expires lapsed schedules one by one. A failing
// schedule is reported and the sweep moves on.
func (s *service) ProcessExpiredRestockDates(ctx context.Context) (*ExpiryResult, error) {
	now := s.now()
	due, err := s.repo.ListDue(ctx, now, expirySweepBatch)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired restock schedules")
	}

	result := &ExpiryResult{}
	var errs error
	for _, schedule := range due {
		expired, sent, err := s.expireOne(ctx, schedule, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("schedule %s: %w", schedule.ID, err))
		}
		if expired {
			result.ExpiredCount++
		}
		result.NotificationsSent += sent
	}
	if s.metrics != nil {
		s.metrics.AddExpired(result.ExpiredCount)
	}

	for _, e := range multierr.Errors(errs) {
		result.Failures = append(result.Failures, e.Error())
	}
	result.Success = errs == nil
	result.Message = fmt.Sprintf("expired %d schedule(s), sent %d delay notification(s)", result.ExpiredCount, result.NotificationsSent)
	if errs != nil {
		s.logg.Error(s.logg.WithField(ctx, "failures", len(result.Failures)), "restock expiry sweep had failures", errs)
	} else {
		s.logg.Info(s.logg.WithField(ctx, "expired", result.ExpiredCount), "restock expiry sweep complete")
	}
	return result, nil
}

func (s *service) expireOne(ctx context.Context, schedule models.RestockSchedule, now time.Time) (bool, int, error) {
	sku := inventory.NewSKU(schedule.ProductID, schedule.VariantID)
	ctx = s.logg.WithSKU(ctx, sku.ProductID, sku.VariantID)

	claimed := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).Transition(ctx, schedule.ID, enums.RestockScheduleExpired, "expired_at", now)
		if err != nil || !ok {
			return err
		}
		claimed = true
		if err := s.inventory.SetExpectedRestockDate(ctx, tx, sku, nil); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRestockDateExpired,
			AggregateType: enums.AggregateSchedule,
			AggregateID:   schedule.ID.String(),
			Data: payloads.RestockDateExpiredEvent{
				ScheduleID:   schedule.ID,
				ProductID:    sku.ProductID,
				VariantID:    sku.VariantID,
				ExpectedDate: schedule.ExpectedDate,
			},
		})
	})
	if err != nil {
		return false, 0, err
	}
	if !claimed || !s.notifyOnExpiry {
		return claimed, 0, nil
	}

	subs, err := s.waitlist.GetProductSubscriptions(ctx, sku.ProductID, sku.VariantID)
	if err != nil {
		return true, 0, err
	}
	if len(subs) == 0 {
		return true, 0, nil
	}
	dispatch, err := s.notifications.SendRestockDelayedNotifications(ctx, subs,
		notifications.ProductRef{ProductID: sku.ProductID, VariantID: sku.VariantID},
		notifications.ScheduleRef{ID: schedule.ID, ExpectedDate: schedule.ExpectedDate},
	)
	if err != nil {
		return true, 0, err
	}
	return true, dispatch.Sent, nil
}

func (s *service) GetMonitoringStats(ctx context.Context) (*Stats, error) {
	schedules, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count restock schedules")
	}
	queue, err := s.backorders.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	sent, err := s.notifications.CountSentSince(ctx, s.now().Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	return &Stats{
		PendingSchedules:         schedules[enums.RestockSchedulePending],
		ExpiredSchedules:         schedules[enums.RestockScheduleExpired],
		FulfilledSchedules:       schedules[enums.RestockScheduleFulfilled],
		PendingBackorders:        queue.Pending,
		ProcessingBackorders:     queue.Processing,
		FulfilledLast24h:         queue.FulfilledLast24h,
		FulfilledLast7d:          queue.FulfilledLast7d,
		NotificationsSentLast24h: sent,
	}, nil
}
