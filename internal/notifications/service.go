package notifications

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/waitlist"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/mailer"
)

const (
	columnOpenedAt    = "opened_at"
	columnClickedAt   = "clicked_at"
	columnPurchasedAt = "purchased_at"
)

// Service sends restock mail exactly once per subscription per cycle and
// records engagement.
type Service interface {
	SendRestockNotifications(ctx context.Context, subs []waitlist.Subscription, product ProductRef) (*DispatchResult, error)
	SendRestockDelayedNotifications(ctx context.Context, subs []waitlist.Subscription, product ProductRef, schedule ScheduleRef) (*DispatchResult, error)
	Track(ctx context.Context, notificationID uuid.UUID, action enums.TrackingAction) (*TrackResult, error)
	TrackEmailOpen(ctx context.Context, notificationID uuid.UUID) (*TrackResult, error)
	TrackLinkClick(ctx context.Context, notificationID uuid.UUID) (*TrackResult, error)
	TrackPurchaseComplete(ctx context.Context, notificationID uuid.UUID) (*TrackResult, error)
	GetNotificationAnalytics(ctx context.Context) (*Analytics, error)
	CountSentSince(ctx context.Context, since time.Time) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type subscriptionConverter interface {
	MarkConverted(ctx context.Context, tx *gorm.DB, subscriptionID uuid.UUID) error
}

type dispatchRecorder interface {
	ObserveNotification(kind, result string)
}

// Options carries the link targets written into emails.
type Options struct {
	StorefrontURL string
	PublicAPIURL  string
	Concurrency   int
}

type service struct {
	repo      Repository
	tx        txRunner
	mail      mailer.Mailer
	converter subscriptionConverter
	metrics   dispatchRecorder
	logg      *logger.Logger
	opts      Options
	now       func() time.Time
}

// NewService wires notification dependencies. metrics may be nil.
func NewService(repo Repository, tx txRunner, mail mailer.Mailer, converter subscriptionConverter, metrics dispatchRecorder, logg *logger.Logger, opts Options) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if mail == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "mailer required")
	}
	if converter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "subscription converter required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	opts.StorefrontURL = strings.TrimRight(opts.StorefrontURL, "/")
	opts.PublicAPIURL = strings.TrimRight(opts.PublicAPIURL, "/")
	return &service{
		repo:      repo,
		tx:        tx,
		mail:      mail,
		converter: converter,
		metrics:   metrics,
		logg:      logg,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) SendRestockNotifications(ctx context.Context, subs []waitlist.Subscription, product ProductRef) (*DispatchResult, error) {
	if strings.TrimSpace(product.ProductID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
	}
	return s.dispatch(ctx, subs, product, dispatchPlan{
		kind:     enums.NotificationKindRestock,
		cycleKey: fmt.Sprintf("restock:%d", product.RestockCycle),
		template: mailer.TemplateRestock,
		subject:  fmt.Sprintf("%s is back in stock", product.displayName()),
	}), nil
}

func (s *service) SendRestockDelayedNotifications(ctx context.Context, subs []waitlist.Subscription, product ProductRef, schedule ScheduleRef) (*DispatchResult, error) {
	if strings.TrimSpace(product.ProductID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
	}
	if schedule.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "schedule id is required")
	}
	return s.dispatch(ctx, subs, product, dispatchPlan{
		kind:     enums.NotificationKindRestockDelayed,
		cycleKey: "delay:" + schedule.ID.String(),
		template: mailer.TemplateRestockDelayed,
		subject:  fmt.Sprintf("Update on %s", product.displayName()),
		extra:    map[string]any{"ExpectedDate": schedule.ExpectedDate.Format("January 2, 2006")},
	}), nil
}

type dispatchPlan struct {
	kind     enums.NotificationKind
	cycleKey string
	template string
	subject  string
	extra    map[string]any
}

// dispatch sends to each subscription at most once per cycle key. Failures
// are recorded on the row and in the result; they never abort the batch.
func (s *service) dispatch(ctx context.Context, subs []waitlist.Subscription, product ProductRef, plan dispatchPlan) *DispatchResult {
	result := &DispatchResult{}
	var mu sync.Mutex
	record := func(fn func()) {
		mu.Lock()
		defer mu.Unlock()
		fn()
	}

	logCtx := s.logg.WithFields(s.logg.WithSKU(ctx, product.ProductID, product.VariantID), map[string]any{
		"kind":      plan.kind,
		"cycle_key": plan.cycleKey,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for _, sub := range subs {
		if !sub.Active {
			continue
		}
		g.Go(func() error {
			outcome, err := s.sendOne(gctx, sub, product, plan)
			record(func() {
				switch outcome {
				case outcomeSent:
					result.Sent++
				case outcomeSkipped:
					result.Skipped++
				default:
					result.Failed++
					result.Failures = append(result.Failures, DispatchFailure{SubscriptionID: sub.ID, Error: err.Error()})
				}
			})
			if s.metrics != nil {
				s.metrics.ObserveNotification(string(plan.kind), string(outcome))
			}
			if err != nil {
				s.logg.Error(s.logg.WithField(logCtx, "subscription_id", sub.ID.String()), "restock notification failed", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"sent":    result.Sent,
		"skipped": result.Skipped,
		"failed":  result.Failed,
	}), "restock notifications dispatched")
	return result
}

type outcome string

const (
	outcomeSent    outcome = "sent"
	outcomeSkipped outcome = "skipped"
	outcomeFailed  outcome = "failed"
)

func (s *service) sendOne(ctx context.Context, sub waitlist.Subscription, product ProductRef, plan dispatchPlan) (outcome, error) {
	row := &models.RestockNotification{
		SubscriptionID: sub.ID,
		Email:          sub.Email,
		ProductID:      product.ProductID,
		VariantID:      product.VariantID,
		Kind:           plan.kind,
		CycleKey:       plan.cycleKey,
		Status:         enums.NotificationStatusPending,
	}
	claimed, err := s.repo.Claim(ctx, row)
	if err != nil {
		return outcomeFailed, fmt.Errorf("claim notification: %w", err)
	}
	id := row.ID
	if !claimed {
		id, claimed, err = s.repo.ReclaimFailed(ctx, sub.ID, product.VariantID, plan.cycleKey)
		if err != nil {
			return outcomeFailed, fmt.Errorf("reclaim notification: %w", err)
		}
		if !claimed {
			return outcomeSkipped, nil
		}
	}

	data := map[string]any{
		"ProductName":      product.displayName(),
		"VariantID":        product.VariantID,
		"ProductURL":       s.productURL(product, id),
		"TrackingPixelURL": fmt.Sprintf("%s/api/public/notifications/%s/pixel", s.opts.PublicAPIURL, id),
	}
	for k, v := range plan.extra {
		data[k] = v
	}

	sendErr := s.mail.Send(ctx, mailer.Message{
		To:       sub.Email,
		Subject:  plan.subject,
		Template: plan.template,
		Data:     data,
	})
	if sendErr != nil {
		// Keep the caller's context out so a cancelled batch still records the failure.
		if err := s.repo.MarkFailed(context.WithoutCancel(ctx), id, sendErr.Error()); err != nil {
			return outcomeFailed, errors.Join(sendErr, err)
		}
		return outcomeFailed, sendErr
	}
	if err := s.repo.MarkSent(context.WithoutCancel(ctx), id, s.now()); err != nil {
		return outcomeFailed, fmt.Errorf("mark notification sent: %w", err)
	}
	return outcomeSent, nil
}

func (s *service) productURL(product ProductRef, notificationID uuid.UUID) string {
	q := url.Values{}
	if product.VariantID != "" {
		q.Set("variant", product.VariantID)
	}
	q.Set("nid", notificationID.String())
	return fmt.Sprintf("%s/products/%s?%s", s.opts.StorefrontURL, url.PathEscape(product.ProductID), q.Encode())
}

func (s *service) Track(ctx context.Context, notificationID uuid.UUID, action enums.TrackingAction) (*TrackResult, error) {
	switch action {
	case enums.TrackingActionOpen:
		return s.TrackEmailOpen(ctx, notificationID)
	case enums.TrackingActionClick:
		return s.TrackLinkClick(ctx, notificationID)
	case enums.TrackingActionPurchase:
		return s.TrackPurchaseComplete(ctx, notificationID)
	default:
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unsupported tracking action %q", action)
	}
}

func (s *service) TrackEmailOpen(ctx context.Context, notificationID uuid.UUID) (*TrackResult, error) {
	return s.stamp(ctx, s.repo, notificationID, columnOpenedAt, nil)
}

func (s *service) TrackLinkClick(ctx context.Context, notificationID uuid.UUID) (*TrackResult, error) {
	return s.stamp(ctx, s.repo, notificationID, columnClickedAt, nil)
}

// TrackPurchaseComplete converts the notification and its waitlist
// subscription together. Only delivered mail converts; a pending or failed
// row is left as is and reported as not delivered.
func (s *service) TrackPurchaseComplete(ctx context.Context, notificationID uuid.UUID) (*TrackResult, error) {
	if notificationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification id is required")
	}
	var result *TrackResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := repo.FindByID(ctx, notificationID)
		if err != nil {
			return err
		}
		if row.Status == enums.NotificationStatusPending || row.Status == enums.NotificationStatusFailed {
			result = &TrackResult{NotificationID: notificationID, Reason: ReasonNotDelivered}
			return nil
		}
		result, err = s.stamp(ctx, repo, notificationID, columnPurchasedAt, map[string]any{"status": enums.NotificationStatusConverted})
		if err != nil {
			return err
		}
		if !result.Recorded {
			return nil
		}
		return s.converter.MarkConverted(ctx, tx, row.SubscriptionID)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "track purchase")
	}
	return result, nil
}

func (s *service) stamp(ctx context.Context, repo Repository, notificationID uuid.UUID, column string, extra map[string]any) (*TrackResult, error) {
	if notificationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification id is required")
	}
	res, err := repo.Stamp(ctx, notificationID, column, s.now(), extra)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "track notification")
	}
	if !res.Found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return &TrackResult{NotificationID: notificationID, Recorded: res.Updated}, nil
}

func (s *service) GetNotificationAnalytics(ctx context.Context) (*Analytics, error) {
	out, err := s.repo.Totals(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "notification analytics")
	}
	out.OpenRate = ratio(out.Opened, out.Sent)
	out.ClickRate = ratio(out.Clicked, out.Sent)
	out.ConversionRate = ratio(out.Converted, out.Sent)
	return out, nil
}

func (s *service) CountSentSince(ctx context.Context, since time.Time) (int64, error) {
	n, err := s.repo.CountSentSince(ctx, since)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count sent notifications")
	}
	return n, nil
}
