package waitlist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service manages restock waitlist subscriptions.
type Service interface {
	Subscribe(ctx context.Context, input SubscribeInput) (*SubscribeResult, error)
	Unsubscribe(ctx context.Context, email, productID, variantID string) (bool, error)
	IsSubscribed(ctx context.Context, email, productID, variantID string) (bool, error)
	GetProductSubscriptions(ctx context.Context, productID, variantID string) ([]Subscription, error)
	GetCustomerSubscriptions(ctx context.Context, email string) ([]Subscription, error)
	MarkConverted(ctx context.Context, tx *gorm.DB, subscriptionID uuid.UUID) error
	GetAnalytics(ctx context.Context) (*Analytics, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	logg     *logger.Logger
	validate *validator.Validate
	now      func() time.Time
}

func NewService(repo Repository, tx txRunner, outbox outboxPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("waitlist repository required")
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
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   outbox,
		logg:     logg,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *service) Subscribe(ctx context.Context, input SubscribeInput) (*SubscribeResult, error) {
	input.Email = normalizeEmail(input.Email)
	input.ProductID = strings.TrimSpace(input.ProductID)
	input.VariantID = strings.TrimSpace(input.VariantID)
	if err := s.validate.Struct(input); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid waitlist subscription")
	}

	ctx = s.logg.WithSKU(ctx, input.ProductID, input.VariantID)

	existing, err := s.repo.FindActive(ctx, input.Email, input.ProductID, input.VariantID)
	switch {
	case err == nil:
		return alreadySubscribed(existing.ID), nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup waitlist subscription")
	}

	sub := &models.WaitlistSubscription{
		Email:     input.Email,
		ProductID: input.ProductID,
		VariantID: input.VariantID,
		UserID:    input.UserID,
		Active:    true,
	}
	err = s.repo.Create(ctx, sub)
	if db.IsUniqueViolation(err, "uq_waitlist_active_subscription") {
		// Lost a race with a concurrent subscribe for the same key.
		existing, findErr := s.repo.FindActive(ctx, input.Email, input.ProductID, input.VariantID)
		if findErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "lookup waitlist subscription")
		}
		return alreadySubscribed(existing.ID), nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create waitlist subscription")
	}

	s.logg.Info(s.logg.WithField(ctx, "subscription_id", sub.ID.String()), "waitlist subscription created")
	return &SubscribeResult{
		Success:        true,
		SubscriptionID: sub.ID,
		Message:        "subscribed to restock notifications",
	}, nil
}

func alreadySubscribed(id uuid.UUID) *SubscribeResult {
	return &SubscribeResult{
		Success:        false,
		SubscriptionID: id,
		Reason:         ReasonAlreadySubscribed,
		Message:        "already subscribed to this product",
	}
}

func (s *service) Unsubscribe(ctx context.Context, email, productID, variantID string) (bool, error) {
	email = normalizeEmail(email)
	productID = strings.TrimSpace(productID)
	if email == "" || productID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "email and productId are required")
	}
	n, err := s.repo.Deactivate(ctx, email, productID, strings.TrimSpace(variantID), s.now())
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unsubscribe")
	}
	return n > 0, nil
}

func (s *service) IsSubscribed(ctx context.Context, email, productID, variantID string) (bool, error) {
	email = normalizeEmail(email)
	productID = strings.TrimSpace(productID)
	if email == "" || productID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "email and productId are required")
	}
	_, err := s.repo.FindActive(ctx, email, productID, strings.TrimSpace(variantID))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup waitlist subscription")
	}
	return true, nil
}

func (s *service) GetProductSubscriptions(ctx context.Context, productID, variantID string) ([]Subscription, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
	}
	rows, err := s.repo.ListActiveForSKU(ctx, productID, strings.TrimSpace(variantID))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list product subscriptions")
	}
	return toSubscriptions(rows), nil
}

func (s *service) GetCustomerSubscriptions(ctx context.Context, email string) ([]Subscription, error) {
	email = normalizeEmail(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid email")
	}
	rows, err := s.repo.ListByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list customer subscriptions")
	}
	return toSubscriptions(rows), nil
}

// MarkConverted records a purchase from a restock email. It joins the
// caller's transaction when tx is set. Converting twice is a no-op.
func (s *service) MarkConverted(ctx context.Context, tx *gorm.DB, subscriptionID uuid.UUID) error {
	run := func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		n, err := repo.MarkConverted(ctx, subscriptionID, s.now())
		if err != nil {
			return err
		}
		if n == 0 {
			if _, err := repo.FindByID(ctx, subscriptionID); err != nil {
				return err
			}
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWaitlistConverted,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   subscriptionID.String(),
			Data:          payloads.WaitlistConvertedEvent{SubscriptionID: subscriptionID},
		})
	}

	var err error
	if tx != nil {
		err = run(tx)
	} else {
		err = s.tx.WithTx(ctx, run)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "waitlist subscription not found")
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark subscription converted")
	}
	return nil
}

func (s *service) GetAnalytics(ctx context.Context) (*Analytics, error) {
	rows, err := s.repo.Breakdown(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "waitlist analytics")
	}
	out := &Analytics{ByProduct: rows}
	if out.ByProduct == nil {
		out.ByProduct = []ProductBreakdown{}
	}
	for _, row := range rows {
		out.TotalSubscriptions += row.Total
		out.ActiveSubscriptions += row.Active
		out.ConvertedSubscriptions += row.Converted
	}
	if out.TotalSubscriptions > 0 {
		out.ConversionRate = float64(out.ConvertedSubscriptions) / float64(out.TotalSubscriptions)
	}
	return out, nil
}

func toSubscriptions(rows []models.WaitlistSubscription) []Subscription {
	out := make([]Subscription, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out
}
