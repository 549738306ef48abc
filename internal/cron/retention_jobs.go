package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	outboxRetentionDays       = 30
	outboxMinAttempts         = 1
	notificationRetentionDays = 90
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type failedNotificationPurger interface {
	PurgeFailedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// purgeJob deletes rows older than a day-based retention window. Each run
// computes its cutoff from now, so a missed cycle simply purges more later.
type purgeJob struct {
	name      string
	logg      *logger.Logger
	retention int
	purge     func(ctx context.Context, cutoff time.Time) (int64, error)
	now       func() time.Time
}

func (j *purgeJob) Name() string { return j.name }

func (j *purgeJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.retention)
	deleted, err := j.purge(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	}), "retention purge complete")
	return nil
}

func defaultInt(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Repository  outboxRetentionRepo
	Retention   int
	MinAttempts int
}

// NewOutboxRetentionJob purges published outbox rows once they are older
// than the retention window. Unpublished rows are never touched.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	minAttempts := defaultInt(params.MinAttempts, outboxMinAttempts)
	return &purgeJob{
		name:      "outbox-retention",
		logg:      params.Logger,
		retention: defaultInt(params.Retention, outboxRetentionDays),
		now:       time.Now,
		purge: func(ctx context.Context, cutoff time.Time) (n int64, err error) {
			err = params.DB.WithTx(ctx, func(tx *gorm.DB) error {
				n, err = params.Repository.DeletePublishedBefore(ctx, tx, cutoff, minAttempts)
				return err
			})
			return n, err
		},
	}, nil
}

type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	Repository failedNotificationPurger
	Retention  int
}

// NewNotificationCleanupJob drops restock notifications that failed to send
// and were never retried within the retention window. Sent rows are kept for
// analytics.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Repository == nil:
		return nil, errors.New("notifications repository required")
	}
	return &purgeJob{
		name:      "notification-cleanup",
		logg:      params.Logger,
		retention: defaultInt(params.Retention, notificationRetentionDays),
		now:       time.Now,
		purge:     params.Repository.PurgeFailedBefore,
	}, nil
}
