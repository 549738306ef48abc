package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/internal/monitor"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type expirySweeper interface {
	ProcessExpiredRestockDates(ctx context.Context) (*monitor.ExpiryResult, error)
}

type RestockExpiryJobParams struct {
	Logger  *logger.Logger
	Monitor expirySweeper
}

// NewRestockExpiryJob expires restock schedules whose expected date passed.
func NewRestockExpiryJob(params RestockExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Monitor == nil {
		return nil, fmt.Errorf("monitor service required")
	}
	return &restockExpiryJob{logg: params.Logger, monitor: params.Monitor}, nil
}

type restockExpiryJob struct {
	logg    *logger.Logger
	monitor expirySweeper
}

func (j *restockExpiryJob) Name() string { return "restock-expiry" }

func (j *restockExpiryJob) Run(ctx context.Context) error {
	result, err := j.monitor.ProcessExpiredRestockDates(ctx)
	if err != nil {
		return fmt.Errorf("restock expiry: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"expired":            result.ExpiredCount,
		"notifications_sent": result.NotificationsSent,
		"failures":           len(result.Failures),
	})
	if len(result.Failures) > 0 {
		return fmt.Errorf("restock expiry: %d schedule(s) failed", len(result.Failures))
	}
	j.logg.Info(logCtx, "restock expiry complete")
	return nil
}
