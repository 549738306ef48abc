package cron

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

func TestOutboxRetentionJobDeletesOnlyOldPublishedRows(t *testing.T) {
	client := dbtest.Open(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	old := now.AddDate(0, 0, -45)
	recent := now.AddDate(0, 0, -2)

	rows := []models.OutboxEvent{
		{EventType: enums.EventStockRestocked, AggregateType: enums.AggregateStock, AggregateID: "sku-1", Payload: json.RawMessage(`{}`), PublishedAt: &old, AttemptCount: 1},
		{EventType: enums.EventStockRestocked, AggregateType: enums.AggregateStock, AggregateID: "sku-2", Payload: json.RawMessage(`{}`), PublishedAt: &recent, AttemptCount: 1},
		{EventType: enums.EventStockRestocked, AggregateType: enums.AggregateStock, AggregateID: "sku-3", Payload: json.RawMessage(`{}`)},
	}
	require.NoError(t, client.DB().Create(&rows).Error)

	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     testLogger(),
		DB:         client,
		Repository: outbox.NewRepository(client.DB()),
	})
	require.NoError(t, err)
	job := jobIface.(*purgeJob)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))

	var left []models.OutboxEvent
	require.NoError(t, client.DB().Order("aggregate_id").Find(&left).Error)
	require.Len(t, left, 2)
	assert.Equal(t, "sku-2", left[0].AggregateID)
	assert.Equal(t, "sku-3", left[1].AggregateID)
}

func TestNewOutboxRetentionJobValidates(t *testing.T) {
	_, err := NewOutboxRetentionJob(OutboxRetentionJobParams{})
	assert.Error(t, err)
}

func TestNotificationCleanupJobPurgesStaleFailures(t *testing.T) {
	client := dbtest.Open(t)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	stale := now.AddDate(0, 0, -120)
	fresh := now.AddDate(0, 0, -3)

	row := func(cycle string, status enums.NotificationStatus, updated time.Time) models.RestockNotification {
		return models.RestockNotification{
			SubscriptionID: uuid.New(),
			Email:          "shopper@example.com",
			ProductID:      "prod-1",
			Kind:           enums.NotificationKindRestock,
			CycleKey:       cycle,
			Status:         status,
			CreatedAt:      updated,
			UpdatedAt:      updated,
		}
	}
	rows := []models.RestockNotification{
		row("restock:1", enums.NotificationStatusFailed, stale),
		row("restock:2", enums.NotificationStatusFailed, fresh),
		row("restock:3", enums.NotificationStatusSent, stale),
	}
	require.NoError(t, client.DB().Create(&rows).Error)

	jobIface, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:     testLogger(),
		Repository: notifications.NewRepository(client.DB()),
	})
	require.NoError(t, err)
	job := jobIface.(*purgeJob)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))

	var cycles []string
	require.NoError(t, client.DB().Model(&models.RestockNotification{}).Order("cycle_key").Pluck("cycle_key", &cycles).Error)
	assert.Equal(t, []string{"restock:2", "restock:3"}, cycles)
}

func TestNewNotificationCleanupJobValidates(t *testing.T) {
	_, err := NewNotificationCleanupJob(NotificationCleanupJobParams{Logger: testLogger()})
	assert.Error(t, err)
}
