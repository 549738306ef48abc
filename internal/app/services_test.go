package app

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/backorders"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

func TestBuildRequiresInfrastructure(t *testing.T) {
	_, err := Build(Deps{})
	assert.Error(t, err)
}

func TestBuildWiresRestockFlow(t *testing.T) {
	client := dbtest.Open(t)
	cfg := &config.Config{
		Mail:      config.MailConfig{StorefrontURL: "https://shop.example.com", PublicAPIURL: "https://api.example.com"},
		Backorder: config.BackorderConfig{DefaultLeadTimeDays: 7},
	}
	svcs, err := Build(Deps{
		Config:  cfg,
		Logger:  logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:      client,
		Metrics: metrics.NewRestockMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	require.NotNil(t, svcs.Mailer)

	ctx := context.Background()
	created, err := svcs.Backorders.CreateBackorder(ctx, backorders.CreateInput{
		UserID:      uuid.New(),
		Items:       []backorders.LineInput{{ProductID: "boots", Quantity: 2, Price: decimal.NewFromInt(80)}},
		TotalAmount: decimal.NewFromInt(160),
		Currency:    "USD",
		Shipping: backorders.ShippingInput{
			Name: "Sam Ortiz", Line1: "9 Elm St", City: "Denver", PostalCode: "80202", Country: "US",
		},
	})
	require.NoError(t, err)
	require.True(t, created.Success)
	require.NotNil(t, created.ExpectedFulfillmentDate)

	res, err := svcs.Monitor.ReceiveStock(ctx, inventory.NewSKU("boots", ""), 3)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{created.OrderID}, res.FulfilledOrders)
	assert.Equal(t, 1, res.RemainingQuantity)

	level, err := svcs.Inventory.GetStock(ctx, inventory.NewSKU("boots", ""))
	require.NoError(t, err)
	assert.Equal(t, 1, level.Available)
}
