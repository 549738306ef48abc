package inventory

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

func newTestService(t *testing.T) (Service, *db.Client) {
	t.Helper()
	client := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(NewRepository(client.DB()), client, outbox.NewService(outbox.NewRepository(client.DB()), nil), logg)
	require.NoError(t, err)
	return svc, client
}

func seedStock(t *testing.T, client *db.Client, productID, variantID string, qty int) {
	t.Helper()
	require.NoError(t, client.DB().Create(&models.StockRecord{
		ProductID:         productID,
		VariantID:         variantID,
		AvailableQuantity: qty,
		RestockCycle:      1,
	}).Error)
}

func available(t *testing.T, client *db.Client, productID, variantID string) int {
	t.Helper()
	var rec models.StockRecord
	require.NoError(t, client.DB().Where("product_id = ? AND variant_id = ?", productID, variantID).First(&rec).Error)
	return rec.AvailableQuantity
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil)
	require.Error(t, err)
}

func TestCheckStockTreatsMissingRowAsZero(t *testing.T) {
	svc, client := newTestService(t)
	seedStock(t, client, "shirt", "m", 3)

	got, err := svc.CheckStock(context.Background(), []Item{
		{ProductID: "shirt", VariantID: "m", Quantity: 2},
		{ProductID: "shirt", VariantID: "l", Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Available)
	assert.Equal(t, 3, got[0].CurrentStock)
	assert.False(t, got[1].Available)
	assert.Equal(t, 0, got[1].CurrentStock)

	assert.Equal(t, 3, available(t, client, "shirt", "m"), "check must not change stock")
}

func TestCheckStockValidation(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CheckStock(context.Background(), nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.CheckStock(context.Background(), []Item{{ProductID: "x", Quantity: 0}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestReserveAndDecrementIsAllOrNothing(t *testing.T) {
	svc, client := newTestService(t)
	seedStock(t, client, "a", "", 5)
	seedStock(t, client, "b", "", 1)
	ctx := context.Background()

	res, err := svc.ReserveAndDecrement(ctx, []Item{
		{ProductID: "a", Quantity: 2},
		{ProductID: "b", Quantity: 2},
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, ReasonInsufficientStock, res.Reason)
	require.NotNil(t, res.Shortage)
	assert.Equal(t, "b", res.Shortage.ProductID)
	assert.Equal(t, 1, res.Shortage.Available)

	assert.Equal(t, 5, available(t, client, "a", ""), "no partial decrement")
	assert.Equal(t, 1, available(t, client, "b", ""))

	res, err = svc.ReserveAndDecrement(ctx, []Item{
		{ProductID: "a", Quantity: 2},
		{ProductID: "a", Quantity: 1},
		{ProductID: "b", Quantity: 1},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, available(t, client, "a", ""))
	assert.Equal(t, 0, available(t, client, "b", ""))
}

func TestReserveAndDecrementUnknownSKU(t *testing.T) {
	svc, _ := newTestService(t)
	res, err := svc.ReserveAndDecrement(context.Background(), []Item{{ProductID: "ghost", Quantity: 1}})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 0, res.Shortage.Available)
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	svc, client := newTestService(t)
	seedStock(t, client, "limited", "", 5)

	var wg sync.WaitGroup
	var succeeded int32
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.ReserveAndDecrement(context.Background(), []Item{{ProductID: "limited", Quantity: 1}})
			if err == nil && res.Success {
				atomic.AddInt32(&succeeded, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), succeeded)
	assert.Equal(t, 0, available(t, client, "limited", ""))
}

func TestRestoreInventoryCreatesRowsAndStartsCycle(t *testing.T) {
	svc, client := newTestService(t)
	seedStock(t, client, "a", "", 0)
	ctx := context.Background()

	res, err := svc.RestoreInventory(ctx, []Item{
		{ProductID: "a", Quantity: 2},
		{ProductID: "new", VariantID: "red", Quantity: 4},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Restored)
	assert.Equal(t, 2, available(t, client, "a", ""))
	assert.Equal(t, 4, available(t, client, "new", "red"))

	level, err := svc.GetStock(ctx, NewSKU("a", ""))
	require.NoError(t, err)
	assert.Equal(t, 2, level.RestockCycle)
}

func TestRestockCycleOnlyAdvancesFromZero(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sku := NewSKU("mug", "")

	first, err := svc.Restock(ctx, sku, 3)
	require.NoError(t, err)
	assert.True(t, first.CycleStarted)
	assert.Equal(t, 1, first.RestockCycle)
	assert.Equal(t, 3, first.Available)

	second, err := svc.Restock(ctx, sku, 2)
	require.NoError(t, err)
	assert.False(t, second.CycleStarted)
	assert.Equal(t, 1, second.RestockCycle)
	assert.Equal(t, 5, second.Available)

	res, err := svc.ReserveAndDecrement(ctx, []Item{{ProductID: "mug", Quantity: 5}})
	require.NoError(t, err)
	require.True(t, res.Success)

	third, err := svc.Restock(ctx, sku, 1)
	require.NoError(t, err)
	assert.True(t, third.CycleStarted)
	assert.Equal(t, 2, third.RestockCycle)
}

func TestRestockValidation(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Restock(context.Background(), NewSKU("", ""), 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = svc.Restock(context.Background(), NewSKU("a", ""), 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestHoldReleaseCommit(t *testing.T) {
	svc, client := newTestService(t)
	seedStock(t, client, "lamp", "", 4)
	ctx := context.Background()
	items := []Item{{ProductID: "lamp", Quantity: 3}}

	res, err := svc.HoldStock(ctx, items)
	require.NoError(t, err)
	require.True(t, res.Success)

	level, err := svc.GetStock(ctx, NewSKU("lamp", ""))
	require.NoError(t, err)
	assert.Equal(t, 1, level.Available)
	assert.Equal(t, 3, level.Reserved)

	require.NoError(t, svc.ReleaseHold(ctx, []Item{{ProductID: "lamp", Quantity: 1}}))
	require.NoError(t, svc.CommitHold(ctx, []Item{{ProductID: "lamp", Quantity: 2}}))

	level, err = svc.GetStock(ctx, NewSKU("lamp", ""))
	require.NoError(t, err)
	assert.Equal(t, 2, level.Available)
	assert.Equal(t, 0, level.Reserved)

	err = svc.CommitHold(ctx, []Item{{ProductID: "lamp", Quantity: 1}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestSetExpectedRestockDate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	when := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Second)

	require.NoError(t, svc.SetExpectedRestockDate(ctx, nil, NewSKU("desk", "oak"), &when))

	level, err := svc.GetStock(ctx, NewSKU("desk", "oak"))
	require.NoError(t, err)
	require.NotNil(t, level.ExpectedRestockDate)
	assert.True(t, level.ExpectedRestockDate.Equal(when))
	assert.Equal(t, 0, level.Available)
}
