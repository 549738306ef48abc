package notifications

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/waitlist"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/mailer"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

type fakeMailer struct {
	mu     sync.Mutex
	sent   []mailer.Message
	failTo map[string]bool
}

func (m *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTo[msg.To] {
		return errors.New("mailbox unavailable")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (r *fakeRecorder) ObserveNotification(kind, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[kind+"/"+result]++
}

type fixture struct {
	svc      Service
	waitlist waitlist.Service
	mail     *fakeMailer
	metrics  *fakeRecorder
	client   *db.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	wl, err := waitlist.NewService(waitlist.NewRepository(client.DB()), client, outbox.NewService(outbox.NewRepository(client.DB()), nil), logg)
	require.NoError(t, err)

	mail := &fakeMailer{failTo: map[string]bool{}}
	rec := &fakeRecorder{outcomes: map[string]int{}}
	svc, err := NewService(NewRepository(client.DB()), client, mail, wl, rec, logg, Options{
		StorefrontURL: "https://shop.example.com/",
		PublicAPIURL:  "https://api.example.com",
		Concurrency:   3,
	})
	require.NoError(t, err)
	return &fixture{svc: svc, waitlist: wl, mail: mail, metrics: rec, client: client}
}

func (f *fixture) subscribe(t *testing.T, email, productID, variantID string) {
	t.Helper()
	res, err := f.waitlist.Subscribe(context.Background(), waitlist.SubscribeInput{Email: email, ProductID: productID, VariantID: variantID})
	require.NoError(t, err)
	require.True(t, res.Success)
}

func (f *fixture) subscribers(t *testing.T, productID, variantID string) []waitlist.Subscription {
	t.Helper()
	subs, err := f.waitlist.GetProductSubscriptions(context.Background(), productID, variantID)
	require.NoError(t, err)
	return subs
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil, nil, nil, Options{})
	require.Error(t, err)
}

func TestSendRestockNotificationsOncePerCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subscribe(t, "a@example.com", "jacket", "m")
	f.subscribe(t, "b@example.com", "jacket", "")
	f.subscribe(t, "c@example.com", "jacket", "l")
	product := ProductRef{ProductID: "jacket", VariantID: "m", Name: "Trail Jacket", RestockCycle: 2}

	res, err := f.svc.SendRestockNotifications(ctx, f.subscribers(t, "jacket", "m"), product)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 0, res.Skipped)

	res, err = f.svc.SendRestockNotifications(ctx, f.subscribers(t, "jacket", "m"), product)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Sent)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 2, f.mail.count())

	product.RestockCycle = 3
	res, err = f.svc.SendRestockNotifications(ctx, f.subscribers(t, "jacket", "m"), product)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent, "a new restock cycle notifies again")

	assert.Equal(t, 4, f.metrics.outcomes["restock/sent"])
	assert.Equal(t, 2, f.metrics.outcomes["restock/skipped"])
}

func TestSendRestockNotificationsBuildsLinks(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, "a@example.com", "jacket", "m")

	_, err := f.svc.SendRestockNotifications(context.Background(), f.subscribers(t, "jacket", "m"), ProductRef{ProductID: "jacket", VariantID: "m", RestockCycle: 1})
	require.NoError(t, err)
	require.Len(t, f.mail.sent, 1)

	msg := f.mail.sent[0]
	assert.Equal(t, "a@example.com", msg.To)
	assert.Equal(t, mailer.TemplateRestock, msg.Template)
	assert.Equal(t, "jacket is back in stock", msg.Subject)
	productURL, _ := msg.Data["ProductURL"].(string)
	assert.True(t, strings.HasPrefix(productURL, "https://shop.example.com/products/jacket?"))
	assert.Contains(t, productURL, "variant=m")
	pixel, _ := msg.Data["TrackingPixelURL"].(string)
	assert.True(t, strings.HasPrefix(pixel, "https://api.example.com/api/public/notifications/"))
}

func TestSendRestockNotificationsRetriesFailedRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subscribe(t, "ok@example.com", "boot", "")
	f.subscribe(t, "bounce@example.com", "boot", "")
	f.mail.failTo["bounce@example.com"] = true
	product := ProductRef{ProductID: "boot", RestockCycle: 1}

	res, err := f.svc.SendRestockNotifications(ctx, f.subscribers(t, "boot", ""), product)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "mailbox unavailable", res.Failures[0].Error)

	var failed models.RestockNotification
	require.NoError(t, f.client.DB().Where("email = ?", "bounce@example.com").First(&failed).Error)
	assert.Equal(t, enums.NotificationStatusFailed, failed.Status)
	require.NotNil(t, failed.LastError)

	delete(f.mail.failTo, "bounce@example.com")
	res, err = f.svc.SendRestockNotifications(ctx, f.subscribers(t, "boot", ""), product)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Skipped)
}

func TestSendRestockDelayedNotificationsKeyedBySchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subscribe(t, "a@example.com", "lamp", "")
	schedule := ScheduleRef{ID: uuid.New(), ExpectedDate: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)}

	res, err := f.svc.SendRestockDelayedNotifications(ctx, f.subscribers(t, "lamp", ""), ProductRef{ProductID: "lamp"}, schedule)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, "March 3, 2026", f.mail.sent[0].Data["ExpectedDate"])
	assert.Equal(t, mailer.TemplateRestockDelayed, f.mail.sent[0].Template)

	res, err = f.svc.SendRestockDelayedNotifications(ctx, f.subscribers(t, "lamp", ""), ProductRef{ProductID: "lamp"}, schedule)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Sent)

	res, err = f.svc.SendRestockNotifications(ctx, f.subscribers(t, "lamp", ""), ProductRef{ProductID: "lamp", RestockCycle: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent, "a delay notice does not block the restock mail")
}

func notificationID(t *testing.T, f *fixture) uuid.UUID {
	t.Helper()
	var row models.RestockNotification
	require.NoError(t, f.client.DB().First(&row).Error)
	return row.ID
}

func TestTrackingIsFirstWriteWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subscribe(t, "a@example.com", "jacket", "")
	_, err := f.svc.SendRestockNotifications(ctx, f.subscribers(t, "jacket", ""), ProductRef{ProductID: "jacket", RestockCycle: 1})
	require.NoError(t, err)
	id := notificationID(t, f)

	first, err := f.svc.TrackEmailOpen(ctx, id)
	require.NoError(t, err)
	assert.True(t, first.Recorded)

	var row models.RestockNotification
	require.NoError(t, f.client.DB().First(&row, "id = ?", id).Error)
	openedAt := *row.OpenedAt

	second, err := f.svc.Track(ctx, id, enums.TrackingActionOpen)
	require.NoError(t, err)
	assert.False(t, second.Recorded)
	require.NoError(t, f.client.DB().First(&row, "id = ?", id).Error)
	assert.True(t, openedAt.Equal(*row.OpenedAt))

	clicked, err := f.svc.Track(ctx, id, enums.TrackingActionClick)
	require.NoError(t, err)
	assert.True(t, clicked.Recorded)

	_, err = f.svc.Track(ctx, id, enums.TrackingAction("forward"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.TrackEmailOpen(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestTrackPurchaseConvertsSubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subscribe(t, "a@example.com", "jacket", "")
	_, err := f.svc.SendRestockNotifications(ctx, f.subscribers(t, "jacket", ""), ProductRef{ProductID: "jacket", RestockCycle: 1})
	require.NoError(t, err)
	id := notificationID(t, f)

	res, err := f.svc.TrackPurchaseComplete(ctx, id)
	require.NoError(t, err)
	assert.True(t, res.Recorded)

	var row models.RestockNotification
	require.NoError(t, f.client.DB().First(&row, "id = ?", id).Error)
	assert.Equal(t, enums.NotificationStatusConverted, row.Status)

	subscribed, err := f.waitlist.IsSubscribed(ctx, "a@example.com", "jacket", "")
	require.NoError(t, err)
	assert.False(t, subscribed)

	res, err = f.svc.TrackPurchaseComplete(ctx, id)
	require.NoError(t, err)
	assert.False(t, res.Recorded)

	_, err = f.svc.TrackPurchaseComplete(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestTrackPurchaseIgnoresUndeliveredMail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subscribe(t, "a@example.com", "jacket", "")
	f.mail.failTo["a@example.com"] = true
	res, err := f.svc.SendRestockNotifications(ctx, f.subscribers(t, "jacket", ""), ProductRef{ProductID: "jacket", RestockCycle: 1})
	require.NoError(t, err)
	require.Equal(t, 0, res.Sent)
	id := notificationID(t, f)

	track, err := f.svc.TrackPurchaseComplete(ctx, id)
	require.NoError(t, err)
	assert.False(t, track.Recorded)
	assert.Equal(t, ReasonNotDelivered, track.Reason)

	var row models.RestockNotification
	require.NoError(t, f.client.DB().First(&row, "id = ?", id).Error)
	assert.Equal(t, enums.NotificationStatusFailed, row.Status)
	assert.Nil(t, row.PurchasedAt)

	subscribed, err := f.waitlist.IsSubscribed(ctx, "a@example.com", "jacket", "")
	require.NoError(t, err)
	assert.True(t, subscribed)
}

func TestGetNotificationAnalytics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subscribe(t, "a@example.com", "jacket", "")
	f.subscribe(t, "b@example.com", "jacket", "")
	f.subscribe(t, "c@example.com", "jacket", "")
	f.mail.failTo["c@example.com"] = true
	_, err := f.svc.SendRestockNotifications(ctx, f.subscribers(t, "jacket", ""), ProductRef{ProductID: "jacket", RestockCycle: 1})
	require.NoError(t, err)

	var rows []models.RestockNotification
	require.NoError(t, f.client.DB().Where("status = ?", enums.NotificationStatusSent).Order("email").Find(&rows).Error)
	require.Len(t, rows, 2)
	_, err = f.svc.TrackEmailOpen(ctx, rows[0].ID)
	require.NoError(t, err)
	_, err = f.svc.TrackPurchaseComplete(ctx, rows[0].ID)
	require.NoError(t, err)

	got, err := f.svc.GetNotificationAnalytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Sent)
	assert.Equal(t, int64(1), got.Opened)
	assert.Equal(t, int64(1), got.Converted)
	assert.Equal(t, int64(1), got.Failed)
	assert.InDelta(t, 0.5, got.OpenRate, 0.0001)
	assert.InDelta(t, 0.5, got.ConversionRate, 0.0001)

	sent, err := f.svc.CountSentSince(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), sent)
}
