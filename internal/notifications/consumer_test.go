package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/backorders"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type fakeOrders struct {
	order *backorders.Backorder
	err   error
}

func (f *fakeOrders) GetBackorder(context.Context, uuid.UUID) (*backorders.Backorder, error) {
	return f.order, f.err
}

type fakeGuard struct {
	seen    map[uuid.UUID]bool
	deleted int
}

func (g *fakeGuard) CheckAndMarkProcessed(_ context.Context, _ string, id uuid.UUID) (bool, error) {
	if g.seen[id] {
		return true, nil
	}
	g.seen[id] = true
	return false, nil
}

func (g *fakeGuard) Delete(_ context.Context, _ string, id uuid.UUID) error {
	delete(g.seen, id)
	g.deleted++
	return nil
}

func fulfilledMessage(t *testing.T, orderID uuid.UUID) (map[string]string, []byte) {
	t.Helper()
	data, err := json.Marshal(payloads.BackorderFulfillmentEvent{OrderID: orderID, ProductID: "jacket", QuantityAssigned: 1, Status: enums.OrderStatusFulfilled})
	require.NoError(t, err)
	body, err := json.Marshal(outbox.PayloadEnvelope{
		Version:   1,
		EventID:   uuid.NewString(),
		EventType: enums.EventBackorderFulfilled,
		Data:      data,
	})
	require.NoError(t, err)
	return map[string]string{"event_type": string(enums.EventBackorderFulfilled)}, body
}

func newTestConsumer(orders orderReader, mail *fakeMailer, guard *fakeGuard) *Consumer {
	return &Consumer{
		orders:        orders,
		mail:          mail,
		idempotency:   guard,
		decoders:      consumerDecoders(),
		logg:          logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		storefrontURL: "https://shop.example.com",
	}
}

func TestConsumerEmailsCustomerOnce(t *testing.T) {
	email := "dana@example.com"
	orderID := uuid.New()
	order := &backorders.Backorder{ID: orderID, Shipping: backorders.ShippingInput{Name: "Dana", Email: &email}}
	mail := &fakeMailer{failTo: map[string]bool{}}
	guard := &fakeGuard{seen: map[uuid.UUID]bool{}}
	c := newTestConsumer(&fakeOrders{order: order}, mail, guard)

	attrs, body := fulfilledMessage(t, orderID)
	res := c.process(context.Background(), "m1", attrs, body)
	assert.True(t, res.ack)
	res = c.process(context.Background(), "m1", attrs, body)
	assert.True(t, res.ack)

	require.Len(t, mail.sent, 1)
	assert.Equal(t, email, mail.sent[0].To)
	assert.Equal(t, "https://shop.example.com/orders/"+orderID.String(), mail.sent[0].Data["OrderURL"])
}

func TestConsumerSkipsOtherEvents(t *testing.T) {
	mail := &fakeMailer{failTo: map[string]bool{}}
	c := newTestConsumer(&fakeOrders{}, mail, &fakeGuard{seen: map[uuid.UUID]bool{}})
	res := c.process(context.Background(), "m1", map[string]string{"event_type": string(enums.EventBackorderCreated)}, []byte("{}"))
	assert.True(t, res.ack)
	assert.Empty(t, mail.sent)
}

func TestConsumerNacksAndReleasesOnFailure(t *testing.T) {
	guard := &fakeGuard{seen: map[uuid.UUID]bool{}}
	c := newTestConsumer(&fakeOrders{err: errors.New("db down")}, &fakeMailer{failTo: map[string]bool{}}, guard)

	attrs, body := fulfilledMessage(t, uuid.New())
	res := c.process(context.Background(), "m1", attrs, body)
	assert.True(t, res.nack)
	assert.Equal(t, 1, guard.deleted)
	assert.Empty(t, guard.seen)
}
