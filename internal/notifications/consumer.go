package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/backorders"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/mailer"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

const backorderFulfilledConsumer = "backorder-fulfilled-mail"

type orderReader interface {
	GetBackorder(ctx context.Context, orderID uuid.UUID) (*backorders.Backorder, error)
}

type processedGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer watches domain events and emails customers when a backorder has
// been fully allocated.
type Consumer struct {
	orders        orderReader
	mail          mailer.Mailer
	subscription  *pubsub.Subscriber
	idempotency   processedGuard
	decoders      *registry.DecoderRegistry
	logg          *logger.Logger
	storefrontURL string
}

// NewConsumer builds a backorder notification consumer.
func NewConsumer(orders orderReader, mail mailer.Mailer, subscription *pubsub.Subscriber, guard processedGuard, logg *logger.Logger, storefrontURL string) (*Consumer, error) {
	if orders == nil {
		return nil, fmt.Errorf("backorder reader required")
	}
	if mail == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		decoders:      consumerDecoders(),
		orders:        orders,
		mail:          mail,
		subscription:  subscription,
		idempotency:   guard,
		logg:          logg,
		storefrontURL: storefrontURL,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg.ID, msg.Attributes, msg.Data).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func consumerDecoders() *registry.DecoderRegistry {
	decoders := registry.NewDecoderRegistry()
	decoders.Register(enums.EventBackorderFulfilled, 1, registry.JSONDecoder[payloads.BackorderFulfillmentEvent]())
	return decoders
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, messageID string, attrs map[string]string, data []byte) processResult {
	eventType := attrs["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventBackorderFulfilled) {
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, backorderFulfilledConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	decoded, err := c.decoders.Decode(enums.EventBackorderFulfilled, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return processResult{ack: true}
	}
	payload := decoded.(payloads.BackorderFulfillmentEvent)
	logCtx = c.logg.WithOrderID(logCtx, payload.OrderID.String())

	if err := c.notifyCustomer(ctx, payload.OrderID, logCtx); err != nil {
		c.logg.Error(logCtx, "backorder fulfillment mail failed", err)
		_ = c.idempotency.Delete(ctx, backorderFulfilledConsumer, eventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *Consumer) notifyCustomer(ctx context.Context, orderID uuid.UUID, logCtx context.Context) error {
	order, err := c.orders.GetBackorder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Shipping.Email == nil || *order.Shipping.Email == "" {
		c.logg.Info(logCtx, "backorder has no contact email")
		return nil
	}
	err = c.mail.Send(ctx, mailer.Message{
		To:       *order.Shipping.Email,
		Subject:  "Your backorder is ready to ship",
		Template: mailer.TemplateBackorderFulfilled,
		Data: map[string]any{
			"CustomerName": order.Shipping.Name,
			"OrderID":      order.ID.String(),
			"OrderURL":     fmt.Sprintf("%s/orders/%s", c.storefrontURL, order.ID),
		},
	})
	if err != nil {
		return err
	}
	c.logg.Info(logCtx, "customer notified of fulfilled backorder")
	return nil
}
