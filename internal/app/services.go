// Package app assembles the storefront domain services from their
// infrastructure clients. Binaries call Build once and share the result.
package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/backorders"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/monitor"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/waitlist"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/mailer"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

// Deps are the infrastructure handles the services are built on.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client
	// Sequencer orders new backorders. Nil falls back to the in-process clock.
	Sequencer backorders.PrioritySequencer
	// Mailer overrides the configured SMTP or log mailer.
	Mailer  mailer.Mailer
	Metrics *metrics.RestockMetrics
	Now     func() time.Time
}

// Services is the wired domain layer.
type Services struct {
	Outbox        *outbox.Service
	Inventory     inventory.Service
	Backorders    backorders.Service
	Waitlist      waitlist.Service
	Notifications notifications.Service
	Monitor       monitor.Service
	Mailer        mailer.Mailer
}

func Build(d Deps) (*Services, error) {
	if d.Config == nil || d.Logger == nil || d.DB == nil {
		return nil, errors.New("config, logger and database are required")
	}
	cfg := d.Config
	gdb := d.DB.DB()

	mail := d.Mailer
	if mail == nil {
		m, err := mailer.New(cfg.Mail, d.Logger)
		if err != nil {
			return nil, fmt.Errorf("mailer: %w", err)
		}
		mail = m
	}
	sequencer := d.Sequencer
	if sequencer == nil {
		sequencer = backorders.NewClockSequencer()
	}

	ob := outbox.NewService(outbox.NewRepository(gdb), d.Logger)
	ledger := inventory.NewRepository(gdb)

	inv, err := inventory.NewService(ledger, d.DB, ob, d.Logger)
	if err != nil {
		return nil, fmt.Errorf("inventory service: %w", err)
	}
	bo, err := backorders.NewService(backorders.ServiceParams{
		Repo:            backorders.NewRepository(gdb),
		Ledger:          ledger,
		Stock:           inv,
		Tx:              d.DB,
		Outbox:          ob,
		Sequencer:       sequencer,
		Logger:          d.Logger,
		DefaultLeadTime: cfg.Backorder.DefaultLeadTime(),
		Now:             d.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("backorder service: %w", err)
	}
	wl, err := waitlist.NewService(waitlist.NewRepository(gdb), d.DB, ob, d.Logger)
	if err != nil {
		return nil, fmt.Errorf("waitlist service: %w", err)
	}

	// A nil *RestockMetrics in an interface is not nil; keep the recorder
	// interfaces empty when metrics are disabled.
	var dispatch interface{ ObserveNotification(kind, result string) }
	var restock interface {
		ObserveRestock(success bool)
		AddFulfillment(fulfilled, skipped int)
		AddExpired(n int)
	}
	if d.Metrics != nil {
		dispatch = d.Metrics
		restock = d.Metrics
	}

	notes, err := notifications.NewService(notifications.NewRepository(gdb), d.DB, mail, wl, dispatch, d.Logger, notifications.Options{
		StorefrontURL: cfg.Mail.StorefrontURL,
		PublicAPIURL:  cfg.Mail.PublicAPIURL,
		Concurrency:   cfg.Mail.Concurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("notification service: %w", err)
	}
	mon, err := monitor.NewService(monitor.ServiceParams{
		Repo:           monitor.NewRepository(gdb),
		Inventory:      inv,
		Backorders:     bo,
		Waitlist:       wl,
		Notifications:  notes,
		Tx:             d.DB,
		Outbox:         ob,
		Metrics:        restock,
		Logger:         d.Logger,
		NotifyOnExpiry: cfg.Monitor.NotifyOnExpiry,
		Now:            d.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("monitor service: %w", err)
	}

	return &Services{
		Outbox:        ob,
		Inventory:     inv,
		Backorders:    bo,
		Waitlist:      wl,
		Notifications: notes,
		Monitor:       mon,
		Mailer:        mail,
	}, nil
}
