package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/app"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// rateStore backs idempotency replay and public throttling.
type rateStore interface {
	redis.IdempotencyStore
	middleware.RateLimitStore
	Ping(ctx context.Context) error
}

type sessionManager interface {
	session.RevocationChecker
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
}

// Params carries everything the router mounts.
type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    rateStore
	Sessions sessionManager
	Services *app.Services
	Gatherer prometheus.Gatherer
	Metrics  *metrics.HTTPMetrics
}

func NewRouter(p Params) http.Handler {
	cfg, logg, svc := p.Config, p.Logger, p.Services
	if svc == nil {
		svc = &app.Services{}
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(p.Metrics),
		middleware.CORS(cfg.HTTP.CORSAllowedOrigins),
	)

	var idem func(http.Handler) http.Handler = passThrough
	var publicLimit func(http.Handler) http.Handler = passThrough
	checks := []controllers.ReadinessCheck{}
	if p.DB != nil {
		checks = append(checks, controllers.ReadinessCheck{Name: "database", Ping: p.DB.Ping})
	}
	if p.Redis != nil {
		idem = middleware.Idempotency(p.Redis, logg)
		publicLimit = middleware.RateLimit(middleware.NewRateLimitPolicy(
			"public",
			cfg.HTTP.RateLimitWindow,
			cfg.HTTP.RateLimitPerIP,
			cfg.HTTP.RateLimitPerEmail,
		), p.Redis, logg)
		checks = append(checks, controllers.ReadinessCheck{Name: "redis", Ping: p.Redis.Ping})
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, checks...))
	})
	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Use(publicLimit)
		r.Post("/inventory/check", controllers.CheckStock(svc.Inventory, logg))

		r.Route("/waitlist", func(r chi.Router) {
			r.With(idem).Post("/", controllers.SubscribeWaitlist(svc.Waitlist, logg))
			r.Delete("/", controllers.UnsubscribeWaitlist(svc.Waitlist, logg))
			r.Get("/status", controllers.WaitlistStatus(svc.Waitlist, logg))
		})

		r.Route("/notifications/{notificationId}", func(r chi.Router) {
			r.With(idem).Post("/track", controllers.TrackNotification(svc.Notifications, logg))
			r.Get("/pixel", controllers.NotificationPixel(svc.Notifications, logg))
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))

		r.Post("/auth/logout", controllers.Logout(p.Sessions, logg))

		r.Route("/backorders", func(r chi.Router) {
			r.With(idem).Post("/", controllers.CreateBackorder(svc.Backorders, logg))
			r.Get("/{orderId}", controllers.GetBackorder(svc.Backorders, logg))
			r.With(idem).Post("/{orderId}/cancel", controllers.CancelBackorder(svc.Backorders, logg))
		})

		r.Route("/inventory/holds", func(r chi.Router) {
			r.With(idem).Post("/", controllers.HoldStock(svc.Inventory, logg))
			r.With(idem).Post("/release", controllers.ReleaseHold(svc.Inventory, logg))
			r.With(idem).Post("/commit", controllers.CommitHold(svc.Inventory, logg))
		})

		r.Get("/waitlist", controllers.CustomerSubscriptions(svc.Waitlist, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))
		r.Use(middleware.RequireAdmin(logg))

		r.Route("/backorders", func(r chi.Router) {
			r.Get("/", controllers.ListPendingBackorders(svc.Backorders, logg))
			r.With(idem).Post("/fulfill", controllers.FulfillBackorders(svc.Backorders, logg))
			r.With(idem).Post("/{orderId}/priority", controllers.ReprioritizeBackorder(svc.Backorders, logg))
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/stock", controllers.GetStock(svc.Inventory, logg))
			r.With(idem).Post("/reserve", controllers.ReserveInventory(svc.Inventory, logg))
			r.With(idem).Post("/restore", controllers.RestoreInventory(svc.Inventory, logg))
			r.With(idem).Post("/restock", controllers.ReceiveStock(svc.Monitor, logg))
			r.With(idem).Put("/expected-restock", controllers.SetExpectedRestockDate(svc.Monitor, logg))
		})

		r.Route("/restock", func(r chi.Router) {
			r.With(idem).Post("/trigger", controllers.TriggerRestock(svc.Monitor, logg))
			r.With(idem).Post("/expired/process", controllers.ProcessExpiredRestocks(svc.Monitor, logg))
			r.Get("/stats", controllers.RestockStats(svc.Monitor, logg))
		})

		r.Get("/waitlist/analytics", controllers.WaitlistAnalytics(svc.Waitlist, logg))
		r.Get("/waitlist/products/{productId}", controllers.ProductSubscriptions(svc.Waitlist, logg))
		r.Get("/notifications/analytics", controllers.NotificationAnalytics(svc.Notifications, logg))
	})

	return r
}

func passThrough(next http.Handler) http.Handler { return next }
