package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/monitor"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type triggerRestockRequest struct {
	ProductID string `json:"productId" validate:"required,max=128"`
	VariantID string `json:"variantId,omitempty" validate:"max=128"`
	NewStock  *int   `json:"newStock" validate:"required,gte=0"`
}

// TriggerRestock runs fulfillment and waitlist mail for stock that is
// already on the ledger.
func TriggerRestock(svc monitor.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "monitor")
			return
		}
		var req triggerRestockRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sku := inventory.NewSKU(req.ProductID, req.VariantID)
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithSKU(ctx, sku.ProductID, sku.VariantID)
		}
		res, err := svc.TriggerRestockProcessing(ctx, sku, *req.NewStock)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}

func ProcessExpiredRestocks(svc monitor.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "monitor")
			return
		}
		res, err := svc.ProcessExpiredRestockDates(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}

func RestockStats(svc monitor.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "monitor")
			return
		}
		stats, err := svc.GetMonitoringStats(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}
