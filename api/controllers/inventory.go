package controllers

import (
	"net/http"
	"time"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/monitor"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type stockItemsRequest struct {
	Items []inventory.Item `json:"items" validate:"required,min=1,max=100,dive"`
}

type receiveStockRequest struct {
	ProductID string `json:"productId" validate:"required,max=128"`
	VariantID string `json:"variantId,omitempty" validate:"max=128"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type expectedRestockRequest struct {
	ProductID    string    `json:"productId" validate:"required,max=128"`
	VariantID    string    `json:"variantId,omitempty" validate:"max=128"`
	ExpectedDate time.Time `json:"expectedDate" validate:"required"`
}

// CheckStock answers availability for a basket without changing the ledger.
func CheckStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "inventory")
			return
		}
		var req stockItemsRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		statuses, err := svc.CheckStock(r.Context(), req.Items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": statuses})
	}
}

func ReserveInventory(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "inventory")
			return
		}
		var req stockItemsRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := svc.ReserveAndDecrement(r.Context(), req.Items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteOutcome(r.Context(), logg, w, http.StatusOK, res.Reason, res.Message, res)
	}
}

// RestoreInventory returns stock to the ledger. Lines that fail are listed in
// the result rather than failing the request.
func RestoreInventory(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "inventory")
			return
		}
		var req stockItemsRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := svc.RestoreInventory(r.Context(), req.Items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}

// ReceiveStock books incoming stock and runs restock processing for it.
func ReceiveStock(svc monitor.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "monitor")
			return
		}
		var req receiveStockRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sku := inventory.NewSKU(req.ProductID, req.VariantID)
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithSKU(ctx, sku.ProductID, sku.VariantID)
		}
		res, err := svc.ReceiveStock(ctx, sku, req.Quantity)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}

func GetStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "inventory")
			return
		}
		productID := validators.QueryString(r, "productId", 128)
		if productID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "productId is required"))
			return
		}
		level, err := svc.GetStock(r.Context(), inventory.NewSKU(productID, validators.QueryString(r, "variantId", 128)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, level)
	}
}

func SetExpectedRestockDate(svc monitor.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "monitor")
			return
		}
		var req expectedRestockRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		schedule, err := svc.SetExpectedRestockDate(r.Context(), inventory.NewSKU(req.ProductID, req.VariantID), req.ExpectedDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, schedule)
	}
}

// HoldStock parks stock in reserved_quantity while a checkout is in flight.
func HoldStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "inventory")
			return
		}
		var req stockItemsRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := svc.HoldStock(r.Context(), req.Items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteOutcome(r.Context(), logg, w, http.StatusOK, res.Reason, res.Message, res)
	}
}

func ReleaseHold(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return holdTransition(svc, logg, "released", func(s inventory.Service) func(*http.Request, []inventory.Item) error {
		return func(r *http.Request, items []inventory.Item) error { return s.ReleaseHold(r.Context(), items) }
	})
}

func CommitHold(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return holdTransition(svc, logg, "committed", func(s inventory.Service) func(*http.Request, []inventory.Item) error {
		return func(r *http.Request, items []inventory.Item) error { return s.CommitHold(r.Context(), items) }
	})
}

func holdTransition(svc inventory.Service, logg *logger.Logger, outcome string, op func(inventory.Service) func(*http.Request, []inventory.Item) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "inventory")
			return
		}
		var req stockItemsRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := op(svc)(r, req.Items); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{outcome: true, "items": len(req.Items)})
	}
}
