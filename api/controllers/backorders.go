package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/backorders"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type cancelBackorderRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

type fulfillRequest struct {
	ProductID         string `json:"productId" validate:"required,max=128"`
	VariantID         string `json:"variantId,omitempty" validate:"max=128"`
	AvailableQuantity int    `json:"availableQuantity" validate:"required,gt=0"`
}

type priorityRequest struct {
	Priority *int64 `json:"priority" validate:"required"`
}

// CreateBackorder places an order for the authenticated user against stock
// that has not arrived yet.
func CreateBackorder(svc backorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "backorders")
			return
		}
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input backorders.CreateInput
		if err := validators.DecodeJSONBody(w, r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.UserID = userID

		res, err := svc.CreateBackorder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, res)
	}
}

func GetBackorder(svc backorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "backorders")
			return
		}
		order, err := loadOwnedBackorder(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// CancelBackorder cancels the caller's order. Admins may cancel any order.
func CancelBackorder(svc backorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "backorders")
			return
		}
		var req cancelBackorderRequest
		if err := decodeOptionalBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := loadOwnedBackorder(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, order.ID.String())
		}
		res, err := svc.CancelBackorder(ctx, order.ID, validators.SanitizeString(req.Reason, 500))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteOutcome(ctx, logg, w, http.StatusOK, res.Reason, res.Message, res)
	}
}

// ListPendingBackorders returns the fulfillment queue in priority order.
func ListPendingBackorders(svc backorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "backorders")
			return
		}
		page, err := validators.ParseQueryInt(r, "page", 1, 1, 10000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var filter *backorders.QueueFilter
		if productID := validators.QueryString(r, "productId", 128); productID != "" {
			filter = &backorders.QueueFilter{
				ProductID: productID,
				VariantID: validators.OptionalQueryString(r, "variantId", 128),
			}
		} else if validators.OptionalQueryString(r, "variantId", 128) != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "variantId requires productId"))
			return
		}

		result, err := svc.GetPendingBackorders(r.Context(), filter, pagination.Params{Page: page, Limit: limit})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func FulfillBackorders(svc backorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "backorders")
			return
		}
		var req fulfillRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sku := inventory.NewSKU(req.ProductID, req.VariantID)
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithSKU(ctx, sku.ProductID, sku.VariantID)
		}
		res, err := svc.FulfillBackorders(ctx, sku, req.AvailableQuantity)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}

// ReprioritizeBackorder sets the admin priority override for an open order.
func ReprioritizeBackorder(svc backorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "backorders")
			return
		}
		orderID, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req priorityRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := svc.Reprioritize(r.Context(), orderID, *req.Priority)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteOutcome(r.Context(), logg, w, http.StatusOK, res.Reason, res.Message, res)
	}
}

// loadOwnedBackorder hides other customers' orders behind a not found.
func loadOwnedBackorder(r *http.Request, svc backorders.Service) (*backorders.Backorder, error) {
	userID, err := callerID(r)
	if err != nil {
		return nil, err
	}
	orderID, err := validators.PathUUID(r, "orderId")
	if err != nil {
		return nil, err
	}
	order, err := svc.GetBackorder(r.Context(), orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID && !middleware.IsAdminFromContext(r.Context()) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "backorder not found")
	}
	return order, nil
}
