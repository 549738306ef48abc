package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/waitlist"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type unsubscribeRequest struct {
	Email     string `json:"email" validate:"required,email"`
	ProductID string `json:"productId" validate:"required,max=128"`
	VariantID string `json:"variantId,omitempty" validate:"max=128"`
}

// SubscribeWaitlist registers an email for restock mail. A duplicate is a
// conflict outcome that still carries the existing subscription id.
func SubscribeWaitlist(svc waitlist.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "waitlist")
			return
		}
		var input waitlist.SubscribeInput
		if err := validators.DecodeJSONBody(w, r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if userID, err := callerID(r); err == nil {
			input.UserID = &userID
		}
		res, err := svc.Subscribe(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteOutcome(r.Context(), logg, w, http.StatusCreated, res.Reason, res.Message, res)
	}
}

func UnsubscribeWaitlist(svc waitlist.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "waitlist")
			return
		}
		var req unsubscribeRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		removed, err := svc.Unsubscribe(r.Context(), req.Email, req.ProductID, req.VariantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"unsubscribed": removed})
	}
}

func WaitlistStatus(svc waitlist.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "waitlist")
			return
		}
		email := validators.QueryString(r, "email", 254)
		productID := validators.QueryString(r, "productId", 128)
		if email == "" || productID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "email and productId are required"))
			return
		}
		subscribed, err := svc.IsSubscribed(r.Context(), email, productID, validators.QueryString(r, "variantId", 128))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"subscribed": subscribed})
	}
}

func CustomerSubscriptions(svc waitlist.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "waitlist")
			return
		}
		email := validators.QueryString(r, "email", 254)
		if email == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "email is required"))
			return
		}
		subs, err := svc.GetCustomerSubscriptions(r.Context(), email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"subscriptions": nonNil(subs)})
	}
}

func ProductSubscriptions(svc waitlist.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "waitlist")
			return
		}
		productID := validators.SanitizeString(chiParam(r, "productId"), 128)
		if productID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "productId is required"))
			return
		}
		subs, err := svc.GetProductSubscriptions(r.Context(), productID, validators.QueryString(r, "variantId", 128))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"subscriptions": nonNil(subs)})
	}
}

func WaitlistAnalytics(svc waitlist.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "waitlist")
			return
		}
		stats, err := svc.GetAnalytics(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
