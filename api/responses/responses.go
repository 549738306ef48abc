// Package responses writes the API's JSON envelopes: {"data": ...} on
// success and {"error": {...}} otherwise.
package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Business outcome reasons carried on service results.
const (
	ReasonInsufficientStock      = "insufficient_stock"
	ReasonInvalidStateTransition = "invalid_state_transition"
	ReasonAlreadySubscribed      = "already_subscribed"
)

var reasonCodes = map[string]pkgerrors.Code{
	ReasonInsufficientStock:      pkgerrors.CodeInsufficientStock,
	ReasonInvalidStateTransition: pkgerrors.CodeStateConflict,
	ReasonAlreadySubscribed:      pkgerrors.CodeConflict,
}

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, SuccessEnvelope{Data: data})
}

// WriteOutcome renders a service result. An empty reason is a success; a
// known business reason becomes an error envelope carrying the full result as
// details so clients still see ids and shortages.
func WriteOutcome(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, status int, reason, message string, result any) {
	if reason == "" {
		WriteSuccessStatus(w, status, result)
		return
	}
	code, ok := reasonCodes[reason]
	if !ok {
		WriteError(ctx, logg, w, pkgerrors.Newf(pkgerrors.CodeInternal, "unmapped outcome reason %q", reason))
		return
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "reason", reason), "request.rejected")
	}
	if message == "" {
		message = pkgerrors.MetadataFor(code).PublicMessage
	}
	writeJSON(w, pkgerrors.MetadataFor(code).HTTPStatus, ErrorEnvelope{Error: APIError{
		Code:    string(code),
		Message: message,
		Reason:  reason,
		Details: result,
	}})
}

func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	if meta.HTTPStatus < http.StatusInternalServerError && typed.Message() != "" {
		msg = typed.Message()
	}
	payload := ErrorEnvelope{Error: APIError{Code: string(typed.Code()), Message: msg}}
	if meta.DetailsAllowed {
		payload.Error.Details = typed.Details()
	}

	if logg != nil {
		dump := pkgerrors.Dump(err)
		fields := map[string]any{
			"error_code":  dump.Code,
			"error_chain": dump.Chain,
			"status":      meta.HTTPStatus,
		}
		if dump.PGCode != "" {
			fields["pg_code"] = dump.PGCode
			fields["pg_constraint"] = dump.PGConstraint
			fields["pg_detail"] = dump.PGDetail
		}
		ctx = logg.WithFields(ctx, fields)
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(ctx, "request.error", err)
		} else {
			logg.Warn(ctx, "request.error")
		}
	}

	writeJSON(w, meta.HTTPStatus, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
