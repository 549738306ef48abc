package responses

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

var quiet = logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

func decodeError(t *testing.T, w *httptest.ResponseRecorder) APIError {
	t.Helper()
	var body ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body.Error
}

func TestWriteSuccessStatus(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"hello": "world"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var body struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "world", body.Data["hello"])
}

func TestWriteErrorMapsTypedError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), quiet, w, pkgerrors.New(pkgerrors.CodeValidation, "bad input").
		WithDetails(map[string]string{"field": "email"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	apiErr := decodeError(t, w)
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
	assert.Equal(t, "bad input", apiErr.Message)
	assert.NotNil(t, apiErr.Details)
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), quiet, w, errors.New("dial tcp 10.0.0.5:5432: refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	apiErr := decodeError(t, w)
	assert.Equal(t, "INTERNAL_ERROR", apiErr.Code)
	assert.Equal(t, "internal server error", apiErr.Message)
}

func TestWriteOutcome(t *testing.T) {
	tests := []struct {
		reason   string
		wantCode int
		wantAPI  string
	}{
		{reason: ReasonInsufficientStock, wantCode: http.StatusConflict, wantAPI: "INSUFFICIENT_STOCK"},
		{reason: ReasonInvalidStateTransition, wantCode: http.StatusUnprocessableEntity, wantAPI: "STATE_CONFLICT"},
		{reason: ReasonAlreadySubscribed, wantCode: http.StatusConflict, wantAPI: "CONFLICT"},
		{reason: "mystery", wantCode: http.StatusInternalServerError, wantAPI: "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteOutcome(context.Background(), quiet, w, http.StatusOK, tt.reason, "", map[string]any{"success": false})
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantAPI, decodeError(t, w).Code)
		})
	}

	w := httptest.NewRecorder()
	WriteOutcome(context.Background(), quiet, w, http.StatusCreated, "", "", map[string]any{"success": true})
	assert.Equal(t, http.StatusCreated, w.Code)
}
