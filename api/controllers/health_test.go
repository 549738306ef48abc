package controllers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stubRevoker struct {
	jti string
	err error
}

func (s *stubRevoker) Revoke(_ context.Context, jti string, _ time.Time) error {
	s.jti = jti
	return s.err
}

func TestHealthReadyReportsFailingDependency(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	checks := []ReadinessCheck{
		{Name: "database", Ping: func(context.Context) error { return nil }},
		{Name: "redis", Ping: func(context.Context) error { return errors.New("connection refused") }},
	}

	rec, env := serve(t, HealthReady(cfg, testLogger(), checks...), newRequest(http.MethodGet, "/health/ready", "", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeDependency), env.Error.Code)
	assert.Equal(t, "test", rec.Header().Get(envHeader))

	rec, _ = serve(t, HealthReady(cfg, testLogger(), checks[0]), newRequest(http.MethodGet, "/health/ready", "", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogoutRevokesCurrentToken(t *testing.T) {
	revoker := &stubRevoker{}
	req := newRequest(http.MethodPost, "/", "", nil)

	rec, _ := serve(t, Logout(revoker, testLogger()), req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ctx := middleware.WithToken(req.Context(), "jti-1", time.Now().Add(time.Hour))
	rec, _ = serve(t, Logout(revoker, testLogger()), req.WithContext(ctx))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jti-1", revoker.jti)

	revoker.err = errors.New("redis down")
	rec, _ = serve(t, Logout(revoker, testLogger()), req.WithContext(ctx))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
