package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"authguard/internal/audit"
	"authguard/internal/auth"
	"authguard/internal/config"
	"authguard/internal/guard"
	"authguard/internal/httpapi"
	"authguard/internal/ratelimit"
	"authguard/internal/rbac"
	"authguard/internal/users"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestRouter_HealthAndMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	codec, err := auth.NewCodec(config.AuthConfig{
		AccessSecret:    "a",
		RefreshSecret:   "b",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	limiter := ratelimit.New(ratelimit.NewMemoryStore(), 5, time.Minute)
	h := &httpapi.Handlers{
		Users:   users.NewService(users.NewMemoryRepo(), auth.NewHasher(bcrypt.MinCost)),
		Codec:   codec,
		Cookies: auth.NewCookieStore(codec, config.CookieConfig{}, httpapi.RefreshPath),
		Guards:  guard.New(auth.NewResolver(codec), rbac.NewTable(), limiter, guard.WithMetrics(guard.NewMetrics(reg))),
		Audit:   audit.NewService(audit.NewMemoryRepo()),
	}
	r := newRouter(slog.New(slog.NewTextHandler(io.Discard, nil)), h, reg, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `authguard_guard_decisions_total{guard="authenticate",outcome="deny"} 1`)
}
