package workflowsaas

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/workflow-saas/internal/config"
	"github.com/magabrotheeeer/workflow-saas/internal/http/middlewarectx"
	"github.com/magabrotheeeer/workflow-saas/internal/lib/jwt"
	"github.com/magabrotheeeer/workflow-saas/internal/lib/ratelimit"
	"github.com/magabrotheeeer/workflow-saas/internal/metrics"
	"github.com/magabrotheeeer/workflow-saas/internal/paymentprovider"
	authservice "github.com/magabrotheeeer/workflow-saas/internal/services/auth"
)

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New(prometheus.NewRegistry())

	r := chi.NewRouter()
	RegisterRoutes(r, Deps{
		Log: logger,
		Limits: config.RateLimits{
			Signup:       config.DefaultSignupLimit,
			ResetRequest: config.DefaultResetRequestLimit,
			ResetConfirm: config.DefaultResetConfirmLimit,
			Export:       config.DefaultExportLimit,
		},
		Auth:     authservice.NewAuthService(logger, nil, jwt.NewJWTMaker("secret", time.Hour), nil, nil),
		Verifier: paymentprovider.NewVerifier("whsec_test", 5*time.Minute),
		Store:    ratelimit.New(),
		Throttle: middlewarectx.NewUserThrottle(logger, 100, 20, time.Minute, m),
		Metrics:  m,
		DB:       okPinger{},
	})
	return r
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRoutes_PublicEndpoints(t *testing.T) {
	h := newRouter(t)

	w := do(h, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	w = do(h, http.MethodPost, "/api/v1/billing/webhook", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "missing signature header")

	w = do(h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutes_ProtectedRequireToken(t *testing.T) {
	h := newRouter(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/workflows"},
		{http.MethodPost, "/api/v1/workflows"},
		{http.MethodGet, "/api/v1/workflows/5f0c8a52-7f55-4a8e-9d4b-0b7f4b2a9e11"},
		{http.MethodGet, "/api/v1/billing/subscription"},
		{http.MethodGet, "/api/v1/billing/access"},
		{http.MethodGet, "/api/v1/account/settings"},
		{http.MethodGet, "/api/v1/account/export"},
		{http.MethodDelete, "/api/v1/account"},
		{http.MethodGet, "/api/v1/activity"},
	} {
		w := do(h, tc.method, tc.path, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestRoutes_SignupIsRateLimited(t *testing.T) {
	h := newRouter(t)

	for i := 0; i < config.DefaultSignupLimit.Requests; i++ {
		w := do(h, http.MethodPost, "/api/v1/auth/signup", `not json`)
		require.Equal(t, http.StatusBadRequest, w.Code, "request %d", i+1)
	}

	w := do(h, http.MethodPost, "/api/v1/auth/signup", `not json`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// login не ограничивается по IP
	w = do(h, http.MethodPost, "/api/v1/auth/login", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
