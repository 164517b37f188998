package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/slotta-engine/internal/config"
	"github.com/iliyamo/slotta-engine/internal/handler"
	"github.com/iliyamo/slotta-engine/internal/payment"
	"github.com/iliyamo/slotta-engine/internal/policy"
	"github.com/iliyamo/slotta-engine/internal/repository"
	"github.com/iliyamo/slotta-engine/internal/service"
)

func newServer(t *testing.T) (*echo.Echo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	reg := prometheus.NewRegistry()
	sandbox := payment.NewSandbox()
	deps := service.Deps{
		Store:   repository.NewSQLStore(db),
		Gateway: sandbox,
		Policy:  policy.Default(),
		Metrics: service.NewMetrics(reg),
	}
	ledger := service.NewLedger(deps)
	bookings := service.NewBookingService(deps, ledger)
	providers := repository.NewProviderRepo(db)
	catalog := repository.NewServiceRepo(db)
	cfg := config.Config{JWTSecret: "router-secret", AccessTTLMin: 5, RefreshTTLDays: 1, BcryptCost: 4}

	e := echo.New()
	RegisterRoutes(e, db, nil, reg)
	RegisterAuth(e, handler.NewAuthHandler(cfg, providers, repository.NewTokenRepo(db)), cfg.JWTSecret)
	RegisterPublic(e, handler.NewPublicHandler(providers, catalog, bookings, sandbox, nil), nil, nil)
	RegisterProvider(e,
		handler.NewServiceHandler(catalog),
		handler.NewBookingHandler(bookings),
		handler.NewWalletHandler(providers, ledger, service.NewPayoutService(deps, ledger), service.NewAnalyticsService(deps)),
		cfg.JWTSecret,
	)
	return e, mock
}

func TestRoutesRegistered(t *testing.T) {
	e, _ := newServer(t)
	have := map[string]bool{}
	for _, r := range e.Routes() {
		have[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /healthz", "GET /readyz", "GET /metrics",
		"POST /v1/auth/register", "POST /v1/auth/login", "POST /v1/auth/refresh", "POST /v1/auth/logout", "GET /v1/me",
		"GET /v1/providers/:slug", "GET /v1/services/:id/quote", "POST /v1/bookings/with-payment", "POST /v1/webhooks/stripe",
		"GET /v1/services", "POST /v1/services", "PUT /v1/services/:id", "DELETE /v1/services/:id",
		"GET /v1/bookings", "GET /v1/bookings/:id",
		"PUT /v1/bookings/:id/complete", "PUT /v1/bookings/:id/no-show", "PUT /v1/bookings/:id/cancel", "PUT /v1/bookings/:id/reschedule",
		"GET /v1/clients", "GET /v1/analytics", "GET /v1/wallet", "PUT /v1/payout-account",
		"POST /v1/payouts", "GET /v1/payouts",
	} {
		assert.True(t, have[want], want)
	}
}

func TestProviderRoutesRequireToken(t *testing.T) {
	e, _ := newServer(t)
	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/v1/bookings"},
		{http.MethodPut, "/v1/bookings/b-1/no-show"},
		{http.MethodPost, "/v1/payouts"},
		{http.MethodGet, "/v1/wallet"},
		{http.MethodGet, "/v1/me"},
	} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(r.method, r.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, r.path)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	e, mock := newServer(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	mock.ExpectPing()
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"database":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/plain")
}
