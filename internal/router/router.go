package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/slotta-engine/internal/handler"
	"github.com/iliyamo/slotta-engine/internal/middleware"
	"github.com/iliyamo/slotta-engine/internal/model"
)

// RegisterRoutes registers the operational endpoints: liveness, readiness
// and the Prometheus scrape endpoint for the given gatherer.
func RegisterRoutes(e *echo.Echo, db *sql.DB, rdb *redis.Client, g prometheus.Gatherer) {
	e.GET("/healthz", handler.Health)
	if db != nil {
		e.GET("/readyz", handler.Ready(db, rdb))
	}
	if g != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
	}
}

// RegisterAuth registers the provider authentication routes.  Register,
// login, refresh and logout live under /v1/auth and need no access token;
// /v1/me does.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Rotates the refresh token.
	g.POST("/refresh", a.Refresh)
	// New access token only; the refresh token stays valid.
	g.POST("/refresh-access", a.RefreshAccess)
	// Accepts a refresh_token body, a bearer token, or both.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleProvider))
	auth.GET("/me", a.Me)
}

// RegisterPublic registers the client-facing routes.  They carry no JWT and
// sit behind the rate limiter; the provider page is also served from the
// Redis response cache.  Either middleware may be nil.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, limit, cache echo.MiddlewareFunc) {
	var limited []echo.MiddlewareFunc
	if limit != nil {
		limited = append(limited, limit)
	}
	page := limited
	if cache != nil {
		// The limiter runs first so cache hits are still counted.
		page = append(append([]echo.MiddlewareFunc{}, limited...), cache)
	}
	e.GET("/v1/providers/:slug", p.GetProvider, page...)
	e.GET("/v1/services/:id/quote", p.Quote, limited...)
	e.POST("/v1/bookings/with-payment", p.CreateWithPayment, limited...)

	// The processor authenticates itself with a signature and is never
	// rate limited.
	e.POST("/v1/webhooks/stripe", p.StripeWebhook)
}
