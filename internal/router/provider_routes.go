package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slotta-engine/internal/handler"
	"github.com/iliyamo/slotta-engine/internal/middleware"
	"github.com/iliyamo/slotta-engine/internal/model"
)

// RegisterProvider registers the dashboard routes.  All of them are mounted
// under /v1 and require a JWT carrying the PROVIDER role; handlers scope
// every query to the caller.
func RegisterProvider(e *echo.Echo, s *handler.ServiceHandler, b *handler.BookingHandler, w *handler.WalletHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleProvider),
	)

	// Service catalog; DELETE deactivates.
	g.GET("/services", s.List)
	g.POST("/services", s.Create)
	g.PUT("/services/:id", s.Update)
	g.DELETE("/services/:id", s.Delete)

	// Bookings and their transitions
	g.GET("/bookings", b.List)
	g.GET("/bookings/:id", b.Get)
	g.PUT("/bookings/:id/complete", b.Complete)
	g.PUT("/bookings/:id/no-show", b.NoShow)
	g.PUT("/bookings/:id/cancel", b.Cancel)
	g.PUT("/bookings/:id/reschedule", b.Reschedule)
	g.GET("/clients", b.Clients)

	// Money
	g.GET("/analytics", w.Analytics)
	g.GET("/wallet", w.Wallet)
	g.PUT("/payout-account", w.SetPayoutAccount)
	g.POST("/payouts", w.RequestPayout)
	g.GET("/payouts", w.ListPayouts)
}
