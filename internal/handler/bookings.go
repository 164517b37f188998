package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slotta-engine/internal/middleware"
	"github.com/iliyamo/slotta-engine/internal/model"
	"github.com/iliyamo/slotta-engine/internal/service"
)

// BookingHandler exposes the provider's bookings and their lifecycle
// transitions.
type BookingHandler struct {
	Bookings BookingEngine
}

func NewBookingHandler(b BookingEngine) *BookingHandler {
	if b == nil {
		panic("nil engine passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: b}
}

// List returns the caller's bookings, newest first, optionally filtered by
// ?status=.
func (h *BookingHandler) List(c echo.Context) error {
	pid, ok := middleware.ProviderID(c)
	if !ok {
		return unauthorized(c)
	}
	status := model.BookingStatus(strings.ToLower(strings.TrimSpace(c.QueryParam("status"))))
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Bookings.List(ctx, pid, status, queryLimit(c, 100, 500))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns one booking with its status history.
func (h *BookingHandler) Get(c echo.Context) error {
	pid, ok := middleware.ProviderID(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Bookings.Get(ctx, pid, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

type transitionFunc func(h *BookingHandler, c echo.Context, pid uint64, id string) (service.TransitionResult, error)

func (h *BookingHandler) run(c echo.Context, fn transitionFunc) error {
	pid, ok := middleware.ProviderID(c)
	if !ok {
		return unauthorized(c)
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return badRequest(c, "booking id required")
	}
	res, err := fn(h, c, pid, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Complete marks the appointment as attended and releases the hold.
func (h *BookingHandler) Complete(c echo.Context) error {
	return h.run(c, func(h *BookingHandler, c echo.Context, pid uint64, id string) (service.TransitionResult, error) {
		ctx, cancel := withTimeout(c)
		defer cancel()
		return h.Bookings.MarkCompleted(ctx, pid, id)
	})
}

// NoShow captures the hold and splits it between provider and client.
func (h *BookingHandler) NoShow(c echo.Context) error {
	return h.run(c, func(h *BookingHandler, c echo.Context, pid uint64, id string) (service.TransitionResult, error) {
		ctx, cancel := withTimeout(c)
		defer cancel()
		return h.Bookings.MarkNoShow(ctx, pid, id)
	})
}

type cancelReq struct {
	Reason string `json:"reason"`
}

// Cancel releases the hold, or settles it like a no-show when the notice
// period has passed.
func (h *BookingHandler) Cancel(c echo.Context) error {
	var req cancelReq
	// An empty body is a cancellation without a reason.
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "invalid body")
		}
	}
	return h.run(c, func(h *BookingHandler, c echo.Context, pid uint64, id string) (service.TransitionResult, error) {
		ctx, cancel := withTimeout(c)
		defer cancel()
		return h.Bookings.Cancel(ctx, pid, id, strings.TrimSpace(req.Reason))
	})
}

type rescheduleReq struct {
	ScheduledAt time.Time `json:"scheduled_at"`
}

// Reschedule moves an active booking before its reschedule deadline.
func (h *BookingHandler) Reschedule(c echo.Context) error {
	pid, ok := middleware.ProviderID(c)
	if !ok {
		return unauthorized(c)
	}
	var req rescheduleReq
	if err := c.Bind(&req); err != nil || req.ScheduledAt.IsZero() {
		return badRequest(c, "scheduled_at required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	b, err := h.Bookings.Reschedule(ctx, pid, c.Param("id"), req.ScheduledAt)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Clients lists everyone who booked with the caller, with their current
// tier and wallet balance.
func (h *BookingHandler) Clients(c echo.Context) error {
	pid, ok := middleware.ProviderID(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Bookings.Clients(ctx, pid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
