package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slotta-engine/internal/middleware"
	"github.com/iliyamo/slotta-engine/internal/model"
)

// ServiceHandler manages the authenticated provider's catalog.
type ServiceHandler struct {
	Services ServiceCatalog
}

func NewServiceHandler(s ServiceCatalog) *ServiceHandler {
	if s == nil {
		panic("nil catalog passed to NewServiceHandler")
	}
	return &ServiceHandler{Services: s}
}

type serviceReq struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	PriceCents      int64  `json:"price_cents"`
	DurationMinutes int    `json:"duration_minutes"`
	BaseHoldCents   int64  `json:"base_hold_cents"`
	IsPeak          bool   `json:"is_peak"`
	IsActive        *bool  `json:"is_active"`
}

func (r *serviceReq) validate() string {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	switch {
	case r.Name == "":
		return "name required"
	case r.PriceCents <= 0:
		return "price_cents must be positive"
	case r.DurationMinutes <= 0:
		return "duration_minutes must be positive"
	case r.BaseHoldCents < 0:
		return "base_hold_cents cannot be negative"
	}
	return ""
}

func (r serviceReq) apply(s *model.Service) {
	s.Name = r.Name
	s.Description = r.Description
	s.PriceCents = r.PriceCents
	s.DurationMinutes = r.DurationMinutes
	s.BaseHoldCents = r.BaseHoldCents
	s.IsPeak = r.IsPeak
	if r.IsActive != nil {
		s.IsActive = *r.IsActive
	}
}

// List returns every service of the caller, inactive ones included.
func (h *ServiceHandler) List(c echo.Context) error {
	pid, ok := middleware.ProviderID(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Services.ListByProvider(ctx, pid, false)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ServiceHandler) Create(c echo.Context) error {
	pid, ok := middleware.ProviderID(c)
	if !ok {
		return unauthorized(c)
	}
	var req serviceReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if msg := req.validate(); msg != "" {
		return badRequest(c, msg)
	}
	s := model.Service{ProviderID: pid, IsActive: true}
	req.apply(&s)

	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Services.Create(ctx, &s); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, s)
}

// Update replaces the editable fields.  Existing bookings keep the price
// and duration they were made with.
func (h *ServiceHandler) Update(c echo.Context) error {
	pid, ok := middleware.ProviderID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathUint(c, "id")
	if !ok {
		return badRequest(c, "invalid service id")
	}
	var req serviceReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if msg := req.validate(); msg != "" {
		return badRequest(c, msg)
	}

	ctx, cancel := withTimeout(c)
	defer cancel()
	current, err := h.Services.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if current.ProviderID != pid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	req.apply(&current)
	if err := h.Services.Update(ctx, pid, &current); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, current)
}

// Delete deactivates the service.  Rows are kept for the bookings that
// reference them.
func (h *ServiceHandler) Delete(c echo.Context) error {
	pid, ok := middleware.ProviderID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathUint(c, "id")
	if !ok {
		return badRequest(c, "invalid service id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Services.Deactivate(ctx, pid, id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
