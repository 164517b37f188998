package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/slotta-engine/internal/model"
	"github.com/iliyamo/slotta-engine/internal/payment"
	"github.com/iliyamo/slotta-engine/internal/service"
)

// maxWebhookBytes caps the processor notification body.
const maxWebhookBytes = 64 << 10

// PublicHandler serves the client-facing booking page, checkout and the
// processor webhook.  None of these routes carry a JWT.
type PublicHandler struct {
	Providers ProviderStore
	Services  ServiceCatalog
	Bookings  BookingEngine
	Webhooks  payment.WebhookVerifier
	Log       *logrus.Logger
}

func NewPublicHandler(p ProviderStore, s ServiceCatalog, b BookingEngine, w payment.WebhookVerifier, log *logrus.Logger) *PublicHandler {
	if p == nil || s == nil || b == nil || w == nil {
		panic("nil dependency passed to NewPublicHandler")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &PublicHandler{Providers: p, Services: s, Bookings: b, Webhooks: w, Log: log}
}

type publicService struct {
	ID              uint64 `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	PriceCents      int64  `json:"price_cents"`
	DurationMinutes int    `json:"duration_minutes"`
	IsPeak          bool   `json:"is_peak"`
	// HoldFromCents is the hold a first-time client would pay.
	HoldFromCents int64  `json:"hold_from_cents"`
	Currency      string `json:"currency"`
}

type publicProvider struct {
	Name     string          `json:"name"`
	Slug     string          `json:"slug"`
	Services []publicService `json:"services"`
}

// GetProvider returns the public booking page of a provider: name and the
// active services with a hold preview for a new client.
func (h *PublicHandler) GetProvider(c echo.Context) error {
	slug := strings.ToLower(strings.TrimSpace(c.Param("slug")))
	if slug == "" {
		return badRequest(c, "slug required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	p, err := h.Providers.GetBySlug(ctx, slug)
	if err != nil {
		return respondError(c, err)
	}
	svcs, err := h.Services.ListByProvider(ctx, p.ID, true)
	if err != nil {
		return respondError(c, err)
	}
	out := publicProvider{Name: p.Name, Slug: p.Slug, Services: make([]publicService, 0, len(svcs))}
	for _, s := range svcs {
		q, err := h.Bookings.Quote(ctx, s.ID, "")
		if err != nil {
			return respondError(c, err)
		}
		out.Services = append(out.Services, publicService{
			ID:              s.ID,
			Name:            s.Name,
			Description:     s.Description,
			PriceCents:      s.PriceCents,
			DurationMinutes: s.DurationMinutes,
			IsPeak:          s.IsPeak,
			HoldFromCents:   q.HoldCents,
			Currency:        q.Currency,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// Quote previews the hold for ?client_email=, or for a new client when the
// email is absent.
func (h *PublicHandler) Quote(c echo.Context) error {
	id, ok := pathUint(c, "id")
	if !ok {
		return badRequest(c, "invalid service id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	q, err := h.Bookings.Quote(ctx, id, c.QueryParam("client_email"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, q)
}

type checkoutReq struct {
	ServiceID     uint64    `json:"service_id"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	ClientEmail   string    `json:"client_email"`
	ClientName    string    `json:"client_name"`
	ClientPhone   string    `json:"client_phone"`
	PaymentMethod string    `json:"payment_method"`
	Notes         string    `json:"notes"`
}

// CreateWithPayment places the hold and books the slot.  A booking still
// waiting for card authentication comes back as 202 with status pending.
func (h *PublicHandler) CreateWithPayment(c echo.Context) error {
	var req checkoutReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.ScheduledAt.IsZero() {
		return badRequest(c, "scheduled_at required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	res, err := h.Bookings.CreateWithPayment(ctx, service.CreateBookingInput{
		ServiceID:        req.ServiceID,
		ScheduledAt:      req.ScheduledAt,
		ClientEmail:      req.ClientEmail,
		ClientName:       req.ClientName,
		ClientPhone:      req.ClientPhone,
		PaymentMethodRef: req.PaymentMethod,
		Notes:            req.Notes,
	})
	if err != nil {
		return respondError(c, err)
	}
	status := http.StatusCreated
	if res.Booking.Status == model.StatusPending {
		status = http.StatusAccepted
	}
	return c.JSON(status, res)
}

// StripeWebhook verifies and applies a processor notification.  Unknown
// authorizations and notifications that no longer fit the booking's state
// are acknowledged so the processor stops retrying them.
func (h *PublicHandler) StripeWebhook(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBytes))
	if err != nil {
		return badRequest(c, "unreadable body")
	}
	ev, err := h.Webhooks.ParseWebhook(payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		h.Log.WithError(err).Warn("webhook rejected")
		return badRequest(c, "invalid signature")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	res, err := h.Bookings.HandleWebhook(ctx, ev)
	if errors.Is(err, service.ErrNotFound) || errors.Is(err, service.ErrInvalidTransition) {
		h.Log.WithFields(logrus.Fields{"event_id": ev.ID, "authorization_ref": ev.AuthorizationRef}).WithError(err).Info("webhook not applied")
		return c.JSON(http.StatusOK, echo.Map{"received": true, "applied": false})
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true, "applied": !res.NoOp})
}
