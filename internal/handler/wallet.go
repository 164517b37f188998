package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slotta-engine/internal/middleware"
	"github.com/iliyamo/slotta-engine/internal/service"
)

// WalletHandler serves the provider's money views: analytics, ledger,
// payout account and payouts.
type WalletHandler struct {
	Providers ProviderStore
	Ledger    WalletReader
	Payouts   PayoutEngine
	Stats     AnalyticsReader
}

func NewWalletHandler(p ProviderStore, l WalletReader, po PayoutEngine, a AnalyticsReader) *WalletHandler {
	if p == nil || l == nil || po == nil || a == nil {
		panic("nil dependency passed to NewWalletHandler")
	}
	return &WalletHandler{Providers: p, Ledger: l, Payouts: po, Stats: a}
}

func (h *WalletHandler) Analytics(c echo.Context) error {
	pid, ok := middleware.ProviderID(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Stats.ProviderAnalytics(ctx, pid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Wallet returns the balance, the latest ledger rows and whether the cached
// balance matches the ledger.
func (h *WalletHandler) Wallet(c echo.Context) error {
	pid, ok := middleware.ProviderID(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Ledger.Wallet(ctx, pid, queryLimit(c, 50, 500))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

type payoutAccountReq struct {
	AccountRef string `json:"account_ref"`
}

func (h *WalletHandler) SetPayoutAccount(c echo.Context) error {
	pid, ok := middleware.ProviderID(c)
	if !ok {
		return unauthorized(c)
	}
	var req payoutAccountReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.AccountRef = strings.TrimSpace(req.AccountRef)
	if req.AccountRef == "" {
		return badRequest(c, "account_ref required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Providers.SetPayoutAccount(ctx, pid, req.AccountRef); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"payout_account_ref": req.AccountRef})
}

type payoutReq struct {
	AmountCents *int64 `json:"amount_cents"`
}

// RequestPayout pays out amount_cents, or the whole balance when it is
// omitted.  The Idempotency-Key header is required; replaying a key returns
// the original request.
func (h *WalletHandler) RequestPayout(c echo.Context) error {
	pid, ok := middleware.ProviderID(c)
	if !ok {
		return unauthorized(c)
	}
	key := strings.TrimSpace(c.Request().Header.Get("Idempotency-Key"))
	if key == "" {
		return badRequest(c, "Idempotency-Key header required")
	}
	var req payoutReq
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "invalid body")
		}
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	p, err := h.Payouts.RequestPayout(ctx, pid, req.AmountCents, key)
	if (errors.Is(err, service.ErrPayoutFailed) || errors.Is(err, service.ErrPayoutPending)) && p.ID != "" {
		// Failed requests are reversed and kept under their key.  Pending
		// ones keep the debit until a retry with the same key.
		middleware.SetError(c, err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": err.Error(), "payout": p})
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *WalletHandler) ListPayouts(c echo.Context) error {
	pid, ok := middleware.ProviderID(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Payouts.List(ctx, pid, queryLimit(c, 50, 500))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
