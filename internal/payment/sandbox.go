package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Test payment methods understood by the sandbox.
const (
	SandboxCardOK             = "pm_card_visa"
	SandboxCardDeclined       = "pm_card_chargeDeclined"
	SandboxCardRequiresAction = "pm_card_threeDSecureRequired"
)

type sandboxHold struct {
	amount   int64
	captured int64
	status   string // requires_capture | requires_action | canceled | succeeded
}

// Sandbox is an in-memory Gateway used when no processor key is configured
// and in tests.  It enforces the same state rules as the real processor.
type Sandbox struct {
	mu      sync.Mutex
	holds   map[string]*sandboxHold
	payouts map[string]string // idempotency key -> payout ref

	// FailPayouts makes every new payout fail with this error.
	FailPayouts error

	Captures int
	Releases int
	Payouts  int
}

func NewSandbox() *Sandbox {
	return &Sandbox{holds: map[string]*sandboxHold{}, payouts: map[string]string{}}
}

func (s *Sandbox) AuthorizeHold(ctx context.Context, req HoldRequest) (Authorization, error) {
	if err := ctx.Err(); err != nil {
		return Authorization{}, err
	}
	if !strings.HasPrefix(req.PaymentMethodRef, "pm_") {
		return Authorization{}, fmt.Errorf("payment method %q: %w", req.PaymentMethodRef, ErrInvalidPaymentMethod)
	}
	if req.PaymentMethodRef == SandboxCardDeclined || req.AmountCents <= 0 {
		return Authorization{}, ErrCardDeclined
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := "pi_sandbox_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	h := &sandboxHold{amount: req.AmountCents, status: "requires_capture"}
	auth := Authorization{Ref: ref, Status: AuthAuthorized}
	if req.PaymentMethodRef == SandboxCardRequiresAction {
		h.status = "requires_action"
		auth.Status = AuthPending
	}
	s.holds[ref] = h
	return auth, nil
}

func (s *Sandbox) ReleaseHold(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.holds[ref]
	if !ok {
		return ErrAuthorizationNotFound
	}
	switch h.status {
	case "canceled":
		return ErrAlreadyReleased
	case "succeeded":
		return ErrAlreadyCaptured
	}
	h.status = "canceled"
	s.Releases++
	return nil
}

func (s *Sandbox) CaptureHold(ctx context.Context, ref string, amount int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.holds[ref]
	if !ok {
		return ErrAuthorizationNotFound
	}
	switch h.status {
	case "canceled":
		return ErrAlreadyReleased
	case "succeeded":
		return ErrAlreadyCaptured
	case "requires_action":
		return fmt.Errorf("hold %s not authorized yet: %w", ref, ErrCaptureExceedsAuthorization)
	}
	if amount > h.amount {
		return ErrCaptureExceedsAuthorization
	}
	h.status = "succeeded"
	h.captured = amount
	s.Captures++
	return nil
}

func (s *Sandbox) SendPayout(ctx context.Context, account string, amount int64, currency, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if account == "" {
		return "", ErrAccountNotOnboarded
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref, ok := s.payouts[key]; ok {
		return ref, nil
	}
	if s.FailPayouts != nil {
		return "", s.FailPayouts
	}
	ref := "tr_sandbox_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	s.payouts[key] = ref
	s.Payouts++
	return ref, nil
}

// Complete3DS simulates the card holder finishing authentication.
func (s *Sandbox) Complete3DS(ref string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.holds[ref]
	if !ok || h.status != "requires_action" {
		return false
	}
	h.status = "requires_capture"
	return true
}

// HoldStatus reports the processor-side state of a hold.
func (s *Sandbox) HoldStatus(ref string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.holds[ref]; ok {
		return h.status
	}
	return ""
}

// ParseWebhook accepts unsigned JSON {"id","type","authorization_ref"}.
func (s *Sandbox) ParseWebhook(payload []byte, _ string) (WebhookEvent, error) {
	var body struct {
		ID               string `json:"id"`
		Type             string `json:"type"`
		AuthorizationRef string `json:"authorization_ref"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return WebhookEvent{}, fmt.Errorf("decode sandbox webhook: %w", err)
	}
	ev := WebhookEvent{ID: body.ID, RawType: body.Type, AuthorizationRef: body.AuthorizationRef, Kind: WebhookIgnored}
	switch body.Type {
	case "hold.authorized":
		ev.Kind = WebhookHoldAuthorized
	case "hold.failed":
		ev.Kind = WebhookHoldFailed
	}
	return ev, nil
}
