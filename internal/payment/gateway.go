// Package payment talks to the card processor.  The engine only needs four
// capabilities: place a hold, release it, capture it and pay a provider out.
package payment

import (
	"context"
	"errors"
)

// Failure kinds reported by a Gateway.  Implementations wrap them so callers
// can match with errors.Is.
var (
	ErrCardDeclined                = errors.New("card declined")
	ErrInvalidPaymentMethod        = errors.New("invalid payment method")
	ErrAlreadyReleased             = errors.New("authorization already released")
	ErrAlreadyCaptured             = errors.New("authorization already captured")
	ErrCaptureExceedsAuthorization = errors.New("capture exceeds authorization")
	ErrAuthorizationNotFound       = errors.New("authorization not found")
	ErrAccountNotOnboarded         = errors.New("payout account not onboarded")
	ErrInsufficientFunds           = errors.New("insufficient funds")
	ErrPayoutRejected              = errors.New("payout rejected")
)

// PayoutRejected reports whether err is a final refusal of a transfer.  Any
// other error (a timeout, a dropped connection) leaves the outcome unknown.
func PayoutRejected(err error) bool {
	return errors.Is(err, ErrAccountNotOnboarded) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrPayoutRejected)
}

// AuthStatus is the state of a freshly placed hold.
type AuthStatus string

const (
	// AuthAuthorized means the funds are held and capturable.
	AuthAuthorized AuthStatus = "authorized"
	// AuthPending means the card holder still has to act (3-D Secure);
	// the gateway reports the outcome later through a webhook.
	AuthPending AuthStatus = "pending"
)

// Authorization identifies a hold at the processor.
type Authorization struct {
	Ref    string
	Status AuthStatus
}

// HoldRequest describes a hold to place.
type HoldRequest struct {
	PaymentMethodRef string
	AmountCents      int64
	Currency         string
	Description      string
	Metadata         map[string]string
}

// Gateway is the external payment capability.
type Gateway interface {
	AuthorizeHold(ctx context.Context, req HoldRequest) (Authorization, error)
	ReleaseHold(ctx context.Context, authorizationRef string) error
	CaptureHold(ctx context.Context, authorizationRef string, amountCents int64) error
	// SendPayout is idempotent per key: repeating a call with the same key
	// returns the original payout reference and moves no extra money.
	SendPayout(ctx context.Context, accountRef string, amountCents int64, currency, idempotencyKey string) (string, error)
}

// WebhookKind is the engine-relevant meaning of a processor notification.
type WebhookKind string

const (
	WebhookHoldAuthorized WebhookKind = "hold.authorized"
	WebhookHoldFailed     WebhookKind = "hold.failed"
	WebhookIgnored        WebhookKind = "ignored"
)

// WebhookEvent is a verified processor notification.
type WebhookEvent struct {
	ID               string
	Kind             WebhookKind
	AuthorizationRef string
	RawType          string
}

// WebhookVerifier authenticates and decodes processor notifications.
type WebhookVerifier interface {
	ParseWebhook(payload []byte, signature string) (WebhookEvent, error)
}
