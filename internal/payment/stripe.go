package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/transfer"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeGateway places holds as manual-capture PaymentIntents and pays
// providers with transfers to their connected accounts.
type StripeGateway struct {
	webhookSecret string
	logger        *logrus.Logger
}

// StripeConfig for creating a new gateway.
type StripeConfig struct {
	SecretKey     string // STRIPE_SECRET_KEY
	WebhookSecret string // STRIPE_WEBHOOK_SECRET
	Logger        *logrus.Logger
}

// NewStripeGateway sets the global API key used by stripe-go.
func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	stripe.Key = cfg.SecretKey
	return &StripeGateway{webhookSecret: cfg.WebhookSecret, logger: cfg.Logger}
}

func (g *StripeGateway) AuthorizeHold(ctx context.Context, req HoldRequest) (Authorization, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.AmountCents),
		Currency:           stripe.String(req.Currency),
		PaymentMethod:      stripe.String(req.PaymentMethodRef),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		CaptureMethod:      stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		Confirm:            stripe.Bool(true),
		Metadata:           req.Metadata,
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.Context = ctx

	pi, err := paymentintent.New(params)
	if err != nil {
		return Authorization{}, mapStripeError(err)
	}

	g.logger.WithFields(logrus.Fields{
		"payment_intent": pi.ID,
		"status":         pi.Status,
		"amount":         req.AmountCents,
	}).Info("Stripe hold placed")

	switch pi.Status {
	case stripe.PaymentIntentStatusRequiresCapture:
		return Authorization{Ref: pi.ID, Status: AuthAuthorized}, nil
	case stripe.PaymentIntentStatusRequiresAction, stripe.PaymentIntentStatusProcessing:
		return Authorization{Ref: pi.ID, Status: AuthPending}, nil
	default:
		return Authorization{}, fmt.Errorf("payment intent %s in status %s: %w", pi.ID, pi.Status, ErrCardDeclined)
	}
}

func (g *StripeGateway) ReleaseHold(ctx context.Context, ref string) error {
	if err := g.checkState(ctx, ref); err != nil {
		return err
	}
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	if _, err := paymentintent.Cancel(ref, params); err != nil {
		return mapStripeError(err)
	}
	g.logger.WithField("payment_intent", ref).Info("Stripe hold released")
	return nil
}

func (g *StripeGateway) CaptureHold(ctx context.Context, ref string, amountCents int64) error {
	get := &stripe.PaymentIntentParams{}
	get.Context = ctx
	pi, err := paymentintent.Get(ref, get)
	if err != nil {
		return mapStripeError(err)
	}
	if err := stateError(pi); err != nil {
		return err
	}
	if amountCents > pi.AmountCapturable {
		return fmt.Errorf("capture %d > capturable %d: %w", amountCents, pi.AmountCapturable, ErrCaptureExceedsAuthorization)
	}
	params := &stripe.PaymentIntentCaptureParams{AmountToCapture: stripe.Int64(amountCents)}
	params.Context = ctx
	if _, err := paymentintent.Capture(ref, params); err != nil {
		return mapStripeError(err)
	}
	g.logger.WithFields(logrus.Fields{"payment_intent": ref, "amount": amountCents}).Info("Stripe hold captured")
	return nil
}

func (g *StripeGateway) SendPayout(ctx context.Context, accountRef string, amountCents int64, currency, key string) (string, error) {
	if accountRef == "" {
		return "", ErrAccountNotOnboarded
	}
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(amountCents),
		Currency:    stripe.String(currency),
		Destination: stripe.String(accountRef),
	}
	params.SetIdempotencyKey(key)
	params.Context = ctx
	tr, err := transfer.New(params)
	if err != nil {
		return "", mapPayoutError(err)
	}
	g.logger.WithFields(logrus.Fields{"transfer": tr.ID, "destination": accountRef, "amount": amountCents}).Info("Stripe payout sent")
	return tr.ID, nil
}

// ParseWebhook verifies the Stripe-Signature header and maps payment intent
// events onto hold outcomes.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("webhook signature verification failed: %w", err)
	}
	out := WebhookEvent{ID: event.ID, Kind: WebhookIgnored, RawType: string(event.Type)}
	switch string(event.Type) {
	case "payment_intent.amount_capturable_updated":
		out.Kind = WebhookHoldAuthorized
	case "payment_intent.payment_failed", "payment_intent.canceled":
		out.Kind = WebhookHoldFailed
	default:
		return out, nil
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return WebhookEvent{}, fmt.Errorf("failed to unmarshal payment intent: %w", err)
	}
	out.AuthorizationRef = pi.ID
	return out, nil
}

func (g *StripeGateway) checkState(ctx context.Context, ref string) error {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := paymentintent.Get(ref, params)
	if err != nil {
		return mapStripeError(err)
	}
	return stateError(pi)
}

func stateError(pi *stripe.PaymentIntent) error {
	switch pi.Status {
	case stripe.PaymentIntentStatusCanceled:
		return ErrAlreadyReleased
	case stripe.PaymentIntentStatusSucceeded:
		return ErrAlreadyCaptured
	}
	return nil
}

// mapPayoutError marks invalid transfer requests as final rejections.
func mapPayoutError(err error) error {
	mapped := mapStripeError(err)
	var se *stripe.Error
	if errors.As(err, &se) && se.Type == stripe.ErrorTypeInvalidRequest && !PayoutRejected(mapped) {
		return fmt.Errorf("%s: %w", se.Msg, ErrPayoutRejected)
	}
	return mapped
}

func mapStripeError(err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return err
	}
	switch {
	case se.Type == stripe.ErrorTypeCard:
		return fmt.Errorf("%s: %w", se.Msg, ErrCardDeclined)
	case se.Code == "resource_missing" && se.Param == "payment_method":
		return fmt.Errorf("%s: %w", se.Msg, ErrInvalidPaymentMethod)
	case se.Code == "resource_missing":
		return fmt.Errorf("%s: %w", se.Msg, ErrAuthorizationNotFound)
	case se.Code == "insufficient_funds", se.Code == "balance_insufficient":
		return fmt.Errorf("%s: %w", se.Msg, ErrInsufficientFunds)
	case se.Code == "account_invalid", se.Param == "destination":
		return fmt.Errorf("%s: %w", se.Msg, ErrAccountNotOnboarded)
	}
	return err
}
