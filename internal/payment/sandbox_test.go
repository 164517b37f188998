package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandbox_HoldLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewSandbox()

	auth, err := s.AuthorizeHold(ctx, HoldRequest{PaymentMethodRef: SandboxCardOK, AmountCents: 5850, Currency: "eur"})
	require.NoError(t, err)
	assert.Equal(t, AuthAuthorized, auth.Status)

	assert.ErrorIs(t, s.CaptureHold(ctx, auth.Ref, 6000), ErrCaptureExceedsAuthorization)
	require.NoError(t, s.CaptureHold(ctx, auth.Ref, 5850))
	assert.ErrorIs(t, s.CaptureHold(ctx, auth.Ref, 5850), ErrAlreadyCaptured)
	assert.ErrorIs(t, s.ReleaseHold(ctx, auth.Ref), ErrAlreadyCaptured)
	assert.Equal(t, 1, s.Captures)

	other, err := s.AuthorizeHold(ctx, HoldRequest{PaymentMethodRef: SandboxCardOK, AmountCents: 100, Currency: "eur"})
	require.NoError(t, err)
	require.NoError(t, s.ReleaseHold(ctx, other.Ref))
	assert.ErrorIs(t, s.ReleaseHold(ctx, other.Ref), ErrAlreadyReleased)
	assert.Equal(t, "canceled", s.HoldStatus(other.Ref))
}

func TestSandbox_AuthorizeFailures(t *testing.T) {
	ctx := context.Background()
	s := NewSandbox()

	_, err := s.AuthorizeHold(ctx, HoldRequest{PaymentMethodRef: SandboxCardDeclined, AmountCents: 100})
	assert.True(t, errors.Is(err, ErrCardDeclined))

	_, err = s.AuthorizeHold(ctx, HoldRequest{PaymentMethodRef: "tok_bogus", AmountCents: 100})
	assert.True(t, errors.Is(err, ErrInvalidPaymentMethod))

	auth, err := s.AuthorizeHold(ctx, HoldRequest{PaymentMethodRef: SandboxCardRequiresAction, AmountCents: 100})
	require.NoError(t, err)
	assert.Equal(t, AuthPending, auth.Status)
	assert.Error(t, s.CaptureHold(ctx, auth.Ref, 100))
	assert.True(t, s.Complete3DS(auth.Ref))
	assert.NoError(t, s.CaptureHold(ctx, auth.Ref, 100))
}

func TestSandbox_PayoutIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewSandbox()

	_, err := s.SendPayout(ctx, "", 3000, "eur", "k1")
	assert.ErrorIs(t, err, ErrAccountNotOnboarded)

	ref1, err := s.SendPayout(ctx, "acct_1", 3000, "eur", "k1")
	require.NoError(t, err)
	ref2, err := s.SendPayout(ctx, "acct_1", 3000, "eur", "k1")
	require.NoError(t, err)
	assert.Equal(t, ref1, ref2)
	assert.Equal(t, 1, s.Payouts)

	s.FailPayouts = ErrInsufficientFunds
	_, err = s.SendPayout(ctx, "acct_1", 3000, "eur", "k2")
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestSandbox_ParseWebhook(t *testing.T) {
	s := NewSandbox()
	ev, err := s.ParseWebhook([]byte(`{"id":"evt_1","type":"hold.authorized","authorization_ref":"pi_1"}`), "")
	require.NoError(t, err)
	assert.Equal(t, WebhookHoldAuthorized, ev.Kind)
	assert.Equal(t, "pi_1", ev.AuthorizationRef)

	_, err = s.ParseWebhook([]byte(`{`), "")
	assert.Error(t, err)
}
