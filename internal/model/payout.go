package model

import "time"

// PayoutStatus tracks a payout through the external transfer.
type PayoutStatus string

const (
	PayoutRequested PayoutStatus = "requested"
	PayoutSent      PayoutStatus = "sent"
	PayoutFailed    PayoutStatus = "failed"
)

// PayoutRequest drains part of a provider balance to the provider's
// external account.  (ProviderID, IdempotencyKey) is unique.
type PayoutRequest struct {
	ID             string       `json:"id"`
	ProviderID     uint64       `json:"provider_id"`
	AmountCents    int64        `json:"amount_cents"`
	FeeCents       int64        `json:"fee_cents"`
	Currency       string       `json:"currency"`
	Status         PayoutStatus `json:"status"`
	IdempotencyKey string       `json:"idempotency_key"`
	ExternalRef    string       `json:"external_ref,omitempty"`
	FailureReason  string       `json:"failure_reason,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}
