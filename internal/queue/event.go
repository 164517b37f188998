// Package queue defines message payloads exchanged over the message broker
// and the RabbitMQ publisher and consumer that carry them.
package queue

import "time"

// Routing keys of domain events.
const (
	BookingCreated     = "booking.created"
	BookingConfirmed   = "booking.confirmed"
	BookingCompleted   = "booking.completed"
	BookingNoShow      = "booking.no_show"
	BookingCancelled   = "booking.cancelled"
	BookingRescheduled = "booking.rescheduled"
	PayoutSent         = "payout.sent"
	PayoutFailed       = "payout.failed"
)

// Event is published after the database transaction that caused it has
// committed.  It carries enough for a notification consumer to address the
// client or provider without querying the primary database.
type Event struct {
	ID                 string    `json:"id"`
	Type               string    `json:"type"`
	ProviderID         uint64    `json:"provider_id"`
	ClientID           uint64    `json:"client_id,omitempty"`
	ClientEmail        string    `json:"client_email,omitempty"`
	BookingID          string    `json:"booking_id,omitempty"`
	PayoutID           string    `json:"payout_id,omitempty"`
	Status             string    `json:"status,omitempty"`
	ScheduledAt        time.Time `json:"scheduled_at,omitempty"`
	AmountCents        int64     `json:"amount_cents"` // hold, or payout amount
	Currency           string    `json:"currency"`
	ProviderShareCents int64     `json:"provider_share_cents,omitempty"`
	ClientShareCents   int64     `json:"client_share_cents,omitempty"`
	OccurredAt         time.Time `json:"occurred_at"`
}
