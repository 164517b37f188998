package model

import "time"

// Service is something a provider sells by the slot.  Bookings copy the
// price and duration at creation time, so edits only affect future bookings.
//
// Fields:
//
//	ID              – primary key identifier.
//	ProviderID      – owning provider.
//	Name            – display name.
//	PriceCents      – price in minor currency units, always > 0.
//	DurationMinutes – slot length, always > 0.
//	BaseHoldCents   – optional base hold override; 0 means percentage based.
//	IsPeak          – peak slot, priced with the demand surcharge.
//	IsActive        – inactive services cannot be booked.
type Service struct {
	ID              uint64    `json:"id"`
	ProviderID      uint64    `json:"provider_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	PriceCents      int64     `json:"price_cents"`
	DurationMinutes int       `json:"duration_minutes"`
	BaseHoldCents   int64     `json:"base_hold_cents,omitempty"`
	IsPeak          bool      `json:"is_peak"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
