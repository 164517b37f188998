package model

import "time"

// Client is a customer identified by email.  The wallet balance is not a
// column here: it lives in the ledger and is joined in on read.  The
// reliability tier is likewise derived from the counters every time.
type Client struct {
	ID                uint64    `json:"id"`
	Email             string    `json:"email"`
	Name              string    `json:"name"`
	Phone             string    `json:"phone,omitempty"`
	TotalBookings     int       `json:"total_bookings"`
	CompletedBookings int       `json:"completed_bookings"`
	NoShows           int       `json:"no_shows"`
	Cancellations     int       `json:"cancellations"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// CounterDelta is added to a client's lifetime counters in the same
// transaction as the booking transition that caused it.
type CounterDelta struct {
	Total         int
	Completed     int
	NoShows       int
	Cancellations int
}

// ClientSummary is a client as seen from one provider's dashboard.
type ClientSummary struct {
	Client
	Tier          string `json:"tier"`
	WalletCents   int64  `json:"wallet_cents"`
	BookingsCount int    `json:"bookings_with_provider"`
}
