package model

import "time"

// BookingStatus is the lifecycle state stored in bookings.status.
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCompleted BookingStatus = "completed"
	StatusNoShow    BookingStatus = "no-show"
	StatusCancelled BookingStatus = "cancelled"
)

// Active reports whether the hold is still in effect.
func (s BookingStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Terminal reports whether no further transition is possible.
func (s BookingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusNoShow || s == StatusCancelled
}

// Valid reports whether s is one of the known statuses.
func (s BookingStatus) Valid() bool {
	return s.Active() || s.Terminal()
}

// Booking is the central entity.  Price, duration and hold are snapshots
// taken at checkout and never follow later service edits.
//
// Fields:
//
//	ID                 – uuid primary key.
//	ProviderID         – provider who delivers the service.
//	ServiceID          – booked service.
//	ClientID           – client who booked.
//	ScheduledAt        – appointment start (UTC).
//	DurationMinutes    – duration snapshot.
//	Status             – lifecycle state.
//	PriceCents         – price snapshot in minor units.
//	HoldCents          – authorized hold snapshot in minor units.
//	Currency           – ISO code, lower case as the gateway expects.
//	ClientTier         – tier used to size the hold.
//	RiskScore          – 0..100, informational.
//	RescheduleDeadline – last instant a reschedule is accepted.
//	AuthorizationRef   – external payment authorization id.
//	StatusChangedAt    – when Status last changed.
type Booking struct {
	ID                 string        `json:"id"`
	ProviderID         uint64        `json:"provider_id"`
	ServiceID          uint64        `json:"service_id"`
	ClientID           uint64        `json:"client_id"`
	ScheduledAt        time.Time     `json:"scheduled_at"`
	DurationMinutes    int           `json:"duration_minutes"`
	Status             BookingStatus `json:"status"`
	PriceCents         int64         `json:"price_cents"`
	HoldCents          int64         `json:"hold_cents"`
	Currency           string        `json:"currency"`
	ClientTier         string        `json:"client_tier"`
	RiskScore          int           `json:"risk_score"`
	RescheduleDeadline time.Time     `json:"reschedule_deadline"`
	AuthorizationRef   string        `json:"authorization_ref"`
	Notes              string        `json:"notes,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	StatusChangedAt    time.Time     `json:"status_changed_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// BookingEvent is one row of the append-only status history.
type BookingEvent struct {
	ID          uint64        `json:"id"`
	BookingID   string        `json:"booking_id"`
	FromStatus  BookingStatus `json:"from_status"`
	ToStatus    BookingStatus `json:"to_status"`
	Event       string        `json:"event"`
	Settlement  string        `json:"settlement"`
	ScheduledAt time.Time     `json:"scheduled_at"`
	CreatedAt   time.Time     `json:"created_at"`
}

// BookingStats is the raw aggregate behind provider analytics.
type BookingStats struct {
	Total              int
	Completed          int
	NoShows            int
	Cancelled          int
	Active             int
	HoldSumCents       int64 // over all bookings
	ProtectedHoldCents int64 // over active and completed bookings
}
