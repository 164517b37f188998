// Package policy holds the numeric rules that size a booking hold and split
// a captured hold.  Everything here is pure: no I/O, no clocks, no globals.
// All constants are fields of Policy so deployments can override them.
package policy

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidInput is returned for non-positive prices or durations and for
// prices too small to carry any hold.
var ErrInvalidInput = errors.New("invalid input")

// Policy is the full set of tunable numbers.  Percentages and factors are
// decimals; money is minor currency units.
type Policy struct {
	// Duration buckets: < ShortMaxMinutes is short, <= LongMinMinutes is
	// medium, anything longer is long.
	ShortMaxMinutes int
	LongMinMinutes  int

	ShortPct  decimal.Decimal
	MediumPct decimal.Decimal
	LongPct   decimal.Decimal

	ReliableFactor        decimal.Decimal
	NewFactor             decimal.Decimal
	NeedsProtectionFactor decimal.Decimal

	PeakMultiplier               decimal.Decimal
	CancellationHistoryFactor    decimal.Decimal
	CancellationHistoryThreshold int

	MaxHoldPct            decimal.Decimal
	LongServiceFloorCents int64

	ReliableMinBookings    int
	ReliableMaxNoShows     int
	NeedsProtectionNoShows int

	ProviderSharePct decimal.Decimal

	CancellationNotice time.Duration
	RescheduleCutoff   time.Duration

	MinPayoutCents int64
	PayoutFeeCents int64

	Currency string
}

// Default returns the published policy.
func Default() Policy {
	return Policy{
		ShortMaxMinutes: 60,
		LongMinMinutes:  180,

		ShortPct:  decimal.RequireFromString("0.275"),
		MediumPct: decimal.RequireFromString("0.325"),
		LongPct:   decimal.RequireFromString("0.40"),

		ReliableFactor:        decimal.RequireFromString("0.8"),
		NewFactor:             decimal.RequireFromString("1.2"),
		NeedsProtectionFactor: decimal.RequireFromString("1.3"),

		PeakMultiplier:               decimal.RequireFromString("1.15"),
		CancellationHistoryFactor:    decimal.RequireFromString("1.3"),
		CancellationHistoryThreshold: 2,

		MaxHoldPct:            decimal.RequireFromString("0.70"),
		LongServiceFloorCents: 1000,

		ReliableMinBookings:    3,
		ReliableMaxNoShows:     1,
		NeedsProtectionNoShows: 2,

		ProviderSharePct: decimal.RequireFromString("0.60"),

		CancellationNotice: 48 * time.Hour,
		RescheduleCutoff:   24 * time.Hour,

		MinPayoutCents: 3000,
		PayoutFeeCents: 25,

		Currency: "eur",
	}
}
