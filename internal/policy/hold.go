package policy

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// HoldInput describes one booking to size.
type HoldInput struct {
	PriceCents      int64
	DurationMinutes int
	Tier            Tier
	// DemandMultiplier scales the hold for busy slots.  Zero means 1.
	DemandMultiplier decimal.Decimal
	// BaseOverrideCents replaces price × bucket percentage when > 0.
	BaseOverrideCents int64
}

// BasePct returns the duration bucket percentage.
func (p Policy) BasePct(durationMinutes int) decimal.Decimal {
	switch {
	case durationMinutes < p.ShortMaxMinutes:
		return p.ShortPct
	case durationMinutes <= p.LongMinMinutes:
		return p.MediumPct
	default:
		return p.LongPct
	}
}

// TierFactor returns the multiplier applied for a reliability tier.
// Unknown tiers are treated as new.
func (p Policy) TierFactor(t Tier) decimal.Decimal {
	switch t {
	case TierReliable:
		return p.ReliableFactor
	case TierNeedsProtection:
		return p.NeedsProtectionFactor
	default:
		return p.NewFactor
	}
}

// DemandMultiplier combines the peak slot surcharge and the cancellation
// history surcharge into one factor.
func (p Policy) DemandMultiplier(peak bool, cancellations int) decimal.Decimal {
	m := decimal.NewFromInt(1)
	if peak {
		m = m.Mul(p.PeakMultiplier)
	}
	if p.CancellationHistoryThreshold > 0 && cancellations >= p.CancellationHistoryThreshold {
		m = m.Mul(p.CancellationHistoryFactor)
	}
	return m
}

// MaxHold is the largest hold allowed for a price, rounded down so the
// hold never exceeds MaxHoldPct of the price.
func (p Policy) MaxHold(priceCents int64) int64 {
	return decimal.NewFromInt(priceCents).Mul(p.MaxHoldPct).Floor().IntPart()
}

// ComputeHold sizes a hold:
//
//	base   = price × bucket% (or the override)
//	amount = base × tier factor × demand multiplier, rounded half-up
//	long services are raised to the floor, then everything is capped
//
// The cap wins over the floor for cheap long services.  The result is
// always in [1, MaxHold(price)].
func (p Policy) ComputeHold(in HoldInput) (int64, error) {
	if in.PriceCents <= 0 {
		return 0, fmt.Errorf("price must be positive: %w", ErrInvalidInput)
	}
	if in.DurationMinutes <= 0 {
		return 0, fmt.Errorf("duration must be positive: %w", ErrInvalidInput)
	}
	mult := in.DemandMultiplier
	if mult.IsZero() {
		mult = decimal.NewFromInt(1)
	}
	if mult.IsNegative() {
		return 0, fmt.Errorf("demand multiplier must be positive: %w", ErrInvalidInput)
	}
	maxHold := p.MaxHold(in.PriceCents)
	if maxHold < 1 {
		return 0, fmt.Errorf("price %d too small to hold: %w", in.PriceCents, ErrInvalidInput)
	}

	base := decimal.NewFromInt(in.PriceCents).Mul(p.BasePct(in.DurationMinutes))
	if in.BaseOverrideCents > 0 {
		base = decimal.NewFromInt(in.BaseOverrideCents)
	}
	hold := base.Mul(p.TierFactor(in.Tier)).Mul(mult).Round(0).IntPart()

	if in.DurationMinutes > p.LongMinMinutes && hold < p.LongServiceFloorCents {
		hold = p.LongServiceFloorCents
	}
	if hold > maxHold {
		hold = maxHold
	}
	if hold < 1 {
		hold = 1
	}
	return hold, nil
}

// SplitNoShow divides a captured hold between the provider and the client
// wallet.  The two parts always add up to hold.
func (p Policy) SplitNoShow(hold int64) (provider, client int64) {
	provider = decimal.NewFromInt(hold).Mul(p.ProviderSharePct).Round(0).IntPart()
	if provider > hold {
		provider = hold
	}
	if provider < 0 {
		provider = 0
	}
	return provider, hold - provider
}
