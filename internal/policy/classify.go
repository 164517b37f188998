package policy

import "time"

// Tier is a client's reliability class.
type Tier string

const (
	TierNew             Tier = "new"
	TierReliable        Tier = "reliable"
	TierNeedsProtection Tier = "needs-protection"
)

// Counters are the lifetime booking counters of a client.
type Counters struct {
	Total         int
	Completed     int
	NoShows       int
	Cancellations int
}

// Classify derives the tier from counters.  It is recomputed on every call
// and never read back from storage.
func (p Policy) Classify(c Counters) Tier {
	if c.NoShows >= p.NeedsProtectionNoShows {
		return TierNeedsProtection
	}
	if c.Total >= p.ReliableMinBookings && c.NoShows <= p.ReliableMaxNoShows {
		return TierReliable
	}
	return TierNew
}

// RiskScore is an informational 0..100 score stored on the booking.
// Clients without history score 50.  Otherwise the no-show rate weighs up to
// 60 points, the cancellation rate up to 20 and a lead time under a day up
// to 20 more.
func (p Policy) RiskScore(c Counters, lead time.Duration) int {
	if c.Total <= 0 {
		return 50
	}
	total := float64(c.Total)
	score := float64(c.NoShows)/total*60 + float64(c.Cancellations)/total*20
	if lead > 0 && lead < 24*time.Hour {
		score += 20 * (1 - lead.Hours()/24)
	}
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return int(score)
}
