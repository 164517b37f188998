package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/slotta-engine/internal/model"
)

// ProviderAnalytics is the dashboard aggregate.  Every field is computed
// from bookings and ledger rows on read.
type ProviderAnalytics struct {
	ProviderID         uint64    `json:"provider_id"`
	TotalBookings      int       `json:"total_bookings"`
	Completed          int       `json:"completed"`
	NoShows            int       `json:"no_shows"`
	Cancelled          int       `json:"cancelled"`
	Active             int       `json:"active"`
	NoShowRate         float64   `json:"no_show_rate"`
	TimeProtectedCents int64     `json:"time_protected_cents"`
	AverageHoldCents   int64     `json:"average_hold_cents"`
	BalanceCents       int64     `json:"balance_cents"`
	Currency           string    `json:"currency"`
	ComputedAt         time.Time `json:"computed_at"`
}

// AnalyticsCache keeps computed aggregates in Redis until the next
// committed change for the provider.  A nil cache or client disables it.
type AnalyticsCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewAnalyticsCache(rdb *redis.Client, prefix string, ttl time.Duration) *AnalyticsCache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if prefix == "" {
		prefix = "slotta"
	}
	return &AnalyticsCache{rdb: rdb, ttl: ttl, prefix: prefix}
}

func (c *AnalyticsCache) key(providerID uint64) string {
	return fmt.Sprintf("%s:analytics:%d", c.prefix, providerID)
}

func (c *AnalyticsCache) Get(ctx context.Context, providerID uint64) (ProviderAnalytics, bool) {
	if c == nil {
		return ProviderAnalytics{}, false
	}
	bs, err := c.rdb.Get(ctx, c.key(providerID)).Bytes()
	if err != nil {
		return ProviderAnalytics{}, false
	}
	var a ProviderAnalytics
	if err := json.Unmarshal(bs, &a); err != nil {
		return ProviderAnalytics{}, false
	}
	return a, true
}

func (c *AnalyticsCache) Set(ctx context.Context, a ProviderAnalytics) {
	if c == nil {
		return
	}
	bs, err := json.Marshal(a)
	if err != nil {
		return
	}
	_ = c.rdb.SetEx(ctx, c.key(a.ProviderID), bs, c.ttl).Err()
}

func (c *AnalyticsCache) Invalidate(ctx context.Context, providerID uint64) {
	if c == nil {
		return
	}
	_ = c.rdb.Del(context.WithoutCancel(ctx), c.key(providerID)).Err()
}

// AnalyticsService computes provider analytics.
type AnalyticsService struct {
	Deps
}

func NewAnalyticsService(d Deps) *AnalyticsService { return &AnalyticsService{Deps: d} }

// ProviderAnalytics returns the aggregate for a provider, from the cache
// when a fresh copy is there.
func (s *AnalyticsService) ProviderAnalytics(ctx context.Context, providerID uint64) (ProviderAnalytics, error) {
	if a, ok := s.Cache.Get(ctx, providerID); ok {
		return a, nil
	}
	a, err := s.Compute(ctx, providerID)
	if err != nil {
		return ProviderAnalytics{}, err
	}
	s.Cache.Set(ctx, a)
	return a, nil
}

// Compute aggregates without touching the cache.
func (s *AnalyticsService) Compute(ctx context.Context, providerID uint64) (ProviderAnalytics, error) {
	st, err := s.Store.BookingStats(ctx, providerID)
	if err != nil {
		return ProviderAnalytics{}, err
	}
	bal, err := s.Store.SumTransactions(ctx, model.ProviderOwner(providerID))
	if err != nil {
		return ProviderAnalytics{}, err
	}
	a := ProviderAnalytics{
		ProviderID:         providerID,
		TotalBookings:      st.Total,
		Completed:          st.Completed,
		NoShows:            st.NoShows,
		Cancelled:          st.Cancelled,
		Active:             st.Active,
		TimeProtectedCents: st.ProtectedHoldCents,
		BalanceCents:       bal,
		Currency:           s.Policy.Currency,
		ComputedAt:         s.now(),
	}
	if st.Total > 0 {
		total := decimal.NewFromInt(int64(st.Total))
		a.NoShowRate = decimal.NewFromInt(int64(st.NoShows)).Div(total).Round(4).InexactFloat64()
		a.AverageHoldCents = decimal.NewFromInt(st.HoldSumCents).Div(total).Round(0).IntPart()
	}
	return a, nil
}
