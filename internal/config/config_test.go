package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/slotta-engine/internal/policy"
)

func TestLoadPolicyConfig_Defaults(t *testing.T) {
	p := LoadPolicyConfig()
	d := policy.Default()
	assert.True(t, p.MediumPct.Equal(d.MediumPct))
	assert.Equal(t, int64(3000), p.MinPayoutCents)
	assert.Equal(t, int64(25), p.PayoutFeeCents)
	assert.Equal(t, 48*time.Hour, p.CancellationNotice)
	assert.Equal(t, "eur", p.Currency)
}

func TestLoadPolicyConfig_Overrides(t *testing.T) {
	t.Setenv("HOLD_MEDIUM_PCT", "0.3")
	t.Setenv("MIN_PAYOUT_EUR", "50")
	t.Setenv("PAYOUT_FEE_CENTS", "40")
	t.Setenv("CANCEL_NOTICE", "24h")
	t.Setenv("NOSHOW_PROVIDER_SHARE_PCT", "not-a-number")
	t.Setenv("CURRENCY", "USD")

	p := LoadPolicyConfig()
	assert.True(t, p.MediumPct.Equal(decimal.RequireFromString("0.3")))
	assert.Equal(t, int64(5000), p.MinPayoutCents)
	assert.Equal(t, int64(40), p.PayoutFeeCents)
	assert.Equal(t, 24*time.Hour, p.CancellationNotice)
	assert.True(t, p.ProviderSharePct.Equal(policy.Default().ProviderSharePct), "invalid value keeps default")
	assert.Equal(t, "usd", p.Currency)
}

func TestLoadRateLimitConfig_Clamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 1, cfg.RefillTokens)
	assert.Equal(t, 2*time.Second, cfg.RefillInterval)
	assert.Equal(t, 10*time.Second, cfg.TTL)
}

func TestLoadCacheConfig_Methods(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head ,")
	cfg := LoadCacheConfig()
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, cfg.Methods)
	assert.Equal(t, 30*time.Second, cfg.TTL)
}
