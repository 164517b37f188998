package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/slotta-engine/internal/payment"
)

func TestAnalyticsCompute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.book(t, serviceCut, "mia@example.com", testNow.Add(72*time.Hour), payment.SandboxCardOK)
	b := f.book(t, serviceCut, "leo@example.com", testNow.Add(73*time.Hour), payment.SandboxCardOK)
	c := f.book(t, serviceCut, "ida@example.com", testNow.Add(74*time.Hour), payment.SandboxCardOK)
	f.book(t, serviceCut, "ola@example.com", testNow.Add(75*time.Hour), payment.SandboxCardOK)

	_, err := f.bookings.MarkNoShow(ctx, providerAnna, a.Booking.ID)
	require.NoError(t, err)
	_, err = f.bookings.MarkCompleted(ctx, providerAnna, b.Booking.ID)
	require.NoError(t, err)
	_, err = f.bookings.Cancel(ctx, providerAnna, c.Booking.ID, "")
	require.NoError(t, err)

	got, err := f.analytics.Compute(ctx, providerAnna)
	require.NoError(t, err)
	assert.Equal(t, 4, got.TotalBookings)
	assert.Equal(t, 1, got.Completed)
	assert.Equal(t, 1, got.NoShows)
	assert.Equal(t, 1, got.Cancelled)
	assert.Equal(t, 1, got.Active)
	assert.Equal(t, 0.25, got.NoShowRate)
	assert.Equal(t, int64(5850), got.AverageHoldCents)
	assert.Equal(t, int64(3510), got.BalanceCents)
	assert.Equal(t, "eur", got.Currency)
	assert.Equal(t, testNow, got.ComputedAt)

	empty, err := f.analytics.Compute(ctx, providerBoris)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalBookings)
	assert.Zero(t, empty.NoShowRate)
}

func TestAnalyticsCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := newFixture(t)
	f.cache = NewAnalyticsCache(rdb, "test", time.Minute)
	f.rebuild()
	ctx := context.Background()

	res := f.book(t, serviceCut, "mia@example.com", testNow.Add(72*time.Hour), payment.SandboxCardOK)
	first, err := f.analytics.ProviderAnalytics(ctx, providerAnna)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Active)
	require.True(t, mr.Exists("test:analytics:1"))
	assert.Equal(t, time.Minute, mr.TTL("test:analytics:1"))

	// Served from Redis: a later clock does not show up.
	f.now = testNow.Add(time.Hour)
	cached, err := f.analytics.ProviderAnalytics(ctx, providerAnna)
	require.NoError(t, err)
	assert.Equal(t, testNow, cached.ComputedAt)

	_, err = f.bookings.MarkNoShow(ctx, providerAnna, res.Booking.ID)
	require.NoError(t, err)
	assert.False(t, mr.Exists("test:analytics:1"))

	fresh, err := f.analytics.ProviderAnalytics(ctx, providerAnna)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.NoShows)
	assert.Equal(t, int64(3510), fresh.BalanceCents)
}

func TestAnalyticsCache_Disabled(t *testing.T) {
	assert.Nil(t, NewAnalyticsCache(nil, "x", time.Minute))

	var c *AnalyticsCache
	_, ok := c.Get(context.Background(), 1)
	assert.False(t, ok)
	assert.NotPanics(t, func() {
		c.Set(context.Background(), ProviderAnalytics{ProviderID: 1})
		c.Invalidate(context.Background(), 1)
	})
}

func TestAnalyticsCache_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	f := newFixture(t)
	f.cache = NewAnalyticsCache(rdb, "test", time.Minute)
	f.rebuild()
	mr.Close()

	got, err := f.analytics.ProviderAnalytics(context.Background(), providerAnna)
	require.NoError(t, err)
	assert.Zero(t, got.TotalBookings)
}
