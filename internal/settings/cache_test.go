package settings_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/lotwise/backend-lotwise/internal/pricing"
	"github.com/lotwise/backend-lotwise/internal/settings"
)

func newTestCache(t *testing.T) (*settings.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return settings.NewCache(client, 5*time.Minute), mr
}

func TestCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	rs := pricing.RateSchedule{HourlyRate: 700, GracePeriodMinutes: 10}
	require.NoError(t, cache.SetJSON(ctx, "acme:settings:rates", rs))

	var got pricing.RateSchedule
	hit, err := cache.GetJSON(ctx, "acme:settings:rates", &got)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, rs, got)
}

func TestCacheMiss(t *testing.T) {
	cache, _ := newTestCache(t)

	var got pricing.RateSchedule
	hit, err := cache.GetJSON(context.Background(), "acme:settings:rates", &got)
	require.NoError(t, err)
	require.False(t, hit)
}

func TestCacheInvalidate(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetJSON(ctx, "acme:settings:business", pricing.Business{Currency: "USD"}))
	cache.Invalidate(ctx, "acme:settings:business")
	require.False(t, mr.Exists("acme:settings:business"))
}

func TestCacheNilClientIsNoop(t *testing.T) {
	var cache *settings.Cache

	var got pricing.Business
	hit, err := cache.GetJSON(context.Background(), "k", &got)
	require.NoError(t, err)
	require.False(t, hit)
	require.NoError(t, cache.SetJSON(context.Background(), "k", got))
}
