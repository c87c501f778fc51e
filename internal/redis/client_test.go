package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"stockadvisor/internal/config"
	"stockadvisor/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) *Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR is not set; skipping integration tests")
	}
	c, err := New(config.RedisConfig{Addr: addr, SnapshotTTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSnapshotRoundTrip(t *testing.T) {
	c := setupRedis(t)
	ctx := context.Background()

	snap := &models.MarketSnapshot{
		Ticker:      "TESTCACHE",
		Price:       decimal.RequireFromString("123.45"),
		Sector:      "Technology",
		RSI:         61.5,
		Volume:      1000,
		FetchedAt:   time.Now().UTC().Truncate(time.Second),
		FiftyDayAvg: 120,
	}
	require.NoError(t, c.SetSnapshot(ctx, snap))

	got, err := c.GetSnapshot(ctx, "TESTCACHE")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Price.Equal(snap.Price))
	assert.Equal(t, snap.Sector, got.Sector)
	assert.Equal(t, snap.RSI, got.RSI)
	assert.True(t, got.FetchedAt.Equal(snap.FetchedAt))

	ttl, err := c.rdb.TTL(ctx, snapshotKey("TESTCACHE")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestGetSnapshot_Miss(t *testing.T) {
	c := setupRedis(t)

	got, err := c.GetSnapshot(context.Background(), "NOT-CACHED-TICKER")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestPing(t *testing.T) {
	c := setupRedis(t)
	assert.NoError(t, c.Ping(context.Background()))

	require.NoError(t, c.Close())
	assert.Error(t, c.Ping(context.Background()))
}
