package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stockadvisor/internal/config"
	"stockadvisor/internal/models"

	"github.com/redis/go-redis/v9"
)

// Client caches market snapshots so repeated analyses of the same tickers
// stay inside the provider's rate limit.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// New creates a new Redis client
func New(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewFromClient(rdb, cfg.SnapshotTTL), nil
}

func NewFromClient(rdb *redis.Client, ttl time.Duration) *Client {
	return &Client{rdb: rdb, ttl: ttl}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks if Redis is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func snapshotKey(ticker string) string {
	return fmt.Sprintf("snapshot:%s", ticker)
}

// SetSnapshot caches a snapshot with the configured TTL
func (c *Client) SetSnapshot(ctx context.Context, snap *models.MarketSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return c.rdb.Set(ctx, snapshotKey(snap.Ticker), data, c.ttl).Err()
}

// GetSnapshot returns nil, nil on a cache miss.
func (c *Client) GetSnapshot(ctx context.Context, ticker string) (*models.MarketSnapshot, error) {
	data, err := c.rdb.Get(ctx, snapshotKey(ticker)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snap models.MarketSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}
