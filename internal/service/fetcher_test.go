package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"stockadvisor/internal/marketdata"
	"stockadvisor/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

var fixedNow = time.Date(2026, 10, 15, 15, 0, 0, 0, time.UTC)

type fakeProvider struct {
	mu    sync.Mutex
	snaps map[string]models.MarketSnapshot
	err   error
	calls []string
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Snapshot(_ context.Context, ticker string) (*models.MarketSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, ticker)
	if p.err != nil {
		return nil, p.err
	}
	s, ok := p.snaps[ticker]
	if !ok {
		return nil, marketdata.ErrNoData
	}
	return &s, nil
}

type fakeCache struct {
	snaps map[string]models.MarketSnapshot
	sets  int
}

func (c *fakeCache) GetSnapshot(_ context.Context, ticker string) (*models.MarketSnapshot, error) {
	s, ok := c.snaps[ticker]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (c *fakeCache) SetSnapshot(_ context.Context, s *models.MarketSnapshot) error {
	if c.snaps == nil {
		c.snaps = map[string]models.MarketSnapshot{}
	}
	c.snaps[s.Ticker] = *s
	c.sets++
	return nil
}

type fakeStore struct {
	mu    sync.Mutex
	snaps map[string]models.MarketSnapshot
	saved []string
}

func (s *fakeStore) SaveSnapshot(_ context.Context, snap *models.MarketSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, snap.Ticker)
	return nil
}

func (s *fakeStore) GetLatestSnapshot(_ context.Context, ticker string) (*models.MarketSnapshot, error) {
	snap, ok := s.snaps[ticker]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &snap, nil
}

func (s *fakeStore) GetAllTickers(_ context.Context) ([]string, error) {
	out := []string{}
	for t := range s.snaps {
		out = append(out, t)
	}
	return out, nil
}

func snapshotAt(ticker string, price float64, at time.Time) models.MarketSnapshot {
	return models.MarketSnapshot{Ticker: ticker, Price: decimal.NewFromFloat(price), Sector: "Tech", RSI: 50, FetchedAt: at}
}

func newTestFetcher(p marketdata.Provider, cache SnapshotCache, store SnapshotStore) *Fetcher {
	f := NewFetcher(p, cache, store, 15*time.Minute, quietLogger())
	f.now = func() time.Time { return fixedNow }
	return f
}

func TestFetch_OmitsUnresolvedAndDeduplicates(t *testing.T) {
	p := &fakeProvider{snaps: map[string]models.MarketSnapshot{
		"AAPL": snapshotAt("AAPL", 150, time.Time{}),
	}}
	f := newTestFetcher(p, nil, nil)

	got, err := f.Fetch(context.Background(), []string{"aapl", "AAPL", "NOPE", " "})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fake", got["AAPL"].Source)
	assert.Equal(t, fixedNow, got["AAPL"].FetchedAt)
	assert.Equal(t, []string{"AAPL", "NOPE"}, p.calls)
}

func TestFetch_CacheHitSkipsProvider(t *testing.T) {
	p := &fakeProvider{}
	cache := &fakeCache{snaps: map[string]models.MarketSnapshot{"MSFT": snapshotAt("MSFT", 300, fixedNow)}}
	f := newTestFetcher(p, cache, nil)

	got, err := f.Fetch(context.Background(), []string{"MSFT"})
	require.NoError(t, err)
	assert.Contains(t, got, "MSFT")
	assert.Empty(t, p.calls)
}

func TestFetch_WritesThroughCacheAndStore(t *testing.T) {
	p := &fakeProvider{snaps: map[string]models.MarketSnapshot{"IBM": snapshotAt("IBM", 120, fixedNow)}}
	cache := &fakeCache{}
	store := &fakeStore{}
	f := newTestFetcher(p, cache, store)

	_, err := f.Fetch(context.Background(), []string{"IBM"})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, []string{"IBM"}, store.saved)
}

func TestFetch_FallsBackToRecentStoredSnapshot(t *testing.T) {
	p := &fakeProvider{err: errors.New("rate limited")}
	store := &fakeStore{snaps: map[string]models.MarketSnapshot{
		"FRESH": snapshotAt("FRESH", 10, fixedNow.Add(-10*time.Minute)),
		"STALE": snapshotAt("STALE", 10, fixedNow.Add(-time.Hour)),
	}}
	f := newTestFetcher(p, nil, store)

	got, err := f.Fetch(context.Background(), []string{"FRESH", "STALE", "MISSING"})
	require.NoError(t, err)
	assert.Contains(t, got, "FRESH")
	assert.NotContains(t, got, "STALE")
	assert.NotContains(t, got, "MISSING")
}

func TestFetch_CancelledContext(t *testing.T) {
	p := &fakeProvider{}
	f := newTestFetcher(p, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Fetch(ctx, []string{"AAPL"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, p.calls)
}

func TestRefresh_RefetchesStoredTickers(t *testing.T) {
	p := &fakeProvider{snaps: map[string]models.MarketSnapshot{
		"AAPL": snapshotAt("AAPL", 151, time.Time{}),
	}}
	cache := &fakeCache{}
	store := &fakeStore{snaps: map[string]models.MarketSnapshot{
		"AAPL": snapshotAt("AAPL", 150, fixedNow.Add(-2*time.Hour)),
		"GONE": snapshotAt("GONE", 1, fixedNow.Add(-2*time.Hour)),
	}}
	f := newTestFetcher(p, cache, store)

	f.refresh(context.Background())
	assert.ElementsMatch(t, []string{"AAPL", "GONE"}, p.calls)
	assert.Equal(t, []string{"AAPL"}, store.saved)
	assert.Equal(t, 1, cache.sets)
}

func TestStart_StopsWithContext(t *testing.T) {
	p := &fakeProvider{snaps: map[string]models.MarketSnapshot{"AAPL": snapshotAt("AAPL", 1, time.Time{})}}
	store := &fakeStore{snaps: map[string]models.MarketSnapshot{"AAPL": snapshotAt("AAPL", 1, fixedNow)}}
	f := newTestFetcher(p, nil, store)

	ctx, cancel := context.WithCancel(context.Background())
	f.Start(ctx, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.saved) > 0
	}, time.Second, 5*time.Millisecond)
	cancel()
}
