package service

import (
	"context"
	"strings"
	"time"

	"stockadvisor/internal/marketdata"
	"stockadvisor/internal/models"

	"github.com/sirupsen/logrus"
)

// SnapshotCache is the hot cache in front of the provider.
// GetSnapshot returns nil, nil on a miss.
type SnapshotCache interface {
	GetSnapshot(ctx context.Context, ticker string) (*models.MarketSnapshot, error)
	SetSnapshot(ctx context.Context, snap *models.MarketSnapshot) error
}

// SnapshotStore keeps snapshot history and serves stale data when the provider fails.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap *models.MarketSnapshot) error
	GetLatestSnapshot(ctx context.Context, ticker string) (*models.MarketSnapshot, error)
	GetAllTickers(ctx context.Context) ([]string, error)
}

type Fetcher struct {
	provider   marketdata.Provider
	cache      SnapshotCache
	store      SnapshotStore
	staleAfter time.Duration
	log        *logrus.Logger
	now        func() time.Time
}

// NewFetcher accepts nil cache and store.
func NewFetcher(p marketdata.Provider, cache SnapshotCache, store SnapshotStore, staleAfter time.Duration, log *logrus.Logger) *Fetcher {
	return &Fetcher{provider: p, cache: cache, store: store, staleAfter: staleAfter, log: log, now: time.Now}
}

// Fetch resolves each ticker once, in order. Tickers without data are left
// out of the result; the only error is a cancelled context.
func (f *Fetcher) Fetch(ctx context.Context, tickers []string) (map[string]models.MarketSnapshot, error) {
	res := make(map[string]models.MarketSnapshot, len(tickers))
	for _, t := range tickers {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := res[t]; ok {
			continue
		}
		snap, err := f.snapshot(ctx, t)
		if err != nil {
			f.log.Warnf("no market data for %s: %v", t, err)
			continue
		}
		res[t] = *snap
	}
	return res, nil
}

func (f *Fetcher) snapshot(ctx context.Context, ticker string) (*models.MarketSnapshot, error) {
	if f.cache != nil {
		snap, err := f.cache.GetSnapshot(ctx, ticker)
		if err != nil {
			f.log.Warnf("snapshot cache read for %s failed: %v", ticker, err)
		} else if snap != nil {
			return snap, nil
		}
	}

	snap, err := f.provider.Snapshot(ctx, ticker)
	if err == nil {
		f.remember(ctx, snap)
		return snap, nil
	}
	if ctx.Err() != nil || f.store == nil {
		return nil, err
	}

	stored, serr := f.store.GetLatestSnapshot(ctx, ticker)
	if serr != nil {
		return nil, err
	}
	if age := f.now().Sub(stored.FetchedAt); age > f.staleAfter {
		f.log.Debugf("stored snapshot for %s is %s old, not used", ticker, age.Round(time.Second))
		return nil, err
	}
	f.log.Warnf("%s provider failed for %s (%v), using snapshot from %s", f.provider.Name(), ticker, err, stored.FetchedAt.Format(time.RFC3339))
	return stored, nil
}

func (f *Fetcher) remember(ctx context.Context, snap *models.MarketSnapshot) {
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = f.now().UTC()
	}
	if snap.Source == "" {
		snap.Source = f.provider.Name()
	}
	if f.cache != nil {
		if err := f.cache.SetSnapshot(ctx, snap); err != nil {
			f.log.Warnf("snapshot cache write for %s failed: %v", snap.Ticker, err)
		}
	}
	if f.store != nil {
		if err := f.store.SaveSnapshot(ctx, snap); err != nil {
			f.log.Warnf("save snapshot for %s failed: %v", snap.Ticker, err)
		}
	}
}

// Start re-fetches every stored ticker on each tick until ctx is done.
func (f *Fetcher) Start(ctx context.Context, interval time.Duration) {
	if f.store == nil || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				f.log.Info("snapshot refresher stopping")
				return
			case <-ticker.C:
				f.refresh(ctx)
			}
		}
	}()
}

func (f *Fetcher) refresh(ctx context.Context) {
	tickers, err := f.store.GetAllTickers(ctx)
	if err != nil {
		f.log.Warnf("failed to fetch tickers: %v", err)
		return
	}
	refreshed := 0
	for _, t := range tickers {
		if ctx.Err() != nil {
			return
		}
		snap, err := f.provider.Snapshot(ctx, t)
		if err != nil {
			f.log.Warnf("refresh %s failed: %v", t, err)
			continue
		}
		f.remember(ctx, snap)
		refreshed++
	}
	f.log.Debugf("refreshed %d/%d snapshots", refreshed, len(tickers))
}
