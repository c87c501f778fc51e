package database

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"stockadvisor/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *sqlx.DB {
	url := os.Getenv("POSTGRES_URL")
	if url == "" {
		t.Skip("POSTGRES_URL is not set; skipping integration tests")
	}
	db, err := sqlx.Open("postgres", url)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	files := []string{"../../migrations/0001_init.up.sql", "../../migrations/0002_usage_events.up.sql"}
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read migration %s: %v", f, err)
		}
		if _, err := db.Exec(string(b)); err != nil {
			t.Logf("exec migration %s: %v", f, err)
		}
	}
	return db
}

func TestSnapshotHistory_Integration(t *testing.T) {
	db := setupDB(t)
	r := New(db, logrus.New())
	ctx := context.Background()

	ticker := "ITEST-SNAP"
	_, _ = db.ExecContext(ctx, `DELETE FROM market_snapshots WHERE ticker = $1`, ticker)

	older := &models.MarketSnapshot{Ticker: ticker, Price: decimal.NewFromFloat(100), Sector: "Tech", RSI: 40, FetchedAt: time.Now().UTC().Add(-time.Hour)}
	newer := &models.MarketSnapshot{Ticker: ticker, Price: decimal.NewFromFloat(101.5), Sector: "Tech", RSI: 55, FetchedAt: time.Now().UTC()}
	require.NoError(t, r.SaveSnapshot(ctx, older))
	require.NoError(t, r.SaveSnapshot(ctx, newer))

	got, err := r.GetLatestSnapshot(ctx, ticker)
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(newer.Price), "expected latest price %s, got %s", newer.Price, got.Price)
	assert.Equal(t, 55.0, got.RSI)

	tickers, err := r.GetAllTickers(ctx)
	require.NoError(t, err)
	assert.Contains(t, tickers, ticker)

	_, err = r.GetLatestSnapshot(ctx, "ITEST-NEVER-STORED")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestAnalyses_Integration(t *testing.T) {
	db := setupDB(t)
	r := New(db, logrus.New())
	ctx := context.Background()

	a := &models.Analysis{
		RequestID:   uuid.NewString(),
		RiskProfile: models.Moderate,
		Submitted:   3,
		Holdings:    []models.Holding{{Ticker: "AAA"}, {Ticker: "BBB"}},
		Advice:      []models.ScoredAdvice{{Ticker: "AAA"}, {Ticker: "BBB"}},
		Bill:        decimal.RequireFromString("2.75"),
		Diversification: models.DiversificationVerdict{
			IsConcentrated: true,
			Message:        "concentrated",
		},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, r.SaveAnalysis(ctx, a))

	list, err := r.ListAnalyses(ctx, 5)
	require.NoError(t, err)
	require.NotEmpty(t, list)
	assert.Equal(t, a.RequestID, list[0].ID)
	assert.Equal(t, []string{"AAA", "BBB"}, []string(list[0].Tickers))
}

func TestUsageTotals_Integration(t *testing.T) {
	db := setupDB(t)
	r := New(db, logrus.New())
	ctx := context.Background()

	before, err := r.GetUsageTotals(ctx)
	require.NoError(t, err)

	// billed requests count whether or not an analysis was stored
	require.NoError(t, r.SaveUsage(ctx, uuid.NewString(), 3, decimal.RequireFromString("2.75"), time.Now().UTC()))
	require.NoError(t, r.SaveUsage(ctx, uuid.NewString(), 1, decimal.RequireFromString("2.25"), time.Now().UTC()))

	after, err := r.GetUsageTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.PortfoliosAnalyzed+2, after.PortfoliosAnalyzed)
	assert.Equal(t, before.AdviceGenerated+4, after.AdviceGenerated)
	assert.True(t, after.TotalBill.Sub(before.TotalBill).Equal(decimal.RequireFromString("5.00")))
}
