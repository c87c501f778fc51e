package database

import (
	"context"
	"time"

	"stockadvisor/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Repo struct {
	db  *sqlx.DB
	log *logrus.Logger
}

func New(db *sqlx.DB, log *logrus.Logger) *Repo {
	return &Repo{db: db, log: log}
}

func (r *Repo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repo) SaveSnapshot(ctx context.Context, s *models.MarketSnapshot) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO market_snapshots (ticker, price, change_percent, sector, fifty_day_avg, two_hundred_day_avg, rsi, volume, average_volume, source, fetched_at) VALUES ($1, $2::numeric, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.Ticker, s.Price.StringFixed(6), s.ChangePercent, s.Sector, s.FiftyDayAvg, s.TwoHundredDayAvg, s.RSI, s.Volume, s.AverageVolume, s.Source, s.FetchedAt)
	return err
}

// GetLatestSnapshot returns sql.ErrNoRows when the ticker was never stored.
func (r *Repo) GetLatestSnapshot(ctx context.Context, ticker string) (*models.MarketSnapshot, error) {
	var row snapshotRow
	if err := r.db.GetContext(ctx, &row, `SELECT ticker, price, change_percent, sector, fifty_day_avg, two_hundred_day_avg, rsi, volume, average_volume, source, fetched_at FROM market_snapshots WHERE ticker = $1 ORDER BY fetched_at DESC LIMIT 1`, ticker); err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

func (r *Repo) GetAllTickers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT DISTINCT ticker FROM market_snapshots ORDER BY ticker`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			r.log.Warnf("scan ticker failed: %v", err)
			continue
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r *Repo) SaveAnalysis(ctx context.Context, a *models.Analysis) error {
	tickers := make([]string, 0, len(a.Holdings))
	for _, h := range a.Holdings {
		tickers = append(tickers, h.Ticker)
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO analyses (id, risk_profile, tickers, position_count, advice_count, bill, concentrated, diversification_message, created_at) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9)`,
		a.RequestID, string(a.RiskProfile), pq.Array(tickers), a.Submitted, len(a.Advice), a.Bill.StringFixed(2), a.Diversification.IsConcentrated, a.Diversification.Message, a.CreatedAt)
	return err
}

func (r *Repo) ListAnalyses(ctx context.Context, limit int) ([]AnalysisRecord, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT id, risk_profile, tickers, position_count, advice_count, bill, concentrated, diversification_message, created_at FROM analyses ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []AnalysisRecord{}
	for rows.Next() {
		var a AnalysisRecord
		if err := rows.StructScan(&a); err != nil {
			r.log.Warnf("scan analysis failed: %v", err)
			continue
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// SaveUsage records one charge. Charges are kept apart from analyses because
// a request is billed before its market data is known to resolve.
func (r *Repo) SaveUsage(ctx context.Context, requestID string, positions int, bill decimal.Decimal, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO usage_events (request_id, positions, bill, created_at) VALUES ($1, $2, $3::numeric, $4)`,
		requestID, positions, bill.StringFixed(2), at)
	return err
}

// GetUsageTotals sums every recorded charge; advice_generated counts
// submitted positions.
func (r *Repo) GetUsageTotals(ctx context.Context) (UsageTotals, error) {
	var t UsageTotals
	err := r.db.GetContext(ctx, &t, `SELECT COUNT(*) AS portfolios_analyzed, COALESCE(SUM(positions), 0) AS advice_generated, COALESCE(SUM(bill), 0) AS total_bill FROM usage_events`)
	return t, err
}
