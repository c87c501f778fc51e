package database

import (
	"time"

	"stockadvisor/internal/models"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type snapshotRow struct {
	Ticker           string          `db:"ticker"`
	Price            decimal.Decimal `db:"price"`
	ChangePercent    float64         `db:"change_percent"`
	Sector           string          `db:"sector"`
	FiftyDayAvg      float64         `db:"fifty_day_avg"`
	TwoHundredDayAvg float64         `db:"two_hundred_day_avg"`
	RSI              float64         `db:"rsi"`
	Volume           int64           `db:"volume"`
	AverageVolume    int64           `db:"average_volume"`
	Source           string          `db:"source"`
	FetchedAt        time.Time       `db:"fetched_at"`
}

func (r snapshotRow) toModel() *models.MarketSnapshot {
	return &models.MarketSnapshot{
		Ticker:           r.Ticker,
		Price:            r.Price,
		ChangePercent:    r.ChangePercent,
		Sector:           r.Sector,
		FiftyDayAvg:      r.FiftyDayAvg,
		TwoHundredDayAvg: r.TwoHundredDayAvg,
		RSI:              r.RSI,
		Volume:           r.Volume,
		AverageVolume:    r.AverageVolume,
		Source:           r.Source,
		FetchedAt:        r.FetchedAt,
	}
}

type AnalysisRecord struct {
	ID                     string          `db:"id" json:"request_id"`
	RiskProfile            string          `db:"risk_profile" json:"risk_profile"`
	Tickers                pq.StringArray  `db:"tickers" json:"tickers"`
	PositionCount          int             `db:"position_count" json:"position_count"`
	AdviceCount            int             `db:"advice_count" json:"advice_count"`
	Bill                   decimal.Decimal `db:"bill" json:"bill"`
	Concentrated           bool            `db:"concentrated" json:"concentrated"`
	DiversificationMessage string          `db:"diversification_message" json:"diversification_message"`
	CreatedAt              time.Time       `db:"created_at" json:"created_at"`
}

type UsageTotals struct {
	PortfoliosAnalyzed int64           `db:"portfolios_analyzed"`
	AdviceGenerated    int64           `db:"advice_generated"`
	TotalBill          decimal.Decimal `db:"total_bill"`
}
