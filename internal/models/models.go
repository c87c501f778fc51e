package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Position struct {
	Ticker       string          `json:"ticker"`
	Quantity     decimal.Decimal `json:"quantity"`
	AveragePrice decimal.Decimal `json:"averagePrice"`
}

// MarketSnapshot is what a market data provider knows about one ticker.
// Zero moving averages mean the provider had no value; zero AverageVolume
// makes the volume ratio neutral.
type MarketSnapshot struct {
	Ticker           string          `json:"ticker"`
	Price            decimal.Decimal `json:"price"`
	ChangePercent    float64         `json:"change_percent"`
	Sector           string          `json:"sector"`
	FiftyDayAvg      float64         `json:"fifty_day_avg"`
	TwoHundredDayAvg float64         `json:"two_hundred_day_avg"`
	RSI              float64         `json:"rsi"`
	Volume           int64           `json:"volume"`
	AverageVolume    int64           `json:"average_volume"`
	Source           string          `json:"source"`
	FetchedAt        time.Time       `json:"fetched_at"`
}

const (
	NeutralRSI    = 50.0
	UnknownSector = "N/A"
)

type RiskProfile string

const (
	Conservative RiskProfile = "Conservative"
	Moderate     RiskProfile = "Moderate"
	Aggressive   RiskProfile = "Aggressive"
)

// ParseRiskProfile is case-insensitive; an empty string means Moderate.
func ParseRiskProfile(s string) (RiskProfile, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return Moderate, nil
	case "conservative":
		return Conservative, nil
	case "moderate":
		return Moderate, nil
	case "aggressive":
		return Aggressive, nil
	}
	return "", fmt.Errorf("unknown risk profile %q (want Conservative, Moderate or Aggressive)", s)
}

type Recommendation string

const (
	StronglyReduce Recommendation = "STRONGLY_REDUCE"
	Reduce         Recommendation = "REDUCE"
	HoldMonitor    Recommendation = "HOLD_MONITOR"
	HoldRecovery   Recommendation = "HOLD_RECOVERY"
	HoldUpside     Recommendation = "HOLD_UPSIDE"
	AverageIn      Recommendation = "AVERAGE_IN"
)

var recommendationLabels = map[Recommendation]string{
	StronglyReduce: "Strongly consider reducing the position",
	Reduce:         "Consider taking some profit or trimming",
	HoldMonitor:    "Hold and monitor",
	HoldRecovery:   "Hold for recovery",
	HoldUpside:     "Hold for potential upside",
	AverageIn:      "Consider averaging in",
}

func (r Recommendation) Label() string {
	if l, ok := recommendationLabels[r]; ok {
		return l
	}
	return string(r)
}

type ScoredAdvice struct {
	Ticker         string         `json:"ticker"`
	PnlPercent     float64        `json:"pnl_percent"`
	ChangePercent  float64        `json:"change_percent"`
	Score          int            `json:"score"`
	Recommendation Recommendation `json:"recommendation"`
	Advice         string         `json:"advice"`
	Rationale      []string       `json:"rationale"`
}

type DiversificationStatus string

const (
	Diversified      DiversificationStatus = "diversified"
	Concentrated     DiversificationStatus = "concentrated"
	InsufficientData DiversificationStatus = "insufficient_data"
)

type SectorShare struct {
	Sector             string  `json:"sector"`
	PercentOfPortfolio float64 `json:"percent_of_portfolio"`
}

type DiversificationVerdict struct {
	Status         DiversificationStatus `json:"status"`
	IsConcentrated bool                  `json:"is_concentrated"`
	Sectors        []SectorShare         `json:"sectors"`
	Message        string                `json:"message"`
}

// Holding is a position enriched with its market data for one request.
type Holding struct {
	Ticker        string          `json:"ticker"`
	Quantity      decimal.Decimal `json:"quantity"`
	AveragePrice  decimal.Decimal `json:"averagePrice"`
	Investment    decimal.Decimal `json:"investment"`
	CurrentPrice  decimal.Decimal `json:"currentPrice"`
	CurrentValue  decimal.Decimal `json:"currentValue"`
	Pnl           decimal.Decimal `json:"pnl"`
	PnlPercent    float64         `json:"pnlPercent"`
	ChangePercent float64         `json:"change_percent"`
	Sector        string          `json:"sector"`
}

type UsageStats struct {
	PortfoliosAnalyzed int64  `json:"portfolios_analyzed"`
	AdviceGenerated    int64  `json:"advice_generated"`
	TotalBill          string `json:"total_bill"`
}

type Analysis struct {
	RequestID       string                 `json:"request_id"`
	RiskProfile     RiskProfile            `json:"risk_profile"`
	Submitted       int                    `json:"positions_submitted"`
	Holdings        []Holding              `json:"table_data"`
	Advice          []ScoredAdvice         `json:"advice"`
	Diversification DiversificationVerdict `json:"diversification"`
	Bill            decimal.Decimal        `json:"bill"`
	Usage           UsageStats             `json:"usage_stats"`
	CreatedAt       time.Time              `json:"created_at"`
}
