package alpaca

import (
	"context"
	"fmt"
	"time"

	"stockadvisor/internal/indicators"
	"stockadvisor/internal/marketdata"
	"stockadvisor/internal/models"

	alpacamd "github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
)

// ~300 calendar days covers the 200 trading days needed for the long trend.
const historyDays = 300

type barsClient interface {
	GetBars(symbol string, req alpacamd.GetBarsRequest) ([]alpacamd.Bar, error)
	GetLatestTrade(symbol string, req alpacamd.GetLatestTradeRequest) (*alpacamd.Trade, error)
}

// Provider builds snapshots from Alpaca daily bars. Alpaca has no sector
// classification, so snapshots carry models.UnknownSector.
type Provider struct {
	md  barsClient
	now func() time.Time
}

var _ marketdata.Provider = (*Provider)(nil)

func NewProvider(apiKey, apiSecret string) *Provider {
	return &Provider{
		md:  alpacamd.NewClient(alpacamd.ClientOpts{APIKey: apiKey, APISecret: apiSecret}),
		now: time.Now,
	}
}

func (p *Provider) Name() string { return "alpaca" }

func (p *Provider) Snapshot(ctx context.Context, ticker string) (*models.MarketSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := p.now().UTC()
	bars, err := p.md.GetBars(ticker, alpacamd.GetBarsRequest{
		TimeFrame: alpacamd.OneDay,
		Start:     now.AddDate(0, 0, -historyDays),
		End:       now,
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca bars for %s: %w", ticker, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", marketdata.ErrNoData, ticker)
	}

	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = float64(b.Volume)
	}
	last := bars[len(bars)-1]

	price := last.Close
	prevClose := last.Close
	if len(bars) > 1 {
		prevClose = bars[len(bars)-2].Close
	}
	trade, err := p.md.GetLatestTrade(ticker, alpacamd.GetLatestTradeRequest{})
	if err == nil && trade != nil && trade.Price > 0 {
		price = trade.Price
		// Today's bar is still forming; compare against the last completed one.
		if !sameDay(last.Timestamp, trade.Timestamp) {
			prevClose = last.Close
		}
	}

	snap := &models.MarketSnapshot{
		Ticker:           ticker,
		Price:            decimal.NewFromFloat(price),
		ChangePercent:    indicators.ChangePercent(prevClose, price),
		Sector:           models.UnknownSector,
		FiftyDayAvg:      indicators.SMA(closes, indicators.ShortTrendPeriod),
		TwoHundredDayAvg: indicators.SMA(closes, indicators.LongTrendPeriod),
		RSI:              models.NeutralRSI,
		Volume:           int64(last.Volume),
		AverageVolume:    indicators.AverageVolume(volumes, indicators.AverageVolumePeriod),
		Source:           p.Name(),
		FetchedAt:        now,
	}
	if rsi, ok := indicators.RSI(closes, indicators.RSIPeriod); ok {
		snap.RSI = rsi
	}
	return snap, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
