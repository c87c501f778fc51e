package advice

import (
	"errors"

	"stockadvisor/internal/models"

	"github.com/shopspring/decimal"
)

var ErrInvalidAveragePrice = errors.New("average price must be positive")

const (
	overboughtRSI      = 70.0
	oversoldRSI        = 30.0
	averageInMaxRSI    = 65.0
	averageInMaxPnl    = 15.0
	sellOffChange      = -2.0
	highVolumeRatio    = 1.5
	neutralRationale   = "indicators are neutral"
	belowTrendReason   = "below 50-day trend"
	overboughtReason   = "overbought"
	oversoldReason     = "oversold"
	highVolumeReason   = "falling on high volume"
	sellPressureReason = "selling pressure"
)

var hundred = decimal.NewFromInt(100)

// PnlPercent returns (price - averagePrice) / averagePrice * 100.
func PnlPercent(price, averagePrice decimal.Decimal) (float64, error) {
	if !averagePrice.IsPositive() {
		return 0, ErrInvalidAveragePrice
	}
	return price.Sub(averagePrice).Div(averagePrice).Mul(hundred).InexactFloat64(), nil
}

// Score applies the rule set to one position. It is pure: the same inputs
// always give the same recommendation and rationale.
func Score(pos models.Position, snap models.MarketSnapshot, risk models.RiskProfile) (models.ScoredAdvice, error) {
	pnl, err := PnlPercent(snap.Price, pos.AveragePrice)
	if err != nil {
		return models.ScoredAdvice{}, err
	}

	price := snap.Price.InexactFloat64()
	rsi := snap.RSI
	if rsi < 0 || rsi > 100 {
		rsi = models.NeutralRSI
	}

	score := 0
	var reasons []string

	if snap.FiftyDayAvg > 0 && price < snap.FiftyDayAvg {
		score -= 2
		reasons = append(reasons, belowTrendReason)
	}

	if rsi > overboughtRSI {
		score--
		reasons = append(reasons, overboughtReason)
	} else if rsi < oversoldRSI {
		score++
		reasons = append(reasons, oversoldReason)
	}

	if snap.ChangePercent < sellOffChange {
		if snap.AverageVolume > 0 && float64(snap.Volume) > highVolumeRatio*float64(snap.AverageVolume) {
			score -= 2
			reasons = append(reasons, highVolumeReason)
		} else {
			score--
			reasons = append(reasons, sellPressureReason)
		}
	}

	switch risk {
	case models.Conservative:
		score--
	case models.Aggressive:
		score++
	}

	if len(reasons) == 0 {
		reasons = []string{neutralRationale}
	}

	rec := recommend(score, price, snap.TwoHundredDayAvg, rsi, pnl)
	return models.ScoredAdvice{
		Ticker:         pos.Ticker,
		PnlPercent:     pnl,
		ChangePercent:  snap.ChangePercent,
		Score:          score,
		Recommendation: rec,
		Advice:         rec.Label(),
		Rationale:      reasons,
	}, nil
}

// recommend maps a score to a recommendation; the first matching rule wins.
func recommend(score int, price, twoHundredDayAvg, rsi, pnl float64) models.Recommendation {
	switch {
	case score >= 1 && twoHundredDayAvg > 0 && price > twoHundredDayAvg && rsi < averageInMaxRSI && pnl < averageInMaxPnl:
		return models.AverageIn
	case score <= -3:
		return models.StronglyReduce
	case score <= -1:
		return models.Reduce
	case score >= 2 && pnl < 0:
		return models.HoldRecovery
	case score >= 2:
		return models.HoldUpside
	default:
		return models.HoldMonitor
	}
}

// GenerateAdvice scores positions in input order. Positions without a
// snapshot are skipped; a position with a non-positive average price is an
// error because it should have been rejected before reaching here.
func GenerateAdvice(positions []models.Position, snapshots map[string]models.MarketSnapshot, risk models.RiskProfile) ([]models.ScoredAdvice, error) {
	out := make([]models.ScoredAdvice, 0, len(positions))
	for _, p := range positions {
		snap, ok := snapshots[p.Ticker]
		if !ok {
			continue
		}
		a, err := Score(p, snap, risk)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
