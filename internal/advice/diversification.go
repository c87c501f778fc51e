package advice

import (
	"fmt"
	"sort"
	"strings"

	"stockadvisor/internal/models"

	"github.com/shopspring/decimal"
)

const concentrationThreshold = 40.0

const (
	insufficientDataMessage = "Could not calculate diversification due to missing data."
	diversifiedMessage      = "Good diversification: your portfolio appears to be well-diversified."
)

type SectorHolding struct {
	Sector      string
	MarketValue decimal.Decimal
}

// SectorHoldings values each position that has a snapshot at quantity × price.
func SectorHoldings(positions []models.Position, snapshots map[string]models.MarketSnapshot) []SectorHolding {
	out := make([]SectorHolding, 0, len(positions))
	for _, p := range positions {
		snap, ok := snapshots[p.Ticker]
		if !ok {
			continue
		}
		out = append(out, SectorHolding{Sector: snap.Sector, MarketValue: p.Quantity.Mul(snap.Price)})
	}
	return out
}

// AnalyseDiversification flags every sector holding more than 40% of the
// valued portfolio. Sectors are ordered by share, largest first, then by name.
func AnalyseDiversification(holdings []SectorHolding) models.DiversificationVerdict {
	values := map[string]decimal.Decimal{}
	total := decimal.Zero
	for _, h := range holdings {
		sector := strings.TrimSpace(h.Sector)
		if sector == "" {
			sector = models.UnknownSector
		}
		values[sector] = values[sector].Add(h.MarketValue)
		total = total.Add(h.MarketValue)
	}

	if !total.IsPositive() {
		return models.DiversificationVerdict{
			Status:  models.InsufficientData,
			Sectors: []models.SectorShare{},
			Message: insufficientDataMessage,
		}
	}

	concentrated := []models.SectorShare{}
	for sector, v := range values {
		pct := v.Div(total).Mul(hundred).InexactFloat64()
		if pct > concentrationThreshold {
			concentrated = append(concentrated, models.SectorShare{Sector: sector, PercentOfPortfolio: pct})
		}
	}

	if len(concentrated) == 0 {
		return models.DiversificationVerdict{
			Status:  models.Diversified,
			Sectors: concentrated,
			Message: diversifiedMessage,
		}
	}

	sort.Slice(concentrated, func(i, j int) bool {
		if concentrated[i].PercentOfPortfolio != concentrated[j].PercentOfPortfolio {
			return concentrated[i].PercentOfPortfolio > concentrated[j].PercentOfPortfolio
		}
		return concentrated[i].Sector < concentrated[j].Sector
	})

	parts := make([]string, len(concentrated))
	for i, s := range concentrated {
		parts[i] = fmt.Sprintf("%s (%.1f%%)", s.Sector, s.PercentOfPortfolio)
	}
	return models.DiversificationVerdict{
		Status:         models.Concentrated,
		IsConcentrated: true,
		Sectors:        concentrated,
		Message:        "Diversification warning: your portfolio is heavily concentrated in: " + strings.Join(parts, ", ") + ".",
	}
}
