package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stockadvisor/internal/advice"
	"stockadvisor/internal/models"
	"stockadvisor/internal/usage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrMarketDataNotConfigured = errors.New("market data provider is not configured")
	ErrMarketDataUnavailable   = errors.New("could not fetch market data; check ticker symbols or API limits")
)

// ValidationError reports a request the caller has to fix.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

type Request struct {
	Portfolio   []models.Position `json:"portfolio"`
	RiskProfile string            `json:"riskProfile"`
}

type SnapshotSource interface {
	Fetch(ctx context.Context, tickers []string) (map[string]models.MarketSnapshot, error)
}

// AnalysisStore persists every charge as it is made and every completed analysis.
type AnalysisStore interface {
	SaveUsage(ctx context.Context, requestID string, positions int, bill decimal.Decimal, at time.Time) error
	SaveAnalysis(ctx context.Context, a *models.Analysis) error
}

type EventPublisher interface {
	PublishAnalysis(ctx context.Context, a *models.Analysis) error
}

type Analyzer struct {
	source  SnapshotSource
	tracker *usage.Tracker
	store   AnalysisStore
	events  EventPublisher
	log     *logrus.Logger
	now     func() time.Time
	newID   func() string
}

// NewAnalyzer accepts a nil source (market data not configured) and nil
// store and events.
func NewAnalyzer(src SnapshotSource, tracker *usage.Tracker, store AnalysisStore, events EventPublisher, log *logrus.Logger) *Analyzer {
	return &Analyzer{
		source:  src,
		tracker: tracker,
		store:   store,
		events:  events,
		log:     log,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

func (a *Analyzer) Usage() models.UsageStats {
	return a.tracker.Stats()
}

// Analyse validates the request, bills it, fetches market data and returns
// the enriched holdings with advice and the diversification verdict.
func (a *Analyzer) Analyse(ctx context.Context, req Request) (*models.Analysis, error) {
	if a.source == nil {
		return nil, ErrMarketDataNotConfigured
	}
	positions, risk, err := validate(req)
	if err != nil {
		return nil, err
	}

	requestID := a.newID()
	createdAt := a.now().UTC()
	bill, stats := a.tracker.Record(len(positions))
	if a.store != nil {
		if err := a.store.SaveUsage(ctx, requestID, len(positions), bill, createdAt); err != nil {
			a.log.Warnf("save usage for %s failed: %v", requestID, err)
		}
	}

	tickers := make([]string, 0, len(positions))
	for _, p := range positions {
		tickers = append(tickers, p.Ticker)
	}
	snapshots, err := a.source.Fetch(ctx, tickers)
	if err != nil {
		return nil, fmt.Errorf("fetch market data: %w", err)
	}
	if len(snapshots) == 0 {
		a.log.Warnf("no market data resolved for %v", tickers)
		return nil, ErrMarketDataUnavailable
	}

	adv, err := advice.GenerateAdvice(positions, snapshots, risk)
	if err != nil {
		return nil, fmt.Errorf("generate advice: %w", err)
	}

	analysis := &models.Analysis{
		RequestID:       requestID,
		RiskProfile:     risk,
		Submitted:       len(positions),
		Holdings:        enrich(positions, snapshots),
		Advice:          adv,
		Diversification: advice.AnalyseDiversification(advice.SectorHoldings(positions, snapshots)),
		Bill:            bill,
		Usage:           stats,
		CreatedAt:       createdAt,
	}

	if a.store != nil {
		if err := a.store.SaveAnalysis(ctx, analysis); err != nil {
			a.log.Warnf("save analysis %s failed: %v", analysis.RequestID, err)
		}
	}
	if a.events != nil {
		if err := a.events.PublishAnalysis(ctx, analysis); err != nil {
			a.log.Warnf("publish analysis %s failed: %v", analysis.RequestID, err)
		}
	}

	a.log.Infof("analysis %s: %d/%d positions priced, risk=%s, bill=%s", analysis.RequestID, len(analysis.Holdings), len(positions), risk, bill.StringFixed(2))
	return analysis, nil
}

func validate(req Request) ([]models.Position, models.RiskProfile, error) {
	risk, err := models.ParseRiskProfile(req.RiskProfile)
	if err != nil {
		return nil, "", &ValidationError{Msg: err.Error()}
	}
	if len(req.Portfolio) == 0 {
		return nil, "", invalid("portfolio data is missing")
	}
	positions := make([]models.Position, 0, len(req.Portfolio))
	for i, p := range req.Portfolio {
		ticker := strings.ToUpper(strings.TrimSpace(p.Ticker))
		switch {
		case ticker == "":
			return nil, "", invalid("position %d: ticker is required", i+1)
		case p.Quantity.IsNegative():
			return nil, "", invalid("position %d (%s): quantity must not be negative", i+1, ticker)
		case !p.AveragePrice.IsPositive():
			return nil, "", invalid("position %d (%s): averagePrice must be positive", i+1, ticker)
		}
		positions = append(positions, models.Position{Ticker: ticker, Quantity: p.Quantity, AveragePrice: p.AveragePrice})
	}
	return positions, risk, nil
}

// enrich keeps input order and drops positions without a snapshot.
func enrich(positions []models.Position, snapshots map[string]models.MarketSnapshot) []models.Holding {
	out := make([]models.Holding, 0, len(positions))
	for _, p := range positions {
		snap, ok := snapshots[p.Ticker]
		if !ok {
			continue
		}
		investment := p.Quantity.Mul(p.AveragePrice)
		value := p.Quantity.Mul(snap.Price)
		pnlPercent, _ := advice.PnlPercent(snap.Price, p.AveragePrice)
		sector := strings.TrimSpace(snap.Sector)
		if sector == "" {
			sector = models.UnknownSector
		}
		out = append(out, models.Holding{
			Ticker:        p.Ticker,
			Quantity:      p.Quantity,
			AveragePrice:  p.AveragePrice,
			Investment:    investment.Round(2),
			CurrentPrice:  snap.Price,
			CurrentValue:  value.Round(2),
			Pnl:           value.Sub(investment).Round(2),
			PnlPercent:    pnlPercent,
			ChangePercent: snap.ChangePercent,
			Sector:        sector,
		})
	}
	return out
}
