package usage

import (
	"sync"

	"stockadvisor/internal/config"
	"stockadvisor/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Tracker bills analyses and keeps the running usage totals.
// It is safe for concurrent use.
type Tracker struct {
	costPerPortfolio decimal.Decimal
	costPerAdvice    decimal.Decimal

	mu         sync.Mutex
	portfolios int64
	advice     int64
	bill       decimal.Decimal

	portfoliosTotal prometheus.Counter
	adviceTotal     prometheus.Counter
	billTotal       prometheus.Counter
}

// NewTracker registers the usage counters on reg. A nil reg keeps them unregistered.
func NewTracker(cfg config.BillingConfig, reg prometheus.Registerer) *Tracker {
	t := &Tracker{
		costPerPortfolio: cfg.CostPerPortfolio,
		costPerAdvice:    cfg.CostPerAdvice,
		portfoliosTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portfolios_analyzed_total",
			Help: "Number of portfolios analysed.",
		}),
		adviceTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "advice_generated_total",
			Help: "Number of positions billed for advice.",
		}),
		billTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bill_total",
			Help: "Total amount billed.",
		}),
	}
	if reg != nil {
		reg.MustRegister(t.portfoliosTotal, t.adviceTotal, t.billTotal)
	}
	return t
}

// Cost is the price of one analysis of n positions.
func (t *Tracker) Cost(n int) decimal.Decimal {
	return t.costPerPortfolio.Add(t.costPerAdvice.Mul(decimal.NewFromInt(int64(n))))
}

// Record bills one analysis of n submitted positions and returns the charge
// with the totals after it.
func (t *Tracker) Record(n int) (decimal.Decimal, models.UsageStats) {
	cost := t.Cost(n)

	t.mu.Lock()
	t.portfolios++
	t.advice += int64(n)
	t.bill = t.bill.Add(cost)
	stats := t.statsLocked()
	t.mu.Unlock()

	t.portfoliosTotal.Inc()
	t.adviceTotal.Add(float64(n))
	t.billTotal.Add(cost.InexactFloat64())
	return cost, stats
}

func (t *Tracker) Stats() models.UsageStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statsLocked()
}

// Restore adds totals persisted by a previous run.
func (t *Tracker) Restore(portfolios, advice int64, bill decimal.Decimal) {
	t.mu.Lock()
	t.portfolios += portfolios
	t.advice += advice
	t.bill = t.bill.Add(bill)
	t.mu.Unlock()

	t.portfoliosTotal.Add(float64(portfolios))
	t.adviceTotal.Add(float64(advice))
	t.billTotal.Add(bill.InexactFloat64())
}

func (t *Tracker) statsLocked() models.UsageStats {
	return models.UsageStats{
		PortfoliosAnalyzed: t.portfolios,
		AdviceGenerated:    t.advice,
		TotalBill:          t.bill.StringFixed(2),
	}
}
