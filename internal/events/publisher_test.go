package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"stockadvisor/internal/models"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockWriter struct {
	mu     sync.Mutex
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func sampleAnalysis() *models.Analysis {
	return &models.Analysis{
		RequestID:   "req-42",
		RiskProfile: models.Aggressive,
		Holdings:    []models.Holding{{Ticker: "AAPL"}, {Ticker: "MSFT"}},
		Advice: []models.ScoredAdvice{
			{Ticker: "AAPL", Recommendation: models.HoldMonitor},
			{Ticker: "MSFT", Recommendation: models.AverageIn},
		},
		Bill:            decimal.RequireFromString("2.5"),
		Diversification: models.DiversificationVerdict{IsConcentrated: true},
		CreatedAt:       time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestPublishAnalysis(t *testing.T) {
	w := &mockWriter{}
	p := &Publisher{writer: w}

	require.NoError(t, p.PublishAnalysis(context.Background(), sampleAnalysis()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "req-42", string(w.msgs[0].Key))

	var event PortfolioAnalyzed
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &event))
	assert.Equal(t, EventPortfolioAnalyzed, event.EventType)
	assert.Equal(t, "Aggressive", event.RiskProfile)
	assert.Equal(t, []string{"AAPL", "MSFT"}, event.Tickers)
	assert.Equal(t, 2, event.AdviceCount)
	assert.Equal(t, "2.50", event.Bill)
	assert.True(t, event.Concentrated)
	assert.Equal(t, "AVERAGE_IN", event.Recommendations["MSFT"])
}

func TestPublishAnalysis_WriteError(t *testing.T) {
	p := &Publisher{writer: &mockWriter{err: errors.New("broker down")}}

	err := p.PublishAnalysis(context.Background(), sampleAnalysis())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestClose(t *testing.T) {
	w := &mockWriter{}
	p := &Publisher{writer: w}
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}
