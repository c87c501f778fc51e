package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stockadvisor/internal/models"

	"github.com/segmentio/kafka-go"
)

const EventPortfolioAnalyzed = "PORTFOLIO_ANALYZED"

// PortfolioAnalyzed is the payload published after every analysis.
type PortfolioAnalyzed struct {
	EventType       string            `json:"event_type"`
	RequestID       string            `json:"request_id"`
	RiskProfile     string            `json:"risk_profile"`
	Tickers         []string          `json:"tickers"`
	AdviceCount     int               `json:"advice_count"`
	Bill            string            `json:"bill"`
	Concentrated    bool              `json:"concentrated"`
	Recommendations map[string]string `json:"recommendations"`
	Timestamp       time.Time         `json:"timestamp"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}}
}

// PublishAnalysis keys the message by request id.
func (p *Publisher) PublishAnalysis(ctx context.Context, a *models.Analysis) error {
	event := PortfolioAnalyzed{
		EventType:       EventPortfolioAnalyzed,
		RequestID:       a.RequestID,
		RiskProfile:     string(a.RiskProfile),
		Tickers:         make([]string, 0, len(a.Holdings)),
		AdviceCount:     len(a.Advice),
		Bill:            a.Bill.StringFixed(2),
		Concentrated:    a.Diversification.IsConcentrated,
		Recommendations: make(map[string]string, len(a.Advice)),
		Timestamp:       a.CreatedAt,
	}
	for _, h := range a.Holdings {
		event.Tickers = append(event.Tickers, h.Ticker)
	}
	for _, adv := range a.Advice {
		event.Recommendations[adv.Ticker] = string(adv.Recommendation)
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", EventPortfolioAnalyzed, err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(a.RequestID), Value: value}); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", EventPortfolioAnalyzed, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
