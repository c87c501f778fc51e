package marketdata

import (
	"context"
	"errors"

	"stockadvisor/internal/models"
)

// ErrNoData is returned when a provider has nothing for a ticker, usually
// because the symbol is invalid.
var ErrNoData = errors.New("no market data for ticker")

// Provider resolves one ticker into a snapshot. Implementations may return
// partial snapshots; fields they cannot fill stay at their zero value.
type Provider interface {
	Name() string
	Snapshot(ctx context.Context, ticker string) (*models.MarketSnapshot, error)
}
