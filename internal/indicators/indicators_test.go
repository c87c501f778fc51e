package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func series(n int, f func(i int) float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = f(i)
	}
	return out
}

func TestSMA(t *testing.T) {
	closes := series(60, func(i int) float64 { return float64(i + 1) })

	// mean of 11..60
	assert.InDelta(t, 35.5, SMA(closes, 50), 1e-9)
	assert.Equal(t, 0.0, SMA(closes, 200))
	assert.Equal(t, 0.0, SMA(nil, 50))
}

func TestRSI_RisingSeriesIsOverbought(t *testing.T) {
	closes := series(40, func(i int) float64 { return 100 + float64(i) })

	rsi, ok := RSI(closes, RSIPeriod)
	assert.True(t, ok)
	assert.InDelta(t, 100.0, rsi, 1e-6)
}

func TestRSI_FallingSeriesIsOversold(t *testing.T) {
	closes := series(40, func(i int) float64 { return 200 - float64(i) })

	rsi, ok := RSI(closes, RSIPeriod)
	assert.True(t, ok)
	assert.Less(t, rsi, 30.0)
}

func TestRSI_NotEnoughData(t *testing.T) {
	_, ok := RSI([]float64{1, 2, 3}, RSIPeriod)
	assert.False(t, ok)
}

func TestAverageVolume(t *testing.T) {
	vols := series(40, func(i int) float64 {
		if i < 10 {
			return 1_000_000
		}
		return 100
	})

	assert.Equal(t, int64(100), AverageVolume(vols, 30))
	assert.Equal(t, int64(150), AverageVolume([]float64{100, 200}, 30))
	assert.Equal(t, int64(0), AverageVolume(nil, 30))
}

func TestChangePercent(t *testing.T) {
	assert.InDelta(t, 10.0, ChangePercent(100, 110), 1e-9)
	assert.InDelta(t, -2.5, ChangePercent(200, 195), 1e-9)
	assert.Equal(t, 0.0, ChangePercent(0, 5))
}
