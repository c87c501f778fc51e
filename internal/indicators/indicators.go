// Package indicators derives the technical figures the advice scorer needs
// from a series of daily bars, oldest first.
package indicators

import (
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

const (
	RSIPeriod           = 14
	ShortTrendPeriod    = 50
	LongTrendPeriod     = 200
	AverageVolumePeriod = 30
)

// SMA returns the simple moving average of the last period closes, or 0 when
// the series is too short.
func SMA(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period {
		return 0
	}
	sma := talib.Sma(closes, period)
	if last := sma[len(sma)-1]; !math.IsNaN(last) {
		return last
	}
	return 0
}

// RSI returns the Wilder RSI over period, or ok=false when there is not
// enough data.
func RSI(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}
	rsi := talib.Rsi(closes, period)
	last := rsi[len(rsi)-1]
	if math.IsNaN(last) {
		return 0, false
	}
	return last, true
}

// AverageVolume is the mean of the last period volumes (all of them when the
// series is shorter).
func AverageVolume(volumes []float64, period int) int64 {
	if len(volumes) == 0 {
		return 0
	}
	if period > 0 && len(volumes) > period {
		volumes = volumes[len(volumes)-period:]
	}
	return int64(math.Round(stat.Mean(volumes, nil)))
}

// ChangePercent is the move of last relative to previous, in percent.
func ChangePercent(previous, last float64) float64 {
	if previous == 0 {
		return 0
	}
	return (last - previous) / previous * 100
}
