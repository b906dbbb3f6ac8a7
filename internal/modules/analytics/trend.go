package analytics

import (
	"math"
	"time"

	"github.com/markcheno/go-talib"
)

// TrendPoint is one chart-ready point of the value history: the raw total
// market value plus its smoothed counterpart. Smoothed is nil during the
// warmup period before the first full window.
type TrendPoint struct {
	TakenAt  time.Time `json:"taken_at"`
	Value    float64   `json:"value"`
	Smoothed *float64  `json:"smoothed"`
}

// ValueTrend smooths the snapshot value series with a simple moving average
// over the given window. A window larger than the series leaves every point
// unsmoothed.
func ValueTrend(history []Snapshot, window int) []TrendPoint {
	points := make([]TrendPoint, len(history))
	values := make([]float64, len(history))
	for i, s := range history {
		values[i] = s.TotalMarketValue
		points[i] = TrendPoint{TakenAt: s.TakenAt, Value: s.TotalMarketValue}
	}

	if window < 1 || len(values) < window {
		return points
	}

	sma := talib.Sma(values, window)
	for i := window - 1; i < len(points); i++ {
		if math.IsNaN(sma[i]) {
			continue
		}
		v := sma[i]
		points[i].Smoothed = &v
	}

	return points
}
