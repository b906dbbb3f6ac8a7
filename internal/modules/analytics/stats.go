// Package analytics derives performance statistics and value history from
// valuation passes.
package analytics

import (
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/folio/internal/domain"
)

// PositionStat names one position and the metric that ranked it.
type PositionStat struct {
	Symbol string  `json:"symbol"`
	Value  float64 `json:"value"`
}

// Stats summarizes one valuation pass: extremes and return dispersion
// across priced positions.
type Stats struct {
	TopPerformer     *PositionStat `json:"top_performer"`
	WorstPerformer   *PositionStat `json:"worst_performer"`
	LargestHolding   *PositionStat `json:"largest_holding"`
	AvgReturnPct     float64       `json:"avg_return_pct"`
	ReturnVolatility float64       `json:"return_volatility"`
	PricedPositions  int           `json:"priced_positions"`
}

// PerformanceStats derives display statistics from a valuation pass.
// Performer extremes consider only priced positions with a defined gain pct;
// ties keep the earlier position. Requires at least one priced position,
// otherwise domain.ErrInsufficientData.
func PerformanceStats(summary *domain.PortfolioSummary) (*Stats, error) {
	if summary == nil || summary.PricedCount == 0 {
		return nil, domain.ErrInsufficientData
	}

	stats := &Stats{PricedPositions: summary.PricedCount}
	var returns []float64

	for _, pos := range summary.Positions {
		if pos.Stale {
			continue
		}

		if pos.Weight != nil {
			if stats.LargestHolding == nil || *pos.Weight > stats.LargestHolding.Value {
				stats.LargestHolding = &PositionStat{Symbol: pos.Symbol, Value: *pos.Weight}
			}
		}

		if pos.GainPct == nil {
			continue
		}
		returns = append(returns, *pos.GainPct)

		if stats.TopPerformer == nil || *pos.GainPct > stats.TopPerformer.Value {
			stats.TopPerformer = &PositionStat{Symbol: pos.Symbol, Value: *pos.GainPct}
		}
		if stats.WorstPerformer == nil || *pos.GainPct < stats.WorstPerformer.Value {
			stats.WorstPerformer = &PositionStat{Symbol: pos.Symbol, Value: *pos.GainPct}
		}
	}

	if len(returns) > 0 {
		stats.AvgReturnPct = stat.Mean(returns, nil)
	}
	// StdDev needs two samples; a single return has zero dispersion
	if len(returns) > 1 {
		stats.ReturnVolatility = stat.StdDev(returns, nil)
	}

	return stats, nil
}
