// Package diversification groups priced positions by sector and measures
// portfolio concentration.
package diversification

import (
	"github.com/aristath/folio/internal/domain"
)

// Analyze builds the sector breakdown for a valuation pass and computes the
// concentration score: the Herfindahl-style sum of squared position weights,
// 1.0 for a single-asset portfolio, 1/N for N equal-weight assets.
//
// Only priced positions participate; a position without a resolved sector
// falls into the "Unclassified" bucket. When the pass has zero priced
// positions (empty portfolio or every quote failed) there is nothing to
// measure and domain.ErrInsufficientData is returned instead of a
// degenerate zero score.
func Analyze(summary *domain.PortfolioSummary) (*domain.SectorBreakdown, error) {
	if summary == nil || summary.PricedCount == 0 || summary.TotalMarketValue <= 0 {
		return nil, domain.ErrInsufficientData
	}

	breakdown := &domain.SectorBreakdown{
		Sectors:         make(map[string]domain.SectorStat),
		PricedPositions: summary.PricedCount,
	}

	for _, pos := range summary.Positions {
		if pos.Stale {
			continue
		}

		sector := pos.Sector
		if sector == "" {
			sector = domain.SectorUnclassified
		}

		stat := breakdown.Sectors[sector]
		stat.MarketValue += pos.MarketValue
		stat.PositionCount++
		breakdown.Sectors[sector] = stat

		if pos.Weight != nil {
			breakdown.ConcentrationScore += *pos.Weight * *pos.Weight
		}
	}

	for sector, stat := range breakdown.Sectors {
		stat.Weight = stat.MarketValue / summary.TotalMarketValue
		breakdown.Sectors[sector] = stat
	}

	return breakdown, nil
}
