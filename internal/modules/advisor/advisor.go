// Package advisor applies rule-based heuristics over a valuation pass to
// emit qualitative recommendations.
package advisor

import (
	"fmt"
	"sort"

	"github.com/aristath/folio/internal/domain"
)

// Rule tags identify which rule produced a recommendation.
const (
	RuleConcentration = "concentration"
	RuleSectorWeight  = "sector_weight"
	RuleLoss          = "loss"
	RuleStaleData     = "stale_data"
)

// Thresholds holds the advisor rule limits. All four rules compare strictly
// against their threshold, so a portfolio sitting exactly on a limit does
// not fire.
type Thresholds struct {
	Concentration float64 // Herfindahl score above which rule 1 fires
	SectorWeight  float64 // Single-sector weight above which rule 2 fires
	Loss          float64 // Total gain ratio below which rule 3 fires (negative)
	StaleRatio    float64 // Stale position ratio above which rule 4 fires
}

// DefaultThresholds returns the documented default limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Concentration: 0.40,
		SectorWeight:  0.50,
		Loss:          -0.10,
		StaleRatio:    0.20,
	}
}

// Advisor evaluates the recommendation rules. It is stateless; the same
// inputs always produce the same recommendations in the same order.
type Advisor struct {
	thresholds Thresholds
}

// New creates an advisor with the given thresholds.
func New(thresholds Thresholds) *Advisor {
	return &Advisor{thresholds: thresholds}
}

// Advise runs all rules over one valuation pass. Rules are independent and
// every applicable one fires, in fixed order: concentration, sector weight,
// overall loss, stale data. Breakdown may be nil (insufficient data); the
// sector rules are skipped but the summary rules still evaluate. An empty
// portfolio yields an empty (non-nil) slice.
func (a *Advisor) Advise(summary *domain.PortfolioSummary, breakdown *domain.SectorBreakdown) []domain.Recommendation {
	recommendations := make([]domain.Recommendation, 0)
	if summary == nil {
		return recommendations
	}

	// Rule 1: overall concentration
	if breakdown != nil && breakdown.ConcentrationScore > a.thresholds.Concentration {
		recommendations = append(recommendations, domain.Recommendation{
			Severity: domain.SeverityWarning,
			Rule:     RuleConcentration,
			Message:  "portfolio is concentrated; consider diversifying",
		})
	}

	// Rule 2: single-sector exposure, offenders in sorted name order
	if breakdown != nil {
		var offenders []string
		for sector, stat := range breakdown.Sectors {
			if stat.Weight > a.thresholds.SectorWeight {
				offenders = append(offenders, sector)
			}
		}
		sort.Strings(offenders)

		for _, sector := range offenders {
			stat := breakdown.Sectors[sector]
			recommendations = append(recommendations, domain.Recommendation{
				Severity: domain.SeverityWarning,
				Rule:     RuleSectorWeight,
				Message: fmt.Sprintf("sector %s holds %.1f%% of portfolio value; consider rebalancing",
					sector, stat.Weight*100),
			})
		}
	}

	// Rule 3: overall loss
	if summary.TotalGainPct != nil && *summary.TotalGainPct < a.thresholds.Loss {
		recommendations = append(recommendations, domain.Recommendation{
			Severity: domain.SeverityInfo,
			Rule:     RuleLoss,
			Message:  fmt.Sprintf("portfolio is down %.1f%% overall", -*summary.TotalGainPct*100),
		})
	}

	// Rule 4: stale data quality
	if summary.StaleRatio() > a.thresholds.StaleRatio {
		recommendations = append(recommendations, domain.Recommendation{
			Severity: domain.SeverityWarning,
			Rule:     RuleStaleData,
			Message: fmt.Sprintf("%d holdings have unavailable pricing; figures may be incomplete",
				summary.StaleCount),
		})
	}

	return recommendations
}
