// Package valuation turns holdings and quote results into positions and
// portfolio-level totals. This is the pure computation core: no clock, no
// I/O, no shared state, so passes are deterministic and parallel-safe.
package valuation

import (
	"fmt"

	"github.com/aristath/folio/internal/domain"
)

// ComputePositions derives one Position per holding plus aggregate totals.
//
// A holding whose quote is present and error-free becomes a priced position.
// A missing entry or a per-symbol error marks the position stale: its current
// price is nil and its market value and gain are excluded from every
// aggregate, so one failed lookup never corrupts portfolio-wide totals.
// Weights are renormalized over priced positions so they sum to 1.0.
// Position order preserves the holdings' input order.
//
// Holdings are validated at the store boundary; a malformed holding reaching
// the engine is an upstream contract violation and returns a
// *domain.ValidationError rather than being silently coerced.
func ComputePositions(holdings []domain.Holding, quotes map[string]domain.QuoteResult) (*domain.PortfolioSummary, error) {
	summary := &domain.PortfolioSummary{
		Positions: make([]domain.Position, 0, len(holdings)),
		Weights:   make(map[string]float64),
	}

	seen := make(map[string]bool, len(holdings))
	for _, h := range holdings {
		if err := checkShape(h, seen); err != nil {
			return nil, err
		}

		pos := domain.Position{
			Symbol:        h.Symbol,
			Quantity:      h.Quantity,
			PurchasePrice: h.PurchasePrice,
			Sector:        h.Sector,
			CostBasis:     h.CostBasis(),
		}

		result, ok := quotes[h.Symbol]
		if !ok || !result.Ok() {
			pos.Stale = true
			summary.StaleCount++
			summary.Positions = append(summary.Positions, pos)
			continue
		}

		quote := result.Quote
		price := quote.Price
		asOf := quote.AsOf

		pos.CurrentPrice = &price
		pos.QuoteAsOf = &asOf
		pos.Name = quote.Name
		pos.MarketValue = h.Quantity * price
		pos.Gain = pos.MarketValue - pos.CostBasis
		if pos.CostBasis > 0 {
			pct := pos.Gain / pos.CostBasis
			pos.GainPct = &pct
		}
		// Holding's own sector wins; provider metadata fills the gap
		if pos.Sector == "" {
			pos.Sector = quote.Sector
		}

		summary.PricedCount++
		summary.TotalCostBasis += pos.CostBasis
		summary.TotalMarketValue += pos.MarketValue
		summary.TotalGain += pos.Gain

		summary.Positions = append(summary.Positions, pos)
	}

	if summary.TotalCostBasis > 0 {
		pct := summary.TotalGain / summary.TotalCostBasis
		summary.TotalGainPct = &pct
	}

	// Weights renormalized over priced positions; stale positions keep nil
	if summary.TotalMarketValue > 0 {
		for i := range summary.Positions {
			pos := &summary.Positions[i]
			if pos.Stale {
				continue
			}
			weight := pos.MarketValue / summary.TotalMarketValue
			pos.Weight = &weight
			summary.Weights[pos.Symbol] = weight
		}
	}

	return summary, nil
}

// checkShape rejects input the validated Holding type cannot legally carry.
func checkShape(h domain.Holding, seen map[string]bool) error {
	if h.Symbol == "" {
		return &domain.ValidationError{Field: "symbol", Reason: "must not be empty"}
	}
	if h.Quantity <= 0 {
		return &domain.ValidationError{Field: "quantity", Reason: fmt.Sprintf("must be positive, got %v for %s", h.Quantity, h.Symbol)}
	}
	if h.PurchasePrice < 0 {
		return &domain.ValidationError{Field: "purchase_price", Reason: fmt.Sprintf("must not be negative, got %v for %s", h.PurchasePrice, h.Symbol)}
	}
	if seen[h.Symbol] {
		return &domain.ValidationError{Field: "symbol", Reason: fmt.Sprintf("duplicate symbol %s", h.Symbol)}
	}
	seen[h.Symbol] = true
	return nil
}
