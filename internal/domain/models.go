// Package domain provides core domain models and types.
package domain

import (
	"strings"
	"time"
)

// SectorUnclassified is the reserved sector bucket for holdings whose sector
// is unknown (no user-entered sector and no provider metadata).
const SectorUnclassified = "Unclassified"

// Severity indicates how strongly a recommendation should be surfaced
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Holding is a user-entered position: symbol, how much was bought, and at
// what price. Purchase prices are assumed USD. Holdings are validated at
// construction (see NewHolding) and treated as immutable once stored.
type Holding struct {
	Symbol        string  `json:"symbol"`
	Quantity      float64 `json:"quantity"`
	PurchasePrice float64 `json:"purchase_price"`
	Sector        string  `json:"sector,omitempty"`
}

// NewHolding validates and normalizes user input into a Holding.
// The symbol is normalized to uppercase; quantity must be positive and
// purchase price non-negative. Invalid input returns a *ValidationError.
func NewHolding(symbol string, quantity, purchasePrice float64, sector string) (Holding, error) {
	normalized := NormalizeSymbol(symbol)
	if normalized == "" {
		return Holding{}, &ValidationError{Field: "symbol", Reason: "must not be empty"}
	}
	if quantity <= 0 {
		return Holding{}, &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if purchasePrice < 0 {
		return Holding{}, &ValidationError{Field: "purchase_price", Reason: "must not be negative"}
	}

	return Holding{
		Symbol:        normalized,
		Quantity:      quantity,
		PurchasePrice: purchasePrice,
		Sector:        strings.TrimSpace(sector),
	}, nil
}

// CostBasis returns quantity times purchase price.
func (h Holding) CostBasis() float64 {
	return h.Quantity * h.PurchasePrice
}

// NormalizeSymbol uppercases and trims a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Quote is a market data point for one symbol, fetched per valuation pass.
// Quotes are ephemeral: they are never part of the portfolio's durable state,
// only the last successful quote per symbol may be cached for resilience.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	AsOf          time.Time `json:"as_of"`
	Sector        string    `json:"sector,omitempty"`
	Name          string    `json:"name,omitempty"`
	PERatio       *float64  `json:"pe_ratio,omitempty"`
	DividendYield *float64  `json:"dividend_yield,omitempty"`
}

// QuoteResult is the per-symbol outcome of a batch quote lookup: either a
// quote or the error that prevented one. Exactly one of the fields is set.
type QuoteResult struct {
	Quote *Quote
	Err   error
}

// Ok reports whether the lookup produced a usable quote.
func (r QuoteResult) Ok() bool {
	return r.Err == nil && r.Quote != nil
}

// Position is a Holding enriched with a current quote and derived monetary
// metrics. Positions are computed per valuation pass and never persisted.
// A stale position (no usable quote this pass) keeps its holding fields but
// carries a nil CurrentPrice and is excluded from aggregate totals.
type Position struct {
	Symbol        string     `json:"symbol"`
	Quantity      float64    `json:"quantity"`
	PurchasePrice float64    `json:"purchase_price"`
	Sector        string     `json:"sector,omitempty"`
	Name          string     `json:"name,omitempty"`
	CurrentPrice  *float64   `json:"current_price"`
	CostBasis     float64    `json:"cost_basis"`
	MarketValue   float64    `json:"market_value"`
	Gain          float64    `json:"gain"`
	GainPct       *float64   `json:"gain_pct"`
	Weight        *float64   `json:"weight"`
	Stale         bool       `json:"stale"`
	QuoteAsOf     *time.Time `json:"quote_as_of,omitempty"`
}

// PortfolioSummary aggregates a full valuation pass. Totals and weights
// cover only non-stale positions; Positions preserves the holdings' input
// order. TotalGainPct is nil when the priced cost basis is zero.
type PortfolioSummary struct {
	TotalCostBasis   float64            `json:"total_cost_basis"`
	TotalMarketValue float64            `json:"total_market_value"`
	TotalGain        float64            `json:"total_gain"`
	TotalGainPct     *float64           `json:"total_gain_pct"`
	Positions        []Position         `json:"positions"`
	Weights          map[string]float64 `json:"weights"`
	PricedCount      int                `json:"priced_count"`
	StaleCount       int                `json:"stale_count"`
}

// StaleRatio returns the fraction of positions without a usable quote.
// Zero for an empty portfolio.
func (s *PortfolioSummary) StaleRatio() float64 {
	if len(s.Positions) == 0 {
		return 0
	}
	return float64(s.StaleCount) / float64(len(s.Positions))
}

// SectorStat aggregates the priced positions of one sector.
type SectorStat struct {
	MarketValue   float64 `json:"market_value"`
	Weight        float64 `json:"weight"`
	PositionCount int     `json:"position_count"`
}

// SectorBreakdown groups priced positions by sector and carries the
// portfolio concentration score: the Herfindahl-style sum of squared
// position weights, in [1/N, 1] for N priced positions. 1.0 means a
// single-asset portfolio; lower means more diversified.
type SectorBreakdown struct {
	Sectors            map[string]SectorStat `json:"sectors"`
	ConcentrationScore float64               `json:"concentration_score"`
	PricedPositions    int                   `json:"priced_positions"`
}

// Recommendation is a qualitative signal emitted by the advisor rules.
// Rule is a stable tag naming the rule that fired.
type Recommendation struct {
	Severity Severity `json:"severity"`
	Rule     string   `json:"rule"`
	Message  string   `json:"message"`
}
