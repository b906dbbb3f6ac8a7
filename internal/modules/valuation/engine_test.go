package valuation

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folio/internal/domain"
)

func holding(symbol string, qty, price float64, sector string) domain.Holding {
	return domain.Holding{
		Symbol:        symbol,
		Quantity:      qty,
		PurchasePrice: price,
		Sector:        sector,
	}
}

func quoteFor(symbol string, price float64) domain.QuoteResult {
	return domain.QuoteResult{
		Quote: &domain.Quote{
			Symbol: symbol,
			Price:  price,
			AsOf:   time.Date(2024, 6, 3, 15, 30, 0, 0, time.UTC),
		},
	}
}

func failedQuote(symbol string) domain.QuoteResult {
	return domain.QuoteResult{
		Err: fmt.Errorf("%s: %w", symbol, domain.ErrQuoteUnavailable),
	}
}

func TestComputePositions_SingleHolding(t *testing.T) {
	holdings := []domain.Holding{holding("AAPL", 10, 100, "")}
	quotes := map[string]domain.QuoteResult{"AAPL": quoteFor("AAPL", 150)}

	summary, err := ComputePositions(holdings, quotes)
	require.NoError(t, err)

	require.Len(t, summary.Positions, 1)
	pos := summary.Positions[0]

	assert.InDelta(t, 1000.0, pos.CostBasis, 1e-9)
	assert.InDelta(t, 1500.0, pos.MarketValue, 1e-9)
	assert.InDelta(t, 500.0, pos.Gain, 1e-9)
	require.NotNil(t, pos.GainPct)
	assert.InDelta(t, 0.5, *pos.GainPct, 1e-9)
	require.NotNil(t, pos.Weight)
	assert.InDelta(t, 1.0, *pos.Weight, 1e-9)
	assert.False(t, pos.Stale)

	assert.InDelta(t, 1000.0, summary.TotalCostBasis, 1e-9)
	assert.InDelta(t, 1500.0, summary.TotalMarketValue, 1e-9)
	assert.InDelta(t, 500.0, summary.TotalGain, 1e-9)
	require.NotNil(t, summary.TotalGainPct)
	assert.InDelta(t, 0.5, *summary.TotalGainPct, 1e-9)
	assert.Equal(t, 1, summary.PricedCount)
	assert.Equal(t, 0, summary.StaleCount)
	assert.InDelta(t, 1.0, summary.Weights["AAPL"], 1e-9)
}

func TestComputePositions_MissingQuoteMarksStale(t *testing.T) {
	holdings := []domain.Holding{
		holding("AAPL", 10, 100, ""),
		holding("MSFT", 10, 100, ""),
	}
	quotes := map[string]domain.QuoteResult{"AAPL": quoteFor("AAPL", 150)}

	summary, err := ComputePositions(holdings, quotes)
	require.NoError(t, err)

	require.Len(t, summary.Positions, 2)

	aapl := summary.Positions[0]
	assert.False(t, aapl.Stale)
	require.NotNil(t, aapl.Weight)
	assert.InDelta(t, 1.0, *aapl.Weight, 1e-9)

	msft := summary.Positions[1]
	assert.True(t, msft.Stale)
	assert.Nil(t, msft.CurrentPrice)
	assert.Nil(t, msft.GainPct)
	assert.Nil(t, msft.Weight)
	assert.InDelta(t, 1000.0, msft.CostBasis, 1e-9) // still displayed

	// Stale position excluded from every aggregate
	assert.InDelta(t, 1500.0, summary.TotalMarketValue, 1e-9)
	assert.InDelta(t, 1000.0, summary.TotalCostBasis, 1e-9)
	assert.InDelta(t, 500.0, summary.TotalGain, 1e-9)
	assert.Equal(t, 1, summary.StaleCount)
	assert.NotContains(t, summary.Weights, "MSFT")
	assert.InDelta(t, 0.5, summary.StaleRatio(), 1e-9)
}

func TestComputePositions_QuoteErrorMarksStale(t *testing.T) {
	holdings := []domain.Holding{holding("AAPL", 10, 100, "")}
	quotes := map[string]domain.QuoteResult{"AAPL": failedQuote("AAPL")}

	summary, err := ComputePositions(holdings, quotes)
	require.NoError(t, err)

	require.Len(t, summary.Positions, 1)
	assert.True(t, summary.Positions[0].Stale)
	assert.InDelta(t, 0.0, summary.TotalMarketValue, 1e-9)
	assert.Empty(t, summary.Weights)
	assert.Nil(t, summary.TotalGainPct)
}

func TestComputePositions_EmptyHoldings(t *testing.T) {
	summary, err := ComputePositions(nil, map[string]domain.QuoteResult{})
	require.NoError(t, err)

	assert.Empty(t, summary.Positions)
	assert.Empty(t, summary.Weights)
	assert.InDelta(t, 0.0, summary.TotalMarketValue, 1e-9)
	assert.Nil(t, summary.TotalGainPct)
	assert.InDelta(t, 0.0, summary.StaleRatio(), 1e-9)
}

func TestComputePositions_WeightsSumToOne(t *testing.T) {
	holdings := []domain.Holding{
		holding("AAPL", 10, 100, ""),
		holding("MSFT", 3, 250, ""),
		holding("GLD", 7.5, 180.33, ""),
		holding("VTI", 12, 210.07, ""),
	}
	quotes := map[string]domain.QuoteResult{
		"AAPL": quoteFor("AAPL", 187.53),
		"MSFT": quoteFor("MSFT", 410.11),
		"GLD":  quoteFor("GLD", 193.77),
		"VTI":  quoteFor("VTI", 263.41),
	}

	summary, err := ComputePositions(holdings, quotes)
	require.NoError(t, err)

	var sum float64
	for _, w := range summary.Weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Len(t, summary.Weights, 4)
}

func TestComputePositions_ZeroCostBasis(t *testing.T) {
	holdings := []domain.Holding{holding("GIFT", 5, 0, "")}
	quotes := map[string]domain.QuoteResult{"GIFT": quoteFor("GIFT", 10)}

	summary, err := ComputePositions(holdings, quotes)
	require.NoError(t, err)

	pos := summary.Positions[0]
	assert.Nil(t, pos.GainPct) // undefined, not NaN or Inf
	assert.InDelta(t, 50.0, pos.MarketValue, 1e-9)
	assert.InDelta(t, 50.0, pos.Gain, 1e-9)

	assert.Nil(t, summary.TotalGainPct)
	assert.False(t, math.IsNaN(summary.TotalMarketValue))
	assert.False(t, math.IsInf(summary.TotalGain, 0))
}

func TestComputePositions_Idempotence(t *testing.T) {
	holdings := []domain.Holding{
		holding("AAPL", 10, 100, "Technology"),
		holding("MSFT", 3, 250, ""),
	}
	quotes := map[string]domain.QuoteResult{
		"AAPL": quoteFor("AAPL", 187.53),
		"MSFT": failedQuote("MSFT"),
	}

	first, err := ComputePositions(holdings, quotes)
	require.NoError(t, err)
	second, err := ComputePositions(holdings, quotes)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestComputePositions_Monotonicity(t *testing.T) {
	quotes := map[string]domain.QuoteResult{
		"AAPL": quoteFor("AAPL", 150),
		"MSFT": quoteFor("MSFT", 400),
	}

	base, err := ComputePositions([]domain.Holding{
		holding("AAPL", 10, 100, ""),
		holding("MSFT", 5, 300, ""),
	}, quotes)
	require.NoError(t, err)

	bumped, err := ComputePositions([]domain.Holding{
		holding("AAPL", 15, 100, ""),
		holding("MSFT", 5, 300, ""),
	}, quotes)
	require.NoError(t, err)

	assert.Greater(t, bumped.Positions[0].MarketValue, base.Positions[0].MarketValue)
	assert.GreaterOrEqual(t, bumped.TotalMarketValue, base.TotalMarketValue)
}

func TestComputePositions_PreservesInputOrder(t *testing.T) {
	holdings := []domain.Holding{
		holding("ZM", 1, 50, ""),
		holding("AAPL", 1, 50, ""),
		holding("MSFT", 1, 50, ""),
	}
	quotes := map[string]domain.QuoteResult{
		"ZM":   quoteFor("ZM", 60),
		"AAPL": quoteFor("AAPL", 70),
		"MSFT": quoteFor("MSFT", 80),
	}

	summary, err := ComputePositions(holdings, quotes)
	require.NoError(t, err)

	symbols := make([]string, 0, len(summary.Positions))
	for _, p := range summary.Positions {
		symbols = append(symbols, p.Symbol)
	}
	assert.Equal(t, []string{"ZM", "AAPL", "MSFT"}, symbols)
}

func TestComputePositions_SectorResolution(t *testing.T) {
	holdings := []domain.Holding{
		holding("AAPL", 1, 100, "My Tech"), // user sector wins
		holding("MSFT", 1, 100, ""),        // provider sector fills the gap
		holding("MYSTERY", 1, 100, ""),     // neither: stays empty
	}

	aapl := quoteFor("AAPL", 150)
	aapl.Quote.Sector = "Technology"
	msft := quoteFor("MSFT", 400)
	msft.Quote.Sector = "Technology"
	mystery := quoteFor("MYSTERY", 10)

	summary, err := ComputePositions(holdings, map[string]domain.QuoteResult{
		"AAPL": aapl, "MSFT": msft, "MYSTERY": mystery,
	})
	require.NoError(t, err)

	assert.Equal(t, "My Tech", summary.Positions[0].Sector)
	assert.Equal(t, "Technology", summary.Positions[1].Sector)
	assert.Equal(t, "", summary.Positions[2].Sector)
}

func TestComputePositions_QuoteMetadataPassedThrough(t *testing.T) {
	q := quoteFor("AAPL", 150)
	q.Quote.Name = "Apple Inc."

	summary, err := ComputePositions(
		[]domain.Holding{holding("AAPL", 1, 100, "")},
		map[string]domain.QuoteResult{"AAPL": q},
	)
	require.NoError(t, err)

	pos := summary.Positions[0]
	assert.Equal(t, "Apple Inc.", pos.Name)
	require.NotNil(t, pos.QuoteAsOf)
	assert.True(t, q.Quote.AsOf.Equal(*pos.QuoteAsOf))
}

func TestComputePositions_MalformedInput(t *testing.T) {
	testCases := []struct {
		name     string
		holdings []domain.Holding
		field    string
	}{
		{"empty symbol", []domain.Holding{holding("", 1, 100, "")}, "symbol"},
		{"zero quantity", []domain.Holding{holding("AAPL", 0, 100, "")}, "quantity"},
		{"negative quantity", []domain.Holding{holding("AAPL", -5, 100, "")}, "quantity"},
		{"negative price", []domain.Holding{holding("AAPL", 1, -10, "")}, "purchase_price"},
		{"duplicate symbol", []domain.Holding{
			holding("AAPL", 1, 100, ""),
			holding("AAPL", 2, 200, ""),
		}, "symbol"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputePositions(tc.holdings, map[string]domain.QuoteResult{})
			require.Error(t, err)

			var vErr *domain.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tc.field, vErr.Field)
		})
	}
}

func TestComputePositions_AllQuotesFailed(t *testing.T) {
	holdings := []domain.Holding{
		holding("AAPL", 10, 100, ""),
		holding("MSFT", 10, 100, ""),
	}
	quotes := map[string]domain.QuoteResult{
		"AAPL": failedQuote("AAPL"),
		"MSFT": failedQuote("MSFT"),
	}

	summary, err := ComputePositions(holdings, quotes)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.StaleCount)
	assert.Equal(t, 0, summary.PricedCount)
	assert.InDelta(t, 0.0, summary.TotalMarketValue, 1e-9)
	assert.Empty(t, summary.Weights)
	assert.InDelta(t, 1.0, summary.StaleRatio(), 1e-9)
}
