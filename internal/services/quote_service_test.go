package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folio/internal/clients/yahoo"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/quotecache"
)

type mockQuoteClient struct {
	mock.Mock
}

func (m *mockQuoteClient) GetQuotes(ctx context.Context, symbols []string) (map[string]yahoo.Quote, error) {
	args := m.Called(ctx, symbols)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]yahoo.Quote), args.Error(1)
}

func setupCache(t *testing.T) *quotecache.Repository {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, quotecache.InitSchema(db))

	return quotecache.NewRepository(db)
}

func yahooQuote(symbol string, price float64) yahoo.Quote {
	return yahoo.Quote{
		Symbol: symbol,
		Price:  price,
		AsOf:   time.Date(2024, 6, 3, 15, 30, 0, 0, time.UTC),
		Sector: "Technology",
	}
}

func TestFetchQuotes_Empty(t *testing.T) {
	client := new(mockQuoteClient)
	svc := NewQuoteService(client, setupCache(t), time.Hour, zerolog.Nop())

	results := svc.FetchQuotes(context.Background(), nil)

	assert.Empty(t, results)
	client.AssertExpectations(t)
}

func TestFetchQuotes_FetchesAndCaches(t *testing.T) {
	client := new(mockQuoteClient)
	cache := setupCache(t)
	svc := NewQuoteService(client, cache, time.Hour, zerolog.Nop())

	client.On("GetQuotes", mock.Anything, []string{"AAPL", "MSFT"}).
		Return(map[string]yahoo.Quote{
			"AAPL": yahooQuote("AAPL", 187.50),
			"MSFT": yahooQuote("MSFT", 410.20),
		}, nil).Once()

	results := svc.FetchQuotes(context.Background(), []string{"AAPL", "MSFT"})

	require.Len(t, results, 2)
	require.True(t, results["AAPL"].Ok())
	require.True(t, results["MSFT"].Ok())
	assert.InDelta(t, 187.50, results["AAPL"].Quote.Price, 1e-9)

	// Fetched quotes must land in the cache
	cached, err := cache.GetIfFresh("AAPL")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.InDelta(t, 187.50, cached.Price, 1e-9)

	client.AssertExpectations(t)
}

func TestFetchQuotes_ServesFreshCacheWithoutFetching(t *testing.T) {
	client := new(mockQuoteClient)
	cache := setupCache(t)
	svc := NewQuoteService(client, cache, time.Hour, zerolog.Nop())

	require.NoError(t, cache.Store(domain.Quote{
		Symbol: "AAPL",
		Price:  187.50,
		AsOf:   time.Now().UTC(),
	}, time.Hour))

	results := svc.FetchQuotes(context.Background(), []string{"AAPL"})

	require.True(t, results["AAPL"].Ok())
	assert.InDelta(t, 187.50, results["AAPL"].Quote.Price, 1e-9)

	// No expectations registered: any GetQuotes call would fail the test
	client.AssertExpectations(t)
}

func TestFetchQuotes_MissingSymbolGetsError(t *testing.T) {
	client := new(mockQuoteClient)
	svc := NewQuoteService(client, setupCache(t), time.Hour, zerolog.Nop())

	client.On("GetQuotes", mock.Anything, []string{"AAPL", "NOPE"}).
		Return(map[string]yahoo.Quote{
			"AAPL": yahooQuote("AAPL", 187.50),
		}, nil).Once()

	results := svc.FetchQuotes(context.Background(), []string{"AAPL", "NOPE"})

	require.Len(t, results, 2)
	assert.True(t, results["AAPL"].Ok())

	nope := results["NOPE"]
	assert.False(t, nope.Ok())
	assert.ErrorIs(t, nope.Err, domain.ErrQuoteUnavailable)

	client.AssertExpectations(t)
}

func TestFetchQuotes_StaleFallbackWhenProviderFails(t *testing.T) {
	client := new(mockQuoteClient)
	cache := setupCache(t)
	svc := NewQuoteService(client, cache, time.Hour, zerolog.Nop())

	staleAsOf := time.Now().Add(-48 * time.Hour).UTC()
	require.NoError(t, cache.Store(domain.Quote{
		Symbol: "AAPL",
		Price:  180.00,
		AsOf:   staleAsOf,
	}, -time.Minute))

	client.On("GetQuotes", mock.Anything, []string{"AAPL"}).
		Return(nil, fmt.Errorf("upstream down")).Once()

	results := svc.FetchQuotes(context.Background(), []string{"AAPL"})

	require.True(t, results["AAPL"].Ok())
	assert.InDelta(t, 180.00, results["AAPL"].Quote.Price, 1e-9)
	assert.True(t, staleAsOf.Equal(results["AAPL"].Quote.AsOf))

	client.AssertExpectations(t)
}

func TestFetchQuotes_ErrorWhenProviderFailsAndCacheEmpty(t *testing.T) {
	client := new(mockQuoteClient)
	svc := NewQuoteService(client, setupCache(t), time.Hour, zerolog.Nop())

	client.On("GetQuotes", mock.Anything, []string{"AAPL"}).
		Return(nil, fmt.Errorf("upstream down")).Once()

	results := svc.FetchQuotes(context.Background(), []string{"AAPL"})

	require.Len(t, results, 1)
	assert.False(t, results["AAPL"].Ok())
	assert.ErrorIs(t, results["AAPL"].Err, domain.ErrQuoteUnavailable)
	assert.Contains(t, results["AAPL"].Err.Error(), "upstream down")

	client.AssertExpectations(t)
}

func TestFetchQuotes_NormalizesAndDeduplicates(t *testing.T) {
	client := new(mockQuoteClient)
	svc := NewQuoteService(client, setupCache(t), time.Hour, zerolog.Nop())

	client.On("GetQuotes", mock.Anything, []string{"AAPL"}).
		Return(map[string]yahoo.Quote{"AAPL": yahooQuote("AAPL", 187.50)}, nil).Once()

	results := svc.FetchQuotes(context.Background(), []string{" aapl ", "AAPL", "aapl"})

	require.Len(t, results, 1)
	assert.True(t, results["AAPL"].Ok())

	client.AssertExpectations(t)
}

func TestFetchQuotes_NilCache(t *testing.T) {
	client := new(mockQuoteClient)
	svc := NewQuoteService(client, nil, time.Hour, zerolog.Nop())

	client.On("GetQuotes", mock.Anything, []string{"AAPL"}).
		Return(map[string]yahoo.Quote{"AAPL": yahooQuote("AAPL", 187.50)}, nil).Once()

	results := svc.FetchQuotes(context.Background(), []string{"AAPL"})

	require.True(t, results["AAPL"].Ok())
	client.AssertExpectations(t)
}

func TestFetchQuotes_CompleteMapInvariant(t *testing.T) {
	client := new(mockQuoteClient)
	svc := NewQuoteService(client, setupCache(t), time.Hour, zerolog.Nop())

	client.On("GetQuotes", mock.Anything, mock.Anything).
		Return(map[string]yahoo.Quote{"B": yahooQuote("B", 2.0)}, nil).Once()

	symbols := []string{"A", "B", "C"}
	results := svc.FetchQuotes(context.Background(), symbols)

	require.Len(t, results, len(symbols))
	for _, s := range symbols {
		result, ok := results[s]
		require.True(t, ok, s)
		if !result.Ok() {
			assert.True(t, errors.Is(result.Err, domain.ErrQuoteUnavailable), s)
		}
	}

	client.AssertExpectations(t)
}
