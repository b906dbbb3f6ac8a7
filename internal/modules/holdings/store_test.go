package holdings

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folio/internal/domain"
)

func mustHolding(t *testing.T, symbol string, quantity, price float64, sector string) domain.Holding {
	t.Helper()
	h, err := domain.NewHolding(symbol, quantity, price, sector)
	require.NoError(t, err)
	return h
}

func TestStore_AddAndGet(t *testing.T) {
	s := NewStore()

	require.NoError(t, s.Add(mustHolding(t, "AAPL", 10, 100, "Technology")))

	h, ok := s.Get("AAPL")
	require.True(t, ok)
	assert.Equal(t, "AAPL", h.Symbol)
	assert.Equal(t, 10.0, h.Quantity)
	assert.Equal(t, 100.0, h.PurchasePrice)
	assert.Equal(t, "Technology", h.Sector)

	// lookup normalizes the symbol
	_, ok = s.Get(" aapl ")
	assert.True(t, ok)

	_, ok = s.Get("MSFT")
	assert.False(t, ok)
}

func TestStore_AddDuplicateRejected(t *testing.T) {
	s := NewStore()

	require.NoError(t, s.Add(mustHolding(t, "AAPL", 10, 100, "")))

	err := s.Add(mustHolding(t, "AAPL", 5, 200, ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicateHolding)
	assert.Contains(t, err.Error(), "AAPL")

	// the original holding is untouched
	h, _ := s.Get("AAPL")
	assert.Equal(t, 10.0, h.Quantity)
	assert.Equal(t, 1, s.Count())
}

func TestStore_Update(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(mustHolding(t, "AAPL", 10, 100, "")))
	require.NoError(t, s.Add(mustHolding(t, "MSFT", 5, 200, "")))

	require.NoError(t, s.Update(mustHolding(t, "AAPL", 15, 110, "Technology")))

	h, _ := s.Get("AAPL")
	assert.Equal(t, 15.0, h.Quantity)
	assert.Equal(t, 110.0, h.PurchasePrice)
	assert.Equal(t, "Technology", h.Sector)

	// update keeps the insertion position
	assert.Equal(t, []string{"AAPL", "MSFT"}, s.Symbols())
}

func TestStore_UpdateUnknownSymbol(t *testing.T) {
	s := NewStore()

	err := s.Update(mustHolding(t, "AAPL", 10, 100, ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrHoldingNotFound)
}

func TestStore_Remove(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(mustHolding(t, "AAPL", 10, 100, "")))
	require.NoError(t, s.Add(mustHolding(t, "MSFT", 5, 200, "")))
	require.NoError(t, s.Add(mustHolding(t, "GOOG", 2, 300, "")))

	require.NoError(t, s.Remove("MSFT"))

	assert.Equal(t, []string{"AAPL", "GOOG"}, s.Symbols())
	_, ok := s.Get("MSFT")
	assert.False(t, ok)

	// the index stays consistent after the gap closes
	h, ok := s.Get("GOOG")
	require.True(t, ok)
	assert.Equal(t, 2.0, h.Quantity)

	require.NoError(t, s.Remove(" goog "))
	assert.Equal(t, []string{"AAPL"}, s.Symbols())
}

func TestStore_RemoveUnknownSymbol(t *testing.T) {
	s := NewStore()

	err := s.Remove("AAPL")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrHoldingNotFound)
}

func TestStore_ListIsSnapshot(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(mustHolding(t, "AAPL", 10, 100, "")))

	list := s.List()
	require.Len(t, list, 1)
	list[0].Quantity = 999

	h, _ := s.Get("AAPL")
	assert.Equal(t, 10.0, h.Quantity)
}

func TestStore_PreservesInsertionOrder(t *testing.T) {
	s := NewStore()
	symbols := []string{"ZM", "AAPL", "MSFT", "GOOG", "AMZN"}
	for i, sym := range symbols {
		require.NoError(t, s.Add(mustHolding(t, sym, float64(i+1), 100, "")))
	}

	assert.Equal(t, symbols, s.Symbols())

	list := s.List()
	for i, h := range list {
		assert.Equal(t, symbols[i], h.Symbol)
	}
}

func TestStore_ReplaceAll(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(mustHolding(t, "OLD", 1, 1, "")))

	next := []domain.Holding{
		mustHolding(t, "AAPL", 10, 100, ""),
		mustHolding(t, "MSFT", 5, 200, ""),
	}
	require.NoError(t, s.ReplaceAll(next))

	assert.Equal(t, []string{"AAPL", "MSFT"}, s.Symbols())
	_, ok := s.Get("OLD")
	assert.False(t, ok)
}

func TestStore_ReplaceAllRejectsDuplicates(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(mustHolding(t, "KEEP", 1, 1, "")))

	err := s.ReplaceAll([]domain.Holding{
		mustHolding(t, "AAPL", 10, 100, ""),
		mustHolding(t, "AAPL", 5, 200, ""),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicateHolding)

	// failed swap leaves the store unchanged
	assert.Equal(t, []string{"KEEP"}, s.Symbols())
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		h := mustHolding(t, fmt.Sprintf("SYM%d", i), 1, 100, "")
		wg.Add(1)
		go func(h domain.Holding) {
			defer wg.Done()
			assert.NoError(t, s.Add(h))
			s.List()
			s.Count()
			s.Get(h.Symbol)
		}(h)
	}
	wg.Wait()

	assert.Equal(t, 20, s.Count())
}
