package holdings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folio/internal/domain"
)

func newTestFile(t *testing.T) *PortfolioFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "portfolio.json")
	return NewPortfolioFile(path, zerolog.Nop())
}

func TestPortfolioFile_SaveAndLoad(t *testing.T) {
	f := newTestFile(t)

	holdings := []domain.Holding{
		mustHolding(t, "AAPL", 10, 100, "Technology"),
		mustHolding(t, "MSFT", 5.5, 210.25, ""),
		mustHolding(t, "JNJ", 3, 150, "Healthcare"),
	}
	require.NoError(t, f.Save(holdings))

	loaded, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, holdings, loaded)
}

func TestPortfolioFile_LoadMissingFile(t *testing.T) {
	f := newTestFile(t)

	loaded, err := f.Load()
	require.NoError(t, err)
	assert.NotNil(t, loaded)
	assert.Empty(t, loaded)
}

func TestPortfolioFile_SaveLeavesNoTempFile(t *testing.T) {
	f := newTestFile(t)

	require.NoError(t, f.Save([]domain.Holding{mustHolding(t, "AAPL", 10, 100, "")}))

	_, err := os.Stat(f.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestPortfolioFile_SaveOverwrites(t *testing.T) {
	f := newTestFile(t)

	require.NoError(t, f.Save([]domain.Holding{
		mustHolding(t, "AAPL", 10, 100, ""),
		mustHolding(t, "MSFT", 5, 200, ""),
	}))
	require.NoError(t, f.Save([]domain.Holding{
		mustHolding(t, "GOOG", 2, 300, ""),
	}))

	loaded, err := f.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "GOOG", loaded[0].Symbol)
}

func TestPortfolioFile_SaveNil(t *testing.T) {
	f := newTestFile(t)

	require.NoError(t, f.Save(nil))

	loaded, err := f.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestPortfolioFile_LoadRejectsCorruptRecords(t *testing.T) {
	f := newTestFile(t)

	raw := `[
  {"symbol": "AAPL", "quantity": 10, "purchase_price": 100},
  {"symbol": "BAD", "quantity": -5, "purchase_price": 100},
  {"symbol": "", "quantity": 1, "purchase_price": 50},
  {"symbol": "NEG", "quantity": 1, "purchase_price": -2},
  {"symbol": "aapl", "quantity": 3, "purchase_price": 90}
]`
	require.NoError(t, os.WriteFile(f.Path(), []byte(raw), 0644))

	loaded, err := f.Load()
	require.Error(t, err)
	assert.Nil(t, loaded)

	var corrupt *domain.CorruptPortfolioError
	require.True(t, errors.As(err, &corrupt))
	assert.Equal(t, f.Path(), corrupt.Path)
	require.Len(t, corrupt.Records, 4)

	assert.Equal(t, 1, corrupt.Records[0].Index)
	assert.Equal(t, "BAD", corrupt.Records[0].Symbol)
	assert.Contains(t, corrupt.Records[0].Reason, "quantity")

	assert.Equal(t, 2, corrupt.Records[1].Index)
	assert.Contains(t, corrupt.Records[1].Reason, "symbol")

	assert.Equal(t, 3, corrupt.Records[2].Index)
	assert.Contains(t, corrupt.Records[2].Reason, "purchase_price")

	// duplicate detection runs on the normalized symbol
	assert.Equal(t, 4, corrupt.Records[3].Index)
	assert.Equal(t, "AAPL", corrupt.Records[3].Symbol)
	assert.Equal(t, "duplicate symbol", corrupt.Records[3].Reason)
}

func TestPortfolioFile_LoadRejectsMalformedJSON(t *testing.T) {
	f := newTestFile(t)
	require.NoError(t, os.WriteFile(f.Path(), []byte("{not json"), 0644))

	_, err := f.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse portfolio file")
}

func TestPortfolioFile_LoadNormalizesSymbols(t *testing.T) {
	f := newTestFile(t)

	raw := `[{"symbol": " msft ", "quantity": 2, "purchase_price": 300, "sector": " Technology "}]`
	require.NoError(t, os.WriteFile(f.Path(), []byte(raw), 0644))

	loaded, err := f.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "MSFT", loaded[0].Symbol)
	assert.Equal(t, "Technology", loaded[0].Sector)
}
