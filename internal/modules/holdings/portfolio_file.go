package holdings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/domain"
)

// PortfolioFile persists the holding collection as a JSON array. Writes are
// atomic (temp file + rename) so a crash mid-save never leaves a truncated
// portfolio behind.
type PortfolioFile struct {
	path string
	log  zerolog.Logger
}

// NewPortfolioFile creates a persistence handle for the given path.
func NewPortfolioFile(path string, log zerolog.Logger) *PortfolioFile {
	return &PortfolioFile{
		path: path,
		log:  log.With().Str("component", "portfolio_file").Logger(),
	}
}

// Path returns the backing file path.
func (f *PortfolioFile) Path() string {
	return f.path
}

// Save atomically replaces the portfolio file with the given holdings.
func (f *PortfolioFile) Save(holdings []domain.Holding) error {
	if holdings == nil {
		holdings = []domain.Holding{}
	}

	data, err := json.MarshalIndent(holdings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode portfolio: %w", err)
	}
	data = append(data, '\n')

	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write portfolio file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace portfolio file: %w", err)
	}

	f.log.Debug().Int("holdings", len(holdings)).Str("path", f.path).Msg("Portfolio saved")
	return nil
}

// Load reads and validates the portfolio file. A missing file is an empty
// portfolio, not an error. Every record is validated (symbol, positive
// quantity, non-negative price, no duplicate symbols); any invalid record
// fails the whole load with a *domain.CorruptPortfolioError itemizing the
// offenders, so a corrupt file is never partially applied.
func (f *PortfolioFile) Load() ([]domain.Holding, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		f.log.Debug().Str("path", f.path).Msg("No portfolio file yet, starting empty")
		return []domain.Holding{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read portfolio file: %w", err)
	}

	var records []domain.Holding
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse portfolio file %s: %w", f.path, err)
	}

	holdings := make([]domain.Holding, 0, len(records))
	seen := make(map[string]bool, len(records))
	var invalid []domain.RecordError

	for i, rec := range records {
		h, err := domain.NewHolding(rec.Symbol, rec.Quantity, rec.PurchasePrice, rec.Sector)
		if err != nil {
			reason := err.Error()
			var ve *domain.ValidationError
			if errors.As(err, &ve) {
				reason = fmt.Sprintf("%s %s", ve.Field, ve.Reason)
			}
			invalid = append(invalid, domain.RecordError{Index: i, Symbol: rec.Symbol, Reason: reason})
			continue
		}
		if seen[h.Symbol] {
			invalid = append(invalid, domain.RecordError{Index: i, Symbol: h.Symbol, Reason: "duplicate symbol"})
			continue
		}
		seen[h.Symbol] = true
		holdings = append(holdings, h)
	}

	if len(invalid) > 0 {
		return nil, &domain.CorruptPortfolioError{Path: f.path, Records: invalid}
	}

	f.log.Info().Int("holdings", len(holdings)).Str("path", f.path).Msg("Portfolio loaded")
	return holdings, nil
}
