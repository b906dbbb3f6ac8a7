package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateHolding is returned when adding a symbol that is already held.
	ErrDuplicateHolding = errors.New("holding already exists for symbol")

	// ErrHoldingNotFound is returned when updating or removing an unknown symbol.
	ErrHoldingNotFound = errors.New("holding not found")

	// ErrQuoteUnavailable marks a per-symbol quote lookup failure. It degrades
	// the affected position to stale rather than failing the valuation pass.
	ErrQuoteUnavailable = errors.New("quote unavailable")

	// ErrInsufficientData is returned by the analyzer and analytics when zero
	// priced positions exist (empty portfolio or every quote failed).
	ErrInsufficientData = errors.New("insufficient data: no priced positions")
)

// ValidationError reports why a holding was rejected at the store boundary.
// Invalid input never reaches the valuation engine.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid holding: %s %s", e.Field, e.Reason)
}

// RecordError describes one invalid record encountered while loading a
// persisted portfolio.
type RecordError struct {
	Index  int    `json:"index"`
	Symbol string `json:"symbol,omitempty"`
	Reason string `json:"reason"`
}

// CorruptPortfolioError is returned when a persisted portfolio fails
// validation on load. The load is rejected as a whole; Records itemizes
// every offending entry so the operator can repair the file.
type CorruptPortfolioError struct {
	Path    string
	Records []RecordError
}

func (e *CorruptPortfolioError) Error() string {
	return fmt.Sprintf("portfolio file %s is corrupt: %d invalid records", e.Path, len(e.Records))
}
