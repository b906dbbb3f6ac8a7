// Package holdings owns the user's holding collection: an in-memory ordered
// store plus JSON file persistence.
package holdings

import (
	"fmt"
	"sync"

	"github.com/aristath/folio/internal/domain"
)

// Store is the in-memory holding collection. Insertion order is preserved
// so valuation output follows the order the user entered holdings. Reads
// return copies; a stored holding is never mutated in place.
type Store struct {
	mu       sync.RWMutex
	holdings []domain.Holding
	index    map[string]int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		index: make(map[string]int),
	}
}

// Add appends a holding. Holdings are validated at construction
// (domain.NewHolding); the store only enforces symbol uniqueness.
func (s *Store) Add(h domain.Holding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[h.Symbol]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateHolding, h.Symbol)
	}

	s.index[h.Symbol] = len(s.holdings)
	s.holdings = append(s.holdings, h)
	return nil
}

// Update replaces the stored holding for h.Symbol, keeping its position in
// the input order.
func (s *Store) Update(h domain.Holding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, exists := s.index[h.Symbol]
	if !exists {
		return fmt.Errorf("%w: %s", domain.ErrHoldingNotFound, h.Symbol)
	}

	s.holdings[i] = h
	return nil
}

// Remove deletes the holding for symbol, closing the order gap.
func (s *Store) Remove(symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	symbol = domain.NormalizeSymbol(symbol)
	i, exists := s.index[symbol]
	if !exists {
		return fmt.Errorf("%w: %s", domain.ErrHoldingNotFound, symbol)
	}

	s.holdings = append(s.holdings[:i], s.holdings[i+1:]...)
	delete(s.index, symbol)
	for j := i; j < len(s.holdings); j++ {
		s.index[s.holdings[j].Symbol] = j
	}
	return nil
}

// Get looks up a holding by symbol.
func (s *Store) Get(symbol string) (domain.Holding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, exists := s.index[domain.NormalizeSymbol(symbol)]
	if !exists {
		return domain.Holding{}, false
	}
	return s.holdings[i], true
}

// List returns a snapshot copy of all holdings in insertion order.
func (s *Store) List() []domain.Holding {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Holding, len(s.holdings))
	copy(out, s.holdings)
	return out
}

// Count returns the number of holdings.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.holdings)
}

// Symbols returns all held symbols in insertion order.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make([]string, len(s.holdings))
	for i, h := range s.holdings {
		symbols[i] = h.Symbol
	}
	return symbols
}

// ReplaceAll swaps the whole collection atomically, used by file load and
// import. The incoming slice must not contain duplicate symbols; on error
// the store is left unchanged.
func (s *Store) ReplaceAll(holdings []domain.Holding) error {
	next := make([]domain.Holding, len(holdings))
	index := make(map[string]int, len(holdings))
	for i, h := range holdings {
		if _, exists := index[h.Symbol]; exists {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateHolding, h.Symbol)
		}
		index[h.Symbol] = i
		next[i] = h
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.holdings = next
	s.index = index
	return nil
}
