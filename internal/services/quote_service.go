// Package services provides application services that coordinate clients,
// caches and repositories.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/clients/yahoo"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/quotecache"
)

// QuoteClient fetches quotes from the upstream provider.
// The service defines what it needs; the clients package implements it.
type QuoteClient interface {
	GetQuotes(ctx context.Context, symbols []string) (map[string]yahoo.Quote, error)
}

// QuoteService implements domain.QuoteProvider with a cache-first strategy:
// fresh cache entries are served without touching the provider, fetched
// quotes are written back, and when the provider fails a stale cache entry
// is better than no data. Symbols that cannot be resolved at all carry a
// domain.ErrQuoteUnavailable result.
type QuoteService struct {
	client QuoteClient
	cache  *quotecache.Repository // optional - nil disables caching
	ttl    time.Duration
	log    zerolog.Logger
}

// NewQuoteService creates a new quote service.
func NewQuoteService(client QuoteClient, cache *quotecache.Repository, ttl time.Duration, log zerolog.Logger) *QuoteService {
	return &QuoteService{
		client: client,
		cache:  cache,
		ttl:    ttl,
		log:    log.With().Str("service", "quotes").Logger(),
	}
}

// FetchQuotes returns a result for every requested symbol. Symbols are
// normalized before lookup; the returned map is keyed by the normalized form.
// The map is always complete: a symbol the provider cannot price gets a
// QuoteResult carrying the error instead of a quote.
func (s *QuoteService) FetchQuotes(ctx context.Context, symbols []string) map[string]domain.QuoteResult {
	results := make(map[string]domain.QuoteResult, len(symbols))
	if len(symbols) == 0 {
		return results
	}

	// Serve fresh cache entries, collect the rest for one batch fetch
	var toFetch []string
	for _, raw := range symbols {
		symbol := domain.NormalizeSymbol(raw)
		if symbol == "" {
			continue
		}
		if _, seen := results[symbol]; seen {
			continue
		}

		if cached := s.freshFromCache(symbol); cached != nil {
			results[symbol] = domain.QuoteResult{Quote: cached}
			continue
		}

		results[symbol] = domain.QuoteResult{} // placeholder until fetched
		toFetch = append(toFetch, symbol)
	}

	if len(toFetch) == 0 {
		return results
	}

	fetched, err := s.client.GetQuotes(ctx, toFetch)
	if err != nil {
		s.log.Warn().Err(err).
			Int("symbols", len(toFetch)).
			Msg("Quote fetch failed, falling back to stale cache")
		fetched = nil
	}

	var store []domain.Quote
	for _, symbol := range toFetch {
		if raw, ok := fetched[symbol]; ok {
			quote := toDomainQuote(raw)
			results[symbol] = domain.QuoteResult{Quote: &quote}
			store = append(store, quote)
			continue
		}

		// Provider gave nothing for this symbol - stale data beats no data
		if stale := s.staleFromCache(symbol); stale != nil {
			s.log.Warn().
				Str("symbol", symbol).
				Time("as_of", stale.AsOf).
				Msg("Using stale cached quote")
			results[symbol] = domain.QuoteResult{Quote: stale}
			continue
		}

		reason := err
		if reason == nil {
			reason = fmt.Errorf("provider returned no quote")
		}
		results[symbol] = domain.QuoteResult{
			Err: fmt.Errorf("%s: %w: %v", symbol, domain.ErrQuoteUnavailable, reason),
		}
	}

	if s.cache != nil && len(store) > 0 {
		if err := s.cache.StoreBatch(store, s.ttl); err != nil {
			s.log.Error().Err(err).Msg("Failed to cache fetched quotes")
		}
	}

	return results
}

func (s *QuoteService) freshFromCache(symbol string) *domain.Quote {
	if s.cache == nil {
		return nil
	}

	quote, err := s.cache.GetIfFresh(symbol)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Cache read failed")
		return nil
	}

	return quote
}

func (s *QuoteService) staleFromCache(symbol string) *domain.Quote {
	if s.cache == nil {
		return nil
	}

	quote, err := s.cache.Get(symbol)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Stale cache read failed")
		return nil
	}

	return quote
}

func toDomainQuote(q yahoo.Quote) domain.Quote {
	return domain.Quote{
		Symbol:        q.Symbol,
		Price:         q.Price,
		AsOf:          q.AsOf,
		Sector:        q.Sector,
		Name:          q.Name,
		PERatio:       q.PERatio,
		DividendYield: q.DividendYield,
	}
}
