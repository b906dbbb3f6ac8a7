// Package portfolio orchestrates valuation passes: it pulls holdings and
// quotes, runs the computation chain, and publishes the resulting report as
// the single shared reference the read endpoints serve.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/events"
	"github.com/aristath/folio/internal/modules/advisor"
	"github.com/aristath/folio/internal/modules/analytics"
	"github.com/aristath/folio/internal/modules/diversification"
	"github.com/aristath/folio/internal/modules/valuation"
)

// HoldingSource provides the current holding collection.
type HoldingSource interface {
	List() []domain.Holding
}

// QuoteProvider fetches quotes for a symbol batch. The returned map carries
// one entry per requested symbol.
type QuoteProvider interface {
	FetchQuotes(ctx context.Context, symbols []string) map[string]domain.QuoteResult
}

// SnapshotRecorder persists portfolio value points.
type SnapshotRecorder interface {
	Record(summary *domain.PortfolioSummary, takenAt time.Time) (*analytics.Snapshot, error)
}

// Report is one complete valuation pass.
type Report struct {
	Summary         *domain.PortfolioSummary `json:"summary"`
	Breakdown       *domain.SectorBreakdown  `json:"breakdown"`
	Recommendations []domain.Recommendation  `json:"recommendations"`
	Stats           *analytics.Stats         `json:"stats"`
	GeneratedAt     time.Time                `json:"generated_at"`
}

// Service runs valuation passes and caches the latest report.
type Service struct {
	holdings  HoldingSource
	quotes    QuoteProvider
	advisor   *advisor.Advisor
	snapshots SnapshotRecorder // nil disables value history
	bus       *events.Bus      // nil disables events
	log       zerolog.Logger

	mu     sync.RWMutex
	latest *Report
}

// NewService creates the portfolio service.
func NewService(
	holdings HoldingSource,
	quotes QuoteProvider,
	adv *advisor.Advisor,
	snapshots SnapshotRecorder,
	bus *events.Bus,
	log zerolog.Logger,
) *Service {
	return &Service{
		holdings:  holdings,
		quotes:    quotes,
		advisor:   adv,
		snapshots: snapshots,
		bus:       bus,
		log:       log.With().Str("service", "portfolio").Logger(),
	}
}

// Refresh runs a full valuation pass over the current holdings and installs
// the result as the latest report. Quote failures degrade positions to
// stale; an error here means the holding collection itself was invalid.
func (s *Service) Refresh(ctx context.Context) (*Report, error) {
	started := time.Now()
	holdings := s.holdings.List()

	report, err := s.evaluate(ctx, holdings)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.latest = report
	s.mu.Unlock()

	s.recordSnapshot(report)

	if s.bus != nil {
		s.bus.Publish(events.QuotesRefreshed, "portfolio", map[string]interface{}{
			"holdings": len(holdings),
			"priced":   report.Summary.PricedCount,
			"stale":    report.Summary.StaleCount,
		})
	}

	s.log.Info().
		Int("holdings", len(holdings)).
		Int("priced", report.Summary.PricedCount).
		Int("stale", report.Summary.StaleCount).
		Dur("duration", time.Since(started)).
		Msg("Portfolio refreshed")

	return report, nil
}

// Latest returns the cached report without recomputation. Nil until the
// first refresh completes.
func (s *Service) Latest() *Report {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.latest
}

// Evaluate runs a what-if valuation pass over an arbitrary holding set
// against live quotes. The latest-report cache is not touched.
func (s *Service) Evaluate(ctx context.Context, holdings []domain.Holding) (*Report, error) {
	return s.evaluate(ctx, holdings)
}

func (s *Service) evaluate(ctx context.Context, holdings []domain.Holding) (*Report, error) {
	symbols := make([]string, len(holdings))
	for i, h := range holdings {
		symbols[i] = h.Symbol
	}

	quotes := s.quotes.FetchQuotes(ctx, symbols)

	summary, err := valuation.ComputePositions(holdings, quotes)
	if err != nil {
		return nil, fmt.Errorf("failed to compute positions: %w", err)
	}

	breakdown, err := diversification.Analyze(summary)
	if err != nil {
		if !errors.Is(err, domain.ErrInsufficientData) {
			return nil, fmt.Errorf("failed to analyze sectors: %w", err)
		}
		s.log.Debug().Msg("No priced positions, skipping sector breakdown")
	}

	stats, err := analytics.PerformanceStats(summary)
	if err != nil && !errors.Is(err, domain.ErrInsufficientData) {
		return nil, fmt.Errorf("failed to compute performance stats: %w", err)
	}

	return &Report{
		Summary:         summary,
		Breakdown:       breakdown,
		Recommendations: s.advisor.Advise(summary, breakdown),
		Stats:           stats,
		GeneratedAt:     time.Now().UTC(),
	}, nil
}

// recordSnapshot persists the pass to the value history. Passes with zero
// priced positions are not recorded: an all-stale pass would chart a false
// zero.
func (s *Service) recordSnapshot(report *Report) {
	if s.snapshots == nil || report.Summary.PricedCount == 0 {
		return
	}

	if _, err := s.snapshots.Record(report.Summary, report.GeneratedAt); err != nil {
		s.log.Warn().Err(err).Msg("Failed to record value snapshot")
		return
	}

	if s.bus != nil {
		s.bus.Publish(events.SnapshotRecorded, "portfolio", map[string]interface{}{
			"total_market_value": report.Summary.TotalMarketValue,
			"priced_count":       report.Summary.PricedCount,
		})
	}
}
