package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/modules/portfolio"
)

// PortfolioRefresher runs a valuation pass.
type PortfolioRefresher interface {
	Refresh(ctx context.Context) (*portfolio.Report, error)
}

// RefreshJob runs periodic portfolio valuation passes
type RefreshJob struct {
	service PortfolioRefresher
	timeout time.Duration
	log     zerolog.Logger
}

// NewRefreshJob creates a new refresh job
func NewRefreshJob(service PortfolioRefresher, timeout time.Duration, log zerolog.Logger) *RefreshJob {
	return &RefreshJob{
		service: service,
		timeout: timeout,
		log:     log.With().Str("job", "portfolio_refresh").Logger(),
	}
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "portfolio_refresh"
}

// Run executes a valuation pass
func (j *RefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	report, err := j.service.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh portfolio: %w", err)
	}

	j.log.Debug().
		Int("priced", report.Summary.PricedCount).
		Int("stale", report.Summary.StaleCount).
		Msg("Scheduled refresh completed")

	return nil
}
