package di

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/config"
	"github.com/aristath/folio/internal/quotecache"
	"github.com/aristath/folio/internal/reliability"
	"github.com/aristath/folio/internal/scheduler"
)

// Scheduled refresh passes have no request context, so they run under their
// own deadline.
const refreshJobTimeout = 2 * time.Minute

// RegisterJobs creates the scheduler and registers all background jobs.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) error {
	sched := scheduler.New(log)

	refreshJob := scheduler.NewRefreshJob(container.PortfolioService, refreshJobTimeout, log)
	if err := sched.AddJob(cfg.RefreshSchedule, refreshJob); err != nil {
		return fmt.Errorf("failed to register refresh job: %w", err)
	}

	backupJob := reliability.NewBackupJob(
		container.BackupService,
		container.S3BackupService,
		cfg.BackupKeep,
		container.Bus,
		log,
	)
	if err := sched.AddJob(cfg.BackupSchedule, backupJob); err != nil {
		return fmt.Errorf("failed to register backup job: %w", err)
	}

	cleanupJob := quotecache.NewCleanupJob(container.QuoteCache, log)
	if err := sched.AddJob(cfg.CacheCleanupSchedule, cleanupJob); err != nil {
		return fmt.Errorf("failed to register cache cleanup job: %w", err)
	}

	container.Scheduler = sched
	return nil
}
