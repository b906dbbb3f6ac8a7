package di

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/clients/yahoo"
	"github.com/aristath/folio/internal/config"
	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/events"
	"github.com/aristath/folio/internal/modules/advisor"
	"github.com/aristath/folio/internal/modules/portfolio"
	"github.com/aristath/folio/internal/reliability"
	"github.com/aristath/folio/internal/services"
)

// InitializeServices creates clients and business services in dependency order.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	// Event bus first; everything downstream may publish to it
	container.Bus = events.NewBus(log)

	container.YahooClient = yahoo.NewClient(yahoo.Config{
		Timeout: cfg.QuoteTimeout,
	}, log)

	container.QuoteService = services.NewQuoteService(
		container.YahooClient,
		container.QuoteCache,
		cfg.QuoteTTL,
		log,
	)

	thresholds := advisor.DefaultThresholds()
	if cfg.Advisor != nil {
		thresholds = advisor.Thresholds{
			Concentration: cfg.Advisor.ConcentrationLimit,
			SectorWeight:  cfg.Advisor.SectorWeightLimit,
			Loss:          cfg.Advisor.LossLimit,
			StaleRatio:    cfg.Advisor.StaleRatioLimit,
		}
	}
	container.Advisor = advisor.New(thresholds)

	container.PortfolioService = portfolio.NewService(
		container.HoldingStore,
		container.QuoteService,
		container.Advisor,
		container.SnapshotRepo,
		container.Bus,
		log,
	)

	// Holdings mutations re-run the valuation pass so the latest report
	// tracks the portfolio. The bus already runs handlers in goroutines.
	portfolioService := container.PortfolioService
	container.Bus.Subscribe(events.PortfolioChanged, func(events.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), refreshJobTimeout)
		defer cancel()
		if _, err := portfolioService.Refresh(ctx); err != nil {
			log.Error().Err(err).Msg("Refresh after portfolio change failed")
		}
	})

	databases := map[string]*database.DB{
		"portfolio": container.PortfolioDB,
		"cache":     container.CacheDB,
	}
	container.BackupService = reliability.NewBackupService(
		databases,
		cfg.PortfolioPath,
		filepath.Join(cfg.DataDir, "backups"),
		cfg.BackupKeep,
		log,
	)

	if cfg.S3.Enabled() {
		s3Client, err := reliability.NewS3Client(reliability.S3ClientConfig{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to initialize S3 client: %w", err)
		}
		container.S3BackupService = reliability.NewS3BackupService(
			s3Client,
			container.BackupService,
			cfg.DataDir,
			log,
		)
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("Remote backups enabled")
	}

	log.Debug().Msg("Services initialized")
	return nil
}
