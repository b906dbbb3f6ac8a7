package di

import (
	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/config"
	"github.com/aristath/folio/internal/modules/analytics"
	"github.com/aristath/folio/internal/modules/holdings"
	"github.com/aristath/folio/internal/quotecache"
)

// InitializeRepositories creates the data access layer.
func InitializeRepositories(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.HoldingStore = holdings.NewStore()
	container.PortfolioFile = holdings.NewPortfolioFile(cfg.PortfolioPath, log)
	container.QuoteCache = quotecache.NewRepository(container.CacheDB.Conn())
	container.SnapshotRepo = analytics.NewSnapshotRepository(container.PortfolioDB.Conn())

	log.Debug().Msg("Repositories initialized")
	return nil
}
