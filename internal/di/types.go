// Package di provides dependency injection wiring for the application.
//
// The Container is the single source of truth for all shared instances.
// Wire() builds it in dependency order (databases, repositories, services,
// jobs) and the HTTP server reads from it.
package di

import (
	"github.com/aristath/folio/internal/clients/yahoo"
	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/events"
	"github.com/aristath/folio/internal/modules/advisor"
	"github.com/aristath/folio/internal/modules/analytics"
	"github.com/aristath/folio/internal/modules/holdings"
	"github.com/aristath/folio/internal/modules/portfolio"
	"github.com/aristath/folio/internal/quotecache"
	"github.com/aristath/folio/internal/reliability"
	"github.com/aristath/folio/internal/scheduler"
	"github.com/aristath/folio/internal/services"
)

// Container holds all dependencies for the application.
type Container struct {
	// Databases
	PortfolioDB *database.DB // Durable state (value snapshots)
	CacheDB     *database.DB // Ephemeral quote cache

	// Clients
	YahooClient *yahoo.Client

	// Repositories
	HoldingStore  *holdings.Store
	PortfolioFile *holdings.PortfolioFile
	QuoteCache    *quotecache.Repository
	SnapshotRepo  *analytics.SnapshotRepository

	// Services
	Bus              *events.Bus
	QuoteService     *services.QuoteService
	Advisor          *advisor.Advisor
	PortfolioService *portfolio.Service
	BackupService    *reliability.BackupService
	S3BackupService  *reliability.S3BackupService // nil unless S3 backup is configured

	// Background jobs
	Scheduler *scheduler.Scheduler
}

// CloseDatabases closes every database owned by the container. Safe to call
// on a partially wired container.
func (c *Container) CloseDatabases() {
	if c.PortfolioDB != nil {
		c.PortfolioDB.Close()
	}
	if c.CacheDB != nil {
		c.CacheDB.Close()
	}
}
