package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/modules/portfolio"
	"github.com/aristath/folio/internal/scheduler"
)

// SystemHandlers handles system monitoring endpoints.
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	databases   map[string]*database.DB
	portfolio   *portfolio.Service
	scheduler   *scheduler.Scheduler
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	log zerolog.Logger,
	databases map[string]*database.DB,
	portfolioService *portfolio.Service,
	sched *scheduler.Scheduler,
) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("handler", "system").Logger(),
		startupTime: time.Now(),
		databases:   databases,
		portfolio:   portfolioService,
		scheduler:   sched,
	}
}

// SystemStatusResponse is the payload for GET /api/system/status
type SystemStatusResponse struct {
	Status      string                    `json:"status"` // "ok" or "degraded"
	UptimeHours float64                   `json:"uptime_hours"`
	CPUPercent  float64                   `json:"cpu_percent"`
	RAMPercent  float64                   `json:"ram_percent"`
	Databases   map[string]DatabaseStatus `json:"databases"`
	LastRefresh *RefreshStatus            `json:"last_refresh"` // null until the first valuation pass
	Jobs        []scheduler.JobInfo       `json:"jobs"`
	CheckedAt   string                    `json:"checked_at"`
}

// DatabaseStatus describes one database in the status response
type DatabaseStatus struct {
	Reachable    bool   `json:"reachable"`
	SizeBytes    int64  `json:"size_bytes"`
	WALSizeBytes int64  `json:"wal_size_bytes"`
	PageCount    int64  `json:"page_count"`
	Error        string `json:"error,omitempty"`
}

// RefreshStatus describes the age of the latest valuation report
type RefreshStatus struct {
	GeneratedAt string  `json:"generated_at"`
	AgeSeconds  float64 `json:"age_seconds"`
	PricedCount int     `json:"priced_count"`
	StaleCount  int     `json:"stale_count"`
}

// SystemHealthResponse is the payload for GET /api/system/health
type SystemHealthResponse struct {
	Status    string                   `json:"status"` // "healthy" or "unhealthy"
	Databases map[string]IntegrityInfo `json:"databases"`
	CheckedAt string                   `json:"checked_at"`
}

// IntegrityInfo carries one database integrity check result
type IntegrityInfo struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// HandleSystemStatus returns uptime, resource usage, database stats, the age
// of the latest valuation report and the registered scheduler jobs.
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, ramPercent := h.getSystemStats()

	status := "ok"
	databases := make(map[string]DatabaseStatus, len(h.databases))
	for name, db := range h.databases {
		info := DatabaseStatus{Reachable: true}
		if err := db.QuickCheck(r.Context()); err != nil {
			info.Reachable = false
			info.Error = err.Error()
			status = "degraded"
		}
		if stats, err := db.GetStats(); err == nil {
			info.SizeBytes = stats.SizeBytes
			info.WALSizeBytes = stats.WALSizeBytes
			info.PageCount = stats.PageCount
		} else {
			h.log.Warn().Err(err).Str("database", name).Msg("Failed to collect database stats")
		}
		databases[name] = info
	}

	var lastRefresh *RefreshStatus
	if h.portfolio != nil {
		if report := h.portfolio.Latest(); report != nil {
			lastRefresh = &RefreshStatus{
				GeneratedAt: report.GeneratedAt.Format(time.RFC3339),
				AgeSeconds:  time.Since(report.GeneratedAt).Seconds(),
				PricedCount: report.Summary.PricedCount,
				StaleCount:  report.Summary.StaleCount,
			}
		}
	}

	jobs := []scheduler.JobInfo{}
	if h.scheduler != nil {
		jobs = h.scheduler.Jobs()
	}

	response := SystemStatusResponse{
		Status:      status,
		UptimeHours: time.Since(h.startupTime).Hours(),
		CPUPercent:  cpuPercent,
		RAMPercent:  ramPercent,
		Databases:   databases,
		LastRefresh: lastRefresh,
		Jobs:        jobs,
		CheckedAt:   time.Now().Format(time.RFC3339),
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleSystemHealth runs full integrity checks on every database. Heavier
// than the liveness probe at /health; returns 503 when any check fails.
// GET /api/system/health
func (h *SystemHandlers) HandleSystemHealth(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Running system health check")

	healthy := true
	databases := make(map[string]IntegrityInfo, len(h.databases))
	for name, db := range h.databases {
		info := IntegrityInfo{Healthy: true}
		if err := db.HealthCheck(r.Context()); err != nil {
			info.Healthy = false
			info.Error = err.Error()
			healthy = false
			h.log.Error().Err(err).Str("database", name).Msg("Database integrity check failed")
		}
		databases[name] = info
	}

	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
	}

	response := SystemHealthResponse{
		Status:    overall,
		Databases: databases,
		CheckedAt: time.Now().Format(time.RFC3339),
	}

	h.writeJSON(w, status, response)
}

// getSystemStats calculates CPU and RAM usage percentages.
// Uses a short interval (100ms) so the status endpoint responds quickly
// while still providing a real reading.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
