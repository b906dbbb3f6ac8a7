// Package handlers provides HTTP handlers for portfolio reports.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/analytics"
	"github.com/aristath/folio/internal/modules/portfolio"
)

const (
	defaultHistoryDays = 30
	maxHistoryDays     = 3650
	defaultTrendWindow = 7
)

// HistorySource reads recorded value snapshots.
type HistorySource interface {
	History(since time.Time) ([]analytics.Snapshot, error)
}

// Handler handles portfolio HTTP requests
type Handler struct {
	service *portfolio.Service
	history HistorySource
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *portfolio.Service, history HistorySource, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		history: history,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// HoldingInput is one holding in an evaluate request.
type HoldingInput struct {
	Symbol        string  `json:"symbol"`
	Quantity      float64 `json:"quantity"`
	PurchasePrice float64 `json:"purchase_price"`
	Sector        string  `json:"sector"`
}

// HandleGetPortfolio handles GET /api/portfolio
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	report, ok := h.latestReport(w)
	if !ok {
		return
	}

	positions := displayPositions(report.Summary)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"positions":    positions,
			"count":        len(positions),
			"generated_at": report.GeneratedAt.Format(time.RFC3339),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetSummary handles GET /api/portfolio/summary
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	report, ok := h.latestReport(w)
	if !ok {
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": summaryPayload(report),
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetSectors handles GET /api/portfolio/sectors. The breakdown is
// null when the latest pass had no priced positions.
func (h *Handler) HandleGetSectors(w http.ResponseWriter, r *http.Request) {
	report, ok := h.latestReport(w)
	if !ok {
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"breakdown":    report.Breakdown,
			"generated_at": report.GeneratedAt.Format(time.RFC3339),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetRecommendations handles GET /api/portfolio/recommendations
func (h *Handler) HandleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	report, ok := h.latestReport(w)
	if !ok {
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"recommendations": report.Recommendations,
			"count":           len(report.Recommendations),
			"generated_at":    report.GeneratedAt.Format(time.RFC3339),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetAnalytics handles GET /api/portfolio/analytics. Stats are null
// when the latest pass had no priced positions.
func (h *Handler) HandleGetAnalytics(w http.ResponseWriter, r *http.Request) {
	report, ok := h.latestReport(w)
	if !ok {
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"stats":        report.Stats,
			"generated_at": report.GeneratedAt.Format(time.RFC3339),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetHistory handles GET /api/portfolio/history?days=N&window=M
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	days := defaultHistoryDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxHistoryDays {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("days must be an integer between 1 and %d", maxHistoryDays), nil)
			return
		}
		days = parsed
	}

	window := defaultTrendWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "window must be a positive integer", nil)
			return
		}
		window = parsed
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	snapshots, err := h.history.History(since)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load value history")
		h.writeError(w, http.StatusInternalServerError, "failed to load value history", nil)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"snapshots": snapshots,
			"trend":     analytics.ValueTrend(snapshots, window),
			"count":     len(snapshots),
			"days":      days,
			"window":    window,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleRefresh handles POST /api/portfolio/refresh
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Refresh(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Manual refresh failed")
		h.writeError(w, http.StatusInternalServerError, "refresh failed", nil)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": summaryPayload(report),
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleEvaluate handles POST /api/portfolio/evaluate. The body is a JSON
// array of holdings; the response is a full what-if report that never
// touches the stored portfolio or the latest-report cache.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	var inputs []HoldingInput
	if err := json.NewDecoder(r.Body).Decode(&inputs); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	if len(inputs) == 0 {
		h.writeError(w, http.StatusBadRequest, "at least one holding is required", nil)
		return
	}

	list := make([]domain.Holding, 0, len(inputs))
	invalid := make([]domain.RecordError, 0)
	seen := make(map[string]struct{}, len(inputs))

	for i, in := range inputs {
		holding, err := domain.NewHolding(in.Symbol, in.Quantity, in.PurchasePrice, in.Sector)
		if err != nil {
			reason := err.Error()
			var ve *domain.ValidationError
			if errors.As(err, &ve) {
				reason = fmt.Sprintf("%s %s", ve.Field, ve.Reason)
			}
			invalid = append(invalid, domain.RecordError{Index: i, Symbol: domain.NormalizeSymbol(in.Symbol), Reason: reason})
			continue
		}

		if _, dup := seen[holding.Symbol]; dup {
			invalid = append(invalid, domain.RecordError{Index: i, Symbol: holding.Symbol, Reason: "duplicate symbol"})
			continue
		}
		seen[holding.Symbol] = struct{}{}

		list = append(list, holding)
	}

	if len(invalid) > 0 {
		h.writeError(w, http.StatusBadRequest, "evaluation rejected", map[string]interface{}{
			"records": invalid,
		})
		return
	}

	report, err := h.service.Evaluate(r.Context(), list)
	if err != nil {
		h.log.Error().Err(err).Msg("Evaluation failed")
		h.writeError(w, http.StatusInternalServerError, "evaluation failed", nil)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"summary":         summaryPayload(report),
			"positions":       displayPositions(report.Summary),
			"breakdown":       report.Breakdown,
			"recommendations": report.Recommendations,
			"stats":           report.Stats,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// latestReport fetches the cached report, answering 404 when no pass has
// completed yet.
func (h *Handler) latestReport(w http.ResponseWriter) (*portfolio.Report, bool) {
	report := h.service.Latest()
	if report == nil {
		h.writeError(w, http.StatusNotFound, "no valuation report yet; POST /api/portfolio/refresh to generate one", nil)
		return nil, false
	}
	return report, true
}

// displayPositions orders positions for display: priced first by market
// value descending, stale positions after in portfolio order.
func displayPositions(summary *domain.PortfolioSummary) []domain.Position {
	positions := make([]domain.Position, len(summary.Positions))
	copy(positions, summary.Positions)

	sort.SliceStable(positions, func(i, j int) bool {
		if positions[i].Stale != positions[j].Stale {
			return !positions[i].Stale
		}
		if positions[i].Stale {
			return false
		}
		return positions[i].MarketValue > positions[j].MarketValue
	})

	return positions
}

func summaryPayload(report *portfolio.Report) map[string]interface{} {
	summary := report.Summary
	return map[string]interface{}{
		"total_cost_basis":   summary.TotalCostBasis,
		"total_market_value": summary.TotalMarketValue,
		"total_gain":         summary.TotalGain,
		"total_gain_pct":     summary.TotalGainPct,
		"priced_count":       summary.PricedCount,
		"stale_count":        summary.StaleCount,
		"weights":            summary.Weights,
		"generated_at":       report.GeneratedAt.Format(time.RFC3339),
	}
}

// writeError writes a JSON error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string, details interface{}) {
	body := map[string]interface{}{"message": message}
	if details != nil {
		body["details"] = details
	}
	h.writeJSON(w, status, map[string]interface{}{"error": body})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
