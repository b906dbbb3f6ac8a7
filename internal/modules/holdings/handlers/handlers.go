// Package handlers provides HTTP handlers for holding operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/events"
	"github.com/aristath/folio/internal/modules/holdings"
)

// Handler handles holding HTTP requests
type Handler struct {
	store *holdings.Store
	file  *holdings.PortfolioFile
	bus   *events.Bus
	log   zerolog.Logger
}

// NewHandler creates a new holdings handler. The bus may be nil.
func NewHandler(store *holdings.Store, file *holdings.PortfolioFile, bus *events.Bus, log zerolog.Logger) *Handler {
	return &Handler{
		store: store,
		file:  file,
		bus:   bus,
		log:   log.With().Str("handler", "holdings").Logger(),
	}
}

// HoldingRequest represents a request to add or update a holding
type HoldingRequest struct {
	Symbol        string  `json:"symbol"`
	Quantity      float64 `json:"quantity"`
	PurchasePrice float64 `json:"purchase_price"`
	Sector        string  `json:"sector"`
}

// HandleList handles GET /api/holdings
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list := h.store.List()

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"holdings": list,
			"count":    len(list),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleAdd handles POST /api/holdings
func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req HoldingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		h.writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	holding, err := domain.NewHolding(req.Symbol, req.Quantity, req.PurchasePrice, req.Sector)
	if err != nil {
		h.writeValidationError(w, err)
		return
	}

	if err := h.store.Add(holding); err != nil {
		if errors.Is(err, domain.ErrDuplicateHolding) {
			h.writeError(w, http.StatusConflict, err.Error(), nil)
			return
		}
		h.log.Error().Err(err).Str("symbol", holding.Symbol).Msg("Failed to add holding")
		h.writeError(w, http.StatusInternalServerError, "failed to add holding", nil)
		return
	}

	if !h.persist(w) {
		return
	}
	h.publishChange("added", holding.Symbol)

	h.log.Info().Str("symbol", holding.Symbol).Float64("quantity", holding.Quantity).Msg("Holding added")
	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"data": map[string]interface{}{
			"holding": holding,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleUpdate handles PUT /api/holdings/{symbol}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	var req HoldingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		h.writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	holding, err := domain.NewHolding(symbol, req.Quantity, req.PurchasePrice, req.Sector)
	if err != nil {
		h.writeValidationError(w, err)
		return
	}

	if err := h.store.Update(holding); err != nil {
		if errors.Is(err, domain.ErrHoldingNotFound) {
			h.writeError(w, http.StatusNotFound, err.Error(), nil)
			return
		}
		h.log.Error().Err(err).Str("symbol", holding.Symbol).Msg("Failed to update holding")
		h.writeError(w, http.StatusInternalServerError, "failed to update holding", nil)
		return
	}

	if !h.persist(w) {
		return
	}
	h.publishChange("updated", holding.Symbol)

	h.log.Info().Str("symbol", holding.Symbol).Msg("Holding updated")
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"holding": holding,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleRemove handles DELETE /api/holdings/{symbol}
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	symbol := domain.NormalizeSymbol(chi.URLParam(r, "symbol"))

	if err := h.store.Remove(symbol); err != nil {
		if errors.Is(err, domain.ErrHoldingNotFound) {
			h.writeError(w, http.StatusNotFound, err.Error(), nil)
			return
		}
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to remove holding")
		h.writeError(w, http.StatusInternalServerError, "failed to remove holding", nil)
		return
	}

	if !h.persist(w) {
		return
	}
	h.publishChange("removed", symbol)

	h.log.Info().Str("symbol", symbol).Msg("Holding removed")
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"symbol": symbol,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleExport handles GET /api/holdings/export
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	data, err := json.MarshalIndent(h.store.List(), "", "  ")
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode portfolio export")
		h.writeError(w, http.StatusInternalServerError, "failed to export portfolio", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="portfolio.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// HandleImport handles POST /api/holdings/import. The payload is the same
// JSON array the export produces. The whole import is validated up front
// and replaces the current portfolio atomically; a payload with any invalid
// record is rejected with the offenders itemized.
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	var records []HoldingRequest
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode import payload")
		h.writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	imported := make([]domain.Holding, 0, len(records))
	seen := make(map[string]bool, len(records))
	var invalid []domain.RecordError

	for i, rec := range records {
		holding, err := domain.NewHolding(rec.Symbol, rec.Quantity, rec.PurchasePrice, rec.Sector)
		if err != nil {
			reason := err.Error()
			var ve *domain.ValidationError
			if errors.As(err, &ve) {
				reason = ve.Field + " " + ve.Reason
			}
			invalid = append(invalid, domain.RecordError{Index: i, Symbol: rec.Symbol, Reason: reason})
			continue
		}
		if seen[holding.Symbol] {
			invalid = append(invalid, domain.RecordError{Index: i, Symbol: holding.Symbol, Reason: "duplicate symbol"})
			continue
		}
		seen[holding.Symbol] = true
		imported = append(imported, holding)
	}

	if len(invalid) > 0 {
		h.writeError(w, http.StatusBadRequest, "portfolio import rejected", map[string]interface{}{
			"records": invalid,
		})
		return
	}

	if err := h.store.ReplaceAll(imported); err != nil {
		h.log.Error().Err(err).Msg("Failed to replace holdings")
		h.writeError(w, http.StatusInternalServerError, "failed to import portfolio", nil)
		return
	}

	if !h.persist(w) {
		return
	}
	h.publishChange("imported", "")

	h.log.Info().Int("holdings", len(imported)).Msg("Portfolio imported")
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"imported": len(imported),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// persist saves the current store state to the portfolio file. On failure
// it writes a 500 and returns false; the in-memory change stays and the
// next successful save persists it.
func (h *Handler) persist(w http.ResponseWriter) bool {
	if err := h.file.Save(h.store.List()); err != nil {
		h.log.Error().Err(err).Msg("Failed to persist portfolio")
		h.writeError(w, http.StatusInternalServerError, "failed to persist portfolio", nil)
		return false
	}
	return true
}

func (h *Handler) publishChange(action, symbol string) {
	if h.bus == nil {
		return
	}
	data := map[string]interface{}{"action": action}
	if symbol != "" {
		data["symbol"] = symbol
	}
	h.bus.Publish(events.PortfolioChanged, "holdings", data)
}

func (h *Handler) writeValidationError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		h.writeError(w, http.StatusBadRequest, err.Error(), map[string]interface{}{
			"field":  ve.Field,
			"reason": ve.Reason,
		})
		return
	}
	h.writeError(w, http.StatusBadRequest, err.Error(), nil)
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
