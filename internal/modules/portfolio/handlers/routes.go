package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/", h.HandleGetPortfolio)                       // Positions of the latest report
		r.Get("/summary", h.HandleGetSummary)                  // Portfolio totals
		r.Get("/sectors", h.HandleGetSectors)                  // Sector breakdown
		r.Get("/recommendations", h.HandleGetRecommendations)  // Advisor output
		r.Get("/analytics", h.HandleGetAnalytics)              // Performance statistics
		r.Get("/history", h.HandleGetHistory)                  // Value snapshots + trend
		r.Post("/refresh", h.HandleRefresh)                    // Force a valuation pass
		r.Post("/evaluate", h.HandleEvaluate)                  // What-if pass
	})
}
