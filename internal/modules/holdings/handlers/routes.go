package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all holding routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/holdings", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleAdd)

		r.Get("/export", h.HandleExport)
		r.Post("/import", h.HandleImport)

		r.Put("/{symbol}", h.HandleUpdate)
		r.Delete("/{symbol}", h.HandleRemove)
	})
}
