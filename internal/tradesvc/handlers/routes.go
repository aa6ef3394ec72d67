package handlers

import (
	"github.com/go-chi/chi"
)

func SetRoutes(r *chi.Mux, h *Handler) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/ws", h.HandleWebSocket)
		r.Get("/health", h.HealthHandler)
	})
}
