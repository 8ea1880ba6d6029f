package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter mounts the realtime endpoint, the read API and the metrics
// endpoint on one chi router.
func NewRouter(ws *WSHandler, api *API, registry *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/ws", ws.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/conversations/{userID}", api.Conversations)
		r.Get("/messages/{conversationID}", api.Messages)
		r.Get("/presence/{userID}", api.Presence)
		r.Get("/search", api.Search)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return r
}
