// Package api exposes offers, quotes, limits and the KYC and provider callbacks
// over a JSON HTTP interface.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RouterOptions configures cross-cutting router behaviour.
type RouterOptions struct {
	AllowedOrigins []string
	InternalAPIKey string
}

// NewRouter registers every route on a chi router and wraps it for tracing.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Internal-API-Key"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/countries", h.handleListCountries)
		r.Get("/countries/{country}/offers", h.handleListOffers)
		r.Post("/quotes", h.handleQuote)
		r.Get("/users/{userID}/limits", h.handleGetLimits)
		r.Get("/users/{userID}/usage/archive", h.handleListArchive)

		r.Group(func(r chi.Router) {
			r.Use(internalAuth(opts.InternalAPIKey))
			r.Put("/users/{userID}/tier", h.handleSetTier)
			r.Get("/transfers/pending", h.handleListPending)
			r.Post("/transfers/{reference}/resolution", h.handleResolve)
		})
	})

	return otelhttp.NewHandler(r, "api",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
