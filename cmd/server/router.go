package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/courtside/stringing-api/internal/api"
	apiMiddleware "github.com/courtside/stringing-api/internal/api/middleware"
)

// setupRouter configures the application router with all routes and
// middleware. Everything under /api requires a verified access token.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	applicationHandler := api.NewApplicationHandler(
		app.drafts, app.coordinator, app.resolver, app.ledger, app.logger)
	availabilityHandler := api.NewAvailabilityHandler(app.capacity, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.verifier)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Post("/applications/drafts", applicationHandler.CreateDraft)
		r.Get("/applications/by-order/{ref}", applicationHandler.GetByOrder)
		r.Get("/applications/by-rental/{ref}", applicationHandler.GetByRental)
		r.Get("/applications/{id}", applicationHandler.GetApplication)
		r.Put("/applications/{id}", applicationHandler.UpdateApplication)
		r.Get("/applications/{id}/quote", applicationHandler.GetQuote)
		r.Post("/applications/{id}/submit", applicationHandler.SubmitApplication)

		r.Get("/entitlements", applicationHandler.GetEntitlements)
		r.Get("/passes/me", applicationHandler.GetMyPasses)
		r.Get("/availability", availabilityHandler.GetAvailability)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
