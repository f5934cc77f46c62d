package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phrazzld/scry-scheduler/internal/api"
	apiMiddleware "github.com/phrazzld/scry-scheduler/internal/api/middleware"
)

// setupRouter creates the router with every route and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.Trace(app.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	if origins := app.config.Server.CORSAllowedOrigins; len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Trace-ID"},
			ExposedHeaders:   []string{"X-Trace-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)
	cardHandler := api.NewCardHandler(app.cardReviewService, app.logger)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Post("/cards", cardHandler.AddCard)
			r.Get("/cards/next", cardHandler.GetNextReviewCard)
			r.Get("/cards/due", cardHandler.ListDueCards)
			r.Post("/cards/{id}/answer", cardHandler.SubmitAnswer)
			r.Get("/cards/{id}/preview", cardHandler.PreviewAnswer)
			r.Post("/cards/{id}/postpone", cardHandler.PostponeCard)
			r.Get("/cards/{id}/history", cardHandler.GetCardHistory)
		})
	})

	r.Get("/health", api.HealthHandler(app.backend.DB, 2*time.Second))

	return r
}
