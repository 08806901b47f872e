package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"fanai-server/internal/http/handlers"
	"fanai-server/internal/infra"
	"fanai-server/internal/middleware"
)

// NewRouter wires the public API, the image proxies, the static fallback
// tree and the token-gated admin subtree.
func NewRouter(app *handlers.App, cfg *infra.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(cfg.AllowedOrigins),
		middleware.Session,
	)

	r.Get("/healthz", app.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/me", app.Me)

		r.With(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute)).
			Post("/generate", app.Generate)

		r.Route("/generations", func(r chi.Router) {
			r.Get("/", app.ListGenerations)
			r.Get("/export", app.ExportGenerations)
			r.Get("/{id}", app.GetGeneration)
		})

		r.Route("/celebrities", func(r chi.Router) {
			r.Get("/", app.ListCelebrities)
			r.Get("/{slug}", app.GetCelebrity)
		})
		r.Route("/templates", func(r chi.Router) {
			r.Get("/", app.ListTemplates)
			r.Get("/{slug}", app.GetTemplate)
		})

		r.Route("/github", func(r chi.Router) {
			r.Get("/generation-image/{userId}/{artifactId}", app.GenerationImage)
			r.Get("/celebrity-image/{slug}", app.CelebrityImage)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(cfg.AdminToken))
			r.Post("/celebrities", app.AdminUpsertCelebrity)
			r.Post("/sync", app.AdminSync)
			r.Get("/cache", app.AdminCacheStats)
		})
	})

	// Fallback artifacts written during storage outages are served straight
	// from disk.
	fs := http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.StoragePath)))
	r.Get("/uploads/*", fs.ServeHTTP)

	return r
}
