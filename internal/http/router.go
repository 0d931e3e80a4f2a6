package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"genstudio/internal/http/handlers"
	"genstudio/internal/infra"
	"genstudio/internal/middleware"
)

func NewRouter(app *handlers.App, cfg *infra.Config, logger zerolog.Logger) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.RealIP, chimw.Recoverer, middleware.Logger(logger))

	// Health
	r.Get("/v1/healthz", app.Health)
	r.Handle("/metrics", handlers.Metrics())

	r.Route("/v1/jobs", func(r chi.Router) {
		r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
		r.Use(middleware.AuthJWT(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute))
		r.Get("/{job_id}", app.JobStatus)
		r.Get("/{job_id}/versions/{version_id}/archive", app.VersionArchive)
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(middleware.RequireSecret(cfg.RecoverySecret))
		r.Post("/jobs/execute", app.ExecuteJob)
		r.Post("/recovery/sweep", app.RecoverySweep)
	})

	return r
}

// NewMetricsRouter serves only the Prometheus endpoint for processes without
// a public API.
func NewMetricsRouter() stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Handle("/metrics", handlers.Metrics())
	r.Get("/healthz", func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		w.WriteHeader(stdhttp.StatusOK)
	})
	return r
}
