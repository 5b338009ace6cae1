package http

import (
	"net/http"

	"github.com/atinyakov/moodmap/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter constructs and returns an HTTP handler that serves the mood
// store API.
//
// Routes:
//
//	PUT  /api/moods          → moods.Upsert
//	GET  /api/moods          → moods.Recent
//	POST /api/moods/lookup   → moods.Lookup
//	GET  /api/moods/{owner}  → moods.ByOwner
//	GET  /api/live           → live (websocket upgrade)
//	GET  /healthz, /metrics
//
// Every route is logged and counted. The /api/moods group additionally
// requires JSON bodies and reads the optional platform token.
func NewRouter(
	moods *MoodHandler,
	live http.HandlerFunc,
	platformSecret []byte,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(middleware.Metrics)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/live", live)

	r.Route("/api/moods", func(r chi.Router) {
		// Only allow requests with Content-Type: application/json
		r.Use(chiMiddleware.AllowContentType("application/json"))
		r.Use(middleware.PlatformAuth(platformSecret))

		r.Put("/", moods.Upsert)
		r.Get("/", moods.Recent)
		r.Post("/lookup", moods.Lookup)
		r.Get("/{owner}", moods.ByOwner)
	})

	return r
}
