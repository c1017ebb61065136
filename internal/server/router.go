package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/rs/cors"

	"github.com/rpattn/ecomdata/internal/analytics"
	"github.com/rpattn/ecomdata/internal/export"
	"github.com/rpattn/ecomdata/internal/ingestion"
	"github.com/rpattn/ecomdata/internal/middleware"
)

const RootMessage = "E-commerce Data Processing API"

// Deps are the services the router exposes.
type Deps struct {
	Ingestion *ingestion.Service
	Analytics *analytics.Service
	Export    *export.Service
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

// Options tune transport behaviour.
type Options struct {
	AllowedOrigins   []string
	AllowCredentials bool
	MaxUploadBytes   int64
	UploadRPS        float64
	UploadBurst      int
}

// NewRouter mounts every endpoint under /api.
func NewRouter(deps Deps, opts Options) http.Handler {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: opts.AllowCredentials,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
	})

	uploads := ingestion.NewHTTPHandler(deps.Ingestion, opts.MaxUploadBytes)
	stats := analytics.NewHTTPHandler(deps.Analytics)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(corsHandler.Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			render.JSON(w, r, map[string]string{"message": RootMessage})
		})
		r.With(middleware.RateLimit(opts.UploadRPS, opts.UploadBurst)).
			Method(http.MethodPost, "/upload", uploads)
		r.Get("/logs", uploads.ListLogs)
		r.Delete("/data/clear", uploads.Clear)
		if deps.Export != nil {
			r.Method(http.MethodGet, "/data/export", export.NewHTTPHandler(deps.Export))
		}

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/overview", stats.Overview)
			r.Get("/customers", stats.Customers)
			r.Get("/products", stats.Products)
		})
	})

	return r
}
