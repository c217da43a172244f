/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and read-only routes over
  the segmentation results.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request
  2. Logging:    One logrus entry per request
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for dashboards

ROUTES:
  GET /api/health                 Liveness + table counts
  GET /api/segments               Result set (?segment= filter)
  GET /api/segments/summary       Customers and monetary per segment
  GET /api/segments/export.csv    Result set as CSV
  GET /api/customers/{id}/rfm     One customer's row
  GET /api/runs                   Pipeline runs, newest first (?limit=)
  POST /api/runs                  Re-run the pipeline now

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/segments", func(r chi.Router) {
			r.Get("/", h.ListSegments)
			r.Get("/summary", h.SegmentSummary)
			r.Get("/export.csv", h.ExportCSV)
		})

		r.Get("/customers/{id}/rfm", h.GetCustomerRFM)
		r.Get("/runs", h.ListRuns)
		r.Post("/runs", h.TriggerRun)
	})

	return r
}

func requestLogger(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
			}).Info("request")
		})
	}
}
