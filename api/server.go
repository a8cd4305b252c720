/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     logrus request logging with status and duration
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for a browser frontend

ROUTE GROUPS:
  /api/customers/*      Customers
  /api/categories/*     Price-list categories
  /api/pricelist/*      Price items, import and export
  /api/estimates/*      Saved estimates
  /api/drafts/*         Estimate editing sessions
  /api/settings         Preferences
  /api/admin/*          Backup and restore
  /api/samples/*        Demo catalogs

SECURITY NOTE:
  No authentication. Meant to run on the workstation that owns the
  database: the default listen address is loopback, CORS allows only the
  configured origins, and credentials are never allowed cross-origin.

SEE ALSO:
  - handlers.go, drafts.go, admin.go, samples.go: Handler implementations
  - cmd/estimator/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	log "github.com/sirupsen/logrus"
)

// DefaultOrigins are allowed when no CORS origins are configured.
var DefaultOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
	}))

	r.Route("/api", func(r chi.Router) {
		// Customer routes
		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.ListCustomers)
			r.Post("/", h.CreateCustomer)
			r.Get("/{id}", h.GetCustomer)
			r.Put("/{id}", h.UpdateCustomer)
			r.Delete("/{id}", h.DeleteCustomer)
		})

		// Category routes
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Post("/", h.CreateCategory)
			r.Put("/{id}", h.RenameCategory)
			r.Delete("/{id}", h.DeleteCategory)
			r.Post("/{id}/move", h.MoveCategory)
		})

		// Price list routes
		r.Route("/pricelist", func(r chi.Router) {
			r.Get("/", h.ListPriceItems)
			r.Post("/", h.CreatePriceItem)
			r.Get("/export", h.ExportPriceList)
			r.Post("/import", h.ImportPriceList)
			r.Put("/{id}", h.UpdatePriceItem)
			r.Delete("/{id}", h.DeletePriceItem)
			r.Post("/{id}/move", h.MovePriceItem)
		})

		// Saved estimate routes
		r.Route("/estimates", func(r chi.Router) {
			r.Get("/", h.ListEstimates)
			r.Get("/{id}", h.GetEstimate)
			r.Delete("/{id}", h.DeleteEstimate)
			r.Post("/{id}/open", h.OpenEstimate)
			r.Get("/{id}/document", h.RenderEstimate)
		})

		// Draft routes
		r.Route("/drafts", func(r chi.Router) {
			r.Post("/", h.CreateDraft)
			r.Route("/{draftID}", func(r chi.Router) {
				r.Get("/", h.GetDraft)
				r.Delete("/", h.DiscardDraft)
				r.Put("/header", h.UpdateDraftHeader)
				r.Put("/adjustments", h.UpdateDraftAdjustments)
				r.Post("/lines/catalog", h.AddCatalogLine)
				r.Post("/lines/write-in", h.AddWriteInLine)
				r.Put("/lines/{index}", h.EditDraftLine)
				r.Delete("/lines/{index}", h.RemoveDraftLine)
				r.Post("/lines/{index}/move", h.MoveDraftLine)
				r.Post("/save", h.SaveDraft)
				r.Delete("/estimate", h.DeleteDraftEstimate)
				r.Get("/document", h.RenderDraft)
			})
		})

		// Settings routes
		r.Get("/settings", h.GetSettings)
		r.Put("/settings", h.UpdateSettings)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/backup", h.Backup)
			r.Post("/restore", h.Restore)
		})

		// Sample routes
		r.Route("/samples", func(r chi.Router) {
			r.Get("/", h.ListSamples)
			r.Get("/current", h.GetCurrentSample)
			r.Post("/load", h.LoadSample)
		})
	})

	return r
}

// requestLogger logs one line per request through logrus.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		entry := log.WithFields(log.Fields{
			"method":     r.Method,
			"url":        r.URL.String(),
			"remoteAddr": r.RemoteAddr,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		})
		if ww.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request served")
	})
}
