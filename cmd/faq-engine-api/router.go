// Package main provides the API router setup.
package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kotileipomo/faq-engine/cmd/faq-engine-api/handlers"
	"github.com/kotileipomo/faq-engine/cmd/faq-engine-api/middleware"
	"github.com/kotileipomo/faq-engine/internal/engine"
	"github.com/kotileipomo/faq-engine/internal/observability"
)

// AppConfig holds router configuration.
type AppConfig struct {
	RequestTimeout time.Duration
	DefaultLang    string
	AllowedOrigins []string
	CatalogReady   bool
}

// DefaultAppConfig returns default configuration values.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		RequestTimeout: 30 * time.Second,
		DefaultLang:    "fi",
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates the main API router with all routes configured. metrics may be nil.
func NewRouter(logger *observability.Logger, e *engine.Engine, metrics *observability.Metrics, cfg *AppConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(chimiddleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		snap := e.Store().Current()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":       "healthy",
			"service":      "faq-engine",
			"kbEntries":    snap.Len(),
			"kbVersion":    snap.Version,
			"catalogReady": cfg.CatalogReady,
		})
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if e.Store().Current().Version == 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"loading"}`))
			return
		}
		w.Write([]byte(`{"status":"ready"}`))
	})

	if metrics != nil {
		r.Handle("/metrics", metrics.Handler())
	}

	chatHandler := handlers.NewChatHandler(logger, e, cfg.DefaultLang)
	kbHandler := handlers.NewKBHandler(logger, e)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat", chatHandler.Chat)
		r.Post("/answer", chatHandler.Answer)
		r.Get("/match", chatHandler.Match)
		r.Get("/intent", chatHandler.Intent)

		r.Route("/kb", func(r chi.Router) {
			r.Get("/stats", kbHandler.Stats)
			r.Post("/reload", kbHandler.Reload)
		})

		r.Get("/pickup/check", kbHandler.CheckPickup)
	})

	return r
}
