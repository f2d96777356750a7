// Package opshttp is the secondary, plain-HTTP operational surface:
// catalog listing and a health probe, routed with chi and wrapped
// with chi/cors and chi/httplog. It carries no QC business logic;
// only the request surface (internal/rpc) may invoke the Scheduler.
package opshttp

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/metno/rove/internal/catalog"
)

// testView is the JSON shape of one catalog entry on GET /catalog.
type testView struct {
	ID   string   `json:"id"`
	Kind string   `json:"kind"`
	Deps []string `json:"deps,omitempty"`
}

// NewRouter builds the ops HTTP surface over cat.
func NewRouter(cat *catalog.Catalog) http.Handler {
	logger := httplog.NewLogger("rove-ops", httplog.Options{
		JSON:     true,
		LogLevel: slog.LevelInfo,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(httplog.RequestLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
		MaxAge:         300,
	}))

	r.Get("/healthz", handleHealth())
	r.Get("/catalog", handleCatalog(cat))

	return r
}

func handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func handleCatalog(cat *catalog.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		descs := cat.All()
		views := make([]testView, len(descs))
		for i, d := range descs {
			deps := make([]string, len(d.Deps))
			for j, dep := range d.Deps {
				deps[j] = string(dep)
			}
			views[i] = testView{ID: string(d.ID), Kind: d.Kind.String(), Deps: deps}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(views); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
