// Package server exposes the query operations over HTTP.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/comind-network/cogindex/pkg/usecase/query"
	"github.com/comind-network/cogindex/pkg/utils/logging"
)

// New builds the HTTP handler for the query API.
func New(uc *query.UseCase) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(requestLogger)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/search", handleSearch(uc))
		r.Get("/similar", handleSimilar(uc))
		r.Get("/agents", handleAgents(uc))
		r.Get("/stats", handleStats(uc))
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logging.From(r.Context()).Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(started).String(),
		)
	})
}
