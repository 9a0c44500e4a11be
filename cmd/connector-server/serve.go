package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/proxy-connector/connector"
	"github.com/gosuda/proxy-connector/connector/registry"
)

// newRouter assembles the HTTP boundary: an open health endpoint and the v1
// provisioning routes behind the API-key gate.
func newRouter(disp *connector.Dispatcher, reg *registry.Registry, apiKey string) http.Handler {
	api := &apiHandler{dispatcher: disp, registry: reg}

	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", api.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Use(apiKeyAuth(apiKey))
		r.Post("/configs/create", api.handleCreate)
		r.Post("/configs/revoke", api.handleRevoke)
		r.Post("/configs/extend", api.handleExtend)
	})

	return r
}

// requestLogger tags each request with a generated id, echoes it back to the
// caller, and logs the completed request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)

		logger := log.With().Str("request_id", id).Logger()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context())))

		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Msg("[server] request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("[server] failed to encode response")
	}
}
