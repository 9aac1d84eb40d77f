// Package server exposes the charts service over REST. Handlers stay
// thin: decode, call the service, encode; all interesting behavior and
// its tracing live below this layer.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"chartbrief-backend/lib/serviceutil"
)

// Handler holds dependencies for the HTTP handlers.
type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// SetupRoutes configures all HTTP routes. An empty accessToken leaves
// the API open, which is the expected mode for localhost deployments.
func (h *Handler) SetupRoutes(accessToken string) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestIdMiddleware)

	r.HandleFunc("/healthz", h.Health).Methods("GET")

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(func(next http.Handler) http.Handler {
		return serviceutil.VerifyAccessToken(accessToken, next)
	})

	api.HandleFunc("/auth/status", h.AuthStatus).Methods("GET")
	api.HandleFunc("/auth/login", h.Login).Methods("POST")
	api.HandleFunc("/auth/credentials", h.SetCredentials).Methods("POST")

	api.HandleFunc("/catalog", h.Catalog).Methods("GET")
	api.HandleFunc("/charts", h.Charts).Methods("GET")
	api.HandleFunc("/catalog-charts", h.CatalogCharts).Methods("GET")
	api.HandleFunc("/ppt/charts", h.PptCharts).Methods("GET")

	api.HandleFunc("/image", h.Image).Methods("GET")
	api.HandleFunc("/downloads", h.Downloads).Methods("POST")
	api.HandleFunc("/relink", h.Relink).Methods("POST")

	return r
}

func requestIdMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestId := uuid.NewString()
		w.Header().Set("X-Request-Id", requestId)

		start := time.Now()
		next.ServeHTTP(w, r)

		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestId,
			"duration", time.Since(start),
		)
	})
}
