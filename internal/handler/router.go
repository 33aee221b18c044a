package handler

import (
	"net/http"

	"github.com/tamzid2001/docuflux/internal/config"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(container *config.Container) http.Handler {
	router := mux.NewRouter()
	router.Use(RequestIDMiddleware, LoggingMiddleware(container.Logger, container.Metrics))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "docuflux"})
	}).Methods(http.MethodGet)
	router.Handle("/metrics", container.Metrics.Handler()).Methods(http.MethodGet)

	cfg := container.Config
	extractionHandler := NewExtractionHandler(container.Pipeline, cfg.GetMaxFileSize(), container.Logger)
	batchHandler := NewBatchHandler(container.BatchRunner, cfg.GetMaxFileSize(), cfg.GetBatchMaxFiles(), container.Logger)
	runsHandler := NewRunsHandler(container.Runs, container.Logger)
	filesHandler := NewFilesHandler(container.Files, cfg.GetMaxFileSize(), container.Logger)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/extractions", extractionHandler.Extract).Methods(http.MethodPost)
	api.HandleFunc("/batches", batchHandler.Submit).Methods(http.MethodPost)
	api.HandleFunc("/batches/{id}", batchHandler.Status).Methods(http.MethodGet)
	api.HandleFunc("/runs", runsHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/files", filesHandler.Upload).Methods(http.MethodPost)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.GetCORSAllowedOrigins(),
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			RequestIDHeader,
		},
		ExposedHeaders: []string{
			RequestIDHeader,
		},
		MaxAge: 300, // Maximum value not ignored by any of major browsers
	})

	return c.Handler(router)
}
