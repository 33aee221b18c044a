package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/tamzid2001/docuflux/internal/domain"
	"github.com/tamzid2001/docuflux/internal/monitoring"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type contextKey string

const (
	requestIDContextKey contextKey = "request_id"
	RequestIDHeader                = "X-Request-ID"
)

// GetRequestID returns the request ID stored by RequestIDMiddleware.
func GetRequestID(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(requestIDContextKey).(string)
	return id, ok
}

// RequestIDMiddleware propagates X-Request-ID, generating one when absent.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs every request and records HTTP metrics. metrics may be nil.
func LoggingMiddleware(logger domain.Logger, metrics *monitoring.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			elapsed := time.Since(start)

			path := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tmpl, err := route.GetPathTemplate(); err == nil {
					path = tmpl
				}
			}
			if metrics != nil {
				metrics.ObserveHTTP(r.Method, path, rec.status, elapsed)
			}

			requestID, _ := GetRequestID(r)
			fields := []interface{}{
				"method", r.Method,
				"path", path,
				"status", rec.status,
				"duration_ms", elapsed.Milliseconds(),
				"request_id", requestID,
			}
			if rec.status >= http.StatusInternalServerError {
				logger.Warn("HTTP request failed", fields...)
				return
			}
			logger.Info("HTTP request", fields...)
		})
	}
}
