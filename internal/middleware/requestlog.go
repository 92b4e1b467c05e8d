// Package middleware provides HTTP middleware for the reconciler API.
package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

type statusCapture struct {
	http.ResponseWriter
	statusCode int
}

func newStatusCapture(w http.ResponseWriter) *statusCapture {
	return &statusCapture{
		ResponseWriter: w,
		statusCode:     http.StatusOK, // Default if WriteHeader not called
	}
}

func (sc *statusCapture) WriteHeader(code int) {
	sc.statusCode = code
	sc.ResponseWriter.WriteHeader(code)
}

// RequestLogger logs every request with method, path, status and duration
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			capture := newStatusCapture(w)

			next.ServeHTTP(capture, r)

			logger.Info("request handled",
				"method", r.Method,
				"path", r.URL.Path,
				"status", capture.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
