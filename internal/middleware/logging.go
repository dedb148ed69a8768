// Package middleware holds the wedding site's cross-cutting HTTP wrappers:
// request logging and CORS for the JSON API.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

const staticPrefix = "/static/"

// Logger logs one line per request with the chi request id, status, size
// and latency. It must run after chimiddleware.RequestID.
//
// Levels follow the outcome: 5xx at Error, 4xx at Warn, everything else at
// Info. Static assets drop to Debug so a page load logs as one guest action
// rather than a dozen file fetches.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			logger.LogAttrs(r.Context(), requestLevel(r.URL.Path, status), "request completed",
				slog.String("requestID", chimiddleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Duration("duration", time.Since(start)),
				slog.Int("bytes", ww.BytesWritten()),
			)
		})
	}
}

func requestLevel(path string, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	case strings.HasPrefix(path, staticPrefix):
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
