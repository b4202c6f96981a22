package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sitehealth/internal/clock"
)

const requestIDHeader = "X-Request-ID"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	loggerKey
)

// requestID reuses a client supplied id or generates one, and echoes it back.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(requestIDHeader, id)

		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.clock.Now()

		entry := s.logger.WithFields(logrus.Fields{
			"request-id": requestIDFrom(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
		})

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ctx := context.WithValue(r.Context(), loggerKey, entry)

		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		fields := entry.WithFields(logrus.Fields{
			"status":   status,
			"bytes":    ww.BytesWritten(),
			"duration": clock.Since(s.clock, start).String(),
		})

		if status >= http.StatusInternalServerError {
			fields.Error("request failed")
			return
		}

		fields.Info("request completed")
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)

	return id
}

func (s *Server) loggerFrom(ctx context.Context) logrus.FieldLogger {
	if entry, ok := ctx.Value(loggerKey).(logrus.FieldLogger); ok {
		return entry
	}

	return s.logger
}
