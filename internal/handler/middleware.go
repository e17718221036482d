package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const ownerHeader = "X-Owner-ID"

type ownerKey struct{}

// OwnerMiddleware привязывает каждый запрос к владельцу из X-Owner-ID.
// Аутентификация выполняется выше по цепочке.
func OwnerMiddleware(log logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(ownerHeader)
			if raw == "" {
				writeMessage(w, http.StatusUnauthorized, ownerHeader+" header is required")
				return
			}
			ownerID, err := uuid.Parse(raw)
			if err != nil {
				log.WithField("owner", raw).Warn("malformed owner id")
				writeMessage(w, http.StatusBadRequest, "invalid "+ownerHeader)
				return
			}
			ctx := context.WithValue(r.Context(), ownerKey{}, ownerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ownerFrom(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(ownerKey{}).(uuid.UUID)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// LoggingMiddleware пишет одну строку лога на запрос.
func LoggingMiddleware(log logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start).String(),
			}).Debug("http request")
		})
	}
}
