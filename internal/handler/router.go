package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Leganyst/recurring-ledger/internal/service"
)

// NewRouter монтирует JSON API под /api. Все маршруты /api привязаны к владельцу.
func NewRouter(svc *service.RecurringService, logger logrus.FieldLogger) *mux.Router {
	router := mux.NewRouter()
	router.Use(LoggingMiddleware(logger))

	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(OwnerMiddleware(logger))

	NewTemplateHandler(svc, logger).RegisterRoutes(api)
	NewUpcomingHandler(svc, logger).RegisterRoutes(api)
	return router
}
