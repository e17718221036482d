package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	goical "github.com/emersion/go-ical"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Leganyst/recurring-ledger/internal/calendar"
	"github.com/Leganyst/recurring-ledger/internal/ical"
	"github.com/Leganyst/recurring-ledger/internal/recurring"
	"github.com/Leganyst/recurring-ledger/internal/service"
)

// maxCalendarEvents ограничивает одну выгрузку .ics. Больший диапазон
// отклоняется, а не обрезается.
var maxCalendarEvents = 1000

type UpcomingHandler struct {
	service *service.RecurringService
	logger  logrus.FieldLogger
}

func NewUpcomingHandler(svc *service.RecurringService, logger logrus.FieldLogger) *UpcomingHandler {
	return &UpcomingHandler{service: svc, logger: logger}
}

func (h *UpcomingHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/upcoming", h.ListUpcoming).Methods(http.MethodGet)
	router.HandleFunc("/upcoming.ics", h.UpcomingICS).Methods(http.MethodGet)
	router.HandleFunc("/upcoming/{id}", h.DeleteInstance).Methods(http.MethodDelete)
	router.HandleFunc("/generate-recurring", h.GenerateRecurring).Methods(http.MethodPost)
}

func (h *UpcomingHandler) ListUpcoming(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	page, err := queryInt(r, "page")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	pageSize, err := queryInt(r, "page_size")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.service.ListUpcoming(r.Context(), ownerFrom(r.Context()), from, to, page, pageSize)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	items := make([]instanceResponse, 0, len(result.Items))
	for _, inst := range result.Items {
		items = append(items, toInstanceResponse(inst))
	}
	writeJSON(w, http.StatusOK, calendar.Page[instanceResponse]{
		Items:    items,
		Page:     result.Page,
		PageSize: result.PageSize,
		HasNext:  result.HasNext,
		HasPrev:  result.HasPrev,
		Total:    result.Total,
	})
}

func (h *UpcomingHandler) UpcomingICS(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	result, err := h.service.ListUpcoming(r.Context(), ownerFrom(r.Context()), from, to, 1, maxCalendarEvents)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if result.Total > maxCalendarEvents {
		writeError(w, h.logger, &recurring.ValidationError{
			Field:  "range",
			Reason: fmt.Sprintf("%d instances exceed the export limit of %d, narrow from/to", result.Total, maxCalendarEvents),
		})
		return
	}
	cal, err := ical.UpcomingCalendar(result.Items, h.service.Now())
	if err != nil {
		writeCalendarError(w, h.logger, err)
		return
	}
	writeCalendar(w, h.logger, "upcoming.ics", cal)
}

// DeleteInstance удаляет предстоящий экземпляр вызывающего владельца.
func (h *UpcomingHandler) DeleteInstance(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid instance id")
		return
	}
	inst, err := h.service.GetInstance(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if inst.OwnerID != ownerFrom(r.Context()) {
		writeError(w, h.logger, recurring.ErrNotFound)
		return
	}
	if err := h.service.DeleteInstance(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type generateResponse struct {
	service.BatchResult
	Error string `json:"error,omitempty"`
}

// GenerateRecurring запускает генерацию по активным шаблонам вызывающего
// владельца. При частичных ошибках счётчики всё равно возвращаются.
func (h *UpcomingHandler) GenerateRecurring(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RematerializeOwner(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		h.logger.WithError(err).WithField("failed", result.Failed).Error("manual generation finished with errors")
		writeJSON(w, http.StatusInternalServerError, generateResponse{BatchResult: result, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{BatchResult: result})
}

func dateRange(r *http.Request) (calendar.Date, calendar.Date, error) {
	from, err := queryDate(r, "from")
	if err != nil {
		return calendar.Date{}, calendar.Date{}, err
	}
	to, err := queryDate(r, "to")
	if err != nil {
		return calendar.Date{}, calendar.Date{}, err
	}
	return from, to, nil
}

func queryDate(r *http.Request, name string) (calendar.Date, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return calendar.Date{}, nil
	}
	d, err := calendar.ParseDate(raw)
	if err != nil {
		return calendar.Date{}, &recurring.ValidationError{Field: name, Reason: "expected YYYY-MM-DD"}
	}
	return d, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &recurring.ValidationError{Field: name, Reason: "expected a non-negative integer"}
	}
	return n, nil
}

func writeCalendar(w http.ResponseWriter, log logrus.FieldLogger, filename string, cal *goical.Calendar) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := ical.Encode(w, cal); err != nil {
		log.WithError(err).Error("encode calendar")
	}
}

func writeCalendarError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	if errors.Is(err, ical.ErrEmptyCalendar) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeError(w, log, err)
}
