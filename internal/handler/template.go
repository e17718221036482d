package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Leganyst/recurring-ledger/internal/calendar"
	"github.com/Leganyst/recurring-ledger/internal/ical"
	"github.com/Leganyst/recurring-ledger/internal/recurring"
	"github.com/Leganyst/recurring-ledger/internal/service"
)

const defaultPreviewCount = 12

type TemplateHandler struct {
	service *service.RecurringService
	logger  logrus.FieldLogger
}

func NewTemplateHandler(svc *service.RecurringService, logger logrus.FieldLogger) *TemplateHandler {
	return &TemplateHandler{service: svc, logger: logger}
}

func (h *TemplateHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/templates", h.ListTemplates).Methods(http.MethodGet)
	router.HandleFunc("/templates", h.CreateTemplate).Methods(http.MethodPost)
	router.HandleFunc("/templates/bulk", h.BulkCreateTemplates).Methods(http.MethodPost)
	router.HandleFunc("/templates/{id}", h.GetTemplate).Methods(http.MethodGet)
	router.HandleFunc("/templates/{id}", h.UpdateTemplate).Methods(http.MethodPut)
	router.HandleFunc("/templates/{id}", h.DeleteTemplate).Methods(http.MethodDelete)
	router.HandleFunc("/templates/{id}/pause", h.PauseTemplate).Methods(http.MethodPost)
	router.HandleFunc("/templates/{id}/resume", h.ResumeTemplate).Methods(http.MethodPost)
	router.HandleFunc("/templates/{id}/skip-dates", h.AddSkipDates).Methods(http.MethodPost)
	router.HandleFunc("/templates/{id}/skip-dates", h.RemoveSkipDates).Methods(http.MethodDelete)
	router.HandleFunc("/templates/{id}/rematerialize", h.Rematerialize).Methods(http.MethodPost)
	router.HandleFunc("/templates/{id}/preview", h.Preview).Methods(http.MethodGet)
	router.HandleFunc("/templates/{id}/events", h.ListEvents).Methods(http.MethodGet)
	router.HandleFunc("/templates/{id}/schedule.ics", h.ScheduleICS).Methods(http.MethodGet)
}

// templateID разбирает {id} и проверяет, что шаблон принадлежит вызывающему.
// Чужие шаблоны выглядят как отсутствующие.
func (h *TemplateHandler) templateID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid template id")
		return uuid.Nil, false
	}
	if err := h.service.Authorize(r.Context(), ownerFrom(r.Context()), id); err != nil {
		writeError(w, h.logger, err)
		return uuid.Nil, false
	}
	return id, true
}

func (h *TemplateHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	includePaused := true
	if raw := r.URL.Query().Get("include_paused"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid include_paused")
			return
		}
		includePaused = v
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

	templates, err := h.service.ListTemplates(r.Context(), ownerFrom(r.Context()), includePaused)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	// Шаблонов у владельца немного, страницы режем в памяти.
	writeJSON(w, http.StatusOK, calendar.Paginate(toTemplateResponses(templates), page, pageSize))
}

func (h *TemplateHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	spec, err := req.toSpec(ownerFrom(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	t, err := h.service.CreateTemplate(r.Context(), spec)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTemplateResponse(t))
}

// BulkCreateTemplates создаёт шаблоны независимо; в ответе по одной записи
// на элемент запроса в исходном порядке.
func (h *TemplateHandler) BulkCreateTemplates(w http.ResponseWriter, r *http.Request) {
	var reqs []templateRequest
	if err := decodeJSON(r, &reqs); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if len(reqs) == 0 {
		writeMessage(w, http.StatusBadRequest, "no templates given")
		return
	}

	owner := ownerFrom(r.Context())
	out := make([]bulkItemResponse, len(reqs))
	specs := make([]recurring.TemplateSpec, 0, len(reqs))
	positions := make([]int, 0, len(reqs))
	for i, req := range reqs {
		out[i].Index = i
		spec, err := req.toSpec(owner)
		if err != nil {
			out[i].Error = err.Error()
			continue
		}
		specs = append(specs, spec)
		positions = append(positions, i)
	}

	for _, item := range h.service.BulkCreateTemplates(r.Context(), specs) {
		pos := positions[item.Index]
		if item.Err != nil {
			out[pos].Error = item.Err.Error()
			continue
		}
		resp := toTemplateResponse(item.Template)
		out[pos].Template = &resp
	}
	writeJSON(w, http.StatusMultiStatus, out)
}

func (h *TemplateHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.templateID(w, r)
	if !ok {
		return
	}
	t, err := h.service.GetTemplate(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateResponse(t))
}

func (h *TemplateHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.templateID(w, r)
	if !ok {
		return
	}
	var req templatePatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	t, err := h.service.UpdateTemplate(r.Context(), id, patch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateResponse(t))
}

func (h *TemplateHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.templateID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteTemplate(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TemplateHandler) PauseTemplate(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.service.PauseTemplate)
}

func (h *TemplateHandler) ResumeTemplate(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.service.ResumeTemplate)
}

func (h *TemplateHandler) changeStatus(
	w http.ResponseWriter,
	r *http.Request,
	change func(ctx context.Context, id uuid.UUID) (recurring.Template, error),
) {
	id, ok := h.templateID(w, r)
	if !ok {
		return
	}
	t, err := change(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateResponse(t))
}

func (h *TemplateHandler) AddSkipDates(w http.ResponseWriter, r *http.Request) {
	h.changeSkipDates(w, r, h.service.AddSkipDates)
}

func (h *TemplateHandler) RemoveSkipDates(w http.ResponseWriter, r *http.Request) {
	h.changeSkipDates(w, r, h.service.RemoveSkipDates)
}

func (h *TemplateHandler) changeSkipDates(
	w http.ResponseWriter,
	r *http.Request,
	change func(ctx context.Context, id uuid.UUID, dates []calendar.Date) (recurring.Template, error),
) {
	id, ok := h.templateID(w, r)
	if !ok {
		return
	}
	var req datesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	t, err := change(r.Context(), id, req.Dates)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateResponse(t))
}

func (h *TemplateHandler) Rematerialize(w http.ResponseWriter, r *http.Request) {
	id, ok := h.templateID(w, r)
	if !ok {
		return
	}
	res, err := h.service.Rematerialize(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *TemplateHandler) Preview(w http.ResponseWriter, r *http.Request) {
	id, ok := h.templateID(w, r)
	if !ok {
		return
	}
	count := defaultPreviewCount
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid count")
			return
		}
		count = n
	}

	dates, err := h.service.Preview(r.Context(), id, count)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if dates == nil {
		dates = []calendar.Date{}
	}
	writeJSON(w, http.StatusOK, previewResponse{TemplateID: id, Dates: dates})
}

func (h *TemplateHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := h.templateID(w, r)
	if !ok {
		return
	}
	events, err := h.service.ListEvents(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponses(events))
}

func (h *TemplateHandler) ScheduleICS(w http.ResponseWriter, r *http.Request) {
	id, ok := h.templateID(w, r)
	if !ok {
		return
	}
	t, err := h.service.GetTemplate(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	cal, err := ical.TemplateCalendar(t, h.service.Now())
	if err != nil {
		writeCalendarError(w, h.logger, err)
		return
	}
	writeCalendar(w, h.logger, "template-"+id.String()+".ics", cal)
}
