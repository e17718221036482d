package handler

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"

	"github.com/Leganyst/recurring-ledger/internal/calendar"
	"github.com/Leganyst/recurring-ledger/internal/model"
	"github.com/Leganyst/recurring-ledger/internal/recurring"
)

type scheduleDTO struct {
	IntervalType  string `json:"interval_type"`
	IntervalCount int    `json:"interval_count"`
	DayOfWeek     *int   `json:"day_of_week,omitempty"`
	DayOfMonth    *int   `json:"day_of_month,omitempty"`
}

type endConditionDTO struct {
	Type           string         `json:"type"`
	EndDate        *calendar.Date `json:"end_date,omitempty"`
	MaxOccurrences *int           `json:"max_occurrences,omitempty"`
}

type templateRequest struct {
	Type         string           `json:"type"`
	Amount       decimal.Decimal  `json:"amount"`
	Description  string           `json:"description"`
	CategoryRef  string           `json:"category_ref"`
	Anchor       calendar.Date    `json:"anchor"`
	Schedule     scheduleDTO      `json:"schedule"`
	EndCondition *endConditionDTO `json:"end_condition,omitempty"`
	SkipDates    []calendar.Date  `json:"skip_dates,omitempty"`
}

// templatePatchRequest: отсутствующие поля не меняются.
type templatePatchRequest struct {
	Type         *string          `json:"type"`
	Amount       *decimal.Decimal `json:"amount"`
	Description  *string          `json:"description"`
	CategoryRef  *string          `json:"category_ref"`
	Anchor       *calendar.Date   `json:"anchor"`
	Schedule     *scheduleDTO     `json:"schedule"`
	EndCondition *endConditionDTO `json:"end_condition"`
}

type datesRequest struct {
	Dates []calendar.Date `json:"dates"`
}

type templateResponse struct {
	ID              uuid.UUID       `json:"id"`
	OwnerID         uuid.UUID       `json:"owner_id"`
	Type            string          `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	CategoryRef     string          `json:"category_ref"`
	Anchor          calendar.Date   `json:"anchor"`
	Schedule        scheduleDTO     `json:"schedule"`
	EndCondition    endConditionDTO `json:"end_condition"`
	SkipDates       []calendar.Date `json:"skip_dates"`
	Status          string          `json:"status"`
	OccurrenceCount int             `json:"occurrence_count"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type instanceResponse struct {
	ID             uuid.UUID       `json:"id"`
	TemplateID     uuid.UUID       `json:"template_id"`
	OccurrenceDate calendar.Date   `json:"occurrence_date"`
	Type           string          `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	SignedAmount   decimal.Decimal `json:"signed_amount"`
	Description    string          `json:"description"`
	CategoryRef    string          `json:"category_ref"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

type eventResponse struct {
	ID         uuid.UUID       `json:"id"`
	EventType  string          `json:"event_type"`
	InstanceID *uuid.UUID      `json:"instance_id,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

type bulkItemResponse struct {
	Index    int               `json:"index"`
	Template *templateResponse `json:"template,omitempty"`
	Error    string            `json:"error,omitempty"`
}

type previewResponse struct {
	TemplateID uuid.UUID       `json:"template_id"`
	Dates      []calendar.Date `json:"dates"`
}

func (s scheduleDTO) toSchedule() (calendar.Schedule, error) {
	it := calendar.IntervalType(strings.ToLower(strings.TrimSpace(s.IntervalType)))
	schedule, err := calendar.NewSchedule(it, s.IntervalCount, s.DayOfWeek, s.DayOfMonth)
	if err != nil {
		return nil, &recurring.ValidationError{Field: "schedule", Reason: err.Error()}
	}
	return schedule, nil
}

func scheduleFrom(s calendar.Schedule) scheduleDTO {
	dow, dom := calendar.DayFields(s)
	return scheduleDTO{
		IntervalType:  string(s.IntervalType()),
		IntervalCount: s.IntervalCount(),
		DayOfWeek:     dow,
		DayOfMonth:    dom,
	}
}

// toEndCondition принимает явный тип или выводит его из заданной границы.
// Обе границы сразу считаются ошибкой.
func (e *endConditionDTO) toEndCondition() (recurring.EndCondition, error) {
	if e == nil {
		return recurring.Never{}, nil
	}
	kind := strings.ToLower(strings.TrimSpace(e.Type))
	if kind == "" {
		switch {
		case e.EndDate != nil && e.MaxOccurrences != nil:
			return nil, &recurring.ValidationError{Field: "end_condition", Reason: "end_date and max_occurrences are mutually exclusive"}
		case e.EndDate != nil:
			kind = recurring.EndDate{}.Kind()
		case e.MaxOccurrences != nil:
			kind = recurring.MaxOccurrences{}.Kind()
		default:
			kind = recurring.Never{}.Kind()
		}
	}

	switch kind {
	case recurring.Never{}.Kind():
		return recurring.Never{}, nil
	case recurring.EndDate{}.Kind():
		if e.EndDate == nil {
			return nil, &recurring.ValidationError{Field: "end_date", Reason: "is required"}
		}
		return recurring.EndDate{Date: *e.EndDate}, nil
	case recurring.MaxOccurrences{}.Kind():
		if e.MaxOccurrences == nil {
			return nil, &recurring.ValidationError{Field: "max_occurrences", Reason: "is required"}
		}
		return recurring.MaxOccurrences{N: *e.MaxOccurrences}, nil
	}
	return nil, &recurring.ValidationError{Field: "end_condition", Reason: "unknown type " + e.Type}
}

func endConditionFrom(e recurring.EndCondition) endConditionDTO {
	out := endConditionDTO{Type: e.Kind()}
	switch v := e.(type) {
	case recurring.EndDate:
		date := v.Date
		out.EndDate = &date
	case recurring.MaxOccurrences:
		n := v.N
		out.MaxOccurrences = &n
	}
	return out
}

func (r templateRequest) toSpec(ownerID uuid.UUID) (recurring.TemplateSpec, error) {
	schedule, err := r.Schedule.toSchedule()
	if err != nil {
		return recurring.TemplateSpec{}, err
	}
	end, err := r.EndCondition.toEndCondition()
	if err != nil {
		return recurring.TemplateSpec{}, err
	}
	return recurring.TemplateSpec{
		OwnerID:     ownerID,
		Type:        recurring.TransactionType(r.Type),
		Amount:      r.Amount,
		Description: r.Description,
		CategoryRef: r.CategoryRef,
		Anchor:      r.Anchor,
		Schedule:    schedule,
		End:         end,
		SkipDates:   r.SkipDates,
	}, nil
}

func optional[T any](v *T) mo.Option[T] {
	if v == nil {
		return mo.None[T]()
	}
	return mo.Some(*v)
}

func (r templatePatchRequest) toPatch() (recurring.TemplatePatch, error) {
	patch := recurring.TemplatePatch{
		Amount:      optional(r.Amount),
		Description: optional(r.Description),
		CategoryRef: optional(r.CategoryRef),
		Anchor:      optional(r.Anchor),
	}
	if r.Type != nil {
		patch.Type = mo.Some(recurring.TransactionType(strings.ToLower(strings.TrimSpace(*r.Type))))
	}
	if r.Schedule != nil {
		schedule, err := r.Schedule.toSchedule()
		if err != nil {
			return recurring.TemplatePatch{}, err
		}
		patch.Schedule = mo.Some(schedule)
	}
	if r.EndCondition != nil {
		end, err := r.EndCondition.toEndCondition()
		if err != nil {
			return recurring.TemplatePatch{}, err
		}
		patch.End = mo.Some(end)
	}
	if patch.Empty() {
		return patch, &recurring.ValidationError{Field: "body", Reason: "update has no fields"}
	}
	return patch, nil
}

func toTemplateResponse(t recurring.Template) templateResponse {
	skip := t.SkipDates.Sorted()
	if skip == nil {
		skip = []calendar.Date{}
	}
	return templateResponse{
		ID:              t.ID,
		OwnerID:         t.OwnerID,
		Type:            string(t.Type),
		Amount:          t.Amount,
		Description:     t.Description,
		CategoryRef:     t.CategoryRef,
		Anchor:          t.Anchor,
		Schedule:        scheduleFrom(t.Schedule),
		EndCondition:    endConditionFrom(t.End),
		SkipDates:       skip,
		Status:          string(t.Status),
		OccurrenceCount: t.OccurrenceCount,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func toTemplateResponses(templates []recurring.Template) []templateResponse {
	out := make([]templateResponse, 0, len(templates))
	for _, t := range templates {
		out = append(out, toTemplateResponse(t))
	}
	return out
}

func toInstanceResponse(inst recurring.Instance) instanceResponse {
	return instanceResponse{
		ID:             inst.ID,
		TemplateID:     inst.TemplateID,
		OccurrenceDate: inst.OccurrenceDate,
		Type:           string(inst.Type),
		Amount:         inst.Amount,
		SignedAmount:   inst.SignedAmount(),
		Description:    inst.Description,
		CategoryRef:    inst.CategoryRef,
		GeneratedAt:    inst.GeneratedAt,
	}
}

func toEventResponses(events []model.Event) []eventResponse {
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, eventResponse{
			ID:         e.ID,
			EventType:  string(e.EventType),
			InstanceID: e.InstanceID,
			Details:    json.RawMessage(e.Details),
			CreatedAt:  e.CreatedAt,
		})
	}
	return out
}
