package repository

import (
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/Leganyst/recurring-ledger/internal/calendar"
	"github.com/Leganyst/recurring-ledger/internal/model"
	"github.com/Leganyst/recurring-ledger/internal/recurring"
)

func toDBDate(d calendar.Date) datatypes.Date {
	return datatypes.Date(d.Time())
}

func fromDBDate(d datatypes.Date) calendar.Date {
	return calendar.DateOf(time.Time(d).UTC())
}

func templateToModel(t recurring.Template) model.RecurringTemplate {
	dow, dom := calendar.DayFields(t.Schedule)
	m := model.RecurringTemplate{
		ID:              t.ID,
		OwnerID:         t.OwnerID,
		Type:            string(t.Type),
		Amount:          t.Amount,
		Description:     t.Description,
		CategoryRef:     t.CategoryRef,
		AnchorDate:      toDBDate(t.Anchor),
		IntervalType:    string(t.Schedule.IntervalType()),
		IntervalCount:   t.Schedule.IntervalCount(),
		DayOfWeek:       dow,
		DayOfMonth:      dom,
		OccurrenceCount: t.OccurrenceCount,
		Status:          model.TemplateStatus(t.Status),
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
	switch end := t.End.(type) {
	case recurring.EndDate:
		d := toDBDate(end.Date)
		m.EndDate = &d
	case recurring.MaxOccurrences:
		n := end.N
		m.MaxOccurrences = &n
	}
	return m
}

func skipDatesToModel(t recurring.Template) []model.TemplateSkipDate {
	sorted := t.SkipDates.Sorted()
	out := make([]model.TemplateSkipDate, 0, len(sorted))
	for _, d := range sorted {
		out = append(out, model.TemplateSkipDate{TemplateID: t.ID, SkipDate: toDBDate(d)})
	}
	return out
}

func templateFromModel(m model.RecurringTemplate) (recurring.Template, error) {
	schedule, err := calendar.NewSchedule(calendar.IntervalType(m.IntervalType), m.IntervalCount, m.DayOfWeek, m.DayOfMonth)
	if err != nil {
		return recurring.Template{}, fmt.Errorf("template %s: %w", m.ID, err)
	}

	var end recurring.EndCondition = recurring.Never{}
	switch {
	case m.EndDate != nil:
		end = recurring.EndDate{Date: fromDBDate(*m.EndDate)}
	case m.MaxOccurrences != nil:
		end = recurring.MaxOccurrences{N: *m.MaxOccurrences}
	}

	skip := calendar.NewDateSet()
	for _, s := range m.SkipDates {
		skip.Add(fromDBDate(s.SkipDate))
	}

	return recurring.Template{
		ID:              m.ID,
		OwnerID:         m.OwnerID,
		Type:            recurring.TransactionType(m.Type),
		Amount:          m.Amount,
		Description:     m.Description,
		CategoryRef:     m.CategoryRef,
		Anchor:          fromDBDate(m.AnchorDate),
		Schedule:        schedule,
		End:             end,
		SkipDates:       skip,
		Status:          recurring.Status(m.Status),
		OccurrenceCount: m.OccurrenceCount,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}, nil
}

func instanceToModel(inst recurring.Instance) model.UpcomingInstance {
	return model.UpcomingInstance{
		ID:             inst.ID,
		TemplateID:     inst.TemplateID,
		OwnerID:        inst.OwnerID,
		OccurrenceDate: toDBDate(inst.OccurrenceDate),
		Type:           string(inst.Type),
		Amount:         inst.Amount,
		Description:    inst.Description,
		CategoryRef:    inst.CategoryRef,
		CreatedAt:      inst.GeneratedAt,
	}
}

func instanceFromModel(m model.UpcomingInstance) recurring.Instance {
	return recurring.Instance{
		ID:             m.ID,
		TemplateID:     m.TemplateID,
		OwnerID:        m.OwnerID,
		OccurrenceDate: fromDBDate(m.OccurrenceDate),
		Snapshot: recurring.Snapshot{
			Type:        recurring.TransactionType(m.Type),
			Amount:      m.Amount,
			Description: m.Description,
			CategoryRef: m.CategoryRef,
		},
		GeneratedAt: m.CreatedAt,
	}
}
