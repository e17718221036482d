// Package ical выгружает шаблоны и предстоящие экземпляры в iCalendar.
package ical

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	goical "github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"

	"github.com/Leganyst/recurring-ledger/internal/calendar"
	"github.com/Leganyst/recurring-ledger/internal/recurring"
)

const (
	productID = "-//recurring-ledger//Recurring Transactions//EN"
	uidDomain = "recurring-ledger"
)

// ErrEmptyCalendar: выгружать нечего.
var ErrEmptyCalendar = errors.New("calendar has no events")

func newCalendar() *goical.Calendar {
	cal := goical.NewCalendar()
	cal.Props.SetText(goical.PropProductID, productID)
	cal.Props.SetText(goical.PropVersion, "2.0")
	return cal
}

func uid(id fmt.Stringer) string {
	return id.String() + "@" + uidDomain
}

func summary(s recurring.Snapshot) string {
	if s.Description != "" {
		return s.Description
	}
	return "Recurring " + string(s.Type)
}

func describe(s recurring.Snapshot) string {
	parts := []string{string(s.Type), s.SignedAmount().StringFixed(2)}
	if s.CategoryRef != "" {
		parts = append(parts, s.CategoryRef)
	}
	return strings.Join(parts, " ")
}

// UpcomingCalendar строит по одному VEVENT на весь день для каждого экземпляра.
func UpcomingCalendar(instances []recurring.Instance, now time.Time) (*goical.Calendar, error) {
	if len(instances) == 0 {
		return nil, ErrEmptyCalendar
	}
	cal := newCalendar()
	for _, inst := range instances {
		event := goical.NewEvent()
		event.Props.SetText(goical.PropUID, uid(inst.ID))
		event.Props.SetDateTime(goical.PropDateTimeStamp, now.UTC())
		event.Props.SetDate(goical.PropDateTimeStart, inst.OccurrenceDate.Time())
		event.Props.SetText(goical.PropSummary, summary(inst.Snapshot))
		event.Props.SetText(goical.PropDescription, describe(inst.Snapshot))
		event.Props.SetText(goical.PropRelatedTo, uid(inst.TemplateID))
		if inst.CategoryRef != "" {
			event.Props.SetText(goical.PropCategories, inst.CategoryRef)
		}
		cal.Children = append(cal.Children, event.Component)
	}
	return cal, nil
}

// TemplateCalendar строит один повторяющийся VEVENT на всю серию,
// skip-даты уходят в EXDATE.
func TemplateCalendar(t recurring.Template, now time.Time) (*goical.Calendar, error) {
	opt, err := RecurrenceRule(t)
	if err != nil {
		return nil, err
	}

	event := goical.NewEvent()
	event.Props.SetText(goical.PropUID, uid(t.ID))
	event.Props.SetDateTime(goical.PropDateTimeStamp, now.UTC())
	event.Props.SetDate(goical.PropDateTimeStart, opt.Dtstart)
	event.Props.SetText(goical.PropSummary, summary(t.Snapshot()))
	event.Props.SetText(goical.PropDescription, describe(t.Snapshot()))
	if t.CategoryRef != "" {
		event.Props.SetText(goical.PropCategories, t.CategoryRef)
	}

	rule := goical.NewProp(goical.PropRecurrenceRule)
	rule.Value = opt.RRuleString()
	event.Props.Set(rule)

	first := calendar.DateOf(opt.Dtstart)
	for _, d := range t.SkipDates.Sorted() {
		if d.Before(first) {
			continue
		}
		exdate := goical.NewProp(goical.PropExceptionDates)
		exdate.SetValueType(goical.ValueDate)
		exdate.Value = d.Time().Format("20060102")
		event.Props.Add(exdate)
	}

	cal := newCalendar()
	cal.Children = append(cal.Children, event.Component)
	return cal, nil
}

// RecurrenceRule переводит расписание шаблона в RRULE. Прижатие к концу
// месяца задаётся через BYMONTHDAY=28..N;BYSETPOS=-1. MaxOccurrences
// превращается в UNTIL на последнем вхождении: пропущенные даты не
// расходуют счётчик.
func RecurrenceRule(t recurring.Template) (*rrule.ROption, error) {
	series := t.Clone()
	series.Status = recurring.StatusActive
	series.OccurrenceCount = 0

	start := series
	start.End = recurring.Never{}
	start.SkipDates = calendar.NewDateSet()
	firstDates, err := recurring.Preview(start, t.Anchor, 1)
	if err != nil {
		return nil, err
	}
	if len(firstDates) == 0 {
		return nil, ErrEmptyCalendar
	}
	first := firstDates[0]

	opt := &rrule.ROption{
		Interval: t.Schedule.IntervalCount(),
		Dtstart:  first.Time(),
	}
	switch s := t.Schedule.(type) {
	case calendar.Daily:
		opt.Freq = rrule.DAILY
	case calendar.Weekly:
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = []rrule.Weekday{weekday(first.Weekday())}
	case calendar.Monthly:
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday, opt.Bysetpos = clampedMonthDay(s.DayOfMonth.OrElse(t.Anchor.Day()))
	case calendar.Yearly:
		opt.Freq = rrule.YEARLY
		opt.Bymonth = []int{int(t.Anchor.Month())}
		if t.Anchor.Month() == time.February {
			opt.Bymonthday, opt.Bysetpos = clampedMonthDay(t.Anchor.Day())
		} else {
			opt.Bymonthday = []int{t.Anchor.Day()}
		}
	default:
		return nil, fmt.Errorf("%w: %T", calendar.ErrInvalidSchedule, t.Schedule)
	}

	switch end := t.End.(type) {
	case recurring.EndDate:
		opt.Until = end.Date.Time()
	case recurring.MaxOccurrences:
		last, _, err := recurring.NthOccurrence(series, t.Anchor, end.N)
		if err != nil {
			return nil, err
		}
		if last.IsZero() {
			return nil, ErrEmptyCalendar
		}
		opt.Until = last.Time()
	}
	return opt, nil
}

func clampedMonthDay(day int) ([]int, []int) {
	if day <= 28 {
		return []int{day}, nil
	}
	days := make([]int, 0, day-27)
	for d := 28; d <= day; d++ {
		days = append(days, d)
	}
	return days, []int{-1}
}

func weekday(w time.Weekday) rrule.Weekday {
	return [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}[w]
}

// Encode пишет cal как text/calendar.
func Encode(w io.Writer, cal *goical.Calendar) error {
	return goical.NewEncoder(w).Encode(cal)
}
