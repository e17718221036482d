package calendar

import (
	"errors"
	"fmt"
	"time"

	"github.com/samber/mo"
)

var (
	ErrNegativeIndex   = errors.New("occurrence index must not be negative")
	ErrInvalidSchedule = errors.New("invalid schedule")
)

type IntervalType string

const (
	IntervalDaily   IntervalType = "daily"
	IntervalWeekly  IntervalType = "weekly"
	IntervalMonthly IntervalType = "monthly"
	IntervalYearly  IntervalType = "yearly"
)

func (t IntervalType) Valid() bool {
	switch t {
	case IntervalDaily, IntervalWeekly, IntervalMonthly, IntervalYearly:
		return true
	default:
		return false
	}
}

// Schedule: правило повторения. Каждый вариант хранит только поля,
// осмысленные для своего типа интервала.
type Schedule interface {
	IntervalType() IntervalType
	IntervalCount() int
	Validate() error

	occurrence(anchor Date, index int) Date
}

// Daily: каждые Count дней.
type Daily struct {
	Count int
}

// Weekly: каждые Count недель в DayOfWeek, а без него в день недели anchor.
type Weekly struct {
	Count     int
	DayOfWeek mo.Option[time.Weekday]
}

// Monthly: каждые Count месяцев в DayOfMonth, прижатый к длине месяца,
// а без него в день anchor.
type Monthly struct {
	Count      int
	DayOfMonth mo.Option[int]
}

// Yearly: каждые Count лет в месяц и день anchor; 29 февраля в
// невисокосный год становится 28-м.
type Yearly struct {
	Count int
}

func (s Daily) IntervalType() IntervalType   { return IntervalDaily }
func (s Weekly) IntervalType() IntervalType  { return IntervalWeekly }
func (s Monthly) IntervalType() IntervalType { return IntervalMonthly }
func (s Yearly) IntervalType() IntervalType  { return IntervalYearly }

func (s Daily) IntervalCount() int   { return s.Count }
func (s Weekly) IntervalCount() int  { return s.Count }
func (s Monthly) IntervalCount() int { return s.Count }
func (s Yearly) IntervalCount() int  { return s.Count }

func (s Daily) Validate() error {
	return validateCount(s.Count)
}

func (s Weekly) Validate() error {
	if err := validateCount(s.Count); err != nil {
		return err
	}
	if dow, ok := s.DayOfWeek.Get(); ok && (dow < time.Sunday || dow > time.Saturday) {
		return fmt.Errorf("%w: day of week %d out of range 0..6", ErrInvalidSchedule, dow)
	}
	return nil
}

func (s Monthly) Validate() error {
	if err := validateCount(s.Count); err != nil {
		return err
	}
	if dom, ok := s.DayOfMonth.Get(); ok && (dom < 1 || dom > 31) {
		return fmt.Errorf("%w: day of month %d out of range 1..31", ErrInvalidSchedule, dom)
	}
	return nil
}

func (s Yearly) Validate() error {
	return validateCount(s.Count)
}

// MaxIntervalCount ограничивает шаг расписания, чтобы индекс вхождения
// не переполнял int.
const MaxIntervalCount = 1000

func validateCount(count int) error {
	if count < 1 || count > MaxIntervalCount {
		return fmt.Errorf("%w: interval count must be in 1..%d, got %d", ErrInvalidSchedule, MaxIntervalCount, count)
	}
	return nil
}

// Next возвращает вхождение с номером index, считая от anchor.
// Индекс 0 совпадает с anchor, если дневные поля расписания с ним согласны.
func Next(anchor Date, s Schedule, index int) (Date, error) {
	if index < 0 {
		return Date{}, fmt.Errorf("%w: %d", ErrNegativeIndex, index)
	}
	if s == nil {
		return Date{}, fmt.Errorf("%w: schedule is nil", ErrInvalidSchedule)
	}
	if err := s.Validate(); err != nil {
		return Date{}, err
	}
	return s.occurrence(anchor, index), nil
}

func (s Daily) occurrence(anchor Date, index int) Date {
	return anchor.AddDays(index * s.Count)
}

func (s Weekly) occurrence(anchor Date, index int) Date {
	return s.base(anchor).AddDays(index * s.Count * 7)
}

// base: первая дата не раньше anchor, попадающая на заданный день недели.
func (s Weekly) base(anchor Date) Date {
	dow, ok := s.DayOfWeek.Get()
	if !ok {
		return anchor
	}
	shift := (int(dow) - int(anchor.Weekday()) + 7) % 7
	return anchor.AddDays(shift)
}

func (s Monthly) occurrence(anchor Date, index int) Date {
	day := s.DayOfMonth.OrElse(anchor.Day())
	return anchor.AddMonthsClamped(index*s.Count, day)
}

func (s Yearly) occurrence(anchor Date, index int) Date {
	return anchor.AddMonthsClamped(index*s.Count*12, anchor.Day())
}

// NewSchedule собирает вариант из плоского набора (тип, шаг, дневные поля),
// в котором расписание хранится и передаётся. Чужие для типа поля игнорируются.
func NewSchedule(intervalType IntervalType, count int, dayOfWeek, dayOfMonth *int) (Schedule, error) {
	var s Schedule
	switch intervalType {
	case IntervalDaily:
		s = Daily{Count: count}
	case IntervalWeekly:
		w := Weekly{Count: count}
		if dayOfWeek != nil {
			w.DayOfWeek = mo.Some(time.Weekday(*dayOfWeek))
		}
		s = w
	case IntervalMonthly:
		m := Monthly{Count: count}
		if dayOfMonth != nil {
			m.DayOfMonth = mo.Some(*dayOfMonth)
		}
		s = m
	case IntervalYearly:
		s = Yearly{Count: count}
	default:
		return nil, fmt.Errorf("%w: unknown interval type %q", ErrInvalidSchedule, intervalType)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// DayFields раскладывает день недели или месяца варианта обратно в
// необязательные целые.
func DayFields(s Schedule) (dayOfWeek, dayOfMonth *int) {
	switch v := s.(type) {
	case Weekly:
		if dow, ok := v.DayOfWeek.Get(); ok {
			d := int(dow)
			dayOfWeek = &d
		}
	case Monthly:
		if dom, ok := v.DayOfMonth.Get(); ok {
			dayOfMonth = &dom
		}
	}
	return dayOfWeek, dayOfMonth
}
