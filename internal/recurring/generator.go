package recurring

import (
	"fmt"

	"github.com/Leganyst/recurring-ledger/internal/calendar"
)

const DefaultHorizonMonths = 3

// HorizonEnd: последняя дата (включительно), до которой держим экземпляры.
func HorizonEnd(today calendar.Date, months int) calendar.Date {
	return today.AddMonthsClamped(months, today.Day())
}

// Generate возвращает по возрастанию даты вхождений в [asOf, horizonEnd],
// которые должны быть у шаблона: без skip-дат и с учётом условия окончания.
// Пропущенные даты не расходуют лимит MaxOccurrences.
func Generate(t Template, horizonEnd, asOf calendar.Date) ([]calendar.Date, error) {
	if !t.Active() {
		return nil, nil
	}
	limit := horizonEnd
	if end, ok := t.End.(EndDate); ok && end.Date.Before(limit) {
		limit = end.Date
	}
	if limit.Before(asOf) || limit.Before(t.Anchor) {
		return nil, nil
	}

	var raw []calendar.Date
	err := walk(t, asOf, func(d calendar.Date) bool {
		if d.After(limit) {
			return false
		}
		raw = append(raw, d)
		return true
	})
	if err != nil {
		return nil, err
	}
	return capRemaining(t, calendar.Filter(raw, t.SkipDates)), nil
}

// Preview отдаёт до n дат вхождений начиная с from, без учёта горизонта.
// Условие окончания и skip-даты действуют.
func Preview(t Template, from calendar.Date, n int) ([]calendar.Date, error) {
	if !t.Active() || n <= 0 {
		return nil, nil
	}
	remaining := n
	if bound, ok := t.End.(MaxOccurrences); ok {
		remaining = min(n, bound.N-t.OccurrenceCount)
	}
	if remaining <= 0 {
		return nil, nil
	}

	var out []calendar.Date
	err := visible(t, from, func(d calendar.Date) bool {
		out = append(out, d)
		return len(out) < remaining
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// NthOccurrence возвращает n-ю (с 1) непропущенную дату начиная с from.
// Даты не накапливаются, поэтому годится для больших n.
func NthOccurrence(t Template, from calendar.Date, n int) (calendar.Date, bool, error) {
	if n <= 0 {
		return calendar.Date{}, false, nil
	}
	var (
		last  calendar.Date
		count int
	)
	err := visible(t, from, func(d calendar.Date) bool {
		last = d
		count++
		return count < n
	})
	if err != nil {
		return calendar.Date{}, false, err
	}
	return last, count == n, nil
}

// visible обходит даты начиная с from до EndDate, минуя skip-даты.
func visible(t Template, from calendar.Date, fn func(calendar.Date) bool) error {
	end, bounded := t.End.(EndDate)
	return walk(t, from, func(d calendar.Date) bool {
		if bounded && d.After(end.Date) {
			return false
		}
		if t.SkipDates.Contains(d) {
			return true
		}
		return fn(d)
	})
}

// walk перебирает вхождения расписания не раньше from и anchor, пока fn
// возвращает true. Даты обязаны строго возрастать: иначе шаг переполнился
// и обход прекращается ошибкой.
func walk(t Template, from calendar.Date, fn func(calendar.Date) bool) error {
	var prev calendar.Date
	started := false
	for i := firstIndex(t.Anchor, t.Schedule, from); ; i++ {
		d, err := calendar.Next(t.Anchor, t.Schedule, i)
		if err != nil {
			return err
		}
		if started && !d.After(prev) {
			return fmt.Errorf("%w: occurrence %d does not advance past %s", calendar.ErrInvalidSchedule, i, prev)
		}
		prev, started = d, true
		if d.Before(from) || d.Before(t.Anchor) {
			continue
		}
		if !fn(d) {
			return nil
		}
	}
}

func capRemaining(t Template, dates []calendar.Date) []calendar.Date {
	bound, ok := t.End.(MaxOccurrences)
	if !ok {
		return dates
	}
	remaining := bound.N - t.OccurrenceCount
	if remaining <= 0 {
		return nil
	}
	if len(dates) > remaining {
		return dates[:remaining]
	}
	return dates
}

// firstIndex возвращает индекс вхождения, дата которого не позже asOf, чтобы
// для старых anchor не обходить всю историю. Любой меньший индекс даёт дату
// строго раньше asOf.
func firstIndex(anchor calendar.Date, s calendar.Schedule, asOf calendar.Date) int {
	if !anchor.Before(asOf) || s == nil || s.IntervalCount() < 1 {
		return 0
	}
	days := daysBetween(anchor, asOf)
	months := (asOf.Year()-anchor.Year())*12 + int(asOf.Month()-anchor.Month())

	var idx int
	switch v := s.(type) {
	case calendar.Daily:
		idx = days / v.Count
	case calendar.Weekly:
		idx = days/(7*v.Count) - 1
	case calendar.Monthly:
		idx = months/v.Count - 1
	case calendar.Yearly:
		idx = months/(12*v.Count) - 1
	}
	return max(idx, 0)
}

func daysBetween(from, to calendar.Date) int {
	return int(to.Time().Sub(from.Time()).Hours() / 24)
}
