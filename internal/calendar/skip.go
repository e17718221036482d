package calendar

import "sort"

// DateSet: неупорядоченное множество дат. Принадлежность только по дате.
type DateSet map[Date]struct{}

func NewDateSet(dates ...Date) DateSet {
	set := make(DateSet, len(dates))
	for _, d := range dates {
		set.Add(d)
	}
	return set
}

func (s DateSet) Add(d Date) {
	s[d] = struct{}{}
}

func (s DateSet) Remove(d Date) {
	delete(s, d)
}

func (s DateSet) Contains(d Date) bool {
	_, ok := s[d]
	return ok
}

func (s DateSet) Clone() DateSet {
	out := make(DateSet, len(s))
	for d := range s {
		out[d] = struct{}{}
	}
	return out
}

// Sorted возвращает элементы по возрастанию.
func (s DateSet) Sorted() []Date {
	out := make([]Date, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Filter убирает даты из skip, сохраняя порядок.
func Filter(dates []Date, skip DateSet) []Date {
	result := make([]Date, 0, len(dates))
	for _, d := range dates {
		if skip.Contains(d) {
			continue
		}
		result = append(result, d)
	}
	return result
}
