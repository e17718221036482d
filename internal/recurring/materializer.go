package recurring

import (
	"sort"

	"github.com/google/uuid"

	"github.com/Leganyst/recurring-ledger/internal/calendar"
)

// Plan: разница между желаемым набором вхождений шаблона и сохранёнными
// предстоящими экземплярами.
type Plan struct {
	TemplateID uuid.UUID
	HorizonEnd calendar.Date
	// ToCreate: даты, для которых ещё нет экземпляра.
	ToCreate []calendar.Date
	// ToDelete: лишние экземпляры, включая дубликаты.
	ToDelete []uuid.UUID
	// ToRefresh: экземпляры, чей снимок расходится с шаблоном.
	ToRefresh []uuid.UUID
	// ToRealize: экземпляры с датой до today, которые засчитываются как
	// состоявшиеся и уходят из предстоящих.
	ToRealize []uuid.UUID
	// OccurrenceCount: счётчик шаблона после засчитывания.
	OccurrenceCount int
}

func (p Plan) Empty() bool {
	return len(p.ToCreate) == 0 && len(p.ToDelete) == 0 &&
		len(p.ToRefresh) == 0 && len(p.ToRealize) == 0
}

// Materializer сверяет шаблоны с их сохранёнными экземплярами.
type Materializer struct {
	HorizonMonths int
}

func NewMaterializer(horizonMonths int) Materializer {
	if horizonMonths < 1 {
		horizonMonths = DefaultHorizonMonths
	}
	return Materializer{HorizonMonths: horizonMonths}
}

// Plan считает разницу для одного шаблона на дату today. Хранилище не
// трогает; повторный Plan после применения даёт пустой план.
func (m Materializer) Plan(t Template, existing []Instance, today calendar.Date) (Plan, error) {
	horizonEnd := HorizonEnd(today, m.HorizonMonths)
	plan := Plan{
		TemplateID:      t.ID,
		HorizonEnd:      horizonEnd,
		OccurrenceCount: t.OccurrenceCount,
	}

	sorted := make([]Instance, len(existing))
	copy(sorted, existing)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].OccurrenceDate != sorted[j].OccurrenceDate {
			return sorted[i].OccurrenceDate.Before(sorted[j].OccurrenceDate)
		}
		return sorted[i].GeneratedAt.Before(sorted[j].GeneratedAt)
	})

	seen := make(map[calendar.Date]struct{}, len(sorted))
	var upcoming []Instance
	for _, inst := range sorted {
		if _, dup := seen[inst.OccurrenceDate]; dup {
			plan.ToDelete = append(plan.ToDelete, inst.ID)
			continue
		}
		seen[inst.OccurrenceDate] = struct{}{}

		if !inst.OccurrenceDate.Before(today) {
			upcoming = append(upcoming, inst)
			continue
		}
		if t.Active() && occursOn(t, inst.OccurrenceDate) && budgetLeft(t.End, plan.OccurrenceCount) {
			plan.ToRealize = append(plan.ToRealize, inst.ID)
			plan.OccurrenceCount++
			continue
		}
		plan.ToDelete = append(plan.ToDelete, inst.ID)
	}

	current := t
	current.OccurrenceCount = plan.OccurrenceCount
	desired, err := Generate(current, horizonEnd, today)
	if err != nil {
		return Plan{}, err
	}
	want := make(map[calendar.Date]struct{}, len(desired))
	for _, d := range desired {
		want[d] = struct{}{}
	}

	snapshot := t.Snapshot()
	have := make(map[calendar.Date]struct{}, len(upcoming))
	for _, inst := range upcoming {
		if _, ok := want[inst.OccurrenceDate]; !ok {
			plan.ToDelete = append(plan.ToDelete, inst.ID)
			continue
		}
		have[inst.OccurrenceDate] = struct{}{}
		if !inst.Snapshot.Equal(snapshot) {
			plan.ToRefresh = append(plan.ToRefresh, inst.ID)
		}
	}
	for _, d := range desired {
		if _, ok := have[d]; !ok {
			plan.ToCreate = append(plan.ToCreate, d)
		}
	}
	return plan, nil
}

// NewInstances собирает экземпляры для plan.ToCreate.
func NewInstances(t Template, dates []calendar.Date) []Instance {
	out := make([]Instance, 0, len(dates))
	for _, d := range dates {
		out = append(out, Instance{
			ID:             uuid.New(),
			TemplateID:     t.ID,
			OwnerID:        t.OwnerID,
			OccurrenceDate: d,
			Snapshot:       t.Snapshot(),
		})
	}
	return out
}

func budgetLeft(end EndCondition, count int) bool {
	bound, ok := end.(MaxOccurrences)
	return !ok || count < bound.N
}

// occursOn сообщает, является ли d непропущенным вхождением t в пределах EndDate.
func occursOn(t Template, d calendar.Date) bool {
	if d.Before(t.Anchor) {
		return false
	}
	found := false
	err := visible(t, d, func(occ calendar.Date) bool {
		found = occ == d
		return false
	})
	return err == nil && found
}
