package recurring

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"

	"github.com/Leganyst/recurring-ledger/internal/calendar"
)

// TemplateSpec: входные данные для создания шаблона.
type TemplateSpec struct {
	OwnerID     uuid.UUID
	Type        TransactionType
	Amount      decimal.Decimal
	Description string
	CategoryRef string
	Anchor      calendar.Date
	Schedule    calendar.Schedule
	End         EndCondition
	SkipDates   []calendar.Date
}

// NewTemplate собирает из spec проверенный активный шаблон.
func NewTemplate(spec TemplateSpec, now time.Time) (Template, error) {
	if spec.OwnerID == uuid.Nil {
		return Template{}, invalid("owner_id", "is required")
	}
	t := Template{
		ID:          uuid.New(),
		OwnerID:     spec.OwnerID,
		Type:        spec.Type,
		Amount:      spec.Amount,
		Description: spec.Description,
		CategoryRef: spec.CategoryRef,
		Anchor:      spec.Anchor,
		Schedule:    spec.Schedule,
		End:         spec.End,
		SkipDates:   calendar.NewDateSet(spec.SkipDates...),
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return Template{}, err
	}
	return t, nil
}

// TemplatePatch хранит изменяемые поля; пустые опции оставляют значение как есть.
type TemplatePatch struct {
	Type        mo.Option[TransactionType]
	Amount      mo.Option[decimal.Decimal]
	Description mo.Option[string]
	CategoryRef mo.Option[string]
	Anchor      mo.Option[calendar.Date]
	Schedule    mo.Option[calendar.Schedule]
	End         mo.Option[EndCondition]
}

func (p TemplatePatch) Empty() bool {
	return p.Type.IsAbsent() && p.Amount.IsAbsent() && p.Description.IsAbsent() &&
		p.CategoryRef.IsAbsent() && p.Anchor.IsAbsent() && p.Schedule.IsAbsent() &&
		p.End.IsAbsent()
}

// Apply возвращает проверенную копию t с применённым патчем и имена
// реально изменившихся полей.
func (p TemplatePatch) Apply(t Template, now time.Time) (Template, []string, error) {
	out := t.Clone()
	var changed []string

	if v, ok := p.Type.Get(); ok && v != out.Type {
		out.Type = v
		changed = append(changed, "type")
	}
	if v, ok := p.Amount.Get(); ok && !v.Equal(out.Amount) {
		out.Amount = v
		changed = append(changed, "amount")
	}
	if v, ok := p.Description.Get(); ok && v != out.Description {
		out.Description = v
		changed = append(changed, "description")
	}
	if v, ok := p.CategoryRef.Get(); ok && v != out.CategoryRef {
		out.CategoryRef = v
		changed = append(changed, "category_ref")
	}
	if v, ok := p.Anchor.Get(); ok && v != out.Anchor {
		out.Anchor = v
		changed = append(changed, "anchor")
	}
	if v, ok := p.Schedule.Get(); ok && v != out.Schedule {
		out.Schedule = v
		changed = append(changed, "schedule")
	}
	if v, ok := p.End.Get(); ok && v != out.End {
		out.End = v
		changed = append(changed, "end_condition")
	}

	out.Normalize()
	if err := out.Validate(); err != nil {
		return Template{}, nil, err
	}
	if len(changed) > 0 {
		out.UpdatedAt = now
	}
	return out, changed, nil
}
