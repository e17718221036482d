package recurring

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Leganyst/recurring-ledger/internal/calendar"
)

type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

type Status string

const (
	StatusActive Status = "active"
	StatusPaused Status = "paused"
)

// EndCondition ограничивает шаблон: Never, EndDate или MaxOccurrences.
type EndCondition interface {
	Kind() string
	isEndCondition()
}

type Never struct{}

// EndDate включительна: вхождение в саму Date ещё генерируется.
type EndDate struct {
	Date calendar.Date
}

// MaxOccurrences ограничивает число вхождений за всю жизнь шаблона.
type MaxOccurrences struct {
	N int
}

func (Never) Kind() string          { return "never" }
func (EndDate) Kind() string        { return "end_date" }
func (MaxOccurrences) Kind() string { return "max_occurrences" }

func (Never) isEndCondition()          {}
func (EndDate) isEndCondition()        {}
func (MaxOccurrences) isEndCondition() {}

// Template описывает повторяющуюся транзакцию.
type Template struct {
	ID              uuid.UUID
	OwnerID         uuid.UUID
	Type            TransactionType
	Amount          decimal.Decimal
	Description     string
	CategoryRef     string
	Anchor          calendar.Date
	Schedule        calendar.Schedule
	End             EndCondition
	SkipDates       calendar.DateSet
	Status          Status
	OccurrenceCount int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Snapshot: часть шаблона, копируемая в каждый экземпляр.
type Snapshot struct {
	Type        TransactionType
	Amount      decimal.Decimal
	Description string
	CategoryRef string
}

func (s Snapshot) Equal(other Snapshot) bool {
	return s.Type == other.Type &&
		s.Amount.Equal(other.Amount) &&
		s.Description == other.Description &&
		s.CategoryRef == other.CategoryRef
}

// SignedAmount отрицателен для расходов.
func (s Snapshot) SignedAmount() decimal.Decimal {
	if s.Type == TypeExpense {
		return s.Amount.Neg()
	}
	return s.Amount
}

func (t Template) Snapshot() Snapshot {
	return Snapshot{
		Type:        t.Type,
		Amount:      t.Amount,
		Description: t.Description,
		CategoryRef: t.CategoryRef,
	}
}

func (t Template) Active() bool {
	return t.Status == StatusActive
}

// Clone возвращает копию с собственным набором skip-дат.
func (t Template) Clone() Template {
	t.SkipDates = t.SkipDates.Clone()
	return t
}

// Instance: предстоящее, ещё не состоявшееся вхождение шаблона.
type Instance struct {
	ID             uuid.UUID
	TemplateID     uuid.UUID
	OwnerID        uuid.UUID
	OccurrenceDate calendar.Date
	Snapshot
	GeneratedAt time.Time
}

// MaxOccurrencesLimit ограничивает MaxOccurrences.N.
const MaxOccurrencesLimit = 10000

// Validate проверяет инварианты шаблона.
func (t Template) Validate() error {
	switch t.Type {
	case TypeIncome, TypeExpense:
	default:
		return invalid("type", "must be income or expense, got %q", t.Type)
	}
	if !t.Amount.IsPositive() {
		return invalid("amount", "must be greater than zero")
	}
	if t.Anchor.IsZero() {
		return invalid("anchor", "is required")
	}
	if t.Schedule == nil {
		return invalid("schedule", "is required")
	}
	if err := t.Schedule.Validate(); err != nil {
		return invalid("schedule", "%v", err)
	}
	switch end := t.End.(type) {
	case nil, Never:
	case EndDate:
		if end.Date.Before(t.Anchor) {
			return invalid("end_date", "%s is before anchor %s", end.Date, t.Anchor)
		}
	case MaxOccurrences:
		if end.N < 1 || end.N > MaxOccurrencesLimit {
			return invalid("max_occurrences", "must be in 1..%d, got %d", MaxOccurrencesLimit, end.N)
		}
	default:
		return invalid("end_condition", "unsupported %T", end)
	}
	switch t.Status {
	case StatusActive, StatusPaused:
	default:
		return invalid("status", "must be active or paused, got %q", t.Status)
	}
	if t.OccurrenceCount < 0 {
		return invalid("occurrence_count", "must not be negative")
	}
	if len(t.Description) > 255 {
		return invalid("description", "must be at most 255 characters")
	}
	return nil
}

// Normalize обрезает текстовые поля и заполняет очевидные дефолты.
func (t *Template) Normalize() {
	t.Type = TransactionType(strings.ToLower(strings.TrimSpace(string(t.Type))))
	t.Description = strings.TrimSpace(t.Description)
	t.CategoryRef = strings.TrimSpace(t.CategoryRef)
	if t.End == nil {
		t.End = Never{}
	}
	if t.SkipDates == nil {
		t.SkipDates = calendar.NewDateSet()
	}
	if t.Status == "" {
		t.Status = StatusActive
	}
}
