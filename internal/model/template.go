package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type TemplateStatus string

const (
	TemplateStatusActive TemplateStatus = "active"
	TemplateStatusPaused TemplateStatus = "paused"
)

// recurring_templates
type RecurringTemplate struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	OwnerID uuid.UUID `gorm:"type:uuid;not null;index"`

	Type        string          `gorm:"type:varchar(16);not null"`
	Amount      decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	Description string          `gorm:"type:varchar(255)"`
	CategoryRef string          `gorm:"type:varchar(128);index"`

	// Чистые даты без времени: datatypes.Date
	AnchorDate datatypes.Date `gorm:"type:date;not null"`

	IntervalType  string `gorm:"type:varchar(16);not null"`
	IntervalCount int    `gorm:"not null"`
	DayOfWeek     *int
	DayOfMonth    *int

	// Не более одного условия окончания.
	EndDate        *datatypes.Date `gorm:"type:date"`
	MaxOccurrences *int

	OccurrenceCount int            `gorm:"not null;default:0"`
	Status          TemplateStatus `gorm:"type:varchar(16);not null;default:'active';index"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	SkipDates []TemplateSkipDate `gorm:"foreignKey:TemplateID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Instances []UpcomingInstance `gorm:"foreignKey:TemplateID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// template_skip_dates: исключённые даты шаблона (комбинированный PK)
type TemplateSkipDate struct {
	TemplateID uuid.UUID      `gorm:"type:uuid;primaryKey"`
	SkipDate   datatypes.Date `gorm:"type:date;primaryKey"`

	CreatedAt time.Time `gorm:"not null"`
}
