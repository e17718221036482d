package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// upcoming_instances
//
// Пара (template_id, occurrence_date) уникальна: повторная материализация
// не может создать дубль даже при гонке двух писателей.
type UpcomingInstance struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	TemplateID     uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_instance_template_date,priority:1"`
	OccurrenceDate datatypes.Date `gorm:"type:date;not null;uniqueIndex:idx_instance_template_date,priority:2;index:idx_instance_owner_date,priority:2"`
	OwnerID        uuid.UUID      `gorm:"type:uuid;not null;index:idx_instance_owner_date,priority:1"`

	// Снимок полей шаблона на момент генерации.
	Type        string          `gorm:"type:varchar(16);not null"`
	Amount      decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	Description string          `gorm:"type:varchar(255)"`
	CategoryRef string          `gorm:"type:varchar(128)"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Template *RecurringTemplate `gorm:"foreignKey:TemplateID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}
