package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Тип события аудита.
type EventType string

const (
	EventTypeTemplateCreated      EventType = "template_created"
	EventTypeTemplateUpdated      EventType = "template_updated"
	EventTypeTemplatePaused       EventType = "template_paused"
	EventTypeTemplateResumed      EventType = "template_resumed"
	EventTypeTemplateDeleted      EventType = "template_deleted"
	EventTypeSkipDatesAdded       EventType = "skip_dates_added"
	EventTypeSkipDatesRemoved     EventType = "skip_dates_removed"
	EventTypeInstanceDeleted      EventType = "instance_deleted"
	EventTypeTemplateMaterialized EventType = "template_materialized"
)

// events: события аудита. Ссылки на шаблон не являются внешним ключом:
// история переживает удаление шаблона.
type Event struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	EventType EventType `gorm:"type:varchar(64);not null;index"`

	CreatedAt time.Time `gorm:"not null;index"`

	OwnerID    *uuid.UUID `gorm:"type:uuid;index"`
	TemplateID *uuid.UUID `gorm:"type:uuid;index"`
	InstanceID *uuid.UUID `gorm:"type:uuid"`

	Details datatypes.JSON `gorm:"type:jsonb"`
}
