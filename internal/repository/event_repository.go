package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/Leganyst/recurring-ledger/internal/model"
)

func (r *GormStore) AppendEvent(ctx context.Context, event *model.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	return wrap("append event", r.db.WithContext(ctx).Create(event).Error)
}

// ListEvents возвращает журнал шаблона, новые события первыми.
func (r *GormStore) ListEvents(ctx context.Context, templateID uuid.UUID, limit int) ([]model.Event, error) {
	var events []model.Event
	q := r.db.WithContext(ctx).
		Where("template_id = ?", templateID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, wrap("list events", err)
	}
	return events, nil
}
