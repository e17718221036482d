package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/recurring-ledger/internal/calendar"
	"github.com/Leganyst/recurring-ledger/internal/model"
	"github.com/Leganyst/recurring-ledger/internal/recurring"
)

func (r *GormStore) ListInstances(ctx context.Context, templateID uuid.UUID) ([]recurring.Instance, error) {
	var rows []model.UpcomingInstance
	err := r.db.WithContext(ctx).
		Where("template_id = ?", templateID).
		Order("occurrence_date ASC, created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrap("list instances", err)
	}
	return instancesFromModel(rows), nil
}

func (r *GormStore) GetInstance(ctx context.Context, id uuid.UUID) (recurring.Instance, error) {
	var m model.UpcomingInstance
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return recurring.Instance{}, wrap("get instance", err)
	}
	return instanceFromModel(m), nil
}

func (r *GormStore) UpsertInstanceIfAbsent(ctx context.Context, inst recurring.Instance) (bool, error) {
	m := instanceToModel(inst)
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "template_id"}, {Name: "occurrence_date"}},
			DoNothing: true,
		}).
		Create(&m)
	if res.Error != nil {
		return false, wrap("insert instance", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *GormStore) DeleteInstances(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&model.UpcomingInstance{}).Error
	return wrap("delete instances", err)
}

// DeleteInstance удаляет один экземпляр по запросу пользователя.
func (r *GormStore) DeleteInstance(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&model.UpcomingInstance{}, "id = ?", id)
	if res.Error != nil {
		return wrap("delete instance", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("instance", id)
	}
	return nil
}

func (r *GormStore) UpdateInstanceSnapshot(ctx context.Context, ids []uuid.UUID, snapshot recurring.Snapshot) error {
	if len(ids) == 0 {
		return nil
	}
	update := map[string]any{
		"type":         string(snapshot.Type),
		"amount":       snapshot.Amount,
		"description":  snapshot.Description,
		"category_ref": snapshot.CategoryRef,
		"updated_at":   time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).
		Model(&model.UpcomingInstance{}).
		Where("id IN ?", ids).
		Updates(update).Error
	return wrap("refresh instances", err)
}

// ListUpcomingByOwner возвращает экземпляры владельца в диапазоне дат
// (включительно) с пагинацией.
func (r *GormStore) ListUpcomingByOwner(
	ctx context.Context,
	ownerID uuid.UUID,
	start, end calendar.Date,
	limit, offset int,
) ([]recurring.Instance, int64, error) {
	var (
		rows  []model.UpcomingInstance
		total int64
	)

	q := r.db.WithContext(ctx).
		Model(&model.UpcomingInstance{}).
		Where("owner_id = ?", ownerID).
		Where("occurrence_date >= ? AND occurrence_date <= ?", toDBDate(start), toDBDate(end))

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, wrap("count upcoming", err)
	}

	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	if err := q.Order("occurrence_date ASC, created_at ASC").Find(&rows).Error; err != nil {
		return nil, 0, wrap("list upcoming", err)
	}

	return instancesFromModel(rows), total, nil
}

func instancesFromModel(rows []model.UpcomingInstance) []recurring.Instance {
	out := make([]recurring.Instance, 0, len(rows))
	for _, m := range rows {
		out = append(out, instanceFromModel(m))
	}
	return out
}
