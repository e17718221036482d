package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/recurring-ledger/internal/model"
	"github.com/Leganyst/recurring-ledger/internal/recurring"
)

func (r *GormStore) GetTemplate(ctx context.Context, id uuid.UUID) (recurring.Template, error) {
	var m model.RecurringTemplate
	err := r.db.WithContext(ctx).
		Preload("SkipDates").
		First(&m, "id = ?", id).Error
	if err != nil {
		return recurring.Template{}, wrap("get template", err)
	}
	t, err := templateFromModel(m)
	if err != nil {
		return recurring.Template{}, wrap("decode template", err)
	}
	return t, nil
}

// ListActiveTemplates возвращает все активные шаблоны для пакетной материализации.
func (r *GormStore) ListActiveTemplates(ctx context.Context) ([]recurring.Template, error) {
	return r.listTemplates(ctx, "list active templates", func(q *gorm.DB) *gorm.DB {
		return q.Where("status = ?", model.TemplateStatusActive)
	})
}

func (r *GormStore) ListTemplatesByOwner(ctx context.Context, ownerID uuid.UUID, includePaused bool) ([]recurring.Template, error) {
	return r.listTemplates(ctx, "list owner templates", func(q *gorm.DB) *gorm.DB {
		q = q.Where("owner_id = ?", ownerID)
		if !includePaused {
			q = q.Where("status = ?", model.TemplateStatusActive)
		}
		return q
	})
}

func (r *GormStore) listTemplates(ctx context.Context, op string, scope func(*gorm.DB) *gorm.DB) ([]recurring.Template, error) {
	var rows []model.RecurringTemplate
	err := r.db.WithContext(ctx).
		Scopes(scope).
		Preload("SkipDates").
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrap(op, err)
	}

	out := make([]recurring.Template, 0, len(rows))
	for _, m := range rows {
		t, err := templateFromModel(m)
		if err != nil {
			return nil, wrap("decode template", err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *GormStore) UpsertTemplate(ctx context.Context, t recurring.Template) error {
	m := templateToModel(t)
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = time.Now().UTC()
	}
	skip := skipDatesToModel(t)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).
			Create(&m).Error
		if err != nil {
			return err
		}
		if err := tx.Where("template_id = ?", t.ID).Delete(&model.TemplateSkipDate{}).Error; err != nil {
			return err
		}
		if len(skip) == 0 {
			return nil
		}
		return tx.Create(&skip).Error
	})
	return wrap("upsert template", err)
}

func (r *GormStore) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("template_id = ?", id).Delete(&model.UpcomingInstance{}).Error; err != nil {
			return err
		}
		if err := tx.Where("template_id = ?", id).Delete(&model.TemplateSkipDate{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.RecurringTemplate{}, "id = ?", id)
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return wrap("delete template", err)
	}
	if deleted == 0 {
		return notFound("template", id)
	}
	return nil
}
