package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/recurring-ledger/internal/calendar"
	"github.com/Leganyst/recurring-ledger/internal/model"
	"github.com/Leganyst/recurring-ledger/internal/recurring"
)

// Store: контракт хранилища движка повторяющихся транзакций.
type Store interface {
	// Шаблоны.
	GetTemplate(ctx context.Context, id uuid.UUID) (recurring.Template, error)
	ListActiveTemplates(ctx context.Context) ([]recurring.Template, error)
	ListTemplatesByOwner(ctx context.Context, ownerID uuid.UUID, includePaused bool) ([]recurring.Template, error)
	// UpsertTemplate сохраняет шаблон вместе с его skip-датами.
	UpsertTemplate(ctx context.Context, t recurring.Template) error
	// DeleteTemplate удаляет шаблон с его skip-датами и экземплярами.
	DeleteTemplate(ctx context.Context, id uuid.UUID) error

	// Предстоящие экземпляры.
	ListInstances(ctx context.Context, templateID uuid.UUID) ([]recurring.Instance, error)
	GetInstance(ctx context.Context, id uuid.UUID) (recurring.Instance, error)
	// UpsertInstanceIfAbsent вставляет строку, если пары (template_id,
	// occurrence_date) ещё нет, и сообщает, была ли вставка.
	UpsertInstanceIfAbsent(ctx context.Context, inst recurring.Instance) (bool, error)
	DeleteInstances(ctx context.Context, ids []uuid.UUID) error
	DeleteInstance(ctx context.Context, id uuid.UUID) error
	UpdateInstanceSnapshot(ctx context.Context, ids []uuid.UUID, snapshot recurring.Snapshot) error
	ListUpcomingByOwner(
		ctx context.Context,
		ownerID uuid.UUID,
		start, end calendar.Date,
		limit, offset int,
	) ([]recurring.Instance, int64, error)

	// Аудит.
	AppendEvent(ctx context.Context, event *model.Event) error
	ListEvents(ctx context.Context, templateID uuid.UUID, limit int) ([]model.Event, error)

	// Transaction выполняет fn на хранилище внутри одной транзакции БД.
	Transaction(ctx context.Context, fn func(Store) error) error
}

// Реализация на GORM.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

var _ Store = (*GormStore)(nil)

func (r *GormStore) Transaction(ctx context.Context, fn func(Store) error) error {
	var fnErr error
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fnErr = fn(&GormStore{db: tx})
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	return wrap("transaction", err)
}

// wrap переводит ошибки драйвера в ошибки движка.
func wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, recurring.ErrNotFound)
	default:
		return &recurring.StoreError{Op: op, Err: err}
	}
}

func notFound(what string, id uuid.UUID) error {
	return fmt.Errorf("%s %s: %w", what, id, recurring.ErrNotFound)
}

// DB отдаёт исходное соединение для health-проверок.
func (r *GormStore) DB() *gorm.DB {
	return r.db
}

// Ping проверяет доступность БД.
func (r *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return wrap("ping", err)
	}
	return wrap("ping", sqlDB.PingContext(ctx))
}
