package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Leganyst/recurring-ledger/internal/calendar"
	"github.com/Leganyst/recurring-ledger/internal/model"
	"github.com/Leganyst/recurring-ledger/internal/recurring"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Каждое подключение к :memory: открывает отдельную базу.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, model.AutoMigrate(db))
	return NewGormStore(db)
}

func sampleTemplate() recurring.Template {
	return recurring.Template{
		ID:          uuid.New(),
		OwnerID:     uuid.New(),
		Type:        recurring.TypeExpense,
		Amount:      decimal.RequireFromString("1200.50"),
		Description: "Rent",
		CategoryRef: "housing",
		Anchor:      calendar.MustParseDate("2024-01-31"),
		Schedule:    calendar.Monthly{Count: 1, DayOfMonth: mo.Some(31)},
		End:         recurring.MaxOccurrences{N: 12},
		SkipDates:   calendar.NewDateSet(calendar.MustParseDate("2024-03-31")),
		Status:      recurring.StatusActive,
	}
}

func TestGormStore_TemplateRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	tpl := sampleTemplate()

	require.NoError(t, store.UpsertTemplate(ctx, tpl))

	got, err := store.GetTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, tpl.OwnerID, got.OwnerID)
	assert.True(t, tpl.Amount.Equal(got.Amount), "amount %s", got.Amount)
	assert.Equal(t, tpl.Anchor, got.Anchor)
	assert.Equal(t, tpl.Schedule, got.Schedule)
	assert.Equal(t, tpl.End, got.End)
	assert.Equal(t, tpl.SkipDates, got.SkipDates)
	assert.False(t, got.CreatedAt.IsZero())

	// Заменяем skip-даты и условие окончания.
	got.SkipDates = calendar.NewDateSet(calendar.MustParseDate("2024-04-30"), calendar.MustParseDate("2024-05-31"))
	got.End = recurring.EndDate{Date: calendar.MustParseDate("2024-12-31")}
	got.Status = recurring.StatusPaused
	got.OccurrenceCount = 3
	require.NoError(t, store.UpsertTemplate(ctx, got))

	again, err := store.GetTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, got.SkipDates, again.SkipDates)
	assert.Equal(t, got.End, again.End)
	assert.Equal(t, recurring.StatusPaused, again.Status)
	assert.Equal(t, 3, again.OccurrenceCount)
	assert.WithinDuration(t, got.CreatedAt, again.CreatedAt, 0)
}

func TestGormStore_GetTemplateNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetTemplate(context.Background(), uuid.New())
	assert.ErrorIs(t, err, recurring.ErrNotFound)

	err = store.DeleteTemplate(context.Background(), uuid.New())
	assert.ErrorIs(t, err, recurring.ErrNotFound)
}

func TestGormStore_ListTemplates(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	active := sampleTemplate()
	paused := sampleTemplate()
	paused.OwnerID = active.OwnerID
	paused.Status = recurring.StatusPaused
	other := sampleTemplate()
	for _, tpl := range []recurring.Template{active, paused, other} {
		require.NoError(t, store.UpsertTemplate(ctx, tpl))
	}

	all, err := store.ListActiveTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := store.ListTemplatesByOwner(ctx, active.OwnerID, false)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, active.ID, mine[0].ID)

	mine, err = store.ListTemplatesByOwner(ctx, active.OwnerID, true)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestGormStore_InsertIfAbsent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	tpl := sampleTemplate()
	require.NoError(t, store.UpsertTemplate(ctx, tpl))

	inst := recurring.NewInstances(tpl, []calendar.Date{calendar.MustParseDate("2024-02-29")})[0]
	created, err := store.UpsertInstanceIfAbsent(ctx, inst)
	require.NoError(t, err)
	assert.True(t, created)

	dup := recurring.NewInstances(tpl, []calendar.Date{calendar.MustParseDate("2024-02-29")})[0]
	created, err = store.UpsertInstanceIfAbsent(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)

	list, err := store.ListInstances(ctx, tpl.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, inst.ID, list[0].ID)
	assert.Equal(t, calendar.MustParseDate("2024-02-29"), list[0].OccurrenceDate)
	assert.True(t, list[0].Amount.Equal(tpl.Amount))
}

func TestGormStore_InstanceMutations(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	tpl := sampleTemplate()
	require.NoError(t, store.UpsertTemplate(ctx, tpl))

	dates := []calendar.Date{
		calendar.MustParseDate("2024-02-29"),
		calendar.MustParseDate("2024-04-30"),
		calendar.MustParseDate("2024-05-31"),
	}
	instances := recurring.NewInstances(tpl, dates)
	for _, inst := range instances {
		_, err := store.UpsertInstanceIfAbsent(ctx, inst)
		require.NoError(t, err)
	}

	snapshot := tpl.Snapshot()
	snapshot.Amount = decimal.RequireFromString("1300")
	snapshot.Description = "Rent (new lease)"
	require.NoError(t, store.UpdateInstanceSnapshot(ctx, []uuid.UUID{instances[0].ID, instances[1].ID}, snapshot))

	got, err := store.GetInstance(ctx, instances[1].ID)
	require.NoError(t, err)
	assert.True(t, got.Snapshot.Equal(snapshot))

	require.NoError(t, store.DeleteInstances(ctx, []uuid.UUID{instances[0].ID}))
	require.NoError(t, store.DeleteInstance(ctx, instances[2].ID))
	assert.ErrorIs(t, store.DeleteInstance(ctx, instances[2].ID), recurring.ErrNotFound)

	_, err = store.GetInstance(ctx, instances[0].ID)
	assert.ErrorIs(t, err, recurring.ErrNotFound)

	list, err := store.ListInstances(ctx, tpl.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, instances[1].ID, list[0].ID)
}

func TestGormStore_ListUpcomingByOwner(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	tpl := sampleTemplate()
	require.NoError(t, store.UpsertTemplate(ctx, tpl))

	var dates []calendar.Date
	for i := 0; i < 6; i++ {
		d, err := calendar.Next(tpl.Anchor, tpl.Schedule, i)
		require.NoError(t, err)
		dates = append(dates, d)
	}
	for _, inst := range recurring.NewInstances(tpl, dates) {
		_, err := store.UpsertInstanceIfAbsent(ctx, inst)
		require.NoError(t, err)
	}
	foreign := sampleTemplate()
	require.NoError(t, store.UpsertTemplate(ctx, foreign))
	_, err := store.UpsertInstanceIfAbsent(ctx, recurring.NewInstances(foreign, dates[:1])[0])
	require.NoError(t, err)

	got, total, err := store.ListUpcomingByOwner(ctx, tpl.OwnerID,
		calendar.MustParseDate("2024-02-29"), calendar.MustParseDate("2024-05-31"), 2, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	require.Len(t, got, 2)
	assert.Equal(t, calendar.MustParseDate("2024-03-31"), got[0].OccurrenceDate)
	assert.Equal(t, calendar.MustParseDate("2024-04-30"), got[1].OccurrenceDate)
}

func TestGormStore_DeleteTemplateCascades(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	tpl := sampleTemplate()
	require.NoError(t, store.UpsertTemplate(ctx, tpl))
	_, err := store.UpsertInstanceIfAbsent(ctx, recurring.NewInstances(tpl, []calendar.Date{tpl.Anchor})[0])
	require.NoError(t, err)

	require.NoError(t, store.DeleteTemplate(ctx, tpl.ID))

	list, err := store.ListInstances(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	var skipRows int64
	require.NoError(t, store.DB().Model(&model.TemplateSkipDate{}).Where("template_id = ?", tpl.ID).Count(&skipRows).Error)
	assert.Zero(t, skipRows)
}

func TestGormStore_TransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	tpl := sampleTemplate()
	boom := errors.New("boom")

	err := store.Transaction(ctx, func(tx Store) error {
		if err := tx.UpsertTemplate(ctx, tpl); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.GetTemplate(ctx, tpl.ID)
	assert.ErrorIs(t, err, recurring.ErrNotFound)
}

func TestGormStore_Events(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	templateID := uuid.New()

	for _, et := range []model.EventType{model.EventTypeTemplateCreated, model.EventTypeTemplatePaused} {
		require.NoError(t, store.AppendEvent(ctx, &model.Event{
			EventType:  et,
			TemplateID: &templateID,
			Details:    datatypes.JSON(`{"source":"test"}`),
		}))
	}

	events, err := store.ListEvents(ctx, templateID, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.NotEqual(t, uuid.Nil, e.ID)
		assert.JSONEq(t, `{"source":"test"}`, string(e.Details))
	}
}

func TestWrapTranslatesErrors(t *testing.T) {
	assert.NoError(t, wrap("op", nil))
	assert.ErrorIs(t, wrap("op", gorm.ErrRecordNotFound), recurring.ErrNotFound)

	err := wrap("op", errors.New("disk full"))
	var storeErr *recurring.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "op", storeErr.Op)
}
