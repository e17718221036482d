package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/Leganyst/recurring-ledger/internal/calendar"
	"github.com/Leganyst/recurring-ledger/internal/model"
	"github.com/Leganyst/recurring-ledger/internal/recurring"
	"github.com/Leganyst/recurring-ledger/internal/repository"
)

// DeletePolicy определяет судьбу даты экземпляра, удалённого напрямую.
type DeletePolicy string

const (
	// DeletePolicySkip добавляет дату в skip-даты шаблона.
	DeletePolicySkip DeletePolicy = "skip"
	// DeletePolicyRegenerate оставляет шаблон как есть; следующая
	// материализация может создать экземпляр заново.
	DeletePolicyRegenerate DeletePolicy = "regenerate"
)

const (
	defaultBatchWorkers = 4
	maxPreviewCount     = 100
	maxEventsListed     = 200
)

type Options struct {
	HorizonMonths int
	Location      *time.Location
	BatchWorkers  int
	DeletePolicy  DeletePolicy
	// Now: часы; по умолчанию time.Now.
	Now func() time.Time
}

// MaterializeResult: итог применения одного плана.
type MaterializeResult struct {
	TemplateID uuid.UUID     `json:"template_id"`
	HorizonEnd calendar.Date `json:"horizon_end"`
	Created    int           `json:"created"`
	Deleted    int           `json:"deleted"`
	Refreshed  int           `json:"refreshed"`
	Realized   int           `json:"realized"`
}

// BatchResult: итог прогона по набору активных шаблонов.
type BatchResult struct {
	Processed int           `json:"processed"`
	Created   int           `json:"created"`
	Deleted   int           `json:"deleted"`
	Refreshed int           `json:"refreshed"`
	Realized  int           `json:"realized"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration_ns"`
}

// BulkItem: результат одного шаблона при пакетном создании.
type BulkItem struct {
	Index    int
	Template recurring.Template
	Err      error
}

// RecurringService управляет жизненным циклом шаблонов и держит предстоящие
// экземпляры в согласии с каждым изменением.
type RecurringService struct {
	store        repository.Store
	materializer recurring.Materializer
	loc          *time.Location
	workers      int
	deletePolicy DeletePolicy
	now          func() time.Time
	log          logrus.FieldLogger
	locks        *templateLocks
}

func NewRecurringService(store repository.Store, log logrus.FieldLogger, opts Options) *RecurringService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.BatchWorkers <= 0 {
		opts.BatchWorkers = defaultBatchWorkers
	}
	if opts.DeletePolicy == "" {
		opts.DeletePolicy = DeletePolicyRegenerate
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RecurringService{
		store:        store,
		materializer: recurring.NewMaterializer(opts.HorizonMonths),
		loc:          opts.Location,
		workers:      opts.BatchWorkers,
		deletePolicy: opts.DeletePolicy,
		now:          opts.Now,
		log:          log,
		locks:        newTemplateLocks(),
	}
}

// Now: часы сервиса.
func (s *RecurringService) Now() time.Time {
	return s.now()
}

// Today: текущая дата в календарной зоне движка.
func (s *RecurringService) Today() calendar.Date {
	return calendar.DateOf(s.now().In(s.loc))
}

func (s *RecurringService) HorizonEnd() calendar.Date {
	return recurring.HorizonEnd(s.Today(), s.materializer.HorizonMonths)
}

func (s *RecurringService) GetTemplate(ctx context.Context, id uuid.UUID) (recurring.Template, error) {
	return s.store.GetTemplate(ctx, id)
}

// Authorize возвращает ErrNotFound, если шаблон не принадлежит ownerID.
func (s *RecurringService) Authorize(ctx context.Context, ownerID, templateID uuid.UUID) error {
	t, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		return err
	}
	if t.OwnerID != ownerID {
		return fmt.Errorf("template %s: %w", templateID, recurring.ErrNotFound)
	}
	return nil
}

func (s *RecurringService) GetInstance(ctx context.Context, id uuid.UUID) (recurring.Instance, error) {
	return s.store.GetInstance(ctx, id)
}

func (s *RecurringService) ListTemplates(ctx context.Context, ownerID uuid.UUID, includePaused bool) ([]recurring.Template, error) {
	return s.store.ListTemplatesByOwner(ctx, ownerID, includePaused)
}

func (s *RecurringService) CreateTemplate(ctx context.Context, spec recurring.TemplateSpec) (recurring.Template, error) {
	t, err := recurring.NewTemplate(spec, s.now().UTC())
	if err != nil {
		return recurring.Template{}, err
	}

	unlock := s.locks.Lock(t.ID)
	defer unlock()

	var res MaterializeResult
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.UpsertTemplate(ctx, t); err != nil {
			return err
		}
		if err := s.record(ctx, tx, model.EventTypeTemplateCreated, t, nil, map[string]any{
			"schedule": string(t.Schedule.IntervalType()),
			"anchor":   t.Anchor,
		}); err != nil {
			return err
		}
		t, res, err = s.materialize(ctx, tx, t)
		return err
	})
	if err != nil {
		return recurring.Template{}, err
	}

	s.logger(t).WithField("created", res.Created).Info("template created")
	return t, nil
}

// BulkCreateTemplates создаёт шаблоны независимо; ошибка одного не
// откатывает остальные.
func (s *RecurringService) BulkCreateTemplates(ctx context.Context, specs []recurring.TemplateSpec) []BulkItem {
	out := make([]BulkItem, 0, len(specs))
	for i, spec := range specs {
		t, err := s.CreateTemplate(ctx, spec)
		out = append(out, BulkItem{Index: i, Template: t, Err: err})
	}
	return out
}

func (s *RecurringService) UpdateTemplate(ctx context.Context, id uuid.UUID, patch recurring.TemplatePatch) (recurring.Template, error) {
	return s.mutate(ctx, id, func(t recurring.Template) (recurring.Template, model.EventType, map[string]any, error) {
		updated, changed, err := patch.Apply(t, s.now().UTC())
		if err != nil {
			return t, "", nil, err
		}
		if len(changed) == 0 {
			return updated, "", nil, nil
		}
		return updated, model.EventTypeTemplateUpdated, map[string]any{"changed": changed}, nil
	})
}

func (s *RecurringService) PauseTemplate(ctx context.Context, id uuid.UUID) (recurring.Template, error) {
	return s.setStatus(ctx, id, recurring.StatusPaused, model.EventTypeTemplatePaused)
}

func (s *RecurringService) ResumeTemplate(ctx context.Context, id uuid.UUID) (recurring.Template, error) {
	return s.setStatus(ctx, id, recurring.StatusActive, model.EventTypeTemplateResumed)
}

func (s *RecurringService) setStatus(ctx context.Context, id uuid.UUID, status recurring.Status, et model.EventType) (recurring.Template, error) {
	return s.mutate(ctx, id, func(t recurring.Template) (recurring.Template, model.EventType, map[string]any, error) {
		if t.Status == status {
			return t, "", nil, nil
		}
		t.Status = status
		t.UpdatedAt = s.now().UTC()
		return t, et, nil, nil
	})
}

func (s *RecurringService) AddSkipDates(ctx context.Context, id uuid.UUID, dates []calendar.Date) (recurring.Template, error) {
	if err := validateDates(dates); err != nil {
		return recurring.Template{}, err
	}
	return s.mutate(ctx, id, func(t recurring.Template) (recurring.Template, model.EventType, map[string]any, error) {
		var added []calendar.Date
		for _, d := range dates {
			if !t.SkipDates.Contains(d) {
				t.SkipDates.Add(d)
				added = append(added, d)
			}
		}
		if len(added) == 0 {
			return t, "", nil, nil
		}
		t.UpdatedAt = s.now().UTC()
		return t, model.EventTypeSkipDatesAdded, map[string]any{"dates": added}, nil
	})
}

func (s *RecurringService) RemoveSkipDates(ctx context.Context, id uuid.UUID, dates []calendar.Date) (recurring.Template, error) {
	if err := validateDates(dates); err != nil {
		return recurring.Template{}, err
	}
	return s.mutate(ctx, id, func(t recurring.Template) (recurring.Template, model.EventType, map[string]any, error) {
		var removed []calendar.Date
		for _, d := range dates {
			if t.SkipDates.Contains(d) {
				t.SkipDates.Remove(d)
				removed = append(removed, d)
			}
		}
		if len(removed) == 0 {
			return t, "", nil, nil
		}
		t.UpdatedAt = s.now().UTC()
		return t, model.EventTypeSkipDatesRemoved, map[string]any{"dates": removed}, nil
	})
}

func validateDates(dates []calendar.Date) error {
	if len(dates) == 0 {
		return &recurring.ValidationError{Field: "dates", Reason: "must not be empty"}
	}
	for _, d := range dates {
		if d.IsZero() {
			return &recurring.ValidationError{Field: "dates", Reason: "contains an empty date"}
		}
	}
	return nil
}

// mutate под блокировкой шаблона загружает его, применяет change, сохраняет
// и перематериализует в одной транзакции. Пустой тип события значит, что
// изменений не было; материализация всё равно выполняется.
func (s *RecurringService) mutate(
	ctx context.Context,
	id uuid.UUID,
	change func(recurring.Template) (recurring.Template, model.EventType, map[string]any, error),
) (recurring.Template, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var (
		out recurring.Template
		res MaterializeResult
		et  model.EventType
	)
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		current, err := tx.GetTemplate(ctx, id)
		if err != nil {
			return err
		}
		next, eventType, details, err := change(current.Clone())
		if err != nil {
			return err
		}
		et = eventType
		if eventType != "" {
			if err := tx.UpsertTemplate(ctx, next); err != nil {
				return err
			}
			if err := s.record(ctx, tx, eventType, next, nil, details); err != nil {
				return err
			}
		}
		out, res, err = s.materialize(ctx, tx, next)
		return err
	})
	if err != nil {
		return recurring.Template{}, err
	}

	if et != "" {
		s.logger(out).WithFields(logrus.Fields{
			"event":     et,
			"created":   res.Created,
			"deleted":   res.Deleted,
			"refreshed": res.Refreshed,
		}).Info("template changed")
	}
	return out, nil
}

// DeleteTemplate удаляет шаблон и все его предстоящие экземпляры.
func (s *RecurringService) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	var t recurring.Template
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		t, err = tx.GetTemplate(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteTemplate(ctx, id); err != nil {
			return err
		}
		return s.record(ctx, tx, model.EventTypeTemplateDeleted, t, nil, nil)
	})
	if err != nil {
		return err
	}
	s.logger(t).Info("template deleted")
	return nil
}

// DeleteInstance удаляет один предстоящий экземпляр по запросу пользователя.
// По умолчанию шаблон не меняется и следующий прогон может вернуть дату.
// При DeletePolicySkip дата попадает в skip-даты шаблона.
func (s *RecurringService) DeleteInstance(ctx context.Context, id uuid.UUID) error {
	inst, err := s.store.GetInstance(ctx, id)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(inst.TemplateID)
	defer unlock()

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.DeleteInstance(ctx, id); err != nil {
			return err
		}
		t, err := tx.GetTemplate(ctx, inst.TemplateID)
		if err != nil {
			return err
		}
		if s.deletePolicy == DeletePolicySkip && !t.SkipDates.Contains(inst.OccurrenceDate) {
			t = t.Clone()
			t.SkipDates.Add(inst.OccurrenceDate)
			t.UpdatedAt = s.now().UTC()
			if err := tx.UpsertTemplate(ctx, t); err != nil {
				return err
			}
		}
		return s.record(ctx, tx, model.EventTypeInstanceDeleted, t, &id, map[string]any{
			"date":   inst.OccurrenceDate,
			"policy": string(s.deletePolicy),
		})
	})
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"template_id": inst.TemplateID,
		"instance_id": id,
		"date":        inst.OccurrenceDate.String(),
	}).Info("upcoming instance deleted")
	return nil
}

// Rematerialize сверяет один шаблон с текущим горизонтом. Повторный вызов
// безопасен.
func (s *RecurringService) Rematerialize(ctx context.Context, id uuid.UUID) (MaterializeResult, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var res MaterializeResult
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		t, err := tx.GetTemplate(ctx, id)
		if err != nil {
			return err
		}
		_, res, err = s.materialize(ctx, tx, t)
		return err
	})
	return res, err
}

// RematerializeAll сдвигает горизонт всех активных шаблонов.
func (s *RecurringService) RematerializeAll(ctx context.Context) (BatchResult, error) {
	start := s.now()
	templates, err := s.store.ListActiveTemplates(ctx)
	if err != nil {
		return BatchResult{}, err
	}
	return s.rematerializeBatch(ctx, templates, start, logrus.Fields{"scope": "all"})
}

// RematerializeOwner сдвигает горизонт только активных шаблонов владельца.
func (s *RecurringService) RematerializeOwner(ctx context.Context, ownerID uuid.UUID) (BatchResult, error) {
	start := s.now()
	templates, err := s.store.ListTemplatesByOwner(ctx, ownerID, false)
	if err != nil {
		return BatchResult{}, err
	}
	return s.rematerializeBatch(ctx, templates, start, logrus.Fields{"scope": "owner", "owner_id": ownerID})
}

// rematerializeBatch обрабатывает шаблоны параллельно; ошибки считаются
// и возвращаются склеенными.
func (s *RecurringService) rematerializeBatch(
	ctx context.Context,
	templates []recurring.Template,
	start time.Time,
	scope logrus.Fields,
) (BatchResult, error) {
	var (
		mu     sync.Mutex
		result BatchResult
		errs   []error
		g      errgroup.Group
	)
	g.SetLimit(s.workers)

	for _, t := range templates {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := s.Rematerialize(ctx, t.ID)

			mu.Lock()
			defer mu.Unlock()
			result.Processed++
			if err != nil {
				result.Failed++
				errs = append(errs, fmt.Errorf("template %s: %w", t.ID, err))
				s.logger(t).WithError(err).Warn("materialization failed")
				return nil
			}
			result.Created += res.Created
			result.Deleted += res.Deleted
			result.Refreshed += res.Refreshed
			result.Realized += res.Realized
			return nil
		})
	}
	_ = g.Wait()
	result.Duration = s.now().Sub(start)

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}

	s.log.WithFields(scope).WithFields(logrus.Fields{
		"processed": result.Processed,
		"created":   result.Created,
		"deleted":   result.Deleted,
		"refreshed": result.Refreshed,
		"realized":  result.Realized,
		"failed":    result.Failed,
		"duration":  result.Duration.String(),
	}).Info("recurring generation finished")

	return result, errors.Join(errs...)
}

// Preview отдаёт следующие n дат начиная с сегодня, без учёта горизонта.
// Прошедшие экземпляры засчитываются так же, как при материализации.
func (s *RecurringService) Preview(ctx context.Context, id uuid.UUID, n int) ([]calendar.Date, error) {
	if n < 1 || n > maxPreviewCount {
		return nil, &recurring.ValidationError{Field: "count", Reason: fmt.Sprintf("must be between 1 and %d", maxPreviewCount)}
	}
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.ListInstances(ctx, id)
	if err != nil {
		return nil, err
	}
	today := s.Today()
	plan, err := s.materializer.Plan(t, existing, today)
	if err != nil {
		return nil, err
	}
	t.OccurrenceCount = plan.OccurrenceCount
	return recurring.Preview(t, today, n)
}

// ListUpcoming возвращает предстоящие экземпляры владельца в [start, end].
// Пустые границы заменяются на сегодня и конец горизонта.
func (s *RecurringService) ListUpcoming(
	ctx context.Context,
	ownerID uuid.UUID,
	start, end calendar.Date,
	page, pageSize int,
) (calendar.Page[recurring.Instance], error) {
	if start.IsZero() {
		start = s.Today()
	}
	if end.IsZero() {
		end = s.HorizonEnd()
	}
	if end.Before(start) {
		return calendar.Page[recurring.Instance]{}, &recurring.ValidationError{Field: "range", Reason: "end is before start"}
	}

	page, pageSize, offset := calendar.PageBounds(page, pageSize)
	items, total, err := s.store.ListUpcomingByOwner(ctx, ownerID, start, end, pageSize, offset)
	if err != nil {
		return calendar.Page[recurring.Instance]{}, err
	}
	return calendar.NewPage(items, page, pageSize, int(total)), nil
}

func (s *RecurringService) ListEvents(ctx context.Context, templateID uuid.UUID) ([]model.Event, error) {
	return s.store.ListEvents(ctx, templateID, maxEventsListed)
}

// materialize применяет план для t через tx и возвращает t с обновлённым
// счётчиком вхождений.
func (s *RecurringService) materialize(ctx context.Context, tx repository.Store, t recurring.Template) (recurring.Template, MaterializeResult, error) {
	existing, err := tx.ListInstances(ctx, t.ID)
	if err != nil {
		return t, MaterializeResult{}, err
	}
	plan, err := s.materializer.Plan(t, existing, s.Today())
	if err != nil {
		return t, MaterializeResult{}, err
	}

	res := MaterializeResult{
		TemplateID: t.ID,
		HorizonEnd: plan.HorizonEnd,
		Deleted:    len(plan.ToDelete),
		Refreshed:  len(plan.ToRefresh),
		Realized:   len(plan.ToRealize),
	}
	if plan.Empty() {
		return t, res, nil
	}

	gone := make([]uuid.UUID, 0, len(plan.ToDelete)+len(plan.ToRealize))
	gone = append(gone, plan.ToDelete...)
	gone = append(gone, plan.ToRealize...)
	if err := tx.DeleteInstances(ctx, gone); err != nil {
		return t, MaterializeResult{}, err
	}
	if err := tx.UpdateInstanceSnapshot(ctx, plan.ToRefresh, t.Snapshot()); err != nil {
		return t, MaterializeResult{}, err
	}

	now := s.now().UTC()
	for _, inst := range recurring.NewInstances(t, plan.ToCreate) {
		inst.GeneratedAt = now
		created, err := tx.UpsertInstanceIfAbsent(ctx, inst)
		if err != nil {
			return t, MaterializeResult{}, err
		}
		if created {
			res.Created++
		}
	}

	if plan.OccurrenceCount != t.OccurrenceCount {
		t.OccurrenceCount = plan.OccurrenceCount
		t.UpdatedAt = now
		if err := tx.UpsertTemplate(ctx, t); err != nil {
			return t, MaterializeResult{}, err
		}
	}

	err = s.record(ctx, tx, model.EventTypeTemplateMaterialized, t, nil, map[string]any{
		"created":     res.Created,
		"deleted":     res.Deleted,
		"refreshed":   res.Refreshed,
		"realized":    res.Realized,
		"horizon_end": plan.HorizonEnd,
	})
	if err != nil {
		return t, MaterializeResult{}, err
	}
	return t, res, nil
}

func (s *RecurringService) record(
	ctx context.Context,
	tx repository.Store,
	et model.EventType,
	t recurring.Template,
	instanceID *uuid.UUID,
	details map[string]any,
) error {
	var payload datatypes.JSON
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("encode %s details: %w", et, err)
		}
		payload = raw
	}
	ownerID, templateID := t.OwnerID, t.ID
	return tx.AppendEvent(ctx, &model.Event{
		EventType:  et,
		CreatedAt:  s.now().UTC(),
		OwnerID:    &ownerID,
		TemplateID: &templateID,
		InstanceID: instanceID,
		Details:    payload,
	})
}

func (s *RecurringService) logger(t recurring.Template) logrus.FieldLogger {
	return s.log.WithFields(logrus.Fields{
		"template_id": t.ID,
		"owner_id":    t.OwnerID,
	})
}
