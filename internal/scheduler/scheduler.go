package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Spec       string
	RunOnStart bool
	Location   *time.Location
}

// Scheduler запускает задачу по cron-расписанию.
type Scheduler struct {
	cron       *cron.Cron
	job        *Job
	runOnStart bool
	log        logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(job *Job, cfg Config, log logrus.FieldLogger) (*Scheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	c := cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log))),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{cron: c, job: job, runOnStart: cfg.RunOnStart, log: log, ctx: ctx, cancel: cancel}
	if _, err := c.AddFunc(cfg.Spec, s.tick); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid cron spec %q: %w", cfg.Spec, err)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	s.log.Info("starting scheduled recurring generation")
	if _, err := s.job.Run(s.ctx); err != nil && !errors.Is(err, ErrAlreadyRunning) {
		s.log.WithError(err).Error("scheduled recurring generation failed")
	}
}

// Start запускает cron и, если настроено, сразу выполняет задачу один раз.
func (s *Scheduler) Start() {
	if s.runOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.tick()
		}()
	}
	s.cron.Start()
}

// Stop отменяет идущую задачу и ждёт её завершения. Сам cron дожидается
// запланированных запусков.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
}
