// Package scheduler запускает периодическую генерацию по горизонту.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Leganyst/recurring-ledger/internal/recurring"
	"github.com/Leganyst/recurring-ledger/internal/service"
)

// ErrAlreadyRunning: запуск пересёкся с предыдущим.
var ErrAlreadyRunning = errors.New("generation job is already running")

// Generator: пакетная операция, которую запускает задача.
type Generator interface {
	RematerializeAll(ctx context.Context) (service.BatchResult, error)
}

type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// Job перематериализует все активные шаблоны. Сбои хранилища повторяются
// с экспоненциальной задержкой, ошибки валидации нет.
type Job struct {
	gen    Generator
	policy RetryPolicy
	log    logrus.FieldLogger
	sleep  func(ctx context.Context, d time.Duration) error

	mu sync.Mutex
}

func NewJob(gen Generator, policy RetryPolicy, log logrus.FieldLogger) *Job {
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.Backoff <= 0 {
		policy.Backoff = 500 * time.Millisecond
	}
	return &Job{gen: gen, policy: policy, log: log, sleep: sleepContext}
}

// Run выполняет одну генерацию с повторами и возвращает итог последней попытки.
func (j *Job) Run(ctx context.Context) (service.BatchResult, error) {
	if !j.mu.TryLock() {
		return service.BatchResult{}, ErrAlreadyRunning
	}
	defer j.mu.Unlock()

	delay := j.policy.Backoff
	for attempt := 0; ; attempt++ {
		res, err := j.gen.RematerializeAll(ctx)
		entry := j.log.WithFields(logrus.Fields{
			"attempt":   attempt + 1,
			"processed": res.Processed,
			"created":   res.Created,
			"deleted":   res.Deleted,
			"refreshed": res.Refreshed,
			"realized":  res.Realized,
			"failed":    res.Failed,
		})
		if err == nil {
			entry.Info("recurring generation finished")
			return res, nil
		}
		if attempt >= j.policy.MaxRetries || !recurring.IsRetryable(err) {
			entry.WithError(err).Error("recurring generation failed")
			return res, err
		}

		entry.WithError(err).WithField("retry_in", delay.String()).Warn("recurring generation failed, retrying")
		if err := j.sleep(ctx, delay); err != nil {
			return res, err
		}
		delay *= 2
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
