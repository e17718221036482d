package scheduler

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leganyst/recurring-ledger/internal/recurring"
	"github.com/Leganyst/recurring-ledger/internal/service"
)

type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	errs  []error
	block chan struct{}
}

func (g *fakeGenerator) RematerializeAll(ctx context.Context) (service.BatchResult, error) {
	g.mu.Lock()
	call := g.calls
	g.calls++
	g.mu.Unlock()

	if g.block != nil {
		select {
		case <-g.block:
		case <-ctx.Done():
			return service.BatchResult{}, ctx.Err()
		}
	}
	if call < len(g.errs) && g.errs[call] != nil {
		return service.BatchResult{Processed: 1, Failed: 1}, g.errs[call]
	}
	return service.BatchResult{Processed: 1}, nil
}

func (g *fakeGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestJob(gen Generator, retries int) (*Job, *[]time.Duration) {
	job := NewJob(gen, RetryPolicy{MaxRetries: retries, Backoff: 10 * time.Millisecond}, quietLogger())
	var waits []time.Duration
	job.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return job, &waits
}

func storeFailure() error {
	return &recurring.StoreError{Op: "list active templates", Err: errors.New("connection reset")}
}

func TestJob_RetriesStoreFailuresWithBackoff(t *testing.T) {
	gen := &fakeGenerator{errs: []error{storeFailure(), storeFailure()}}
	job, waits := newTestJob(gen, 3)

	res, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 3, gen.Calls())
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, *waits)
}

func TestJob_GivesUpAfterMaxRetries(t *testing.T) {
	gen := &fakeGenerator{errs: []error{storeFailure(), storeFailure(), storeFailure()}}
	job, waits := newTestJob(gen, 2)

	res, err := job.Run(context.Background())
	assert.True(t, recurring.IsRetryable(err))
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 3, gen.Calls())
	assert.Len(t, *waits, 2)
}

func TestJob_DoesNotRetryValidationFailures(t *testing.T) {
	gen := &fakeGenerator{errs: []error{&recurring.ValidationError{Field: "schedule", Reason: "corrupt"}}}
	job, waits := newTestJob(gen, 5)

	_, err := job.Run(context.Background())
	assert.ErrorIs(t, err, recurring.ErrValidation)
	assert.Equal(t, 1, gen.Calls())
	assert.Empty(t, *waits)
}

func TestJob_RejectsOverlappingRuns(t *testing.T) {
	gen := &fakeGenerator{block: make(chan struct{})}
	job, _ := newTestJob(gen, 0)

	done := make(chan error, 1)
	go func() {
		_, err := job.Run(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return gen.Calls() == 1 }, time.Second, time.Millisecond)

	_, err := job.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(gen.block)
	assert.NoError(t, <-done)
}

func TestSleepContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestScheduler_InvalidSpec(t *testing.T) {
	job, _ := newTestJob(&fakeGenerator{}, 0)
	_, err := New(job, Config{Spec: "not a cron"}, quietLogger())
	assert.Error(t, err)
}

func TestScheduler_RunOnStartAndStop(t *testing.T) {
	gen := &fakeGenerator{block: make(chan struct{})}
	job, _ := newTestJob(gen, 0)

	s, err := New(job, Config{Spec: "0 0 * * *", RunOnStart: true}, quietLogger())
	require.NoError(t, err)
	s.Start()
	require.Eventually(t, func() bool { return gen.Calls() == 1 }, time.Second, time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not cancel the running job")
	}
}
