// Package scheduler runs pipeline jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/lst-anomaly-etl/internal/observability"
	"github.com/robfig/cron/v3"
)

// Task is one scheduled unit of work. The context is cancelled when the
// run exceeds the scheduler timeout or the scheduler stops.
type Task func(ctx context.Context) error

// Scheduler wraps a cron runner. Overlapping runs of the same job are
// skipped.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	jobs map[string]cron.EntryID
}

// New creates a stopped scheduler. Specs use the standard five-field cron
// syntax and are evaluated in UTC.
func New(timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(map[string]cron.EntryID),
	}
}

// Add registers a named task. Names must be unique.
func (s *Scheduler) Add(name, spec string, task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already scheduled", name)
	}
	id, err := s.cron.AddFunc(spec, s.wrap(name, task))
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", name, err)
	}
	s.jobs[name] = id
	s.logger.Info("job scheduled", "job", name, "schedule", spec)
	return nil
}

// Next returns the next activation of a job, or false if it is unknown or
// the scheduler has not started.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	next := s.cron.Entry(id).Next
	return next, !next.IsZero()
}

// RunNow runs a registered-style task immediately on the caller's goroutine
// with the scheduler's timeout.
func (s *Scheduler) RunNow(name string, task Task) error {
	return s.run(name, task)
}

func (s *Scheduler) wrap(name string, task Task) func() {
	return func() {
		if err := s.run(name, task); err != nil {
			s.logger.Error("scheduled job failed", "job", name, "error", err)
		}
	}
}

func (s *Scheduler) run(name string, task Task) error {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	err := task(ctx)
	s.logger.Debug("scheduled job finished", "job", name, "duration", time.Since(start), "ok", err == nil)
	return err
}

// Start begins firing jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.metrics.SchedulerAlive.Set(1)
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop cancels running jobs and waits for them to return, or for ctx to
// expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	s.metrics.SchedulerAlive.Set(0)
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
