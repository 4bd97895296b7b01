package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/arklim/skills-audit/internal/infra/logger"
)

// ErrUnknownJob is returned by RunNow for names that were never registered.
var ErrUnknownJob = errors.New("scheduler: unknown job")

// JobFunc is a unit of background work. The context is cancelled on Stop.
type JobFunc func(ctx context.Context) error

// Scheduler runs named jobs on cron schedules.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	jobs map[string]JobFunc
}

// New builds a scheduler. Overlapping runs of the same job are skipped and
// panics inside a job are recovered and logged.
func New(log *zap.Logger) *Scheduler {
	log = logger.OrNop(log).Named("scheduler")
	adapter := cronLogger{log: log.Sugar()}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		logger: log,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]JobFunc),
	}
}

// Add registers job under name with a standard five-field cron spec.
func (s *Scheduler) Add(name, spec string, job JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("scheduler: job %q already registered", name)
	}
	if _, err := s.cron.AddFunc(spec, func() { s.run(name, job) }); err != nil {
		return fmt.Errorf("scheduler: parse schedule for %q: %w", name, err)
	}
	s.jobs[name] = job
	return nil
}

// RunNow executes a registered job synchronously, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return job(ctx)
}

// Start begins firing schedules in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop cancels running jobs and waits for them until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler: stop: %w", ctx.Err())
	}
}

func (s *Scheduler) run(name string, job JobFunc) {
	started := time.Now()
	if err := job(s.ctx); err != nil {
		s.logger.Error("job failed",
			zap.String("job", name),
			zap.Duration("duration", time.Since(started)),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("job completed",
		zap.String("job", name),
		zap.Duration("duration", time.Since(started)),
	)
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
