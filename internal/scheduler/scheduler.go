// Package scheduler wraps the cron runner with per-job concurrency caps and
// replace-on-reregister semantics. Missed or capped ticks are skipped, never
// queued.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// JobFunc is one scheduled unit of work. Implementations log and return;
// errors never reach the scheduler.
type JobFunc func(ctx context.Context)

type jobEntry struct {
	entryID cron.EntryID
	tokens  chan struct{}
}

// Scheduler drives the registered jobs. beforeRun, when set, runs ahead of
// every tick (connection-pool health check); a failing beforeRun skips the
// tick.
type Scheduler struct {
	cron      *cron.Cron
	beforeRun func(ctx context.Context) error
	logger    *zap.SugaredLogger

	mu   sync.Mutex
	jobs map[string]*jobEntry
}

func New(logger *zap.SugaredLogger, beforeRun func(ctx context.Context) error) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		beforeRun: beforeRun,
		logger:    logger.Named("scheduler"),
		jobs:      make(map[string]*jobEntry),
	}
}

// Register adds a job under id. Re-registering an existing id atomically
// replaces the prior schedule. maxConcurrent bounds overlapping runs; a tick
// arriving at the cap is skipped.
func (s *Scheduler) Register(id, spec string, maxConcurrent int, fn JobFunc) error {
	if maxConcurrent < 1 {
		return fmt.Errorf("job %s: maxConcurrent must be at least 1", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prior, ok := s.jobs[id]; ok {
		s.cron.Remove(prior.entryID)
		delete(s.jobs, id)
	}

	entry := &jobEntry{tokens: make(chan struct{}, maxConcurrent)}
	entryID, err := s.cron.AddFunc(spec, func() { s.run(id, entry, fn) })
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", id, err)
	}
	entry.entryID = entryID
	s.jobs[id] = entry

	s.logger.Infow("job registered", "id", id, "schedule", spec, "max_concurrent", maxConcurrent)
	return nil
}

func (s *Scheduler) run(id string, entry *jobEntry, fn JobFunc) {
	select {
	case entry.tokens <- struct{}{}:
	default:
		s.logger.Warnw("job tick skipped, concurrency cap reached", "id", id)
		return
	}
	defer func() { <-entry.tokens }()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("job panicked", "id", id, "panic", r)
		}
	}()

	ctx := context.Background()
	if s.beforeRun != nil {
		if err := s.beforeRun(ctx); err != nil {
			s.logger.Errorw("pre-run check failed, skipping tick", "id", id, "error", err)
			return
		}
	}

	s.logger.Debugw("job tick", "id", id)
	fn(ctx)
}

// Start launches the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
