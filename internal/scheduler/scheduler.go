// Package scheduler runs the periodic background jobs: automatic resume
// of quota-paused content, quota observation, and retention cleanup.
package scheduler

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/studyflow/processor/internal/metrics"
)

// JobFunc is one periodic unit of work.
type JobFunc func(ctx context.Context) error

// Scheduler owns a set of ticker loops. Jobs run once immediately on
// registration and then on every tick until the scheduler stops.
type Scheduler struct {
	log *slog.Logger

	mu      sync.Mutex
	cancels []context.CancelFunc
	wg      sync.WaitGroup
}

func New() *Scheduler {
	return &Scheduler{log: slog.Default().With("component", "scheduler")}
}

// Handle cancels a single registered job.
type Handle struct {
	cancel context.CancelFunc
}

func (h Handle) Stop() {
	if h.cancel != nil {
		h.cancel()
	}
}

// Every registers fn to run now and then every interval. The loop exits
// when ctx is cancelled, the handle is stopped, or the scheduler stops.
func (s *Scheduler) Every(ctx context.Context, interval time.Duration, name string, fn JobFunc) Handle {
	jobCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancels = append(s.cancels, cancel)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.run(jobCtx, name, fn)

		for {
			select {
			case <-jobCtx.Done():
				return
			case <-ticker.C:
				s.run(jobCtx, name, fn)
			}
		}
	}()

	return Handle{cancel: cancel}
}

// run executes one job invocation. A panic in a job is contained so one
// bad run cannot take the whole process down.
func (s *Scheduler) run(ctx context.Context, name string, fn JobFunc) {
	defer func() {
		if r := recover(); r != nil {
			metrics.SchedulerJobRuns.WithLabelValues(name, "panic").Inc()
			s.log.Error("job panicked", "job", name, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	start := time.Now()
	if err := fn(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.SchedulerJobRuns.WithLabelValues(name, "error").Inc()
		s.log.Error("job failed", "job", name, "error", err,
			"elapsed", time.Since(start).Round(time.Millisecond))
		return
	}
	metrics.SchedulerJobRuns.WithLabelValues(name, "ok").Inc()
	s.log.Debug("job completed", "job", name,
		"elapsed", time.Since(start).Round(time.Millisecond))
}

// Stop cancels every job and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = nil
	s.mu.Unlock()

	s.wg.Wait()
}
