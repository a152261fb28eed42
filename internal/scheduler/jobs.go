package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/studyflow/processor/internal/ai/budget"
	"github.com/studyflow/processor/internal/ai/catalog"
	"github.com/studyflow/processor/internal/core/domain"
	"github.com/studyflow/processor/internal/infra/storage"
	"github.com/studyflow/processor/internal/metrics"
	"github.com/studyflow/processor/internal/notify"
)

// Resumer re-enters processing for a content item. Satisfied by
// *pipeline.Pipeline.
type Resumer interface {
	Resume(ctx context.Context, contentID string, fromStage *domain.Stage) error
}

// QuotaRecorder publishes the quota-paused count to a shared store so
// other services can read it. Satisfied by *redis.Client.
type QuotaRecorder interface {
	RecordQuotaPauseCount(ctx context.Context, count int) error
}

const (
	// autoResumeBatch caps how many paused items one run touches, so a
	// mass pause does not turn the first recovery tick into a stampede.
	autoResumeBatch = 50

	// renewedPauseExtension pushes the recovery estimate forward when a
	// resume immediately pauses again without a better estimate.
	renewedPauseExtension = time.Hour

	cleanupBatch = 100
)

// Jobs holds the dependencies of the periodic jobs. Construct once and
// register the Run methods with a Scheduler.
type Jobs struct {
	repo     storage.ContentRepository
	resumer  Resumer
	tracker  budget.Tracker
	notifier notify.Notifier
	recorder QuotaRecorder // nil when Redis is not configured

	retention time.Duration
	now       func() time.Time
	log       *slog.Logger
}

func NewJobs(
	repo storage.ContentRepository,
	resumer Resumer,
	tracker budget.Tracker,
	notifier notify.Notifier,
	recorder QuotaRecorder,
	retention time.Duration,
) *Jobs {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Jobs{
		repo:      repo,
		resumer:   resumer,
		tracker:   tracker,
		notifier:  notifier,
		recorder:  recorder,
		retention: retention,
		now:       time.Now,
		log:       slog.Default().With("component", "scheduler"),
	}
}

// RunAutoResume scans quota-paused content and resumes every item whose
// recovery estimate has passed. One bad item never blocks the rest of
// the batch.
func (j *Jobs) RunAutoResume(ctx context.Context) error {
	items, err := j.repo.ListPausedForQuota(ctx, autoResumeBatch)
	if err != nil {
		return fmt.Errorf("list paused content: %w", err)
	}
	if len(items) == 0 {
		return nil
	}

	now := j.now()
	resumed, skipped, repaused := 0, 0, 0

	for _, item := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		info := item.PausedQuotaInfo()
		if !info.RecoveryDue(now) {
			skipped++
			continue
		}

		if err := j.resumer.Resume(ctx, item.ContentID, nil); err != nil {
			metrics.ResumeAttemptsTotal.WithLabelValues("error").Inc()
			j.log.Error("auto-resume failed", "content", item.ContentID, "error", err)
			continue
		}

		after, err := j.repo.Get(ctx, item.ContentID)
		if err != nil {
			j.log.Warn("auto-resume state reload failed", "content", item.ContentID, "error", err)
			continue
		}

		switch after.Status {
		case domain.ContentPaused:
			// Quota is still exhausted. If the fresh pause brought no
			// usable estimate, push it out so the next ticks skip this
			// item instead of hammering the provider.
			repaused++
			metrics.ResumeAttemptsTotal.WithLabelValues("repaused").Inc()
			if err := j.extendRecovery(ctx, after, now); err != nil {
				j.log.Warn("recovery extension failed", "content", item.ContentID, "error", err)
			}
		case domain.ContentFailed:
			metrics.ResumeAttemptsTotal.WithLabelValues("failed").Inc()
			j.notifier.Notify(ctx, notify.Event{
				ContentID: after.ContentID,
				UserID:    after.UserID,
				Kind:      notify.EventProcessingFailed,
				At:        now,
			})
		default:
			resumed++
			metrics.ResumeAttemptsTotal.WithLabelValues("resumed").Inc()
			kind := notify.EventProcessingResumed
			if after.Status == domain.ContentCompleted {
				kind = notify.EventProcessingComplete
			}
			j.notifier.Notify(ctx, notify.Event{
				ContentID: after.ContentID,
				UserID:    after.UserID,
				Kind:      kind,
				At:        now,
			})
		}
	}

	j.log.Info("auto-resume run finished",
		"candidates", len(items), "resumed", resumed,
		"skipped", skipped, "repaused", repaused)
	return nil
}

func (j *Jobs) extendRecovery(ctx context.Context, state *domain.ContentProcessingState, now time.Time) error {
	info := state.PausedQuotaInfo()
	if info == nil || !info.RecoveryDue(now) {
		return nil
	}
	next := now.Add(renewedPauseExtension)
	info.EstimatedRecovery = &next
	return j.repo.Update(ctx, state)
}

// RunQuotaWatch refreshes the quota observability gauges.
func (j *Jobs) RunQuotaWatch(ctx context.Context) error {
	count, err := j.repo.CountPausedForQuota(ctx)
	if err != nil {
		return fmt.Errorf("count paused content: %w", err)
	}
	metrics.ContentPausedForQuota.Set(float64(count))

	if j.tracker != nil {
		for _, task := range catalog.AllTasks {
			usage := j.tracker.GetUsage(string(task))
			metrics.QuotaUsagePercent.WithLabelValues(string(task)).Set(usage.UsagePercentage)
		}
	}

	if j.recorder != nil {
		if err := j.recorder.RecordQuotaPauseCount(ctx, count); err != nil {
			j.log.Warn("quota pause count publish failed", "error", err)
		}
	}
	return nil
}

// RunCleanup permanently removes soft-deleted content past retention.
func (j *Jobs) RunCleanup(ctx context.Context) error {
	if j.retention <= 0 {
		return nil
	}

	cutoff := j.now().Add(-j.retention)
	items, err := j.repo.ListExpired(ctx, cutoff, cleanupBatch)
	if err != nil {
		return fmt.Errorf("list expired content: %w", err)
	}

	purged := 0
	for _, item := range items {
		if err := j.repo.Purge(ctx, item.ContentID); err != nil {
			j.log.Error("purge failed", "content", item.ContentID, "error", err)
			continue
		}
		purged++
	}
	if purged > 0 {
		j.log.Info("retention cleanup finished", "purged", purged)
	}
	return nil
}
