// Package pipeline drives the five-stage content processing state
// machine.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/studyflow/processor/internal/ai/executor"
	"github.com/studyflow/processor/internal/core/domain"
	"github.com/studyflow/processor/internal/infra/storage"
	"github.com/studyflow/processor/internal/metrics"
)

// StageProcessor performs the actual work of one stage. Implementations
// are collaborators; the pipeline only decides when they run and what
// happens when they fail.
type StageProcessor interface {
	Process(ctx context.Context, state *domain.ContentProcessingState, report func(progress int)) error
}

// Leaser guards a resume against concurrent execution across processes.
type Leaser interface {
	AcquireResumeLease(ctx context.Context, contentID string, ttl time.Duration) (bool, error)
	ReleaseResumeLease(ctx context.Context, contentID string) error
}

// noopLeaser always grants the lease. Used when Redis is not configured;
// the deployment is then single-instance by constraint.
type noopLeaser struct{}

func (noopLeaser) AcquireResumeLease(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}
func (noopLeaser) ReleaseResumeLease(context.Context, string) error { return nil }

// NoopLeaser returns a lease that always grants.
func NoopLeaser() Leaser { return noopLeaser{} }

const resumeLeaseTTL = 10 * time.Minute

// Pipeline advances content through its stages in fixed order.
type Pipeline struct {
	repo       storage.ContentRepository
	processors map[domain.Stage]StageProcessor
	leaser     Leaser
	log        *slog.Logger
}

// New creates a pipeline. A nil leaser disables cross-process resume
// coordination.
func New(repo storage.ContentRepository, processors map[domain.Stage]StageProcessor, leaser Leaser) *Pipeline {
	if leaser == nil {
		leaser = noopLeaser{}
	}
	return &Pipeline{
		repo:       repo,
		processors: processors,
		leaser:     leaser,
		log:        slog.Default(),
	}
}

// Advance runs stages from the first incomplete one until the content
// completes, pauses, or fails. A paused stage halts advancement: the
// only way out of paused is Resume.
func (p *Pipeline) Advance(ctx context.Context, contentID string) error {
	for {
		state, err := p.repo.Get(ctx, contentID)
		if err != nil {
			return fmt.Errorf("load content %s: %w", contentID, err)
		}

		stage, ok := state.FirstIncomplete()
		if !ok {
			state.Refresh()
			if err := p.repo.Update(ctx, state); err != nil {
				return fmt.Errorf("persist completion of %s: %w", contentID, err)
			}
			p.log.Info("content processing completed", "content", contentID)
			return nil
		}

		status := state.StageStatusFor(stage)
		switch status.State {
		case domain.StagePaused:
			return nil // waits for Resume
		case domain.StageFailed:
			return nil // waits for manual retry or Resume
		}

		if err := p.runStage(ctx, state, stage); err != nil {
			return err
		}

		// Re-read on the next iteration so concurrent writers are seen.
	}
}

// runStage executes one stage and persists the outcome.
func (p *Pipeline) runStage(ctx context.Context, state *domain.ContentProcessingState, stage domain.Stage) error {
	proc, ok := p.processors[stage]
	if !ok {
		return fmt.Errorf("no processor registered for stage %s", stage)
	}

	status := state.StageStatusFor(stage)
	now := time.Now().UTC()
	status.State = domain.StageProcessing
	status.Progress = 0
	status.Error = ""
	status.ErrorKind = ""
	status.PauseReason = ""
	status.QuotaInfo = nil
	status.StartedAt = &now
	status.CompletedAt = nil
	state.Refresh()
	if err := p.repo.Update(ctx, state); err != nil {
		return fmt.Errorf("mark %s processing: %w", stage, err)
	}

	p.log.Info("stage started", "content", state.ContentID, "stage", stage)

	report := func(progress int) {
		if progress < 0 {
			progress = 0
		}
		if progress > 100 {
			progress = 100
		}
		status.Progress = progress
		if err := p.repo.Update(ctx, state); err != nil {
			p.log.Warn("progress update failed", "content", state.ContentID, "stage", stage, "error", err)
		}
	}

	err := proc.Process(ctx, state, report)
	if err == nil {
		done := time.Now().UTC()
		status.State = domain.StageCompleted
		status.Progress = 100
		status.CompletedAt = &done
		state.Refresh()
		metrics.StagesCompleted.WithLabelValues(string(stage)).Inc()
		p.log.Info("stage completed", "content", state.ContentID, "stage", stage,
			"elapsed", done.Sub(now).Round(time.Millisecond))
		return p.repo.Update(ctx, state)
	}

	var pause *executor.QuotaPauseError
	if errors.As(err, &pause) {
		status.State = domain.StagePaused
		status.ErrorKind = domain.ErrorKindQuota
		status.Error = err.Error()
		status.PauseReason = "provider quota exhausted"
		status.QuotaInfo = pause.Info
		state.Refresh()
		metrics.StagesFailed.WithLabelValues(string(stage), string(domain.ErrorKindQuota)).Inc()
		p.log.Warn("stage paused on quota", "content", state.ContentID, "stage", stage,
			"recovery", pause.Info.EstimatedRecovery)
		if uerr := p.repo.Update(ctx, state); uerr != nil {
			return fmt.Errorf("persist pause of %s: %w", stage, uerr)
		}
		return nil
	}

	// Fatal here includes executor-exhausted errors: the executor already
	// spent its retry budget, so this layer does not retry again.
	status.State = domain.StageFailed
	status.ErrorKind = domain.ErrorKindFatal
	status.Error = err.Error()
	status.RetryCount++
	state.Refresh()
	metrics.StagesFailed.WithLabelValues(string(stage), string(domain.ErrorKindFatal)).Inc()
	p.log.Error("stage failed", "content", state.ContentID, "stage", stage, "error", err)
	if uerr := p.repo.Update(ctx, state); uerr != nil {
		return fmt.Errorf("persist failure of %s: %w", stage, uerr)
	}
	return fmt.Errorf("stage %s failed for %s: %w", stage, state.ContentID, err)
}

// Resume re-enters processing at the first paused or failed stage, or at
// fromStage when given. Completed stages are never redone. The same entry
// point serves the scheduler, the HTTP trigger and the admin CLI.
func (p *Pipeline) Resume(ctx context.Context, contentID string, fromStage *domain.Stage) error {
	acquired, err := p.leaser.AcquireResumeLease(ctx, contentID, resumeLeaseTTL)
	if err != nil {
		return fmt.Errorf("acquire resume lease for %s: %w", contentID, err)
	}
	if !acquired {
		p.log.Info("resume already in progress, skipping", "content", contentID)
		return nil
	}
	defer func() {
		if err := p.leaser.ReleaseResumeLease(context.WithoutCancel(ctx), contentID); err != nil {
			p.log.Warn("release resume lease failed", "content", contentID, "error", err)
		}
	}()

	state, err := p.repo.Get(ctx, contentID)
	if err != nil {
		return fmt.Errorf("load content %s: %w", contentID, err)
	}

	var target domain.Stage
	if fromStage != nil {
		target = *fromStage
		if state.StageStatusFor(target).State == domain.StageCompleted {
			return fmt.Errorf("stage %s already completed for %s", target, contentID)
		}
	} else {
		resumable, ok := state.FirstResumable()
		if !ok {
			p.log.Info("nothing to resume", "content", contentID, "status", state.Status)
			return nil
		}
		target = resumable
	}

	status := state.StageStatusFor(target)
	status.State = domain.StagePending
	status.Error = ""
	status.ErrorKind = ""
	status.PauseReason = ""
	status.QuotaInfo = nil
	state.Refresh()
	if err := p.repo.Update(ctx, state); err != nil {
		return fmt.Errorf("reset stage %s: %w", target, err)
	}

	p.log.Info("resuming content", "content", contentID, "stage", target)
	return p.Advance(ctx, contentID)
}
