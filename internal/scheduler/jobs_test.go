package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/studyflow/processor/internal/core/domain"
	"github.com/studyflow/processor/internal/infra/storage/memory"
	"github.com/studyflow/processor/internal/notify"
)

// fakeResumer records resume calls and applies a scripted outcome to the
// repository, standing in for the real pipeline.
type fakeResumer struct {
	repo    *memory.ContentRepo
	outcome map[string]domain.StageState // applied to the paused stage
	errFor  map[string]error
	calls   []string
}

func (f *fakeResumer) Resume(ctx context.Context, contentID string, _ *domain.Stage) error {
	f.calls = append(f.calls, contentID)
	if err := f.errFor[contentID]; err != nil {
		return err
	}

	state, err := f.repo.Get(ctx, contentID)
	if err != nil {
		return err
	}
	stage, ok := state.FirstResumable()
	if !ok {
		return nil
	}
	st := state.StageStatusFor(stage)
	next, ok := f.outcome[contentID]
	if !ok {
		next = domain.StageCompleted
	}
	st.State = next
	if next == domain.StageCompleted {
		st.Progress = 100
		st.QuotaInfo = nil
		st.PauseReason = ""
		// remaining stages complete too, as a successful resume would
		for _, s := range domain.StageOrder {
			other := state.StageStatusFor(s)
			if other.State != domain.StageCompleted {
				other.State = domain.StageCompleted
				other.Progress = 100
			}
		}
	}
	state.Refresh()
	return f.repo.Update(ctx, state)
}

func pauseContent(t *testing.T, repo *memory.ContentRepo, id string, recovery *time.Time) {
	t.Helper()
	state := domain.NewContentProcessingState(id, "user-1")
	st := state.StageStatusFor(domain.StageSummarization)
	st.State = domain.StagePaused
	st.PauseReason = "provider quota exhausted"
	st.QuotaInfo = &domain.QuotaInfo{QuotaExceeded: true, EstimatedRecovery: recovery}
	state.StageStatusFor(domain.StageTranscription).State = domain.StageCompleted
	state.StageStatusFor(domain.StageVectorization).State = domain.StageCompleted
	state.Refresh()
	if err := repo.Create(context.Background(), state); err != nil {
		t.Fatal(err)
	}
}

func newTestJobs(repo *memory.ContentRepo, resumer Resumer) *Jobs {
	return NewJobs(repo, resumer, nil, notify.Discard{}, nil, 0)
}

func TestAutoResumeSkipsFutureRecovery(t *testing.T) {
	repo := memory.NewContentRepo()
	future := time.Now().Add(2 * time.Hour)
	past := time.Now().Add(-time.Minute)
	pauseContent(t, repo, "waiting", &future)
	pauseContent(t, repo, "due", &past)

	resumer := &fakeResumer{repo: repo}
	jobs := newTestJobs(repo, resumer)

	if err := jobs.RunAutoResume(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(resumer.calls) != 1 || resumer.calls[0] != "due" {
		t.Errorf("resume calls = %v, want only [due]", resumer.calls)
	}

	waiting, _ := repo.Get(context.Background(), "waiting")
	if waiting.Status != domain.ContentPaused {
		t.Errorf("not-yet-due item must stay paused, got %s", waiting.Status)
	}
	done, _ := repo.Get(context.Background(), "due")
	if done.Status != domain.ContentCompleted {
		t.Errorf("due item = %s, want completed", done.Status)
	}
}

func TestAutoResumeMissingEstimateCountsAsDue(t *testing.T) {
	repo := memory.NewContentRepo()
	pauseContent(t, repo, "no-estimate", nil)

	resumer := &fakeResumer{repo: repo}
	jobs := newTestJobs(repo, resumer)

	if err := jobs.RunAutoResume(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(resumer.calls) != 1 {
		t.Errorf("resume calls = %v, want 1 call", resumer.calls)
	}
}

func TestAutoResumeIsolatesFailures(t *testing.T) {
	repo := memory.NewContentRepo()
	past := time.Now().Add(-time.Minute)
	pauseContent(t, repo, "broken", &past)
	pauseContent(t, repo, "healthy", &past)

	resumer := &fakeResumer{
		repo:   repo,
		errFor: map[string]error{"broken": errors.New("db timeout")},
	}
	jobs := newTestJobs(repo, resumer)

	if err := jobs.RunAutoResume(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(resumer.calls) != 2 {
		t.Fatalf("resume calls = %v, want both items attempted", resumer.calls)
	}
	healthy, _ := repo.Get(context.Background(), "healthy")
	if healthy.Status != domain.ContentCompleted {
		t.Errorf("healthy item = %s, want completed despite earlier failure", healthy.Status)
	}
}

func TestAutoResumeExtendsRenewedPause(t *testing.T) {
	repo := memory.NewContentRepo()
	past := time.Now().Add(-time.Minute)
	pauseContent(t, repo, "still-out", &past)

	// Resume leaves the item paused with the stale estimate: the provider
	// quota has not actually recovered.
	resumer := &fakeResumer{
		repo:    repo,
		outcome: map[string]domain.StageState{"still-out": domain.StagePaused},
	}
	jobs := newTestJobs(repo, resumer)

	before := time.Now()
	if err := jobs.RunAutoResume(context.Background()); err != nil {
		t.Fatal(err)
	}

	state, _ := repo.Get(context.Background(), "still-out")
	if state.Status != domain.ContentPaused {
		t.Fatalf("status = %s, want paused", state.Status)
	}
	info := state.PausedQuotaInfo()
	if info == nil || info.EstimatedRecovery == nil {
		t.Fatal("repaused item must keep quota info")
	}
	if !info.EstimatedRecovery.After(before) {
		t.Error("recovery estimate must be pushed into the future after a renewed pause")
	}
}

func TestCleanupPurgesExpiredOnly(t *testing.T) {
	repo := memory.NewContentRepo()

	old := domain.NewContentProcessingState("old", "user-1")
	repo.Create(context.Background(), old)
	repo.SoftDelete(context.Background(), "old")

	fresh := domain.NewContentProcessingState("fresh", "user-1")
	repo.Create(context.Background(), fresh)

	jobs := NewJobs(repo, &fakeResumer{repo: repo}, nil, notify.Discard{}, nil, time.Nanosecond)
	jobs.now = func() time.Time { return time.Now().Add(time.Hour) }

	if err := jobs.RunCleanup(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := repo.Get(context.Background(), "old"); err == nil {
		t.Error("expired item should be purged")
	}
	if _, err := repo.Get(context.Background(), "fresh"); err != nil {
		t.Errorf("live item must survive cleanup: %v", err)
	}
}

type countRecorder struct {
	got []int
}

func (c *countRecorder) RecordQuotaPauseCount(_ context.Context, count int) error {
	c.got = append(c.got, count)
	return nil
}

func TestQuotaWatchPublishesCount(t *testing.T) {
	repo := memory.NewContentRepo()
	past := time.Now().Add(-time.Minute)
	pauseContent(t, repo, "a", &past)
	pauseContent(t, repo, "b", &past)

	rec := &countRecorder{}
	jobs := NewJobs(repo, &fakeResumer{repo: repo}, nil, notify.Discard{}, rec, 0)

	if err := jobs.RunQuotaWatch(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(rec.got) != 1 || rec.got[0] != 2 {
		t.Errorf("recorded counts = %v, want [2]", rec.got)
	}
}

func TestSchedulerRunsAndStops(t *testing.T) {
	s := New()
	ran := make(chan struct{}, 1)

	s.Every(context.Background(), 50*time.Millisecond, "probe", func(ctx context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("job did not run")
	}
	s.Stop()
}

func TestSchedulerContainsPanics(t *testing.T) {
	s := New()
	defer s.Stop()

	done := make(chan struct{})
	var once bool
	s.Every(context.Background(), 10*time.Millisecond, "explosive", func(ctx context.Context) error {
		if !once {
			once = true
			panic("boom")
		}
		select {
		case <-done:
		default:
			close(done)
		}
		return nil
	})

	// The loop must survive the first run's panic and tick again.
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler loop died after panic")
	}
}
