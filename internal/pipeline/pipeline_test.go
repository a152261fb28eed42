package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/studyflow/processor/internal/ai/executor"
	"github.com/studyflow/processor/internal/core/domain"
	"github.com/studyflow/processor/internal/infra/storage/memory"
)

// fakeProcessor scripts one stage's behavior and counts executions.
type fakeProcessor struct {
	err   error
	calls int
	fn    func() error
}

func (f *fakeProcessor) Process(ctx context.Context, state *domain.ContentProcessingState, report func(int)) error {
	f.calls++
	if f.fn != nil {
		return f.fn()
	}
	return f.err
}

func allStages(procs ...*fakeProcessor) map[domain.Stage]StageProcessor {
	m := make(map[domain.Stage]StageProcessor, len(domain.StageOrder))
	for i, s := range domain.StageOrder {
		m[s] = procs[i]
	}
	return m
}

func okProcessors() (map[domain.Stage]StageProcessor, []*fakeProcessor) {
	procs := make([]*fakeProcessor, len(domain.StageOrder))
	for i := range procs {
		procs[i] = &fakeProcessor{}
	}
	return allStages(procs...), procs
}

func seedContent(t *testing.T, repo *memory.ContentRepo, id string) {
	t.Helper()
	if err := repo.Create(context.Background(), domain.NewContentProcessingState(id, "user-1")); err != nil {
		t.Fatal(err)
	}
}

func quotaErr() error {
	recovery := time.Now().Add(2 * time.Hour)
	return &executor.QuotaPauseError{
		Info: &domain.QuotaInfo{
			QuotaExceeded:     true,
			Metric:            "generate_requests_per_day",
			EstimatedRecovery: &recovery,
		},
		Err: errors.New("quota exceeded"),
	}
}

func TestAdvanceRunsAllStagesInOrder(t *testing.T) {
	repo := memory.NewContentRepo()
	seedContent(t, repo, "c1")

	procs, fakes := okProcessors()
	p := New(repo, procs, nil)

	if err := p.Advance(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}

	for i, f := range fakes {
		if f.calls != 1 {
			t.Errorf("stage %s ran %d times, want 1", domain.StageOrder[i], f.calls)
		}
	}

	state, _ := repo.Get(context.Background(), "c1")
	if state.Status != domain.ContentCompleted {
		t.Errorf("status = %s, want completed", state.Status)
	}
	for _, s := range domain.StageOrder {
		st := state.StageStatusFor(s)
		if st.State != domain.StageCompleted || st.Progress != 100 {
			t.Errorf("stage %s = %s/%d, want completed/100", s, st.State, st.Progress)
		}
		if st.StartedAt == nil || st.CompletedAt == nil {
			t.Errorf("stage %s missing timestamps", s)
		}
	}
}

func TestAdvanceQuotaPausesContent(t *testing.T) {
	repo := memory.NewContentRepo()
	seedContent(t, repo, "c1")

	procs, fakes := okProcessors()
	fakes[2].err = quotaErr() // summarization hits quota
	p := New(repo, procs, nil)

	if err := p.Advance(context.Background(), "c1"); err != nil {
		t.Fatalf("quota pause must not surface as error: %v", err)
	}

	state, _ := repo.Get(context.Background(), "c1")
	if state.Status != domain.ContentPaused {
		t.Fatalf("status = %s, want paused", state.Status)
	}

	st := state.StageStatusFor(domain.StageSummarization)
	if st.State != domain.StagePaused {
		t.Errorf("stage state = %s, want paused", st.State)
	}
	if st.PauseReason == "" {
		t.Error("paused stage must carry a reason")
	}
	if st.QuotaInfo == nil || st.QuotaInfo.EstimatedRecovery == nil {
		t.Fatal("paused stage must carry quota info with recovery estimate")
	}
	if !st.QuotaInfo.EstimatedRecovery.After(time.Now()) {
		t.Error("recovery estimate must be in the future")
	}

	// Later stages must not have started.
	if fakes[3].calls != 0 || fakes[4].calls != 0 {
		t.Error("stages after the paused one must not run")
	}
}

func TestAdvanceFatalFailsStage(t *testing.T) {
	repo := memory.NewContentRepo()
	seedContent(t, repo, "c1")

	procs, fakes := okProcessors()
	fakes[0].err = errors.New("invalid input")
	p := New(repo, procs, nil)

	if err := p.Advance(context.Background(), "c1"); err == nil {
		t.Fatal("expected error from fatal stage failure")
	}

	state, _ := repo.Get(context.Background(), "c1")
	if state.Status != domain.ContentFailed {
		t.Errorf("status = %s, want failed", state.Status)
	}
	st := state.StageStatusFor(domain.StageTranscription)
	if st.State != domain.StageFailed || st.RetryCount != 1 {
		t.Errorf("stage = %s retry=%d, want failed retry=1", st.State, st.RetryCount)
	}
	if fakes[1].calls != 0 {
		t.Error("stages after a failed one must not run")
	}
}

func TestAdvanceHaltsOnPausedStage(t *testing.T) {
	repo := memory.NewContentRepo()
	seedContent(t, repo, "c1")

	state, _ := repo.Get(context.Background(), "c1")
	state.StageStatusFor(domain.StageTranscription).State = domain.StagePaused
	state.StageStatusFor(domain.StageTranscription).PauseReason = "provider quota exhausted"
	state.Refresh()
	repo.Update(context.Background(), state)

	procs, fakes := okProcessors()
	p := New(repo, procs, nil)

	if err := p.Advance(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}
	if fakes[0].calls != 0 {
		t.Error("paused stage must not run without Resume")
	}
}

func TestResumeIdempotence(t *testing.T) {
	repo := memory.NewContentRepo()
	seedContent(t, repo, "c1")

	state, _ := repo.Get(context.Background(), "c1")
	state.StageStatusFor(domain.StageTranscription).State = domain.StageCompleted
	state.StageStatusFor(domain.StageVectorization).State = domain.StageCompleted
	paused := state.StageStatusFor(domain.StageSummarization)
	paused.State = domain.StagePaused
	paused.PauseReason = "provider quota exhausted"
	recovery := time.Now().Add(-time.Minute)
	paused.QuotaInfo = &domain.QuotaInfo{QuotaExceeded: true, EstimatedRecovery: &recovery}
	state.Refresh()
	repo.Update(context.Background(), state)

	procs, fakes := okProcessors()
	p := New(repo, procs, nil)

	if err := p.Resume(context.Background(), "c1", nil); err != nil {
		t.Fatal(err)
	}

	// Completed stages never re-execute.
	if fakes[0].calls != 0 || fakes[1].calls != 0 {
		t.Error("completed stages must not re-run on resume")
	}
	if fakes[2].calls != 1 || fakes[3].calls != 1 || fakes[4].calls != 1 {
		t.Errorf("remaining stages should run once: %d %d %d",
			fakes[2].calls, fakes[3].calls, fakes[4].calls)
	}

	got, _ := repo.Get(context.Background(), "c1")
	if got.Status != domain.ContentCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
}

func TestResumeFromExplicitStage(t *testing.T) {
	repo := memory.NewContentRepo()
	seedContent(t, repo, "c1")

	state, _ := repo.Get(context.Background(), "c1")
	for _, s := range domain.StageOrder {
		state.StageStatusFor(s).State = domain.StageCompleted
	}
	state.StageStatusFor(domain.StageQuizGeneration).State = domain.StageFailed
	state.Refresh()
	repo.Update(context.Background(), state)

	procs, fakes := okProcessors()
	p := New(repo, procs, nil)

	from := domain.StageQuizGeneration
	if err := p.Resume(context.Background(), "c1", &from); err != nil {
		t.Fatal(err)
	}
	if fakes[4].calls != 1 {
		t.Errorf("quiz stage ran %d times, want 1", fakes[4].calls)
	}
	for i := 0; i < 4; i++ {
		if fakes[i].calls != 0 {
			t.Errorf("stage %s should not re-run", domain.StageOrder[i])
		}
	}
}

func TestResumeNothingToDo(t *testing.T) {
	repo := memory.NewContentRepo()
	seedContent(t, repo, "c1")

	procs, fakes := okProcessors()
	p := New(repo, procs, nil)

	// All stages pending, none paused or failed: resume is a no-op.
	if err := p.Resume(context.Background(), "c1", nil); err != nil {
		t.Fatal(err)
	}
	if fakes[0].calls != 0 {
		t.Error("resume of non-paused content must not advance it")
	}
}

// deniedLeaser simulates another process holding the resume lease.
type deniedLeaser struct{}

func (deniedLeaser) AcquireResumeLease(context.Context, string, time.Duration) (bool, error) {
	return false, nil
}
func (deniedLeaser) ReleaseResumeLease(context.Context, string) error { return nil }

func TestResumeSkipsWhenLeaseHeld(t *testing.T) {
	repo := memory.NewContentRepo()
	seedContent(t, repo, "c1")

	state, _ := repo.Get(context.Background(), "c1")
	state.StageStatusFor(domain.StageTranscription).State = domain.StagePaused
	state.StageStatusFor(domain.StageTranscription).PauseReason = "provider quota exhausted"
	state.Refresh()
	repo.Update(context.Background(), state)

	procs, fakes := okProcessors()
	p := New(repo, procs, deniedLeaser{})

	if err := p.Resume(context.Background(), "c1", nil); err != nil {
		t.Fatal(err)
	}
	if fakes[0].calls != 0 {
		t.Error("resume must not run while another holds the lease")
	}
}

func TestResumeAfterRenewedQuotaFailureRepauses(t *testing.T) {
	repo := memory.NewContentRepo()
	seedContent(t, repo, "c1")

	state, _ := repo.Get(context.Background(), "c1")
	st := state.StageStatusFor(domain.StageTranscription)
	st.State = domain.StagePaused
	st.PauseReason = "provider quota exhausted"
	state.Refresh()
	repo.Update(context.Background(), state)

	procs, fakes := okProcessors()
	fakes[0].err = quotaErr()
	p := New(repo, procs, nil)

	if err := p.Resume(context.Background(), "c1", nil); err != nil {
		t.Fatal(err)
	}

	got, _ := repo.Get(context.Background(), "c1")
	if got.Status != domain.ContentPaused {
		t.Errorf("status = %s, want paused again", got.Status)
	}
}
