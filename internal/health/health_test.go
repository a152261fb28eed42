package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/studyflow/processor/internal/core/domain"
	"github.com/studyflow/processor/internal/infra/storage/memory"
)

type stubPinger struct {
	err error
}

func (s *stubPinger) Health(context.Context) error { return s.err }

func TestCheckHealthAggregation(t *testing.T) {
	tests := []struct {
		name  string
		dbErr error
		want  SystemStatus
	}{
		{"all healthy", nil, StatusHealthy},
		{"database down is critical", errors.New("connection refused"), StatusCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(&stubPinger{err: tt.dbErr}, nil, memory.NewContentRepo(), nil, nil)
			report := m.CheckHealth(context.Background())
			if report.SystemStatus != tt.want {
				t.Errorf("status = %s, want %s", report.SystemStatus, tt.want)
			}
		})
	}
}

func TestCheckHealthRedisOnlyDegrades(t *testing.T) {
	m := NewMonitor(&stubPinger{}, &stubPinger{err: errors.New("redis down")}, memory.NewContentRepo(), nil, nil)
	report := m.CheckHealth(context.Background())
	if report.SystemStatus != StatusDegraded {
		t.Errorf("status = %s, want degraded", report.SystemStatus)
	}
}

func TestCheckHealthCachesReport(t *testing.T) {
	db := &stubPinger{}
	m := NewMonitor(db, nil, memory.NewContentRepo(), nil, nil)

	first := m.CheckHealth(context.Background())
	db.err = errors.New("now broken")
	second := m.CheckHealth(context.Background())
	if second != first {
		t.Error("reports within the cache window should be identical")
	}
}

type stubPipeline struct {
	advanced []string
	gotID    string
	gotStage *domain.Stage
	err      error
}

func (s *stubPipeline) Advance(_ context.Context, contentID string) error {
	s.advanced = append(s.advanced, contentID)
	return nil
}

func (s *stubPipeline) Resume(_ context.Context, contentID string, fromStage *domain.Stage) error {
	s.gotID = contentID
	s.gotStage = fromStage
	return s.err
}

type stubJobs struct {
	ran []string
}

func (s *stubJobs) RunAutoResume(context.Context) error { s.ran = append(s.ran, "auto-resume"); return nil }
func (s *stubJobs) RunQuotaWatch(context.Context) error { s.ran = append(s.ran, "quota-watch"); return nil }
func (s *stubJobs) RunCleanup(context.Context) error    { s.ran = append(s.ran, "cleanup"); return nil }

func newTestServer(t *testing.T, repo *memory.ContentRepo, pipe Pipeline, jobs Jobs) *Server {
	t.Helper()
	monitor := NewMonitor(&stubPinger{}, nil, repo, nil, nil)
	return NewServer(monitor, repo, memory.NewArtifactRepo(), pipe, jobs, 0)
}

func TestHandleResume(t *testing.T) {
	repo := memory.NewContentRepo()
	state := domain.NewContentProcessingState("c1", "user-1")
	if err := repo.Create(context.Background(), state); err != nil {
		t.Fatal(err)
	}

	resumer := &stubPipeline{}
	srv := newTestServer(t, repo, resumer, &stubJobs{})

	req := httptest.NewRequest("POST", "/content/c1/resume",
		strings.NewReader(`{"from_stage":"summarization"}`))
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if resumer.gotID != "c1" {
		t.Errorf("resumed %q, want c1", resumer.gotID)
	}
	if resumer.gotStage == nil || *resumer.gotStage != domain.StageSummarization {
		t.Errorf("fromStage = %v, want summarization", resumer.gotStage)
	}
}

func TestHandleSubmit(t *testing.T) {
	repo := memory.NewContentRepo()
	pipe := &stubPipeline{}
	srv := newTestServer(t, repo, pipe, &stubJobs{})

	req := httptest.NewRequest("POST", "/content",
		strings.NewReader(`{"user_id":"user-1","text":"lecture transcript"}`))
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)

	if rec.Code != 202 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["content_id"] == "" {
		t.Fatal("submit must return a content id")
	}
	if _, err := repo.Get(context.Background(), body["content_id"]); err != nil {
		t.Errorf("submitted content not persisted: %v", err)
	}
}

func TestHandleSubmitRequiresFields(t *testing.T) {
	srv := newTestServer(t, memory.NewContentRepo(), &stubPipeline{}, &stubJobs{})

	req := httptest.NewRequest("POST", "/content", strings.NewReader(`{"user_id":"u"}`))
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleResumeRejectsUnknownStage(t *testing.T) {
	repo := memory.NewContentRepo()
	srv := newTestServer(t, repo, &stubPipeline{}, &stubJobs{})

	req := httptest.NewRequest("POST", "/content/c1/resume",
		strings.NewReader(`{"from_stage":"mastering"}`))
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleContentStatusNotFound(t *testing.T) {
	srv := newTestServer(t, memory.NewContentRepo(), &stubPipeline{}, &stubJobs{})

	req := httptest.NewRequest("GET", "/content/missing", nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)

	if rec.Code != 404 {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleRunJob(t *testing.T) {
	jobs := &stubJobs{}
	srv := newTestServer(t, memory.NewContentRepo(), &stubPipeline{}, jobs)

	req := httptest.NewRequest("POST", "/jobs/auto-resume", nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(jobs.ran) != 1 || jobs.ran[0] != "auto-resume" {
		t.Errorf("ran = %v, want [auto-resume]", jobs.ran)
	}

	req = httptest.NewRequest("POST", "/jobs/defrag", nil)
	rec = httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	if rec.Code != 404 {
		t.Errorf("unknown job status = %d, want 404", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, memory.NewContentRepo(), &stubPipeline{}, &stubJobs{})

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != string(StatusHealthy) {
		t.Errorf("status = %q, want healthy", body["status"])
	}
}
