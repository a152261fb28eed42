package health

import (
	"context"
	"sync"
	"time"

	"github.com/studyflow/processor/internal/ai/budget"
	"github.com/studyflow/processor/internal/ai/catalog"
	"github.com/studyflow/processor/internal/infra/storage"
)

// Pinger checks liveness of an infrastructure dependency.
type Pinger interface {
	Health(ctx context.Context) error
}

// Monitor aggregates health status from the system's components.
type Monitor struct {
	db      Pinger // nil when running on the in-memory store
	cache   Pinger // nil when Redis is not configured
	repo    storage.ContentRepository
	catalog *catalog.Catalog
	tracker budget.Tracker

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport *Report
}

func NewMonitor(
	db Pinger,
	cache Pinger,
	repo storage.ContentRepository,
	cat *catalog.Catalog,
	tracker budget.Tracker,
) *Monitor {
	return &Monitor{
		db:      db,
		cache:   cache,
		repo:    repo,
		catalog: cat,
		tracker: tracker,
	}
}

const (
	checkCacheTTL = 10 * time.Second

	// pausedDegradedThreshold: this many quota-paused items means the
	// provider budget is effectively gone for the day.
	pausedDegradedThreshold = 25
)

// CheckHealth builds a health report. Results are cached briefly so a
// scraping load balancer does not hammer the database.
func (m *Monitor) CheckHealth(ctx context.Context) *Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport != nil && time.Since(m.lastCheck) < checkCacheTTL {
		return m.lastReport
	}

	report := &Report{
		SystemStatus: StatusHealthy,
		Components:   make(map[string]ComponentHealth),
		QuotaUsage:   make(map[string]float64),
	}

	m.checkPinger(ctx, report, "database", m.db, StatusCritical)
	m.checkPinger(ctx, report, "redis", m.cache, StatusDegraded)
	m.checkCatalog(ctx, report)
	m.checkPaused(ctx, report)

	if m.tracker != nil {
		for _, task := range catalog.AllTasks {
			report.QuotaUsage[string(task)] = m.tracker.GetUsage(string(task)).UsagePercentage
		}
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}

func (m *Monitor) checkPinger(ctx context.Context, report *Report, name string, p Pinger, onFail SystemStatus) {
	if p == nil {
		return
	}
	ch := ComponentHealth{Name: name, Status: StatusHealthy}
	if err := p.Health(ctx); err != nil {
		ch.Status = onFail
		ch.Detail = err.Error()
		report.degradeTo(onFail)
	}
	report.Components[name] = ch
}

func (m *Monitor) checkCatalog(ctx context.Context, report *Report) {
	if m.catalog == nil {
		return
	}
	ch := ComponentHealth{Name: "model_catalog", Status: StatusHealthy}
	models, err := m.catalog.ListAvailable(ctx, false)
	switch {
	case err != nil:
		ch.Status = StatusCritical
		ch.Detail = err.Error()
		report.degradeTo(StatusCritical)
	case len(models) == 0:
		ch.Status = StatusCritical
		ch.Detail = "no generation models available"
		report.degradeTo(StatusCritical)
	default:
		report.ModelsAvailable = len(models)
	}
	report.Components["model_catalog"] = ch
}

func (m *Monitor) checkPaused(ctx context.Context, report *Report) {
	if m.repo == nil {
		return
	}
	count, err := m.repo.CountPausedForQuota(ctx)
	if err != nil {
		return
	}
	report.PausedForQuota = count
	if count >= pausedDegradedThreshold {
		report.degradeTo(StatusDegraded)
	}
}

// degradeTo lowers the aggregate status, never raises it.
func (r *Report) degradeTo(s SystemStatus) {
	if r.SystemStatus == StatusCritical {
		return
	}
	if s == StatusCritical || (s == StatusDegraded && r.SystemStatus == StatusHealthy) {
		r.SystemStatus = s
	}
}
