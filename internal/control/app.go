// Package control wires the processing core together and manages its
// lifecycle.
package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"

	"github.com/studyflow/processor/internal/ai/budget"
	"github.com/studyflow/processor/internal/ai/catalog"
	"github.com/studyflow/processor/internal/ai/executor"
	"github.com/studyflow/processor/internal/ai/provider"
	"github.com/studyflow/processor/internal/core/config"
	"github.com/studyflow/processor/internal/core/domain"
	"github.com/studyflow/processor/internal/health"
	redisclient "github.com/studyflow/processor/internal/infra/redis"
	"github.com/studyflow/processor/internal/infra/storage"
	"github.com/studyflow/processor/internal/infra/storage/memory"
	"github.com/studyflow/processor/internal/infra/storage/postgres"
	"github.com/studyflow/processor/internal/notify"
	"github.com/studyflow/processor/internal/pipeline"
	"github.com/studyflow/processor/internal/scheduler"
)

// App is the assembled processing service.
type App struct {
	cfg config.AppConfig

	db          *postgres.DB
	redisClient *redisclient.Client
	repo        storage.ContentRepository
	artifacts   storage.ArtifactRepository
	catalog     *catalog.Catalog
	tracker     budget.Tracker
	pipe        *pipeline.Pipeline
	jobs        *scheduler.Jobs
	sched       *scheduler.Scheduler
	httpServer  *health.Server
	log         *slog.Logger
}

// NewApp builds the application from configuration.
func NewApp(cfg config.AppConfig) (*App, error) {
	var (
		db        *postgres.DB
		repo      storage.ContentRepository
		artifacts storage.ArtifactRepository
	)

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		repo = postgres.NewContentRepo(db)
		artifacts = postgres.NewArtifactRepo(db)
		slog.Info("Using PostgreSQL storage")
	} else {
		repo = memory.NewContentRepo()
		artifacts = memory.NewArtifactRepo()
		slog.Info("Using Memory storage")
	}

	client := provider.NewHTTPClient(cfg.Provider)
	cat := catalog.New(client, cfg.Catalog)
	exec := executor.New(cat, cfg.Retry)

	allocation := cfg.Budget.Allocation
	if len(allocation) == 0 {
		allocation = make(map[string]float64, len(catalog.AllTasks))
		for _, task := range catalog.AllTasks {
			allocation[string(task)] = 1.0 / float64(len(catalog.AllTasks))
		}
	}
	tracker := budget.NewTracker(cfg.Budget.DailyLimit, allocation)

	var (
		redisClient *redisclient.Client
		leaser      pipeline.Leaser
		recorder    scheduler.QuotaRecorder
		cachePinger health.Pinger
	)
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, resume coordination disabled", "error", err)
		} else {
			leaser = redisClient
			recorder = redisClient
			cachePinger = redisClient
		}
	}

	pipe := pipeline.New(repo, pipeline.DefaultProcessors(pipeline.Deps{
		Executor: exec,
		Client:   client,
		Source:   &contentSource{artifacts: artifacts},
		Embedder: &vectorEmbedder{provider: client, artifacts: artifacts},
		Tracker:  tracker,
	}), leaser)

	jobs := scheduler.NewJobs(repo, pipe, tracker, notify.NewLogNotifier(), recorder, cfg.Scheduler.Retention)

	var dbPinger health.Pinger
	if db != nil {
		dbPinger = db
	}
	monitor := health.NewMonitor(dbPinger, cachePinger, repo, cat, tracker)
	httpServer := health.NewServer(monitor, repo, artifacts, pipe, jobs, cfg.Server.Port)

	return &App{
		cfg:         cfg,
		db:          db,
		redisClient: redisClient,
		repo:        repo,
		artifacts:   artifacts,
		catalog:     cat,
		tracker:     tracker,
		pipe:        pipe,
		jobs:        jobs,
		sched:       scheduler.New(),
		httpServer:  httpServer,
		log:         slog.Default(),
	}, nil
}

// Resume re-enters processing for one content item. The admin CLI goes
// through here; the HTTP server reaches the same pipeline directly.
func (a *App) Resume(ctx context.Context, contentID string, fromStage *domain.Stage) error {
	return a.pipe.Resume(ctx, contentID, fromStage)
}

// Start brings the background workers and the HTTP server up.
func (a *App) Start(ctx context.Context) error {
	go func() {
		if err := a.httpServer.Start(); err != nil {
			a.log.Error("HTTP server failed", "error", err)
		}
	}()
	a.log.Info("HTTP server started", "port", a.cfg.Server.Port)

	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}

	a.sched.Every(ctx, a.cfg.Scheduler.ResumeInterval, "auto-resume", a.jobs.RunAutoResume)
	a.sched.Every(ctx, a.cfg.Scheduler.QuotaWatchInterval, "quota-watch", a.jobs.RunQuotaWatch)
	if a.cfg.Scheduler.Retention > 0 {
		a.sched.Every(ctx, a.cfg.Scheduler.CleanupInterval, "cleanup", a.jobs.RunCleanup)
	}

	return nil
}

// Stop shuts everything down. Scheduler jobs finish their current run;
// the HTTP server drains within ctx's deadline.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping processor...")

	a.sched.Stop()

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if a.db != nil {
		defer a.db.Close()
	}

	return a.httpServer.Stop(ctx)
}
