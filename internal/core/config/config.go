package config

import (
	"time"

	"github.com/studyflow/processor/internal/ai/catalog"
	"github.com/studyflow/processor/internal/ai/executor"
	"github.com/studyflow/processor/internal/ai/provider"
	redisclient "github.com/studyflow/processor/internal/infra/redis"
	"github.com/studyflow/processor/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig         `yaml:"server"`
	Provider  provider.Config      `yaml:"provider"`
	Catalog   catalog.Config       `yaml:"catalog"`
	Retry     executor.RetryConfig `yaml:"retry"`
	Budget    BudgetConfig         `yaml:"budget"`
	Scheduler SchedulerConfig      `yaml:"scheduler"`
	Redis     redisclient.Config   `yaml:"redis"`
	Database  postgres.Config      `yaml:"database"`
	Logging   LoggingConfig        `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// BudgetConfig sets the proactive daily call budget. Allocation maps a
// task type to its share of DailyLimit; unknown tasks get a tenth.
type BudgetConfig struct {
	DailyLimit int                `yaml:"daily_limit"`
	Allocation map[string]float64 `yaml:"allocation"`
}

// SchedulerConfig sets the background job cadence. Retention of zero
// disables cleanup.
type SchedulerConfig struct {
	ResumeInterval     time.Duration `yaml:"resume_interval"`
	QuotaWatchInterval time.Duration `yaml:"quota_watch_interval"`
	CleanupInterval    time.Duration `yaml:"cleanup_interval"`
	Retention          time.Duration `yaml:"retention"`
}
