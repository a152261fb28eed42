package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = 60 * time.Second
	}
	if c.Catalog.CacheTTL == 0 {
		c.Catalog.CacheTTL = 5 * time.Minute
	}
	if c.Budget.DailyLimit == 0 {
		c.Budget.DailyLimit = 1500
	}
	if c.Scheduler.ResumeInterval == 0 {
		c.Scheduler.ResumeInterval = 5 * time.Minute
	}
	if c.Scheduler.QuotaWatchInterval == 0 {
		c.Scheduler.QuotaWatchInterval = time.Minute
	}
	if c.Scheduler.CleanupInterval == 0 {
		c.Scheduler.CleanupInterval = time.Hour
	}
}
