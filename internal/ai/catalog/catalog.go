// Package catalog discovers which provider models are usable and picks
// the model for a task.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/studyflow/processor/internal/ai/provider"
)

// ErrNoModelsAvailable is returned when neither discovery nor probing
// yields a usable model.
var ErrNoModelsAvailable = errors.New("no usable models available")

// ModelDescriptor describes a usable provider model.
type ModelDescriptor struct {
	Name             string
	DisplayName      string
	InputTokenLimit  int
	OutputTokenLimit int
	Temperature      float64
	TopP             float64
	TopK             int
}

// probeCandidates is the fixed list probed when the listing endpoint
// itself fails.
var probeCandidates = []string{
	"gemini-2.0-flash",
	"gemini-2.0-flash-lite",
	"gemini-1.5-flash",
	"gemini-1.5-pro",
}

// Config holds catalog settings.
type Config struct {
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// Catalog caches the provider's model list with a TTL and resolves the
// model to use for a task. The cache is an explicit per-instance object;
// concurrent refreshes are not de-duplicated because listing calls are
// idempotent and cheap relative to generation calls.
type Catalog struct {
	client provider.Client
	ttl    time.Duration
	now    func() time.Time
	log    *slog.Logger

	mu       sync.RWMutex
	cached   []ModelDescriptor
	cachedAt time.Time
}

// New creates a catalog around a provider client.
func New(client provider.Client, cfg Config) *Catalog {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Catalog{
		client: client,
		ttl:    ttl,
		now:    time.Now,
		log:    slog.Default(),
	}
}

// SetClock overrides the time source, for tests.
func (c *Catalog) SetClock(now func() time.Time) {
	c.now = now
}

// ListAvailable returns the usable models, serving the cache when it is
// within TTL. A fresh cache read never calls the provider.
func (c *Catalog) ListAvailable(ctx context.Context, forceRefresh bool) ([]ModelDescriptor, error) {
	if !forceRefresh {
		c.mu.RLock()
		if len(c.cached) > 0 && c.now().Sub(c.cachedAt) < c.ttl {
			cached := c.cached
			c.mu.RUnlock()
			return cached, nil
		}
		c.mu.RUnlock()
	}

	models, err := c.refresh(ctx)
	if err == nil {
		return models, nil
	}

	// Listing failed: serve stale cache if we have one.
	c.mu.RLock()
	stale := c.cached
	c.mu.RUnlock()
	if len(stale) > 0 {
		c.log.Warn("model discovery failed, serving stale cache",
			"error", err, "models", len(stale))
		return stale, nil
	}

	// No cache either: probe the fixed candidate list.
	probed := c.probe(ctx)
	if len(probed) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoModelsAvailable, err)
	}
	c.store(probed)
	return probed, nil
}

// SelectModel resolves the model for a task: profile primary if
// available, else the first available fallback in declared order, else
// the first available model of any kind.
func (c *Catalog) SelectModel(ctx context.Context, task TaskType, forceRefresh bool) (ModelDescriptor, error) {
	available, err := c.ListAvailable(ctx, forceRefresh)
	if err != nil {
		return ModelDescriptor{}, err
	}

	byName := make(map[string]ModelDescriptor, len(available))
	for _, m := range available {
		byName[m.Name] = m
	}

	profile := ProfileFor(task)
	if m, ok := byName[profile.Primary]; ok {
		return m, nil
	}

	for _, name := range profile.Fallbacks {
		if m, ok := byName[name]; ok {
			c.log.Info("primary model unavailable, using fallback",
				"task", task, "primary", profile.Primary, "selected", name)
			return m, nil
		}
	}

	c.log.Warn("no preferred model available, using first discovered",
		"task", task, "primary", profile.Primary, "selected", available[0].Name)
	return available[0], nil
}

func (c *Catalog) refresh(ctx context.Context) ([]ModelDescriptor, error) {
	raw, err := c.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}

	models := make([]ModelDescriptor, 0, len(raw))
	for _, m := range raw {
		if !m.SupportsGeneration() {
			continue
		}
		models = append(models, ModelDescriptor{
			Name:             shortName(m.Name),
			DisplayName:      m.DisplayName,
			InputTokenLimit:  m.InputTokenLimit,
			OutputTokenLimit: m.OutputTokenLimit,
			Temperature:      m.Temperature,
			TopP:             m.TopP,
			TopK:             m.TopK,
		})
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("provider listed no generation-capable models")
	}

	c.store(models)
	return models, nil
}

// probe issues one trivial generation per candidate and keeps the
// survivors. Used only when the listing endpoint is down.
func (c *Catalog) probe(ctx context.Context) []ModelDescriptor {
	var alive []ModelDescriptor
	for _, name := range probeCandidates {
		_, err := c.client.GenerateContent(ctx, name, provider.GenerateRequest{
			Prompt:          "ping",
			MaxOutputTokens: 1,
		})
		if err != nil {
			c.log.Debug("probe failed", "model", name, "error", err)
			continue
		}
		alive = append(alive, ModelDescriptor{Name: name})
	}
	if len(alive) > 0 {
		c.log.Info("model discovery down, probed candidates", "alive", len(alive))
	}
	return alive
}

func (c *Catalog) store(models []ModelDescriptor) {
	c.mu.Lock()
	c.cached = models
	c.cachedAt = c.now()
	c.mu.Unlock()
}

// Invalidate clears the cache, forcing the next read to refresh.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.cachedAt = time.Time{}
	c.cached = nil
	c.mu.Unlock()
}

// shortName strips the provider's "models/" resource prefix.
func shortName(name string) string {
	return strings.TrimPrefix(name, "models/")
}
