// Package executor runs AI operations with retry, backoff and model
// fallback.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/studyflow/processor/internal/ai/catalog"
	"github.com/studyflow/processor/internal/ai/quota"
	"github.com/studyflow/processor/internal/metrics"
)

// RetryConfig defines retry behavior for one model.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialDelay    time.Duration `yaml:"initial_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
	BackoffMultiple float64       `yaml:"backoff_multiple"`
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     3,
	InitialDelay:    1 * time.Second,
	MaxDelay:        10 * time.Second,
	BackoffMultiple: 2.0,
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultRetryConfig.MaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = DefaultRetryConfig.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultRetryConfig.MaxDelay
	}
	if c.BackoffMultiple <= 1 {
		c.BackoffMultiple = DefaultRetryConfig.BackoffMultiple
	}
	return c
}

// Operation is the caller-supplied unit of work, invoked with the model
// selected for this attempt.
type Operation func(ctx context.Context, model catalog.ModelDescriptor) (any, error)

// Options tunes a single execution.
type Options struct {
	// FallbackChain overrides the task profile's model order when set.
	FallbackChain []string

	// Retry overrides the executor's retry config when any field is set.
	Retry *RetryConfig
}

// Outcome is the result of one executed operation.
type Outcome struct {
	Payload         any
	ModelUsed       string
	AttemptsMade    int
	Elapsed         time.Duration
	ModelsAttempted []string
}

// Executor coordinates model selection, retries and fallback. Models are
// tried strictly sequentially: concurrent multi-model calls would burn
// quota against several models for one logical operation.
type Executor struct {
	catalog *catalog.Catalog
	retry   RetryConfig
	log     *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates an executor around a model catalog.
func New(cat *catalog.Catalog, retry RetryConfig) *Executor {
	return &Executor{
		catalog: cat,
		retry:   retry.withDefaults(),
		log:     slog.Default(),
		sleep:   sleepCtx,
	}
}

// SetSleep overrides the backoff sleep, for tests.
func (e *Executor) SetSleep(fn func(ctx context.Context, d time.Duration) error) {
	e.sleep = fn
}

// ExecuteWithFallback runs op against the task's model chain.
func (e *Executor) ExecuteWithFallback(
	ctx context.Context,
	task catalog.TaskType,
	op Operation,
	opts Options,
) (*Outcome, error) {
	cfg := e.retry
	if opts.Retry != nil {
		cfg = opts.Retry.withDefaults()
	}

	chain := opts.FallbackChain
	if len(chain) == 0 {
		chain = catalog.ProfileFor(task).Chain()
	}

	available, err := e.catalog.ListAvailable(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("resolve models for %s: %w", task, err)
	}
	byName := make(map[string]catalog.ModelDescriptor, len(available))
	for _, m := range available {
		byName[m.Name] = m
	}

	start := time.Now()
	var (
		attempted []string
		attempts  int
		lastErr   error
	)

	for i, name := range chain {
		model, ok := byName[name]
		if !ok {
			// Chain entries not in the discovered set are still tried:
			// discovery can lag behind what the provider actually serves.
			model = catalog.ModelDescriptor{Name: name}
		}
		attempted = append(attempted, name)
		if i > 0 {
			metrics.AIFallbacksTotal.WithLabelValues(string(task), chain[i-1], name).Inc()
		}

		payload, modelAttempts, err := e.runModel(ctx, task, model, op, cfg)
		attempts += modelAttempts
		if err == nil {
			elapsed := time.Since(start)
			metrics.AIOutcomesTotal.WithLabelValues(string(task), "success").Inc()
			metrics.AILatency.WithLabelValues(string(task)).Observe(elapsed.Seconds())
			return &Outcome{
				Payload:         payload,
				ModelUsed:       name,
				AttemptsMade:    attempts,
				Elapsed:         elapsed,
				ModelsAttempted: attempted,
			}, nil
		}

		lastErr = err
		switch quota.Classify(err) {
		case quota.NeedsFallback:
			e.log.Info("model unavailable, trying next in chain",
				"task", task, "model", name, "error", err)
			continue
		case quota.QuotaExceeded:
			metrics.AIOutcomesTotal.WithLabelValues(string(task), "quota_exceeded").Inc()
			return nil, &QuotaPauseError{
				Task: task, Model: name,
				Info: quota.Info(err, time.Now()),
				Err:  err,
			}
		case quota.Fatal:
			metrics.AIOutcomesTotal.WithLabelValues(string(task), "fatal").Inc()
			return nil, fmt.Errorf("fatal error from model %s: %w", name, err)
		default:
			// Retries exhausted on this model; move down the chain.
			e.log.Warn("model retries exhausted, trying next in chain",
				"task", task, "model", name, "attempts", modelAttempts, "error", err)
		}
	}

	metrics.AIOutcomesTotal.WithLabelValues(string(task), "exhausted").Inc()
	return nil, &ExhaustedError{
		Task:            task,
		ModelsAttempted: attempted,
		Attempts:        attempts,
		Elapsed:         time.Since(start),
		LastErr:         lastErr,
	}
}

// ExecuteWithRetriesOnly applies the backoff policy to a single target,
// for call sites that do not need model fallback.
func (e *Executor) ExecuteWithRetriesOnly(
	ctx context.Context,
	op func(ctx context.Context) (any, error),
	opts Options,
) (*Outcome, error) {
	cfg := e.retry
	if opts.Retry != nil {
		cfg = opts.Retry.withDefaults()
	}

	start := time.Now()
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := e.sleep(ctx, backoffDelay(attempt, cfg)); err != nil {
				return nil, err
			}
		}

		payload, err := op(ctx)
		if err == nil {
			return &Outcome{
				Payload:      payload,
				AttemptsMade: attempt + 1,
				Elapsed:      time.Since(start),
			}, nil
		}
		lastErr = err

		if c := quota.Classify(err); c == quota.Fatal || c == quota.NeedsFallback {
			return nil, err
		}
		if c := quota.Classify(err); c == quota.QuotaExceeded {
			return nil, &QuotaPauseError{Info: quota.Info(err, time.Now()), Err: err}
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// runModel runs the attempt loop for one model. Returns the attempts
// consumed; NeedsFallback and Fatal abandon remaining attempts.
func (e *Executor) runModel(
	ctx context.Context,
	task catalog.TaskType,
	model catalog.ModelDescriptor,
	op Operation,
	cfg RetryConfig,
) (any, int, error) {
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := e.sleep(ctx, backoffDelay(attempt, cfg)); err != nil {
				return nil, attempt, err
			}
		}

		metrics.AIAttemptsTotal.WithLabelValues(string(task), model.Name).Inc()
		payload, err := op(ctx, model)
		if err == nil {
			return payload, attempt + 1, nil
		}
		lastErr = err

		if c := quota.Classify(err); c != quota.Retryable {
			return nil, attempt + 1, err
		}
	}

	return nil, cfg.MaxAttempts, lastErr
}

// backoffDelay computes the capped exponential delay before attempt n
// (1-indexed): InitialDelay * BackoffMultiple^(n-1), capped at MaxDelay.
func backoffDelay(attempt int, cfg RetryConfig) time.Duration {
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffMultiple, float64(attempt-1))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}

// sleepCtx is a cancellable sleep. The context doubles as the
// cross-cutting cancellation token: a shutdown aborts the backoff wait.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
