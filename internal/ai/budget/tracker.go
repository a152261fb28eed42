// Package budget tracks daily AI call usage per task type.
//
// The classifier reacts to quota errors after the fact; the tracker is
// the proactive side: stage processors consult it before expensive
// generations and back off as the daily allocation fills up.
package budget

import (
	"sync"
	"time"
)

// UsageStats holds usage statistics for one task type.
type UsageStats struct {
	TotalCalls      int
	CallsThisHour   int
	DailyLimit      int
	RemainingCalls  int
	UsagePercentage float64
	NextResetAt     time.Time
}

// Tracker manages daily call budgets.
type Tracker interface {
	RecordCall(task, model string)
	GetUsage(task string) UsageStats
	CanMakeCall(task string) bool
	GetThrottleDelay(task string) time.Duration
	Reset()
}

type taskBudget struct {
	totalCalls      int
	callsThisHour   int
	hourStartTime   time.Time
	modelCalls      map[string]int
	dailyAllocation int
}

// DefaultTracker implements Tracker with per-task accounting and a
// midnight reset.
type DefaultTracker struct {
	mu            sync.RWMutex
	taskUsage     map[string]*taskBudget
	dailyLimit    int
	resetTime     time.Time
	resetInterval time.Duration
}

// NewTracker creates a tracker. allocation maps task type to the share of
// dailyLimit it may consume.
func NewTracker(dailyLimit int, allocation map[string]float64) *DefaultTracker {
	now := time.Now()
	nextMidnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())

	t := &DefaultTracker{
		taskUsage:     make(map[string]*taskBudget),
		dailyLimit:    dailyLimit,
		resetTime:     nextMidnight,
		resetInterval: 24 * time.Hour,
	}

	for task, share := range allocation {
		t.taskUsage[task] = &taskBudget{
			dailyAllocation: int(float64(dailyLimit) * share),
			hourStartTime:   now,
			modelCalls:      make(map[string]int),
		}
	}

	return t
}

// RecordCall records one provider call against a task's budget.
func (t *DefaultTracker) RecordCall(task, model string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if time.Now().After(t.resetTime) {
		t.resetUnsafe()
	}

	budget, ok := t.taskUsage[task]
	if !ok {
		budget = &taskBudget{
			dailyAllocation: t.dailyLimit / 10,
			hourStartTime:   time.Now(),
			modelCalls:      make(map[string]int),
		}
		t.taskUsage[task] = budget
	}

	if time.Since(budget.hourStartTime) >= time.Hour {
		budget.callsThisHour = 0
		budget.hourStartTime = time.Now()
	}

	budget.totalCalls++
	budget.callsThisHour++
	budget.modelCalls[model]++
}

// GetUsage returns usage statistics for a task type.
func (t *DefaultTracker) GetUsage(task string) UsageStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	budget, ok := t.taskUsage[task]
	if !ok {
		defaultLimit := t.dailyLimit / 10
		return UsageStats{
			DailyLimit:     defaultLimit,
			RemainingCalls: defaultLimit,
			NextResetAt:    t.resetTime,
		}
	}

	remaining := budget.dailyAllocation - budget.totalCalls
	if remaining < 0 {
		remaining = 0
	}

	usagePercentage := 0.0
	if budget.dailyAllocation > 0 {
		usagePercentage = float64(budget.totalCalls) / float64(budget.dailyAllocation) * 100
	}

	return UsageStats{
		TotalCalls:      budget.totalCalls,
		CallsThisHour:   budget.callsThisHour,
		DailyLimit:      budget.dailyAllocation,
		RemainingCalls:  remaining,
		UsagePercentage: usagePercentage,
		NextResetAt:     t.resetTime,
	}
}

// CanMakeCall checks if a call fits within the task's daily allocation.
func (t *DefaultTracker) CanMakeCall(task string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	budget, ok := t.taskUsage[task]
	if !ok {
		return true
	}
	return budget.totalCalls < budget.dailyAllocation
}

// GetThrottleDelay returns how long to wait before the next call.
func (t *DefaultTracker) GetThrottleDelay(task string) time.Duration {
	usage := t.GetUsage(task)

	switch {
	case usage.UsagePercentage < 50:
		return 0
	case usage.UsagePercentage < 70:
		return 1 * time.Second
	case usage.UsagePercentage < 90:
		return 3 * time.Second
	case usage.UsagePercentage < 100:
		return 10 * time.Second
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	return time.Until(t.resetTime)
}

// Reset resets all usage counters.
func (t *DefaultTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetUnsafe()
}

func (t *DefaultTracker) resetUnsafe() {
	for _, budget := range t.taskUsage {
		budget.totalCalls = 0
		budget.callsThisHour = 0
		budget.hourStartTime = time.Now()
		budget.modelCalls = make(map[string]int)
	}

	now := time.Now()
	t.resetTime = time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
}
