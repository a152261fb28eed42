package budget

import (
	"sync"
	"testing"
)

func TestTrackerConcurrency(t *testing.T) {
	tracker := NewTracker(1000, map[string]float64{
		"quick-summary": 0.5,
		"quiz-generation": 0.5,
	})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.RecordCall("quick-summary", "gemini-2.0-flash")
			tracker.CanMakeCall("quick-summary")
			tracker.GetUsage("quick-summary")
		}()
	}
	wg.Wait()

	usage := tracker.GetUsage("quick-summary")
	if usage.TotalCalls != 100 {
		t.Errorf("Expected 100 calls, got %d", usage.TotalCalls)
	}
}

func TestTrackerLimits(t *testing.T) {
	tracker := NewTracker(1000, map[string]float64{
		"quiz-generation": 0.1, // 100 calls
	})

	for i := 0; i < 100; i++ {
		if !tracker.CanMakeCall("quiz-generation") {
			t.Errorf("Should allow call %d", i)
		}
		tracker.RecordCall("quiz-generation", "gemini-2.0-pro")
	}

	if tracker.CanMakeCall("quiz-generation") {
		t.Error("Should deny call 101")
	}
}

func TestTrackerThrottle(t *testing.T) {
	tracker := NewTracker(1000, map[string]float64{
		"flashcard-generation": 0.1, // 100 calls
	})

	if delay := tracker.GetThrottleDelay("flashcard-generation"); delay != 0 {
		t.Error("Expected 0 delay at 0% usage")
	}

	for range 80 {
		tracker.RecordCall("flashcard-generation", "gemini-2.0-flash")
	}

	if delay := tracker.GetThrottleDelay("flashcard-generation"); delay == 0 {
		t.Error("Expected throttle delay at 80% usage")
	}
}

func TestTrackerUnknownTaskDefaults(t *testing.T) {
	tracker := NewTracker(1000, nil)

	if !tracker.CanMakeCall("streaming-qa") {
		t.Error("unknown task should be allowed")
	}
	tracker.RecordCall("streaming-qa", "gemini-2.0-flash")
	usage := tracker.GetUsage("streaming-qa")
	if usage.DailyLimit != 100 {
		t.Errorf("default allocation = %d, want dailyLimit/10", usage.DailyLimit)
	}
}
