package quota

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/studyflow/processor/internal/ai/provider"
)

func TestClassifyMessages(t *testing.T) {
	tests := []struct {
		err    error
		expect Classification
	}{
		{errors.New("429 Too Many Requests"), Retryable},
		{errors.New("the model is overloaded, please try again"), Retryable},
		{errors.New("context deadline exceeded"), Retryable},
		{errors.New("503 Service Unavailable"), Retryable},
		{errors.New("quota exceeded for metric generate_requests_per_day"), QuotaExceeded},
		{errors.New("daily limit reached"), QuotaExceeded},
		{errors.New("RESOURCE_EXHAUSTED"), QuotaExceeded},
		{errors.New("404 model not found"), NeedsFallback},
		{errors.New("model gemini-ultra does not exist"), NeedsFallback},
		{errors.New("requested model is not supported"), NeedsFallback},
		{errors.New("invalid request: prompt is empty"), Fatal},
		{errors.New("API key not valid"), Fatal},
	}

	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.expect {
			t.Errorf("Classify(%q) = %s, want %s", tt.err, got, tt.expect)
		}
	}
}

func TestClassifyStructured(t *testing.T) {
	tests := []struct {
		name   string
		err    *provider.APIError
		expect Classification
	}{
		{"quota 429", &provider.APIError{StatusCode: 429, Status: "RESOURCE_EXHAUSTED", QuotaMetric: "generate_requests_per_day"}, QuotaExceeded},
		{"plain 429", &provider.APIError{StatusCode: 429, Message: "slow down"}, Retryable},
		{"missing model", &provider.APIError{StatusCode: 404, Message: "model not found"}, NeedsFallback},
		{"server error", &provider.APIError{StatusCode: 500, Message: "internal"}, Retryable},
		{"unavailable", &provider.APIError{StatusCode: 503}, Retryable},
		{"bad request", &provider.APIError{StatusCode: 400, Message: "invalid argument"}, Fatal},
		{"unauthorized", &provider.APIError{StatusCode: 401, Message: "bad key"}, Fatal},
	}

	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.expect {
			t.Errorf("%s: Classify = %s, want %s", tt.name, got, tt.expect)
		}
	}
}

func TestClassifyWrappedAPIError(t *testing.T) {
	base := &provider.APIError{StatusCode: 429, Status: "RESOURCE_EXHAUSTED"}
	wrapped := fmt.Errorf("summarize: %w", base)
	if got := Classify(wrapped); got != QuotaExceeded {
		t.Errorf("Classify(wrapped) = %s, want %s", got, QuotaExceeded)
	}
}

func TestEstimateRecoveryHonorsRetryAfter(t *testing.T) {
	now := time.Now()
	err := &provider.APIError{StatusCode: 429, RetryAfterSeconds: 90}

	got := EstimateRecovery(err, now)
	if want := now.Add(90 * time.Second); !got.Equal(want) {
		t.Errorf("EstimateRecovery = %v, want %v", got, want)
	}
}

func TestEstimateRecoveryAlwaysFuture(t *testing.T) {
	now := time.Now()
	got := EstimateRecovery(errors.New("quota exceeded"), now)
	if !got.After(now) {
		t.Errorf("EstimateRecovery = %v, not after %v", got, now)
	}
	// Daily boundary is at most 24h away.
	if got.After(now.Add(24*time.Hour + time.Hour)) {
		t.Errorf("EstimateRecovery = %v, too far from %v", got, now)
	}
}

func TestInfoCopiesQuotaFields(t *testing.T) {
	now := time.Now()
	err := &provider.APIError{
		StatusCode:        429,
		Status:            "RESOURCE_EXHAUSTED",
		Message:           "quota exceeded",
		QuotaMetric:       "generate_requests_per_day",
		QuotaLimit:        250,
		RetryAfterSeconds: 3600,
	}

	info := Info(err, now)
	if !info.QuotaExceeded {
		t.Error("expected QuotaExceeded flag")
	}
	if info.Metric != "generate_requests_per_day" || info.Limit != 250 {
		t.Errorf("quota fields not copied: %+v", info)
	}
	if info.EstimatedRecovery == nil || !info.EstimatedRecovery.After(now) {
		t.Error("expected future recovery estimate")
	}
}
