// Package quota classifies provider errors and estimates quota recovery.
//
// Classification is the single source of truth for both the executor
// (retry vs fallback vs abort) and the pipeline (pause vs hard failure).
package quota

import (
	"net/http"
	"strings"

	"github.com/studyflow/processor/internal/ai/provider"
)

// Classification determines how to handle a provider error.
type Classification int

const (
	// Retryable: transient overload, timeout, rate limit. Retried with
	// backoff against the same model.
	Retryable Classification = iota

	// NeedsFallback: the requested model does not exist or is
	// unsupported. Skip remaining attempts and move to the next model.
	NeedsFallback

	// QuotaExceeded: a periodic usage cap was hit. Pauses the pipeline
	// with a recovery estimate instead of failing.
	QuotaExceeded

	// Fatal: everything else. Propagated without retry.
	Fatal
)

func (c Classification) String() string {
	switch c {
	case Retryable:
		return "retryable"
	case NeedsFallback:
		return "needs_fallback"
	case QuotaExceeded:
		return "quota_exceeded"
	default:
		return "fatal"
	}
}

// Classify determines the classification for a provider error. Structured
// APIError codes are authoritative; substring matching only covers errors
// that arrive wrapped or stripped of structure.
func Classify(err error) Classification {
	if err == nil {
		return Fatal
	}

	if apiErr, ok := provider.AsAPIError(err); ok {
		return classifyAPIError(apiErr)
	}

	return classifyMessage(err.Error())
}

func classifyAPIError(e *provider.APIError) Classification {
	switch e.StatusCode {
	case http.StatusTooManyRequests:
		if e.QuotaMetric != "" || e.Status == "RESOURCE_EXHAUSTED" || mentionsDailyQuota(e.Message) {
			return QuotaExceeded
		}
		return Retryable
	case http.StatusNotFound:
		return NeedsFallback
	case http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return Retryable
	}

	if e.Status == "RESOURCE_EXHAUSTED" {
		return QuotaExceeded
	}
	if e.Status == "UNAVAILABLE" || e.Status == "DEADLINE_EXCEEDED" {
		return Retryable
	}
	return Fatal
}

func classifyMessage(s string) Classification {
	sLower := strings.ToLower(s)

	// Quota (periodic caps, distinct from transient overload)
	if mentionsDailyQuota(sLower) {
		return QuotaExceeded
	}

	// Model missing or unsupported
	if strings.Contains(s, "404") ||
		strings.Contains(sLower, "not found") ||
		strings.Contains(sLower, "not available") ||
		strings.Contains(sLower, "is not supported") ||
		(strings.Contains(sLower, "model") && strings.Contains(sLower, "does not exist")) {
		return NeedsFallback
	}

	// Transient overload, rate limiting, timeouts
	if strings.Contains(s, "429") || strings.Contains(sLower, "too many requests") ||
		strings.Contains(s, "503") || strings.Contains(sLower, "overloaded") ||
		strings.Contains(sLower, "rate limit") ||
		strings.Contains(sLower, "timeout") ||
		strings.Contains(sLower, "deadline exceeded") ||
		strings.Contains(sLower, "try again") ||
		strings.Contains(sLower, "unavailable") ||
		strings.Contains(s, "500") || strings.Contains(s, "502") || strings.Contains(s, "504") {
		return Retryable
	}

	return Fatal
}

func mentionsDailyQuota(s string) bool {
	sLower := strings.ToLower(s)
	return strings.Contains(sLower, "quota") ||
		strings.Contains(sLower, "resource_exhausted") ||
		strings.Contains(sLower, "daily limit") ||
		strings.Contains(sLower, "requests per day") ||
		strings.Contains(sLower, "count exceeded")
}
