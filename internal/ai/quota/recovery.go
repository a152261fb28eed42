package quota

import (
	"time"

	"github.com/studyflow/processor/internal/ai/provider"
	"github.com/studyflow/processor/internal/core/domain"
)

// resetLocation is the timezone whose midnight resets the provider's
// free-tier daily quotas.
var resetLocation = func() *time.Location {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		return time.UTC
	}
	return loc
}()

// EstimateRecovery computes when a quota-exceeded condition is expected to
// clear. An explicit retry-after hint wins; otherwise the next daily reset
// boundary is assumed. The result is always strictly after now.
func EstimateRecovery(err error, now time.Time) time.Time {
	if apiErr, ok := provider.AsAPIError(err); ok && apiErr.RetryAfterSeconds > 0 {
		return now.Add(time.Duration(apiErr.RetryAfterSeconds) * time.Second)
	}
	return nextDailyReset(now)
}

func nextDailyReset(now time.Time) time.Time {
	local := now.In(resetLocation)
	reset := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, resetLocation)
	return reset
}

// Info builds the QuotaInfo metadata attached to a paused stage.
func Info(err error, now time.Time) *domain.QuotaInfo {
	recovery := EstimateRecovery(err, now)
	info := &domain.QuotaInfo{
		QuotaExceeded:     true,
		EstimatedRecovery: &recovery,
		SuggestedAction:   "processing resumes automatically once the provider quota resets",
		RawMessage:        err.Error(),
	}
	if apiErr, ok := provider.AsAPIError(err); ok {
		info.Metric = apiErr.QuotaMetric
		info.Limit = apiErr.QuotaLimit
		info.RetryAfterSeconds = apiErr.RetryAfterSeconds
	}
	return info
}
