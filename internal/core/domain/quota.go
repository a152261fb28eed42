package domain

import "time"

// QuotaInfo describes a quota-exceeded condition attached to a paused
// stage. EstimatedRecovery, when set, is always in the future at the
// moment it is written.
type QuotaInfo struct {
	QuotaExceeded     bool       `json:"quota_exceeded"`
	Metric            string     `json:"metric,omitempty"`
	Limit             int        `json:"limit,omitempty"`
	RetryAfterSeconds int        `json:"retry_after_seconds,omitempty"`
	EstimatedRecovery *time.Time `json:"estimated_recovery,omitempty"`
	SuggestedAction   string     `json:"suggested_action,omitempty"`
	RawMessage        string     `json:"raw_message,omitempty"`
}

// RecoveryDue reports whether the recovery estimate has passed. A missing
// estimate counts as due so stuck items are still retried.
func (q *QuotaInfo) RecoveryDue(now time.Time) bool {
	if q == nil || q.EstimatedRecovery == nil {
		return true
	}
	return !now.Before(*q.EstimatedRecovery)
}
