// Package health reports the processing core's operational status over
// HTTP and serves the Prometheus scrape endpoint.
package health

// SystemStatus is the aggregated health state.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ComponentHealth is the state of one dependency.
type ComponentHealth struct {
	Name   string       `json:"name"`
	Status SystemStatus `json:"status"`
	Detail string       `json:"detail,omitempty"`
}

// Report is the full health report.
type Report struct {
	SystemStatus    SystemStatus               `json:"system_status"`
	Components      map[string]ComponentHealth `json:"components"`
	PausedForQuota  int                        `json:"paused_for_quota"`
	ModelsAvailable int                        `json:"models_available"`
	QuotaUsage      map[string]float64         `json:"quota_usage_percent,omitempty"`
}
