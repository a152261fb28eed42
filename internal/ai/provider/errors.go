package provider

import (
	"errors"
	"fmt"
)

// APIError is a structured provider error. StatusCode and Status come from
// the HTTP layer; QuotaMetric/QuotaLimit/RetryAfterSeconds are filled when
// the provider reports a quota violation.
type APIError struct {
	StatusCode        int
	Status            string // provider status string, e.g. "RESOURCE_EXHAUSTED"
	Message           string
	QuotaMetric       string
	QuotaLimit        int
	RetryAfterSeconds int
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("provider error %d (%s): %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("provider error %d: %s", e.StatusCode, e.Message)
}

// AsAPIError unwraps err to an *APIError if one is in the chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
