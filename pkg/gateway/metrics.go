package gateway

import "time"

// Metrics defines the interface for tracking payment gateway operations.
// All methods are optional - gateways should gracefully handle nil metrics.
type Metrics interface {
	// RecordAPICall records an API call to the payment gateway.
	// endpoint: The API endpoint called (e.g., "/customers", "/prices")
	// status: "success" or an error class (e.g., "error", "not_found")
	RecordAPICall(provider, endpoint, status string)

	// RecordAPICallDuration records how long an API call took.
	RecordAPICallDuration(provider, endpoint string, duration time.Duration)

	// RecordConfirmation records a payment-confirmation attempt and its
	// resulting intent status (e.g., "succeeded", "requires_action").
	RecordConfirmation(provider, status string)

	// RecordCancellation records a cancellation and which path produced it
	// ("gateway" or "forced"). The path is a domain decision, so it is
	// recorded by the subscription service rather than the gateway adapter.
	RecordCancellation(provider, path, status string)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordAPICall(_, _, _ string)                       {}
func (n *NoopMetrics) RecordAPICallDuration(_, _ string, _ time.Duration) {}
func (n *NoopMetrics) RecordConfirmation(_, _ string)                     {}
func (n *NoopMetrics) RecordCancellation(_, _, _ string)                  {}
