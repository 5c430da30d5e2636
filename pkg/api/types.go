package api

// SubscribeRequest is the envelope accepted by the subscription function endpoint
type SubscribeRequest struct {
	Action         string `json:"action"`
	TierID         string `json:"tierId,omitempty"`
	CreatorID      string `json:"creatorId,omitempty"`
	SubscriptionID string `json:"subscriptionId,omitempty"`
}

// SubscribeResponse is returned when a subscription is created
type SubscribeResponse struct {
	SubscriptionID string `json:"subscriptionId"`
	ClientSecret   string `json:"clientSecret"`
}

// CancelResponse is returned when a gateway-driven cancellation succeeds
type CancelResponse struct {
	Success bool `json:"success"`
}

// ForceCancelRequest is the envelope accepted by the manual cancellation endpoint
type ForceCancelRequest struct {
	CreatorID string `json:"creatorId"`
}

// ForceCancelResponse carries the human-readable confirmation message
type ForceCancelResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the JSON error envelope
type ErrorResponse struct {
	Error string `json:"error"`
}
