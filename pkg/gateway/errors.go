package gateway

import "errors"

var (
	// ErrNotConfigured is returned when a gateway is missing required configuration
	ErrNotConfigured = errors.New("payment gateway not configured")

	// ErrGateway is returned when a gateway call fails; the wrapped message
	// is gateway-supplied and safe to show verbatim
	ErrGateway = errors.New("payment gateway error")

	// ErrInvalidClientSecret is returned when confirmation material cannot be
	// parsed into a payment intent reference
	ErrInvalidClientSecret = errors.New("invalid client secret")
)
