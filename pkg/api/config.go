package api

import (
	"fmt"
	"net/http"

	"github.com/Ouyang184/fanrealms-universe-access-sub005/pkg/subscription"
)

// Config holds configuration for the subscription API handler
type Config struct {
	// Service is the subscription service instance (required)
	Service *subscription.Service

	// GetPrincipal extracts the authenticated principal from an HTTP request (required)
	// Return nil if the request carries no authenticated user
	GetPrincipal func(*http.Request) *subscription.Principal

	// OnError handles errors after status mapping
	// If nil, a JSON error envelope is written
	OnError func(http.ResponseWriter, *http.Request, error)

	// Logger receives request failures
	// If nil, logging is disabled
	Logger subscription.Logger
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Service == nil {
		return fmt.Errorf("service is required")
	}
	if c.GetPrincipal == nil {
		return fmt.Errorf("getPrincipal is required")
	}
	return nil
}

// NewHandler creates a new subscription API handler with the given configuration
func NewHandler(config Config) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.Logger == nil {
		config.Logger = &subscription.NoopLogger{}
	}
	return &Handler{
		config: config,
	}, nil
}

// Helper functions for common principal extraction patterns

// FromHeaders returns a GetPrincipal function that reads user ID and email
// from the given headers. Suitable behind a trusted auth proxy.
func FromHeaders(idHeader, emailHeader string) func(*http.Request) *subscription.Principal {
	return func(r *http.Request) *subscription.Principal {
		id := r.Header.Get(idHeader)
		if id == "" {
			return nil
		}
		return &subscription.Principal{
			ID:    id,
			Email: r.Header.Get(emailHeader),
		}
	}
}

// FromContext returns a GetPrincipal function that reads the principal from
// the request context, as set by upstream auth middleware.
func FromContext(key interface{}) func(*http.Request) *subscription.Principal {
	return func(r *http.Request) *subscription.Principal {
		if p, ok := r.Context().Value(key).(*subscription.Principal); ok {
			return p
		}
		return nil
	}
}
