// Package http provides HTTP middleware for subscription-gated access
package http

import (
	"context"
	"net/http"

	"github.com/Ouyang184/fanrealms-universe-access-sub005/pkg/subscription"
)

// AccessChecker reports whether a user holds an active subscription to a creator.
// *subscription.Service satisfies this interface.
type AccessChecker interface {
	HasActiveSubscription(ctx context.Context, userID, creatorID string) (bool, error)
}

// UserIDExtractor extracts the user ID from an HTTP request
// Return empty string if user is not authenticated
type UserIDExtractor func(r *http.Request) string

// CreatorIDExtractor extracts the creator ID whose content is being accessed
type CreatorIDExtractor func(r *http.Request) string

// Config holds middleware configuration
type Config struct {
	// Checker verifies subscription access (required)
	Checker AccessChecker

	// GetUserID extracts user ID from request (required)
	GetUserID UserIDExtractor

	// GetCreatorID extracts creator ID from request (required)
	GetCreatorID CreatorIDExtractor

	// OnUnauthorized is called when user is not authenticated
	// If nil, returns 401 Unauthorized
	OnUnauthorized func(w http.ResponseWriter, r *http.Request)

	// OnDenied is called when the user has no active subscription
	// If nil, returns 403 Forbidden
	OnDenied func(w http.ResponseWriter, r *http.Request)

	// OnError is called when an internal error occurs
	// If nil, returns 500 Internal Server Error
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

// Middleware creates an HTTP middleware that requires an active subscription
func Middleware(config Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Extract user ID
			userID := config.GetUserID(r)
			if userID == "" {
				if config.OnUnauthorized != nil {
					config.OnUnauthorized(w, r)
				} else {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
				}
				return
			}

			creatorID := config.GetCreatorID(r)
			if creatorID == "" {
				if config.OnError != nil {
					config.OnError(w, r, subscription.ErrTierNotFound)
				} else {
					http.Error(w, "Bad Request", http.StatusBadRequest)
				}
				return
			}

			ok, err := config.Checker.HasActiveSubscription(r.Context(), userID, creatorID)
			if err != nil {
				if config.OnError != nil {
					config.OnError(w, r, err)
				} else {
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
				return
			}
			if !ok {
				if config.OnDenied != nil {
					config.OnDenied(w, r)
				} else {
					http.Error(w, "Subscription required", http.StatusForbidden)
				}
				return
			}

			// Active subscription confirmed, proceed to handler
			next.ServeHTTP(w, r)
		})
	}
}

// HandlerFunc creates an HTTP middleware that requires an active subscription (HandlerFunc version)
func HandlerFunc(config Config) func(http.HandlerFunc) http.HandlerFunc {
	middleware := Middleware(config)
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			middleware(next).ServeHTTP(w, r)
		}
	}
}

// Common extractors for convenience

// ContextKey is a type for context keys
type ContextKey string

const (
	// UserIDKey is the context key for user ID
	UserIDKey ContextKey = "subscription:userID"
)

// FromContext returns a UserIDExtractor that gets user ID from request context
func FromContext(key ContextKey) UserIDExtractor {
	return func(r *http.Request) string {
		if userID, ok := r.Context().Value(key).(string); ok {
			return userID
		}
		return ""
	}
}

// FromHeader returns a UserIDExtractor that gets user ID from a header
func FromHeader(headerName string) UserIDExtractor {
	return func(r *http.Request) string {
		return r.Header.Get(headerName)
	}
}

// CreatorFromHeader returns a CreatorIDExtractor that reads a header
func CreatorFromHeader(headerName string) CreatorIDExtractor {
	return func(r *http.Request) string {
		return r.Header.Get(headerName)
	}
}

// CreatorFromQuery returns a CreatorIDExtractor that reads a query parameter
func CreatorFromQuery(param string) CreatorIDExtractor {
	return func(r *http.Request) string {
		return r.URL.Query().Get(param)
	}
}

// FixedCreator returns a CreatorIDExtractor that always returns the same creator
func FixedCreator(creatorID string) CreatorIDExtractor {
	return func(r *http.Request) string {
		return creatorID
	}
}

// WithUserID adds user ID to request context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}
