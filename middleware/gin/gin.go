// Package gin provides Gin middleware for subscription-gated access
package gin

import (
	"context"
	"net/http"

	gongin "github.com/gin-gonic/gin"
)

// AccessChecker reports whether a user holds an active subscription to a creator.
// *subscription.Service satisfies this interface.
type AccessChecker interface {
	HasActiveSubscription(ctx context.Context, userID, creatorID string) (bool, error)
}

// UserIDExtractor extracts the user ID from a Gin context
// Return empty string if user is not authenticated
type UserIDExtractor func(c *gongin.Context) string

// CreatorIDExtractor extracts the creator ID whose content is being accessed
type CreatorIDExtractor func(c *gongin.Context) string

// Config holds middleware configuration
type Config struct {
	// Checker verifies subscription access (required)
	Checker AccessChecker

	// GetUserID extracts user ID from context (required)
	GetUserID UserIDExtractor

	// GetCreatorID extracts creator ID from context (required)
	GetCreatorID CreatorIDExtractor

	// OnUnauthorized is called when user is not authenticated
	// If nil, returns 401 JSON
	OnUnauthorized func(c *gongin.Context)

	// OnDenied is called when the user has no active subscription
	// If nil, returns 403 JSON
	OnDenied func(c *gongin.Context)

	// OnError is called when an internal error occurs
	// If nil, returns 500 JSON
	OnError func(c *gongin.Context, err error)
}

// Middleware creates a Gin middleware that requires an active subscription
func Middleware(cfg Config) gongin.HandlerFunc {
	// Validate required configuration at startup (fail fast)
	if cfg.Checker == nil {
		panic("subscription/gin: Config.Checker is required")
	}
	if cfg.GetUserID == nil {
		panic("subscription/gin: Config.GetUserID is required")
	}
	if cfg.GetCreatorID == nil {
		panic("subscription/gin: Config.GetCreatorID is required")
	}

	return func(c *gongin.Context) {
		userID := cfg.GetUserID(c)
		if userID == "" {
			if cfg.OnUnauthorized != nil {
				cfg.OnUnauthorized(c)
			} else {
				c.JSON(http.StatusUnauthorized, gongin.H{"error": "Unauthorized"})
			}
			c.Abort()
			return
		}

		creatorID := cfg.GetCreatorID(c)
		if creatorID == "" {
			c.JSON(http.StatusBadRequest, gongin.H{"error": "Bad Request"})
			c.Abort()
			return
		}

		ok, err := cfg.Checker.HasActiveSubscription(c.Request.Context(), userID, creatorID)
		if err != nil {
			if cfg.OnError != nil {
				cfg.OnError(c, err)
			} else {
				c.JSON(http.StatusInternalServerError, gongin.H{"error": "Internal Server Error"})
			}
			c.Abort()
			return
		}
		if !ok {
			if cfg.OnDenied != nil {
				cfg.OnDenied(c)
			} else {
				c.JSON(http.StatusForbidden, gongin.H{"error": "Subscription required"})
			}
			c.Abort()
			return
		}

		c.Next()
	}
}

// Convenience extractors for User ID

// FromContext returns a UserIDExtractor that gets user ID from Gin context values
// set by auth middleware via c.Set("UserID", "...") or similar.
func FromContext(key string) UserIDExtractor {
	return func(c *gongin.Context) string {
		if val, exists := c.Get(key); exists {
			if str, ok := val.(string); ok {
				return str
			}
		}
		return ""
	}
}

// FromHeader returns a UserIDExtractor that gets user ID from a header
func FromHeader(headerName string) UserIDExtractor {
	return func(c *gongin.Context) string {
		return c.GetHeader(headerName)
	}
}

// Convenience extractors for Creator ID

// CreatorFromParam returns a CreatorIDExtractor that reads a route parameter
func CreatorFromParam(paramName string) CreatorIDExtractor {
	return func(c *gongin.Context) string {
		return c.Param(paramName)
	}
}

// CreatorFromQuery returns a CreatorIDExtractor that reads a query parameter
func CreatorFromQuery(queryName string) CreatorIDExtractor {
	return func(c *gongin.Context) string {
		return c.Query(queryName)
	}
}

// FixedCreator returns a CreatorIDExtractor that always returns the same creator
func FixedCreator(creatorID string) CreatorIDExtractor {
	return func(*gongin.Context) string {
		return creatorID
	}
}
