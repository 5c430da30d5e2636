// Package echo provides Echo middleware for subscription-gated access
package echo

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// AccessChecker reports whether a user holds an active subscription to a creator.
// *subscription.Service satisfies this interface.
type AccessChecker interface {
	HasActiveSubscription(ctx context.Context, userID, creatorID string) (bool, error)
}

// UserIDExtractor extracts the user ID from an Echo context
// Return empty string if user is not authenticated
type UserIDExtractor func(c echo.Context) string

// CreatorIDExtractor extracts the creator ID whose content is being accessed
type CreatorIDExtractor func(c echo.Context) string

// Config holds middleware configuration
type Config struct {
	// Checker verifies subscription access (required)
	Checker AccessChecker

	// GetUserID extracts user ID from context (required)
	GetUserID UserIDExtractor

	// GetCreatorID extracts creator ID from context (required)
	GetCreatorID CreatorIDExtractor

	// OnUnauthorized is called when user is not authenticated
	// If nil, returns 401 Unauthorized
	OnUnauthorized func(c echo.Context) error

	// OnDenied is called when the user has no active subscription
	// If nil, returns 403 Forbidden
	OnDenied func(c echo.Context) error

	// OnError is called when an internal error occurs
	// If nil, returns 500 Internal Server Error
	OnError func(c echo.Context, err error) error
}

// Middleware creates an Echo middleware that requires an active subscription
func Middleware(cfg Config) echo.MiddlewareFunc {
	// Validate required configuration at startup (fail fast)
	if cfg.Checker == nil {
		panic("subscription/echo: Config.Checker is required")
	}
	if cfg.GetUserID == nil {
		panic("subscription/echo: Config.GetUserID is required")
	}
	if cfg.GetCreatorID == nil {
		panic("subscription/echo: Config.GetCreatorID is required")
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := cfg.GetUserID(c)
			if userID == "" {
				if cfg.OnUnauthorized != nil {
					return cfg.OnUnauthorized(c)
				}
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			}

			creatorID := cfg.GetCreatorID(c)
			if creatorID == "" {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "Bad Request"})
			}

			ok, err := cfg.Checker.HasActiveSubscription(c.Request().Context(), userID, creatorID)
			if err != nil {
				if cfg.OnError != nil {
					return cfg.OnError(c, err)
				}
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
			}
			if !ok {
				if cfg.OnDenied != nil {
					return cfg.OnDenied(c)
				}
				return c.JSON(http.StatusForbidden, map[string]string{"error": "Subscription required"})
			}

			return next(c)
		}
	}
}

// Convenience extractors for User ID

// FromContext returns a UserIDExtractor that gets user ID from Echo context values
// set by auth middleware via c.Set("userID", "...")
func FromContext(key string) UserIDExtractor {
	return func(c echo.Context) string {
		if str, ok := c.Get(key).(string); ok {
			return str
		}
		return ""
	}
}

// FromHeader returns a UserIDExtractor that gets user ID from a header
func FromHeader(headerName string) UserIDExtractor {
	return func(c echo.Context) string {
		return c.Request().Header.Get(headerName)
	}
}

// Convenience extractors for Creator ID

// CreatorFromParam returns a CreatorIDExtractor that reads a route parameter
func CreatorFromParam(paramName string) CreatorIDExtractor {
	return func(c echo.Context) string {
		return c.Param(paramName)
	}
}

// CreatorFromQuery returns a CreatorIDExtractor that reads a query parameter
func CreatorFromQuery(queryName string) CreatorIDExtractor {
	return func(c echo.Context) string {
		return c.QueryParam(queryName)
	}
}

// FixedCreator returns a CreatorIDExtractor that always returns the same creator
func FixedCreator(creatorID string) CreatorIDExtractor {
	return func(echo.Context) string {
		return creatorID
	}
}
