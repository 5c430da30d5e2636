// Package fiber provides Fiber middleware for subscription-gated access
package fiber

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// AccessChecker reports whether a user holds an active subscription to a creator.
// *subscription.Service satisfies this interface.
type AccessChecker interface {
	HasActiveSubscription(ctx context.Context, userID, creatorID string) (bool, error)
}

// UserIDExtractor extracts the user ID from a Fiber context
// Return empty string if user is not authenticated
type UserIDExtractor func(c *fiber.Ctx) string

// CreatorIDExtractor extracts the creator ID whose content is being accessed
type CreatorIDExtractor func(c *fiber.Ctx) string

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
	OnUnauthorized func(c *fiber.Ctx) error

	// OnDenied is called when the user has no active subscription
	// If nil, returns 403 Forbidden
	OnDenied func(c *fiber.Ctx) error

	// OnError is called when an internal error occurs
	// If nil, returns 500 Internal Server Error
	OnError func(c *fiber.Ctx, err error) error
}

// Middleware creates a Fiber middleware that requires an active subscription
func Middleware(cfg Config) fiber.Handler {
	// Validate required configuration at startup (fail fast)
	if cfg.Checker == nil {
		panic("subscription/fiber: Config.Checker is required")
	}
	if cfg.GetUserID == nil {
		panic("subscription/fiber: Config.GetUserID is required")
	}
	if cfg.GetCreatorID == nil {
		panic("subscription/fiber: Config.GetCreatorID is required")
	}

	return func(c *fiber.Ctx) error {
		userID := cfg.GetUserID(c)
		if userID == "" {
			if cfg.OnUnauthorized != nil {
				return cfg.OnUnauthorized(c)
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
		}

		creatorID := cfg.GetCreatorID(c)
		if creatorID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Bad Request"})
		}

		ok, err := cfg.Checker.HasActiveSubscription(c.UserContext(), userID, creatorID)
		if err != nil {
			if cfg.OnError != nil {
				return cfg.OnError(c, err)
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal Server Error"})
		}
		if !ok {
			if cfg.OnDenied != nil {
				return cfg.OnDenied(c)
			}
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Subscription required"})
		}

		return c.Next()
	}
}

// Convenience extractors for User ID

// FromLocals returns a UserIDExtractor that gets user ID from Fiber locals
// set by auth middleware via c.Locals("userID", "...")
func FromLocals(key string) UserIDExtractor {
	return func(c *fiber.Ctx) string {
		if str, ok := c.Locals(key).(string); ok {
			return str
		}
		return ""
	}
}

// FromHeader returns a UserIDExtractor that gets user ID from a header
func FromHeader(headerName string) UserIDExtractor {
	return func(c *fiber.Ctx) string {
		return c.Get(headerName)
	}
}

// Convenience extractors for Creator ID

// CreatorFromParam returns a CreatorIDExtractor that reads a route parameter.
// Route parameters are only visible when the middleware is mounted on the
// parameterized route itself, not via app.Use.
func CreatorFromParam(paramName string) CreatorIDExtractor {
	return func(c *fiber.Ctx) string {
		return c.Params(paramName)
	}
}

// CreatorFromQuery returns a CreatorIDExtractor that reads a query parameter
func CreatorFromQuery(queryName string) CreatorIDExtractor {
	return func(c *fiber.Ctx) string {
		return c.Query(queryName)
	}
}

// FixedCreator returns a CreatorIDExtractor that always returns the same creator
func FixedCreator(creatorID string) CreatorIDExtractor {
	return func(*fiber.Ctx) string {
		return creatorID
	}
}
