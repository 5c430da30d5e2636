package subscription

import "context"

// Store defines the interface for subscription persistence.
// All methods use concrete types from this package to avoid import cycles.
//
// Implementations must back the uniqueness guarantees with real constraints:
// CreateBillingCustomer must fail with ErrCustomerExists rather than insert a
// second row for the same user, and ClaimTierPrice must atomically set the
// price id only when none is cached yet. The service layer retries on conflict
// instead of locking, so lookup-then-insert without a constraint is not an
// acceptable implementation.
type Store interface {
	// GetBillingCustomer retrieves the billing customer for a user.
	// Returns ErrCustomerNotFound when none exists.
	GetBillingCustomer(ctx context.Context, userID string) (*BillingCustomer, error)

	// CreateBillingCustomer inserts a new billing customer.
	// Returns ErrCustomerExists when the user already has one.
	CreateBillingCustomer(ctx context.Context, customer *BillingCustomer) error

	// GetTier retrieves a creator's membership tier.
	// Returns ErrTierNotFound for unknown tiers.
	GetTier(ctx context.Context, tierID string) (*Tier, error)

	// ClaimTierPrice caches an external price id on a tier if the tier has
	// none yet, and returns the winning price id either way. A concurrent
	// claim loses silently: the caller must use the returned id, not its own.
	ClaimTierPrice(ctx context.Context, tierID, externalPriceID string) (string, error)

	// CreateSubscription persists a new subscription record.
	CreateSubscription(ctx context.Context, record *Record) error

	// GetSubscription retrieves a subscription record by id.
	// Returns ErrSubscriptionNotFound when none exists.
	GetSubscription(ctx context.Context, id string) (*Record, error)

	// GetActiveSubscription retrieves the pending or active record for a
	// (user, creator) pair. Returns ErrSubscriptionNotFound when none exists.
	GetActiveSubscription(ctx context.Context, userID, creatorID string) (*Record, error)

	// ListActiveSubscriptions returns all pending or active records for a user.
	ListActiveSubscriptions(ctx context.Context, userID string) ([]*Record, error)

	// UpdateSubscriptionStatus sets the status of a record.
	// Returns ErrSubscriptionNotFound when the record does not exist.
	UpdateSubscriptionStatus(ctx context.Context, id string, status Status) error
}

// Identity supplies the current authenticated principal.
// The coordinator treats it as a capability to read "current user" and
// "is authenticated"; session lifecycle belongs to the identity provider.
type Identity interface {
	// CurrentPrincipal returns the authenticated principal for the session,
	// or ErrAuthenticationRequired when there is none.
	CurrentPrincipal(ctx context.Context) (*Principal, error)
}

// IdentityFunc adapts a function to the Identity interface.
type IdentityFunc func(ctx context.Context) (*Principal, error)

func (f IdentityFunc) CurrentPrincipal(ctx context.Context) (*Principal, error) {
	return f(ctx)
}
