package subscription

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Ouyang184/fanrealms-universe-access-sub005/pkg/gateway"
)

// DefaultLockout is the post-success window during which repeat submissions
// are rejected even though the state has logically returned to idle. It
// absorbs rapid repeated clicks while the backend finalizes the record.
const DefaultLockout = 3000 * time.Millisecond

// State is the coordinator's position in the subscribe or cancel flow.
type State string

const (
	StateIdle                 State = "idle"
	StateRequesting           State = "requesting"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateSettling             State = "settling"
	StateCanceling            State = "canceling"
)

// Backend is the slice of the subscription service the coordinator drives.
// *Service satisfies it; tests substitute fakes.
type Backend interface {
	CreateSubscription(ctx context.Context, principal *Principal, tierID, creatorID string) (*Checkout, error)
	ActivateSubscription(ctx context.Context, subscriptionID string) error
	CancelSubscription(ctx context.Context, principal *Principal, subscriptionID string) (*CancelOutcome, error)
	ForceCancel(ctx context.Context, principal *Principal, creatorID string) (*CancelOutcome, error)
}

// CoordinatorConfig holds coordinator configuration
type CoordinatorConfig struct {
	// Identity supplies the current principal (required)
	Identity Identity

	// Backend invokes the subscription functions (required)
	Backend Backend

	// Confirmer drives the gateway's payment-confirmation step (required)
	Confirmer gateway.Confirmer

	// Cache is the registry of named query results to invalidate after a
	// settled mutation. If nil, an empty registry is created.
	Cache *QueryCache

	// ReturnURL is handed to the gateway confirmation step for
	// redirect-based payment methods.
	ReturnURL string

	// Lockout is the post-success re-entrancy window.
	// Default: DefaultLockout (3000 ms).
	Lockout time.Duration

	// Reload forces a full reload of client state after a forced
	// cancellation, which bypasses the webhook path the incremental cache
	// invalidation depends on. If nil, the coordinator falls back to
	// invalidating the default query set.
	Reload func(ctx context.Context)

	// Clock overrides the time source. Intended for tests.
	Clock func() time.Time

	// Logger is an optional structured logger.
	Logger Logger
}

// SubscribeRequest identifies the tier and creator to subscribe to.
type SubscribeRequest struct {
	TierID    string
	CreatorID string

	// WaitForRefresh awaits completion of the query-cache refresh before
	// returning, for callers that need the operation fully settled. By
	// default the refresh is fire-and-forget.
	WaitForRefresh bool
}

// SubscribeResult reports a settled subscribe operation.
type SubscribeResult struct {
	SubscriptionID string
	IntentStatus   gateway.IntentStatus
}

// Coordinator mediates subscribe and cancel actions end-to-end for one UI
// session, guaranteeing at most one in-flight operation. All suspension
// points (store, backend, gateway) happen outside its lock, so the session
// stays responsive while re-entrant submissions are rejected.
//
// Operations for the same coordinator are strictly serialized. Across
// sessions no ordering guarantee exists; the store is the only arbiter.
type Coordinator struct {
	identity  Identity
	backend   Backend
	confirmer gateway.Confirmer
	cache     *QueryCache
	returnURL string
	lockout   time.Duration
	reload    func(ctx context.Context)
	clock     func() time.Time
	logger    Logger

	mu           sync.Mutex
	state        State
	lockoutUntil time.Time
}

// NewCoordinator creates a coordinator in the idle state.
func NewCoordinator(config CoordinatorConfig) (*Coordinator, error) {
	if config.Identity == nil || config.Backend == nil || config.Confirmer == nil {
		return nil, fmt.Errorf("identity, backend and confirmer are required")
	}
	if config.Cache == nil {
		config.Cache = NewQueryCache()
	}
	if config.Lockout == 0 {
		config.Lockout = DefaultLockout
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if config.Logger == nil {
		config.Logger = &NoopLogger{}
	}

	return &Coordinator{
		identity:  config.Identity,
		backend:   config.Backend,
		confirmer: config.Confirmer,
		cache:     config.Cache,
		returnURL: config.ReturnURL,
		lockout:   config.Lockout,
		reload:    config.Reload,
		clock:     config.Clock,
		logger:    config.Logger,
		state:     StateIdle,
	}, nil
}

// State returns the coordinator's current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Cache returns the query cache registry the coordinator invalidates.
func (c *Coordinator) Cache() *QueryCache {
	return c.cache
}

// Subscribe runs the subscribe flow: request confirmation material from the
// backend, hand off to the gateway's confirmation step, and settle. A call
// while another operation is in flight, or within the post-success lockout,
// is rejected with ErrOperationInFlight and triggers no backend call. An
// unauthenticated call signals ErrAuthenticationRequired without reaching
// the backend; the caller is expected to redirect to sign-in.
func (c *Coordinator) Subscribe(ctx context.Context, req SubscribeRequest) (*SubscribeResult, error) {
	if err := c.begin(StateRequesting); err != nil {
		return nil, err
	}

	principal, err := c.identity.CurrentPrincipal(ctx)
	if err != nil || principal == nil || principal.ID == "" {
		c.reset()
		return nil, ErrAuthenticationRequired
	}

	checkout, err := c.backend.CreateSubscription(ctx, principal, req.TierID, req.CreatorID)
	if err != nil {
		c.reset()
		c.logger.Error("subscription request failed",
			Field{"tier_id", req.TierID},
			Field{"creator_id", req.CreatorID},
			Field{"error", err.Error()},
		)
		return nil, fmt.Errorf("subscription request failed: %w", err)
	}

	c.transition(StateAwaitingConfirmation)

	intent, err := c.confirmer.ConfirmPayment(ctx, gateway.ConfirmParams{
		ClientSecret: checkout.ClientSecret,
		ReturnURL:    c.returnURL,
	})
	if err != nil {
		c.reset()
		// Gateway-supplied message, surfaced verbatim. No automatic retry.
		return nil, err
	}

	if !intent.Status.Settled() {
		c.reset()
		return nil, fmt.Errorf("%w: status %s", ErrPaymentNotSettled, intent.Status)
	}

	c.settle()

	if err := c.backend.ActivateSubscription(ctx, checkout.SubscriptionID); err != nil {
		// The record stays pending until backend reconciliation catches up;
		// the payment itself is settled.
		c.logger.Warn("failed to activate subscription record",
			Field{"subscription_id", checkout.SubscriptionID},
			Field{"error", err.Error()},
		)
	}

	c.refreshCaches(ctx, req.WaitForRefresh)
	c.reset()

	return &SubscribeResult{
		SubscriptionID: checkout.SubscriptionID,
		IntentStatus:   intent.Status,
	}, nil
}

// Cancel terminates a subscription through the gateway's cancellation path,
// guarded by the same in-flight lock as Subscribe.
func (c *Coordinator) Cancel(ctx context.Context, subscriptionID string) (*CancelOutcome, error) {
	if err := c.begin(StateCanceling); err != nil {
		return nil, err
	}
	defer c.reset()

	principal, err := c.identity.CurrentPrincipal(ctx)
	if err != nil || principal == nil || principal.ID == "" {
		return nil, ErrAuthenticationRequired
	}

	outcome, err := c.backend.CancelSubscription(ctx, principal, subscriptionID)
	if err != nil {
		return nil, err
	}

	c.refreshCaches(ctx, true)
	return outcome, nil
}

// ForceCancel terminates the subscription with a creator through the manual
// fallback path and forces a full client reload afterwards, since the
// store-side change bypasses the event path the incremental invalidation
// flow depends on.
func (c *Coordinator) ForceCancel(ctx context.Context, creatorID string) (*CancelOutcome, error) {
	if err := c.begin(StateCanceling); err != nil {
		return nil, err
	}
	defer c.reset()

	principal, err := c.identity.CurrentPrincipal(ctx)
	if err != nil || principal == nil || principal.ID == "" {
		return nil, ErrAuthenticationRequired
	}

	outcome, err := c.backend.ForceCancel(ctx, principal, creatorID)
	if err != nil {
		return nil, err
	}

	if c.reload != nil {
		c.reload(ctx)
	} else {
		c.cache.Invalidate(DefaultQueryKeys...)
	}
	return outcome, nil
}

// begin moves Idle to the target state, rejecting the transition when an
// operation is in flight or the lockout window is still open.
func (c *Coordinator) begin(target State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return ErrOperationInFlight
	}
	if c.clock().Before(c.lockoutUntil) {
		return ErrOperationInFlight
	}
	c.state = target
	return nil
}

func (c *Coordinator) transition(next State) {
	c.mu.Lock()
	c.state = next
	c.mu.Unlock()
}

// settle enters the settling state and opens the lockout window.
func (c *Coordinator) settle() {
	c.mu.Lock()
	c.state = StateSettling
	c.lockoutUntil = c.clock().Add(c.lockout)
	c.mu.Unlock()
}

// reset returns the coordinator to idle so a retry is possible. Error paths
// do not open a lockout window.
func (c *Coordinator) reset() {
	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()
}

// refreshCaches invalidates and refetches all subscription-status views.
// When wait is false the refetch runs detached from the caller's lifetime.
func (c *Coordinator) refreshCaches(ctx context.Context, wait bool) {
	if wait {
		if err := c.cache.Refresh(ctx, DefaultQueryKeys...); err != nil {
			c.logger.Warn("query cache refresh failed", Field{"error", err.Error()})
		}
		return
	}
	go func(ctx context.Context) {
		if err := c.cache.Refresh(ctx, DefaultQueryKeys...); err != nil {
			c.logger.Warn("query cache refresh failed", Field{"error", err.Error()})
		}
	}(context.WithoutCancel(ctx))
}
