package subscription

import "errors"

var (
	// ErrAuthenticationRequired is returned when an operation is attempted
	// without an authenticated principal
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrOperationInFlight is returned when a subscribe or cancel operation
	// is already running, or the post-success lockout window is still open
	ErrOperationInFlight = errors.New("operation already in flight")

	// ErrCustomerNotFound is returned when no billing customer exists for a user
	ErrCustomerNotFound = errors.New("billing customer not found")

	// ErrCustomerExists is returned when inserting a billing customer for a
	// user that already has one
	ErrCustomerExists = errors.New("billing customer already exists")

	// ErrTierNotFound is returned for an unknown tier
	ErrTierNotFound = errors.New("tier not found")

	// ErrSubscriptionNotFound is returned when no matching subscription
	// record exists
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrNotSubscriptionOwner is returned when a principal tries to cancel a
	// subscription that belongs to another user
	ErrNotSubscriptionOwner = errors.New("subscription belongs to another user")

	// ErrPaymentNotSettled is returned by the confirmation form when the
	// gateway reports a terminal status other than settled
	ErrPaymentNotSettled = errors.New("payment not settled")

	// ErrQueryNotRegistered is returned when refreshing a query name the
	// cache registry does not know
	ErrQueryNotRegistered = errors.New("query not registered")

	// ErrStoreUnavailable is returned when the store is nil or unreachable
	ErrStoreUnavailable = errors.New("subscription store unavailable")
)
