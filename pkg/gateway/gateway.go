// Package gateway defines the boundary to the third-party payment provider.
// The subscription service only consumes these interfaces; swapping Stripe for
// another provider requires no logic changes in the core.
package gateway

import "context"

// CustomerParams describes a gateway customer to create for a platform user.
type CustomerParams struct {
	UserID string
	Email  string
}

// Customer is the gateway-side customer object.
type Customer struct {
	ID    string
	Email string
}

// PriceParams describes a monthly recurring price to create for a tier.
// UnitAmount is in minor currency units.
type PriceParams struct {
	TierID      string
	ProductName string
	UnitAmount  int64
	Currency    string
}

// Price is the gateway-side recurring price object.
type Price struct {
	ID         string
	UnitAmount int64
}

// SubscriptionParams describes a gateway subscription keyed to a resolved
// customer and price, requesting immediate payment-intent confirmation material.
type SubscriptionParams struct {
	CustomerID string
	PriceID    string
	Metadata   map[string]string
}

// Subscription is the gateway-side subscription object. ClientSecret is the
// confirmation material the client completes payment authorization with.
type Subscription struct {
	ID           string
	ClientSecret string
	Status       string
}

// Gateway is the outbound surface the backend subscription functions use.
type Gateway interface {
	// Name returns the provider name (e.g. "stripe").
	Name() string

	// CreateCustomer creates a gateway customer for a platform user.
	CreateCustomer(ctx context.Context, params CustomerParams) (*Customer, error)

	// CreatePrice creates a monthly recurring price.
	CreatePrice(ctx context.Context, params PriceParams) (*Price, error)

	// CreateSubscription creates a gateway subscription and returns
	// payment-confirmation material for it.
	CreateSubscription(ctx context.Context, params SubscriptionParams) (*Subscription, error)

	// CancelSubscription cancels a gateway subscription by its gateway id.
	CancelSubscription(ctx context.Context, externalSubscriptionID string) error
}

// IntentStatus is the status of a payment-confirmation attempt.
type IntentStatus string

const (
	IntentStatusRequiresCapture IntentStatus = "requires_capture"
	IntentStatusSucceeded       IntentStatus = "succeeded"
	IntentStatusRequiresAction  IntentStatus = "requires_action"
	IntentStatusFailed          IntentStatus = "failed"
)

// Settled reports whether the status completes the authorization from the
// platform's point of view. requires_capture counts: the charge is authorized
// and capture happens asynchronously.
func (s IntentStatus) Settled() bool {
	return s == IntentStatusRequiresCapture || s == IntentStatusSucceeded
}

// ConfirmParams drives one payment-confirmation attempt.
type ConfirmParams struct {
	ClientSecret string
	ReturnURL    string
}

// PaymentIntent is the ephemeral result of a confirmation attempt. It is
// consumed immediately by the coordinator or form and never persisted.
type PaymentIntent struct {
	ID     string
	Status IntentStatus
}

// Confirmer is the client-side confirmation capability of the gateway.
type Confirmer interface {
	// ConfirmPayment runs the gateway's payment-confirmation step. A non-nil
	// error carries the gateway's message verbatim; callers surface it as-is
	// and do not retry automatically.
	ConfirmPayment(ctx context.Context, params ConfirmParams) (*PaymentIntent, error)
}

// ConfirmerFunc adapts a function to the Confirmer interface.
type ConfirmerFunc func(ctx context.Context, params ConfirmParams) (*PaymentIntent, error)

func (f ConfirmerFunc) ConfirmPayment(ctx context.Context, params ConfirmParams) (*PaymentIntent, error) {
	return f(ctx, params)
}
