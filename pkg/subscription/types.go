package subscription

import (
	"math"
	"time"
)

// Principal is the authenticated user an operation runs on behalf of.
// It is supplied by the identity provider and read-only to this package.
type Principal struct {
	ID    string
	Email string
}

// BillingCustomer maps a platform user to its identity in the payment gateway.
// At most one customer exists per user; it is created lazily on the first
// subscription attempt and never deleted.
type BillingCustomer struct {
	UserID             string
	ExternalCustomerID string
	CreatedAt          time.Time
}

// Tier is a creator's membership tier. ExternalPriceID is the cached gateway
// recurring-price identifier; once set it is treated as immutable.
type Tier struct {
	ID              string
	CreatorID       string
	Title           string
	Price           float64 // monthly price in major currency units
	ExternalPriceID string
}

// MinorUnits returns the tier price in minor currency units (cents),
// rounded to the nearest unit.
func (t *Tier) MinorUnits() int64 {
	return int64(math.Round(t.Price * 100))
}

// Status is the platform-side state of a subscription record.
type Status string

const (
	// StatusPending means the record exists but payment has not settled yet.
	StatusPending Status = "pending"

	// StatusActive means payment settled and the subscription grants access.
	StatusActive Status = "active"

	// StatusCanceled means the subscription was terminated, either through
	// the gateway or through the forced cancellation path.
	StatusCanceled Status = "canceled"
)

// Record is the platform's own record of a user's subscription to a creator's
// tier, independent of gateway state. Transitions are last-write-wins.
type Record struct {
	ID                     string
	UserID                 string
	CreatorID              string
	TierID                 string
	Status                 Status
	ExternalSubscriptionID string
	CreatedAt              time.Time
}

// Active reports whether the record still occupies the
// (user, creator, tier) slot.
func (r *Record) Active() bool {
	return r.Status == StatusPending || r.Status == StatusActive
}

// Checkout is the payment-confirmation material returned by the backend
// subscription function. ClientSecret drives the gateway's confirmation step.
type Checkout struct {
	SubscriptionID string
	ClientSecret   string
}

// CancelPath tags which cancellation variant produced a CancelOutcome.
type CancelPath string

const (
	// CancelPathGateway means the gateway's own cancellation call succeeded;
	// its webhook will eventually confirm the terminal state.
	CancelPathGateway CancelPath = "gateway"

	// CancelPathForced means the store record was terminated directly and no
	// gateway event will arrive; the store is authoritative.
	CancelPathForced CancelPath = "forced"
)

// CancelOutcome reports a completed cancellation and which consistency
// guarantees apply to it.
type CancelOutcome struct {
	Path           CancelPath
	SubscriptionID string
	Message        string
}
