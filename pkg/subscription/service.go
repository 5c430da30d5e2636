package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/Ouyang184/fanrealms-universe-access-sub005/pkg/gateway"
)

const defaultCurrency = "usd"

// ServiceConfig holds backend function configuration
type ServiceConfig struct {
	// Currency for created prices (default: "usd")
	Currency string

	// Logger is an optional structured logger.
	// If nil, logging is silently ignored (no-op).
	Logger Logger

	// Metrics is an optional gateway metrics collector used to record the
	// path-tagged cancellation counters. If nil, metrics are discarded.
	Metrics gateway.Metrics
}

// Service implements the backend subscription functions: creating a
// subscription with payment-confirmation material, gateway-driven
// cancellation, and the forced cancellation fallback.
//
// Invocations are stateless with respect to each other; the only shared
// mutable state is the store. Customer and price resolution is get-or-create
// backed by store-level unique constraints, so a retry after a partial
// failure reuses the rows already created instead of duplicating them.
type Service struct {
	store   Store
	gateway gateway.Gateway
	config  ServiceConfig
	logger  Logger
	metrics gateway.Metrics

	// customers and prices collapse concurrent in-process get-or-create
	// calls for the same key, so a brand-new user double-submitting from one
	// process cannot create two gateway customers.
	customers singleflight.Group
	prices    singleflight.Group
}

// NewService creates a new subscription service with the given store and gateway
func NewService(store Store, gw gateway.Gateway, config ServiceConfig) (*Service, error) {
	if store == nil {
		return nil, ErrStoreUnavailable
	}
	if gw == nil {
		return nil, gateway.ErrNotConfigured
	}

	if config.Currency == "" {
		config.Currency = defaultCurrency
	}
	if config.Logger == nil {
		config.Logger = &NoopLogger{}
	}
	if config.Metrics == nil {
		config.Metrics = &gateway.NoopMetrics{}
	}

	return &Service{
		store:   store,
		gateway: gw,
		config:  config,
		logger:  config.Logger,
		metrics: config.Metrics,
	}, nil
}

// CreateSubscription resolves the billing customer and tier price, creates
// the gateway subscription, persists a pending record, and returns the
// confirmation material the client completes payment authorization with.
//
// Gateway failures abort the whole operation. Already-created customer and
// price rows are intentionally kept: they are safe to reuse on retry.
func (s *Service) CreateSubscription(ctx context.Context, principal *Principal, tierID, creatorID string) (*Checkout, error) {
	if principal == nil || principal.ID == "" {
		return nil, ErrAuthenticationRequired
	}

	customer, err := s.resolveCustomer(ctx, principal)
	if err != nil {
		return nil, err
	}

	priceID, err := s.resolveTierPrice(ctx, tierID)
	if err != nil {
		return nil, err
	}

	gwSub, err := s.gateway.CreateSubscription(ctx, gateway.SubscriptionParams{
		CustomerID: customer.ExternalCustomerID,
		PriceID:    priceID,
		Metadata: map[string]string{
			"user_id":    principal.ID,
			"creator_id": creatorID,
			"tier_id":    tierID,
		},
	})
	if err != nil {
		s.logger.Error("gateway subscription creation failed",
			Field{"user_id", principal.ID},
			Field{"tier_id", tierID},
			Field{"error", err.Error()},
		)
		return nil, fmt.Errorf("failed to create gateway subscription: %w", err)
	}

	record := &Record{
		ID:                     uuid.NewString(),
		UserID:                 principal.ID,
		CreatorID:              creatorID,
		TierID:                 tierID,
		Status:                 StatusPending,
		ExternalSubscriptionID: gwSub.ID,
		CreatedAt:              time.Now().UTC(),
	}
	if err := s.store.CreateSubscription(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist subscription record: %w", err)
	}

	s.logger.Info("subscription created",
		Field{"subscription_id", record.ID},
		Field{"user_id", principal.ID},
		Field{"creator_id", creatorID},
		Field{"tier_id", tierID},
	)

	return &Checkout{
		SubscriptionID: record.ID,
		ClientSecret:   gwSub.ClientSecret,
	}, nil
}

// ActivateSubscription marks a pending record active after the client
// observed a settled payment confirmation.
func (s *Service) ActivateSubscription(ctx context.Context, subscriptionID string) error {
	record, err := s.store.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if record.Status != StatusPending {
		return nil // already active or canceled, last write wins
	}
	return s.store.UpdateSubscriptionStatus(ctx, subscriptionID, StatusActive)
}

// CancelSubscription terminates a subscription through the gateway's own
// cancellation path. The gateway call must succeed; its webhook is expected
// to later confirm the terminal state.
func (s *Service) CancelSubscription(ctx context.Context, principal *Principal, subscriptionID string) (*CancelOutcome, error) {
	if principal == nil || principal.ID == "" {
		return nil, ErrAuthenticationRequired
	}

	record, err := s.store.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if record.UserID != principal.ID {
		return nil, ErrNotSubscriptionOwner
	}
	if !record.Active() {
		return nil, ErrSubscriptionNotFound
	}

	if err := s.gateway.CancelSubscription(ctx, record.ExternalSubscriptionID); err != nil {
		s.metrics.RecordCancellation(s.gateway.Name(), string(CancelPathGateway), "error")
		return nil, fmt.Errorf("failed to cancel gateway subscription: %w", err)
	}
	s.metrics.RecordCancellation(s.gateway.Name(), string(CancelPathGateway), "success")

	if err := s.store.UpdateSubscriptionStatus(ctx, record.ID, StatusCanceled); err != nil {
		return nil, err
	}

	s.logger.Info("subscription canceled via gateway",
		Field{"subscription_id", record.ID},
		Field{"user_id", principal.ID},
	)

	return &CancelOutcome{
		Path:           CancelPathGateway,
		SubscriptionID: record.ID,
		Message:        "Your subscription has been canceled.",
	}, nil
}

// ForceCancel terminates the subscription between the principal and a creator
// without relying on the gateway's cancellation call succeeding. The store
// record is marked canceled first - it is the source of truth for platform
// access control - and the gateway cancellation is best-effort: a failure
// there is logged, not fatal.
func (s *Service) ForceCancel(ctx context.Context, principal *Principal, creatorID string) (*CancelOutcome, error) {
	if principal == nil || principal.ID == "" {
		return nil, ErrAuthenticationRequired
	}

	record, err := s.store.GetActiveSubscription(ctx, principal.ID, creatorID)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateSubscriptionStatus(ctx, record.ID, StatusCanceled); err != nil {
		return nil, err
	}

	forcedStatus := "success"
	if record.ExternalSubscriptionID != "" {
		if err := s.gateway.CancelSubscription(ctx, record.ExternalSubscriptionID); err != nil {
			forcedStatus = "error"
			s.logger.Warn("gateway cancellation failed during forced cancel, store record already canceled",
				Field{"subscription_id", record.ID},
				Field{"external_subscription_id", record.ExternalSubscriptionID},
				Field{"error", err.Error()},
			)
		}
	}
	s.metrics.RecordCancellation(s.gateway.Name(), string(CancelPathForced), forcedStatus)

	s.logger.Info("subscription force-canceled",
		Field{"subscription_id", record.ID},
		Field{"user_id", principal.ID},
		Field{"creator_id", creatorID},
	)

	return &CancelOutcome{
		Path:           CancelPathForced,
		SubscriptionID: record.ID,
		Message:        fmt.Sprintf("Your subscription to creator %s has been canceled.", creatorID),
	}, nil
}

// HasActiveSubscription reports whether the user holds an active (settled)
// subscription to the creator. Pending records do not grant access yet.
func (s *Service) HasActiveSubscription(ctx context.Context, userID, creatorID string) (bool, error) {
	record, err := s.store.GetActiveSubscription(ctx, userID, creatorID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return false, nil
		}
		return false, err
	}
	return record.Status == StatusActive, nil
}

// ListActiveSubscriptions returns the user's pending and active records.
func (s *Service) ListActiveSubscriptions(ctx context.Context, userID string) ([]*Record, error) {
	return s.store.ListActiveSubscriptions(ctx, userID)
}

// resolveCustomer returns the billing customer for the principal, creating
// the gateway customer and the store row on first use. Concurrent in-process
// calls for the same user share one resolution; a cross-process race is
// settled by the store's unique constraint and resolved by re-reading.
func (s *Service) resolveCustomer(ctx context.Context, principal *Principal) (*BillingCustomer, error) {
	v, err, _ := s.customers.Do(principal.ID, func() (interface{}, error) {
		customer, err := s.store.GetBillingCustomer(ctx, principal.ID)
		if err == nil {
			return customer, nil
		}
		if !errors.Is(err, ErrCustomerNotFound) {
			return nil, err
		}

		gwCustomer, err := s.gateway.CreateCustomer(ctx, gateway.CustomerParams{
			UserID: principal.ID,
			Email:  principal.Email,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create gateway customer: %w", err)
		}

		customer = &BillingCustomer{
			UserID:             principal.ID,
			ExternalCustomerID: gwCustomer.ID,
			CreatedAt:          time.Now().UTC(),
		}
		if err := s.store.CreateBillingCustomer(ctx, customer); err != nil {
			if errors.Is(err, ErrCustomerExists) {
				// Lost the race to another process. The winner's row is
				// authoritative; the customer created above is orphaned in
				// the gateway and harmless.
				s.logger.Warn("billing customer insert conflicted, reusing existing row",
					Field{"user_id", principal.ID},
				)
				return s.store.GetBillingCustomer(ctx, principal.ID)
			}
			return nil, err
		}
		return customer, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*BillingCustomer), nil
}

// resolveTierPrice returns the external price id for a tier, creating the
// gateway price on first use. The claimed id is immutable thereafter; price
// changes are out of scope.
func (s *Service) resolveTierPrice(ctx context.Context, tierID string) (string, error) {
	v, err, _ := s.prices.Do(tierID, func() (interface{}, error) {
		tier, err := s.store.GetTier(ctx, tierID)
		if err != nil {
			return "", err
		}
		if tier.ExternalPriceID != "" {
			return tier.ExternalPriceID, nil
		}

		price, err := s.gateway.CreatePrice(ctx, gateway.PriceParams{
			TierID:      tier.ID,
			ProductName: tier.Title,
			UnitAmount:  tier.MinorUnits(),
			Currency:    s.config.Currency,
		})
		if err != nil {
			return "", fmt.Errorf("failed to create gateway price: %w", err)
		}

		// The claim may lose to a concurrent creator; use the winner.
		return s.store.ClaimTierPrice(ctx, tier.ID, price.ID)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
