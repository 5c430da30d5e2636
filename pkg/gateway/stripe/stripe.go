// Package stripe implements the gateway interfaces for Stripe.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/Ouyang184/fanrealms-universe-access-sub005/pkg/gateway"
)

const (
	providerName    = "stripe"
	defaultCurrency = "usd"

	// default_incomplete defers payment collection to the client-side
	// confirmation step and exposes the intent's client secret.
	paymentBehaviorDefaultIncomplete = "default_incomplete"
)

// Config holds Stripe gateway configuration
type Config struct {
	// APIKey is the Stripe secret key (required)
	APIKey string

	// Currency used when creating prices without an explicit one
	// Default: "usd"
	Currency string

	// Metrics is an optional metrics collector for gateway operations.
	// If nil, metrics will be silently ignored (no-op).
	Metrics gateway.Metrics
}

// Gateway implements gateway.Gateway and gateway.Confirmer for Stripe
type Gateway struct {
	client   *stripe.Client
	currency string
	metrics  gateway.Metrics
}

// NewGateway creates a new Stripe gateway
func NewGateway(config Config) (*Gateway, error) {
	apiKey := strings.TrimSpace(config.APIKey)
	if apiKey == "" {
		return nil, gateway.ErrNotConfigured
	}

	currency := config.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	metrics := config.Metrics
	if metrics == nil {
		metrics = &gateway.NoopMetrics{}
	}

	return &Gateway{
		client:   stripe.NewClient(apiKey),
		currency: currency,
		metrics:  metrics,
	}, nil
}

// Name returns the provider name
func (g *Gateway) Name() string {
	return providerName
}

// CreateCustomer creates a Stripe customer carrying the platform user id in
// metadata so webhook handlers and reconciliation jobs can map it back.
func (g *Gateway) CreateCustomer(ctx context.Context, params gateway.CustomerParams) (*gateway.Customer, error) {
	startTime := time.Now()

	createParams := &stripe.CustomerCreateParams{
		Email: stripe.String(params.Email),
		Metadata: map[string]string{
			"user_id": params.UserID,
		},
	}

	customer, err := g.client.V1Customers.Create(ctx, createParams)
	if err != nil {
		g.metrics.RecordAPICall(providerName, "/customers", "error")
		g.metrics.RecordAPICallDuration(providerName, "/customers", time.Since(startTime))
		return nil, fmt.Errorf("%w: %s", gateway.ErrGateway, gatewayMessage(err))
	}

	g.metrics.RecordAPICall(providerName, "/customers", "success")
	g.metrics.RecordAPICallDuration(providerName, "/customers", time.Since(startTime))

	return &gateway.Customer{
		ID:    customer.ID,
		Email: params.Email,
	}, nil
}

// CreatePrice creates a monthly recurring price for a tier. The tier id is
// carried in metadata; the amount is already in minor units.
func (g *Gateway) CreatePrice(ctx context.Context, params gateway.PriceParams) (*gateway.Price, error) {
	startTime := time.Now()

	currency := params.Currency
	if currency == "" {
		currency = g.currency
	}

	createParams := &stripe.PriceCreateParams{
		Currency:   stripe.String(currency),
		UnitAmount: stripe.Int64(params.UnitAmount),
		Recurring: &stripe.PriceCreateRecurringParams{
			Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
		},
		ProductData: &stripe.PriceCreateProductDataParams{
			Name: stripe.String(params.ProductName),
		},
		Metadata: map[string]string{
			"tier_id": params.TierID,
		},
	}

	price, err := g.client.V1Prices.Create(ctx, createParams)
	if err != nil {
		g.metrics.RecordAPICall(providerName, "/prices", "error")
		g.metrics.RecordAPICallDuration(providerName, "/prices", time.Since(startTime))
		return nil, fmt.Errorf("%w: %s", gateway.ErrGateway, gatewayMessage(err))
	}

	g.metrics.RecordAPICall(providerName, "/prices", "success")
	g.metrics.RecordAPICallDuration(providerName, "/prices", time.Since(startTime))

	return &gateway.Price{
		ID:         price.ID,
		UnitAmount: price.UnitAmount,
	}, nil
}

// CreateSubscription creates an incomplete Stripe subscription and returns
// the confirmation client secret from the first invoice.
func (g *Gateway) CreateSubscription(ctx context.Context, params gateway.SubscriptionParams) (*gateway.Subscription, error) {
	startTime := time.Now()

	createParams := &stripe.SubscriptionCreateParams{
		Customer: stripe.String(params.CustomerID),
		Items: []*stripe.SubscriptionCreateItemParams{
			{Price: stripe.String(params.PriceID)},
		},
		PaymentBehavior: stripe.String(paymentBehaviorDefaultIncomplete),
		PaymentSettings: &stripe.SubscriptionCreatePaymentSettingsParams{
			SaveDefaultPaymentMethod: stripe.String("on_subscription"),
		},
		Metadata: params.Metadata,
	}
	createParams.AddExpand("latest_invoice.confirmation_secret")

	sub, err := g.client.V1Subscriptions.Create(ctx, createParams)
	if err != nil {
		g.metrics.RecordAPICall(providerName, "/subscriptions", "error")
		g.metrics.RecordAPICallDuration(providerName, "/subscriptions", time.Since(startTime))
		return nil, fmt.Errorf("%w: %s", gateway.ErrGateway, gatewayMessage(err))
	}

	g.metrics.RecordAPICall(providerName, "/subscriptions", "success")
	g.metrics.RecordAPICallDuration(providerName, "/subscriptions", time.Since(startTime))

	clientSecret := ""
	if sub.LatestInvoice != nil && sub.LatestInvoice.ConfirmationSecret != nil {
		clientSecret = sub.LatestInvoice.ConfirmationSecret.ClientSecret
	}
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: subscription %s has no confirmation secret", gateway.ErrGateway, sub.ID)
	}

	return &gateway.Subscription{
		ID:           sub.ID,
		ClientSecret: clientSecret,
		Status:       string(sub.Status),
	}, nil
}

// CancelSubscription cancels a Stripe subscription immediately.
func (g *Gateway) CancelSubscription(ctx context.Context, externalSubscriptionID string) error {
	startTime := time.Now()

	_, err := g.client.V1Subscriptions.Cancel(ctx, externalSubscriptionID, &stripe.SubscriptionCancelParams{})
	if err != nil {
		g.metrics.RecordAPICall(providerName, "/subscriptions/cancel", "error")
		g.metrics.RecordAPICallDuration(providerName, "/subscriptions/cancel", time.Since(startTime))
		return fmt.Errorf("%w: %s", gateway.ErrGateway, gatewayMessage(err))
	}

	g.metrics.RecordAPICall(providerName, "/subscriptions/cancel", "success")
	g.metrics.RecordAPICallDuration(providerName, "/subscriptions/cancel", time.Since(startTime))
	return nil
}

// ConfirmPayment confirms the payment intent referenced by the client secret.
// The return URL is where redirect-based payment methods land afterwards.
func (g *Gateway) ConfirmPayment(ctx context.Context, params gateway.ConfirmParams) (*gateway.PaymentIntent, error) {
	startTime := time.Now()

	intentID, err := IntentIDFromClientSecret(params.ClientSecret)
	if err != nil {
		return nil, err
	}

	confirmParams := &stripe.PaymentIntentConfirmParams{}
	if params.ReturnURL != "" {
		confirmParams.ReturnURL = stripe.String(params.ReturnURL)
	}

	intent, err := g.client.V1PaymentIntents.Confirm(ctx, intentID, confirmParams)
	if err != nil {
		g.metrics.RecordAPICall(providerName, "/payment_intents/confirm", "error")
		g.metrics.RecordAPICallDuration(providerName, "/payment_intents/confirm", time.Since(startTime))
		g.metrics.RecordConfirmation(providerName, "error")
		return nil, fmt.Errorf("%w: %s", gateway.ErrGateway, gatewayMessage(err))
	}

	status := mapIntentStatus(intent.Status)

	g.metrics.RecordAPICall(providerName, "/payment_intents/confirm", "success")
	g.metrics.RecordAPICallDuration(providerName, "/payment_intents/confirm", time.Since(startTime))
	g.metrics.RecordConfirmation(providerName, string(status))

	return &gateway.PaymentIntent{
		ID:     intent.ID,
		Status: status,
	}, nil
}

// IntentIDFromClientSecret extracts the payment intent id from a client
// secret of the form "pi_xxx_secret_yyy".
func IntentIDFromClientSecret(clientSecret string) (string, error) {
	idx := strings.Index(clientSecret, "_secret")
	if idx <= 0 || !strings.HasPrefix(clientSecret, "pi_") {
		return "", gateway.ErrInvalidClientSecret
	}
	return clientSecret[:idx], nil
}

// mapIntentStatus maps Stripe's intent statuses onto the four the platform
// branches on.
func mapIntentStatus(status stripe.PaymentIntentStatus) gateway.IntentStatus {
	switch status {
	case stripe.PaymentIntentStatusRequiresCapture:
		return gateway.IntentStatusRequiresCapture
	case stripe.PaymentIntentStatusSucceeded:
		return gateway.IntentStatusSucceeded
	case stripe.PaymentIntentStatusRequiresAction, stripe.PaymentIntentStatusRequiresConfirmation, stripe.PaymentIntentStatusProcessing:
		return gateway.IntentStatusRequiresAction
	default:
		return gateway.IntentStatusFailed
	}
}

// gatewayMessage returns Stripe's own message for an error when available,
// so it can be surfaced to the user verbatim.
func gatewayMessage(err error) string {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return stripeErr.Msg
	}
	return err.Error()
}
