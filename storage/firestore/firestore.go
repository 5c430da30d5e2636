// Package firestore provides a Firestore implementation of the
// subscription.Store interface. Document-id uniqueness stands in for the
// unique constraints the relational stores use: billing customers are keyed
// by user id, tiers by tier id, and the price claim runs in a transaction.
package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Ouyang184/fanrealms-universe-access-sub005/pkg/subscription"
)

// Store implements subscription.Store using Google Cloud Firestore
type Store struct {
	client                  *firestore.Client
	customersCollection     string
	tiersCollection         string
	subscriptionsCollection string
}

// Config holds Firestore store configuration
type Config struct {
	// CustomersCollection is the collection for billing customers
	// Default: "billing_customers"
	CustomersCollection string

	// TiersCollection is the collection for membership tiers
	// Default: "membership_tiers"
	TiersCollection string

	// SubscriptionsCollection is the collection for subscription records
	// Default: "subscriptions"
	SubscriptionsCollection string
}

// New creates a new Firestore store adapter
func New(client *firestore.Client, config Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client is required")
	}

	if config.CustomersCollection == "" {
		config.CustomersCollection = "billing_customers"
	}
	if config.TiersCollection == "" {
		config.TiersCollection = "membership_tiers"
	}
	if config.SubscriptionsCollection == "" {
		config.SubscriptionsCollection = "subscriptions"
	}

	return &Store{
		client:                  client,
		customersCollection:     config.CustomersCollection,
		tiersCollection:         config.TiersCollection,
		subscriptionsCollection: config.SubscriptionsCollection,
	}, nil
}

// GetBillingCustomer implements subscription.Store
func (s *Store) GetBillingCustomer(ctx context.Context, userID string) (*subscription.BillingCustomer, error) {
	snap, err := s.client.Collection(s.customersCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, subscription.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to get billing customer: %w", err)
	}

	data := snap.Data()
	customer := &subscription.BillingCustomer{
		UserID:             userID,
		ExternalCustomerID: stringField(data, "external_customer_id"),
	}
	if createdAt, ok := data["created_at"].(time.Time); ok {
		customer.CreatedAt = createdAt
	}
	return customer, nil
}

// CreateBillingCustomer implements subscription.Store
func (s *Store) CreateBillingCustomer(ctx context.Context, customer *subscription.BillingCustomer) error {
	if customer == nil || customer.UserID == "" {
		return fmt.Errorf("invalid billing customer")
	}

	doc := s.client.Collection(s.customersCollection).Doc(customer.UserID)
	_, err := doc.Create(ctx, map[string]interface{}{
		"external_customer_id": customer.ExternalCustomerID,
		"created_at":           customer.CreatedAt,
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return subscription.ErrCustomerExists
		}
		return fmt.Errorf("failed to create billing customer: %w", err)
	}
	return nil
}

// GetTier implements subscription.Store
func (s *Store) GetTier(ctx context.Context, tierID string) (*subscription.Tier, error) {
	snap, err := s.client.Collection(s.tiersCollection).Doc(tierID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, subscription.ErrTierNotFound
		}
		return nil, fmt.Errorf("failed to get tier: %w", err)
	}

	return tierFromData(tierID, snap.Data()), nil
}

// ClaimTierPrice implements subscription.Store. The transaction re-reads the
// tier, so a concurrent claim loses cleanly and the winner's id is returned.
func (s *Store) ClaimTierPrice(ctx context.Context, tierID, externalPriceID string) (string, error) {
	doc := s.client.Collection(s.tiersCollection).Doc(tierID)

	var winner string
	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(doc)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return subscription.ErrTierNotFound
			}
			return err
		}

		if existing := stringField(snap.Data(), "external_price_id"); existing != "" {
			winner = existing
			return nil
		}

		winner = externalPriceID
		return tx.Update(doc, []firestore.Update{
			{Path: "external_price_id", Value: externalPriceID},
		})
	})
	if err != nil {
		if err == subscription.ErrTierNotFound {
			return "", err
		}
		return "", fmt.Errorf("failed to claim tier price: %w", err)
	}
	return winner, nil
}

// SeedTier inserts or replaces tier metadata
func (s *Store) SeedTier(ctx context.Context, tier *subscription.Tier) error {
	doc := s.client.Collection(s.tiersCollection).Doc(tier.ID)
	_, err := doc.Set(ctx, map[string]interface{}{
		"creator_id":        tier.CreatorID,
		"title":             tier.Title,
		"price":             tier.Price,
		"external_price_id": tier.ExternalPriceID,
	})
	if err != nil {
		return fmt.Errorf("failed to seed tier: %w", err)
	}
	return nil
}

// CreateSubscription implements subscription.Store
func (s *Store) CreateSubscription(ctx context.Context, record *subscription.Record) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("invalid subscription record")
	}

	doc := s.client.Collection(s.subscriptionsCollection).Doc(record.ID)
	_, err := doc.Create(ctx, recordToData(record))
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// GetSubscription implements subscription.Store
func (s *Store) GetSubscription(ctx context.Context, id string) (*subscription.Record, error) {
	snap, err := s.client.Collection(s.subscriptionsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, subscription.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return recordFromData(id, snap.Data()), nil
}

// GetActiveSubscription implements subscription.Store
func (s *Store) GetActiveSubscription(ctx context.Context, userID, creatorID string) (*subscription.Record, error) {
	snaps, err := s.client.Collection(s.subscriptionsCollection).
		Where("user_id", "==", userID).
		Where("creator_id", "==", creatorID).
		Where("status", "in", []string{string(subscription.StatusPending), string(subscription.StatusActive)}).
		Limit(1).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	if len(snaps) == 0 {
		return nil, subscription.ErrSubscriptionNotFound
	}
	return recordFromData(snaps[0].Ref.ID, snaps[0].Data()), nil
}

// ListActiveSubscriptions implements subscription.Store
func (s *Store) ListActiveSubscriptions(ctx context.Context, userID string) ([]*subscription.Record, error) {
	snaps, err := s.client.Collection(s.subscriptionsCollection).
		Where("user_id", "==", userID).
		Where("status", "in", []string{string(subscription.StatusPending), string(subscription.StatusActive)}).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	records := make([]*subscription.Record, 0, len(snaps))
	for _, snap := range snaps {
		records = append(records, recordFromData(snap.Ref.ID, snap.Data()))
	}
	return records, nil
}

// UpdateSubscriptionStatus implements subscription.Store
func (s *Store) UpdateSubscriptionStatus(ctx context.Context, id string, st subscription.Status) error {
	doc := s.client.Collection(s.subscriptionsCollection).Doc(id)
	_, err := doc.Update(ctx, []firestore.Update{
		{Path: "status", Value: string(st)},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return subscription.ErrSubscriptionNotFound
		}
		return fmt.Errorf("failed to update subscription status: %w", err)
	}
	return nil
}

func stringField(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func tierFromData(id string, data map[string]interface{}) *subscription.Tier {
	tier := &subscription.Tier{
		ID:              id,
		CreatorID:       stringField(data, "creator_id"),
		Title:           stringField(data, "title"),
		ExternalPriceID: stringField(data, "external_price_id"),
	}
	switch v := data["price"].(type) {
	case float64:
		tier.Price = v
	case int64:
		tier.Price = float64(v)
	}
	return tier
}

func recordToData(record *subscription.Record) map[string]interface{} {
	return map[string]interface{}{
		"user_id":                  record.UserID,
		"creator_id":               record.CreatorID,
		"tier_id":                  record.TierID,
		"status":                   string(record.Status),
		"external_subscription_id": record.ExternalSubscriptionID,
		"created_at":               record.CreatedAt,
	}
}

func recordFromData(id string, data map[string]interface{}) *subscription.Record {
	record := &subscription.Record{
		ID:                     id,
		UserID:                 stringField(data, "user_id"),
		CreatorID:              stringField(data, "creator_id"),
		TierID:                 stringField(data, "tier_id"),
		Status:                 subscription.Status(stringField(data, "status")),
		ExternalSubscriptionID: stringField(data, "external_subscription_id"),
	}
	if createdAt, ok := data["created_at"].(time.Time); ok {
		record.CreatedAt = createdAt
	}
	return record
}
