// Package redis provides a Redis implementation of the subscription.Store
// interface. Atomic claims use SETNX semantics via Lua so concurrent
// get-or-create callers converge on a single winner.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Ouyang184/fanrealms-universe-access-sub005/pkg/subscription"
)

// Store implements subscription.Store using Redis
type Store struct {
	client      redis.UniversalClient
	config      Config
	claimScript *redis.Script
}

// Config holds Redis store configuration
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "fanrealms:")
	KeyPrefix string

	// RecordTTL is the TTL for canceled subscription records
	// (0 = no expiration)
	RecordTTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		KeyPrefix: "fanrealms:",
	}
}

// claimScript sets the price key only when absent and returns the winning
// value in a single round trip.
const claimScriptSrc = `
local existing = redis.call('GET', KEYS[1])
if existing then
	return existing
end
redis.call('SET', KEYS[1], ARGV[1])
return ARGV[1]
`

// New creates a new Redis store adapter.
// The client can be *redis.Client, *redis.ClusterClient, or *redis.Ring.
func New(client redis.UniversalClient, config Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	if config.KeyPrefix == "" {
		config.KeyPrefix = "fanrealms:"
	}

	return &Store{
		client:      client,
		config:      config,
		claimScript: redis.NewScript(claimScriptSrc),
	}, nil
}

func (s *Store) customerKey(userID string) string {
	return s.config.KeyPrefix + "customer:" + userID
}

func (s *Store) tierKey(tierID string) string {
	return s.config.KeyPrefix + "tier:" + tierID
}

func (s *Store) tierPriceKey(tierID string) string {
	return s.config.KeyPrefix + "tierprice:" + tierID
}

func (s *Store) recordKey(id string) string {
	return s.config.KeyPrefix + "sub:" + id
}

func (s *Store) userSubsKey(userID string) string {
	return s.config.KeyPrefix + "user:" + userID + ":subs"
}

// GetBillingCustomer implements subscription.Store
func (s *Store) GetBillingCustomer(ctx context.Context, userID string) (*subscription.BillingCustomer, error) {
	data, err := s.client.Get(ctx, s.customerKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, subscription.ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get billing customer: %w", err)
	}

	var customer subscription.BillingCustomer
	if err := json.Unmarshal(data, &customer); err != nil {
		return nil, fmt.Errorf("failed to decode billing customer: %w", err)
	}
	return &customer, nil
}

// CreateBillingCustomer implements subscription.Store
func (s *Store) CreateBillingCustomer(ctx context.Context, customer *subscription.BillingCustomer) error {
	if customer == nil || customer.UserID == "" {
		return fmt.Errorf("invalid billing customer")
	}

	data, err := json.Marshal(customer)
	if err != nil {
		return fmt.Errorf("failed to encode billing customer: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.customerKey(customer.UserID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create billing customer: %w", err)
	}
	if !ok {
		return subscription.ErrCustomerExists
	}
	return nil
}

// GetTier implements subscription.Store
func (s *Store) GetTier(ctx context.Context, tierID string) (*subscription.Tier, error) {
	data, err := s.client.Get(ctx, s.tierKey(tierID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, subscription.ErrTierNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tier: %w", err)
	}

	var tier subscription.Tier
	if err := json.Unmarshal(data, &tier); err != nil {
		return nil, fmt.Errorf("failed to decode tier: %w", err)
	}

	// The claimed price lives in its own key so claims never race with
	// tier metadata updates.
	priceID, err := s.client.Get(ctx, s.tierPriceKey(tierID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get tier price: %w", err)
	}
	tier.ExternalPriceID = priceID

	return &tier, nil
}

// ClaimTierPrice implements subscription.Store
func (s *Store) ClaimTierPrice(ctx context.Context, tierID, externalPriceID string) (string, error) {
	exists, err := s.client.Exists(ctx, s.tierKey(tierID)).Result()
	if err != nil {
		return "", fmt.Errorf("failed to check tier: %w", err)
	}
	if exists == 0 {
		return "", subscription.ErrTierNotFound
	}

	winner, err := s.claimScript.Run(ctx, s.client,
		[]string{s.tierPriceKey(tierID)}, externalPriceID).Text()
	if err != nil {
		return "", fmt.Errorf("failed to claim tier price: %w", err)
	}
	return winner, nil
}

// SeedTier inserts or replaces tier metadata. The claimed price key is left
// untouched.
func (s *Store) SeedTier(ctx context.Context, tier *subscription.Tier) error {
	seeded := *tier
	seeded.ExternalPriceID = ""

	data, err := json.Marshal(&seeded)
	if err != nil {
		return fmt.Errorf("failed to encode tier: %w", err)
	}
	if err := s.client.Set(ctx, s.tierKey(tier.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to seed tier: %w", err)
	}
	if tier.ExternalPriceID != "" {
		if _, err := s.ClaimTierPrice(ctx, tier.ID, tier.ExternalPriceID); err != nil {
			return err
		}
	}
	return nil
}

// CreateSubscription implements subscription.Store
func (s *Store) CreateSubscription(ctx context.Context, record *subscription.Record) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("invalid subscription record")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode subscription: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.recordKey(record.ID), data, 0)
	pipe.SAdd(ctx, s.userSubsKey(record.UserID), record.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// GetSubscription implements subscription.Store
func (s *Store) GetSubscription(ctx context.Context, id string) (*subscription.Record, error) {
	data, err := s.client.Get(ctx, s.recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, subscription.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	var record subscription.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode subscription: %w", err)
	}
	return &record, nil
}

// GetActiveSubscription implements subscription.Store
func (s *Store) GetActiveSubscription(ctx context.Context, userID, creatorID string) (*subscription.Record, error) {
	records, err := s.ListActiveSubscriptions(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		if record.CreatorID == creatorID {
			return record, nil
		}
	}
	return nil, subscription.ErrSubscriptionNotFound
}

// ListActiveSubscriptions implements subscription.Store
func (s *Store) ListActiveSubscriptions(ctx context.Context, userID string) ([]*subscription.Record, error) {
	ids, err := s.client.SMembers(ctx, s.userSubsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	var records []*subscription.Record
	for _, id := range ids {
		record, err := s.GetSubscription(ctx, id)
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			continue // expired record, index entry is stale
		}
		if err != nil {
			return nil, err
		}
		if record.Active() {
			records = append(records, record)
		}
	}
	return records, nil
}

// UpdateSubscriptionStatus implements subscription.Store
func (s *Store) UpdateSubscriptionStatus(ctx context.Context, id string, status subscription.Status) error {
	record, err := s.GetSubscription(ctx, id)
	if err != nil {
		return err
	}

	record.Status = status
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode subscription: %w", err)
	}

	ttl := time.Duration(0)
	if status == subscription.StatusCanceled {
		ttl = s.config.RecordTTL
	}
	if err := s.client.Set(ctx, s.recordKey(id), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return nil
}

// Ping verifies Redis connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
