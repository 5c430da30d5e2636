// Package memory provides an in-memory implementation of the
// subscription.Store interface. This implementation is primarily intended
// for testing and development.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Ouyang184/fanrealms-universe-access-sub005/pkg/subscription"
)

// Store implements subscription.Store using in-memory maps
type Store struct {
	mu        sync.RWMutex
	customers map[string]*subscription.BillingCustomer // by user id
	tiers     map[string]*subscription.Tier            // by tier id
	records   map[string]*subscription.Record          // by record id
}

// New creates a new in-memory store adapter
func New() *Store {
	return &Store{
		customers: make(map[string]*subscription.BillingCustomer),
		tiers:     make(map[string]*subscription.Tier),
		records:   make(map[string]*subscription.Record),
	}
}

// SeedTier inserts or replaces a tier. Tiers are owned by the creator-facing
// side of the platform; the store only needs them present for price resolution.
func (s *Store) SeedTier(tier *subscription.Tier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tierCopy := *tier
	s.tiers[tier.ID] = &tierCopy
}

// GetBillingCustomer implements subscription.Store
func (s *Store) GetBillingCustomer(ctx context.Context, userID string) (*subscription.BillingCustomer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customers[userID]
	if !ok {
		return nil, subscription.ErrCustomerNotFound
	}

	// Return a copy to prevent external mutations
	customerCopy := *customer
	return &customerCopy, nil
}

// CreateBillingCustomer implements subscription.Store
func (s *Store) CreateBillingCustomer(ctx context.Context, customer *subscription.BillingCustomer) error {
	if customer == nil || customer.UserID == "" {
		return fmt.Errorf("invalid billing customer")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[customer.UserID]; ok {
		return subscription.ErrCustomerExists
	}

	customerCopy := *customer
	s.customers[customer.UserID] = &customerCopy
	return nil
}

// GetTier implements subscription.Store
func (s *Store) GetTier(ctx context.Context, tierID string) (*subscription.Tier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tier, ok := s.tiers[tierID]
	if !ok {
		return nil, subscription.ErrTierNotFound
	}

	tierCopy := *tier
	return &tierCopy, nil
}

// ClaimTierPrice implements subscription.Store
func (s *Store) ClaimTierPrice(ctx context.Context, tierID, externalPriceID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tier, ok := s.tiers[tierID]
	if !ok {
		return "", subscription.ErrTierNotFound
	}

	if tier.ExternalPriceID != "" {
		return tier.ExternalPriceID, nil
	}

	tier.ExternalPriceID = externalPriceID
	return externalPriceID, nil
}

// CreateSubscription implements subscription.Store
func (s *Store) CreateSubscription(ctx context.Context, record *subscription.Record) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("invalid subscription record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recordCopy := *record
	s.records[record.ID] = &recordCopy
	return nil
}

// GetSubscription implements subscription.Store
func (s *Store) GetSubscription(ctx context.Context, id string) (*subscription.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, subscription.ErrSubscriptionNotFound
	}

	recordCopy := *record
	return &recordCopy, nil
}

// GetActiveSubscription implements subscription.Store
func (s *Store) GetActiveSubscription(ctx context.Context, userID, creatorID string) (*subscription.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.records {
		if record.UserID == userID && record.CreatorID == creatorID && record.Active() {
			recordCopy := *record
			return &recordCopy, nil
		}
	}
	return nil, subscription.ErrSubscriptionNotFound
}

// ListActiveSubscriptions implements subscription.Store
func (s *Store) ListActiveSubscriptions(ctx context.Context, userID string) ([]*subscription.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*subscription.Record
	for _, record := range s.records {
		if record.UserID == userID && record.Active() {
			recordCopy := *record
			records = append(records, &recordCopy)
		}
	}
	return records, nil
}

// UpdateSubscriptionStatus implements subscription.Store
func (s *Store) UpdateSubscriptionStatus(ctx context.Context, id string, status subscription.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return subscription.ErrSubscriptionNotFound
	}

	record.Status = status
	return nil
}

// Clear removes all data (useful for testing)
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers = make(map[string]*subscription.BillingCustomer)
	s.tiers = make(map[string]*subscription.Tier)
	s.records = make(map[string]*subscription.Record)
}
