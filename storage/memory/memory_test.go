package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Ouyang184/fanrealms-universe-access-sub005/pkg/subscription"
)

func TestStore_BillingCustomer(t *testing.T) {
	store := New()
	ctx := context.Background()

	// Getting a non-existent customer
	_, err := store.GetBillingCustomer(ctx, "user1")
	if !errors.Is(err, subscription.ErrCustomerNotFound) {
		t.Errorf("Expected ErrCustomerNotFound, got %v", err)
	}

	customer := &subscription.BillingCustomer{
		UserID:             "user1",
		ExternalCustomerID: "cus_123",
		CreatedAt:          time.Now().UTC(),
	}
	if err := store.CreateBillingCustomer(ctx, customer); err != nil {
		t.Fatalf("CreateBillingCustomer failed: %v", err)
	}

	retrieved, err := store.GetBillingCustomer(ctx, "user1")
	if err != nil {
		t.Fatalf("GetBillingCustomer failed: %v", err)
	}
	if retrieved.ExternalCustomerID != "cus_123" {
		t.Errorf("ExternalCustomerID mismatch: got %s", retrieved.ExternalCustomerID)
	}

	// Creating a duplicate conflicts
	err = store.CreateBillingCustomer(ctx, customer)
	if !errors.Is(err, subscription.ErrCustomerExists) {
		t.Errorf("Expected ErrCustomerExists, got %v", err)
	}
}

func TestStore_Tier(t *testing.T) {
	store := New()
	ctx := context.Background()

	_, err := store.GetTier(ctx, "t1")
	if !errors.Is(err, subscription.ErrTierNotFound) {
		t.Errorf("Expected ErrTierNotFound, got %v", err)
	}

	store.SeedTier(&subscription.Tier{ID: "t1", CreatorID: "c1", Title: "Supporter", Price: 9.99})

	tier, err := store.GetTier(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTier failed: %v", err)
	}
	if tier.Title != "Supporter" {
		t.Errorf("Title mismatch: got %s", tier.Title)
	}
	if tier.MinorUnits() != 999 {
		t.Errorf("Expected 999 minor units, got %d", tier.MinorUnits())
	}
}

func TestStore_ClaimTierPrice(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.ClaimTierPrice(ctx, "missing", "price_x"); !errors.Is(err, subscription.ErrTierNotFound) {
		t.Errorf("Expected ErrTierNotFound, got %v", err)
	}

	store.SeedTier(&subscription.Tier{ID: "t1", CreatorID: "c1", Title: "Supporter", Price: 9.99})

	// First claim wins
	winner, err := store.ClaimTierPrice(ctx, "t1", "price_a")
	if err != nil {
		t.Fatalf("ClaimTierPrice failed: %v", err)
	}
	if winner != "price_a" {
		t.Errorf("Expected price_a to win, got %s", winner)
	}

	// Later claims get the winner back, the claimed id is immutable
	winner, err = store.ClaimTierPrice(ctx, "t1", "price_b")
	if err != nil {
		t.Fatalf("second ClaimTierPrice failed: %v", err)
	}
	if winner != "price_a" {
		t.Errorf("Expected price_a to stay claimed, got %s", winner)
	}

	tier, _ := store.GetTier(ctx, "t1")
	if tier.ExternalPriceID != "price_a" {
		t.Errorf("Expected tier to carry price_a, got %s", tier.ExternalPriceID)
	}
}

func TestStore_ClaimTierPrice_Concurrent(t *testing.T) {
	store := New()
	ctx := context.Background()
	store.SeedTier(&subscription.Tier{ID: "t1", CreatorID: "c1", Title: "Supporter", Price: 9.99})

	const n = 16
	winners := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			winners[i], _ = store.ClaimTierPrice(ctx, "t1", "price_"+string(rune('a'+i)))
		}(i)
	}
	wg.Wait()

	// Every claimer observes the same winner
	for i := 1; i < n; i++ {
		if winners[i] != winners[0] {
			t.Fatalf("Claim %d saw %s, claim 0 saw %s", i, winners[i], winners[0])
		}
	}
}

func TestStore_Subscriptions(t *testing.T) {
	store := New()
	ctx := context.Background()

	_, err := store.GetSubscription(ctx, "rec_1")
	if !errors.Is(err, subscription.ErrSubscriptionNotFound) {
		t.Errorf("Expected ErrSubscriptionNotFound, got %v", err)
	}

	record := &subscription.Record{
		ID:                     "rec_1",
		UserID:                 "user1",
		CreatorID:              "c1",
		TierID:                 "t1",
		Status:                 subscription.StatusPending,
		ExternalSubscriptionID: "sub_1",
		CreatedAt:              time.Now().UTC(),
	}
	if err := store.CreateSubscription(ctx, record); err != nil {
		t.Fatalf("CreateSubscription failed: %v", err)
	}

	retrieved, err := store.GetSubscription(ctx, "rec_1")
	if err != nil {
		t.Fatalf("GetSubscription failed: %v", err)
	}
	if retrieved.Status != subscription.StatusPending {
		t.Errorf("Expected pending, got %s", retrieved.Status)
	}

	// Mutating the returned copy does not touch the stored record
	retrieved.Status = subscription.StatusCanceled
	again, _ := store.GetSubscription(ctx, "rec_1")
	if again.Status != subscription.StatusPending {
		t.Error("Store handed out a shared record")
	}

	if err := store.UpdateSubscriptionStatus(ctx, "rec_1", subscription.StatusActive); err != nil {
		t.Fatalf("UpdateSubscriptionStatus failed: %v", err)
	}
	updated, _ := store.GetSubscription(ctx, "rec_1")
	if updated.Status != subscription.StatusActive {
		t.Errorf("Expected active, got %s", updated.Status)
	}

	err = store.UpdateSubscriptionStatus(ctx, "missing", subscription.StatusCanceled)
	if !errors.Is(err, subscription.ErrSubscriptionNotFound) {
		t.Errorf("Expected ErrSubscriptionNotFound, got %v", err)
	}
}

func TestStore_GetActiveSubscription(t *testing.T) {
	store := New()
	ctx := context.Background()

	_, err := store.GetActiveSubscription(ctx, "user1", "c1")
	if !errors.Is(err, subscription.ErrSubscriptionNotFound) {
		t.Errorf("Expected ErrSubscriptionNotFound, got %v", err)
	}

	canceled := &subscription.Record{
		ID: "rec_old", UserID: "user1", CreatorID: "c1", TierID: "t1",
		Status: subscription.StatusCanceled, CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	pending := &subscription.Record{
		ID: "rec_new", UserID: "user1", CreatorID: "c1", TierID: "t1",
		Status: subscription.StatusPending, CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateSubscription(ctx, canceled); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateSubscription(ctx, pending); err != nil {
		t.Fatal(err)
	}

	record, err := store.GetActiveSubscription(ctx, "user1", "c1")
	if err != nil {
		t.Fatalf("GetActiveSubscription failed: %v", err)
	}
	if record.ID != "rec_new" {
		t.Errorf("Expected the pending record, got %s", record.ID)
	}

	// Other creator has no active record
	_, err = store.GetActiveSubscription(ctx, "user1", "c2")
	if !errors.Is(err, subscription.ErrSubscriptionNotFound) {
		t.Errorf("Expected ErrSubscriptionNotFound, got %v", err)
	}
}

func TestStore_ListActiveSubscriptions(t *testing.T) {
	store := New()
	ctx := context.Background()

	records := []*subscription.Record{
		{ID: "rec_1", UserID: "user1", CreatorID: "c1", Status: subscription.StatusActive, CreatedAt: time.Now().UTC()},
		{ID: "rec_2", UserID: "user1", CreatorID: "c2", Status: subscription.StatusPending, CreatedAt: time.Now().UTC()},
		{ID: "rec_3", UserID: "user1", CreatorID: "c3", Status: subscription.StatusCanceled, CreatedAt: time.Now().UTC()},
		{ID: "rec_4", UserID: "user2", CreatorID: "c1", Status: subscription.StatusActive, CreatedAt: time.Now().UTC()},
	}
	for _, r := range records {
		if err := store.CreateSubscription(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	list, err := store.ListActiveSubscriptions(ctx, "user1")
	if err != nil {
		t.Fatalf("ListActiveSubscriptions failed: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("Expected 2 active records for user1, got %d", len(list))
	}
	for _, r := range list {
		if r.Status == subscription.StatusCanceled {
			t.Errorf("Canceled record %s in active list", r.ID)
		}
	}
}

func TestStore_Clear(t *testing.T) {
	store := New()
	ctx := context.Background()

	store.SeedTier(&subscription.Tier{ID: "t1", CreatorID: "c1", Title: "Supporter", Price: 9.99})
	if err := store.CreateBillingCustomer(ctx, &subscription.BillingCustomer{UserID: "user1", ExternalCustomerID: "cus_1"}); err != nil {
		t.Fatal(err)
	}

	store.Clear()

	if _, err := store.GetTier(ctx, "t1"); !errors.Is(err, subscription.ErrTierNotFound) {
		t.Errorf("Expected tiers cleared, got %v", err)
	}
	if _, err := store.GetBillingCustomer(ctx, "user1"); !errors.Is(err, subscription.ErrCustomerNotFound) {
		t.Errorf("Expected customers cleared, got %v", err)
	}
}
