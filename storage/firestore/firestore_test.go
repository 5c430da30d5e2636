package firestore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/Ouyang184/fanrealms-universe-access-sub005/pkg/subscription"
)

const (
	testProjectID = "test-project"
	emulatorHost  = "localhost:8080"
)

// setupTestStore creates a store backed by the Firestore emulator.
// Collections are unique per test run so tests do not interfere.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	conn, err := net.DialTimeout("tcp", emulatorHost, time.Second)
	if err != nil {
		t.Skipf("Firestore emulator not available: %v", err)
	}
	conn.Close()

	os.Setenv("FIRESTORE_EMULATOR_HOST", emulatorHost)

	ctx := context.Background()
	client, err := firestore.NewClient(ctx, testProjectID)
	if err != nil {
		t.Fatalf("Failed to create Firestore client: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	suffix := fmt.Sprintf("%s_%d", t.Name(), time.Now().UnixNano())
	store, err := New(client, Config{
		CustomersCollection:     "test_customers_" + suffix,
		TiersCollection:         "test_tiers_" + suffix,
		SubscriptionsCollection: "test_subs_" + suffix,
	})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func TestNew(t *testing.T) {
	if _, err := New(nil, Config{}); err == nil {
		t.Error("Expected error for nil client")
	}
}

func TestStore_BillingCustomers(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetBillingCustomer(ctx, "user1")
	if !errors.Is(err, subscription.ErrCustomerNotFound) {
		t.Errorf("Expected ErrCustomerNotFound, got %v", err)
	}

	customer := &subscription.BillingCustomer{
		UserID:             "user1",
		ExternalCustomerID: "cus_abc",
		CreatedAt:          time.Now(),
	}
	if err := store.CreateBillingCustomer(ctx, customer); err != nil {
		t.Fatalf("CreateBillingCustomer failed: %v", err)
	}

	got, err := store.GetBillingCustomer(ctx, "user1")
	if err != nil {
		t.Fatalf("GetBillingCustomer failed: %v", err)
	}
	if got.ExternalCustomerID != "cus_abc" {
		t.Errorf("Expected cus_abc, got %s", got.ExternalCustomerID)
	}

	err = store.CreateBillingCustomer(ctx, &subscription.BillingCustomer{
		UserID:             "user1",
		ExternalCustomerID: "cus_other",
	})
	if !errors.Is(err, subscription.ErrCustomerExists) {
		t.Errorf("Expected ErrCustomerExists, got %v", err)
	}
}

func TestStore_ClaimTierPrice(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.ClaimTierPrice(ctx, "missing", "price_x")
	if !errors.Is(err, subscription.ErrTierNotFound) {
		t.Errorf("Expected ErrTierNotFound, got %v", err)
	}

	if err := store.SeedTier(ctx, &subscription.Tier{
		ID:        "tier1",
		CreatorID: "creator1",
		Title:     "Gold",
		Price:     9.99,
	}); err != nil {
		t.Fatalf("SeedTier failed: %v", err)
	}

	winner, err := store.ClaimTierPrice(ctx, "tier1", "price_first")
	if err != nil {
		t.Fatalf("ClaimTierPrice failed: %v", err)
	}
	if winner != "price_first" {
		t.Errorf("Expected price_first, got %s", winner)
	}

	winner, err = store.ClaimTierPrice(ctx, "tier1", "price_second")
	if err != nil {
		t.Fatalf("ClaimTierPrice failed: %v", err)
	}
	if winner != "price_first" {
		t.Errorf("Expected price_first to win, got %s", winner)
	}
}

func TestStore_ClaimTierPriceConcurrent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.SeedTier(ctx, &subscription.Tier{
		ID:        "tier1",
		CreatorID: "creator1",
		Title:     "Gold",
		Price:     5.00,
	}); err != nil {
		t.Fatalf("SeedTier failed: %v", err)
	}

	const goroutines = 8
	winners := make([]string, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			winner, err := store.ClaimTierPrice(ctx, "tier1", fmt.Sprintf("price_%d", n))
			if err != nil {
				t.Errorf("ClaimTierPrice failed: %v", err)
				return
			}
			winners[n] = winner
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		if winners[i] != winners[0] {
			t.Errorf("Goroutine %d saw winner %s, goroutine 0 saw %s", i, winners[i], winners[0])
		}
	}
}

func TestStore_SubscriptionLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	record := &subscription.Record{
		ID:                     "sub1",
		UserID:                 "user1",
		CreatorID:              "creator1",
		TierID:                 "tier1",
		Status:                 subscription.StatusPending,
		ExternalSubscriptionID: "ext_sub1",
		CreatedAt:              time.Now(),
	}
	if err := store.CreateSubscription(ctx, record); err != nil {
		t.Fatalf("CreateSubscription failed: %v", err)
	}

	active, err := store.GetActiveSubscription(ctx, "user1", "creator1")
	if err != nil {
		t.Fatalf("GetActiveSubscription failed: %v", err)
	}
	if active.ID != "sub1" {
		t.Errorf("Expected sub1, got %s", active.ID)
	}

	if err := store.UpdateSubscriptionStatus(ctx, "sub1", subscription.StatusCanceled); err != nil {
		t.Fatalf("UpdateSubscriptionStatus failed: %v", err)
	}

	_, err = store.GetActiveSubscription(ctx, "user1", "creator1")
	if !errors.Is(err, subscription.ErrSubscriptionNotFound) {
		t.Errorf("Expected ErrSubscriptionNotFound after cancel, got %v", err)
	}

	err = store.UpdateSubscriptionStatus(ctx, "missing", subscription.StatusActive)
	if !errors.Is(err, subscription.ErrSubscriptionNotFound) {
		t.Errorf("Expected ErrSubscriptionNotFound, got %v", err)
	}
}
