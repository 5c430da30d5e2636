package subscription_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Ouyang184/fanrealms-universe-access-sub005/pkg/subscription"
)

func TestQueryCache_GetUnregistered(t *testing.T) {
	cache := subscription.NewQueryCache()

	_, err := cache.Get(context.Background(), "nope")
	if !errors.Is(err, subscription.ErrQueryNotRegistered) {
		t.Errorf("Expected ErrQueryNotRegistered, got %v", err)
	}
}

func TestQueryCache_GetCachesUntilInvalidated(t *testing.T) {
	cache := subscription.NewQueryCache()
	ctx := context.Background()

	fetches := 0
	cache.Register("user-subscriptions", func(context.Context) (interface{}, error) {
		fetches++
		return fetches, nil
	})

	v, err := cache.Get(ctx, "user-subscriptions")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v.(int) != 1 {
		t.Errorf("Expected first fetch value 1, got %v", v)
	}

	// Second read hits the cache
	v, _ = cache.Get(ctx, "user-subscriptions")
	if v.(int) != 1 {
		t.Errorf("Expected cached value 1, got %v", v)
	}
	if fetches != 1 {
		t.Errorf("Expected 1 fetch, got %d", fetches)
	}

	// Invalidation forces a refetch on the next read
	cache.Invalidate("user-subscriptions")
	v, _ = cache.Get(ctx, "user-subscriptions")
	if v.(int) != 2 {
		t.Errorf("Expected refetched value 2, got %v", v)
	}
}

func TestQueryCache_InvalidateUnknownName(t *testing.T) {
	cache := subscription.NewQueryCache()
	// Must not panic; the coordinator always invalidates the full default set.
	cache.Invalidate(subscription.DefaultQueryKeys...)
}

func TestQueryCache_FetchErrorStaysStale(t *testing.T) {
	cache := subscription.NewQueryCache()
	ctx := context.Background()

	fail := true
	cache.Register("tier-subscription-check", func(context.Context) (interface{}, error) {
		if fail {
			return nil, errors.New("store down")
		}
		return "ok", nil
	})

	if _, err := cache.Get(ctx, "tier-subscription-check"); err == nil {
		t.Fatal("Expected fetch error")
	}

	// The entry stays stale, so a later read retries the fetch
	fail = false
	v, err := cache.Get(ctx, "tier-subscription-check")
	if err != nil {
		t.Fatalf("Get after recovery failed: %v", err)
	}
	if v.(string) != "ok" {
		t.Errorf("Expected ok, got %v", v)
	}
}

func TestQueryCache_RefreshSkipsUnregistered(t *testing.T) {
	cache := subscription.NewQueryCache()
	ctx := context.Background()

	fetches := 0
	cache.Register(subscription.QuerySubscriptionCheck, func(context.Context) (interface{}, error) {
		fetches++
		return fetches, nil
	})

	if err := cache.Refresh(ctx, subscription.DefaultQueryKeys...); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if fetches != 1 {
		t.Errorf("Expected 1 fetch for the single registered query, got %d", fetches)
	}
}

func TestQueryCache_Stats(t *testing.T) {
	cache := subscription.NewQueryCache()
	ctx := context.Background()

	cache.Register("user-subscriptions", func(context.Context) (interface{}, error) {
		return "v", nil
	})

	cache.Get(ctx, "user-subscriptions") // miss
	cache.Get(ctx, "user-subscriptions") // hit
	cache.Invalidate("user-subscriptions")

	stats := cache.Stats()
	if stats.Misses != 1 {
		t.Errorf("Expected 1 miss, got %d", stats.Misses)
	}
	if stats.Hits != 1 {
		t.Errorf("Expected 1 hit, got %d", stats.Hits)
	}
	if stats.Invalidations != 1 {
		t.Errorf("Expected 1 invalidation, got %d", stats.Invalidations)
	}
	if stats.Size != 1 {
		t.Errorf("Expected size 1, got %d", stats.Size)
	}
}
